package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/fentz26/taskflow/internal/models"
	"github.com/spf13/cobra"
)

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage task categories",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE:  runCategoryList,
}

var categoryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a category",
	RunE:  runCategoryAdd,
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete [category-id]",
	Short: "Delete a category",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategoryDelete,
}

var (
	categoryName  string
	categoryDesc  string
	categoryColor string
)

func init() {
	categoryCmd.AddCommand(categoryListCmd, categoryAddCmd, categoryDeleteCmd)

	categoryAddCmd.Flags().StringVar(&categoryName, "name", "", "Category name (required)")
	categoryAddCmd.Flags().StringVar(&categoryDesc, "desc", "", "Description")
	categoryAddCmd.Flags().StringVar(&categoryColor, "color", "", "Hex color, e.g. #007bff")
	categoryAddCmd.MarkFlagRequired("name")
}

func runCategoryList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, true, func(a *app) error {
		categories, err := a.router.ListCategories(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(categories) == 0 {
			fmt.Fprintln(out, "No categories found")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCOLOR\tDESCRIPTION")
		for _, c := range categories {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Color, truncate(c.Description, 40))
		}
		w.Flush()
		return nil
	})
}

func runCategoryAdd(cmd *cobra.Command, args []string) error {
	in := models.CategoryInput{Name: &categoryName}
	if cmd.Flags().Changed("desc") {
		in.Description = &categoryDesc
	}
	if cmd.Flags().Changed("color") {
		in.Color = &categoryColor
	}
	return withApp(cmd, true, func(a *app) error {
		c, err := a.router.CreateCategory(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created category: %d\n", c.ID)
		return nil
	})
}

func runCategoryDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid category id %q", args[0])
	}
	return withApp(cmd, true, func(a *app) error {
		if err := a.router.DeleteCategory(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %d\n", id)
		return nil
	})
}
