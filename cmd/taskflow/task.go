package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fentz26/taskflow/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update [task-id]",
	Short: "Update a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete [task-id]",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskComplete,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel [task-id]",
	Short: "Cancel a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCancel,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var taskSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search tasks by title or description",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskSearch,
}

var taskFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter tasks with pagination",
	RunE:  runTaskFilter,
}

var (
	taskTitle    string
	taskDesc     string
	taskStatus   string
	taskPriority string
	taskDue      string

	filterCategory  int64
	filterSearch    string
	filterStart     string
	filterEnd       string
	filterSortBy    string
	filterSortOrder string
	filterPage      int
	filterPerPage   int
)

func init() {
	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskAddCmd, taskUpdateCmd, taskCompleteCmd,
		taskCancelCmd, taskDeleteCmd, taskSearchCmd, taskFilterCmd)

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Only tasks with this status (todo, in_progress, review, done, cancelled)")
	taskListCmd.Flags().StringVar(&taskPriority, "priority", "", "Only tasks with this priority (low, medium, high, urgent)")

	for _, c := range []*cobra.Command{taskAddCmd, taskUpdateCmd} {
		c.Flags().StringVar(&taskTitle, "title", "", "Task title")
		c.Flags().StringVar(&taskDesc, "desc", "", "Task description")
		c.Flags().StringVar(&taskPriority, "priority", "", "Priority (low, medium, high, urgent)")
		c.Flags().StringVar(&taskStatus, "status", "", "Status (todo, in_progress, review, done, cancelled)")
		c.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD or RFC 3339)")
	}
	taskAddCmd.MarkFlagRequired("title")

	f := taskFilterCmd.Flags()
	f.Int64Var(&filterCategory, "category", 0, "Category ID")
	f.StringVar(&taskStatus, "status", "", "Status")
	f.StringVar(&taskPriority, "priority", "", "Priority")
	f.StringVar(&filterSearch, "search", "", "Text in title or description")
	f.StringVar(&filterStart, "from", "", "Created on or after (ISO date)")
	f.StringVar(&filterEnd, "to", "", "Created on or before (ISO date)")
	f.StringVar(&filterSortBy, "sort-by", "", "Sort field, e.g. created_at")
	f.StringVar(&filterSortOrder, "order", "", "Sort order (asc, desc)")
	f.IntVar(&filterPage, "page", 0, "Page number")
	f.IntVar(&filterPerPage, "per-page", 0, "Page size")
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func parseStatus(s string) (models.TaskStatus, error) {
	status := models.TaskStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return status, nil
}

func parsePriority(s string) (models.Priority, error) {
	p := models.Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q", s)
	}
	return p, nil
}

// taskInput collects the flags the user actually set.
func taskInput(cmd *cobra.Command) (models.TaskInput, error) {
	var in models.TaskInput
	flags := cmd.Flags()
	if flags.Changed("title") {
		in.Title = &taskTitle
	}
	if flags.Changed("desc") {
		in.Description = &taskDesc
	}
	if flags.Changed("priority") {
		p, err := parsePriority(taskPriority)
		if err != nil {
			return in, err
		}
		in.Priority = &p
	}
	if flags.Changed("status") {
		s, err := parseStatus(taskStatus)
		if err != nil {
			return in, err
		}
		in.Status = &s
	}
	if flags.Changed("due") {
		in.DueDate = &taskDue
	}
	return in, nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, true, func(a *app) error {
		var tasks []models.Task
		var err error
		switch {
		case taskStatus != "":
			status, perr := parseStatus(taskStatus)
			if perr != nil {
				return perr
			}
			tasks, err = a.router.TasksByStatus(cmd.Context(), status)
		case taskPriority != "":
			p, perr := parsePriority(taskPriority)
			if perr != nil {
				return perr
			}
			tasks, err = a.router.TasksByPriority(cmd.Context(), p)
		default:
			tasks, err = a.router.ListTasks(cmd.Context())
		}
		if err != nil {
			return err
		}
		printTasks(cmd.OutOrStdout(), tasks)
		return nil
	})
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, true, func(a *app) error {
		t, err := a.router.GetTask(cmd.Context(), id)
		if err != nil {
			return err
		}
		printTask(cmd.OutOrStdout(), t)
		return nil
	})
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	in, err := taskInput(cmd)
	if err != nil {
		return err
	}
	return withApp(cmd, true, func(a *app) error {
		t, err := a.router.CreateTask(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created task: %d\n", t.ID)
		return nil
	})
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	in, err := taskInput(cmd)
	if err != nil {
		return err
	}
	return withApp(cmd, true, func(a *app) error {
		t, err := a.router.UpdateTask(cmd.Context(), id, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d\n", t.ID)
		return nil
	})
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, true, func(a *app) error {
		t, err := a.router.CompleteTask(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Completed task %d at %s\n", t.ID, formatTime(t.CompletedAt))
		return nil
	})
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, true, func(a *app) error {
		t, err := a.router.CancelTask(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cancelled task %d\n", t.ID)
		return nil
	})
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, true, func(a *app) error {
		if err := a.router.DeleteTask(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
		return nil
	})
}

func runTaskSearch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, true, func(a *app) error {
		tasks, err := a.router.SearchTasks(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printTasks(cmd.OutOrStdout(), tasks)
		return nil
	})
}

func runTaskFilter(cmd *cobra.Command, args []string) error {
	var p models.FilterParams
	flags := cmd.Flags()
	if flags.Changed("category") {
		p.CategoryID = &filterCategory
	}
	if flags.Changed("status") {
		s, err := parseStatus(taskStatus)
		if err != nil {
			return err
		}
		p.Status = &s
	}
	if flags.Changed("priority") {
		pr, err := parsePriority(taskPriority)
		if err != nil {
			return err
		}
		p.Priority = &pr
	}
	if flags.Changed("search") {
		p.Search = &filterSearch
	}
	if flags.Changed("from") {
		p.StartDate = &filterStart
	}
	if flags.Changed("to") {
		p.EndDate = &filterEnd
	}
	if flags.Changed("sort-by") {
		p.SortBy = &filterSortBy
	}
	if flags.Changed("order") {
		order := models.SortOrder(filterSortOrder)
		p.SortOrder = &order
	}
	if flags.Changed("page") {
		p.Page = &filterPage
	}
	if flags.Changed("per-page") {
		p.PerPage = &filterPerPage
	}

	return withApp(cmd, true, func(a *app) error {
		res, err := a.router.FilterTasks(cmd.Context(), p)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printTasks(out, res.Tasks)
		pg := res.Pagination
		fmt.Fprintf(out, "\nPage %d of %d (%d tasks, %d per page)\n", pg.Page, pg.Pages, pg.Total, pg.PerPage)
		return nil
	})
}

func printTasks(out io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, truncate(t.Title, 40), t.Status, t.Priority, formatDate(t.DueDate))
	}
	w.Flush()
}

func printTask(out io.Writer, t *models.Task) {
	fmt.Fprintf(out, "ID:          %d\n", t.ID)
	fmt.Fprintf(out, "Title:       %s\n", t.Title)
	fmt.Fprintf(out, "Description: %s\n", t.Description)
	fmt.Fprintf(out, "Owner:       %s\n", t.Owner)
	fmt.Fprintf(out, "Status:      %s\n", t.Status)
	fmt.Fprintf(out, "Priority:    %s\n", t.Priority)
	if t.CategoryID != nil {
		fmt.Fprintf(out, "Category:    %d\n", *t.CategoryID)
	}
	if t.DueDate != nil {
		fmt.Fprintf(out, "Due:         %s\n", formatTime(t.DueDate))
	}
	if t.CompletedAt != nil {
		fmt.Fprintf(out, "Completed:   %s\n", formatTime(t.CompletedAt))
	}
	fmt.Fprintf(out, "Created:     %s\n", formatTime(&t.CreatedAt))
	fmt.Fprintf(out, "Updated:     %s\n", formatTime(&t.UpdatedAt))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
