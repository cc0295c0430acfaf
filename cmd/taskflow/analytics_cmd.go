package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate task statistics",
	RunE:  runStats,
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show the analytics overview (cached for a few minutes)",
	RunE:  runAnalytics,
}

var (
	analyticsRefresh     bool
	analyticsPerformance bool
	analyticsInsights    bool
)

func init() {
	analyticsCmd.Flags().BoolVar(&analyticsRefresh, "refresh", false, "Ignore the cached overview")
	analyticsCmd.Flags().BoolVar(&analyticsPerformance, "performance", false, "Include the performance report")
	analyticsCmd.Flags().BoolVar(&analyticsInsights, "insights", false, "Include recommendations")
}

func runStats(cmd *cobra.Command, args []string) error {
	return withApp(cmd, true, func(a *app) error {
		s, err := a.router.TaskStats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total tasks:          %d\n", s.TotalTasks)
		fmt.Fprintf(out, "Overdue:              %d\n", s.OverdueTasks)
		fmt.Fprintf(out, "Completed this week:  %d\n", s.CompletedThisWeek)
		printDistribution(out, "By status", s.StatusDistribution)
		printDistribution(out, "By priority", s.PriorityDistribution)
		printDistribution(out, "By category", s.CategoryDistribution)
		return nil
	})
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	return withApp(cmd, true, func(a *app) error {
		if analyticsRefresh {
			if err := a.cache.Clear(); err != nil {
				return err
			}
		}
		o, err := a.cache.Get(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total tasks:        %d\n", o.TotalTasks)
		fmt.Fprintf(out, "Completed:          %d\n", o.CompletedTasks)
		fmt.Fprintf(out, "Overdue:            %d\n", o.OverdueTasks)
		fmt.Fprintf(out, "Productivity score: %.1f\n", o.ProductivityScore)
		fmt.Fprintf(out, "This week:          %d created, %d completed (%.1f%%)\n",
			o.WeeklyTrends.TasksCreated, o.WeeklyTrends.TasksCompleted, o.WeeklyTrends.CompletionRate)
		fmt.Fprintf(out, "Avg completion:     %.1fh\n", o.PerformanceMetrics.AverageCompletionTimeHours)
		printDistribution(out, "By status", o.StatusDistribution)
		printDistribution(out, "By priority", o.PriorityDistribution)

		if analyticsPerformance {
			p, err := a.router.PerformanceMetrics(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nCompletion rate:    %.1f%%\n", p.CompletionRate)
			fmt.Fprintf(out, "On-time:            %.1f%%\n", p.OnTimeCompletion)
			fmt.Fprintf(out, "Avg task duration:  %.1fh\n", p.AverageTaskDuration)
		}
		if analyticsInsights {
			ins, err := a.router.Insights(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\nRecommendations:")
			if len(ins.Recommendations) == 0 {
				fmt.Fprintln(out, "  none")
			}
			for _, r := range ins.Recommendations {
				fmt.Fprintf(out, "  [%s] %s\n", r.Type, r.Message)
			}
		}
		return nil
	})
}

func printDistribution(out io.Writer, label string, d map[string]int) {
	if len(d) == 0 {
		return
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "%s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-14s %d\n", k, d[k])
	}
}
