// Package tui provides the live-stats terminal dashboard for taskflow.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/taskflow/internal/analytics"
	"github.com/fentz26/taskflow/internal/models"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor)
	valueStyle = lipgloss.NewStyle().Foreground(cyanColor).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
)

// TaskSource lists tasks for the task panel.
type TaskSource interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	TasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error)
}

// OverviewSource serves the cached analytics overview.
type OverviewSource interface {
	Get(ctx context.Context) (*models.AnalyticsOverview, error)
	Clear() error
}

const (
	modeLive  = "live"
	modeTasks = "tasks"
)

var filters = []models.TaskStatus{"", models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusReview, models.TaskStatusDone, models.TaskStatusCancelled}
var filterNames = []string{"ALL", "TODO", "IN PROGRESS", "REVIEW", "DONE", "CANCELLED"}

const fetchTimeout = 10 * time.Second

// App is the dashboard model.
type App struct {
	tasks    TaskSource
	overview OverviewSource
	username string

	spinner   spinner.Model
	width     int
	height    int
	mode      string
	filterIdx int
	message   string

	live         *models.RealTimeStats
	liveAt       time.Time
	overviewData *models.AnalyticsOverview
	taskItems    []models.Task
	loadingTasks bool
}

// New creates the dashboard.
func New(tasks TaskSource, overview OverviewSource, username string) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return &App{
		tasks:    tasks,
		overview: overview,
		username: username,
		spinner:  sp,
		mode:     modeLive,
		width:    80,
		height:   24,
	}
}

// Run shows the dashboard, feeding it from a poller subscription until the
// user quits.
func (a *App) Run(poller *analytics.Poller, interval time.Duration) error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	cancel := poller.Start(func(s *models.RealTimeStats) {
		p.Send(statsMsg{stats: s, at: time.Now()})
	}, interval)
	defer cancel()

	_, err := p.Run()
	return err
}

type statsMsg struct {
	stats *models.RealTimeStats
	at    time.Time
}

type overviewMsg struct {
	overview *models.AnalyticsOverview
	err      error
}

type tasksLoadedMsg struct {
	tasks []models.Task
	err   error
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.fetchOverview())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "tab":
			if a.mode == modeLive {
				a.mode = modeTasks
				return a, a.fetchTasks()
			}
			a.mode = modeLive
		case "f":
			if a.mode == modeTasks {
				a.filterIdx = (a.filterIdx + 1) % len(filters)
				return a, a.fetchTasks()
			}
		case "r":
			if a.mode == modeTasks {
				return a, a.fetchTasks()
			}
			if err := a.overview.Clear(); err != nil {
				a.message = fmt.Sprintf("Error: %v", err)
				return a, nil
			}
			a.message = "Refreshing analytics..."
			return a, a.fetchOverview()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case statsMsg:
		a.live = msg.stats
		a.liveAt = msg.at

	case overviewMsg:
		if msg.err != nil {
			a.message = fmt.Sprintf("Error: %v", msg.err)
		} else {
			a.overviewData = msg.overview
			a.message = ""
		}

	case tasksLoadedMsg:
		a.loadingTasks = false
		if msg.err != nil {
			a.message = fmt.Sprintf("Error: %v", msg.err)
		} else {
			a.taskItems = msg.tasks
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	userStatus := lipgloss.NewStyle().Foreground(mutedColor).Render("○ not signed in")
	if a.username != "" {
		userStatus = lipgloss.NewStyle().Foreground(successColor).Render("● " + a.username)
	}
	b.WriteString(titleStyle.Render("taskflow") + "  " + userStatus + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	switch a.mode {
	case modeLive:
		b.WriteString(a.renderLive())
		b.WriteString("\n")
		b.WriteString(a.renderOverview())
	case modeTasks:
		b.WriteString(labelStyle.Render(fmt.Sprintf(" Filter: [%s]", filterNames[a.filterIdx])) + "\n")
		b.WriteString(a.renderTasks())
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	}
	b.WriteString("\n")

	var status string
	if a.mode == modeLive {
		status = " Tab:tasks | r:refresh analytics | q:quit"
	} else {
		status = fmt.Sprintf(" Tasks: %d | f:filter | r:reload | Tab:live | q:quit", len(a.taskItems))
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 1)).Render(status))
	return b.String()
}

func (a *App) renderLive() string {
	if a.live == nil {
		return panelStyle.Render(a.spinner.View() + " Waiting for live stats...")
	}
	s := a.live
	overdue := valueStyle.Render(fmt.Sprintf("%d", s.OverdueTasks))
	if s.OverdueTasks > 0 {
		overdue = lipgloss.NewStyle().Foreground(errorColor).Bold(true).Render(fmt.Sprintf("%d", s.OverdueTasks))
	}

	var b strings.Builder
	b.WriteString(valueStyle.Render("Live") + "  " + labelStyle.Render("updated "+formatAge(time.Since(a.liveAt))) + "\n")
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Active:"), valueStyle.Render(fmt.Sprintf("%d", s.ActiveTasks)),
		labelStyle.Render("Done today:"), valueStyle.Render(fmt.Sprintf("%d", s.CompletedToday)),
		labelStyle.Render("Overdue:"), overdue))
	b.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Avg completion:"), valueStyle.Render(fmt.Sprintf("%.1fh", s.AverageCompletionTime))))
	if len(s.TopPriorities) > 0 {
		b.WriteString("   " + labelStyle.Render("Top priorities:") + " " + strings.Join(s.TopPriorities, ", "))
	}
	return panelStyle.Render(b.String())
}

func (a *App) renderOverview() string {
	if a.overviewData == nil {
		return panelStyle.Render(a.spinner.View() + " Loading analytics...")
	}
	o := a.overviewData

	var b strings.Builder
	b.WriteString(valueStyle.Render("Overview") + "\n")
	b.WriteString(fmt.Sprintf("%s %d   %s %d   %s %d   %s %.0f\n",
		labelStyle.Render("Total:"), o.TotalTasks,
		labelStyle.Render("Completed:"), o.CompletedTasks,
		labelStyle.Render("Overdue:"), o.OverdueTasks,
		labelStyle.Render("Productivity:"), o.ProductivityScore))
	b.WriteString(fmt.Sprintf("%s %d created, %d completed (%.1f%%)\n",
		labelStyle.Render("This week:"), o.WeeklyTrends.TasksCreated, o.WeeklyTrends.TasksCompleted, o.WeeklyTrends.CompletionRate))
	b.WriteString(labelStyle.Render("By status:") + " " + formatDistribution(o.StatusDistribution))
	return panelStyle.Render(b.String())
}

func (a *App) renderTasks() string {
	if a.loadingTasks {
		return "\n  " + a.spinner.View() + " Loading tasks...\n"
	}
	if len(a.taskItems) == 0 {
		return "\n  " + helpStyle.Render("No tasks") + "\n"
	}
	var b strings.Builder
	for _, t := range a.taskItems {
		title := t.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		b.WriteString(fmt.Sprintf("  %-6d %s  %-40s  %s\n", t.ID, formatStatus(t.Status), title, formatPriority(t.Priority)))
	}
	return b.String()
}

func (a *App) fetchOverview() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		o, err := a.overview.Get(ctx)
		return overviewMsg{overview: o, err: err}
	}
}

func (a *App) fetchTasks() tea.Cmd {
	a.loadingTasks = true
	status := filters[a.filterIdx]
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		var tasks []models.Task
		var err error
		if status == "" {
			tasks, err = a.tasks.ListTasks(ctx)
		} else {
			tasks, err = a.tasks.TasksByStatus(ctx, status)
		}
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

func formatStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusTodo:
		return lipgloss.NewStyle().Foreground(mutedColor).Render("○ TODO       ")
	case models.TaskStatusInProgress:
		return lipgloss.NewStyle().Foreground(primaryColor).Render("◑ IN PROGRESS")
	case models.TaskStatusReview:
		return lipgloss.NewStyle().Foreground(warningColor).Render("◐ REVIEW     ")
	case models.TaskStatusDone:
		return lipgloss.NewStyle().Foreground(successColor).Render("● DONE       ")
	case models.TaskStatusCancelled:
		return lipgloss.NewStyle().Foreground(errorColor).Render("✗ CANCELLED  ")
	default:
		return string(status)
	}
}

func formatPriority(p models.Priority) string {
	switch p {
	case models.PriorityUrgent:
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true).Render("urgent")
	case models.PriorityHigh:
		return lipgloss.NewStyle().Foreground(warningColor).Render("high")
	default:
		return labelStyle.Render(string(p))
	}
}

func formatDistribution(d map[string]int) string {
	if len(d) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, d[k]))
	}
	return strings.Join(parts, " ")
}

func formatAge(d time.Duration) string {
	if d < time.Second {
		return "just now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%ds ago", int(d.Minutes()), int(d.Seconds())%60)
}
