// Package models defines the core domain types for taskflow.
package models

import (
	"time"

	"golang.org/x/oauth2"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone, TaskStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no operation may move the task back to an active state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusDone || s == TaskStatusCancelled
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// User is the identity record returned by the task-management backend.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Session pairs the credential with the identity it was issued for.
// Both are present or both are absent.
type Session struct {
	Token *oauth2.Token `json:"token"`
	User  *User         `json:"user"`
}

// Task is the canonical task shape handed to callers.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	CategoryID  *int64     `json:"category_id,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskInput carries the writable task fields. Nil fields are not sent.
type TaskInput struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Priority    *Priority   `json:"priority,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	DueDate     *string     `json:"due_date,omitempty"`
}

// Category groups tasks on the filtering backend.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryInput carries the writable category fields.
type CategoryInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// SortOrder is the direction of a filtered listing.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// FilterParams are the optional criteria for a filtered task listing.
// Only non-nil fields are transmitted.
type FilterParams struct {
	CategoryID *int64
	Status     *TaskStatus
	Priority   *Priority
	Search     *string
	StartDate  *string
	EndDate    *string
	SortBy     *string
	SortOrder  *SortOrder
	Page       *int
	PerPage    *int
}

// Pagination describes one page of a filtered listing.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// FilterResult is a page of tasks plus its pagination descriptor.
type FilterResult struct {
	Tasks      []Task     `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

// TaskStats are the aggregate counts served by the filtering backend.
type TaskStats struct {
	TotalTasks           int            `json:"total_tasks"`
	CompletedTasks       int            `json:"completed_tasks,omitempty"`
	OverdueTasks         int            `json:"overdue_tasks"`
	CompletedThisWeek    int            `json:"completed_this_week,omitempty"`
	ProductivityScore    float64        `json:"productivity_score,omitempty"`
	StatusDistribution   map[string]int `json:"status_distribution"`
	PriorityDistribution map[string]int `json:"priority_distribution"`
	CategoryDistribution map[string]int `json:"category_distribution,omitempty"`
}

// DailyCompletion is one day of the completion history.
type DailyCompletion struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
}

// WeeklyTrends summarizes the last seven days.
type WeeklyTrends struct {
	TasksCreated   int     `json:"tasks_created"`
	TasksCompleted int     `json:"tasks_completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// OverviewPerformance holds the derived efficiency figures of an overview.
type OverviewPerformance struct {
	AverageCompletionTimeHours float64 `json:"average_completion_time_hours"`
	TasksPerDay                float64 `json:"tasks_per_day"`
	EfficiencyScore            float64 `json:"efficiency_score"`
}

// AnalyticsOverview is the cached dashboard resource.
type AnalyticsOverview struct {
	TotalTasks           int                 `json:"total_tasks"`
	CompletedTasks       int                 `json:"completed_tasks"`
	OverdueTasks         int                 `json:"overdue_tasks"`
	ProductivityScore    float64             `json:"productivity_score"`
	StatusDistribution   map[string]int      `json:"status_distribution"`
	PriorityDistribution map[string]int      `json:"priority_distribution"`
	DailyCompletionRate  []DailyCompletion   `json:"daily_completion_rate"`
	WeeklyTrends         WeeklyTrends        `json:"weekly_trends"`
	PerformanceMetrics   OverviewPerformance `json:"performance_metrics"`
}

// RealTimeStats is the polled live-stats resource.
type RealTimeStats struct {
	ActiveTasks           int      `json:"active_tasks"`
	CompletedToday        int      `json:"completed_today"`
	OverdueTasks          int      `json:"overdue_tasks"`
	AverageCompletionTime float64  `json:"average_completion_time"`
	TopPriorities         []string `json:"top_priorities"`
}

// ProductivityPoint is one day of the productivity trend.
type ProductivityPoint struct {
	Date         string  `json:"date"`
	Productivity float64 `json:"productivity"`
}

// PerformanceMetrics is the long-range performance report.
type PerformanceMetrics struct {
	TotalTasks          int                    `json:"total_tasks"`
	CompletionRate      float64                `json:"completion_rate"`
	OnTimeCompletion    float64                `json:"on_time_completion"`
	AverageTaskDuration float64                `json:"average_task_duration"`
	ProductivityTrend   []ProductivityPoint    `json:"productivity_trend"`
	CategoryPerformance map[string]interface{} `json:"category_performance"`
	PriorityEfficiency  map[string]interface{} `json:"priority_efficiency"`
}

// Recommendation is a single insight message.
type Recommendation struct {
	Type    string `json:"type"` // "warning", "suggestion" or "alert"
	Message string `json:"message"`
}

// Insights are the generated recommendations for the user.
type Insights struct {
	Recommendations []Recommendation       `json:"recommendations"`
	Trends          map[string]interface{} `json:"trends"`
	Improvements    []string               `json:"improvements"`
}
