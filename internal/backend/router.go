// Package backend routes task and category operations to the backend that
// owns them and normalizes the responses into the canonical models.
//
// The primary (task-management) backend serves task CRUD and the status
// transitions. The secondary (filtering) backend serves categories, the
// multi-criteria filter, aggregate stats and analytics.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fentz26/taskflow/internal/api"
	"github.com/fentz26/taskflow/internal/models"
)

var (
	// ErrTerminalTask is returned when an update would move a done or
	// cancelled task back to an active status.
	ErrTerminalTask = errors.New("task is in a terminal state")
	// ErrInvalidSortOrder is returned before dispatch for a sort order other
	// than asc or desc.
	ErrInvalidSortOrder = errors.New("sort_order must be asc or desc")
)

// Router dispatches domain operations to the two backend clients.
type Router struct {
	primary   *api.Client
	secondary *api.Client
}

// New creates a router over the primary and secondary clients.
func New(primary, secondary *api.Client) *Router {
	return &Router{primary: primary, secondary: secondary}
}

func taskPath(id int64, suffix string) string {
	return "/tasks/" + strconv.FormatInt(id, 10) + "/" + suffix
}

// ListTasks returns all tasks of the current user.
func (r *Router) ListTasks(ctx context.Context) ([]models.Task, error) {
	body, err := r.primary.Do(ctx, http.MethodGet, "/tasks/", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return decodeTasks(body)
}

// GetTask returns a single task.
func (r *Router) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	body, err := r.primary.Do(ctx, http.MethodGet, taskPath(id, ""), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return decodeTask(body)
}

// CreateTask creates a task from the set fields of in.
func (r *Router) CreateTask(ctx context.Context, in models.TaskInput) (*models.Task, error) {
	body, err := r.primary.Do(ctx, http.MethodPost, "/tasks/", nil, in)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return decodeTask(body)
}

// UpdateTask applies the set fields of in. A done or cancelled task cannot
// be moved back to todo, in_progress or review.
func (r *Router) UpdateTask(ctx context.Context, id int64, in models.TaskInput) (*models.Task, error) {
	if in.Status != nil && !in.Status.Terminal() {
		current, err := r.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status.Terminal() {
			return nil, fmt.Errorf("update task %d from %s to %s: %w", id, current.Status, *in.Status, ErrTerminalTask)
		}
	}
	body, err := r.primary.Do(ctx, http.MethodPut, taskPath(id, ""), nil, in)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return decodeTask(body)
}

// DeleteTask removes a task.
func (r *Router) DeleteTask(ctx context.Context, id int64) error {
	if _, err := r.primary.Do(ctx, http.MethodDelete, taskPath(id, ""), nil, nil); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

// CompleteTask marks a task done. The returned task always carries
// completed_at.
func (r *Router) CompleteTask(ctx context.Context, id int64) (*models.Task, error) {
	body, err := r.primary.Do(ctx, http.MethodPost, taskPath(id, "complete/"), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("complete task %d: %w", id, err)
	}
	t, err := decodeTask(body)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TaskStatusDone {
		return nil, &api.SchemaError{Resource: "completed task", Field: "status", Reason: fmt.Sprintf("expected done, got %s", t.Status)}
	}
	if t.CompletedAt == nil {
		return nil, &api.SchemaError{Resource: "completed task", Field: "completed_at", Reason: "missing"}
	}
	return t, nil
}

// CancelTask marks a task cancelled.
func (r *Router) CancelTask(ctx context.Context, id int64) (*models.Task, error) {
	body, err := r.primary.Do(ctx, http.MethodPost, taskPath(id, "cancel/"), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("cancel task %d: %w", id, err)
	}
	t, err := decodeTask(body)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TaskStatusCancelled {
		return nil, &api.SchemaError{Resource: "cancelled task", Field: "status", Reason: fmt.Sprintf("expected cancelled, got %s", t.Status)}
	}
	if t.CompletedAt != nil {
		return nil, &api.SchemaError{Resource: "cancelled task", Field: "completed_at", Reason: "set on a cancelled task"}
	}
	return t, nil
}

// SearchTasks returns tasks whose title or description matches q.
func (r *Router) SearchTasks(ctx context.Context, q string) ([]models.Task, error) {
	body, err := r.primary.Do(ctx, http.MethodGet, "/tasks/search/", url.Values{"q": {q}}, nil)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	return decodeTasks(body)
}

// TasksByStatus returns tasks with the given status.
func (r *Router) TasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	body, err := r.primary.Do(ctx, http.MethodGet, "/tasks/by_status/", url.Values{"status": {string(status)}}, nil)
	if err != nil {
		return nil, fmt.Errorf("tasks by status: %w", err)
	}
	return decodeTasks(body)
}

// TasksByPriority returns tasks with the given priority.
func (r *Router) TasksByPriority(ctx context.Context, priority models.Priority) ([]models.Task, error) {
	body, err := r.primary.Do(ctx, http.MethodGet, "/tasks/by_priority/", url.Values{"priority": {string(priority)}}, nil)
	if err != nil {
		return nil, fmt.Errorf("tasks by priority: %w", err)
	}
	return decodeTasks(body)
}

func categoryPath(id int64) string {
	return "/categories/" + strconv.FormatInt(id, 10)
}

// ListCategories returns every category.
func (r *Router) ListCategories(ctx context.Context) ([]models.Category, error) {
	body, err := r.secondary.Do(ctx, http.MethodGet, "/categories", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return decodeCategories(body)
}

// GetCategory returns one category.
func (r *Router) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	body, err := r.secondary.Do(ctx, http.MethodGet, categoryPath(id), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return decodeCategory(body)
}

// CreateCategory creates a category.
func (r *Router) CreateCategory(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	body, err := r.secondary.Do(ctx, http.MethodPost, "/categories", nil, in)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return decodeCategory(body)
}

// UpdateCategory applies the set fields of in.
func (r *Router) UpdateCategory(ctx context.Context, id int64, in models.CategoryInput) (*models.Category, error) {
	body, err := r.secondary.Do(ctx, http.MethodPut, categoryPath(id), nil, in)
	if err != nil {
		return nil, fmt.Errorf("update category %d: %w", id, err)
	}
	return decodeCategory(body)
}

// DeleteCategory removes a category.
func (r *Router) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := r.secondary.Do(ctx, http.MethodDelete, categoryPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

// FilterTasks runs a multi-criteria listing. Only set parameters are sent.
func (r *Router) FilterTasks(ctx context.Context, p models.FilterParams) (*models.FilterResult, error) {
	query, err := filterQuery(p)
	if err != nil {
		return nil, err
	}
	body, err := r.secondary.Do(ctx, http.MethodGet, "/tasks/filter", query, nil)
	if err != nil {
		return nil, fmt.Errorf("filter tasks: %w", err)
	}
	return decodeFilterResult(body)
}

func filterQuery(p models.FilterParams) (url.Values, error) {
	q := url.Values{}
	if p.CategoryID != nil {
		q.Set("category_id", strconv.FormatInt(*p.CategoryID, 10))
	}
	if p.Status != nil {
		q.Set("status", string(*p.Status))
	}
	if p.Priority != nil {
		q.Set("priority", string(*p.Priority))
	}
	if p.Search != nil {
		q.Set("search", *p.Search)
	}
	if p.StartDate != nil {
		q.Set("start_date", *p.StartDate)
	}
	if p.EndDate != nil {
		q.Set("end_date", *p.EndDate)
	}
	if p.SortBy != nil {
		q.Set("sort_by", *p.SortBy)
	}
	if p.SortOrder != nil {
		if *p.SortOrder != models.SortAsc && *p.SortOrder != models.SortDesc {
			return nil, fmt.Errorf("filter tasks: %w (got %q)", ErrInvalidSortOrder, *p.SortOrder)
		}
		q.Set("sort_order", string(*p.SortOrder))
	}
	if p.Page != nil {
		q.Set("page", strconv.Itoa(*p.Page))
	}
	if p.PerPage != nil {
		q.Set("per_page", strconv.Itoa(*p.PerPage))
	}
	return q, nil
}

// TaskStats returns the aggregate counts for the current user.
func (r *Router) TaskStats(ctx context.Context) (*models.TaskStats, error) {
	body, err := r.secondary.Do(ctx, http.MethodGet, "/tasks/stats", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	var stats models.TaskStats
	if err := decodeObject("task stats", body, &stats, "total_tasks", "status_distribution", "priority_distribution"); err != nil {
		return nil, err
	}
	return &stats, nil
}

// AnalyticsOverview returns the dashboard overview.
func (r *Router) AnalyticsOverview(ctx context.Context) (*models.AnalyticsOverview, error) {
	body, err := r.secondary.Do(ctx, http.MethodGet, "/analytics/overview", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("analytics overview: %w", err)
	}
	var overview models.AnalyticsOverview
	if err := decodeObject("analytics overview", body, &overview, "total_tasks", "completed_tasks", "status_distribution"); err != nil {
		return nil, err
	}
	return &overview, nil
}

// RealTimeStats returns the live counters.
func (r *Router) RealTimeStats(ctx context.Context) (*models.RealTimeStats, error) {
	body, err := r.secondary.Do(ctx, http.MethodGet, "/analytics/realtime", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime stats: %w", err)
	}
	var stats models.RealTimeStats
	if err := decodeObject("realtime stats", body, &stats, "active_tasks", "completed_today", "overdue_tasks"); err != nil {
		return nil, err
	}
	return &stats, nil
}

// PerformanceMetrics returns the long-range performance report.
func (r *Router) PerformanceMetrics(ctx context.Context) (*models.PerformanceMetrics, error) {
	body, err := r.secondary.Do(ctx, http.MethodGet, "/analytics/performance", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("performance metrics: %w", err)
	}
	var perf models.PerformanceMetrics
	if err := decodeObject("performance metrics", body, &perf, "total_tasks", "completion_rate"); err != nil {
		return nil, err
	}
	return &perf, nil
}

// Insights returns the generated recommendations.
func (r *Router) Insights(ctx context.Context) (*models.Insights, error) {
	body, err := r.secondary.Do(ctx, http.MethodGet, "/analytics/insights", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}
	var insights models.Insights
	if err := decodeObject("insights", body, &insights, "recommendations"); err != nil {
		return nil, err
	}
	return &insights, nil
}
