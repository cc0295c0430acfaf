package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/taskflow/internal/api"
	"github.com/fentz26/taskflow/internal/models"
)

// timeLayouts are the timestamp shapes the backends emit: RFC 3339 from the
// task-management backend, naive isoformat and plain dates from the
// filtering backend. Naive values are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// wireTask accepts every task shape the two backends produce.
type wireTask struct {
	ID          *int64          `json:"id"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	User        json.RawMessage `json:"user"`
	UserID      json.RawMessage `json:"user_id"`
	CategoryID  *int64          `json:"category_id"`
	Priority    string          `json:"priority"`
	Status      string          `json:"status"`
	DueDate     *string         `json:"due_date"`
	CompletedAt *string         `json:"completed_at"`
	CreatedAt   *string         `json:"created_at"`
	UpdatedAt   *string         `json:"updated_at"`
}

func (w *wireTask) toTask() (*models.Task, error) {
	const resource = "task"
	if w.ID == nil {
		return nil, &api.SchemaError{Resource: resource, Field: "id", Reason: "missing"}
	}
	if w.Title == nil {
		return nil, &api.SchemaError{Resource: resource, Field: "title", Reason: "missing"}
	}
	status := models.TaskStatus(w.Status)
	if !status.Valid() {
		return nil, &api.SchemaError{Resource: resource, Field: "status", Reason: fmt.Sprintf("unknown value %q", w.Status)}
	}
	priority := models.Priority(w.Priority)
	if !priority.Valid() {
		return nil, &api.SchemaError{Resource: resource, Field: "priority", Reason: fmt.Sprintf("unknown value %q", w.Priority)}
	}
	owner, err := decodeOwner(w.User, w.UserID)
	if err != nil {
		return nil, err
	}

	t := &models.Task{
		ID:         *w.ID,
		Title:      *w.Title,
		Owner:      owner,
		CategoryID: w.CategoryID,
		Priority:   priority,
		Status:     status,
	}
	if w.Description != nil {
		t.Description = *w.Description
	}

	if t.DueDate, err = optionalTime(resource, "due_date", w.DueDate); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = optionalTime(resource, "completed_at", w.CompletedAt); err != nil {
		return nil, err
	}
	created, err := optionalTime(resource, "created_at", w.CreatedAt)
	if err != nil {
		return nil, err
	}
	if created != nil {
		t.CreatedAt = *created
	}
	updated, err := optionalTime(resource, "updated_at", w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		t.UpdatedAt = *updated
	}
	return t, nil
}

// decodeOwner normalizes the nested user object, the user string and the
// numeric user_id to one string.
func decodeOwner(user, userID json.RawMessage) (string, error) {
	raw := user
	field := "user"
	if isNull(raw) {
		raw, field = userID, "user_id"
	}
	if isNull(raw) {
		return "", &api.SchemaError{Resource: "task", Field: "user", Reason: "missing owner"}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	var obj struct {
		ID       *int64 `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Username != "" {
			return obj.Username, nil
		}
		if obj.ID != nil {
			return strconv.FormatInt(*obj.ID, 10), nil
		}
	}
	return "", &api.SchemaError{Resource: "task", Field: field, Reason: "unrecognized owner shape"}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func optionalTime(resource, field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := parseTime(*v)
	if err != nil {
		return nil, &api.SchemaError{Resource: resource, Field: field, Reason: err.Error()}
	}
	return &t, nil
}

func decodeTask(body []byte) (*models.Task, error) {
	var w wireTask
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &api.SchemaError{Resource: "task", Reason: err.Error()}
	}
	return w.toTask()
}

// decodeList normalizes a bare JSON array and a {"results": [...]} envelope
// into the same ordered slice of raw items.
func decodeList(resource string, body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Results *[]json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &api.SchemaError{Resource: resource, Reason: err.Error()}
		}
		if env.Results == nil {
			return nil, &api.SchemaError{Resource: resource, Field: "results", Reason: "missing"}
		}
		return *env.Results, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, &api.SchemaError{Resource: resource, Reason: "expected a list or a results envelope"}
	}
	if items == nil {
		return nil, &api.SchemaError{Resource: resource, Reason: "null list"}
	}
	return items, nil
}

func decodeTasks(body []byte) ([]models.Task, error) {
	items, err := decodeList("task list", body)
	if err != nil {
		return nil, err
	}
	return tasksFromRaw(items)
}

func tasksFromRaw(items []json.RawMessage) ([]models.Task, error) {
	tasks := make([]models.Task, 0, len(items))
	for i, item := range items {
		t, err := decodeTask(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

type wireCategory struct {
	ID          *int64  `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       string  `json:"color"`
	CreatedAt   *string `json:"created_at"`
	UpdatedAt   *string `json:"updated_at"`
}

func decodeCategory(body []byte) (*models.Category, error) {
	const resource = "category"
	var w wireCategory
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &api.SchemaError{Resource: resource, Reason: err.Error()}
	}
	if w.ID == nil {
		return nil, &api.SchemaError{Resource: resource, Field: "id", Reason: "missing"}
	}
	if w.Name == nil {
		return nil, &api.SchemaError{Resource: resource, Field: "name", Reason: "missing"}
	}
	c := &models.Category{
		ID:    *w.ID,
		Name:  *w.Name,
		Color: w.Color,
	}
	if w.Description != nil {
		c.Description = *w.Description
	}
	created, err := optionalTime(resource, "created_at", w.CreatedAt)
	if err != nil {
		return nil, err
	}
	if created != nil {
		c.CreatedAt = *created
	}
	updated, err := optionalTime(resource, "updated_at", w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		c.UpdatedAt = *updated
	}
	return c, nil
}

func decodeCategories(body []byte) ([]models.Category, error) {
	items, err := decodeList("category list", body)
	if err != nil {
		return nil, err
	}
	categories := make([]models.Category, 0, len(items))
	for i, item := range items {
		c, err := decodeCategory(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		categories = append(categories, *c)
	}
	return categories, nil
}

var paginationKeys = []string{"page", "per_page", "total", "pages", "has_next", "has_prev"}

func decodeFilterResult(body []byte) (*models.FilterResult, error) {
	const resource = "filter result"
	var w struct {
		Tasks      *[]json.RawMessage `json:"tasks"`
		Pagination json.RawMessage    `json:"pagination"`
	}
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &api.SchemaError{Resource: resource, Reason: err.Error()}
	}
	if w.Tasks == nil {
		return nil, &api.SchemaError{Resource: resource, Field: "tasks", Reason: "missing"}
	}
	if isNull(w.Pagination) {
		return nil, &api.SchemaError{Resource: resource, Field: "pagination", Reason: "missing"}
	}
	var page models.Pagination
	if err := decodeObject(resource, w.Pagination, &page, paginationKeys...); err != nil {
		var se *api.SchemaError
		if errors.As(err, &se) && se.Field != "" {
			se.Field = "pagination." + se.Field
		}
		return nil, err
	}
	tasks, err := tasksFromRaw(*w.Tasks)
	if err != nil {
		return nil, err
	}
	return &models.FilterResult{Tasks: tasks, Pagination: page}, nil
}

// decodeObject unmarshals body into v after checking that every required
// key is present.
func decodeObject(resource string, body []byte, v interface{}, required ...string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return &api.SchemaError{Resource: resource, Reason: err.Error()}
	}
	for _, key := range required {
		if value, ok := raw[key]; !ok || isNull(value) {
			return &api.SchemaError{Resource: resource, Field: key, Reason: "missing"}
		}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &api.SchemaError{Resource: resource, Reason: err.Error()}
	}
	return nil
}
