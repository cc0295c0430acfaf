package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func newBackends(t *testing.T, overviewCalls *atomic.Int32) (primary, secondary *httptest.Server) {
	t.Helper()
	pm := http.NewServeMux()
	pm.HandleFunc("/api/users/login/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"user":{"id":1,"username":"eon","email":"eon@example.com"},"tokens":{"access":"acc-1","refresh":"ref-1"}}`)
	})
	pm.HandleFunc("/api/tasks/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer acc-1" {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"Authentication credentials were not provided."}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"results":[{"id":1,"title":"Write report","priority":"high","status":"todo","user":"eon","created_at":"2024-01-01T10:00:00Z"}]}`)
	})

	sm := http.NewServeMux()
	sm.HandleFunc("/api/analytics/overview", func(w http.ResponseWriter, r *http.Request) {
		n := overviewCalls.Add(1)
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"total_tasks":%d,"completed_tasks":1,"overdue_tasks":0,"productivity_score":50,
			"status_distribution":{"todo":1},"priority_distribution":{"high":1},"daily_completion_rate":[],
			"weekly_trends":{"tasks_created":1,"tasks_completed":1,"completion_rate":100},
			"performance_metrics":{"average_completion_time_hours":1,"tasks_per_day":1,"efficiency_score":100}}`, n))
	})

	primary = httptest.NewServer(pm)
	secondary = httptest.NewServer(sm)
	t.Cleanup(primary.Close)
	t.Cleanup(secondary.Close)
	return primary, secondary
}

func TestCLIEndToEnd(t *testing.T) {
	var overviewCalls atomic.Int32
	primary, secondary := newBackends(t, &overviewCalls)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := fmt.Sprintf("primary_url: %s/api\nsecondary_url: %s/api\ndb_path: %s\n",
		primary.URL, secondary.URL, filepath.Join(dir, "taskflow.db"))
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	run := func(args ...string) (string, error) {
		var out, errOut bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&errOut)
		rootCmd.SetArgs(append(args, "--config", cfgPath, "--env-file", filepath.Join(dir, ".env")))
		err := rootCmd.Execute()
		return out.String(), err
	}

	if _, err := run("task", "list"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("Expected not-logged-in error, got %v", err)
	}

	out, err := run("login", "-u", "eon", "-p", "secret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out, "Logged in as eon") {
		t.Errorf("Unexpected login output %q", out)
	}

	out, err = run("task", "list")
	if err != nil {
		t.Fatalf("task list failed: %v", err)
	}
	if !strings.Contains(out, "Write report") || !strings.Contains(out, "high") {
		t.Errorf("Unexpected task list output %q", out)
	}

	// The overview is cached in the store across invocations.
	for i := 0; i < 2; i++ {
		out, err = run("analytics")
		if err != nil {
			t.Fatalf("analytics failed: %v", err)
		}
		if !strings.Contains(out, "Total tasks:        1") {
			t.Errorf("Unexpected analytics output %q", out)
		}
	}
	if overviewCalls.Load() != 1 {
		t.Errorf("Expected 1 overview fetch, got %d", overviewCalls.Load())
	}

	if _, err := run("logout"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := run("task", "list"); err == nil {
		t.Error("Expected task list to fail after logout")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nested", "config.yaml")
	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(append(args, "--config", cfgPath, "--env-file", filepath.Join(dir, ".env")))
		err := rootCmd.Execute()
		return out.String(), err
	}

	t.Setenv("TASKFLOW_PRIMARY_URL", "http://tasks.internal/api")
	if _, err := run("config", "init"); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("Expected config file to be written: %v", err)
	}
	if !strings.Contains(string(data), "primary_url: http://tasks.internal/api") {
		t.Errorf("Unexpected config file %s", data)
	}

	if _, err := run("config", "init"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected already-exists error, got %v", err)
	}

	t.Setenv("TASKFLOW_PRIMARY_URL", "http://tasks.other/api")
	if _, err := run("config", "init", "--force"); err != nil {
		t.Fatalf("config init --force failed: %v", err)
	}
	t.Setenv("TASKFLOW_PRIMARY_URL", "")
	out, err := run("config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "primary_url: http://tasks.other/api") {
		t.Errorf("Unexpected config show output %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("Expected short unchanged, got %q", got)
	}
	if got := truncate("a very long task title", 10); got != "a very ..." {
		t.Errorf("Expected truncated title, got %q", got)
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Errorf("Expected 42, got %d err=%v", id, err)
	}
	for _, bad := range []string{"0", "-1", "abc"} {
		if _, err := parseID(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}
