package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/taskflow/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeCreds is an in-memory CredentialSource.
type fakeCreds struct {
	mu      sync.Mutex
	header  string
	expired int
}

func (f *fakeCreds) AuthorizationHeader() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.header
}

func (f *fakeCreds) Expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.header = ""
	f.expired++
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *fakeCreds) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)
	c := NewClient("primary", srv.URL+"/api/", opts...)
	creds := &fakeCreds{header: "Bearer tok-1"}
	c.SetCredentials(creds)
	return c, creds
}

func TestDoAttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotReqID, gotPath, gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	})

	body, err := c.Do(context.Background(), http.MethodGet, "/tasks/search/", url.Values{"q": {"a b"}}, nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(body) != "[]" {
		t.Errorf("Unexpected body %q", body)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Expected bearer header, got %q", gotAuth)
	}
	if gotReqID == "" {
		t.Error("Expected X-Request-ID to be set")
	}
	if gotPath != "/api/tasks/search/" {
		t.Errorf("Unexpected path %q", gotPath)
	}
	if gotQuery != "q=a+b" {
		t.Errorf("Unexpected query %q", gotQuery)
	}
}

func TestDoWithoutCredentialSendsNoHeader(t *testing.T) {
	var gotAuth string
	c, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	})
	creds.header = ""

	if _, err := c.Do(context.Background(), http.MethodGet, "/tasks/", nil, nil); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Expected no Authorization header, got %q", gotAuth)
	}
}

func TestUnauthorizedExpiresSessionAndFiresHook(t *testing.T) {
	var headers []string
	var mu sync.Mutex
	redirects := 0
	m := observability.NewMetrics("test")

	c, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = append(headers, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Given token not valid"}`))
	}, WithUnauthorizedHook(func() { redirects++ }), WithMetrics(m))

	_, err := c.Do(context.Background(), http.MethodGet, "/tasks/", nil, nil)
	if !errors.Is(err, ErrAuthorizationExpired) {
		t.Fatalf("Expected ErrAuthorizationExpired, got %v", err)
	}
	if creds.expired != 1 {
		t.Errorf("Expected session to be expired once, got %d", creds.expired)
	}
	if redirects != 1 {
		t.Errorf("Expected redirect hook to fire once, got %d", redirects)
	}
	if got := testutil.ToFloat64(m.ForcedLogouts); got != 1 {
		t.Errorf("Expected 1 forced logout, got %v", got)
	}

	// The next call carries no residual credential.
	c.Do(context.Background(), http.MethodGet, "/tasks/", nil, nil)
	if len(headers) != 2 || headers[1] != "" {
		t.Errorf("Expected second call without Authorization, got %v", headers)
	}
}

func TestDoPublicSkipsCredentialAndPolicy(t *testing.T) {
	var gotAuth string
	c, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.DoPublic(context.Background(), http.MethodPost, "/users/login/", map[string]string{"username": "a"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 StatusError, got %v", err)
	}
	if errors.Is(err, ErrAuthorizationExpired) {
		t.Error("Public call must not report authorization expiry")
	}
	if gotAuth != "" {
		t.Errorf("Expected no Authorization header, got %q", gotAuth)
	}
	if creds.expired != 0 {
		t.Error("Public call must not clear the session")
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "drf field errors",
			status: http.StatusBadRequest,
			body:   `{"username":["A user with that username already exists."],"password":["Too short.","Too common."]}`,
			check: func(t *testing.T, err error) {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Expected ValidationError, got %v", err)
				}
				if verr.Fields["username"] != "A user with that username already exists." {
					t.Errorf("Unexpected username message %q", verr.Fields["username"])
				}
				if verr.Fields["password"] != "Too short.; Too common." {
					t.Errorf("Unexpected password message %q", verr.Fields["password"])
				}
			},
		},
		{
			name:   "flask error message",
			status: http.StatusBadRequest,
			body:   `{"error":"Invalid start_date format"}`,
			check: func(t *testing.T, err error) {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Expected ValidationError, got %v", err)
				}
				if len(verr.Fields) != 0 || verr.Message != "Invalid start_date format" {
					t.Errorf("Unexpected validation error %+v", verr)
				}
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{"error":"Resource not found"}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Expected ErrNotFound, got %v", err)
				}
				if errors.Is(err, ErrServer) {
					t.Error("404 must not be a server error")
				}
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error":"Internal server error"}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrServer) {
					t.Errorf("Expected ErrServer, got %v", err)
				}
			},
		},
		{
			name:   "forbidden is a plain status error",
			status: http.StatusForbidden,
			body:   `nope`,
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.Message != "nope" {
					t.Errorf("Expected StatusError with body message, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
			tt.check(t, err)
			if creds.expired != 0 {
				t.Error("Only 401 may clear the session")
			}
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	c := NewClient("secondary", baseURL)
	_, err := c.Do(context.Background(), http.MethodGet, "/tasks/stats", nil, nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Expected ErrNetwork, got %v", err)
	}
	var netErr *NetworkError
	if !errors.As(err, &netErr) || netErr.Op != "GET /tasks/stats" {
		t.Errorf("Unexpected network error %v", err)
	}
}

func TestRequestBodyIsJSON(t *testing.T) {
	var gotType string
	var gotBody []byte
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	})

	if _, err := c.Do(context.Background(), http.MethodPost, "/tasks/", nil, map[string]string{"title": "x"}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if gotType != "application/json" {
		t.Errorf("Unexpected content type %q", gotType)
	}
	if string(gotBody) != `{"title":"x"}` {
		t.Errorf("Unexpected body %s", gotBody)
	}
}

func TestWithTimeout(t *testing.T) {
	if c := NewClient("primary", "http://localhost", WithTimeout(0)); c.httpClient.Timeout != DefaultClientTimeout {
		t.Errorf("Expected default timeout, got %v", c.httpClient.Timeout)
	}

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithTimeout(50*time.Millisecond))
	if c.httpClient.Timeout != 50*time.Millisecond {
		t.Fatalf("Expected 50ms timeout, got %v", c.httpClient.Timeout)
	}
	if _, err := c.Do(context.Background(), http.MethodGet, "/tasks/", nil, nil); !errors.Is(err, ErrNetwork) {
		t.Errorf("Expected ErrNetwork on timeout, got %v", err)
	}
}
