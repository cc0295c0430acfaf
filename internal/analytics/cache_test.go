package analytics

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/taskflow/internal/models"
	"github.com/fentz26/taskflow/internal/observability"
	"github.com/fentz26/taskflow/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeOverview struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeOverview) AnalyticsOverview(ctx context.Context) (*models.AnalyticsOverview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnalyticsOverview{TotalTasks: f.calls, CompletedTasks: 1}, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestCache(t *testing.T, st *store.Store, f OverviewFetcher, clock *fakeClock, opts ...CacheOption) *Cache {
	t.Helper()
	opts = append([]CacheOption{WithClock(clock.Now), WithCacheLogger(log.New(io.Discard, "", 0))}, opts...)
	return NewCache(f, st, opts...)
}

func TestCacheServesFreshValue(t *testing.T) {
	st := newTestStore(t)
	f := &fakeOverview{}
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	m := observability.NewMetrics("test")
	c := newTestCache(t, st, f, clock, WithCacheMetrics(m))
	ctx := context.Background()

	first, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	clock.t = clock.t.Add(4*time.Minute + 59*time.Second)
	second, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if f.calls != 1 {
		t.Errorf("Expected 1 fetch within TTL, got %d", f.calls)
	}
	if first.TotalTasks != second.TotalTasks {
		t.Errorf("Expected cached value, got %d then %d", first.TotalTasks, second.TotalTasks)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("Expected 1 hit, got %v", got)
	}
}

func TestCacheRefetchesWhenStale(t *testing.T) {
	st := newTestStore(t)
	f := &fakeOverview{}
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	c := newTestCache(t, st, f, clock)
	ctx := context.Background()

	c.Get(ctx)
	clock.t = clock.t.Add(DefaultTTL)
	got, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if f.calls != 2 || got.TotalTasks != 2 {
		t.Errorf("Expected a refetch at the TTL boundary, calls=%d total=%d", f.calls, got.TotalTasks)
	}
}

func TestCacheClearForcesFetch(t *testing.T) {
	st := newTestStore(t)
	f := &fakeOverview{}
	clock := &fakeClock{t: time.Now()}
	c := newTestCache(t, st, f, clock)
	ctx := context.Background()

	c.Get(ctx)
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	c.Get(ctx)
	if f.calls != 2 {
		t.Errorf("Expected fetch after clear, got %d calls", f.calls)
	}
}

func TestCacheFailedFetchKeepsPriorValue(t *testing.T) {
	st := newTestStore(t)
	f := &fakeOverview{}
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	c := newTestCache(t, st, f, clock)
	ctx := context.Background()

	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	before, _, _ := st.Get(store.KeyAnalyticsCacheTime)

	clock.t = clock.t.Add(10 * time.Minute)
	f.err = errors.New("backend down")
	if _, err := c.Get(ctx); err == nil || err.Error() != "backend down" {
		t.Fatalf("Expected fetch error to propagate, got %v", err)
	}

	value, ok, _ := st.Get(store.KeyAnalyticsCache)
	after, _, _ := st.Get(store.KeyAnalyticsCacheTime)
	if !ok || value == "" || before != after {
		t.Error("Failed fetch must not overwrite the cached entry")
	}

	// Rewinding into the window shows the old value is still served.
	clock.t = clock.t.Add(-9 * time.Minute)
	got, err := c.Get(ctx)
	if err != nil || got.TotalTasks != 1 {
		t.Errorf("Expected prior value, got %+v err=%v", got, err)
	}
}

func TestCacheSurvivesRestart(t *testing.T) {
	st := newTestStore(t)
	f := &fakeOverview{}
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	newTestCache(t, st, f, clock).Get(context.Background())

	clock.t = clock.t.Add(time.Minute)
	restarted := newTestCache(t, st, f, clock)
	if _, err := restarted.Get(context.Background()); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if f.calls != 1 {
		t.Errorf("Expected persisted entry to be reused, got %d calls", f.calls)
	}
}

func TestCacheCorruptEntryIsEmpty(t *testing.T) {
	st := newTestStore(t)
	f := &fakeOverview{}
	clock := &fakeClock{t: time.Now()}
	c := newTestCache(t, st, f, clock)

	st.SetMany(map[string]string{
		store.KeyAnalyticsCache:     "{not json",
		store.KeyAnalyticsCacheTime: "1700000000000",
	})
	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if f.calls != 1 {
		t.Errorf("Expected corrupt entry to trigger a fetch, got %d calls", f.calls)
	}

	st.Set(store.KeyAnalyticsCacheTime, "yesterday")
	c.Get(context.Background())
	if f.calls != 2 {
		t.Errorf("Expected corrupt timestamp to trigger a fetch, got %d calls", f.calls)
	}
}
