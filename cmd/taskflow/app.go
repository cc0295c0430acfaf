package main

import (
	"fmt"
	"io"
	"log"

	"github.com/fentz26/taskflow/internal/analytics"
	"github.com/fentz26/taskflow/internal/api"
	"github.com/fentz26/taskflow/internal/auth"
	"github.com/fentz26/taskflow/internal/backend"
	"github.com/fentz26/taskflow/internal/config"
	"github.com/fentz26/taskflow/internal/observability"
	"github.com/fentz26/taskflow/internal/store"
	"github.com/spf13/cobra"
)

// app holds the wired client core for one command invocation.
type app struct {
	cfg     *config.Config
	store   *store.Store
	metrics *observability.Metrics
	session *auth.Manager
	router  *backend.Router
	cache   *analytics.Cache
	poller  *analytics.Poller
	logger  *log.Logger
}

// openApp loads configuration and wires the session, gateway clients,
// router, cache and poller. Callers must Close it.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	logger := log.New(cmd.ErrOrStderr(), "taskflow: ", log.LstdFlags)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	errOut := cmd.ErrOrStderr()
	clientOpts := []api.Option{
		api.WithTimeout(cfg.RequestTimeout),
		api.WithMetrics(metrics),
		api.WithLogger(logger),
		api.WithUnauthorizedHook(func() { promptLogin(errOut) }),
	}
	primary := api.NewClient("primary", cfg.PrimaryURL, clientOpts...)
	secondary := api.NewClient("secondary", cfg.SecondaryURL, clientOpts...)

	session, err := auth.NewManager(st, primary, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	session.Attach(primary, secondary)

	router := backend.New(primary, secondary)
	return &app{
		cfg:     cfg,
		store:   st,
		metrics: metrics,
		session: session,
		router:  router,
		cache: analytics.NewCache(router, st,
			analytics.WithTTL(cfg.CacheTTL),
			analytics.WithCacheMetrics(metrics),
			analytics.WithCacheLogger(logger)),
		poller: analytics.NewPoller(router, metrics, logger),
		logger: logger,
	}, nil
}

// Close stops polling and closes the store.
func (a *app) Close() error {
	a.poller.Close()
	return a.store.Close()
}

// requireLogin fails fast when no session is present.
func (a *app) requireLogin() error {
	if !a.session.IsAuthenticated() {
		return fmt.Errorf("not logged in; run `taskflow login` first")
	}
	return nil
}

// promptLogin is the navigation to the login entry point after a forced logout.
func promptLogin(w io.Writer) {
	fmt.Fprintln(w, "Your session has expired. Run `taskflow login` to sign in again.")
}

// withApp opens the app, optionally checks the session, runs fn and closes.
func withApp(cmd *cobra.Command, needLogin bool, fn func(a *app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if needLogin {
		if err := a.requireLogin(); err != nil {
			return err
		}
	}
	return fn(a)
}
