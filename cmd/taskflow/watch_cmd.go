package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fentz26/taskflow/internal/auth"
	"github.com/fentz26/taskflow/internal/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Launch the live-stats dashboard",
	RunE:  runWatch,
}

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Polling interval (defaults to poll_interval from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, true, func(a *app) error {
		interval := a.cfg.PollInterval
		if watchInterval > 0 {
			interval = watchInterval
		}

		renewer, err := auth.NewRenewer(a.session, a.cfg.RenewInterval, a.cfg.RenewWindow)
		if err != nil {
			return err
		}
		renewer.Start()
		defer renewer.Stop()

		if a.cfg.MetricsAddr != "" {
			srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: metricsMux(a)}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Printf("Metrics server error: %v", err)
				}
			}()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
		}

		username := ""
		if u := a.session.User(); u != nil {
			username = u.Username
		}
		app := tui.New(a.router, a.cache, username)
		if err := app.Run(a.poller, interval); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	})
}

func metricsMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	return mux
}
