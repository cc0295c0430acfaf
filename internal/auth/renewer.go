package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Renewer refreshes the credential in the background shortly before it lapses.
type Renewer struct {
	cron    *cron.Cron
	manager *Manager
	window  time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewRenewer checks every interval whether the access token expires within
// window and refreshes it if so.
func NewRenewer(m *Manager, interval, window time.Duration) (*Renewer, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	r := &Renewer{
		cron:    cron.New(),
		manager: m,
		window:  window,
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	if _, err := r.cron.AddFunc("@every "+interval.String(), r.renew); err != nil {
		return nil, fmt.Errorf("schedule renewal: %w", err)
	}
	return r, nil
}

// Start begins the background checks.
func (r *Renewer) Start() {
	r.cron.Start()
}

// Stop waits for a running check to finish and stops the schedule.
func (r *Renewer) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// due reports whether the current credential should be renewed now.
func (r *Renewer) due() bool {
	tok := r.manager.Token()
	if tok == nil || tok.RefreshToken == "" || tok.Expiry.IsZero() {
		return false
	}
	return tok.Expiry.Sub(r.now()) <= r.window
}

func (r *Renewer) renew() {
	if !r.due() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.manager.Refresh(ctx); err != nil {
		r.manager.logger.Printf("Error renewing credential: %v", err)
		return
	}
	r.manager.logger.Printf("Credential renewed")
}
