package auth

import (
	"context"
	"testing"
	"time"
)

func TestNewRenewerRejectsBadInterval(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	if _, err := NewRenewer(m, 0, time.Minute); err == nil {
		t.Error("Expected error for zero interval")
	}
}

func TestRenewerDue(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	r, err := NewRenewer(m, time.Minute, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewRenewer failed: %v", err)
	}

	if r.due() {
		t.Error("Nothing to renew while logged out")
	}

	if _, err := m.Login(context.Background(), "eon", "s3cret-pass"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	expiry := m.Token().Expiry

	r.now = func() time.Time { return expiry.Add(-time.Hour) }
	if r.due() {
		t.Error("Token an hour from expiry is not due")
	}

	r.now = func() time.Time { return expiry.Add(-time.Minute) }
	if !r.due() {
		t.Error("Token a minute from expiry should be due")
	}
}

func TestRenewerRefreshesWhenDue(t *testing.T) {
	m, _, fb, _ := newTestManager(t)
	if _, err := m.Login(context.Background(), "eon", "s3cret-pass"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	r, err := NewRenewer(m, time.Minute, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewRenewer failed: %v", err)
	}

	before := m.AuthorizationHeader()
	r.renew()
	if fb.refreshCalls != 0 {
		t.Errorf("Expected no refresh for a fresh token, got %d", fb.refreshCalls)
	}

	expiry := m.Token().Expiry
	r.now = func() time.Time { return expiry }
	r.renew()
	if fb.refreshCalls != 1 {
		t.Errorf("Expected one refresh, got %d", fb.refreshCalls)
	}
	if m.AuthorizationHeader() == before {
		t.Error("Expected renewed credential")
	}
}

func TestRenewerStartStop(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	r, err := NewRenewer(m, time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("NewRenewer failed: %v", err)
	}
	r.Start()
	r.Stop()
}
