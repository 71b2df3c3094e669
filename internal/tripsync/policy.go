// Package tripsync keeps the tripsync client usable on a flaky connection.
//
// Reads are served cache-first from local storage and fall back to the last
// snapshot when the server cannot be reached. Mutations made while offline
// wait in a persistent queue until the connection returns. Every tunable
// lives in Policy; every timer goes through Clock so tests can drive time.
package tripsync

import (
	"log/slog"
	"time"
)

// Policy holds every timing and retry constant of the sync layer.
type Policy struct {
	// ConnectionCooldown is how long a ping result is reused without
	// probing again.
	ConnectionCooldown time.Duration

	TripCacheTTL     time.Duration
	TripFetchTimeout time.Duration

	DashboardCacheTTL        time.Duration
	DashboardRefreshInterval time.Duration
	MaxDashboardAttempts     int
	// DashboardBackoffBase is multiplied by 2^attempt between retries.
	DashboardBackoffBase    time.Duration
	BackgroundRetryInterval time.Duration

	QueueMaxRetries      int
	QueueBackoffBase     time.Duration
	QueueProcessInterval time.Duration

	// CacheVersion tags every snapshot; a mismatch makes the snapshot stale.
	CacheVersion string
}

// DefaultPolicy returns the production settings.
func DefaultPolicy() Policy {
	return Policy{
		ConnectionCooldown:       30 * time.Second,
		TripCacheTTL:             30 * time.Second,
		TripFetchTimeout:         10 * time.Second,
		DashboardCacheTTL:        5 * time.Minute,
		DashboardRefreshInterval: 5 * time.Minute,
		MaxDashboardAttempts:     3,
		DashboardBackoffBase:     time.Second,
		BackgroundRetryInterval:  30 * time.Second,
		QueueMaxRetries:          5,
		QueueBackoffBase:         5 * time.Second,
		QueueProcessInterval:     time.Minute,
		CacheVersion:             "v2",
	}
}

func (p Policy) dashboardBackoff(attempt int) time.Duration {
	return p.DashboardBackoffBase << attempt
}

// queueBackoff is the wait after an operation's latest failed attempt.
func (p Policy) queueBackoff(retryCount int) time.Duration {
	return p.QueueBackoffBase << retryCount
}

// Env is what every sync component shares.
type Env struct {
	Store   Storage
	Network *Monitor
	Clock   Clock
	Policy  Policy
	Logger  *slog.Logger
}

// withDefaults fills the zero fields. A zero Policy means DefaultPolicy.
func (e Env) withDefaults() Env {
	if e.Network == nil {
		e.Network = NewMonitor(true)
	}
	if e.Clock == nil {
		e.Clock = SystemClock()
	}
	if e.Policy == (Policy{}) {
		e.Policy = DefaultPolicy()
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	return e
}
