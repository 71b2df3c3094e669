package tripsync

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusUnknown      Status = "unknown"
)

// ConnectionStatus is the result of the most recent ping.
type ConnectionStatus struct {
	Status      Status    `json:"status"`
	LastChecked time.Time `json:"lastChecked"`
	Error       string    `json:"error,omitempty"`
}

// Pinger performs the cheapest authenticated read the server offers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Refresher renews the auth session.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Connection pings the server and remembers the answer in storage, so the
// cooldown holds across restarts.
type Connection struct {
	env     Env
	api     Pinger
	session Refresher
}

func NewConnection(env Env, api Pinger, session Refresher) *Connection {
	return &Connection{env: env.withDefaults(), api: api, session: session}
}

// Network returns the monitor the connection reports into.
func (c *Connection) Network() *Monitor {
	return c.env.Network
}

// Status returns the stored result without probing. It is StatusUnknown
// until the first ping.
func (c *Connection) Status() ConnectionStatus {
	if st, ok := c.load(); ok {
		return st
	}
	return ConnectionStatus{Status: StatusUnknown}
}

// CheckConnection pings the server. Unless force is set, a result younger
// than the cooldown is returned as stored, including its LastChecked.
func (c *Connection) CheckConnection(ctx context.Context, force bool) ConnectionStatus {
	now := c.env.Clock.Now()
	if !force {
		if st, ok := c.load(); ok && st.Status != StatusUnknown && now.Sub(st.LastChecked) < c.env.Policy.ConnectionCooldown {
			return st
		}
	}

	st := ConnectionStatus{Status: StatusConnected, LastChecked: now}
	if err := c.api.Ping(ctx); err != nil {
		st.Status = StatusDisconnected
		st.Error = err.Error()
		c.env.Logger.Debug("connection ping failed", slog.String("error", err.Error()))
		if transient(err) {
			c.env.Network.Set(false)
		}
	} else {
		c.env.Network.Set(true)
	}
	c.save(st)
	return st
}

// AttemptReconnect refreshes the session and pings once. It reports true
// only if both succeed; it never retries on its own.
func (c *Connection) AttemptReconnect(ctx context.Context) bool {
	if err := c.session.Refresh(ctx); err != nil {
		c.env.Logger.Info("reconnect: session refresh failed", slog.String("error", err.Error()))
		return false
	}
	if err := c.api.Ping(ctx); err != nil {
		c.env.Logger.Info("reconnect: ping failed", slog.String("error", err.Error()))
		return false
	}
	c.env.Network.Set(true)
	c.save(ConnectionStatus{Status: StatusConnected, LastChecked: c.env.Clock.Now()})
	return true
}

// Watch force-pings every interval until ctx is done, keeping the network
// monitor current for the other components.
func (c *Connection) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckConnection(ctx, true)
		}
	}
}

func (c *Connection) load() (ConnectionStatus, bool) {
	var st ConnectionStatus
	raw, ok := c.env.Store.Get(connectionKey)
	if !ok {
		return st, false
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return st, false
	}
	return st, true
}

func (c *Connection) save(st ConnectionStatus) {
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	c.env.Store.Set(connectionKey, string(data))
}
