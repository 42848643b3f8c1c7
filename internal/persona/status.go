package persona

import (
	"context"
	"time"
)

// Status is a point-in-time health snapshot of the bot's core services.
// Serialized as-is by the status endpoint.
type Status struct {
	Uptime         string `json:"uptime"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	AIAvailable    bool   `json:"ai_available"`
	DBAvailable    bool   `json:"db_available"`
	ActiveSessions int    `json:"active_sessions"`
}

// Monitor answers status queries from the dashboard and the status command.
type Monitor struct {
	store     Store
	ai        Completer
	startedAt time.Time
}

// NewMonitor creates a Monitor; startedAt anchors the uptime clock.
func NewMonitor(store Store, ai Completer, startedAt time.Time) *Monitor {
	return &Monitor{store: store, ai: ai, startedAt: startedAt}
}

// Status collects the current snapshot. A failing session count reports as
// zero with DBAvailable false rather than failing the whole query.
func (m *Monitor) Status(ctx context.Context) Status {
	uptime := time.Since(m.startedAt)
	s := Status{
		Uptime:        uptime.Truncate(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		AIAvailable:   m.ai.Available(),
		DBAvailable:   m.store.Available(ctx),
	}

	if s.DBAvailable {
		if n, err := m.store.CountActive(ctx); err == nil {
			s.ActiveSessions = n
		} else {
			s.DBAvailable = false
		}
	}
	return s
}
