package service

import (
	"context"
	"time"
)

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusUp       = "up"
	StatusDown     = "down"
)

// HealthReport is the result of a liveness and database check.
type HealthReport struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Backend   BackendHealth  `json:"backend"`
	Database  DatabaseHealth `json:"database"`
}

// BackendHealth describes the running process.
type BackendHealth struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// DatabaseHealth describes the store round-trip.
type DatabaseHealth struct {
	Status         string `json:"status"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
	Error          string `json:"error,omitempty"`
}

// OK reports whether every component is up.
func (h HealthReport) OK() bool {
	return h.Status == StatusOK
}

// Health pings the store and reports. A failed ping degrades the report; it
// is never returned as an error.
func (s *Service) Health(ctx context.Context) HealthReport {
	start := s.now()
	err := s.store.Ping(ctx)
	end := s.now()

	report := HealthReport{
		Status:    StatusOK,
		Timestamp: end.UTC(),
		Backend: BackendHealth{
			Status:        StatusUp,
			UptimeSeconds: int64(end.Sub(s.startedAt) / time.Second),
		},
		Database: DatabaseHealth{
			Status:         StatusUp,
			ResponseTimeMs: end.Sub(start).Milliseconds(),
		},
	}
	if err != nil {
		s.logger.WarnContext(ctx, "database health check failed", "error", err)
		report.Status = StatusDegraded
		report.Database.Status = StatusDown
		report.Database.Error = err.Error()
	}
	return report
}
