package dto

import "time"

// BreakerStatusResponse is one circuit breaker in the health report.
type BreakerStatusResponse struct {
	Name                 string     `json:"name"`
	State                string     `json:"state"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	Rejected             int64      `json:"rejected"`
	OpenedAt             *time.Time `json:"opened_at,omitempty"`
}

type HealthResponse struct {
	Status   string                  `json:"status"`
	Breakers []BreakerStatusResponse `json:"breakers"`
}
