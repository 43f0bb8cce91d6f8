package metrics

import (
	"database/sql"
	"time"
)

// PoolHealthStatus indicates the health of the analytics connection pool.
type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

// PoolHealth is reported by the readiness endpoint.
type PoolHealth struct {
	Status      PoolHealthStatus `json:"status"`
	Open        int              `json:"open"`
	InUse       int              `json:"in_use"`
	Utilization float64          `json:"utilization"`
	WaitCount   int64            `json:"wait_count"`
	Message     string           `json:"message,omitempty"`
}

// AssessPool grades a database/sql pool by utilization and accumulated wait.
func AssessPool(db *sql.DB) PoolHealth {
	if db == nil {
		return PoolHealth{Status: PoolHealthy, Message: "no pool"}
	}
	return assess(db.Stats())
}

func assess(s sql.DBStats) PoolHealth {
	h := PoolHealth{
		Status:    PoolHealthy,
		Open:      s.OpenConnections,
		InUse:     s.InUse,
		WaitCount: s.WaitCount,
	}
	if s.MaxOpenConnections > 0 {
		h.Utilization = float64(s.InUse) / float64(s.MaxOpenConnections)
	}

	switch {
	case h.Utilization >= 0.95:
		h.Status, h.Message = PoolUnhealthy, "pool nearly exhausted"
	case h.Utilization >= 0.80:
		h.Status, h.Message = PoolDegraded, "high pool utilization"
	}
	if s.WaitCount > 0 && s.WaitDuration > 5*time.Second && h.Status == PoolHealthy {
		h.Status, h.Message = PoolDegraded, "elevated connection wait times"
	}
	return h
}
