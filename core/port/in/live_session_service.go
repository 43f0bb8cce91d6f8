package in

import (
	"context"
	"time"

	"live_server/core/domain"
	"live_server/core/port/out"
	"live_server/pkg/metrics"
)

// SessionService manages livestream sessions and feeds comments into them.
type SessionService interface {
	StartSession(ctx context.Context, req *StartSessionRequest) (*SessionInfo, error)
	GetSession(ctx context.Context, id string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	EndSession(ctx context.Context, id string) error

	Ingest(ctx context.Context, sessionID string, comment *domain.Comment) (*IngestResult, error)
	Stats(ctx context.Context, sessionID string) (*SessionStats, error)
	Subscribe(ctx context.Context, sessionID string, topics ...domain.EventType) (out.Subscription, error)
}

type StartSessionRequest struct {
	Title  string            `json:"title"`
	HostID string            `json:"host_id"`
	Labels map[string]string `json:"labels,omitempty"`
}

type SessionInfo struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	HostID    string            `json:"host_id"`
	Labels    map[string]string `json:"labels,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   *time.Time        `json:"ended_at,omitempty"`
	Active    bool              `json:"active"`
	QueueLen  int               `json:"queue_len"`
}

// IngestResult is the admission decision for one comment.
type IngestResult struct {
	CommentID      string                      `json:"comment_id"`
	Accepted       bool                        `json:"accepted"`
	Reason         domain.EnqueueReason        `json:"reason"`
	Priority       float64                     `json:"priority"`
	Classification domain.ClassificationResult `json:"classification"`
	Emotion        domain.EmotionResult        `json:"emotion"`
	EvictedID      string                      `json:"evicted_id,omitempty"`
}

// SessionStats is a point-in-time view of one session.
type SessionStats struct {
	SessionID    string                          `json:"session_id"`
	QueueLen     int                             `json:"queue_len"`
	TrackedUsers int                             `json:"tracked_users"`
	InFlight     int                             `json:"in_flight"`
	Accepted     int64                           `json:"accepted"`
	Rejected     map[domain.EnqueueReason]int64  `json:"rejected"`
	Evicted      int64                           `json:"evicted"`
	Expired      int64                           `json:"expired"`
	Outcomes     map[domain.DispatchState]int64  `json:"outcomes"`
	Fallbacks    int64                           `json:"fallbacks"`
	Latency      map[string]metrics.LatencyStats `json:"latency"`
	Uptime       time.Duration                   `json:"uptime"`
}
