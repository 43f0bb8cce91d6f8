package domain

import "time"

// EventType names an analytics topic.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventSessionEnded   EventType = "session_ended"
	EventEnqueued       EventType = "enqueued"
	EventRejected       EventType = "rejected"
	EventEvicted        EventType = "evicted"
	EventExpired        EventType = "expired"
	EventDispatched     EventType = "dispatched"
	EventFallback       EventType = "fallback"
	EventCompleted      EventType = "completed"
	EventFailed         EventType = "failed"
	EventCancelled      EventType = "cancelled"
)

// AllEventTypes lists every topic.
var AllEventTypes = []EventType{
	EventSessionStarted, EventSessionEnded,
	EventEnqueued, EventRejected, EventEvicted, EventExpired,
	EventDispatched, EventFallback, EventCompleted, EventFailed, EventCancelled,
}

// Event is a fire-and-forget analytics record.
type Event struct {
	ID        int64          `json:"id"` // snowflake, assigned by the bus
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	CommentID string         `json:"comment_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Platform  Platform       `json:"platform,omitempty"`
	Tier      ResponseTier   `json:"tier,omitempty"`
	FromTier  ResponseTier   `json:"from_tier,omitempty"`
	ToTier    ResponseTier   `json:"to_tier,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Priority  float64        `json:"priority,omitempty"`
	Latency   time.Duration  `json:"latency,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}

// NewEntryEvent fills the comment fields of an event from an entry.
func NewEntryEvent(t EventType, sessionID string, e *QueueEntry, at time.Time) Event {
	return Event{
		Type:      t,
		SessionID: sessionID,
		CommentID: e.Comment.ID,
		UserID:    e.Comment.UserID,
		Platform:  e.Comment.Platform,
		Tier:      e.Classification.Tier,
		Priority:  e.Priority,
		At:        at,
	}
}
