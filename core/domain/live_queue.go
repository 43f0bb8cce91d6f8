package domain

import "time"

// QueueEntry is a scored comment waiting for dispatch. Fields are set once
// by the session at enqueue and never mutated afterwards.
type QueueEntry struct {
	Comment        Comment              `json:"comment"`
	Classification ClassificationResult `json:"classification"`
	Emotion        EmotionResult        `json:"emotion"`
	Priority       float64              `json:"priority"` // base priority, decay applied on read
	EnqueuedAt     time.Time            `json:"enqueued_at"`
	NormalizedText string               `json:"-"` // dedup key component
	Seq            uint64               `json:"seq"` // assigned by the queue, final tie-break
}

// ID returns the comment id.
func (e *QueueEntry) ID() string {
	return e.Comment.ID
}

// Age returns how long the entry has waited at now.
func (e *QueueEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.EnqueuedAt)
}

// EnqueueReason is the admission outcome reported by the queue.
type EnqueueReason string

const (
	ReasonAccepted    EnqueueReason = "accepted"
	ReasonEvicted     EnqueueReason = "accepted_evicted" // admitted, lowest entry dropped
	ReasonDuplicate   EnqueueReason = "duplicate"
	ReasonRateLimited EnqueueReason = "rate_limited"
	ReasonQueueFull   EnqueueReason = "queue_full"
	ReasonClosed      EnqueueReason = "closed"
)

// Accepted reports whether the reason is an admission.
func (r EnqueueReason) Accepted() bool {
	return r == ReasonAccepted || r == ReasonEvicted
}

// EnqueueResult carries the admission decision and any entry it displaced.
type EnqueueResult struct {
	Accepted bool
	Reason   EnqueueReason
	Evicted  *QueueEntry // set when a lower entry made room
}
