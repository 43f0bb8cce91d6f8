package domain

import "time"

// DispatchState tracks a popped entry through the tier pipelines.
type DispatchState string

const (
	StateReady       DispatchState = "READY"
	StateDispatching DispatchState = "DISPATCHING"
	StateCompleted   DispatchState = "COMPLETED"
	StateTimedOut    DispatchState = "TIMED_OUT"
	StateFailed      DispatchState = "FAILED"
	StateCancelled   DispatchState = "CANCELLED" // session ended mid-dispatch
)

// IsTerminal reports whether no further transition can happen.
func (s DispatchState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateTimedOut, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Response is what a response pipeline produced for an entry.
type Response struct {
	Text     string       `json:"text"`
	Tier     ResponseTier `json:"tier"`
	Model    string       `json:"model,omitempty"`
	Template string       `json:"template,omitempty"`
}

// TierAttempt records one pipeline call.
type TierAttempt struct {
	Tier     ResponseTier  `json:"tier"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// DispatchOutcome is the terminal result for one popped entry.
type DispatchOutcome struct {
	Entry        QueueEntry    `json:"entry"`
	State        DispatchState `json:"state"`
	OriginalTier ResponseTier  `json:"original_tier"`
	FinalTier    ResponseTier  `json:"final_tier"`
	Response     *Response     `json:"response,omitempty"`
	Attempts     []TierAttempt `json:"attempts"`
	OverBudget   bool          `json:"over_budget,omitempty"` // template answered after its budget
	Err          error         `json:"-"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// FellBack reports whether the final tier differs from the routed tier.
func (o *DispatchOutcome) FellBack() bool {
	return o.FinalTier != "" && o.FinalTier != o.OriginalTier
}
