// Package dispatch routes popped queue entries to the response pipelines,
// enforcing a latency budget per tier and falling back down the tier chain.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"live_server/core/domain"
	"live_server/core/port/out"
	"live_server/pkg/apperr"
	"live_server/pkg/metrics"
)

// =============================================================================
// Budgets
// =============================================================================

// Budgets are per-tier deadlines. The template tier has a soft budget that
// is only reported, plus a hard limit after which the call is abandoned.
type Budgets struct {
	Template          time.Duration
	TemplateHardLimit time.Duration
	Quick             time.Duration
	Full              time.Duration
}

func DefaultBudgets() Budgets {
	return Budgets{
		Template:          50 * time.Millisecond,
		TemplateHardLimit: 500 * time.Millisecond,
		Quick:             500 * time.Millisecond,
		Full:              2000 * time.Millisecond,
	}
}

// For returns the soft and hard budget of tier.
func (b Budgets) For(tier domain.ResponseTier) (soft, hard time.Duration) {
	switch tier {
	case domain.TierTemplate:
		hard = b.TemplateHardLimit
		if hard < b.Template {
			hard = b.Template
		}
		return b.Template, hard
	case domain.TierQuick:
		return b.Quick, b.Quick
	default:
		return b.Full, b.Full
	}
}

// =============================================================================
// TierDispatcher
// =============================================================================

// TierDispatcher resolves one entry at a time:
//
//	READY -> DISPATCHING -> COMPLETED | TIMED_OUT | FAILED | CANCELLED
//
// TIER3_FULL falls back to TIER2_QUICK, which falls back to TIER1_TEMPLATE.
// Timeouts and errors trigger the same fallback. An entry handed to Dispatch
// always yields exactly one terminal outcome.
type TierDispatcher struct {
	sessionID string
	responder out.ResponseGenerator
	budgets   Budgets
	publisher out.EventPublisher
	metrics   *metrics.Engine
	latency   *metrics.LatencyRegistry
	clock     func() time.Time
	log       zerolog.Logger
}

type Option func(*TierDispatcher)

func WithSessionID(id string) Option {
	return func(d *TierDispatcher) { d.sessionID = id }
}

func WithPublisher(p out.EventPublisher) Option {
	return func(d *TierDispatcher) { d.publisher = p }
}

func WithMetrics(m *metrics.Engine) Option {
	return func(d *TierDispatcher) { d.metrics = m }
}

// WithLatency records successful attempt durations per tier.
func WithLatency(r *metrics.LatencyRegistry) Option {
	return func(d *TierDispatcher) { d.latency = r }
}

func WithClock(clock func() time.Time) Option {
	return func(d *TierDispatcher) { d.clock = clock }
}

func WithLogger(log zerolog.Logger) Option {
	return func(d *TierDispatcher) { d.log = log }
}

func NewTierDispatcher(responder out.ResponseGenerator, budgets Budgets, opts ...Option) *TierDispatcher {
	d := &TierDispatcher{
		responder: responder,
		budgets:   budgets,
		publisher: out.NopPublisher{},
		clock:     time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With().Str("component", "tier_dispatcher").Str("session_id", d.sessionID).Logger()
	return d
}

// Dispatch runs the fallback chain for entry. ctx is the session context:
// once it is done the entry resolves as CANCELLED without a response.
func (d *TierDispatcher) Dispatch(ctx context.Context, entry domain.QueueEntry) domain.DispatchOutcome {
	orig := entry.Classification.Tier
	if !orig.IsValid() {
		orig = domain.TierQuick
	}

	outcome := domain.DispatchOutcome{
		Entry:        entry,
		State:        domain.StateDispatching,
		OriginalTier: orig,
		StartedAt:    d.clock(),
	}
	d.publishEntry(domain.EventDispatched, &entry, func(ev *domain.Event) {
		ev.Tier = orig
	})

	var (
		tier     = orig
		lastErr  error
		timedOut bool
	)
	for {
		if ctx.Err() != nil {
			return d.finish(&outcome, domain.StateCancelled, ctx.Err())
		}

		resp, attempt, overBudget, err := d.attempt(ctx, entry, tier)
		outcome.Attempts = append(outcome.Attempts, attempt)

		if err == nil {
			outcome.FinalTier = tier
			outcome.Response = resp
			outcome.OverBudget = overBudget
			return d.finish(&outcome, domain.StateCompleted, nil)
		}
		if ctx.Err() != nil {
			return d.finish(&outcome, domain.StateCancelled, ctx.Err())
		}

		lastErr, timedOut = err, attempt.TimedOut
		next, ok := tier.Fallback()
		if !ok {
			break
		}
		d.fallback(&entry, orig, tier, next, err)
		tier = next
	}

	outcome.FinalTier = tier
	state := domain.StateFailed
	if timedOut {
		state = domain.StateTimedOut
	}
	return d.finish(&outcome, state, apperr.Exhausted(entry.ID(), len(outcome.Attempts), lastErr))
}

type attemptResult struct {
	resp *domain.Response
	err  error
}

// attempt calls one pipeline under its hard deadline. The responder runs in
// its own goroutine so a responder that ignores ctx cannot stall the chain.
func (d *TierDispatcher) attempt(ctx context.Context, entry domain.QueueEntry, tier domain.ResponseTier) (*domain.Response, domain.TierAttempt, bool, error) {
	soft, hard := d.budgets.For(tier)
	actx, cancel := context.WithTimeout(ctx, hard)
	defer cancel()

	start := time.Now()
	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: fmt.Errorf("responder panic: %v", r)}
			}
		}()
		resp, err := d.responder.Dispatch(actx, entry, tier)
		done <- attemptResult{resp: resp, err: err}
	}()

	var res attemptResult
	select {
	case res = <-done:
	case <-actx.Done():
		res.err = actx.Err()
	}
	elapsed := time.Since(start)

	attempt := domain.TierAttempt{Tier: tier, Duration: elapsed}
	d.metrics.ObserveAttempt(string(tier), elapsed.Seconds())

	if res.err == nil && res.resp == nil {
		res.err = errors.New("empty response")
	}
	if res.err != nil {
		var err error
		switch {
		case ctx.Err() != nil:
			err = ctx.Err()
		case errors.Is(res.err, context.DeadlineExceeded):
			attempt.TimedOut = true
			err = apperr.DispatchTimeout(string(tier), hard)
		default:
			err = apperr.DispatchFailure(string(tier), res.err)
		}
		attempt.Err = err.Error()
		return nil, attempt, false, err
	}

	if d.latency != nil {
		d.latency.Record(string(tier), elapsed)
	}
	if res.resp.Tier == "" {
		res.resp.Tier = tier
	}

	overBudget := elapsed > soft
	if overBudget {
		d.log.Warn().
			Str("entry_id", entry.ID()).
			Str("tier", string(tier)).
			Dur("elapsed", elapsed).
			Dur("budget", soft).
			Msg("response over budget")
	}
	return res.resp, attempt, overBudget, nil
}

func (d *TierDispatcher) fallback(entry *domain.QueueEntry, orig, from, to domain.ResponseTier, cause error) {
	d.log.Warn().
		Str("entry_id", entry.ID()).
		Str("original_tier", string(orig)).
		Str("from_tier", string(from)).
		Str("to_tier", string(to)).
		Str("reason", cause.Error()).
		Msg("tier fallback")

	d.metrics.Fallback(string(from), string(to))
	d.publishEntry(domain.EventFallback, entry, func(ev *domain.Event) {
		ev.Tier = orig
		ev.FromTier = from
		ev.ToTier = to
		ev.Reason = cause.Error()
	})
}

func (d *TierDispatcher) finish(o *domain.DispatchOutcome, state domain.DispatchState, err error) domain.DispatchOutcome {
	o.State = state
	o.Err = err
	o.FinishedAt = d.clock()
	latency := o.FinishedAt.Sub(o.StartedAt)

	var evType domain.EventType
	switch state {
	case domain.StateCompleted:
		evType = domain.EventCompleted
		d.log.Debug().
			Str("entry_id", o.Entry.ID()).
			Str("original_tier", string(o.OriginalTier)).
			Str("final_tier", string(o.FinalTier)).
			Int("attempts", len(o.Attempts)).
			Msg("dispatch completed")
	case domain.StateCancelled:
		evType = domain.EventCancelled
		d.log.Debug().Str("entry_id", o.Entry.ID()).Msg("dispatch cancelled")
	default:
		evType = domain.EventFailed
		d.log.Error().
			Err(err).
			Str("entry_id", o.Entry.ID()).
			Str("original_tier", string(o.OriginalTier)).
			Str("final_tier", string(o.FinalTier)).
			Str("state", string(state)).
			Msg("dispatch exhausted")
	}

	d.metrics.Dispatched(string(o.OriginalTier), string(state))
	d.publishEntry(evType, &o.Entry, func(ev *domain.Event) {
		ev.Tier = o.OriginalTier
		ev.ToTier = o.FinalTier
		ev.Latency = latency
		if err != nil {
			ev.Reason = err.Error()
		}
		if o.Response != nil {
			ev.Data = map[string]any{"text": o.Response.Text, "over_budget": o.OverBudget}
		}
	})
	return *o
}

func (d *TierDispatcher) publishEntry(t domain.EventType, e *domain.QueueEntry, fill func(*domain.Event)) {
	ev := domain.NewEntryEvent(t, d.sessionID, e, d.clock())
	if fill != nil {
		fill(&ev)
	}
	d.publisher.Publish(ev)
}
