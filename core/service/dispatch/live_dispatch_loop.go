package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"live_server/core/domain"
)

// Source is the consumer side of a comment queue.
type Source interface {
	PopHighest() (domain.QueueEntry, bool)
	Notify() <-chan struct{}
}

// Dispatcher resolves a single entry.
type Dispatcher interface {
	Dispatch(ctx context.Context, entry domain.QueueEntry) domain.DispatchOutcome
}

// LoopConfig bounds the consumer loop.
type LoopConfig struct {
	MaxInFlight int           // concurrent dispatches; 1 is strictly serial
	IdlePoll    time.Duration // wake-up interval while the queue is empty
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{MaxInFlight: 4, IdlePoll: 200 * time.Millisecond}
}

var ErrLoopRunning = errors.New("dispatch loop already running")

// Loop is the single consumer of a session queue. It pops only when a
// dispatch slot is free, so waiting entries stay in the queue and keep
// competing on decayed priority.
type Loop struct {
	source     Source
	dispatcher Dispatcher
	cfg        LoopConfig
	onOutcome  func(domain.DispatchOutcome)
	log        zerolog.Logger

	running  atomic.Bool
	inFlight atomic.Int64
}

// NewLoop creates a loop. onOutcome receives every terminal outcome, from
// the dispatch goroutine; it may be nil.
func NewLoop(source Source, d Dispatcher, cfg LoopConfig, onOutcome func(domain.DispatchOutcome), log zerolog.Logger) *Loop {
	def := DefaultLoopConfig()
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = def.IdlePoll
	}
	return &Loop{
		source:     source,
		dispatcher: d,
		cfg:        cfg,
		onOutcome:  onOutcome,
		log:        log.With().Str("component", "dispatch_loop").Logger(),
	}
}

// InFlight returns the number of dispatches currently running.
func (l *Loop) InFlight() int {
	return int(l.inFlight.Load())
}

// Run consumes until ctx is done, then waits for in-flight dispatches (which
// observe the same ctx and resolve as cancelled) before returning.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	sem := make(chan struct{}, l.cfg.MaxInFlight)
	var wg sync.WaitGroup
	defer wg.Wait()

	ticker := time.NewTicker(l.cfg.IdlePoll)
	defer ticker.Stop()

	l.log.Info().Int("max_in_flight", l.cfg.MaxInFlight).Msg("dispatch loop started")
	defer l.log.Info().Msg("dispatch loop stopped")

	for {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		if ctx.Err() != nil {
			<-sem
			return nil
		}

		entry, ok := l.source.PopHighest()
		if !ok {
			<-sem
			select {
			case <-l.source.Notify():
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
			continue
		}

		wg.Add(1)
		l.inFlight.Add(1)
		go func(e domain.QueueEntry) {
			defer func() {
				l.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			outcome := l.dispatcher.Dispatch(ctx, e)
			if l.onOutcome != nil {
				l.onOutcome(outcome)
			}
		}(entry)
	}
}
