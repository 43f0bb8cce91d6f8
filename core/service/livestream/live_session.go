// Package livestream wires one engine per livestream: classifier, emotion
// detector, scorer, queue and dispatcher are explicit instances owned by a
// Session and torn down with it.
package livestream

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"live_server/core/domain"
	"live_server/core/port/in"
	"live_server/core/port/out"
	"live_server/core/service/classification"
	"live_server/core/service/dispatch"
	"live_server/core/service/emotion"
	"live_server/core/service/priority"
	"live_server/core/service/queue"
	"live_server/pkg/apperr"
	"live_server/pkg/metrics"
	"live_server/pkg/textnorm"
)

// =============================================================================
// Configuration
// =============================================================================

// Components are the collaborators shared by every session of a process.
// Classifier, detector and scorer are stateless and safe to share.
type Components struct {
	Classifier *classification.Classifier
	Detector   *emotion.Detector
	Scorer     *priority.Scorer
	Responder  out.ResponseGenerator
	Publisher  out.EventPublisher
	Metrics    *metrics.Engine
	Logger     zerolog.Logger
}

func (c *Components) withDefaults() {
	if c.Classifier == nil {
		c.Classifier = classification.NewDefaultClassifier()
	}
	if c.Detector == nil {
		c.Detector = emotion.NewDefaultDetector()
	}
	if c.Scorer == nil {
		c.Scorer = priority.NewDefaultScorer()
	}
	if c.Publisher == nil {
		c.Publisher = out.NopPublisher{}
	}
}

// Settings are the per-session limits.
type Settings struct {
	Queue         queue.Config
	Decay         priority.Decay
	Budgets       dispatch.Budgets
	Loop          dispatch.LoopConfig
	LatencyWindow int // samples kept per tier for Stats
	OutcomeBuffer int
}

func DefaultSettings() Settings {
	return Settings{
		Queue:         queue.DefaultConfig(),
		Decay:         priority.DefaultDecay(),
		Budgets:       dispatch.DefaultBudgets(),
		Loop:          dispatch.DefaultLoopConfig(),
		LatencyWindow: 1000,
		OutcomeBuffer: 256,
	}
}

type Option func(*Session)

// WithClock replaces time.Now for the session, its queue and dispatcher.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// =============================================================================
// Session
// =============================================================================

// Session is one livestream. Ingest may be called from any number of
// goroutines; a single dispatch loop consumes the queue between Start and
// Close.
type Session struct {
	id        string
	title     string
	hostID    string
	labels    map[string]string
	startedAt time.Time

	classifier *classification.Classifier
	detector   *emotion.Detector
	scorer     *priority.Scorer
	queue      *queue.CommentQueue
	dispatcher *dispatch.TierDispatcher
	loop       *dispatch.Loop
	publisher  out.EventPublisher
	metrics    *metrics.Engine
	latency    *metrics.LatencyRegistry
	clock      func() time.Time
	log        zerolog.Logger

	outcomes chan domain.DispatchOutcome

	mu      sync.Mutex
	started bool
	closed  bool
	endedAt time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	accepted  atomic.Int64
	evicted   atomic.Int64
	expired   atomic.Int64
	fallbacks atomic.Int64

	statsMu  sync.Mutex
	rejected map[domain.EnqueueReason]int64
	byState  map[domain.DispatchState]int64
}

// NewSession builds a session and its engine. It does not start consuming;
// call Start.
func NewSession(id string, req in.StartSessionRequest, comps Components, settings Settings, opts ...Option) *Session {
	comps.withDefaults()
	if settings.LatencyWindow <= 0 {
		settings.LatencyWindow = DefaultSettings().LatencyWindow
	}
	if settings.OutcomeBuffer <= 0 {
		settings.OutcomeBuffer = DefaultSettings().OutcomeBuffer
	}

	s := &Session{
		id:         id,
		title:      req.Title,
		hostID:     req.HostID,
		labels:     req.Labels,
		classifier: comps.Classifier,
		detector:   comps.Detector,
		scorer:     comps.Scorer,
		publisher:  comps.Publisher,
		metrics:    comps.Metrics,
		latency:    metrics.NewLatencyRegistry(settings.LatencyWindow),
		clock:      time.Now,
		outcomes:   make(chan domain.DispatchOutcome, settings.OutcomeBuffer),
		rejected:   make(map[domain.EnqueueReason]int64),
		byState:    make(map[domain.DispatchState]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.clock()
	s.log = comps.Logger.With().Str("component", "session").Str("session_id", id).Logger()

	qopts := []queue.Option{
		queue.WithClock(s.clock),
		queue.WithExpiredHook(s.onExpired),
	}
	if settings.Decay.Horizon > 0 {
		qopts = append(qopts, queue.WithDecay(settings.Decay))
	}
	s.queue = queue.New(settings.Queue, qopts...)

	s.dispatcher = dispatch.NewTierDispatcher(comps.Responder, settings.Budgets,
		dispatch.WithSessionID(id),
		dispatch.WithPublisher(comps.Publisher),
		dispatch.WithMetrics(comps.Metrics),
		dispatch.WithLatency(s.latency),
		dispatch.WithClock(s.clock),
		dispatch.WithLogger(comps.Logger),
	)
	s.loop = dispatch.NewLoop(s.queue, s.dispatcher, settings.Loop, s.onOutcome, comps.Logger.With().Str("session_id", id).Logger())
	return s
}

func (s *Session) ID() string { return s.id }

// Start launches the dispatch loop under parent. Calling Start twice, or
// after Close, is a no-op.
func (s *Session) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.loop.Run(ctx); err != nil {
			s.log.Error().Err(err).Msg("dispatch loop exited")
		}
	}()

	s.metrics.SessionOpened()
	s.publish(domain.Event{Type: domain.EventSessionStarted, Data: map[string]any{"title": s.title, "host_id": s.hostID}})
	s.log.Info().Str("title", s.title).Msg("session started")
}

// =============================================================================
// Ingest
// =============================================================================

// Ingest validates, classifies, scores and enqueues one comment. Only
// validation and session errors are returned; capacity rejections are
// reported in the result.
func (s *Session) Ingest(ctx context.Context, c *domain.Comment) (*in.IngestResult, error) {
	if s.isClosed() {
		return nil, apperr.SessionClosed(s.id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.clock()
	comment, err := prepare(c, now)
	if err != nil {
		s.metrics.Rejected("invalid")
		s.log.Debug().Err(err).Str("comment_id", comment.ID).Msg("comment rejected")
		return nil, err
	}

	normalized := textnorm.Normalize(comment.Message)

	var (
		cls domain.ClassificationResult
		emo domain.EmotionResult
	)
	var g errgroup.Group
	g.Go(func() error {
		cls = s.classifier.ClassifyNormalized(normalized)
		return nil
	})
	g.Go(func() error {
		emo = s.detector.DetectNormalized(normalized)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entry := domain.QueueEntry{
		Comment:        comment,
		Classification: cls,
		Emotion:        emo,
		Priority:       s.scorer.Score(&comment, cls, emo),
		EnqueuedAt:     now,
		NormalizedText: strings.TrimSpace(normalized),
	}

	res := s.queue.Enqueue(entry)
	s.recordAdmission(&entry, res)

	result := &in.IngestResult{
		CommentID:      comment.ID,
		Accepted:       res.Accepted,
		Reason:         res.Reason,
		Priority:       entry.Priority,
		Classification: cls,
		Emotion:        emo,
	}
	if res.Evicted != nil {
		result.EvictedID = res.Evicted.ID()
	}
	if res.Reason == domain.ReasonClosed {
		return result, apperr.SessionClosed(s.id)
	}
	return result, nil
}

func (s *Session) recordAdmission(e *domain.QueueEntry, res domain.EnqueueResult) {
	at := s.clock()

	if !res.Accepted {
		s.statsMu.Lock()
		s.rejected[res.Reason]++
		s.statsMu.Unlock()

		s.metrics.Rejected(string(res.Reason))
		ev := domain.NewEntryEvent(domain.EventRejected, s.id, e, at)
		ev.Reason = string(res.Reason)
		s.publish(ev)
		s.log.Debug().
			Str("comment_id", e.ID()).
			Str("user_id", e.Comment.UserID).
			Str("reason", string(res.Reason)).
			Msg("comment rejected")
		return
	}

	s.accepted.Add(1)
	s.metrics.Enqueued(string(e.Comment.Platform))
	s.metrics.QueueDepth(s.id, s.queue.Len())
	ev := domain.NewEntryEvent(domain.EventEnqueued, s.id, e, at)
	ev.Data = map[string]any{
		"intent":  string(e.Classification.IntentID),
		"emotion": string(e.Emotion.EmotionID),
	}
	if len(e.Comment.Badges) > 0 {
		ev.Data["badges"] = e.Comment.Badges
	}
	s.publish(ev)

	if res.Evicted != nil {
		s.evicted.Add(1)
		ev := domain.NewEntryEvent(domain.EventEvicted, s.id, res.Evicted, at)
		ev.Reason = "displaced by " + e.ID()
		s.publish(ev)
		s.log.Debug().
			Str("comment_id", res.Evicted.ID()).
			Str("by", e.ID()).
			Float64("priority", res.Evicted.Priority).
			Msg("comment evicted")
	}
}

func (s *Session) onExpired(entries []domain.QueueEntry) {
	at := s.clock()
	s.expired.Add(int64(len(entries)))
	for i := range entries {
		ev := domain.NewEntryEvent(domain.EventExpired, s.id, &entries[i], at)
		ev.Latency = entries[i].Age(at)
		s.publish(ev)
	}
	s.log.Debug().Int("count", len(entries)).Msg("stale comments expired")
}

func (s *Session) onOutcome(o domain.DispatchOutcome) {
	s.statsMu.Lock()
	s.byState[o.State]++
	s.statsMu.Unlock()
	if o.FellBack() {
		s.fallbacks.Add(1)
	}
	s.metrics.QueueDepth(s.id, s.queue.Len())

	select {
	case s.outcomes <- o:
	default:
		s.log.Warn().Str("comment_id", o.Entry.ID()).Msg("outcome buffer full, dropping")
	}
}

// Outcomes delivers every terminal dispatch outcome. It is closed by Close
// after the loop has stopped. Outcomes are dropped when nobody drains it.
func (s *Session) Outcomes() <-chan domain.DispatchOutcome {
	return s.outcomes
}

// =============================================================================
// Lifecycle and stats
// =============================================================================

// Close cancels in-flight dispatches, waits for them to resolve, clears the
// queue and per-user state and refuses further ingest. Safe to call more
// than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.endedAt = s.clock()
	cancel, done, started := s.cancel, s.done, s.started
	s.mu.Unlock()

	if started {
		cancel()
		<-done
	}
	dropped := s.queue.Close()
	close(s.outcomes)

	if started {
		s.metrics.SessionClosed(s.id)
	}
	s.publish(domain.Event{Type: domain.EventSessionEnded, Data: map[string]any{"dropped": len(dropped)}})
	s.log.Info().
		Int("dropped", len(dropped)).
		Int64("accepted", s.accepted.Load()).
		Dur("uptime", s.endedAt.Sub(s.startedAt)).
		Msg("session ended")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Info describes the session.
func (s *Session) Info() *in.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := &in.SessionInfo{
		ID:        s.id,
		Title:     s.title,
		HostID:    s.hostID,
		Labels:    s.labels,
		StartedAt: s.startedAt,
		Active:    !s.closed,
		QueueLen:  s.queue.Len(),
	}
	if s.closed {
		ended := s.endedAt
		info.EndedAt = &ended
	}
	return info
}

// Stats returns counters and per-tier latency.
func (s *Session) Stats() *in.SessionStats {
	st := &in.SessionStats{
		SessionID:    s.id,
		QueueLen:     s.queue.Len(),
		TrackedUsers: s.queue.TrackedUsers(),
		InFlight:     s.loop.InFlight(),
		Accepted:     s.accepted.Load(),
		Evicted:      s.evicted.Load(),
		Expired:      s.expired.Load(),
		Fallbacks:    s.fallbacks.Load(),
		Latency:      s.latency.Snapshot(),
		Rejected:     make(map[domain.EnqueueReason]int64),
		Outcomes:     make(map[domain.DispatchState]int64),
		Uptime:       s.clock().Sub(s.startedAt),
	}

	s.statsMu.Lock()
	for k, v := range s.rejected {
		st.Rejected[k] = v
	}
	for k, v := range s.byState {
		st.Outcomes[k] = v
	}
	s.statsMu.Unlock()
	return st
}

// Queue exposes the queue for inspection.
func (s *Session) Queue() *queue.CommentQueue {
	return s.queue
}

func (s *Session) publish(ev domain.Event) {
	ev.SessionID = s.id
	if ev.At.IsZero() {
		ev.At = s.clock()
	}
	s.publisher.Publish(ev)
}
