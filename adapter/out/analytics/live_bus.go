// Package analytics carries engine events to subscribers and sinks. The
// engine publishes fire-and-forget; nothing here can block it.
package analytics

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"live_server/core/domain"
	"live_server/core/port/out"
	"live_server/pkg/snowflake"
)

// =============================================================================
// Bus - EventPublisher + EventSubscriber
// =============================================================================

const (
	defaultSubscriberBuffer = 256
	dropLogEvery            = 1000
)

// Bus is an in-process topic bus. Each subscription owns a buffered
// channel; a full channel drops the event for that subscriber only.
type Bus struct {
	ids *snowflake.Generator
	log zerolog.Logger

	mu   sync.RWMutex
	subs map[*Subscription]struct{}

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

var (
	_ out.EventPublisher  = (*Bus)(nil)
	_ out.EventSubscriber = (*Bus)(nil)
)

// NewBus creates a bus. ids may be nil, in which case events keep the ID
// they were published with.
func NewBus(ids *snowflake.Generator, log zerolog.Logger) *Bus {
	return &Bus{
		ids:  ids,
		log:  log.With().Str("component", "event_bus").Logger(),
		subs: make(map[*Subscription]struct{}),
	}
}

// Publish fans ev out to every matching subscriber without blocking.
func (b *Bus) Publish(ev domain.Event) {
	if ev.ID == 0 && b.ids != nil {
		ev.ID = b.ids.Next()
	}
	b.published.Add(1)

	// Sends happen under the read lock so Unsubscribe cannot close a
	// channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if !s.matches(&ev) {
			continue
		}
		select {
		case s.ch <- ev:
			b.delivered.Add(1)
		default:
			b.dropped.Add(1)
			// first drop per subscriber, then every dropLogEvery
			if n := s.dropped.Add(1); n == 1 || n%dropLogEvery == 0 {
				b.log.Warn().
					Str("session_id", ev.SessionID).
					Str("event_type", string(ev.Type)).
					Int64("dropped", n).
					Msg("subscriber buffer full, dropping events")
			}
		}
	}
}

// Subscribe registers a subscriber with the default buffer.
func (b *Bus) Subscribe(sessionID string, topics ...domain.EventType) out.Subscription {
	return b.SubscribeBuffered(sessionID, defaultSubscriberBuffer, topics...)
}

// SubscribeBuffered is Subscribe with an explicit channel size.
func (b *Bus) SubscribeBuffered(sessionID string, buffer int, topics ...domain.EventType) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	s := &Subscription{
		bus:       b,
		sessionID: sessionID,
		ch:        make(chan domain.Event, buffer),
	}
	if len(topics) > 0 {
		s.topics = make(map[domain.EventType]struct{}, len(topics))
		for _, t := range topics {
			s.topics[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()

	b.log.Debug().
		Str("session_id", sessionID).
		Int("topics", len(topics)).
		Int("subscribers", n).
		Msg("subscriber added")
	return s
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
	b.mu.Unlock()
}

// CloseSession drops the subscribers scoped to sessionID and returns how
// many were closed. Subscribers to every session are kept.
func (b *Bus) CloseSession(sessionID string) int {
	if sessionID == "" {
		return 0
	}
	b.mu.Lock()
	n := 0
	for s := range b.subs {
		if s.sessionID == sessionID {
			delete(b.subs, s)
			close(s.ch)
			n++
		}
	}
	b.mu.Unlock()

	if n > 0 {
		b.log.Debug().Str("session_id", sessionID).Int("subscribers", n).Msg("session subscribers closed")
	}
	return n
}

// Close drops every subscriber, closing their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
	b.mu.Unlock()
}

// BusStats counts bus traffic.
type BusStats struct {
	Published   int64 `json:"published"`
	Delivered   int64 `json:"delivered"`
	Dropped     int64 `json:"dropped"`
	Subscribers int   `json:"subscribers"`
}

func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return BusStats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: n,
	}
}

// =============================================================================
// Subscription
// =============================================================================

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus       *Bus
	sessionID string
	topics    map[domain.EventType]struct{}
	ch        chan domain.Event
	once      sync.Once
	dropped   atomic.Int64
}

// C returns the event channel. It is closed by Unsubscribe.
func (s *Subscription) C() <-chan domain.Event {
	return s.ch
}

// Unsubscribe detaches the subscriber. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s) })
}

// Dropped returns how many events this subscriber missed.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) matches(ev *domain.Event) bool {
	if s.sessionID != "" && s.sessionID != ev.SessionID {
		return false
	}
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[ev.Type]
	return ok
}
