package livestream

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"live_server/core/domain"
	"live_server/core/port/in"
	"live_server/core/port/out"
	"live_server/pkg/apperr"
)

// Manager owns the live sessions of the process. It implements
// in.SessionService.
type Manager struct {
	ctx        context.Context
	comps      Components
	settings   Settings
	subscriber out.EventSubscriber
	opts       []Option
	log        zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ in.SessionService = (*Manager)(nil)

// NewManager creates a manager. Sessions run under ctx; cancelling it stops
// every dispatch loop. subscriber may be nil, in which case Subscribe fails.
func NewManager(ctx context.Context, comps Components, settings Settings, subscriber out.EventSubscriber, opts ...Option) *Manager {
	comps.withDefaults()
	return &Manager{
		ctx:        ctx,
		comps:      comps,
		settings:   settings,
		subscriber: subscriber,
		opts:       opts,
		log:        comps.Logger.With().Str("component", "session_manager").Logger(),
		sessions:   make(map[string]*Session),
	}
}

func (m *Manager) StartSession(ctx context.Context, req *in.StartSessionRequest) (*in.SessionInfo, error) {
	if req == nil {
		req = &in.StartSessionRequest{}
	}
	if len(req.Title) > 200 {
		return nil, apperr.Validation("title", "at most 200 characters")
	}

	id := uuid.NewString()
	s := NewSession(id, *req, m.comps, m.settings, m.opts...)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	s.Start(m.ctx)
	return s.Info(), nil
}

func (m *Manager) GetSession(ctx context.Context, id string) (*in.SessionInfo, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}
	return s.Info(), nil
}

// ListSessions returns live sessions, oldest first.
func (m *Manager) ListSessions(ctx context.Context) ([]*in.SessionInfo, error) {
	m.mu.RLock()
	infos := make([]*in.SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos, nil
}

// EndSession closes the session and forgets it.
func (m *Manager) EndSession(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return apperr.SessionNotFound(id)
	}
	m.closeSession(s)
	return nil
}

// closeSession closes s, then its event subscriptions, so subscribers read
// session_ended before their channel closes.
func (m *Manager) closeSession(s *Session) {
	s.Close()
	if m.subscriber != nil {
		m.subscriber.CloseSession(s.ID())
	}
}

func (m *Manager) Ingest(ctx context.Context, sessionID string, c *domain.Comment) (*in.IngestResult, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, c)
}

func (m *Manager) Stats(ctx context.Context, sessionID string) (*in.SessionStats, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Stats(), nil
}

func (m *Manager) Subscribe(ctx context.Context, sessionID string, topics ...domain.EventType) (out.Subscription, error) {
	if _, err := m.session(sessionID); err != nil {
		return nil, err
	}
	if m.subscriber == nil {
		return nil, apperr.Internal("event subscriptions are not configured")
	}
	sub := m.subscriber.Subscribe(sessionID, topics...)
	// the session may have ended between the lookup and Subscribe
	if _, err := m.session(sessionID); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// Session returns the live session with id.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) session(id string) (*Session, error) {
	s, ok := m.Session(id)
	if !ok {
		return nil, apperr.SessionNotFound(id)
	}
	return s, nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session concurrently and waits until they are all
// closed or ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			m.closeSession(s)
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info().Int("sessions", len(sessions)).Msg("all sessions closed")
		return nil
	case <-ctx.Done():
		m.log.Warn().Msg("shutdown deadline reached before all sessions closed")
		return ctx.Err()
	}
}

// =============================================================================
// Metrics Reporter
// =============================================================================

// ReportMetrics logs a summary of every session each interval until ctx is
// done.
func (m *Manager) ReportMetrics(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.logMetrics()
		}
	}
}

func (m *Manager) logMetrics() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		st := s.Stats()
		var rejected int64
		for _, n := range st.Rejected {
			rejected += n
		}
		m.log.Info().
			Str("session_id", st.SessionID).
			Int("queue_len", st.QueueLen).
			Int("in_flight", st.InFlight).
			Int64("accepted", st.Accepted).
			Int64("rejected", rejected).
			Int64("expired", st.Expired).
			Int64("completed", st.Outcomes[domain.StateCompleted]).
			Int64("failed", st.Outcomes[domain.StateFailed]+st.Outcomes[domain.StateTimedOut]).
			Int64("fallbacks", st.Fallbacks).
			Msg("session metrics")
	}
}
