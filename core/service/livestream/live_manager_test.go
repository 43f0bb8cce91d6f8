package livestream

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live_server/core/domain"
	"live_server/core/port/in"
	"live_server/core/port/out"
	"live_server/pkg/apperr"
)

type fakeSub struct {
	ch chan domain.Event
}

func (f *fakeSub) C() <-chan domain.Event { return f.ch }
func (f *fakeSub) Unsubscribe()           {}

type fakeSubscriber struct {
	sessionID string
	topics    []domain.EventType
	closed    []string
}

func (f *fakeSubscriber) Subscribe(sessionID string, topics ...domain.EventType) out.Subscription {
	f.sessionID, f.topics = sessionID, topics
	return &fakeSub{ch: make(chan domain.Event)}
}

func (f *fakeSubscriber) CloseSession(sessionID string) int {
	f.closed = append(f.closed, sessionID)
	return 1
}

func newManager(t *testing.T, sub out.EventSubscriber) *Manager {
	t.Helper()
	settings := DefaultSettings()
	settings.Loop.IdlePoll = 10 * time.Millisecond
	m := NewManager(context.Background(), Components{Responder: templateOnly(), Logger: zerolog.Nop()}, settings, sub)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, nil)

	a, err := m.StartSession(ctx, &in.StartSessionRequest{Title: "morning", HostID: "h1"})
	require.NoError(t, err)
	b, err := m.StartSession(ctx, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Active)

	list, err := m.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := m.GetSession(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "morning", got.Title)

	res, err := m.Ingest(ctx, a.ID, tiktok("c1", "u1", "giá bao nhiêu"))
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	require.Eventually(t, func() bool {
		st, err := m.Stats(ctx, a.ID)
		return err == nil && st.Outcomes[domain.StateCompleted] == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.EndSession(ctx, a.ID))
	assert.Equal(t, 1, m.Count())

	_, err = m.GetSession(ctx, a.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeSessionNotFound))
	assert.True(t, apperr.IsCode(m.EndSession(ctx, a.ID), apperr.CodeSessionNotFound))
}

func TestManagerUnknownSession(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, nil)

	_, err := m.Ingest(ctx, "nope", tiktok("c1", "u1", "x"))
	assert.True(t, apperr.IsCode(err, apperr.CodeSessionNotFound))
	_, err = m.Stats(ctx, "nope")
	assert.True(t, apperr.IsCode(err, apperr.CodeSessionNotFound))
	_, err = m.Subscribe(ctx, "nope")
	assert.True(t, apperr.IsCode(err, apperr.CodeSessionNotFound))
}

func TestManagerSubscribeScopesToSession(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubscriber{}
	m := newManager(t, sub)

	info, err := m.StartSession(ctx, nil)
	require.NoError(t, err)

	s, err := m.Subscribe(ctx, info.ID, domain.EventCompleted, domain.EventFallback)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, info.ID, sub.sessionID)
	assert.Equal(t, []domain.EventType{domain.EventCompleted, domain.EventFallback}, sub.topics)
}

func TestEndSessionClosesSubscriptions(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubscriber{}
	m := newManager(t, sub)

	info, err := m.StartSession(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, m.EndSession(ctx, info.ID))
	assert.Equal(t, []string{info.ID}, sub.closed)
}

func TestManagerSubscribeWithoutSubscriber(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, nil)
	info, err := m.StartSession(ctx, nil)
	require.NoError(t, err)

	_, err = m.Subscribe(ctx, info.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeInternalError))
}

func TestManagerShutdownClosesAll(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		info, err := m.StartSession(ctx, nil)
		require.NoError(t, err)
		ids = append(ids, info.ID)
	}

	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		s, ok := m.Session(id)
		require.True(t, ok)
		sessions = append(sessions, s)
	}

	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(sctx))

	assert.Equal(t, 0, m.Count())
	for _, s := range sessions {
		assert.False(t, s.Info().Active)
	}
}

func TestStartSessionRejectsLongTitle(t *testing.T) {
	m := newManager(t, nil)
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	_, err := m.StartSession(context.Background(), &in.StartSessionRequest{Title: string(long)})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidationFailed))
}
