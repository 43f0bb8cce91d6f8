package out

import (
	"context"

	"live_server/core/domain"
)

// EventPublisher accepts analytics events without waiting on consumers.
// Publish must never block the caller.
type EventPublisher interface {
	Publish(event domain.Event)
}

// EventSink persists or forwards a batch of events. Sinks run off the hot
// path, inside the delivery workers.
type EventSink interface {
	Name() string
	Write(ctx context.Context, events []domain.Event) error
}

// Subscription is a typed handle for one subscriber. Unsubscribe closes C.
type Subscription interface {
	C() <-chan domain.Event
	Unsubscribe()
}

// EventSubscriber hands out subscriptions filtered by session and topic.
// An empty sessionID matches every session; no topics means every topic.
// CloseSession ends every subscription scoped to sessionID, closing C.
type EventSubscriber interface {
	Subscribe(sessionID string, topics ...domain.EventType) Subscription
	CloseSession(sessionID string) int
}

// NopPublisher drops everything.
type NopPublisher struct{}

func (NopPublisher) Publish(domain.Event) {}
