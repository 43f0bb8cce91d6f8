package out

import (
	"context"

	"live_server/core/domain"
)

// ResponseGenerator produces a response for an entry on one tier. The engine
// passes a context carrying the tier deadline and does not know how the text
// is made.
type ResponseGenerator interface {
	Dispatch(ctx context.Context, entry domain.QueueEntry, tier domain.ResponseTier) (*domain.Response, error)
}

// ResponseGeneratorFunc adapts a function to ResponseGenerator.
type ResponseGeneratorFunc func(ctx context.Context, entry domain.QueueEntry, tier domain.ResponseTier) (*domain.Response, error)

func (f ResponseGeneratorFunc) Dispatch(ctx context.Context, entry domain.QueueEntry, tier domain.ResponseTier) (*domain.Response, error) {
	return f(ctx, entry, tier)
}
