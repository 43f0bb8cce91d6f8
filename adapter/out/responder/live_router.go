package responder

import (
	"context"
	"fmt"

	"live_server/core/domain"
	"live_server/core/port/out"
	"live_server/pkg/apperr"
)

var (
	_ out.ResponseGenerator = (*Router)(nil)
	_ out.ResponseGenerator = (*TemplateResponder)(nil)
	_ out.ResponseGenerator = (*LLMResponder)(nil)
)

// Router sends each attempt to the pipeline registered for its tier.
type Router struct {
	byTier map[domain.ResponseTier]out.ResponseGenerator
}

func NewRouter() *Router {
	return &Router{byTier: make(map[domain.ResponseTier]out.ResponseGenerator)}
}

// Handle registers g for tier, replacing any previous pipeline.
func (r *Router) Handle(tier domain.ResponseTier, g out.ResponseGenerator) *Router {
	r.byTier[tier] = g
	return r
}

func (r *Router) Dispatch(ctx context.Context, entry domain.QueueEntry, tier domain.ResponseTier) (*domain.Response, error) {
	g, ok := r.byTier[tier]
	if !ok {
		return nil, apperr.DispatchFailure(string(tier), fmt.Errorf("no pipeline for tier %s", tier))
	}
	return g.Dispatch(ctx, entry, tier)
}

// Tiers lists the registered tiers.
func (r *Router) Tiers() []domain.ResponseTier {
	tiers := make([]domain.ResponseTier, 0, len(r.byTier))
	for _, t := range []domain.ResponseTier{domain.TierTemplate, domain.TierQuick, domain.TierFull} {
		if _, ok := r.byTier[t]; ok {
			tiers = append(tiers, t)
		}
	}
	return tiers
}
