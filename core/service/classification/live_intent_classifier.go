package classification

import (
	"live_server/core/domain"
	"live_server/pkg/lexicon"
	"live_server/pkg/textnorm"
)

// Classifier resolves a message to one intent. It holds only data compiled
// at construction, so one instance can serve every session concurrently.
type Classifier struct {
	catalog []Intent
	matcher *lexicon.Matcher
}

// NewClassifier compiles catalog into a keyword automaton.
func NewClassifier(catalog []Intent) *Classifier {
	groups := make([]lexicon.Group, len(catalog))
	for i, in := range catalog {
		groups[i] = lexicon.Group{Weight: in.Weight, Keywords: in.Keywords}
	}
	return &Classifier{
		catalog: catalog,
		matcher: lexicon.New(groups),
	}
}

// NewDefaultClassifier uses DefaultCatalog.
func NewDefaultClassifier() *Classifier {
	return NewClassifier(DefaultCatalog())
}

// Classify picks the highest-weight matching intent. Unmatched messages
// are GENERAL on the quick tier with zero confidence.
func (c *Classifier) Classify(message string) domain.ClassificationResult {
	return c.ClassifyNormalized(textnorm.Normalize(message))
}

// ClassifyNormalized is Classify for text already passed through
// textnorm.Normalize, so the session normalizes once per comment.
func (c *Classifier) ClassifyNormalized(normalized string) domain.ClassificationResult {
	hit, ok := c.matcher.BestNormalized(normalized)
	if !ok {
		return domain.ClassificationResult{
			IntentID:   DefaultIntent,
			Confidence: 0,
			Tier:       DefaultTier,
		}
	}
	in := c.catalog[hit.Group]
	return domain.ClassificationResult{
		IntentID:   in.ID,
		Confidence: hit.Confidence(),
		Tier:       in.Tier,
		Matched:    hit.Keywords,
	}
}

// Catalog returns the compiled table.
func (c *Classifier) Catalog() []Intent {
	return c.catalog
}
