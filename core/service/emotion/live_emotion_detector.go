package emotion

import (
	"live_server/core/domain"
	"live_server/pkg/lexicon"
	"live_server/pkg/textnorm"
)

// Detector owns its own automaton; it shares nothing with the intent
// classifier and is safe for concurrent use.
type Detector struct {
	lexicon []Emotion
	matcher *lexicon.Matcher
}

func NewDetector(lex []Emotion) *Detector {
	groups := make([]lexicon.Group, len(lex))
	for i, e := range lex {
		groups[i] = lexicon.Group{Weight: e.Weight, Keywords: e.Keywords}
	}
	return &Detector{lexicon: lex, matcher: lexicon.New(groups)}
}

func NewDefaultDetector() *Detector {
	return NewDetector(DefaultLexicon())
}

// Detect returns NEUTRAL with zero confidence when nothing matches.
func (d *Detector) Detect(message string) domain.EmotionResult {
	return d.DetectNormalized(textnorm.Normalize(message))
}

func (d *Detector) DetectNormalized(normalized string) domain.EmotionResult {
	hit, ok := d.matcher.BestNormalized(normalized)
	if !ok {
		return domain.EmotionResult{EmotionID: DefaultEmotion}
	}
	return domain.EmotionResult{
		EmotionID:  d.lexicon[hit.Group].ID,
		Confidence: hit.Confidence(),
	}
}
