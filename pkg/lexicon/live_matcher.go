// Package lexicon matches normalized text against groups of keywords in a
// single Aho-Corasick pass.
package lexicon

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"live_server/pkg/textnorm"
)

// Group is one category: its keywords and the weight used to pick a
// winner when several categories match.
type Group struct {
	Weight   float64
	Keywords []string
}

// Hit is the set of distinct keywords of one group found in a text.
type Hit struct {
	Group    int
	Keywords []string
}

// Confidence grows with the number of distinct keywords that fired:
// 0.7 for one, plus 0.1 per extra keyword, capped at 1.
func (h Hit) Confidence() float64 {
	if len(h.Keywords) == 0 {
		return 0
	}
	c := baseConfidence + confidenceStep*float64(len(h.Keywords)-1)
	if c > 1 {
		c = 1
	}
	return c
}

const (
	baseConfidence = 0.7
	confidenceStep = 0.1
)

// Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	matcher  *ahocorasick.Matcher
	keywords []string // normalized, padded
	groups   [][]int  // keyword index -> group indices
	weights  []float64
}

// New builds a matcher over groups; a hit's Group is its index in groups.
// Keywords are normalized the same way as matched text.
func New(groups []Group) *Matcher {
	m := &Matcher{weights: make([]float64, len(groups))}
	index := make(map[string]int)

	for g, group := range groups {
		m.weights[g] = group.Weight
		for _, kw := range group.Keywords {
			normalized := textnorm.Normalize(kw)
			if strings.TrimSpace(normalized) == "" {
				continue
			}
			i, ok := index[normalized]
			if !ok {
				i = len(m.keywords)
				index[normalized] = i
				m.keywords = append(m.keywords, normalized)
				m.groups = append(m.groups, nil)
			}
			if !containsInt(m.groups[i], g) {
				m.groups[i] = append(m.groups[i], g)
			}
		}
	}

	if len(m.keywords) > 0 {
		m.matcher = ahocorasick.NewStringMatcher(m.keywords)
	}
	return m
}

// Match returns hits ordered by group index. The text is normalized first.
func (m *Matcher) Match(text string) []Hit {
	if m.matcher == nil {
		return nil
	}
	return m.MatchNormalized(textnorm.Normalize(text))
}

// MatchNormalized is Match for text already passed through textnorm.Normalize.
func (m *Matcher) MatchNormalized(normalized string) []Hit {
	if m.matcher == nil {
		return nil
	}

	found := m.matcher.MatchThreadSafe([]byte(normalized))
	if len(found) == 0 {
		return nil
	}

	perGroup := make([][]string, len(m.weights))
	for _, i := range found {
		if i < 0 || i >= len(m.keywords) {
			continue
		}
		kw := strings.TrimSpace(m.keywords[i])
		for _, g := range m.groups[i] {
			perGroup[g] = append(perGroup[g], kw)
		}
	}

	hits := make([]Hit, 0, len(found))
	for g, kws := range perGroup {
		if len(kws) > 0 {
			hits = append(hits, Hit{Group: g, Keywords: kws})
		}
	}
	return hits
}

// Best returns the matching group with the highest weight. Equal weights
// resolve to the group declared first.
func (m *Matcher) Best(text string) (Hit, bool) {
	return m.best(m.Match(text))
}

// BestNormalized is Best for already normalized text.
func (m *Matcher) BestNormalized(normalized string) (Hit, bool) {
	return m.best(m.MatchNormalized(normalized))
}

func (m *Matcher) best(hits []Hit) (Hit, bool) {
	if len(hits) == 0 {
		return Hit{}, false
	}
	// hits are in declaration order, so strict > keeps the first on ties
	winner := hits[0]
	for _, h := range hits[1:] {
		if m.weights[h.Group] > m.weights[winner.Group] {
			winner = h
		}
	}
	return winner, true
}

// Keywords returns the number of distinct keywords compiled.
func (m *Matcher) Keywords() int {
	return len(m.keywords)
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
