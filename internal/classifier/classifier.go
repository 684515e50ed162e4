// Package classifier ranks agents against free-text queries using weighted keyword matching.
//
// Matching is plain substring containment on the lower-cased query, so "disc" also
// matches "discussion". Each keyword counts at most once per query.
package classifier

import (
	"sort"
	"strings"

	"bytedge/internal/registry"
	"bytedge/pkg/edgetypes"
)

// MaxSuggestions bounds the number of agent ids returned by Rank.
const MaxSuggestions = 3

// Candidate is an agent with a positive relevance score.
type Candidate struct {
	AgentID string `json:"agent_id"`
	Score   int    `json:"score"`
}

// Classifier scores queries against the keyword sets of a registry.
type Classifier struct {
	registry *registry.Registry
}

// New creates a classifier over reg.
func New(reg *registry.Registry) *Classifier {
	return &Classifier{registry: reg}
}

// ScoreProfile returns the keyword score of a single profile for an already lower-cased query.
func ScoreProfile(profile edgetypes.AgentProfile, query string) int {
	score := 0
	for _, kw := range profile.Keywords.Primary {
		if strings.Contains(query, kw) {
			score += edgetypes.PrimaryKeywordWeight
		}
	}
	for _, kw := range profile.Keywords.Secondary {
		if strings.Contains(query, kw) {
			score += edgetypes.SecondaryKeywordWeight
		}
	}
	return score
}

// Score returns every agent with a positive score, best first.
// Equal scores keep registry order.
func (c *Classifier) Score(message string) []Candidate {
	query := strings.ToLower(message)

	var candidates []Candidate
	for _, p := range c.registry.List() {
		if s := ScoreProfile(p, query); s > 0 {
			candidates = append(candidates, Candidate{AgentID: p.ID, Score: s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// Rank returns at most MaxSuggestions agent ids, best match first.
// The result is empty when no keyword matches; callers supply their own fallback.
func (c *Classifier) Rank(message string) []string {
	candidates := c.Score(message)
	if len(candidates) > MaxSuggestions {
		candidates = candidates[:MaxSuggestions]
	}

	ids := make([]string, len(candidates))
	for i, cand := range candidates {
		ids[i] = cand.AgentID
	}
	return ids
}
