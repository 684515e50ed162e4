// Package edgetypes defines the shared data types for BytEdge.
// This file contains the agent profile types loaded into the agent registry.
package edgetypes

// Keyword weights used by the query classifier.
const (
	PrimaryKeywordWeight   = 2
	SecondaryKeywordWeight = 1
)

// KeywordSet holds the two ordered keyword lists used to score free-text queries.
type KeywordSet struct {
	Primary   []string `yaml:"primary" json:"primary"`
	Secondary []string `yaml:"secondary" json:"secondary"`
}

// AgentProfile describes one specialised agent: its persona prompt and routing keywords.
// Profiles are loaded once at startup and never modified afterwards.
type AgentProfile struct {
	ID           string     `yaml:"id" json:"id"`
	DisplayName  string     `yaml:"name" json:"name"`
	Avatar       string     `yaml:"avatar" json:"avatar"`
	Domain       string     `yaml:"domain" json:"domain"`
	Description  string     `yaml:"description" json:"description"`
	SystemPrompt string     `yaml:"system_prompt" json:"-"`
	Keywords     KeywordSet `yaml:"keywords" json:"-"`
}
