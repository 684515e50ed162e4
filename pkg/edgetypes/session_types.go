// Package edgetypes defines the shared data types for BytEdge.
// This file contains the conversation turn type stored per session.
package edgetypes

import "time"

// Default bounds for conversation state.
const (
	DefaultRetentionLimit = 50
	DefaultContextWindow  = 6
)

// Turn is one user message and the assistant reply it produced.
// Turns of a session are kept in chronological (insertion) order.
type Turn struct {
	UserText      string    `json:"user"`
	AssistantText string    `json:"assistant"`
	Timestamp     time.Time `json:"timestamp"`
	AgentID       string    `json:"agent"`
}
