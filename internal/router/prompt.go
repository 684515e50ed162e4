package router

import (
	"strings"

	"bytedge/pkg/edgetypes"
)

// BuildPrompt flattens an agent's system prompt, the last window turns of history and the
// current message into the single prompt sent to the generator:
//
//	<system prompt>
//
//	Previous User: <u>
//	Previous Assistant: <a>
//
//	Current User Question: <message>
//
//	Assistant Response:
//
// history must be in chronological order. A non-positive window includes no history.
func BuildPrompt(systemPrompt string, history []edgetypes.Turn, message string, window int) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	for _, turn := range tail(history, window) {
		b.WriteString("\n\nPrevious User: ")
		b.WriteString(turn.UserText)
		b.WriteString("\nPrevious Assistant: ")
		b.WriteString(turn.AssistantText)
	}

	b.WriteString("\n\nCurrent User Question: ")
	b.WriteString(message)
	b.WriteString("\n\nAssistant Response:")
	return b.String()
}

func tail(turns []edgetypes.Turn, n int) []edgetypes.Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}
