package router

import (
	"context"
	"fmt"
	"strings"

	"bytedge/internal/logger"
	"bytedge/pkg/edgetypes"
)

// Suggestion is the classifier's view of a message plus a short recommendation text.
type Suggestion struct {
	Agents  []string       `json:"suggested_agents"`
	Scores  map[string]int `json:"confidence_scores"`
	Summary string         `json:"analysis_summary"`
	Text    string         `json:"response"`
	// Generated is false when Text is the canned recommendation.
	Generated bool `json:"generated"`
}

const recommendationPrompt = `You are BytEdge Automotive AI, an advanced engineering assistant for automotive industry professionals.

User Query: %s
Recommended Agents: %s

Provide a professional, technical response that:
1. Acknowledges the specific automotive engineering challenge
2. Explains why the recommended agents are suitable
3. Mentions relevant engineering principles or analysis methods
4. Maintains a professional, expert tone
5. Encourages engagement with the suggested agents

Keep response concise but authoritative. Focus on technical accuracy and practical engineering value.`

const offlineRecommendation = `**BytEdge Automotive AI Analysis**

I've analyzed your query and identified the most relevant engineering domains. Based on your requirements, I recommend engaging with our specialized agents:

**Primary Recommendation:** %s

Our agents use advanced simulation and analysis to provide precise engineering solutions for automotive systems. Each agent specializes in specific components and can perform real-time analysis, FEA simulations, and optimization recommendations.

Please select the appropriate agent below to begin your engineering analysis.`

const failedRecommendation = "I've analyzed your automotive engineering query and identified %d relevant specialist agents. " +
	"Our %s would be the optimal choice for your requirements, offering advanced simulation capabilities and expert engineering guidance."

// Suggest ranks agents for message and produces a recommendation. It never reads or writes sessions.
// Generation problems are not errors here: the canned recommendation is returned instead.
func (r *Router) Suggest(ctx context.Context, message string) (*Suggestion, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, edgetypes.ErrEmptyMessage
	}

	scores := make(map[string]int)
	for _, c := range r.classifier.Score(message) {
		scores[c.AgentID] = c.Score
	}

	agents := r.classifier.Rank(message)
	if len(agents) == 0 {
		agents = []string{r.settings.FallbackAgent}
	}

	names := make([]string, 0, len(agents))
	for _, id := range agents {
		names = append(names, r.displayName(id))
	}

	s := &Suggestion{
		Agents:  agents,
		Scores:  scores,
		Summary: fmt.Sprintf("Identified %d relevant agents for your automotive engineering query.", len(agents)),
	}

	if r.generator == nil {
		s.Text = fmt.Sprintf(offlineRecommendation, names[0])
		return s, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.settings.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(recommendationPrompt, message, strings.Join(names, ", "))
	text, err := r.generate(ctx, prompt)
	if err != nil {
		logger.Warn("recommendation generation failed, using canned text", "error", err)
		s.Text = fmt.Sprintf(failedRecommendation, len(agents), names[0])
		return s, nil
	}

	s.Text = text
	s.Generated = true
	return s, nil
}

func (r *Router) displayName(id string) string {
	profile, err := r.registry.Lookup(id)
	if err != nil || profile.DisplayName == "" {
		return id
	}
	return profile.DisplayName
}
