// Package router answers user messages with the selected automotive agent.
//
// A request flows through validation, agent resolution (explicit or classified),
// session resolution, prompt construction from that session's history only, a single
// bounded generation call, and finally the append of the new turn. All of it runs
// under the session's lock, so exchanges within one session are strictly ordered
// while different sessions proceed in parallel.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bytedge/internal/classifier"
	"bytedge/internal/logger"
	"bytedge/internal/registry"
	"bytedge/internal/session"
	"bytedge/pkg/edgetypes"
)

// DefaultFallbackAgent answers messages the classifier cannot place.
const DefaultFallbackAgent = "brake"

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 60 * time.Second

// Request is one user message. AgentID and SessionID are optional.
type Request struct {
	Message   string
	AgentID   string
	SessionID string
}

// Response is a successful exchange.
type Response struct {
	Text      string    `json:"message"`
	AgentID   string    `json:"agent_id"`
	AgentName string    `json:"agent"`
	SessionID string    `json:"conversation_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Settings tunes a Router. Zero values select the defaults.
type Settings struct {
	Options       edgetypes.GenerationOptions
	FallbackAgent string
	ContextWindow int
	Timeout       time.Duration

	// Now and NewSessionID are injectable for tests.
	Now          func() time.Time
	NewSessionID func(agentID string) string
}

// Router is safe for concurrent use.
type Router struct {
	registry   *registry.Registry
	classifier *classifier.Classifier
	store      session.Store
	generator  edgetypes.Generator
	settings   Settings

	// issued holds fresh session ids whose first exchange is still in flight.
	issuedMu sync.Mutex
	issued   map[string]struct{}
}

// New wires a Router. gen may be nil, in which case every Respond fails with
// ErrGenerationFailed and Suggest returns its canned text.
func New(reg *registry.Registry, cls *classifier.Classifier, store session.Store, gen edgetypes.Generator, settings Settings) (*Router, error) {
	if reg == nil {
		return nil, fmt.Errorf("router requires an agent registry")
	}
	if store == nil {
		return nil, fmt.Errorf("router requires a session store")
	}
	if cls == nil {
		cls = classifier.New(reg)
	}

	if settings.Options == (edgetypes.GenerationOptions{}) {
		settings.Options = edgetypes.DefaultGenerationOptions()
	}
	if settings.FallbackAgent == "" {
		settings.FallbackAgent = DefaultFallbackAgent
	}
	if settings.ContextWindow <= 0 {
		settings.ContextWindow = edgetypes.DefaultContextWindow
	}
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.NewSessionID == nil {
		settings.NewSessionID = func(agentID string) string {
			return agentID + "_" + uuid.NewString()
		}
	}

	if !reg.Has(settings.FallbackAgent) {
		return nil, fmt.Errorf("fallback agent: %w: %s", edgetypes.ErrUnknownAgent, settings.FallbackAgent)
	}

	return &Router{
		registry:   reg,
		classifier: cls,
		store:      store,
		generator:  gen,
		settings:   settings,
		issued:     make(map[string]struct{}),
	}, nil
}

// Settings returns the effective settings.
func (r *Router) Settings() Settings {
	return r.settings
}

// Registry returns the agent registry the router resolves against.
func (r *Router) Registry() *registry.Registry {
	return r.registry
}

// HasGenerator reports whether a generation backend is wired.
func (r *Router) HasGenerator() bool {
	return r.generator != nil
}

// Respond answers req.Message with the requested or classified agent and records the exchange.
//
// Errors: ErrEmptyMessage and ErrUnknownAgent for bad input; a *GenerationError (matching
// ErrGenerationFailed) when generation fails, returns blank text, or runs out of time,
// including time spent waiting for the session lock. The session is untouched on every error.
func (r *Router) Respond(ctx context.Context, req Request) (*Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, edgetypes.ErrEmptyMessage
	}

	profile, err := r.resolveAgent(req.AgentID, message)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = r.issueSessionID(profile.ID)
		defer r.forgetIssued(sessionID)
	}

	log := logger.Logger.With("agent", profile.ID, "session", sessionID)

	ctx, cancel := context.WithTimeout(ctx, r.settings.Timeout)
	defer cancel()

	release, err := r.store.Acquire(ctx, sessionID)
	if err != nil {
		log.Warn("session busy past deadline", "error", err)
		return nil, edgetypes.NewGenerationError(err)
	}
	defer release()

	history := r.store.Get(sessionID)
	prompt := BuildPrompt(profile.SystemPrompt, history, message, r.settings.ContextWindow)

	start := r.settings.Now()
	text, err := r.generate(ctx, prompt)
	if err != nil {
		log.Error("generation failed", "error", err)
		return nil, err
	}

	turn := edgetypes.Turn{
		UserText:      message,
		AssistantText: text,
		Timestamp:     r.settings.Now(),
		AgentID:       profile.ID,
	}
	if err := r.store.Append(sessionID, turn); err != nil {
		log.Error("failed to record turn", "error", err)
		return nil, err
	}

	log.Debug("response generated", "history_turns", len(history), "elapsed", turn.Timestamp.Sub(start))

	return &Response{
		Text:      text,
		AgentID:   profile.ID,
		AgentName: profile.DisplayName,
		SessionID: sessionID,
		Timestamp: turn.Timestamp,
	}, nil
}

// History returns a copy of a session's turns. Unknown sessions yield an empty slice.
func (r *Router) History(sessionID string) []edgetypes.Turn {
	return r.store.Get(sessionID)
}

// HasSession reports whether sessionID has recorded turns.
func (r *Router) HasSession(sessionID string) bool {
	return r.store.Exists(sessionID)
}

func (r *Router) resolveAgent(agentID, message string) (*edgetypes.AgentProfile, error) {
	if agentID != "" {
		return r.registry.Lookup(agentID)
	}

	if ranked := r.classifier.Rank(message); len(ranked) > 0 {
		return r.registry.Lookup(ranked[0])
	}
	return r.registry.Lookup(r.settings.FallbackAgent)
}

// generate performs exactly one generation call and normalises every failure to a GenerationError.
func (r *Router) generate(ctx context.Context, prompt string) (string, error) {
	if r.generator == nil {
		return "", edgetypes.NewGenerationError(errors.New("no generation backend configured"))
	}

	text, err := r.generator.Generate(ctx, prompt, r.settings.Options)
	if err == nil && ctx.Err() != nil {
		// Output arriving after the deadline is discarded.
		err = ctx.Err()
	}
	if err != nil {
		return "", edgetypes.NewGenerationError(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", edgetypes.NewGenerationError(errors.New("empty response from model"))
	}
	return text, nil
}

func (r *Router) issueSessionID(agentID string) string {
	r.issuedMu.Lock()
	defer r.issuedMu.Unlock()

	for {
		id := r.settings.NewSessionID(agentID)
		if _, taken := r.issued[id]; taken {
			continue
		}
		if r.store.Exists(id) {
			continue
		}
		r.issued[id] = struct{}{}
		return id
	}
}

func (r *Router) forgetIssued(sessionID string) {
	r.issuedMu.Lock()
	delete(r.issued, sessionID)
	r.issuedMu.Unlock()
}
