package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bytedge/internal/router"
	"bytedge/pkg/edgetypes"
)

type chatRequest struct {
	Message        *string `json:"message"`
	Agent          string  `json:"agent"`
	ConversationID string  `json:"conversation_id"`
}

type chatResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	Agent          string `json:"agent"`
	AgentID        string `json:"agent_id"`
	ConversationID string `json:"conversation_id"`
	Timestamp      string `json:"timestamp"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type healthResponse struct {
	Status          string   `json:"status"`
	Timestamp       string   `json:"timestamp"`
	AIInitialized   bool     `json:"ai_initialized"`
	AvailableAgents []string `json:"available_agents"`
}

type agentSummary struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Domain string `json:"domain"`
}

type sessionResponse struct {
	Success        bool             `json:"success"`
	ConversationID string           `json:"conversation_id"`
	Turns          []edgetypes.Turn `json:"turns"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:          "healthy",
		Timestamp:       s.opts.Now().Format(time.RFC3339),
		AIInitialized:   s.router.HasGenerator(),
		AvailableAgents: s.router.Registry().IDs(),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	agents := make(map[string]agentSummary, s.router.Registry().Len())
	for _, p := range s.router.Registry().List() {
		agents[p.ID] = agentSummary{Name: p.DisplayName, Avatar: p.Avatar, Domain: p.Domain}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	s.respond(w, r, router.Request{
		Message:   *req.Message,
		AgentID:   r.PathValue("agent"),
		SessionID: req.ConversationID,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	s.respond(w, r, router.Request{
		Message:   *req.Message,
		AgentID:   req.Agent,
		SessionID: req.ConversationID,
	})
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, req router.Request) {
	resp, err := s.router.Respond(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info("chat answered", "agent", resp.AgentID, "session", resp.SessionID, "length", len(resp.Text))
	writeJSON(w, http.StatusOK, chatResponse{
		Success:        true,
		Message:        resp.Text,
		Agent:          resp.AgentName,
		AgentID:        resp.AgentID,
		ConversationID: resp.SessionID,
		Timestamp:      resp.Timestamp.Format(time.RFC3339),
	})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}

	suggestion, err := s.router.Suggest(r.Context(), *req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*router.Suggestion
	}{true, suggestion})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.router.HasSession(id) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("conversation %s not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Success:        true,
		ConversationID: id,
		Turns:          s.router.History(id),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "Endpoint not found"})
}

// decodeChat reads a JSON body that must carry a message field. It writes the 400 itself.
func (s *Server) decodeChat(w http.ResponseWriter, r *http.Request) (*chatRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "invalid JSON: " + err.Error()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large (max 1MB)"
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return nil, false
	}
	if req.Message == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Message is required"})
		return nil, false
	}
	return &req, true
}

// writeError maps router errors onto status codes: 400 for bad input,
// 502 for upstream generation failures and 500 for anything else.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "Internal server error"

	switch {
	case errors.Is(err, edgetypes.ErrEmptyMessage):
		status, msg = http.StatusBadRequest, "Message cannot be empty"
	case errors.Is(err, edgetypes.ErrUnknownAgent):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, edgetypes.ErrGenerationFailed):
		status, msg = http.StatusBadGateway, "Failed to generate response"
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
