package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/notebase-ai/notebase/internal/api"
	"github.com/notebase-ai/notebase/internal/domain"
)

// MemoryService exposes per-session conversation history.
type MemoryService interface {
	MemoryTurns(sessionKey string, n int) []domain.ConversationTurn
	ClearMemory(sessionKey string)
}

type MemoryHandler struct {
	svc MemoryService
}

func NewMemoryHandler(svc MemoryService) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

type TurnResponse struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type MemoryResponse struct {
	SessionKey string         `json:"session_key"`
	Turns      []TurnResponse `json:"turns"`
}

func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionKey := chi.URLParam(r, "session")
	if sessionKey == "" {
		api.Error(w, http.StatusBadRequest, "session key is required")
		return
	}

	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		n = parsed
	}

	turns := h.svc.MemoryTurns(sessionKey, n)
	resp := MemoryResponse{SessionKey: sessionKey, Turns: make([]TurnResponse, len(turns))}
	for i, turn := range turns {
		resp.Turns[i] = TurnResponse{
			Role:      string(turn.Role),
			Text:      turn.Text,
			Timestamp: turn.Timestamp,
		}
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *MemoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionKey := chi.URLParam(r, "session")
	if sessionKey == "" {
		api.Error(w, http.StatusBadRequest, "session key is required")
		return
	}

	h.svc.ClearMemory(sessionKey)
	api.Success(w, http.StatusOK, map[string]string{"status": "cleared"})
}
