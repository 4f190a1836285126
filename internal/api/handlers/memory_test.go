package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/notebase-ai/notebase/internal/domain"
)

type MockMemoryService struct {
	mock.Mock
}

func (m *MockMemoryService) MemoryTurns(sessionKey string, n int) []domain.ConversationTurn {
	args := m.Called(sessionKey, n)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.ConversationTurn)
}

func (m *MockMemoryService) ClearMemory(sessionKey string) {
	m.Called(sessionKey)
}

func requestWithSession(method, target, session string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("session", session)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestMemoryHandler_Get(t *testing.T) {
	mockSvc := new(MockMemoryService)
	handler := NewMemoryHandler(mockSvc)

	now := time.Now().UTC()
	mockSvc.On("MemoryTurns", "sess-1", 0).Return([]domain.ConversationTurn{
		{Role: domain.TurnRoleQuestion, Text: "q1", Timestamp: now},
		{Role: domain.TurnRoleAnswer, Text: "a1", Timestamp: now},
	})

	req := requestWithSession(http.MethodGet, "/memory/sess-1", "sess-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data MemoryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.Data.SessionKey)
	require.Len(t, resp.Data.Turns, 2)
	assert.Equal(t, "question", resp.Data.Turns[0].Role)
	assert.Equal(t, "q1", resp.Data.Turns[0].Text)
	mockSvc.AssertExpectations(t)
}

func TestMemoryHandler_Get_WithLimit(t *testing.T) {
	mockSvc := new(MockMemoryService)
	handler := NewMemoryHandler(mockSvc)

	mockSvc.On("MemoryTurns", "sess-1", 3).Return(nil)

	req := requestWithSession(http.MethodGet, "/memory/sess-1?n=3", "sess-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestMemoryHandler_Get_InvalidLimit(t *testing.T) {
	mockSvc := new(MockMemoryService)
	handler := NewMemoryHandler(mockSvc)

	req := requestWithSession(http.MethodGet, "/memory/sess-1?n=abc", "sess-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "MemoryTurns")
}

func TestMemoryHandler_Get_MissingSession(t *testing.T) {
	handler := NewMemoryHandler(new(MockMemoryService))

	req := requestWithSession(http.MethodGet, "/memory/", "")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoryHandler_Clear(t *testing.T) {
	mockSvc := new(MockMemoryService)
	handler := NewMemoryHandler(mockSvc)

	mockSvc.On("ClearMemory", "sess-1").Return()

	req := requestWithSession(http.MethodDelete, "/memory/sess-1", "sess-1")
	w := httptest.NewRecorder()

	handler.Clear(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cleared")
	mockSvc.AssertExpectations(t)
}
