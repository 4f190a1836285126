package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/notebase-ai/notebase/internal/api"
	"github.com/notebase-ai/notebase/internal/domain"
)

// ChunkService exposes administrative chunk and source-archive operations.
type ChunkService interface {
	UpdateChunkMeta(ctx context.Context, id, title string, tags []string) error
	DeleteChunk(ctx context.Context, id string) error
	DeleteTenant(ctx context.Context, tenant domain.Tenant) (int64, error)
	SourceDownloadURL(ctx context.Context, chunkID string) (string, error)
}

type ChunkHandler struct {
	svc ChunkService
}

func NewChunkHandler(svc ChunkService) *ChunkHandler {
	return &ChunkHandler{svc: svc}
}

type UpdateChunkRequest struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func chunkID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func (h *ChunkHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := chunkID(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid chunk id")
		return
	}

	var req UpdateChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpdateChunkMeta(r.Context(), id, req.Title, req.Tags); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *ChunkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := chunkID(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid chunk id")
		return
	}

	if err := h.svc.DeleteChunk(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type DeleteTenantRequest struct {
	TenantRequest
}

type DeleteTenantResponse struct {
	ChunksDeleted int64 `json:"chunks_deleted"`
}

func (h *ChunkHandler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	var req DeleteTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deleted, err := h.svc.DeleteTenant(r.Context(), req.toDomain())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DeleteTenantResponse{ChunksDeleted: deleted})
}

type SourceDownloadResponse struct {
	URL string `json:"url"`
}

func (h *ChunkHandler) SourceDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := chunkID(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid chunk id")
		return
	}

	url, err := h.svc.SourceDownloadURL(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SourceDownloadResponse{URL: url})
}
