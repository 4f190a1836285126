package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/notebase-ai/notebase/internal/api"
	"github.com/notebase-ai/notebase/internal/domain"
	"github.com/notebase-ai/notebase/internal/service"
)

// RAGService is the orchestrator surface the HTTP layer depends on.
type RAGService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
	Query(ctx context.Context, input service.QueryInput) (*domain.QueryResult, error)
	QueryStream(ctx context.Context, input service.QueryInput) (<-chan service.StreamEvent, error)
}

type RAGHandler struct {
	svc RAGService
}

func NewRAGHandler(svc RAGService) *RAGHandler {
	return &RAGHandler{svc: svc}
}

// TenantRequest identifies the target collection. Both fields empty means
// the global knowledge base.
type TenantRequest struct {
	NotebookID string `json:"notebook_id"`
	UserID     string `json:"user_id"`
}

func (t TenantRequest) toDomain() domain.Tenant {
	return domain.Tenant{NotebookID: t.NotebookID, UserID: t.UserID}
}

type IngestDocumentRequest struct {
	Title      string `json:"title"`
	Text       string `json:"text"`
	SourceName string `json:"source_name"`
}

type IngestRequest struct {
	TenantRequest
	Documents []IngestDocumentRequest `json:"documents"`
	Dedup     bool                    `json:"dedup"`
}

type DocumentErrorResponse struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type IngestResponse struct {
	ChunksAdded   int                     `json:"chunks_added"`
	ChunksSkipped int                     `json:"chunks_skipped"`
	Errors        []DocumentErrorResponse `json:"errors,omitempty"`
}

func (h *RAGHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Documents) == 0 {
		api.Error(w, http.StatusBadRequest, "documents are required")
		return
	}

	input := service.IngestInput{
		Tenant: req.toDomain(),
		Dedup:  req.Dedup,
	}
	for _, doc := range req.Documents {
		input.Documents = append(input.Documents, service.Document{
			Title:      doc.Title,
			Text:       doc.Text,
			SourceName: doc.SourceName,
		})
	}

	result, err := h.svc.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := IngestResponse{
		ChunksAdded:   result.ChunksAdded,
		ChunksSkipped: result.ChunksSkipped,
	}
	for _, docErr := range result.Errors {
		resp.Errors = append(resp.Errors, DocumentErrorResponse{
			Index:   docErr.Index,
			Title:   docErr.Title,
			Message: docErr.Message,
		})
	}

	api.Success(w, http.StatusOK, resp)
}

type QueryRequest struct {
	TenantRequest
	Question       string   `json:"question"`
	K              int      `json:"k"`
	ScoreThreshold *float32 `json:"score_threshold"`
	IncludeMemory  bool     `json:"include_memory"`
	SessionKey     string   `json:"session_key"`
}

type SourceResponse struct {
	ChunkID string  `json:"chunk_id"`
	Title   string  `json:"title"`
	Score   float32 `json:"score"`
	Excerpt string  `json:"excerpt"`
}

type QueryResponse struct {
	Answer       string           `json:"answer"`
	Sources      []SourceResponse `json:"sources"`
	Confidence   float32          `json:"confidence"`
	TotalSources int              `json:"total_sources"`
	Answered     bool             `json:"answered"`
	Grounded     bool             `json:"grounded"`
}

func sourcesToResponse(sources []domain.Source) []SourceResponse {
	out := make([]SourceResponse, len(sources))
	for i, s := range sources {
		out[i] = SourceResponse{
			ChunkID: s.ChunkID,
			Title:   s.Title,
			Score:   s.Score,
			Excerpt: s.Excerpt,
		}
	}
	return out
}

func (r QueryRequest) toInput() service.QueryInput {
	return service.QueryInput{
		Tenant:         r.toDomain(),
		SessionKey:     r.SessionKey,
		Question:       r.Question,
		K:              r.K,
		ScoreThreshold: r.ScoreThreshold,
		IncludeMemory:  r.IncludeMemory,
	}
}

func (h *RAGHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Query(r.Context(), req.toInput())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, QueryResponse{
		Answer:       result.Answer,
		Sources:      sourcesToResponse(result.Sources),
		Confidence:   result.Confidence,
		TotalSources: result.TotalSources,
		Answered:     result.Answered,
		Grounded:     result.Grounded,
	})
}
