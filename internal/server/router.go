package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/notebase-ai/notebase/internal/api"
	"github.com/notebase-ai/notebase/internal/api/handlers"
	"github.com/notebase-ai/notebase/internal/api/middleware"
)

type RouterConfig struct {
	RAGHandler    *handlers.RAGHandler
	MemoryHandler *handlers.MemoryHandler
	ChunkHandler  *handlers.ChunkHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/ingest", cfg.RAGHandler.Ingest)
	r.Post("/query", cfg.RAGHandler.Query)
	r.Post("/query/stream", cfg.RAGHandler.QueryStream)

	r.Route("/memory", func(r chi.Router) {
		r.Get("/{session}", cfg.MemoryHandler.Get)
		r.Delete("/{session}", cfg.MemoryHandler.Clear)
	})

	r.Route("/chunks", func(r chi.Router) {
		r.Patch("/{id}", cfg.ChunkHandler.Update)
		r.Delete("/{id}", cfg.ChunkHandler.Delete)
	})

	r.Get("/sources/{id}/download", cfg.ChunkHandler.SourceDownload)
	r.Delete("/collections", cfg.ChunkHandler.DeleteTenant)

	return r
}
