package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/notebase-ai/notebase/internal/api"
	"github.com/notebase-ai/notebase/internal/service"
)

type streamMetadataPayload struct {
	Sources    []SourceResponse `json:"sources"`
	Confidence float32          `json:"confidence"`
}

type streamChunkPayload struct {
	Text string `json:"text"`
}

type streamErrorPayload struct {
	Message string `json:"message"`
}

// QueryStream answers a question over Server-Sent Events. Retrieval errors
// surface as a plain JSON error before any event is written; once the
// stream is open, failures arrive as an "error" event instead.
func (h *RAGHandler) QueryStream(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, err := h.svc.QueryStream(r.Context(), req.toInput())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		switch ev.Type {
		case service.EventMetadata:
			writeSSE(w, flusher, "metadata", streamMetadataPayload{
				Sources:    sourcesToResponse(ev.Sources),
				Confidence: ev.Confidence,
			})
		case service.EventChunk:
			writeSSE(w, flusher, "chunk", streamChunkPayload{Text: ev.Text})
		case service.EventComplete:
			writeSSE(w, flusher, "complete", QueryResponse{
				Answer:       ev.Result.Answer,
				Sources:      sourcesToResponse(ev.Result.Sources),
				Confidence:   ev.Result.Confidence,
				TotalSources: ev.Result.TotalSources,
				Answered:     ev.Result.Answered,
				Grounded:     ev.Result.Grounded,
			})
		case service.EventError:
			writeSSE(w, flusher, "error", streamErrorPayload{Message: ev.Message})
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("sse_marshal_error: event=%s err=%v", event, err)
		return
	}

	if _, err := w.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n")); err != nil {
		// Client went away; the producer notices via request context.
		return
	}
	flusher.Flush()
}
