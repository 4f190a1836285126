package service

import (
	"context"
	"strings"

	"github.com/notebase-ai/notebase/internal/domain"
	"github.com/notebase-ai/notebase/internal/openai"
	"github.com/notebase-ai/notebase/internal/telemetry"
)

// EventType tags a streamed query event.
type EventType string

const (
	// EventMetadata is emitted once, before generation starts, carrying
	// the fixed grounding set and provisional confidence.
	EventMetadata EventType = "metadata"
	// EventChunk carries an incremental piece of answer text.
	EventChunk EventType = "chunk"
	// EventComplete terminates a successful stream with the assembled
	// answer.
	EventComplete EventType = "complete"
	// EventError terminates a stream that failed mid-generation.
	EventError EventType = "error"
)

// StreamEvent is one element of a streamed query response.
type StreamEvent struct {
	Type       EventType
	Text       string
	Sources    []domain.Source
	Confidence float32
	Result     *domain.QueryResult
	Message    string
}

// QueryStream answers a question as an event sequence. Validation,
// embedding, and retrieval happen synchronously: an error there is returned
// directly and no channel is opened. The returned channel is closed by the
// producer after the terminal event. Cancelling ctx stops the producer and
// abandons the upstream model call.
func (s *RAGService) QueryStream(ctx context.Context, input QueryInput) (<-chan StreamEvent, error) {
	ret, err := s.retrieve(ctx, input)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent)
	go s.produceStream(ctx, input, ret, events)
	return events, nil
}

func (s *RAGService) produceStream(ctx context.Context, input QueryInput, ret *retrieval, events chan<- StreamEvent) {
	defer close(events)

	ctx, span := telemetry.StartSpan(ctx, "RAGService.StreamGenerate", telemetry.SpanAttributes{
		TenantKey:  input.Tenant.Key(),
		SessionKey: input.SessionKey,
		Operation:  "stream",
	})
	defer span.End()

	if !emit(ctx, events, StreamEvent{
		Type:       EventMetadata,
		Sources:    ret.sources,
		Confidence: ret.confidence,
	}) {
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()

	stream, err := s.gen.StreamComplete(genCtx, ret.messages)
	if err != nil {
		// Nothing was generated yet; degrade softly like the blocking
		// path does.
		span.SetError(domain.NewDomainErrorWithCause(domain.ErrCodeGenerationFailed, "stream open failed", err))
		emit(ctx, events, StreamEvent{
			Type: EventComplete,
			Result: &domain.QueryResult{
				Answer:       fallbackAnswer,
				Sources:      ret.sources,
				Confidence:   ret.confidence,
				TotalSources: len(ret.sources),
				Answered:     false,
			},
		})
		return
	}
	defer stream.Close()

	var answer strings.Builder
	if ret.label != "" {
		if !emit(ctx, events, StreamEvent{Type: EventChunk, Text: ret.label}) {
			return
		}
		answer.WriteString(ret.label)
	}

	for {
		token, err := stream.Recv()
		if err != nil {
			if openai.IsStreamEnd(err) {
				break
			}
			if ctx.Err() != nil {
				// Caller went away; stop pulling upstream tokens.
				return
			}
			span.SetError(domain.NewDomainErrorWithCause(domain.ErrCodeGenerationFailed, "stream interrupted", err))
			emit(ctx, events, StreamEvent{Type: EventError, Message: "answer generation was interrupted"})
			return
		}
		if token == "" {
			continue
		}
		answer.WriteString(token)
		if !emit(ctx, events, StreamEvent{Type: EventChunk, Text: token}) {
			return
		}
	}

	full := answer.String()
	s.remember(input, full)

	emit(ctx, events, StreamEvent{
		Type: EventComplete,
		Result: &domain.QueryResult{
			Answer:       full,
			Sources:      ret.sources,
			Confidence:   ret.confidence,
			TotalSources: len(ret.sources),
			Answered:     true,
			Grounded:     ret.grounded,
		},
	})
}

// emit sends unless the consumer is gone; false means stop producing.
func emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
