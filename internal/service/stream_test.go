package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/notebase-ai/notebase/internal/domain"
	"github.com/notebase-ai/notebase/internal/vectorstore"
)

// scriptedStream replays tokens, then a terminal error (io.EOF for normal
// completion).
type scriptedStream struct {
	tokens   []string
	terminal error
	pos      int
	closed   bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.tokens) {
		return "", s.terminal
	}
	token := s.tokens[s.pos]
	s.pos++
	return token, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

func collectEvents(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestQueryStream_GroundedEventSequence(t *testing.T) {
	store := new(MockChunkStore)
	embedder := new(MockEmbedder)
	gen := new(MockGenerator)
	svc, _ := newTestService(store, embedder, gen)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.5, 0.5}, nil)
	store.On("Search", mock.Anything, testTenant, mock.Anything, mock.Anything, 5, float32(0.3)).
		Return(searchOutput(vectorstore.TierNativeVectorSearch, false,
			scoredChunkFor(testTenant, "c-1", 0.8)), nil)

	stream := &scriptedStream{tokens: []string{"Cell ", "division."}, terminal: io.EOF}
	gen.On("StreamComplete", mock.Anything, mock.Anything).Return(stream, nil)

	events, err := svc.QueryStream(context.Background(), QueryInput{
		Tenant:   testTenant,
		Question: "What is mitosis?",
	})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 4)

	assert.Equal(t, EventMetadata, got[0].Type)
	require.Len(t, got[0].Sources, 1)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-6)

	assert.Equal(t, EventChunk, got[1].Type)
	assert.Equal(t, "Cell ", got[1].Text)
	assert.Equal(t, EventChunk, got[2].Type)
	assert.Equal(t, "division.", got[2].Text)

	assert.Equal(t, EventComplete, got[3].Type)
	require.NotNil(t, got[3].Result)
	assert.Equal(t, "Cell division.", got[3].Result.Answer)
	assert.True(t, got[3].Result.Answered)
	assert.True(t, got[3].Result.Grounded)

	assert.True(t, stream.closed)
}

func TestQueryStream_RetrievalErrorReturnedDirectly(t *testing.T) {
	svc, _ := newTestService(new(MockChunkStore), new(MockEmbedder), new(MockGenerator))

	events, err := svc.QueryStream(context.Background(), QueryInput{
		Tenant:   testTenant,
		Question: "",
	})
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	assert.Nil(t, events)
}

func TestQueryStream_UngroundedLabelIsFirstChunk(t *testing.T) {
	store := new(MockChunkStore)
	embedder := new(MockEmbedder)
	gen := new(MockGenerator)
	svc, _ := newTestService(store, embedder, gen)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.5, 0.5}, nil)
	store.On("Search", mock.Anything, testTenant, mock.Anything, mock.Anything, 5, float32(0.3)).
		Return(searchOutput(vectorstore.TierManualCosineScan, false), nil)

	stream := &scriptedStream{tokens: []string{"General answer."}, terminal: io.EOF}
	gen.On("StreamComplete", mock.Anything, mock.Anything).Return(stream, nil)

	events, err := svc.QueryStream(context.Background(), QueryInput{
		Tenant:   testTenant,
		Question: "Unrelated?",
	})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 4)

	assert.Equal(t, EventChunk, got[1].Type)
	assert.True(t, strings.HasPrefix(got[1].Text, "(No matching notes found"))

	final := got[3].Result
	require.NotNil(t, final)
	assert.True(t, strings.HasPrefix(final.Answer, "(No matching notes found"))
	assert.Contains(t, final.Answer, "General answer.")
	assert.False(t, final.Grounded)
}

func TestQueryStream_DegradedLabelIsFirstChunk(t *testing.T) {
	store := new(MockChunkStore)
	embedder := new(MockEmbedder)
	gen := new(MockGenerator)
	svc, _ := newTestService(store, embedder, gen)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.5, 0.5}, nil)
	store.On("Search", mock.Anything, testTenant, mock.Anything, mock.Anything, 5, float32(0.3)).
		Return(searchOutput(vectorstore.TierTextFallback, true,
			scoredChunkFor(testTenant, "c-1", 0)), nil)

	stream := &scriptedStream{tokens: []string{"Keyword answer."}, terminal: io.EOF}
	gen.On("StreamComplete", mock.Anything, mock.Anything).Return(stream, nil)

	events, err := svc.QueryStream(context.Background(), QueryInput{
		Tenant:   testTenant,
		Question: "keyword?",
	})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 4)

	assert.Equal(t, EventChunk, got[1].Type)
	assert.True(t, strings.HasPrefix(got[1].Text, "(Semantic search was unavailable"))

	final := got[3].Result
	require.NotNil(t, final)
	assert.NotContains(t, final.Answer, "No matching notes found")
	assert.Contains(t, final.Answer, "Keyword answer.")
	assert.False(t, final.Grounded)
	assert.Equal(t, 1, final.TotalSources)
}

func TestQueryStream_OpenFailureSoftFallback(t *testing.T) {
	store := new(MockChunkStore)
	embedder := new(MockEmbedder)
	gen := new(MockGenerator)
	svc, sessions := newTestService(store, embedder, gen)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.5, 0.5}, nil)
	store.On("Search", mock.Anything, testTenant, mock.Anything, mock.Anything, 5, float32(0.3)).
		Return(searchOutput(vectorstore.TierNativeVectorSearch, false,
			scoredChunkFor(testTenant, "c-1", 0.8)), nil)
	gen.On("StreamComplete", mock.Anything, mock.Anything).Return(nil, errors.New("model down"))

	events, err := svc.QueryStream(context.Background(), QueryInput{
		Tenant:     testTenant,
		SessionKey: "sess-1",
		Question:   "q?",
	})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 2)

	assert.Equal(t, EventMetadata, got[0].Type)
	assert.Equal(t, EventComplete, got[1].Type)
	require.NotNil(t, got[1].Result)
	assert.Equal(t, fallbackAnswer, got[1].Result.Answer)
	assert.False(t, got[1].Result.Answered)

	// Nothing remembered for a failed generation.
	assert.Nil(t, sessions.Recent("sess-1", 10))
}

func TestQueryStream_MidStreamErrorEvent(t *testing.T) {
	store := new(MockChunkStore)
	embedder := new(MockEmbedder)
	gen := new(MockGenerator)
	svc, sessions := newTestService(store, embedder, gen)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.5, 0.5}, nil)
	store.On("Search", mock.Anything, testTenant, mock.Anything, mock.Anything, 5, float32(0.3)).
		Return(searchOutput(vectorstore.TierNativeVectorSearch, false,
			scoredChunkFor(testTenant, "c-1", 0.8)), nil)

	stream := &scriptedStream{tokens: []string{"partial "}, terminal: errors.New("connection reset")}
	gen.On("StreamComplete", mock.Anything, mock.Anything).Return(stream, nil)

	events, err := svc.QueryStream(context.Background(), QueryInput{
		Tenant:     testTenant,
		SessionKey: "sess-1",
		Question:   "q?",
	})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 3)

	assert.Equal(t, EventMetadata, got[0].Type)
	assert.Equal(t, EventChunk, got[1].Type)
	assert.Equal(t, EventError, got[2].Type)
	assert.NotEmpty(t, got[2].Message)

	// The interrupted exchange never enters memory.
	assert.Nil(t, sessions.Recent("sess-1", 10))
}

func TestQueryStream_SuccessAppendsMemory(t *testing.T) {
	store := new(MockChunkStore)
	embedder := new(MockEmbedder)
	gen := new(MockGenerator)
	svc, sessions := newTestService(store, embedder, gen)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.5, 0.5}, nil)
	store.On("Search", mock.Anything, testTenant, mock.Anything, mock.Anything, 5, float32(0.3)).
		Return(searchOutput(vectorstore.TierNativeVectorSearch, false,
			scoredChunkFor(testTenant, "c-1", 0.8)), nil)

	stream := &scriptedStream{tokens: []string{"answer"}, terminal: io.EOF}
	gen.On("StreamComplete", mock.Anything, mock.Anything).Return(stream, nil)

	events, err := svc.QueryStream(context.Background(), QueryInput{
		Tenant:     testTenant,
		SessionKey: "sess-1",
		Question:   "q?",
	})
	require.NoError(t, err)
	collectEvents(t, events)

	turns := sessions.Recent("sess-1", 10)
	require.Len(t, turns, 2)
	assert.Equal(t, "q?", turns[0].Text)
	assert.Equal(t, "answer", turns[1].Text)
}

func TestQueryStream_CancelStopsProducer(t *testing.T) {
	store := new(MockChunkStore)
	embedder := new(MockEmbedder)
	gen := new(MockGenerator)
	svc, _ := newTestService(store, embedder, gen)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.5, 0.5}, nil)
	store.On("Search", mock.Anything, testTenant, mock.Anything, mock.Anything, 5, float32(0.3)).
		Return(searchOutput(vectorstore.TierNativeVectorSearch, false,
			scoredChunkFor(testTenant, "c-1", 0.8)), nil)

	stream := &scriptedStream{tokens: []string{"a", "b", "c"}, terminal: io.EOF}
	gen.On("StreamComplete", mock.Anything, mock.Anything).Return(stream, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := svc.QueryStream(ctx, QueryInput{Tenant: testTenant, Question: "q?"})
	require.NoError(t, err)

	// Read the metadata event, then abandon the stream.
	ev := <-events
	assert.Equal(t, EventMetadata, ev.Type)
	cancel()

	// The producer must close the channel rather than block forever.
	for range events {
	}
}
