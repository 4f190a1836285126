package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notebase-ai/notebase/internal/domain"
	"github.com/notebase-ai/notebase/internal/memory"
	"github.com/notebase-ai/notebase/internal/openai"
	"github.com/notebase-ai/notebase/internal/telemetry"
	"github.com/notebase-ai/notebase/internal/vectorstore"
)

// ChunkStore is the persistence surface the orchestrator needs.
type ChunkStore interface {
	Add(ctx context.Context, chunk *domain.Chunk) (string, error)
	Search(ctx context.Context, tenant domain.Tenant, queryVector []float32, queryText string, k int, scoreThreshold float32) (*vectorstore.SearchOutput, error)
	GetByID(ctx context.Context, id string) (*domain.Chunk, error)
	UpdateMeta(ctx context.Context, id, title string, tags []string) (bool, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteByTenant(ctx context.Context, tenant domain.Tenant) (int64, error)
}

// Embedder converts text to vectors.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces answers, blocking or streamed.
type Generator interface {
	Complete(ctx context.Context, messages []openai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, messages []openai.ChatMessage) (openai.TokenStream, error)
}

// SourceArchive stores raw ingested documents and serves download links.
// Optional; a nil archive disables archival.
type SourceArchive interface {
	Store(ctx context.Context, key, text string) error
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Options holds the orchestrator's tuning knobs. Query-time and dedup
// thresholds are separate named values on purpose; they serve different call
// sites and share no "correct" default.
type Options struct {
	TopK                int
	QueryScoreThreshold float32
	DedupScoreThreshold float32
	BaselineConfidence  float32
	MemoryWindow        int
	EmbedTimeout        time.Duration
	GenerateTimeout     time.Duration
	Chunking            ChunkConfig
}

func DefaultOptions() Options {
	return Options{
		TopK:                5,
		QueryScoreThreshold: 0.3,
		DedupScoreThreshold: 0.7,
		BaselineConfidence:  0.1,
		MemoryWindow:        6,
		EmbedTimeout:        30 * time.Second,
		GenerateTimeout:     120 * time.Second,
		Chunking:            DefaultChunkConfig(),
	}
}

// RAGService orchestrates ingestion and retrieval-augmented queries.
type RAGService struct {
	store    ChunkStore
	embedder Embedder
	gen      Generator
	sessions *memory.Sessions
	archive  SourceArchive
	opts     Options
}

func NewRAGService(store ChunkStore, embedder Embedder, gen Generator, sessions *memory.Sessions, opts Options) *RAGService {
	if opts.TopK <= 0 {
		opts = DefaultOptions()
	}
	return &RAGService{
		store:    store,
		embedder: embedder,
		gen:      gen,
		sessions: sessions,
		opts:     opts,
	}
}

// WithArchive enables raw-document archival.
func (s *RAGService) WithArchive(archive SourceArchive) *RAGService {
	s.archive = archive
	return s
}

// Document is one raw text input to ingestion.
type Document struct {
	Title      string
	Text       string
	SourceName string
}

// IngestInput carries a batch of documents for one tenant.
type IngestInput struct {
	Tenant    domain.Tenant
	Documents []Document
	// Dedup skips chunks whose best similarity against the tenant's
	// existing chunks reaches the dedup threshold.
	Dedup bool
}

// DocumentError reports the failure of a single document within a batch.
type DocumentError struct {
	Index   int
	Title   string
	Message string
}

// IngestResult aggregates a batch ingest. A failed document never aborts its
// siblings.
type IngestResult struct {
	ChunksAdded   int
	ChunksSkipped int
	Errors        []DocumentError
}

// Ingest chunks, embeds, and stores each document. Embedding is batched per
// document; if the batch fails, none of that document's chunks are stored.
func (s *RAGService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if err := domain.ValidateTenant(input.Tenant); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "RAGService.Ingest", telemetry.SpanAttributes{
		TenantKey: input.Tenant.Key(),
		Operation: "ingest",
	})
	defer span.End()

	result := &IngestResult{}
	for i, doc := range input.Documents {
		added, skipped, err := s.ingestOne(ctx, input.Tenant, doc, input.Dedup)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Errors = append(result.Errors, DocumentError{
				Index:   i,
				Title:   doc.Title,
				Message: err.Error(),
			})
			continue
		}
		result.ChunksAdded += added
		result.ChunksSkipped += skipped
	}

	return result, nil
}

func (s *RAGService) ingestOne(ctx context.Context, tenant domain.Tenant, doc Document, dedup bool) (added, skipped int, err error) {
	if strings.TrimSpace(doc.Text) == "" {
		return 0, 0, domain.ErrEmptyDocument
	}

	chunks := SplitText(doc.Text, s.opts.Chunking)
	if len(chunks) == 0 {
		return 0, 0, domain.ErrEmptyDocument
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
	vectors, err := s.embedder.GenerateEmbeddings(embedCtx, chunks)
	cancel()
	if err != nil {
		return 0, 0, embeddingError(err)
	}
	if len(vectors) != len(chunks) {
		return 0, 0, fmt.Errorf("embedding batch returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	archiveKey := ""
	if s.archive != nil {
		archiveKey = fmt.Sprintf("%s/%s.txt", tenant.Key(), uuid.NewString())
		if archiveErr := s.archive.Store(ctx, archiveKey, doc.Text); archiveErr != nil {
			// Archival is best effort; retrieval does not depend on it.
			log.Printf("rag: source archive failed for %q: %v", doc.Title, archiveErr)
			archiveKey = ""
		}
	}

	sourceName := doc.SourceName
	if sourceName == "" {
		sourceName = doc.Title
	}

	now := time.Now().UTC()
	for i, text := range chunks {
		if dedup {
			dup, dupErr := s.isNearDuplicate(ctx, tenant, vectors[i])
			if dupErr != nil {
				return added, skipped, dupErr
			}
			if dup {
				skipped++
				continue
			}
		}

		chunk := &domain.Chunk{
			Tenant:     tenant,
			Title:      doc.Title,
			Content:    text,
			Embedding:  vectors[i],
			SourceName: sourceName,
			ArchiveKey: archiveKey,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, addErr := s.store.Add(ctx, chunk); addErr != nil {
			return added, skipped, fmt.Errorf("failed to store chunk: %w", addErr)
		}
		added++
	}

	return added, skipped, nil
}

func (s *RAGService) isNearDuplicate(ctx context.Context, tenant domain.Tenant, vector []float32) (bool, error) {
	out, err := s.store.Search(ctx, tenant, vector, "", 1, s.opts.DedupScoreThreshold)
	if err != nil {
		return false, err
	}
	return !out.Degraded && len(out.Chunks) > 0, nil
}

// QueryInput describes a single question against a tenant's collection.
type QueryInput struct {
	Tenant         domain.Tenant
	SessionKey     string
	Question       string
	K              int
	ScoreThreshold *float32
	IncludeMemory  bool
}

// Query answers a question with retrieved context, blocking until the full
// answer is available. Generation failure yields a labeled fallback answer
// with Answered=false, never an error to the end user.
func (s *RAGService) Query(ctx context.Context, input QueryInput) (*domain.QueryResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.Query", telemetry.SpanAttributes{
		TenantKey:  input.Tenant.Key(),
		SessionKey: input.SessionKey,
		Operation:  "query",
	})
	defer span.End()

	ret, err := s.retrieve(ctx, input)
	if err != nil {
		return nil, err
	}

	genSpanCtx, genSpan := telemetry.StartSpan(ctx, "RAGService.Generate", telemetry.SpanAttributes{
		Operation: "complete",
	})
	genCtx, cancel := context.WithTimeout(genSpanCtx, s.opts.GenerateTimeout)
	answer, err := s.gen.Complete(genCtx, ret.messages)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			genSpan.End()
			return nil, ctx.Err()
		}
		genSpan.SetError(domain.NewDomainErrorWithCause(domain.ErrCodeGenerationFailed, "chat completion failed", err))
		genSpan.End()
		return &domain.QueryResult{
			Answer:       fallbackAnswer,
			Sources:      ret.sources,
			Confidence:   ret.confidence,
			TotalSources: len(ret.sources),
			Answered:     false,
			Grounded:     false,
		}, nil
	}
	genSpan.End()

	answer = ret.label + answer

	s.remember(input, answer)

	return &domain.QueryResult{
		Answer:       answer,
		Sources:      ret.sources,
		Confidence:   ret.confidence,
		TotalSources: len(ret.sources),
		Answered:     true,
		Grounded:     ret.grounded,
	}, nil
}

// retrieval holds everything fixed before generation begins: the grounding
// set never changes once tokens start flowing.
type retrieval struct {
	hits       []domain.ScoredChunk
	sources    []domain.Source
	confidence float32
	grounded   bool
	// label is prepended to the generated answer when the grounding set is
	// absent or keyword-matched; empty for grounded retrievals.
	label    string
	messages []openai.ChatMessage
}

func (s *RAGService) retrieve(ctx context.Context, input QueryInput) (*retrieval, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if err := domain.ValidateTenant(input.Tenant); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "RAGService.Retrieve", telemetry.SpanAttributes{
		TenantKey:  input.Tenant.Key(),
		SessionKey: input.SessionKey,
		Operation:  "retrieve",
	})
	defer span.End()

	embedCtx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
	queryVector, err := s.embedder.GenerateEmbedding(embedCtx, question)
	cancel()
	if err != nil {
		return nil, embeddingError(err)
	}

	k := input.K
	if k <= 0 {
		k = s.opts.TopK
	}
	threshold := s.opts.QueryScoreThreshold
	if input.ScoreThreshold != nil {
		threshold = *input.ScoreThreshold
	}

	out, err := s.store.Search(ctx, input.Tenant, queryVector, question, k, threshold)
	if err != nil {
		return nil, err
	}
	if out.Degraded {
		telemetry.AddBreadcrumb(ctx, "retrieval", fmt.Sprintf("degraded to %s tier", out.Tier))
		telemetry.CaptureMessage(ctx, fmt.Sprintf("retrieval degraded to %s for tenant %s", out.Tier, input.Tenant.Key()))
	}

	var memTurns []domain.ConversationTurn
	if input.IncludeMemory && s.sessions != nil && input.SessionKey != "" {
		memTurns = s.sessions.Recent(input.SessionKey, s.opts.MemoryWindow)
	}

	grounded := len(out.Chunks) > 0 && !out.Degraded

	label := ""
	switch {
	case len(out.Chunks) == 0:
		label = ungroundedLabel
	case out.Degraded:
		label = degradedLabel
	}

	confidence := confidenceFromHits(out.Chunks, s.opts.BaselineConfidence)
	if out.Degraded {
		// Keyword-tier hits carry no similarity score.
		confidence = clamp01(s.opts.BaselineConfidence)
	}

	return &retrieval{
		hits:       out.Chunks,
		sources:    sourcesFromHits(out.Chunks),
		confidence: confidence,
		grounded:   grounded,
		label:      label,
		messages:   buildMessages(out.Chunks, memTurns, question),
	}, nil
}

// remember appends the finished exchange; a failed generation never reaches
// here, so memory holds only completed turns.
func (s *RAGService) remember(input QueryInput, answer string) {
	if s.sessions == nil || input.SessionKey == "" {
		return
	}
	now := time.Now().UTC()
	turns := []domain.ConversationTurn{
		{Role: domain.TurnRoleQuestion, Text: strings.TrimSpace(input.Question), Timestamp: now},
		{Role: domain.TurnRoleAnswer, Text: answer, Timestamp: now},
	}
	for _, turn := range turns {
		if err := s.sessions.Append(input.SessionKey, turn); err != nil {
			log.Printf("rag: memory turn dropped for session %q: %v", input.SessionKey, err)
		}
	}
}

// MemoryTurns returns a session's stored history, most recent last. n <= 0
// returns every turn the session retains; positive n narrows the window.
func (s *RAGService) MemoryTurns(sessionKey string, n int) []domain.ConversationTurn {
	if s.sessions == nil {
		return nil
	}
	if n <= 0 {
		return s.sessions.All(sessionKey)
	}
	return s.sessions.Recent(sessionKey, n)
}

// ClearMemory drops a session's history.
func (s *RAGService) ClearMemory(sessionKey string) {
	if s.sessions != nil {
		s.sessions.Clear(sessionKey)
	}
}

// DeleteTenant removes a tenant's whole collection.
func (s *RAGService) DeleteTenant(ctx context.Context, tenant domain.Tenant) (int64, error) {
	if err := domain.ValidateTenant(tenant); err != nil {
		return 0, err
	}
	return s.store.DeleteByTenant(ctx, tenant)
}

// UpdateChunkMeta applies an administrative title/tags edit.
func (s *RAGService) UpdateChunkMeta(ctx context.Context, id, title string, tags []string) error {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.UpdateChunkMeta", telemetry.SpanAttributes{
		ChunkID:   id,
		Operation: "update_meta",
	})
	defer span.End()

	found, err := s.store.UpdateMeta(ctx, id, title, tags)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrChunkNotFound
	}
	return nil
}

// DeleteChunk removes a single chunk by id.
func (s *RAGService) DeleteChunk(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.DeleteChunk", telemetry.SpanAttributes{
		ChunkID:   id,
		Operation: "delete",
	})
	defer span.End()

	found, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrChunkNotFound
	}
	return nil
}

// SourceDownloadURL returns a presigned link to the archived raw document
// behind a chunk.
func (s *RAGService) SourceDownloadURL(ctx context.Context, chunkID string) (string, error) {
	if s.archive == nil {
		return "", domain.ErrSourceNotArchived
	}
	chunk, err := s.store.GetByID(ctx, chunkID)
	if err != nil {
		return "", err
	}
	if chunk.ArchiveKey == "" {
		return "", domain.ErrSourceNotArchived
	}
	return s.archive.DownloadURL(ctx, chunk.ArchiveKey)
}

func embeddingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, openai.ErrEmptyText) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInvalidInput, "cannot embed empty text", err)
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable, "embedding model unavailable", err)
}
