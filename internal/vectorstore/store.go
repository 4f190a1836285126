package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/notebase-ai/notebase/internal/domain"
	"github.com/notebase-ai/notebase/internal/openai"
	"github.com/notebase-ai/notebase/internal/telemetry"
)

// Tier identifies one search strategy in the fallback chain.
type Tier string

const (
	TierNativeVectorSearch Tier = "native_vector_search"
	TierManualCosineScan   Tier = "manual_cosine_scan"
	TierTextFallback       Tier = "text_fallback"
)

// Backend is the low-level persistence surface the tiered store runs on.
// Every operation is scoped by tenant; the backend never sees a query
// without one.
type Backend interface {
	Insert(ctx context.Context, chunk *domain.Chunk) (string, error)
	NativeSearch(ctx context.Context, tenant domain.Tenant, queryVector []float32, k int, scoreThreshold float32) ([]domain.ScoredChunk, error)
	ListByTenant(ctx context.Context, tenant domain.Tenant) ([]domain.Chunk, error)
	TextSearch(ctx context.Context, tenant domain.Tenant, query string, k int) ([]domain.Chunk, error)
	GetByID(ctx context.Context, id string) (*domain.Chunk, error)
	UpdateMeta(ctx context.Context, id, title string, tags []string) (bool, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteByTenant(ctx context.Context, tenant domain.Tenant) (int64, error)
}

// SearchOutput carries ranked chunks plus which tier produced them.
// Degraded is true only for the keyword tier, whose results have no
// similarity score.
type SearchOutput struct {
	Chunks   []domain.ScoredChunk
	Tier     Tier
	Degraded bool
}

// Store layers the three-tier fallback search over a Backend.
type Store struct {
	backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Add persists a chunk and returns its assigned id.
func (s *Store) Add(ctx context.Context, chunk *domain.Chunk) (string, error) {
	return s.backend.Insert(ctx, chunk)
}

type searchTier struct {
	name Tier
	// advanceOnEmpty moves to the next tier when the tier returns zero
	// rows without error. Only the native tier does this: an empty
	// manual scan is a real answer, not a failure.
	advanceOnEmpty bool
	run            func(ctx context.Context) (*SearchOutput, error)
}

// Search runs the fallback chain: native vector search, then a manual cosine
// scan, then keyword matching against queryText. A tier error advances the
// chain (logged, not surfaced); dimension mismatches and isolation violations
// abort immediately.
func (s *Store) Search(ctx context.Context, tenant domain.Tenant, queryVector []float32, queryText string, k int, scoreThreshold float32) (*SearchOutput, error) {
	if k <= 0 {
		k = 5
	}

	tiers := []searchTier{
		{
			name:           TierNativeVectorSearch,
			advanceOnEmpty: true,
			run: func(ctx context.Context) (*SearchOutput, error) {
				hits, err := s.backend.NativeSearch(ctx, tenant, queryVector, k, scoreThreshold)
				if err != nil {
					return nil, err
				}
				return &SearchOutput{Chunks: hits, Tier: TierNativeVectorSearch}, nil
			},
		},
		{
			name: TierManualCosineScan,
			run: func(ctx context.Context) (*SearchOutput, error) {
				all, err := s.backend.ListByTenant(ctx, tenant)
				if err != nil {
					return nil, err
				}
				hits, err := RankByCosine(all, queryVector, k, scoreThreshold)
				if err != nil {
					return nil, err
				}
				return &SearchOutput{Chunks: hits, Tier: TierManualCosineScan}, nil
			},
		},
		{
			name: TierTextFallback,
			run: func(ctx context.Context) (*SearchOutput, error) {
				chunks, err := s.backend.TextSearch(ctx, tenant, queryText, k)
				if err != nil {
					return nil, err
				}
				hits := make([]domain.ScoredChunk, len(chunks))
				for i, c := range chunks {
					hits[i] = domain.ScoredChunk{Chunk: c}
				}
				return &SearchOutput{Chunks: hits, Tier: TierTextFallback, Degraded: true}, nil
			},
		},
	}

	var lastErr error
	for i, tier := range tiers {
		out, err := tier.run(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrDimensionMismatch) || errors.Is(err, domain.ErrTenantIsolation) || ctx.Err() != nil {
				return nil, err
			}
			log.Printf("vectorstore: tier %s failed, falling back: %v", tier.name, err)
			lastErr = err
			continue
		}

		if len(out.Chunks) == 0 && tier.advanceOnEmpty && i+1 < len(tiers) {
			continue
		}

		if err := verifyTenant(tenant, out.Chunks); err != nil {
			telemetry.CaptureError(ctx, err)
			return nil, err
		}
		return out, nil
	}

	return nil, fmt.Errorf("all search tiers failed: %w", lastErr)
}

// TextSearchByQuery runs the keyword tier directly for callers that have no
// query vector at all.
func (s *Store) TextSearchByQuery(ctx context.Context, tenant domain.Tenant, query string, k int) ([]domain.Chunk, error) {
	if k <= 0 {
		k = 5
	}
	chunks, err := s.backend.TextSearch(ctx, tenant, query, k)
	if err != nil {
		return nil, err
	}
	scored := make([]domain.ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = domain.ScoredChunk{Chunk: c}
	}
	if err := verifyTenant(tenant, scored); err != nil {
		telemetry.CaptureError(ctx, err)
		return nil, err
	}
	return chunks, nil
}

// GetByID fetches a single chunk.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Chunk, error) {
	return s.backend.GetByID(ctx, id)
}

// UpdateMeta applies an administrative edit to title and tags. Chunk content
// and embedding stay immutable after creation.
func (s *Store) UpdateMeta(ctx context.Context, id, title string, tags []string) (bool, error) {
	return s.backend.UpdateMeta(ctx, id, title, tags)
}

// DeleteByID removes one chunk.
func (s *Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	return s.backend.DeleteByID(ctx, id)
}

// DeleteByTenant removes every chunk in the tenant's collection and returns
// the count. Other tenants sharing the physical store are untouched.
func (s *Store) DeleteByTenant(ctx context.Context, tenant domain.Tenant) (int64, error) {
	return s.backend.DeleteByTenant(ctx, tenant)
}

// RankByCosine is the guaranteed-available retrieval path: score every chunk
// against the query vector, drop those below the threshold, and return the
// top k. The sort is stable so equal scores keep insertion order.
func RankByCosine(chunks []domain.Chunk, queryVector []float32, k int, scoreThreshold float32) ([]domain.ScoredChunk, error) {
	scored := make([]domain.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		score, err := openai.CosineSimilarity(queryVector, c.Embedding)
		if err != nil {
			return nil, err
		}
		if score < scoreThreshold {
			continue
		}
		scored = append(scored, domain.ScoredChunk{Chunk: c, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// verifyTenant is the last line of defense for tenant isolation. Filtering
// happens at the query level; a mismatch here means that filtering is broken
// and the search must fail loudly.
func verifyTenant(tenant domain.Tenant, hits []domain.ScoredChunk) error {
	for _, h := range hits {
		if h.Tenant != tenant {
			return domain.NewDomainErrorWithCause(
				domain.ErrCodeTenantIsolation,
				fmt.Sprintf("chunk %s belongs to tenant %s, query was for %s", h.ID, h.Tenant.Key(), tenant.Key()),
				domain.ErrTenantIsolation,
			)
		}
	}
	return nil
}
