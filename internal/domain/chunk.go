package domain

import "time"

// Chunk is one retrievable slice of source text together with its embedding.
type Chunk struct {
	ID         string
	Tenant     Tenant
	Title      string
	Content    string
	Tags       []string
	Embedding  []float32
	SourceName string
	ArchiveKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ScoredChunk is a chunk annotated with a similarity score from a search.
// Keyword-fallback results carry a zero score.
type ScoredChunk struct {
	Chunk
	Score float32
}
