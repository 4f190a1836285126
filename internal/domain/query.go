package domain

// Source describes one retrieved chunk that grounded an answer.
type Source struct {
	ChunkID string
	Title   string
	Score   float32
	Excerpt string
}

// QueryResult is the outcome of a single query. It is never persisted.
// Answered is false when generation failed and the answer is the fixed
// apology text. Grounded is false when no chunks backed the answer.
type QueryResult struct {
	Answer       string
	Sources      []Source
	Confidence   float32
	TotalSources int
	Answered     bool
	Grounded     bool
}
