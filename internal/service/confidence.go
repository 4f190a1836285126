package service

import "github.com/notebase-ai/notebase/internal/domain"

// confidenceFromHits derives the answer confidence from the similarity
// scores of the chunks placed in the prompt: the mean of the scores, clamped
// to [0, 1]. Zero hits yield the configured baseline, so an ungrounded
// answer always reports low but nonzero confidence.
func confidenceFromHits(hits []domain.ScoredChunk, baseline float32) float32 {
	if len(hits) == 0 {
		return clamp01(baseline)
	}

	var sum float32
	for _, h := range hits {
		sum += h.Score
	}
	return clamp01(sum / float32(len(hits)))
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// sourcesFromHits converts retrieved chunks into the source attributions
// returned with an answer.
func sourcesFromHits(hits []domain.ScoredChunk) []domain.Source {
	sources := make([]domain.Source, len(hits))
	for i, h := range hits {
		title := h.Title
		if title == "" {
			title = h.SourceName
		}
		sources[i] = domain.Source{
			ChunkID: h.ID,
			Title:   title,
			Score:   h.Score,
			Excerpt: makeExcerpt(h.Content),
		}
	}
	return sources
}
