package service

import (
	"strings"
	"unicode/utf8"
)

// ChunkConfig controls how source text is split before embedding.
type ChunkConfig struct {
	MaxChars int
	Overlap  int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 2000,
		Overlap:  200,
	}
}

// SplitText splits text into chunks on paragraph boundaries. Paragraphs
// accumulate into a chunk until the next one would push it past MaxChars;
// each new chunk starts with a sentence tail carried over from the previous
// chunk so semantic continuity survives the cut. A single paragraph longer
// than MaxChars is emitted as its own oversized chunk rather than split
// mid-sentence. Empty input yields no chunks. The same logic applies to
// uploaded plain text and OCR-extracted markdown.
func SplitText(text string, cfg ChunkConfig) []string {
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	chunks := make([]string, 0, 4)
	current := ""

	for _, p := range paragraphs {
		if current == "" {
			current = p
			continue
		}

		if utf8.RuneCountInString(current)+2+utf8.RuneCountInString(p) > cfg.MaxChars {
			chunks = append(chunks, current)
			tail := overlapTail(current, cfg.Overlap)
			if tail != "" {
				current = tail + "\n\n" + p
			} else {
				current = p
			}
			continue
		}

		current = current + "\n\n" + p
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, current)
	}

	return chunks
}

// splitParagraphs splits text into blank-line separated blocks.
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")

	var paragraphs []string
	var lines []string
	flush := func() {
		if len(lines) == 0 {
			return
		}
		block := strings.TrimSpace(strings.Join(lines, "\n"))
		if block != "" {
			paragraphs = append(paragraphs, block)
		}
		lines = lines[:0]
	}

	for _, line := range strings.Split(normalized, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	flush()

	return paragraphs
}

// overlapTail returns the last sentences of chunk whose combined length
// stays within overlap characters. May return an empty string when even the
// final sentence is longer than the overlap budget.
func overlapTail(chunk string, overlap int) string {
	if overlap <= 0 {
		return ""
	}

	sentences := splitSentences(chunk)
	total := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(sentences[i])
		if total+n > overlap {
			break
		}
		total += n
		start = i
	}

	if start == len(sentences) {
		return ""
	}
	return strings.TrimSpace(strings.Join(sentences[start:], " "))
}

func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			next := ' '
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if next == ' ' || next == '\n' || next == '\t' || i+1 == len(runes) {
				s := strings.TrimSpace(b.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				b.Reset()
			}
		}
	}

	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
