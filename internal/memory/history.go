package memory

import "github.com/notebase-ai/notebase/internal/domain"

// History is a bounded, ordered record of conversation turns for one
// session. Oldest turns are evicted first once the cap is exceeded. Not safe
// for concurrent use; Sessions serializes access per session.
type History struct {
	cap   int
	turns []domain.ConversationTurn
}

func NewHistory(cap int) *History {
	if cap <= 0 {
		cap = 20
	}
	return &History{cap: cap}
}

// Append adds a turn, evicting the oldest turns beyond the cap.
func (h *History) Append(turn domain.ConversationTurn) {
	h.turns = append(h.turns, turn)
	if len(h.turns) > h.cap {
		overflow := len(h.turns) - h.cap
		h.turns = append(h.turns[:0], h.turns[overflow:]...)
	}
}

// Recent returns up to n turns, most recent last. The returned slice is a
// copy.
func (h *History) Recent(n int) []domain.ConversationTurn {
	if n <= 0 || len(h.turns) == 0 {
		return nil
	}
	if n > len(h.turns) {
		n = len(h.turns)
	}
	out := make([]domain.ConversationTurn, n)
	copy(out, h.turns[len(h.turns)-n:])
	return out
}

// Len returns the number of retained turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Clear drops all turns.
func (h *History) Clear() {
	h.turns = nil
}
