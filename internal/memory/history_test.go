package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebase-ai/notebase/internal/domain"
)

func turn(role domain.TurnRole, text string) domain.ConversationTurn {
	return domain.ConversationTurn{Role: role, Text: text, Timestamp: time.Now().UTC()}
}

func TestHistory_AppendAndRecent(t *testing.T) {
	h := NewHistory(10)

	h.Append(turn(domain.TurnRoleQuestion, "q1"))
	h.Append(turn(domain.TurnRoleAnswer, "a1"))
	h.Append(turn(domain.TurnRoleQuestion, "q2"))

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "a1", recent[0].Text)
	assert.Equal(t, "q2", recent[1].Text)
}

func TestHistory_EvictsOldestBeyondCap(t *testing.T) {
	h := NewHistory(4)

	for i := 1; i <= 6; i++ {
		h.Append(turn(domain.TurnRoleQuestion, fmt.Sprintf("q%d", i)))
	}

	assert.Equal(t, 4, h.Len())
	recent := h.Recent(4)
	require.Len(t, recent, 4)
	assert.Equal(t, "q3", recent[0].Text)
	assert.Equal(t, "q6", recent[3].Text)
}

func TestHistory_RecentMoreThanStored(t *testing.T) {
	h := NewHistory(10)
	h.Append(turn(domain.TurnRoleQuestion, "q1"))

	recent := h.Recent(5)
	require.Len(t, recent, 1)
	assert.Equal(t, "q1", recent[0].Text)
}

func TestHistory_RecentZeroOrEmpty(t *testing.T) {
	h := NewHistory(10)
	assert.Nil(t, h.Recent(3))

	h.Append(turn(domain.TurnRoleQuestion, "q1"))
	assert.Nil(t, h.Recent(0))
}

func TestHistory_RecentReturnsCopy(t *testing.T) {
	h := NewHistory(10)
	h.Append(turn(domain.TurnRoleQuestion, "q1"))

	recent := h.Recent(1)
	recent[0].Text = "mutated"

	assert.Equal(t, "q1", h.Recent(1)[0].Text)
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory(10)
	h.Append(turn(domain.TurnRoleQuestion, "q1"))
	h.Clear()

	assert.Equal(t, 0, h.Len())
	assert.Nil(t, h.Recent(1))
}

func TestHistory_DefaultCap(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 30; i++ {
		h.Append(turn(domain.TurnRoleQuestion, fmt.Sprintf("q%d", i)))
	}
	assert.Equal(t, 20, h.Len())
}
