package domain

import "time"

// TurnRole distinguishes the two sides of a conversation exchange.
type TurnRole string

const (
	TurnRoleQuestion TurnRole = "question"
	TurnRoleAnswer   TurnRole = "answer"
)

// ConversationTurn is one side of a completed question/answer exchange.
type ConversationTurn struct {
	Role      TurnRole
	Text      string
	Timestamp time.Time
}

// ValidateTurn checks a turn before it enters session memory.
func ValidateTurn(t ConversationTurn) error {
	if t.Role != TurnRoleQuestion && t.Role != TurnRoleAnswer {
		return NewDomainError(ErrCodeInvalidInput, "invalid conversation turn role")
	}
	if t.Text == "" {
		return NewDomainError(ErrCodeInvalidInput, "conversation turn text is required")
	}
	return nil
}
