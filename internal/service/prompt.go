package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/notebase-ai/notebase/internal/domain"
	"github.com/notebase-ai/notebase/internal/openai"
)

const groundedSystemPrompt = `You are a study assistant answering questions about the user's own notes.
Use only the provided context excerpts to answer. When the context does not
contain the answer, say so instead of inventing one. Keep answers concise.`

const ungroundedSystemPrompt = `You are a study assistant. No notes matched this question, so answer from
general knowledge, briefly, and make clear the answer is not based on the
user's notes.`

// ungroundedLabel prefixes answers produced without any retrieved context.
const ungroundedLabel = "(No matching notes found; this answer is not grounded in your notebook.)\n\n"

// degradedLabel prefixes answers built from keyword-matched notes. The
// excerpts are real notebook content but were matched without similarity
// scores, so they get a distinct caveat from the no-context case.
const degradedLabel = "(Semantic search was unavailable; these notes matched by keyword only.)\n\n"

// fallbackAnswer is returned when the language model call fails. Never an
// empty answer, and never a raw upstream error.
const fallbackAnswer = "Sorry, I couldn't generate an answer right now. Please try again in a moment."

const excerptMaxChars = 220

// buildMessages assembles the chat request: system instructions, retrieved
// excerpts in descending score order, optional conversation history, and the
// question last.
func buildMessages(hits []domain.ScoredChunk, memTurns []domain.ConversationTurn, question string) []openai.ChatMessage {
	messages := make([]openai.ChatMessage, 0, len(memTurns)+3)

	if len(hits) == 0 {
		messages = append(messages, openai.ChatMessage{Role: openai.RoleSystem, Content: ungroundedSystemPrompt})
	} else {
		var b strings.Builder
		b.WriteString(groundedSystemPrompt)
		b.WriteString("\n\nContext excerpts:\n")
		for _, hit := range hits {
			title := hit.Title
			if title == "" {
				title = hit.SourceName
			}
			fmt.Fprintf(&b, "\n[%s]\n%s\n", title, hit.Content)
		}
		messages = append(messages, openai.ChatMessage{Role: openai.RoleSystem, Content: b.String()})
	}

	for _, turn := range memTurns {
		role := openai.RoleUser
		if turn.Role == domain.TurnRoleAnswer {
			role = openai.RoleAssistant
		}
		messages = append(messages, openai.ChatMessage{Role: role, Content: turn.Text})
	}

	messages = append(messages, openai.ChatMessage{Role: openai.RoleUser, Content: question})
	return messages
}

// makeExcerpt collapses whitespace and truncates content for source
// listings. Truncation counts runes, never splitting a multibyte character.
func makeExcerpt(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(clean) <= excerptMaxChars {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:excerptMaxChars-3]) + "..."
}
