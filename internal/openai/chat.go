package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	Role    string
	Content string
}

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// TokenStream yields incremental completion text. Recv returns io.EOF when
// the model has finished; Close releases the underlying connection.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// ChatAPI defines the interface for chat completion calls.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error)
	CreateChatCompletionStream(ctx context.Context, messages []ChatMessage) (TokenStream, error)
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// CreateChatCompletion calls the OpenAI API and waits for the full completion.
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.chatModel,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// CreateChatCompletionStream opens a streaming completion.
func (a *OpenAIAdapter) CreateChatCompletionStream(ctx context.Context, messages []ChatMessage) (TokenStream, error) {
	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    a.chatModel,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	return &openAITokenStream{inner: stream}, nil
}

type openAITokenStream struct {
	inner *openai.ChatCompletionStream
}

func (s *openAITokenStream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openAITokenStream) Close() error {
	return s.inner.Close()
}

// Complete generates a full answer for the given messages.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyText
	}
	answer, err := c.chat.CreateChatCompletion(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return answer, nil
}

// StreamComplete opens a streaming answer for the given messages. The caller
// owns the returned stream and must Close it; Recv returns io.EOF at the end.
func (c *Client) StreamComplete(ctx context.Context, messages []ChatMessage) (TokenStream, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyText
	}
	stream, err := c.chat.CreateChatCompletionStream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("chat completion stream failed: %w", err)
	}
	return stream, nil
}

// IsStreamEnd reports whether a stream Recv error marks normal completion.
func IsStreamEnd(err error) bool {
	return errors.Is(err, io.EOF)
}
