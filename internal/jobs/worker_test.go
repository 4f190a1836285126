package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/notebase-ai/notebase/internal/domain"
	"github.com/notebase-ai/notebase/internal/memory"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestSessionSweeper_RemovesExpiredSessions(t *testing.T) {
	sessions := memory.NewSessions(10, 50*time.Millisecond)
	sessions.Append("stale", domain.ConversationTurn{Role: domain.TurnRoleQuestion, Text: "q"})

	time.Sleep(100 * time.Millisecond)

	sweeper := NewSessionSweeper(sessions)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, sessions.Len())
}

func TestSessionSweeper_KeepsActiveSessions(t *testing.T) {
	sessions := memory.NewSessions(10, time.Hour)
	sessions.Append("active", domain.ConversationTurn{Role: domain.TurnRoleQuestion, Text: "q"})

	sweeper := NewSessionSweeper(sessions)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, sessions.Len())
}
