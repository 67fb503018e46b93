package usecase_test

import (
	"context"
	"io"
	"log/slog"

	"medrag-orchestrator/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- Mocks shared by the node tests ---

type MockJudgeClient struct {
	mock.Mock
}

func (m *MockJudgeClient) Invoke(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	args := m.Called(ctx, systemPrompt, userMessage)
	return args.String(0), args.Error(1)
}

func (m *MockJudgeClient) InvokeStream(ctx context.Context, systemPrompt, userMessage string) (<-chan domain.JudgeStreamChunk, <-chan error, error) {
	args := m.Called(ctx, systemPrompt, userMessage)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(<-chan domain.JudgeStreamChunk), args.Get(1).(<-chan error), args.Error(2)
}

func (m *MockJudgeClient) Version() string {
	return "mock-judge"
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
