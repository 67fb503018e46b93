package usecase_test

import (
	"context"
	"errors"
	"testing"

	"medrag-orchestrator/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRewriter_ReturnsRewrittenQuery(t *testing.T) {
	judge := new(MockJudgeClient)
	judge.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"query": "hemoglobin A1c diagnostic threshold diabetes mellitus"}`, nil)

	r := usecase.NewQueryRewriter(judge, testLogger())
	rewritten, advisory := r.Rewrite(context.Background(), "a1c for diabetes?", "")

	assert.Equal(t, "hemoglobin A1c diagnostic threshold diabetes mellitus", rewritten)
	assert.Empty(t, advisory)
}

func TestRewriter_IncludesPatientContext(t *testing.T) {
	judge := new(MockJudgeClient)
	judge.On("Invoke", mock.Anything, mock.Anything, mock.MatchedBy(func(msg string) bool {
		return len(msg) > 0 && msg != "a1c?"
	})).Return(`{"query": "rewritten"}`, nil)

	r := usecase.NewQueryRewriter(judge, testLogger())
	rewritten, _ := r.Rewrite(context.Background(), "a1c?", "62-year-old with type 2 diabetes")

	assert.Equal(t, "rewritten", rewritten)
	judge.AssertCalled(t, "Invoke", mock.Anything, mock.Anything,
		"a1c?\n\nPatient context: 62-year-old with type 2 diabetes")
}

func TestRewriter_JudgeFailureReturnsOriginal(t *testing.T) {
	judge := new(MockJudgeClient)
	judge.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("connection refused"))

	r := usecase.NewQueryRewriter(judge, testLogger())
	rewritten, advisory := r.Rewrite(context.Background(), "original question", "")

	assert.Equal(t, "original question", rewritten)
	assert.Contains(t, advisory, "query rewrite failed")
}

func TestRewriter_BareTextReplyAccepted(t *testing.T) {
	judge := new(MockJudgeClient)
	judge.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return("  glycated hemoglobin reference range  ", nil)

	r := usecase.NewQueryRewriter(judge, testLogger())
	rewritten, advisory := r.Rewrite(context.Background(), "original", "")

	assert.Equal(t, "glycated hemoglobin reference range", rewritten)
	assert.Empty(t, advisory)
}

func TestRewriter_EmptyQueryFieldReturnsOriginal(t *testing.T) {
	judge := new(MockJudgeClient)
	judge.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"query": ""}`, nil)

	r := usecase.NewQueryRewriter(judge, testLogger())
	rewritten, advisory := r.Rewrite(context.Background(), "original", "")

	assert.Equal(t, "original", rewritten)
	assert.NotEmpty(t, advisory)
}
