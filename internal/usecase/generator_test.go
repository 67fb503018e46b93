package usecase_test

import (
	"context"
	"errors"
	"testing"

	"medrag-orchestrator/internal/domain"
	"medrag-orchestrator/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestGenerator_SynthesizesAnswerFromEvidence(t *testing.T) {
	judge := new(MockJudgeClient)
	judge.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return("An A1C of 6.5% or higher indicates diabetes [doc 1].", nil)

	g := usecase.NewAnswerGenerator(judge, testLogger())
	res := g.Generate(context.Background(),
		domain.MedicalQuery{Question: "What A1C indicates diabetes?"},
		[]domain.RetrievedDocument{
			{ID: "d1", Title: "Glycemic Targets", Section: "Diagnosis", Text: "A1C >= 6.5% is diagnostic."},
		})

	assert.Equal(t, "An A1C of 6.5% or higher indicates diabetes [doc 1].", res.Answer)
	assert.Empty(t, res.Errors)

	msg := judge.Calls[0].Arguments.String(2)
	assert.Contains(t, msg, "[doc 1] Glycemic Targets (Diagnosis)")
	assert.Contains(t, msg, "A1C >= 6.5% is diagnostic.")
}

func TestGenerator_BiomarkersAndContextInPrompt(t *testing.T) {
	judge := new(MockJudgeClient)
	judge.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return("answer", nil)

	g := usecase.NewAnswerGenerator(judge, testLogger())
	g.Generate(context.Background(),
		domain.MedicalQuery{
			Question:       "Is this value concerning?",
			Biomarkers:     map[string]float64{"HbA1c": 8.2},
			PatientContext: "62-year-old, type 2 diabetes",
		},
		[]domain.RetrievedDocument{{ID: "d1", Title: "T", Text: "evidence"}})

	msg := judge.Calls[0].Arguments.String(2)
	assert.Contains(t, msg, "HbA1c: 8.2")
	assert.Contains(t, msg, "Patient context: 62-year-old, type 2 diabetes")
}

func TestGenerator_BiomarkersListedInSortedOrder(t *testing.T) {
	judge := new(MockJudgeClient)
	judge.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return("answer", nil)

	g := usecase.NewAnswerGenerator(judge, testLogger())
	query := domain.MedicalQuery{
		Question: "q",
		Biomarkers: map[string]float64{
			"LDL":        130,
			"HbA1c":      8.2,
			"Creatinine": 1.1,
			"ALT":        42,
		},
	}
	docs := []domain.RetrievedDocument{{ID: "d1", Title: "T", Text: "evidence"}}

	g.Generate(context.Background(), query, docs)
	g.Generate(context.Background(), query, docs)

	first := judge.Calls[0].Arguments.String(2)
	assert.Contains(t, first,
		"- ALT: 42\n- Creatinine: 1.1\n- HbA1c: 8.2\n- LDL: 130\n")

	// Map iteration order must not leak into the prompt: identical queries
	// build identical prompts.
	assert.Equal(t, first, judge.Calls[1].Arguments.String(2))
}

func TestGenerator_ZeroDocsReturnsNoEvidenceWithoutJudgeCall(t *testing.T) {
	judge := new(MockJudgeClient)

	g := usecase.NewAnswerGenerator(judge, testLogger())
	res := g.Generate(context.Background(), domain.MedicalQuery{Question: "q"}, nil)

	assert.Equal(t, usecase.NoEvidenceAnswer, res.Answer)
	assert.Empty(t, res.Errors)
	judge.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerator_JudgeFailureProducesFallbackWithOneError(t *testing.T) {
	judge := new(MockJudgeClient)
	judge.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("model crashed"))

	g := usecase.NewAnswerGenerator(judge, testLogger())
	docs := []domain.RetrievedDocument{{ID: "d1", Title: "T", Text: "evidence"}}

	// The failure contract must hold on every call, not just the first.
	for i := 0; i < 3; i++ {
		res := g.Generate(context.Background(), domain.MedicalQuery{Question: "q"}, docs)
		assert.Equal(t, usecase.FallbackAnswer, res.Answer)
		assert.Len(t, res.Errors, 1, "exactly one error per failed generation")
	}
}

func TestGenerator_EmptyReplyProducesFallback(t *testing.T) {
	judge := new(MockJudgeClient)
	judge.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return("   ", nil)

	g := usecase.NewAnswerGenerator(judge, testLogger())
	res := g.Generate(context.Background(), domain.MedicalQuery{Question: "q"},
		[]domain.RetrievedDocument{{ID: "d1", Title: "T", Text: "evidence"}})

	assert.Equal(t, usecase.FallbackAnswer, res.Answer)
	assert.Len(t, res.Errors, 1)
}

func TestGenerateStream_ZeroDocsEmitsNoEvidenceAnswer(t *testing.T) {
	judge := new(MockJudgeClient)

	g := usecase.NewAnswerGenerator(judge, testLogger())
	chunks, errCh, err := g.GenerateStream(context.Background(), domain.MedicalQuery{Question: "q"}, nil)

	assert.NoError(t, err)
	var text string
	for chunk := range chunks {
		text += chunk.Text
	}
	assert.Equal(t, usecase.NoEvidenceAnswer, text)
	_, open := <-errCh
	assert.False(t, open, "error channel must be closed")
	judge.AssertNotCalled(t, "InvokeStream", mock.Anything, mock.Anything, mock.Anything)
}
