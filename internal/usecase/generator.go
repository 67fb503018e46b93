package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"medrag-orchestrator/internal/domain"
)

const (
	// FallbackAnswer is the fixed apologetic reply for generation failures.
	FallbackAnswer = "I'm sorry, I couldn't generate an answer to your question right now. Please try again in a moment."

	// NoEvidenceAnswer is the fixed reply when no relevant evidence exists.
	NoEvidenceAnswer = "I found insufficient evidence in the available documents to answer this question reliably. Please consult a healthcare professional for guidance."

	// evidenceDocCharLimit bounds each evidence chunk in the prompt.
	evidenceDocCharLimit = 1500
)

const generatorSystemPrompt = `You are a careful medical assistant. Answer the question using ONLY the provided evidence documents.
Cite evidence as [doc N] inline. If the evidence does not support an answer, say so plainly.
Never invent clinical facts that are not in the evidence.`

// GenerationResult is the generator's output: an answer is always present.
type GenerationResult struct {
	Answer string
	Errors []string
}

// AnswerGenerator synthesizes a cited answer from graded-relevant evidence.
// It is the terminal pipeline node: failures degrade to a fixed fallback
// string rather than retrying.
type AnswerGenerator struct {
	judge  domain.JudgeClient
	logger *slog.Logger
}

// NewAnswerGenerator creates the generator.
func NewAnswerGenerator(judge domain.JudgeClient, logger *slog.Logger) *AnswerGenerator {
	return &AnswerGenerator{judge: judge, logger: logger}
}

// Generate produces the final answer. Exactly one error is recorded on judge
// failure; the answer field is populated on every path.
func (g *AnswerGenerator) Generate(ctx context.Context, query domain.MedicalQuery, docs []domain.RetrievedDocument) GenerationResult {
	if len(docs) == 0 {
		return GenerationResult{Answer: NoEvidenceAnswer}
	}

	reply, err := g.judge.Invoke(ctx, generatorSystemPrompt, g.buildUserMessage(query, docs))
	if err != nil {
		g.logger.Warn("generation_judge_failed", slog.String("error", err.Error()))
		return GenerationResult{
			Answer: FallbackAnswer,
			Errors: []string{fmt.Sprintf("answer generation failed: %v", err)},
		}
	}

	answer := strings.TrimSpace(reply)
	if answer == "" {
		return GenerationResult{
			Answer: FallbackAnswer,
			Errors: []string{"answer generation returned empty response"},
		}
	}
	return GenerationResult{Answer: answer}
}

// GenerateStream starts a streaming generation and returns the judge's chunk
// and error channels. The caller owns delivery pacing and fallback handling.
func (g *AnswerGenerator) GenerateStream(ctx context.Context, query domain.MedicalQuery, docs []domain.RetrievedDocument) (<-chan domain.JudgeStreamChunk, <-chan error, error) {
	if len(docs) == 0 {
		chunks := make(chan domain.JudgeStreamChunk, 1)
		chunks <- domain.JudgeStreamChunk{Text: NoEvidenceAnswer, Done: true}
		close(chunks)
		errCh := make(chan error)
		close(errCh)
		return chunks, errCh, nil
	}
	return g.judge.InvokeStream(ctx, generatorSystemPrompt, g.buildUserMessage(query, docs))
}

func (g *AnswerGenerator) buildUserMessage(query domain.MedicalQuery, docs []domain.RetrievedDocument) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query.Question)
	b.WriteString("\n")

	if len(query.Biomarkers) > 0 {
		// Sorted so identical requests build identical prompts.
		names := make([]string, 0, len(query.Biomarkers))
		for name := range query.Biomarkers {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\nBiomarker values:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %g\n", name, query.Biomarkers[name])
		}
	}
	if strings.TrimSpace(query.PatientContext) != "" {
		b.WriteString("\nPatient context: ")
		b.WriteString(query.PatientContext)
		b.WriteString("\n")
	}

	b.WriteString("\nEvidence documents:\n")
	for i, doc := range docs {
		fmt.Fprintf(&b, "[doc %d] %s", i+1, doc.Title)
		if doc.Section != "" {
			fmt.Fprintf(&b, " (%s)", doc.Section)
		}
		b.WriteString("\n")
		b.WriteString(truncateString(doc.Text, evidenceDocCharLimit))
		b.WriteString("\n\n")
	}

	return b.String()
}
