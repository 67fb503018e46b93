package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"medrag-orchestrator/internal/domain"
)

const graderSystemPrompt = `You judge whether a retrieved document is relevant to a medical question.
Respond with JSON only: {"relevant": true} or {"relevant": false}`

// graderDocCharLimit bounds how much of a chunk is shown to the judge.
const graderDocCharLimit = 2000

// RelevanceGrader issues one binary relevance judgment per retrieved
// document. A failed or unparsable judgment defaults to relevant: a false
// positive merely adds noise, a false negative could discard the only usable
// evidence.
type RelevanceGrader struct {
	judge  domain.JudgeClient
	logger *slog.Logger
}

// NewRelevanceGrader creates the grader.
func NewRelevanceGrader(judge domain.JudgeClient, logger *slog.Logger) *RelevanceGrader {
	return &RelevanceGrader{judge: judge, logger: logger}
}

// Grade returns one result per input document, order preserved, plus any
// advisory error strings. An empty input yields an empty grading list.
func (g *RelevanceGrader) Grade(ctx context.Context, query string, docs []domain.RetrievedDocument) ([]domain.GradingResult, []string) {
	results := make([]domain.GradingResult, 0, len(docs))
	var errs []string

	for _, doc := range docs {
		message := fmt.Sprintf("Question: %s\n\nDocument (%s):\n%s",
			query, doc.Title, truncateString(doc.Text, graderDocCharLimit))

		reply, err := g.judge.Invoke(ctx, graderSystemPrompt, message)
		if err != nil {
			g.logger.Warn("grading_judge_failed",
				slog.String("doc_id", doc.ID),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Sprintf("grading failed for document %s: %v", doc.ID, err))
			results = append(results, domain.GradingResult{DocID: doc.ID, IsRelevant: true})
			continue
		}

		relevant, ok := parseJudgeBool(reply, "relevant")
		if !ok {
			g.logger.Warn("grading_reply_unparsable",
				slog.String("doc_id", doc.ID),
				slog.String("reply", truncateString(reply, 200)))
			errs = append(errs, fmt.Sprintf("grading reply unparsable for document %s", doc.ID))
			relevant = true
		}

		results = append(results, domain.GradingResult{DocID: doc.ID, IsRelevant: relevant})
	}

	return results, errs
}
