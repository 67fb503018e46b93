package usecase

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"medrag-orchestrator/internal/domain"
)

const rewriterSystemPrompt = `You reformulate medical search queries to improve retrieval recall.
Expand abbreviations, add clinical synonyms, and make implicit concepts explicit.
Respond with JSON only: {"query": "<rewritten query>"}`

// QueryRewriter reformulates a query whose first retrieval round graded
// poorly. On any failure it returns the original query unchanged so the
// pipeline can still run its second retrieval round; callers must not assume
// the result differs from the input.
type QueryRewriter struct {
	judge  domain.JudgeClient
	logger *slog.Logger
}

// NewQueryRewriter creates the rewriter.
func NewQueryRewriter(judge domain.JudgeClient, logger *slog.Logger) *QueryRewriter {
	return &QueryRewriter{judge: judge, logger: logger}
}

// Rewrite returns the reformulated query plus an advisory error string.
func (r *QueryRewriter) Rewrite(ctx context.Context, originalQuery, patientContext string) (string, string) {
	message := originalQuery
	if strings.TrimSpace(patientContext) != "" {
		message = originalQuery + "\n\nPatient context: " + patientContext
	}

	reply, err := r.judge.Invoke(ctx, rewriterSystemPrompt, message)
	if err != nil {
		r.logger.Warn("rewrite_judge_failed", slog.String("error", err.Error()))
		return originalQuery, "query rewrite failed: " + err.Error()
	}

	obj, ok := extractJSON(reply)
	if !ok {
		// Judges sometimes return the rewritten query as bare text.
		if bare := strings.TrimSpace(reply); bare != "" && !strings.Contains(bare, "\n") {
			return bare, ""
		}
		return originalQuery, "rewrite reply was not parsable"
	}

	rewritten := strings.TrimSpace(obj.Get("query").String())
	if rewritten == "" {
		return originalQuery, "rewrite reply missing query"
	}

	r.logger.Info("query_rewritten",
		slog.String("original", truncateString(originalQuery, 100)),
		slog.String("rewritten", truncateString(rewritten, 100)))
	return rewritten, ""
}

// truncateString caps a string at maxLen runes, never cutting a multi-byte
// character mid-sequence.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
