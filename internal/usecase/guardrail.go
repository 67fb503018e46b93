package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"medrag-orchestrator/internal/domain"
)

const (
	// GuardrailThreshold is the minimum fitness score for an in-scope query.
	GuardrailThreshold = 40.0
	// guardrailBiomarkerScore is the fixed score for biomarker-bearing
	// requests, which are in-domain by construction.
	guardrailBiomarkerScore = 95.0
	// guardrailFallbackScore applies when the judge fails or replies
	// unparsably. Benefit of the doubt: a false reject is worse than an
	// off-topic answer the generator will itself decline.
	guardrailFallbackScore = 70.0
)

const guardrailSystemPrompt = `You are a domain-fitness classifier for a medical question answering system.
Score how clearly the user's question belongs to the medical domain (diseases, biomarkers, lab results, treatments, clinical guidance) on a 0-100 scale.
Respond with JSON only: {"score": <number 0-100>}`

// GuardrailDecision is the outcome of one domain-fitness classification.
type GuardrailDecision struct {
	Score   float64
	InScope bool
}

// GuardrailClassifier gates requests before retrieval resources are spent.
type GuardrailClassifier struct {
	judge  domain.JudgeClient
	logger *slog.Logger
}

// NewGuardrailClassifier creates the classifier.
func NewGuardrailClassifier(judge domain.JudgeClient, logger *slog.Logger) *GuardrailClassifier {
	return &GuardrailClassifier{judge: judge, logger: logger}
}

// Classify scores the query's domain fitness. The returned error string is
// advisory; a decision is always produced.
func (g *GuardrailClassifier) Classify(ctx context.Context, query domain.MedicalQuery) (GuardrailDecision, string) {
	if query.HasBiomarkers() {
		return GuardrailDecision{Score: guardrailBiomarkerScore, InScope: true}, ""
	}

	reply, err := g.judge.Invoke(ctx, guardrailSystemPrompt, query.Question)
	if err != nil {
		g.logger.Warn("guardrail_judge_failed", slog.String("error", err.Error()))
		return GuardrailDecision{Score: guardrailFallbackScore, InScope: true},
			fmt.Sprintf("guardrail judge failed: %v", err)
	}

	score, ok := parseJudgeScore(reply, "score")
	if !ok {
		g.logger.Warn("guardrail_reply_unparsable", slog.String("reply", truncateString(reply, 200)))
		return GuardrailDecision{Score: guardrailFallbackScore, InScope: true},
			"guardrail reply was not parsable"
	}

	return GuardrailDecision{Score: score, InScope: score >= GuardrailThreshold}, ""
}
