package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"medrag-orchestrator/internal/domain"
)

const (
	// RefusalAnswer is the fixed polite reply for out-of-scope queries.
	RefusalAnswer = "I can only help with medical questions about diseases, biomarkers, lab results and treatments. Please rephrase your question within that scope."

	// minRelevantDocs is the grading floor below which a single rewrite
	// round is attempted.
	minRelevantDocs = 2
)

// pipelineState tags the orchestrator's position in the node graph. The
// transition function below is the only place edges are decided, which makes
// the one-rewrite bound a property of the graph rather than of scattered
// flags.
type pipelineState int

const (
	stateGuardrail pipelineState = iota
	stateRetrieve
	stateGrade
	stateRewrite
	stateGenerate
	stateOutOfScope
	stateEnd
)

func (s pipelineState) String() string {
	switch s {
	case stateGuardrail:
		return "guardrail"
	case stateRetrieve:
		return "retrieve"
	case stateGrade:
		return "grade"
	case stateRewrite:
		return "rewrite"
	case stateGenerate:
		return "generate"
	case stateOutOfScope:
		return "out_of_scope"
	case stateEnd:
		return "end"
	}
	return "unknown"
}

// nextState is the pure transition function over the pipeline graph.
//
//	GUARDRAIL -> RETRIEVE | OUT_OF_SCOPE
//	RETRIEVE  -> GRADE
//	GRADE     -> REWRITE | GENERATE
//	REWRITE   -> RETRIEVE
//	GENERATE, OUT_OF_SCOPE -> END
//
// The REWRITE edge is taken at most once per request: it requires
// RewriteAttempted to be false, and the rewrite node sets it.
func nextState(current pipelineState, st *PipelineState) pipelineState {
	switch current {
	case stateGuardrail:
		if st.InScope {
			return stateRetrieve
		}
		return stateOutOfScope
	case stateRetrieve:
		return stateGrade
	case stateGrade:
		if len(st.RelevantDocuments) < minRelevantDocs && !st.RewriteAttempted {
			return stateRewrite
		}
		return stateGenerate
	case stateRewrite:
		return stateRetrieve
	case stateGenerate, stateOutOfScope:
		return stateEnd
	}
	return stateEnd
}

// PipelineState is the full mutable record threaded through one request.
// Created at request start, discarded at request end.
type PipelineState struct {
	RequestID string
	Query     domain.MedicalQuery

	// ActiveQuery is the question currently used for retrieval: the
	// original, or the rewritten form after a rewrite round.
	ActiveQuery    string
	RewrittenQuery string

	GuardrailScore float64
	InScope        bool

	RetrievedDocuments []domain.RetrievedDocument
	GradingResults     []domain.GradingResult
	RelevantDocuments  []domain.RetrievedDocument

	RewriteAttempted bool
	FinalAnswer      string

	// Errors accumulates advisory node-level failures. They never abort the
	// pipeline.
	Errors []string
}

// PipelineResult is the response shape produced for every request.
type PipelineResult struct {
	RequestID          string
	Answer             string
	GuardrailScore     float64
	DocumentsRetrieved int
	DocumentsRelevant  int
	Errors             []string
}

// Node contracts; satisfied by the concrete types in this package and by test
// doubles.

type guardrailClassifier interface {
	Classify(ctx context.Context, query domain.MedicalQuery) (GuardrailDecision, string)
}

type documentRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, []string)
}

type relevanceGrader interface {
	Grade(ctx context.Context, query string, docs []domain.RetrievedDocument) ([]domain.GradingResult, []string)
}

type queryRewriter interface {
	Rewrite(ctx context.Context, originalQuery, patientContext string) (string, string)
}

type answerGenerator interface {
	Generate(ctx context.Context, query domain.MedicalQuery, docs []domain.RetrievedDocument) GenerationResult
	GenerateStream(ctx context.Context, query domain.MedicalQuery, docs []domain.RetrievedDocument) (<-chan domain.JudgeStreamChunk, <-chan error, error)
}

// AnswerPipeline drives one request through the node graph. All service
// handles are injected at construction; the pipeline holds no process-global
// state.
type AnswerPipeline struct {
	guardrail guardrailClassifier
	retriever documentRetriever
	grader    relevanceGrader
	rewriter  queryRewriter
	generator answerGenerator
	topK      int
	logger    *slog.Logger
}

// NewAnswerPipeline wires the orchestrator.
func NewAnswerPipeline(
	guardrail guardrailClassifier,
	retriever documentRetriever,
	grader relevanceGrader,
	rewriter queryRewriter,
	generator answerGenerator,
	topK int,
	logger *slog.Logger,
) *AnswerPipeline {
	return &AnswerPipeline{
		guardrail: guardrail,
		retriever: retriever,
		grader:    grader,
		rewriter:  rewriter,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Execute runs the full pipeline. A syntactically complete result is returned
// on every path, including internal panics, which degrade to the fixed
// fallback answer with the cause recorded.
func (p *AnswerPipeline) Execute(ctx context.Context, query domain.MedicalQuery) (result *PipelineResult) {
	st := &PipelineState{
		RequestID:   uuid.NewString(),
		Query:       query,
		ActiveQuery: query.Question,
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline_panic",
				slog.String("request_id", st.RequestID),
				slog.Any("panic", r))
			st.Errors = append(st.Errors, fmt.Sprintf("pipeline internal error: %v", r))
			st.FinalAnswer = FallbackAnswer
			result = p.buildResult(st)
		}
	}()

	state := stateGuardrail
	for state != stateEnd {
		p.runNode(ctx, state, st)
		state = nextState(state, st)
	}

	return p.buildResult(st)
}

func (p *AnswerPipeline) buildResult(st *PipelineState) *PipelineResult {
	return &PipelineResult{
		RequestID:          st.RequestID,
		Answer:             st.FinalAnswer,
		GuardrailScore:     st.GuardrailScore,
		DocumentsRetrieved: len(st.RetrievedDocuments),
		DocumentsRelevant:  len(st.RelevantDocuments),
		Errors:             st.Errors,
	}
}

// runNode executes one node's side effects on the state. Transitions are
// decided separately, in nextState.
func (p *AnswerPipeline) runNode(ctx context.Context, state pipelineState, st *PipelineState) {
	p.logger.Info("pipeline_node",
		slog.String("request_id", st.RequestID),
		slog.String("node", state.String()))

	switch state {
	case stateGuardrail:
		decision, advisory := p.guardrail.Classify(ctx, st.Query)
		st.GuardrailScore = decision.Score
		st.InScope = decision.InScope
		p.appendError(st, advisory)

	case stateRetrieve:
		docs, errs := p.retriever.Retrieve(ctx, st.ActiveQuery, p.topK)
		st.RetrievedDocuments = docs
		st.Errors = append(st.Errors, errs...)

	case stateGrade:
		results, errs := p.grader.Grade(ctx, st.ActiveQuery, st.RetrievedDocuments)
		st.GradingResults = results
		st.Errors = append(st.Errors, errs...)
		st.RelevantDocuments = filterRelevant(st.RetrievedDocuments, results)

	case stateRewrite:
		rewritten, advisory := p.rewriter.Rewrite(ctx, st.Query.Question, st.Query.PatientContext)
		st.RewrittenQuery = rewritten
		st.ActiveQuery = rewritten
		st.RewriteAttempted = true
		p.appendError(st, advisory)

	case stateGenerate:
		gen := p.generator.Generate(ctx, st.Query, st.RelevantDocuments)
		st.FinalAnswer = gen.Answer
		st.Errors = append(st.Errors, gen.Errors...)

	case stateOutOfScope:
		st.FinalAnswer = RefusalAnswer
	}
}

func (p *AnswerPipeline) appendError(st *PipelineState, advisory string) {
	if advisory != "" {
		st.Errors = append(st.Errors, advisory)
	}
}

// filterRelevant keeps the retrieved documents graded relevant, preserving
// retrieval order. The result is always a subset of the input by id.
func filterRelevant(docs []domain.RetrievedDocument, results []domain.GradingResult) []domain.RetrievedDocument {
	relevant := make(map[string]bool, len(results))
	for _, res := range results {
		if res.IsRelevant {
			relevant[res.DocID] = true
		}
	}
	filtered := make([]domain.RetrievedDocument, 0, len(relevant))
	for _, doc := range docs {
		if relevant[doc.ID] {
			filtered = append(filtered, doc)
		}
	}
	return filtered
}
