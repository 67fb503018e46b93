package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"medrag-orchestrator/internal/domain"
)

// StreamEventKind names the ordered event types a streaming answer emits.
type StreamEventKind string

const (
	StreamEventKindStatus   StreamEventKind = "status"
	StreamEventKindMetadata StreamEventKind = "metadata"
	StreamEventKindToken    StreamEventKind = "token"
	StreamEventKindDone     StreamEventKind = "done"
	StreamEventKindError    StreamEventKind = "error"
)

// StreamEvent is one element of the event sequence: status, metadata,
// repeated token, then a terminal done or error.
type StreamEvent struct {
	Kind    StreamEventKind
	Payload interface{}
}

// StreamMetadata is emitted once grading has settled, before tokens flow.
type StreamMetadata struct {
	RequestID          string
	GuardrailScore     float64
	DocumentsRetrieved int
	DocumentsRelevant  int
}

// tokenDelay paces emission of synthetic tokens so fixed answers stream
// smoothly like generated ones. Cooperative, not parallel: one logical answer
// is still produced by one generation.
const tokenDelay = 15 * time.Millisecond

// Stream runs the pipeline and delivers the answer incrementally. If the
// client disconnects, emission stops at the next yield point; the per-request
// state needs no rollback.
func (p *AnswerPipeline) Stream(ctx context.Context, query domain.MedicalQuery) <-chan StreamEvent {
	events := make(chan StreamEvent, 4)

	go func() {
		defer close(events)

		st := &PipelineState{
			RequestID:   uuid.NewString(),
			Query:       query,
			ActiveQuery: query.Question,
		}

		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("pipeline_stream_panic",
					slog.String("request_id", st.RequestID),
					slog.Any("panic", r))
				p.sendEvent(ctx, events, StreamEvent{
					Kind:    StreamEventKindError,
					Payload: fmt.Sprintf("pipeline internal error: %v", r),
				})
			}
		}()

		// Walk the graph up to (but not through) the terminal node so the
		// metadata event can precede token flow.
		state := stateGuardrail
		for state != stateGenerate && state != stateOutOfScope {
			if !p.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindStatus, Payload: state.String()}) {
				return
			}
			p.runNode(ctx, state, st)
			state = nextState(state, st)
		}

		meta := StreamMetadata{
			RequestID:          st.RequestID,
			GuardrailScore:     st.GuardrailScore,
			DocumentsRetrieved: len(st.RetrievedDocuments),
			DocumentsRelevant:  len(st.RelevantDocuments),
		}
		if !p.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindMetadata, Payload: meta}) {
			return
		}

		if state == stateOutOfScope {
			st.FinalAnswer = RefusalAnswer
			if !p.streamFixedAnswer(ctx, events, RefusalAnswer) {
				return
			}
			p.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindDone, Payload: p.buildResult(st)})
			return
		}

		chunkCh, errCh, err := p.generator.GenerateStream(ctx, st.Query, st.RelevantDocuments)
		if err != nil {
			// Same degradation as the blocking path: fixed fallback, one
			// recorded error, still a terminal success.
			st.Errors = append(st.Errors, fmt.Sprintf("answer generation failed: %v", err))
			st.FinalAnswer = FallbackAnswer
			if !p.streamFixedAnswer(ctx, events, FallbackAnswer) {
				return
			}
			p.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindDone, Payload: p.buildResult(st)})
			return
		}

		answer := ""
		for chunkCh != nil || errCh != nil {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-chunkCh:
				if !ok {
					chunkCh = nil
					continue
				}
				if chunk.Text != "" {
					answer += chunk.Text
					if !p.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindToken, Payload: chunk.Text}) {
						return
					}
				}
				if chunk.Done {
					chunkCh = nil
				}
			case streamErr, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				st.Errors = append(st.Errors, fmt.Sprintf("answer generation failed: %v", streamErr))
				st.FinalAnswer = FallbackAnswer
				if !p.streamFixedAnswer(ctx, events, FallbackAnswer) {
					return
				}
				p.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindDone, Payload: p.buildResult(st)})
				return
			}
		}

		if answer == "" {
			st.Errors = append(st.Errors, "answer generation returned empty response")
			answer = FallbackAnswer
			if !p.streamFixedAnswer(ctx, events, FallbackAnswer) {
				return
			}
		}
		st.FinalAnswer = answer

		p.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindDone, Payload: p.buildResult(st)})
	}()

	return events
}

// streamFixedAnswer chunks a fixed string into small tokens with inter-chunk
// delays so clients see a stream either way. Chunks split on rune boundaries
// so a multi-byte character never straddles two token events.
func (p *AnswerPipeline) streamFixedAnswer(ctx context.Context, events chan<- StreamEvent, answer string) bool {
	const chunkSize = 24
	runes := []rune(answer)
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if !p.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindToken, Payload: string(runes[start:end])}) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(tokenDelay):
		}
	}
	return true
}

func (p *AnswerPipeline) sendEvent(ctx context.Context, events chan<- StreamEvent, event StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}
