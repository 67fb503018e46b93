package domain

import "context"

// JudgeClient defines the capability to send prompts to an LLM judge and
// receive textual responses. The pipeline treats it as an opaque
// text-completion function; structured replies are parsed defensively by the
// caller.
type JudgeClient interface {
	Invoke(ctx context.Context, systemPrompt, userMessage string) (string, error)
	InvokeStream(ctx context.Context, systemPrompt, userMessage string) (<-chan JudgeStreamChunk, <-chan error, error)
	Version() string
}

// JudgeStreamChunk carries one incremental piece of a streamed completion.
type JudgeStreamChunk struct {
	Text string
	Done bool
}
