package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"medrag-orchestrator/internal/domain"
)

// InvokeStream sends the prompts with streaming enabled and forwards Ollama's
// NDJSON chunks. The returned channels close when the stream ends; the error
// channel carries at most one error.
func (j *OllamaJudge) InvokeStream(ctx context.Context, systemPrompt, userMessage string) (<-chan domain.JudgeStreamChunk, <-chan error, error) {
	if err := j.wait(ctx); err != nil {
		return nil, nil, err
	}

	reqBody := chatRequest{
		Model:     j.Model,
		Messages:  j.buildMessages(systemPrompt, userMessage),
		Stream:    true,
		KeepAlive: -1,
		Options: map[string]interface{}{
			"temperature": judgeTemperature,
		},
	}
	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", j.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.Client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to call judge endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("judge endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 500))
	}

	chunks := make(chan domain.JudgeStreamChunk, 8)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errCh)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				errCh <- fmt.Errorf("failed to decode stream chunk: %w", err)
				return
			}
			select {
			case <-ctx.Done():
				return
			case chunks <- domain.JudgeStreamChunk{Text: chunk.Message.Content, Done: chunk.Done}:
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("judge stream read failed: %w", err)
		}
	}()

	return chunks, errCh, nil
}
