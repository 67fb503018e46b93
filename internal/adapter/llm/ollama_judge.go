package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"medrag-orchestrator/internal/domain"
)

const judgeTemperature = 0.1

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string                 `json:"model"`
	Messages  []chatMessage          `json:"messages"`
	Stream    bool                   `json:"stream"`
	KeepAlive int                    `json:"keep_alive"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// OllamaJudge sends system+user prompts to Ollama's chat endpoint. One client
// serves the guardrail, grader, rewriter and generator prompts alike; a
// shared rate limiter keeps the judge host from being flooded when many
// requests grade documents at once.
type OllamaJudge struct {
	BaseURL string
	Model   string
	Client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewOllamaJudge constructs a judge client. maxRPS <= 0 disables rate
// limiting.
func NewOllamaJudge(baseURL, model string, timeoutSeconds int, maxRPS float64, logger *slog.Logger) *OllamaJudge {
	timeout := 120 * time.Second
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	var limiter *rate.Limiter
	if maxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxRPS), 1)
	}
	return &OllamaJudge{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
	}
}

// Invoke sends the prompts and returns the assistant message text.
func (j *OllamaJudge) Invoke(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if err := j.wait(ctx); err != nil {
		return "", err
	}
	start := time.Now()

	reqBody := chatRequest{
		Model:     j.Model,
		Messages:  j.buildMessages(systemPrompt, userMessage),
		Stream:    false,
		KeepAlive: -1,
		Options: map[string]interface{}{
			"temperature": judgeTemperature,
		},
	}
	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", j.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.Client.Do(req)
	if err != nil {
		j.logger.Warn("judge_call_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return "", fmt.Errorf("failed to call judge endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("judge endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 500))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode judge response: %w", err)
	}

	j.logger.Info("judge_call_completed",
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return strings.TrimSpace(chatResp.Message.Content), nil
}

// Version returns the wrapped model name.
func (j *OllamaJudge) Version() string {
	return j.Model
}

func (j *OllamaJudge) buildMessages(systemPrompt, userMessage string) []chatMessage {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})
	return messages
}

func (j *OllamaJudge) wait(ctx context.Context) error {
	if j.limiter == nil {
		return nil
	}
	return j.limiter.Wait(ctx)
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

var _ domain.JudgeClient = (*OllamaJudge)(nil)
