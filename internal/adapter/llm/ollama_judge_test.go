package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medrag-orchestrator/internal/adapter/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestOllamaJudge_Invoke(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"  {\"score\": 85}  "},"done":true}`)
	}))
	defer server.Close()

	judge := llm.NewOllamaJudge(server.URL, "llama3.1:8b", 10, 0, testLogger())
	reply, err := judge.Invoke(context.Background(), "You are a classifier.", "Is this medical?")

	require.NoError(t, err)
	assert.Equal(t, `{"score": 85}`, reply, "reply must be trimmed")

	assert.Equal(t, "llama3.1:8b", captured["model"])
	assert.Equal(t, false, captured["stream"])
	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "You are a classifier.", first["content"])
}

func TestOllamaJudge_EmptySystemPromptOmitted(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		fmt.Fprint(w, `{"message":{"content":"ok"},"done":true}`)
	}))
	defer server.Close()

	judge := llm.NewOllamaJudge(server.URL, "m", 10, 0, testLogger())
	_, err := judge.Invoke(context.Background(), "", "user only")

	require.NoError(t, err)
	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]interface{})["role"])
}

func TestOllamaJudge_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	judge := llm.NewOllamaJudge(server.URL, "missing", 10, 0, testLogger())
	_, err := judge.Invoke(context.Background(), "s", "u")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaJudge_UnreachableHostIsError(t *testing.T) {
	judge := llm.NewOllamaJudge("http://127.0.0.1:1", "m", 1, 0, testLogger())
	_, err := judge.Invoke(context.Background(), "s", "u")
	assert.Error(t, err)
}

func TestOllamaJudge_Version(t *testing.T) {
	judge := llm.NewOllamaJudge("http://localhost:11434", "llama3.1:8b", 10, 0, testLogger())
	assert.Equal(t, "llama3.1:8b", judge.Version())
}

func TestOllamaJudge_InvokeStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		require.Equal(t, true, req["stream"])

		fmt.Fprintln(w, `{"message":{"content":"An A1C "},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"of 6.5%"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	}))
	defer server.Close()

	judge := llm.NewOllamaJudge(server.URL, "m", 10, 0, testLogger())
	chunks, errCh, err := judge.InvokeStream(context.Background(), "s", "u")
	require.NoError(t, err)

	var text string
	var sawDone bool
	timeout := time.After(5 * time.Second)
	for chunks != nil || errCh != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			text += chunk.Text
			if chunk.Done {
				sawDone = true
			}
		case streamErr, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			t.Fatalf("unexpected stream error: %v", streamErr)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}

	assert.Equal(t, "An A1C of 6.5%", text)
	assert.True(t, sawDone)
}

func TestOllamaJudge_InvokeStreamMalformedChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"ok"},"done":false}`)
		fmt.Fprintln(w, `{broken json`)
	}))
	defer server.Close()

	judge := llm.NewOllamaJudge(server.URL, "m", 10, 0, testLogger())
	chunks, errCh, err := judge.InvokeStream(context.Background(), "s", "u")
	require.NoError(t, err)

	var streamErr error
	timeout := time.After(5 * time.Second)
	for chunks != nil || errCh != nil {
		select {
		case _, ok := <-chunks:
			if !ok {
				chunks = nil
			}
		case e, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			streamErr = e
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}

	require.Error(t, streamErr)
	assert.Contains(t, streamErr.Error(), "decode stream chunk")
}
