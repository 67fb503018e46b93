// Package main is the entry point for indexctl, the corpus management CLI.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	verbose   bool
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "indexctl",
	Short: "Manage the medical document index",
	Long: `indexctl loads medical reference documents into the retrieval index.

Documents are submitted to the orchestrator's internal indexing API, which
enqueues them for asynchronous chunk embedding and dual-backend indexing.

Example usage:
  indexctl load corpus.json           # Enqueue every document in corpus.json
  indexctl delete guideline-ada-2024  # Remove a document from both backends`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <corpus.json>",
	Short: "Enqueue documents from a JSON corpus file",
	Long: `Load documents from a JSON corpus file and enqueue each for indexing.

The corpus file is a JSON array of documents:
  [
    {
      "document_id": "guideline-ada-2024",
      "title": "Standards of Care in Diabetes",
      "chunks": [
        {"section": "Glycemic Targets", "text": "..."}
      ]
    }
  ]`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Remove a document from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9020", "orchestrator base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(deleteCmd)
}

type corpusChunk struct {
	Section string `json:"section"`
	Text    string `json:"text"`
}

type corpusDocument struct {
	DocumentID string        `json:"document_id"`
	Title      string        `json:"title"`
	Chunks     []corpusChunk `json:"chunks"`
}

func runLoad(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading corpus file: %w", err)
	}

	var docs []corpusDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parsing corpus file: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("corpus file contains no documents")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	var failed int
	for _, doc := range docs {
		if doc.DocumentID == "" {
			logger.Warn("skipping document without document_id", "title", doc.Title)
			failed++
			continue
		}
		if err := postJSON(client, serverURL+"/internal/index/upsert", doc); err != nil {
			logger.Error("failed to enqueue document", "document_id", doc.DocumentID, "error", err)
			failed++
			continue
		}
		logger.Info("enqueued document", "document_id", doc.DocumentID, "chunks", len(doc.Chunks))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to enqueue", failed, len(docs))
	}
	fmt.Printf("Enqueued %d documents\n", len(docs))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 30 * time.Second}
	body := map[string]string{"document_id": args[0]}
	if err := postJSON(client, serverURL+"/internal/index/delete", body); err != nil {
		return fmt.Errorf("deleting document %s: %w", args[0], err)
	}
	fmt.Printf("Enqueued deletion of %s\n", args[0])
	return nil
}

func postJSON(client *http.Client, url string, payload interface{}) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
