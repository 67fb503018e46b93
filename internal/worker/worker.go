package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"medrag-orchestrator/internal/domain"
	"medrag-orchestrator/internal/usecase"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	jobTimeout          = 60 * time.Second
	initialBackoff      = 1 * time.Second
	maxBackoff          = 5 * time.Minute
)

// JobWorker drains the index-job queue: one job at a time, exponential
// backoff while jobs keep failing.
type JobWorker struct {
	jobRepo      domain.IndexJobRepository
	indexUsecase usecase.IndexDocumentUsecase
	logger       *slog.Logger
	stopChan     chan struct{}
	backoff      time.Duration
}

// NewJobWorker creates the worker.
func NewJobWorker(
	jobRepo domain.IndexJobRepository,
	indexUsecase usecase.IndexDocumentUsecase,
	logger *slog.Logger,
) *JobWorker {
	return &JobWorker{
		jobRepo:      jobRepo,
		indexUsecase: indexUsecase,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start begins polling in a background goroutine.
func (w *JobWorker) Start() {
	w.logger.Info("starting index job worker")
	go w.run()
}

// Stop signals the polling loop to exit.
func (w *JobWorker) Stop() {
	w.logger.Info("stopping index job worker")
	close(w.stopChan)
}

func (w *JobWorker) run() {
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processNextJob()
			if w.backoff > 0 {
				ticker.Reset(w.backoff)
			} else {
				ticker.Reset(defaultPollInterval)
			}
		}
	}
}

func (w *JobWorker) processNextJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	job, err := w.jobRepo.AcquireNextJob(ctx)
	if err != nil {
		w.logger.Error("failed to acquire next job", "error", err)
		return
	}
	if job == nil {
		return
	}

	w.logger.Info("processing job", "job_id", job.ID, "type", job.JobType)

	var processErr error
	switch job.JobType {
	case "upsert_document":
		processErr = w.processUpsert(ctx, job)
	case "delete_document":
		processErr = w.processDelete(ctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.JobType)
	}

	if processErr != nil {
		w.backoff = w.nextBackoff(w.backoff)
		w.logger.Warn("worker backing off", "job_id", job.ID, "backoff", w.backoff, "error", processErr)
		if err := w.jobRepo.MarkFailed(ctx, job.ID, processErr.Error()); err != nil {
			w.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
		}
		return
	}

	w.backoff = 0
	w.logger.Info("job completed", "job_id", job.ID)
	if err := w.jobRepo.MarkDone(ctx, job.ID); err != nil {
		w.logger.Error("failed to mark job done", "job_id", job.ID, "error", err)
	}
}

func (w *JobWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (w *JobWorker) processUpsert(ctx context.Context, job *domain.IndexJob) error {
	documentID, ok := job.Payload["document_id"].(string)
	if !ok {
		return fmt.Errorf("missing or invalid document_id")
	}
	title, _ := job.Payload["title"].(string)

	rawChunks, ok := job.Payload["chunks"].([]interface{})
	if !ok || len(rawChunks) == 0 {
		return fmt.Errorf("missing or invalid chunks")
	}

	chunks := make([]usecase.ChunkInput, 0, len(rawChunks))
	for i, raw := range rawChunks {
		chunkMap, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("chunk %d has invalid shape", i)
		}
		text, _ := chunkMap["text"].(string)
		if text == "" {
			return fmt.Errorf("chunk %d has empty text", i)
		}
		section, _ := chunkMap["section"].(string)
		chunks = append(chunks, usecase.ChunkInput{Section: section, Text: text})
	}

	return w.indexUsecase.Upsert(ctx, usecase.UpsertDocumentInput{
		DocumentID: documentID,
		Title:      title,
		Chunks:     chunks,
	})
}

func (w *JobWorker) processDelete(ctx context.Context, job *domain.IndexJob) error {
	documentID, ok := job.Payload["document_id"].(string)
	if !ok {
		return fmt.Errorf("missing or invalid document_id")
	}
	return w.indexUsecase.Delete(ctx, documentID)
}
