package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medrag-orchestrator/internal/domain"
)

type indexJobRepository struct {
	pool *pgxpool.Pool
}

// NewIndexJobRepository creates the postgres-backed indexing job queue.
func NewIndexJobRepository(pool *pgxpool.Pool) domain.IndexJobRepository {
	return &indexJobRepository{pool: pool}
}

func (r *indexJobRepository) Enqueue(ctx context.Context, job *domain.IndexJob) error {
	payloadBytes, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO index_jobs (id, job_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.JobType,
		payloadBytes,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// AcquireNextJob claims the oldest new job with SKIP LOCKED so concurrent
// workers never double-process.
func (r *indexJobRepository) AcquireNextJob(ctx context.Context) (*domain.IndexJob, error) {
	query := `
		WITH next_job AS (
			SELECT id
			FROM index_jobs
			WHERE status = 'new'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE index_jobs
		SET status = 'processing', updated_at = $1
		FROM next_job
		WHERE index_jobs.id = next_job.id
		RETURNING index_jobs.id, index_jobs.job_type, index_jobs.payload,
		          index_jobs.status, index_jobs.created_at, index_jobs.updated_at
	`

	var job domain.IndexJob
	var payloadBytes []byte
	err := r.pool.QueryRow(ctx, query, time.Now()).Scan(
		&job.ID,
		&job.JobType,
		&payloadBytes,
		&job.Status,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to acquire job: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &job.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	return &job, nil
}

func (r *indexJobRepository) MarkDone(ctx context.Context, jobID uuid.UUID) error {
	return r.setStatus(ctx, jobID, "done", "")
}

func (r *indexJobRepository) MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error {
	return r.setStatus(ctx, jobID, "failed", reason)
}

func (r *indexJobRepository) setStatus(ctx context.Context, jobID uuid.UUID, status, errorMessage string) error {
	query := `
		UPDATE index_jobs
		SET status = $2, error_message = NULLIF($3, ''), updated_at = $4
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, jobID, status, errorMessage, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	return nil
}
