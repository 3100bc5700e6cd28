package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"mediavault/internal/domain"
)

const jobColumns = `id, type, payload, dedup_key, status, attempts, max_attempts, last_error,
        available_at, created_at, updated_at`

// JobRepository - очередь задач в postgres
type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue добавляет задачу. Если задача с тем же dedup_key еще не завершена,
// новая не создается и возвращается false.
func (r *JobRepository) Enqueue(ctx context.Context, job *domain.Job) (bool, error) {
	query := `
        INSERT INTO jobs (id, type, payload, dedup_key, status, max_attempts, available_at)
        VALUES ($1, $2, $3, $4, 'pending', $5, $6)
        ON CONFLICT (type, dedup_key) WHERE status <> 'failed' DO NOTHING
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		job.ID,
		job.Type,
		[]byte(job.Payload),
		job.DedupKey,
		job.MaxAttempts,
		job.AvailableAt,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", err)
	}
	job.Status = domain.JobStatusPending
	return true, nil
}

// Dequeue захватывает следующую доступную задачу. Задачи в статусе running,
// не обновлявшиеся дольше staleAfter, считаются брошенными и захватываются снова.
func (r *JobRepository) Dequeue(ctx context.Context, now time.Time, staleAfter time.Duration) (*domain.Job, error) {
	var job domain.Job
	query := `
        UPDATE jobs
        SET status = 'running',
            attempts = attempts + 1,
            updated_at = $1
        WHERE id = (
            SELECT id FROM jobs
            WHERE (status = 'pending' AND available_at <= $1)
               OR (status = 'running' AND updated_at < $2)
            ORDER BY available_at, created_at
            FOR UPDATE SKIP LOCKED
            LIMIT 1
        )
        RETURNING ` + jobColumns

	err := r.db.GetContext(ctx, &job, query, now, now.Add(-staleAfter))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	return &job, nil
}

// Complete удаляет выполненную задачу
func (r *JobRepository) Complete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// Retry возвращает задачу в очередь после availableAt
func (r *JobRepository) Retry(ctx context.Context, id uuid.UUID, lastError string, availableAt time.Time) error {
	query := `
        UPDATE jobs
        SET status = 'pending',
            last_error = $1,
            available_at = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $3`

	if _, err := r.db.ExecContext(ctx, query, lastError, availableAt, id); err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

// Fail помечает задачу как окончательно проваленную
func (r *JobRepository) Fail(ctx context.Context, id uuid.UUID, lastError string) error {
	query := `
        UPDATE jobs
        SET status = 'failed',
            last_error = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, lastError, id); err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}
