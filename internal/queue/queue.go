package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mediavault/internal/domain"
)

// Store - хранилище задач (repository.JobRepository)
type Store interface {
	Enqueue(ctx context.Context, job *domain.Job) (bool, error)
	Dequeue(ctx context.Context, now time.Time, staleAfter time.Duration) (*domain.Job, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Retry(ctx context.Context, id uuid.UUID, lastError string, availableAt time.Time) error
	Fail(ctx context.Context, id uuid.UUID, lastError string) error
}

// Queue ставит задачи в очередь с заданным числом попыток
type Queue struct {
	store       Store
	maxAttempts int
	now         func() time.Time
}

func New(store Store, maxAttempts int) *Queue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Queue{store: store, maxAttempts: maxAttempts, now: time.Now}
}

// Enqueue сериализует payload и ставит задачу. Непустой dedupKey не дает поставить
// вторую задачу того же типа, пока первая не завершена; в этом случае возвращается false.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any, dedupKey string) (bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal %s payload: %w", jobType, err)
	}

	job := &domain.Job{
		ID:          uuid.New(),
		Type:        jobType,
		Payload:     data,
		MaxAttempts: q.maxAttempts,
		AvailableAt: q.now(),
	}
	if dedupKey != "" {
		job.DedupKey = &dedupKey
	}

	created, err := q.store.Enqueue(ctx, job)
	if err != nil {
		return false, err
	}
	return created, nil
}
