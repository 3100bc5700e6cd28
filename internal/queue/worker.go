package queue

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/metrics"
)

type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	Backoff      time.Duration
	StaleAfter   time.Duration
}

// Worker забирает задачи из Store и передает их обработчикам из Registry
type Worker struct {
	store    Store
	registry *Registry
	log      *logger.Logger
	cfg      WorkerConfig
	now      func() time.Time
}

func NewWorker(store Store, registry *Registry, baseLog *logger.Logger, cfg WorkerConfig) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	return &Worker{
		store:    store,
		registry: registry,
		log:      baseLog.With("component", "JobWorker"),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run запускает Concurrency циклов опроса и блокируется до отмены ctx
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		slot := i
		g.Go(func() error {
			w.loop(ctx, slot)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, slot int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Выбираем задачи подряд, пока очередь не опустеет
		for {
			if ctx.Err() != nil {
				return
			}
			processed, err := w.ProcessNext(ctx)
			if err != nil {
				w.log.Warn("Dequeue failed", "slot", slot, "error", err)
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessNext выполняет одну задачу; false означает, что очередь пуста
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.store.Dequeue(ctx, w.now(), w.cfg.StaleAfter)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	runErr := w.dispatch(ctx, job)
	w.settle(ctx, job, runErr)
	return true, nil
}

func (w *Worker) dispatch(ctx context.Context, job *domain.Job) (err error) {
	h, ok := w.registry.Get(job.Type)
	if !ok {
		return Fatal(&missingHandlerError{JobType: job.Type})
	}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.Type, "panic", r)
			err = &panicError{Val: r}
		}
	}()

	return h.Handle(ctx, job)
}

// settle записывает результат: удаление, повтор через Backoff или окончательный отказ
func (w *Worker) settle(ctx context.Context, job *domain.Job, runErr error) {
	log := w.log.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)

	if runErr == nil {
		metrics.JobsProcessed.WithLabelValues(job.Type, "done").Inc()
		if err := w.store.Complete(ctx, job.ID); err != nil {
			log.Error("Failed to complete job", "error", err)
		}
		return
	}

	if IsFatal(runErr) || job.Attempts >= job.MaxAttempts {
		metrics.JobsProcessed.WithLabelValues(job.Type, "failed").Inc()
		log.Warn("Job failed", "error", runErr, "fatal", IsFatal(runErr))
		if err := w.store.Fail(ctx, job.ID, runErr.Error()); err != nil {
			log.Error("Failed to record job failure", "error", err)
		}
		return
	}

	metrics.JobsProcessed.WithLabelValues(job.Type, "retry").Inc()
	availableAt := w.now().Add(w.cfg.Backoff)
	log.Info("Job will be retried", "error", runErr, "available_at", availableAt)
	if err := w.store.Retry(ctx, job.ID, runErr.Error(), availableAt); err != nil {
		log.Error("Failed to reschedule job", "error", err)
	}
}
