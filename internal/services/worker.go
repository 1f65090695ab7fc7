package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/brandsentry/internal/config"
	"github.com/huangang/brandsentry/pkg/logger"
)

// Worker consumes asynq tasks from Redis.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	handlers TaskHandlers
	running  bool
	mu       sync.Mutex
}

// RetryDelay backs off exponentially from 10s, capped at 10 minutes.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 6 {
		return 10 * time.Minute
	}
	d := 10 * time.Second * time.Duration(1<<uint(n))
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, qcfg *config.QueueConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	concurrency := qcfg.Workers
	if concurrency <= 0 {
		concurrency = 4
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queueSentiment: 6,
				queueEmail:     3,
				"default":      1,
			},
			RetryDelayFunc: RetryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Warn().Err(err).Str("task_type", task.Type()).Int("retry", retried).Int("max_retry", maxRetry).Msg("task failed")
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

func (w *Worker) SetHandlers(handlers TaskHandlers) {
	w.handlers = handlers
}

// Start begins processing in the background. Shutdown is driven by Stop,
// not by OS signals.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeClassify, w.handleClassifyTask)
	w.mux.HandleFunc(TaskTypeEmail, w.handleEmailTask)

	logger.Info().Msg("starting async worker")
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start async worker: %w", err)
	}
	w.running = true
	return nil
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Info().Msg("shutting down async worker")
	w.server.Shutdown()
	w.running = false
}

func (w *Worker) handleClassifyTask(ctx context.Context, t *asynq.Task) error {
	var item FeedbackItem
	if err := json.Unmarshal(t.Payload(), &item); err != nil {
		return fmt.Errorf("decode classify task: %v: %w", err, asynq.SkipRetry)
	}
	if w.handlers.Classify == nil {
		return nil
	}
	return w.handlers.Classify(ctx, &item)
}

func (w *Worker) handleEmailTask(ctx context.Context, t *asynq.Task) error {
	var task EmailTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode email task: %v: %w", err, asynq.SkipRetry)
	}
	if w.handlers.Email == nil {
		return nil
	}
	return w.handlers.Email(ctx, &task)
}
