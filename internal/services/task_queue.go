package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/brandsentry/internal/config"
	"github.com/huangang/brandsentry/internal/metrics"
	"github.com/huangang/brandsentry/pkg/logger"
)

const (
	TaskTypeClassify = "sentiment:classify"
	TaskTypeEmail    = "email:send"

	queueSentiment = "sentiment"
	queueEmail     = "email"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is closed")
)

// EmailTask is one outbound alert email to one address. NotificationID is nil
// when in-app delivery is off and no notification row was stored.
type EmailTask struct {
	BrandID        uint   `json:"brand_id"`
	NotificationID *uint  `json:"notification_id,omitempty"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

// TaskHandlers process dequeued tasks.
type TaskHandlers struct {
	Classify func(ctx context.Context, item *FeedbackItem) error
	Email    func(ctx context.Context, task *EmailTask) error
}

// EmailEnqueuer is the notification gate's view of the queue.
type EmailEnqueuer interface {
	EnqueueEmail(task *EmailTask) error
}

// TaskQueue is the asynchronous dispatch boundary between record creation and
// the sentiment pipeline.
type TaskQueue interface {
	EmailEnqueuer
	EnqueueClassify(item *FeedbackItem) error
	// IsAsync returns true when tasks are persisted in Redis.
	IsAsync() bool
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue picks the asynq queue when Redis is reachable and the local
// queue otherwise.
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis, &cfg.Queue)
			if err != nil {
				logger.Warn().Err(err).Msg("redis unavailable, falling back to local task queue")
				globalTaskQueue = NewLocalQueue(cfg.Queue.Workers, cfg.Queue.BufferSize)
			} else {
				logger.Info().Str("addr", cfg.Redis.Addr).Msg("async task queue initialized")
				globalTaskQueue = queue
			}
		} else {
			logger.Info().Int("workers", cfg.Queue.Workers).Msg("local task queue initialized (redis disabled)")
			globalTaskQueue = NewLocalQueue(cfg.Queue.Workers, cfg.Queue.BufferSize)
		}
	})
	return globalTaskQueue
}

func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue on asynq.
type AsyncQueue struct {
	client     *asynq.Client
	maxRetry   int
	emailRetry int
}

func NewAsyncQueue(cfg *config.RedisConfig, qcfg *config.QueueConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client, maxRetry: qcfg.MaxRetry, emailRetry: qcfg.EmailRetry}, nil
}

func (q *AsyncQueue) EnqueueClassify(item *FeedbackItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeClassify, payload),
		asynq.Queue(queueSentiment),
		asynq.MaxRetry(q.maxRetry),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		return err
	}
	logger.Debug().Str("task_id", info.ID).Str("source_type", string(item.SourceType)).Uint("source_id", item.SourceID).Msg("classify task enqueued")
	return nil
}

func (q *AsyncQueue) EnqueueEmail(task *EmailTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	_, err = q.client.Enqueue(asynq.NewTask(TaskTypeEmail, payload),
		asynq.Queue(queueEmail),
		asynq.MaxRetry(q.emailRetry),
	)
	return err
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

type localTask struct {
	kind     string
	classify *FeedbackItem
	email    *EmailTask
}

// LocalQueue is a bounded in-process queue drained by a fixed worker pool.
// Enqueue never blocks: a full buffer rejects the task. Failed tasks are not
// retried; the backfill job picks up items that never produced an event.
type LocalQueue struct {
	tasks   chan localTask
	workers int

	mu       sync.RWMutex
	closed   bool
	started  bool
	handlers TaskHandlers
	wg       sync.WaitGroup
}

func NewLocalQueue(workers, buffer int) *LocalQueue {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &LocalQueue{
		tasks:   make(chan localTask, buffer),
		workers: workers,
	}
}

// Start launches the workers. Tasks enqueued before Start wait in the buffer.
func (q *LocalQueue) Start(handlers TaskHandlers) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	q.handlers = handlers

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
}

func (q *LocalQueue) run() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.process(task)
	}
}

func (q *LocalQueue) process(task localTask) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("task_type", task.kind).Msg("local queue task panicked")
		}
	}()

	var err error
	switch task.kind {
	case TaskTypeClassify:
		if q.handlers.Classify != nil {
			err = q.handlers.Classify(ctx, task.classify)
		}
	case TaskTypeEmail:
		if q.handlers.Email != nil {
			err = q.handlers.Email(ctx, task.email)
		}
	}
	if err != nil {
		logger.Warn().Err(err).Str("task_type", task.kind).Msg("local queue task failed")
	}
}

func (q *LocalQueue) push(task localTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		metrics.QueueDropped.WithLabelValues(task.kind).Inc()
		return ErrQueueFull
	}
}

func (q *LocalQueue) EnqueueClassify(item *FeedbackItem) error {
	return q.push(localTask{kind: TaskTypeClassify, classify: item})
}

func (q *LocalQueue) EnqueueEmail(task *EmailTask) error {
	return q.push(localTask{kind: TaskTypeEmail, email: task})
}

// Depth is the number of buffered tasks.
func (q *LocalQueue) Depth() int {
	return len(q.tasks)
}

func (q *LocalQueue) IsAsync() bool { return false }

// Close stops accepting tasks and waits for the workers to drain the buffer.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	started := q.started
	q.mu.Unlock()

	if started {
		q.wg.Wait()
	}
	return nil
}
