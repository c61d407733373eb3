package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sparkclean/internal/config"
	"sparkclean/internal/domain"
	"sparkclean/internal/metrics"
	"sparkclean/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisQueueKey = "outbox:queue"
	deadLetterKey = "outbox:deadletter"
	// handledLimit bounds the set of ids finished by this process.
	handledLimit = 4096
)

// ErrPermanent marks a handler failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent task failure")

// Handler performs one outbox task.
type Handler func(ctx context.Context, task *models.OutboxTask) error

// OutboxWorker persists side effects and executes them with retries. Tasks
// travel through redis when available, an in-memory queue otherwise, and
// anything those miss is picked up by polling the outbox table.
type OutboxWorker struct {
	repo         domain.OutboxRepository
	redis        *redis.Client
	retryPolicy  RetryPolicy
	queue        chan models.OutboxTask
	handlers     map[string]Handler
	pollInterval time.Duration
	batchSize    int
	logger       zerolog.Logger

	// handled is only touched by the Start goroutine.
	handled map[int64]struct{}
}

var _ domain.TaskEnqueuer = (*OutboxWorker)(nil)

// NewOutboxWorker builds a worker with defaults for zero config values.
func NewOutboxWorker(repo domain.OutboxRepository, redisClient *redis.Client, cfg config.WorkerConfig, logger *zerolog.Logger) *OutboxWorker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 20
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "outbox").Logger()
	}

	return &OutboxWorker{
		repo:         repo,
		redis:        redisClient,
		retryPolicy:  defaultRetryPolicy(cfg.MaxRetries),
		queue:        make(chan models.OutboxTask, models.OutboxQueueSize),
		handlers:     make(map[string]Handler),
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		logger:       l,
		handled:      make(map[int64]struct{}),
	}
}

// Handle registers h for taskType. Call before Start.
func (w *OutboxWorker) Handle(taskType string, h Handler) {
	w.handlers[taskType] = h
}

// Enqueue persists the task and schedules it via redis or the in-memory queue.
func (w *OutboxWorker) Enqueue(ctx context.Context, taskType string, referenceID int64, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.OutboxTask{
		TaskType:    taskType,
		ReferenceID: referenceID,
		Payload:     string(raw),
		Status:      models.OutboxPending,
	}
	if err := w.repo.CreateOutboxTask(ctx, &task); err != nil {
		return fmt.Errorf("persist outbox task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, redisQueueKey, &task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("memory queue full, task left to polling")
	}
	return nil
}

// Start runs the worker loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Int("handlers", len(w.handlers)).Msg("outbox worker started")
	defer w.logger.Info().Msg("outbox worker stopped")

	for ctx.Err() == nil {
		if t, ok := w.tryLocalQueue(); ok {
			w.processQueued(ctx, &t)
			continue
		}
		if t, ok := w.tryRedis(ctx); ok {
			w.processQueued(ctx, &t)
			continue
		}
		if n := w.pollOnce(ctx); n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.pollInterval):
		}
	}
}

// pollOnce runs the due tasks stored in the outbox table.
func (w *OutboxWorker) pollOnce(ctx context.Context) int {
	tasks, err := w.repo.GetPendingOutboxTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending tasks")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

// processQueued skips tasks the poller already finished.
func (w *OutboxWorker) processQueued(ctx context.Context, task *models.OutboxTask) {
	if _, done := w.handled[task.ID]; done {
		return
	}
	w.processTask(ctx, task)
}

func (w *OutboxWorker) tryLocalQueue() (models.OutboxTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.OutboxTask{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.OutboxTask, bool) {
	if w.redis == nil {
		return models.OutboxTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP")
		}
		return models.OutboxTask{}, false
	}
	if len(res) != 2 {
		return models.OutboxTask{}, false
	}
	var task models.OutboxTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.OutboxTask{}, false
	}
	return task, true
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	h, ok := w.handlers[task.TaskType]
	if !ok {
		w.failTask(ctx, task, fmt.Errorf("no handler for task type %q", task.TaskType))
		return
	}

	if err := h(ctx, task); err != nil {
		if errors.Is(err, ErrPermanent) {
			w.failTask(ctx, task, err)
			return
		}
		w.retryOrFail(ctx, task, err)
		return
	}

	w.markHandled(task.ID)
	metrics.IncOutbox(task.TaskType, models.OutboxCompleted)
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	next := time.Now().Add(w.retryPolicy.Delay(attempt))
	metrics.IncOutbox(task.TaskType, models.OutboxRetry)
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Str("task_type", task.TaskType).
		Int("attempt", attempt).Time("next_retry_at", next).Msg("task failed, will retry")
	// The poller owns the task from here on.
	w.markHandled(task.ID)
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *OutboxWorker) failTask(ctx context.Context, task *models.OutboxTask, cause error) {
	w.markHandled(task.ID)
	metrics.IncOutbox(task.TaskType, models.OutboxFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("task_type", task.TaskType).Msg("task failed")
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, deadLetterKey, task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
		}
	}
}

func (w *OutboxWorker) markHandled(id int64) {
	if len(w.handled) >= handledLimit {
		w.handled = make(map[int64]struct{})
	}
	w.handled[id] = struct{}{}
}

func (w *OutboxWorker) pushRedis(ctx context.Context, key string, task *models.OutboxTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

// Decode unmarshals the task payload into v and marks malformed payloads permanent.
func Decode(task *models.OutboxTask, v interface{}) error {
	if err := json.Unmarshal([]byte(task.Payload), v); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", ErrPermanent, task.TaskType, err)
	}
	return nil
}
