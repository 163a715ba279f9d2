package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/trackwell/issuetracker/internal/config"
	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/pkg/logger"
)

const TaskTypeActivityAppend = "activity:append"

const activityQueue = "activity"

type activityPayload struct {
	IssueID uint                  `json:"issue_id"`
	UserID  string                `json:"user_id"`
	Action  models.ActivityAction `json:"action"`
	Details string                `json:"details"`
}

// NewActivityTask encodes an entry as an asynq task.
func NewActivityTask(entry *models.ActivityLog) (*asynq.Task, error) {
	payload, err := json.Marshal(activityPayload{
		IssueID: entry.IssueID,
		UserID:  entry.UserID,
		Action:  entry.Action,
		Details: entry.Details,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeActivityAppend, payload, asynq.Queue(activityQueue), asynq.MaxRetry(3)), nil
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// QueueSink hands activity entries to Redis; ActivityWorker writes them.
type QueueSink struct {
	client *asynq.Client
}

// NewQueueSink connects to Redis and verifies it is reachable.
func NewQueueSink(cfg *config.RedisConfig) (*QueueSink, error) {
	opt := redisOpt(cfg)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		return nil, fmt.Errorf("redis unavailable: %w", err)
	}

	return &QueueSink{client: asynq.NewClient(opt)}, nil
}

func (q *QueueSink) Append(ctx context.Context, entry *models.ActivityLog) error {
	task, err := NewActivityTask(entry)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue activity: %w", err)
	}
	logger.Debug().Str("task_id", info.ID).Uint("issue_id", entry.IssueID).Msg("activity enqueued")
	return nil
}

func (q *QueueSink) Close() error {
	return q.client.Close()
}

// NewActivitySink picks the queue when Redis is enabled and reachable, and
// falls back to direct store writes otherwise.
func NewActivitySink(cfg *config.Config, store Store) (ActivitySink, string) {
	if !cfg.Redis.Enabled {
		logger.Infof("[Activity] Direct store writes (Redis disabled)")
		return NewStoreSink(store), "direct"
	}
	sink, err := NewQueueSink(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("[Activity] Falling back to direct store writes")
		return NewStoreSink(store), "direct"
	}
	logger.Infof("[Activity] Queued writes via Redis at %s", cfg.Redis.Addr)
	return sink, "queued"
}

// ActivityWorker drains activity:append tasks into the store.
type ActivityWorker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	store   Store
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

func NewActivityWorker(cfg *config.RedisConfig, store Store) *ActivityWorker {
	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{activityQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error().Err(err).
				Str("task", task.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("[Worker] activity task failed")
		}),
	})

	w := &ActivityWorker{server: server, mux: asynq.NewServeMux(), store: store}
	w.mux.HandleFunc(TaskTypeActivityAppend, w.handleAppend)
	return w
}

func (w *ActivityWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] Starting activity worker")
		if err := w.server.Run(w.mux); err != nil {
			logger.Error().Err(err).Msg("[Worker] server stopped")
		}
	}()
}

func (w *ActivityWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Infof("[Worker] Shutdown complete")
}

func (w *ActivityWorker) handleAppend(ctx context.Context, t *asynq.Task) error {
	var p activityPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode activity payload: %v: %w", err, asynq.SkipRetry)
	}
	if !p.Action.Valid() {
		return fmt.Errorf("%w %q: %w", errUnknownAction, p.Action, asynq.SkipRetry)
	}
	return w.store.AppendActivity(ctx, &models.ActivityLog{
		IssueID: p.IssueID,
		UserID:  p.UserID,
		Action:  p.Action,
		Details: p.Details,
	})
}
