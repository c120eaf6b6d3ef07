package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/JustinTDCT/SerialDesk/internal/cache"
	"github.com/JustinTDCT/SerialDesk/internal/db"
	"github.com/JustinTDCT/SerialDesk/internal/logger"
	"github.com/JustinTDCT/SerialDesk/internal/maintenance"
	"github.com/JustinTDCT/SerialDesk/internal/metrics"
)

const TaskMaintenance = "maintenance:run"

type MaintenancePayload struct {
	Task string `json:"task"`
}

// Outcome describes a dispatched maintenance task. Queued tasks carry a job
// id; inline ones carry their result.
type Outcome struct {
	Task   string              `json:"task"`
	Queued bool                `json:"queued"`
	JobID  string              `json:"jobId,omitempty"`
	Result *maintenance.Result `json:"result,omitempty"`
}

// Dispatcher starts a maintenance task, either now or on the job queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, task string) (*Outcome, error)
}

// Executor runs maintenance tasks in the calling goroutine against a
// freshly acquired database handle. Tasks that write drop the cached
// snapshot. The cache may be nil.
type Executor struct {
	provider db.Provider
	cache    *cache.SnapshotCache
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewExecutor(provider db.Provider, c *cache.SnapshotCache, log *logger.Logger, m *metrics.Metrics) *Executor {
	return &Executor{provider: provider, cache: c, log: log, metrics: m}
}

func (e *Executor) Execute(ctx context.Context, task string) (*maintenance.Result, error) {
	h, err := e.provider.Acquire(ctx)
	if err != nil {
		e.metrics.MaintenanceRun(task, err)
		return nil, err
	}
	defer e.provider.Release(ctx, h)

	res, err := maintenance.NewRunner(h, e.log).Run(ctx, task)
	e.metrics.MaintenanceRun(task, err)
	if err == nil && task != maintenance.TaskReport {
		e.cache.Invalidate(ctx)
	}
	return res, err
}

func (e *Executor) Dispatch(ctx context.Context, task string) (*Outcome, error) {
	if !maintenance.Known(task) {
		return nil, fmt.Errorf("%w: %s", maintenance.ErrUnknownTask, task)
	}
	res, err := e.Execute(ctx, task)
	if err != nil {
		return nil, err
	}
	return &Outcome{Task: task, Result: res}, nil
}

// ProcessTask is the asynq handler for TaskMaintenance.
func (e *Executor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p MaintenancePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w: %w", err, asynq.SkipRetry)
	}
	if !maintenance.Known(p.Task) {
		return fmt.Errorf("%w: %s: %w", maintenance.ErrUnknownTask, p.Task, asynq.SkipRetry)
	}
	e.log.Info("job: running maintenance task", "task", p.Task)
	_, err := e.Execute(ctx, p.Task)
	return err
}

// QueueDispatcher hands tasks to the asynq queue.
type QueueDispatcher struct {
	queue *Queue
}

func NewQueueDispatcher(q *Queue) *QueueDispatcher {
	return &QueueDispatcher{queue: q}
}

func (d *QueueDispatcher) Dispatch(_ context.Context, task string) (*Outcome, error) {
	if !maintenance.Known(task) {
		return nil, fmt.Errorf("%w: %s", maintenance.ErrUnknownTask, task)
	}
	id, err := d.queue.EnqueueUnique(TaskMaintenance, MaintenancePayload{Task: task}, "maintenance:"+task, asynq.MaxRetry(3))
	if err != nil {
		return nil, err
	}
	return &Outcome{Task: task, Queued: true, JobID: id}, nil
}

// NewDispatcher starts the job queue when redisURL names a reachable Redis
// and returns a dispatcher onto it. Otherwise maintenance runs inline on e
// and the returned queue is nil.
func NewDispatcher(ctx context.Context, redisURL string, e *Executor, log *logger.Logger) (Dispatcher, *Queue) {
	if redisURL == "" {
		return e, nil
	}
	if err := Ping(ctx, redisURL); err != nil {
		log.Warn("job queue unavailable, maintenance runs inline", "error", err)
		return e, nil
	}
	q, err := NewQueue(redisURL, log)
	if err != nil {
		log.Warn("job queue unavailable, maintenance runs inline", "error", err)
		return e, nil
	}
	RegisterHandlers(q, e)
	if err := q.Start(); err != nil {
		q.closeClients()
		log.Warn("job queue failed to start, maintenance runs inline", "error", err)
		return e, nil
	}
	log.Info("maintenance tasks run on the job queue")
	return NewQueueDispatcher(q), q
}

// RegisterHandlers wires the maintenance worker into the queue.
func RegisterHandlers(q *Queue, e *Executor) {
	q.RegisterHandler(TaskMaintenance, e)
}
