package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"flashline/internal/port"
)

// AsynqQueue implements port.TaskQueue on asynq: Redis-backed, at-least-once,
// with per-task ids for dedupe and native delayed delivery.
type AsynqQueue struct {
	client          *asynq.Client
	maxReserveRetry int
	maxReleaseRetry int
}

func NewAsynqQueue(client *asynq.Client, maxReserveRetry int) *AsynqQueue {
	return &AsynqQueue{
		client:          client,
		maxReserveRetry: maxReserveRetry,
		maxReleaseRetry: 10,
	}
}

func (q *AsynqQueue) EnqueueReserve(ctx context.Context, task port.ReserveTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode reserve task: %w", err)
	}
	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(TypeReserve, payload),
		asynq.TaskID(reserveTaskID(task.SaleID, task.Email)),
		asynq.Queue(QueueReservations),
		asynq.MaxRetry(q.maxReserveRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// An attempt for this buyer is already pending; the calls collapse.
		return nil
	}
	return err
}

func (q *AsynqQueue) ScheduleRelease(ctx context.Context, task port.ReleaseTask, delay time.Duration) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode release task: %w", err)
	}
	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(TypeRelease, payload),
		asynq.TaskID(releaseTaskID(task.SaleID, task.Email)),
		asynq.Queue(QueueReleases),
		asynq.MaxRetry(q.maxReleaseRetry),
		asynq.ProcessIn(delay),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
