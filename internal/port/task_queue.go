package port

import (
	"context"
	"time"
)

// ReserveTask asks the reservation worker to try granting a hold.
type ReserveTask struct {
	SaleID     string `json:"saleId"`
	Email      string `json:"email"`
	HoldTTLSec int    `json:"holdTtlSec,omitempty"`
}

// ReleaseTask asks the release worker to reclaim an expired hold.
type ReleaseTask struct {
	SaleID string `json:"saleId"`
	Email  string `json:"email"`
}

// TaskQueue is the durable, retryable, delay-capable job queue. Both enqueue
// operations use a job id deterministic in (sale, buyer) so repeated calls
// collapse into a single pending job.
type TaskQueue interface {
	// EnqueueReserve schedules a reservation attempt. Enqueueing an already
	// pending attempt is a no-op, not an error.
	EnqueueReserve(ctx context.Context, task ReserveTask) error

	// ScheduleRelease schedules the hold-expiry sweep to fire after delay.
	ScheduleRelease(ctx context.Context, task ReleaseTask, delay time.Duration) error
}
