package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"flashline/internal/core/domain"
	"flashline/internal/core/service"
	"flashline/internal/port"
)

// WorkerHandlers adapts the reservation and release services to asynq's
// handler contract, translating the domain error taxonomy into queue
// behavior: retryable kinds ride the backoff policy, terminal kinds drop the
// job via SkipRetry, everything else (infrastructure) retries as-is.
type WorkerHandlers struct {
	reservations *service.ReservationService
	releases     *service.ReleaseService
	logger       zerolog.Logger
}

func NewWorkerHandlers(reservations *service.ReservationService, releases *service.ReleaseService, logger zerolog.Logger) *WorkerHandlers {
	return &WorkerHandlers{
		reservations: reservations,
		releases:     releases,
		logger:       logger.With().Str("component", "worker").Logger(),
	}
}

func NewMux(h *WorkerHandlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReserve, h.HandleReserve)
	mux.HandleFunc(TypeRelease, h.HandleRelease)
	return mux
}

func (h *WorkerHandlers) HandleReserve(ctx context.Context, t *asynq.Task) error {
	var task port.ReserveTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode reserve payload: %v: %w", err, asynq.SkipRetry)
	}
	outcome, err := h.reservations.Reserve(ctx, task)
	if err != nil {
		return h.classify(t.Type(), task.SaleID, task.Email, err)
	}
	h.logger.Debug().Str("task", t.Type()).Str("sale", task.SaleID).
		Str("buyer", task.Email).Str("result", outcome).Msg("task done")
	return nil
}

func (h *WorkerHandlers) HandleRelease(ctx context.Context, t *asynq.Task) error {
	var task port.ReleaseTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode release payload: %v: %w", err, asynq.SkipRetry)
	}
	outcome, err := h.releases.Release(ctx, task)
	if err != nil {
		return h.classify(t.Type(), task.SaleID, task.Email, err)
	}
	h.logger.Debug().Str("task", t.Type()).Str("sale", task.SaleID).
		Str("buyer", task.Email).Str("result", outcome).Msg("task done")
	return nil
}

func (h *WorkerHandlers) classify(taskType, saleID, email string, err error) error {
	if domain.Retryable(err) {
		// Not first / no stock yet / not started / lock busy: back off and
		// try again; the buyer keeps polling position meanwhile.
		return err
	}
	if errors.Is(err, domain.ErrSaleNotFound) || errors.Is(err, domain.ErrSaleEnded) {
		h.logger.Info().Str("task", taskType).Str("sale", saleID).
			Str("buyer", email).Err(err).Msg("dropping task, sale is terminal")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	h.logger.Warn().Str("task", taskType).Str("sale", saleID).
		Str("buyer", email).Err(err).Msg("task failed, will retry")
	return err
}

// RetryDelay is the bounded backoff for retryable job failures: linear in
// the attempt count, capped at 10s so a long line keeps moving.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Duration(n+1) * 500 * time.Millisecond
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	return delay
}

// NewServer builds the asynq server with bounded per-process concurrency.
// Retryable sentinels are expected flow control, not failures, so they are
// excluded from asynq's failure accounting.
func NewServer(redisOpt asynq.RedisClientOpt, concurrency int, logger zerolog.Logger) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueReservations: 6,
			QueueReleases:     4,
		},
		RetryDelayFunc: RetryDelay,
		IsFailure: func(err error) bool {
			return !domain.Retryable(err)
		},
		Logger: asynqLogger{logger: logger.With().Str("component", "asynq").Logger()},
	})
}

// asynqLogger bridges asynq's logger interface onto zerolog.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
