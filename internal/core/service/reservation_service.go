package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"flashline/internal/core/domain"
	"flashline/internal/port"
)

// Reservation outcomes, logged by the worker integration.
const (
	OutcomeGranted         = "granted"
	OutcomeAlreadyConsumed = "already_consumed"
	OutcomeAlreadyHeld     = "already_held"
)

// ReservationService consumes reserve jobs. It is the only code path that
// grants a hold from the waiting line, serialized per sale by the grant
// lock. Retryable errors (not first, no stock yet, sale not started, lock
// busy) are pushed back to the queue's backoff policy; terminal errors
// evict the buyer's line entry and drop the job.
type ReservationService struct {
	cache          port.CacheRepository
	db             port.DatabaseRepository
	queue          port.TaskQueue
	locker         port.Locker
	logger         zerolog.Logger
	defaultHoldTTL time.Duration
	lockTTL        time.Duration
	metaTTL        time.Duration
}

func NewReservationService(
	cache port.CacheRepository,
	db port.DatabaseRepository,
	queue port.TaskQueue,
	locker port.Locker,
	logger zerolog.Logger,
	defaultHoldTTL, lockTTL, metaTTL time.Duration,
) *ReservationService {
	return &ReservationService{
		cache:          cache,
		db:             db,
		queue:          queue,
		locker:         locker,
		logger:         logger.With().Str("component", "reservation").Logger(),
		defaultHoldTTL: defaultHoldTTL,
		lockTTL:        lockTTL,
		metaTTL:        metaTTL,
	}
}

func (s *ReservationService) Reserve(ctx context.Context, task port.ReserveTask) (string, error) {
	log := s.logger.With().Str("sale", task.SaleID).Str("buyer", task.Email).Logger()

	consumed, err := s.cache.Consumed(ctx, task.SaleID, task.Email)
	if err != nil {
		return "", fmt.Errorf("check consumed marker: %w", err)
	}
	if consumed {
		// The buyer completed a purchase while this job was queued.
		if err := s.cache.LineRemove(ctx, task.SaleID, task.Email); err != nil {
			return "", fmt.Errorf("evict consumed buyer: %w", err)
		}
		log.Debug().Str("result", OutcomeAlreadyConsumed).Msg("reserve no-op")
		return OutcomeAlreadyConsumed, nil
	}

	held, err := s.cache.HoldTTL(ctx, task.SaleID, task.Email)
	if err != nil {
		return "", fmt.Errorf("read hold ttl: %w", err)
	}
	if held > 0 {
		// A prior attempt granted the hold but failed before its sweep was
		// scheduled. Re-schedule it; the deterministic task id collapses this
		// into any sweep already pending.
		if err := s.queue.ScheduleRelease(ctx, port.ReleaseTask{SaleID: task.SaleID, Email: task.Email}, held); err != nil {
			return "", fmt.Errorf("schedule release: %w", err)
		}
		log.Debug().Str("result", OutcomeAlreadyHeld).Msg("reserve no-op")
		return OutcomeAlreadyHeld, nil
	}

	meta, err := s.resolveMeta(ctx, task.SaleID)
	if errors.Is(err, domain.ErrSaleNotFound) {
		if err := s.evict(ctx, task.SaleID, task.Email); err != nil {
			return "", err
		}
		return "", domain.ErrSaleNotFound
	}
	if err != nil {
		return "", err
	}

	now := time.Now()
	if !meta.Schedulable(now) {
		if err := s.evict(ctx, task.SaleID, task.Email); err != nil {
			return "", err
		}
		return "", domain.ErrSaleEnded
	}
	if !meta.Started(now) {
		// The window opens later; keep the line entry and let the queue
		// back off.
		return "", domain.ErrNotYetActive
	}

	var remaining int64
	err = s.locker.WithLock(ctx, saleLockKey(task.SaleID), s.lockTTL, func(ctx context.Context) error {
		rank, err := s.cache.LineRank(ctx, task.SaleID, task.Email)
		if err != nil {
			return fmt.Errorf("read rank: %w", err)
		}
		if rank != 0 {
			return domain.ErrNotFirst
		}

		if err := s.cache.InitStock(ctx, task.SaleID, meta.StartingQuantity); err != nil {
			return fmt.Errorf("init counter: %w", err)
		}

		stock, err := s.cache.Stock(ctx, task.SaleID)
		if err != nil {
			return fmt.Errorf("read counter: %w", err)
		}
		if stock <= 0 {
			return domain.ErrNoStockYet
		}

		holdTTL := s.holdTTL(task.HoldTTLSec)
		if err := s.cache.GrantHold(ctx, task.SaleID, task.Email, holdTTL); err != nil {
			return fmt.Errorf("grant hold: %w", err)
		}
		if err := s.queue.ScheduleRelease(ctx, port.ReleaseTask{SaleID: task.SaleID, Email: task.Email}, holdTTL); err != nil {
			return fmt.Errorf("schedule release: %w", err)
		}

		remaining = stock - 1
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Info().Str("result", OutcomeGranted).Int64("remaining", remaining).Msg("hold granted")
	return OutcomeGranted, nil
}

// holdTTL resolves the effective hold duration: the requested seconds when
// given, the configured default otherwise, never below one second.
func (s *ReservationService) holdTTL(requestedSec int) time.Duration {
	ttl := s.defaultHoldTTL
	if requestedSec > 0 {
		ttl = time.Duration(requestedSec) * time.Second
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *ReservationService) evict(ctx context.Context, saleID, email string) error {
	if err := s.cache.LineRemove(ctx, saleID, email); err != nil {
		return fmt.Errorf("evict from line: %w", err)
	}
	return nil
}

func (s *ReservationService) resolveMeta(ctx context.Context, saleID string) (domain.SaleMeta, error) {
	meta, ok, err := s.cache.SaleMeta(ctx, saleID)
	if err != nil {
		return domain.SaleMeta{}, fmt.Errorf("read meta cache: %w", err)
	}
	if ok {
		return meta, nil
	}

	meta, err = s.db.GetSaleMeta(ctx, saleID)
	if err != nil {
		return domain.SaleMeta{}, err
	}
	if err := s.cache.SetSaleMeta(ctx, meta, s.metaTTL); err != nil {
		// The snapshot is an optimization; a failed repopulation must not
		// fail the job.
		s.logger.Warn().Err(err).Str("sale", saleID).Msg("meta cache repopulation failed")
	}
	return meta, nil
}
