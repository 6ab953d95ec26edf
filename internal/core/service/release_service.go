package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"flashline/internal/port"
)

// Release outcomes.
const (
	OutcomeConsumed = "consumed"
	OutcomeActive   = "active"
	OutcomeRestored = "restored"
	OutcomeAssigned = "assigned"
)

// ReleaseService consumes release_hold jobs, one per granted hold, fired
// after the hold's TTL. It reclaims the unit and, when someone is waiting,
// hands it straight to the next buyer under the same lock, bounding
// expiry-to-next-grant latency to one step.
type ReleaseService struct {
	cache          port.CacheRepository
	queue          port.TaskQueue
	locker         port.Locker
	logger         zerolog.Logger
	defaultHoldTTL time.Duration
	lockTTL        time.Duration
}

func NewReleaseService(
	cache port.CacheRepository,
	queue port.TaskQueue,
	locker port.Locker,
	logger zerolog.Logger,
	defaultHoldTTL, lockTTL time.Duration,
) *ReleaseService {
	return &ReleaseService{
		cache:          cache,
		queue:          queue,
		locker:         locker,
		logger:         logger.With().Str("component", "release").Logger(),
		defaultHoldTTL: defaultHoldTTL,
		lockTTL:        lockTTL,
	}
}

func (s *ReleaseService) Release(ctx context.Context, task port.ReleaseTask) (string, error) {
	log := s.logger.With().Str("sale", task.SaleID).Str("buyer", task.Email).Logger()

	var outcome string
	err := s.locker.WithLock(ctx, saleLockKey(task.SaleID), s.lockTTL, func(ctx context.Context) error {
		consumed, err := s.cache.Consumed(ctx, task.SaleID, task.Email)
		if err != nil {
			return fmt.Errorf("check consumed marker: %w", err)
		}
		if consumed {
			// The buyer paid before this sweep fired; the unit is gone for
			// good and must not be restored.
			outcome = OutcomeConsumed
			return nil
		}

		holdTTL, err := s.cache.HoldTTL(ctx, task.SaleID, task.Email)
		if err != nil {
			return fmt.Errorf("read hold ttl: %w", err)
		}
		if holdTTL > 0 {
			// The job's delay and the key's TTL run on independent clocks;
			// a live hold means this sweep fired early. The key expiry
			// remains the source of truth.
			outcome = OutcomeActive
			return nil
		}

		restored, err := s.cache.IncrStock(ctx, task.SaleID)
		if err != nil {
			return fmt.Errorf("restore counter: %w", err)
		}
		if restored <= 0 {
			outcome = OutcomeRestored
			return nil
		}

		for {
			next, ok, err := s.cache.LinePopMin(ctx, task.SaleID)
			if err != nil {
				return fmt.Errorf("pop line: %w", err)
			}
			if !ok {
				outcome = OutcomeRestored
				return nil
			}

			// A repeat buy puts a buyer back in the line after the grant
			// removed them. Granting them again would decrement the counter
			// twice for one hold and renew a hold whose sweep already fired;
			// drop the stale entry and keep looking.
			nextTTL, err := s.cache.HoldTTL(ctx, task.SaleID, next)
			if err != nil {
				return fmt.Errorf("read next hold ttl: %w", err)
			}
			if nextTTL > 0 {
				log.Debug().Str("next", next).Msg("skipping line entry with live hold")
				continue
			}

			// Cascade: grant the reclaimed unit to the next buyer directly,
			// bypassing the reserve job cycle.
			if err := s.cache.GrantHold(ctx, task.SaleID, next, s.defaultHoldTTL); err != nil {
				return fmt.Errorf("cascade grant: %w", err)
			}
			if err := s.queue.ScheduleRelease(ctx, port.ReleaseTask{SaleID: task.SaleID, Email: next}, s.defaultHoldTTL); err != nil {
				return fmt.Errorf("schedule cascade release: %w", err)
			}

			log.Info().Str("next", next).Msg("hold cascaded to next in line")
			outcome = OutcomeAssigned
			return nil
		}
	})
	if err != nil {
		return "", err
	}

	log.Debug().Str("result", outcome).Msg("release sweep finished")
	return outcome, nil
}
