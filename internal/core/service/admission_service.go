package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"flashline/internal/core/domain"
	"flashline/internal/port"
)

// AdmissionService is the public entry to the sale: it puts the buyer in the
// waiting line and schedules a reservation attempt. It never grants holds
// itself; that is the reservation worker's job.
type AdmissionService struct {
	cache  port.CacheRepository
	db     port.DatabaseRepository
	queue  port.TaskQueue
	logger zerolog.Logger
}

func NewAdmissionService(cache port.CacheRepository, db port.DatabaseRepository, queue port.TaskQueue, logger zerolog.Logger) *AdmissionService {
	return &AdmissionService{
		cache:  cache,
		db:     db,
		queue:  queue,
		logger: logger.With().Str("component", "admission").Logger(),
	}
}

func (s *AdmissionService) Buy(ctx context.Context, email, saleID string, holdTTLSec int) (domain.Admission, error) {
	email, saleID, err := normalizeBuyer(email, saleID)
	if err != nil {
		return domain.Admission{}, err
	}

	// A buyer who already paid never re-enters the line.
	order, err := s.db.FindPaidOrder(ctx, saleID, email)
	if err != nil {
		return domain.Admission{}, fmt.Errorf("lookup paid order: %w", err)
	}
	if order != nil {
		return domain.Admission{}, &domain.AlreadyPurchasedError{OrderID: order.ID}
	}

	holdTTL, err := s.cache.HoldTTL(ctx, saleID, email)
	if err != nil {
		return domain.Admission{}, fmt.Errorf("read hold ttl: %w", err)
	}

	// Add-if-absent: a repeated buy keeps the original enqueue timestamp,
	// so re-submission never loses the buyer's place.
	if _, err := s.cache.LineAdd(ctx, saleID, email, time.Now()); err != nil {
		return domain.Admission{}, fmt.Errorf("join line: %w", err)
	}

	rank, err := s.cache.LineRank(ctx, saleID, email)
	if err != nil {
		return domain.Admission{}, fmt.Errorf("read rank: %w", err)
	}
	size, err := s.cache.LineSize(ctx, saleID)
	if err != nil {
		return domain.Admission{}, fmt.Errorf("read line size: %w", err)
	}

	admission := domain.Admission{
		Rank:          rank,
		LineSize:      size,
		HasActiveHold: holdTTL > 0,
		HoldTTL:       holdTTL,
	}

	if holdTTL <= 0 {
		err := s.queue.EnqueueReserve(ctx, port.ReserveTask{
			SaleID:     saleID,
			Email:      email,
			HoldTTLSec: holdTTLSec,
		})
		if err != nil {
			return domain.Admission{}, fmt.Errorf("enqueue reserve: %v: %w", err, domain.ErrQueueUnavailable)
		}
		admission.Queued = true
	}

	s.logger.Debug().
		Str("sale", saleID).
		Str("buyer", email).
		Int64("rank", rank).
		Int64("size", size).
		Bool("queued", admission.Queued).
		Msg("buyer admitted to line")

	return admission, nil
}
