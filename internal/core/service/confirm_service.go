package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"flashline/internal/core/domain"
	"flashline/internal/port"
)

// ConfirmService converts an active hold into a durable order. The fast
// counter already accounted for the unit at grant time; the binding check is
// the conditional decrement against the durable quantity, with a
// compensating increment if order creation fails after it.
type ConfirmService struct {
	cache          port.CacheRepository
	db             port.DatabaseRepository
	logger         zerolog.Logger
	claimTTL       time.Duration
	defaultHoldTTL time.Duration
	consumedBuffer time.Duration
}

func NewConfirmService(
	cache port.CacheRepository,
	db port.DatabaseRepository,
	logger zerolog.Logger,
	claimTTL, defaultHoldTTL, consumedBuffer time.Duration,
) *ConfirmService {
	return &ConfirmService{
		cache:          cache,
		db:             db,
		logger:         logger.With().Str("component", "confirm").Logger(),
		claimTTL:       claimTTL,
		defaultHoldTTL: defaultHoldTTL,
		consumedBuffer: consumedBuffer,
	}
}

func (s *ConfirmService) Confirm(ctx context.Context, email, saleID string, amountCents int64) (string, error) {
	email, saleID, err := normalizeBuyer(email, saleID)
	if err != nil {
		return "", err
	}
	if amountCents <= 0 {
		return "", fmt.Errorf("amount must be positive: %w", domain.ErrInvalidInput)
	}

	holdTTL, err := s.cache.HoldTTL(ctx, saleID, email)
	if err != nil {
		return "", fmt.Errorf("read hold ttl: %w", err)
	}
	if holdTTL <= 0 {
		return "", domain.ErrNoActiveHold
	}

	// Idempotent short-circuit for retries of an already-confirmed purchase.
	if existing, err := s.db.FindOrder(ctx, saleID, email); err != nil {
		return "", fmt.Errorf("lookup order: %w", err)
	} else if existing != nil {
		return existing.ID, nil
	}

	won, err := s.cache.AcquireClaim(ctx, saleID, email, s.claimTTL)
	if err != nil {
		return "", fmt.Errorf("acquire claim: %w", err)
	}
	if !won {
		// A concurrent confirm holds the claim. If it already finished, its
		// order is the answer; otherwise the caller lost the race.
		if existing, err := s.db.FindOrder(ctx, saleID, email); err != nil {
			return "", fmt.Errorf("lookup order: %w", err)
		} else if existing != nil {
			return existing.ID, nil
		}
		claimTTL, err := s.cache.ClaimTTL(ctx, saleID, email)
		if err != nil {
			return "", fmt.Errorf("read claim ttl: %w", err)
		}
		return "", &domain.ConfirmBusyError{ClaimTTL: claimTTL, HoldTTL: holdTTL}
	}

	// Authoritative gate: the sale must still be live with stock, regardless
	// of what the fast counter believes.
	decremented, err := s.db.DecrementQuantity(ctx, saleID, time.Now())
	if err != nil {
		s.releaseClaim(ctx, saleID, email)
		return "", fmt.Errorf("decrement quantity: %w", err)
	}
	if !decremented {
		s.releaseClaim(ctx, saleID, email)
		return "", domain.ErrSaleUnavailable
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		CampaignID:    saleID,
		BuyerEmail:    email,
		AmountCents:   amountCents,
		PaymentStatus: domain.PaymentStatusPaid,
		CreatedAt:     time.Now(),
	}

	if err := s.db.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, domain.ErrOrderExists) {
			// A racing confirm won between our lookup and insert. Undo our
			// decrement and answer with the winner's order.
			if compErr := s.db.IncrementQuantity(ctx, saleID); compErr != nil {
				s.logger.Error().Err(compErr).Str("sale", saleID).Str("buyer", email).
					Msg("compensating increment failed after duplicate order")
			}
			s.releaseClaim(ctx, saleID, email)
			if existing, lookupErr := s.db.FindOrder(ctx, saleID, email); lookupErr == nil && existing != nil {
				return existing.ID, nil
			}
			return "", domain.ErrConfirmInProgress
		}

		if compErr := s.db.IncrementQuantity(ctx, saleID); compErr != nil {
			s.logger.Error().Err(compErr).Str("sale", saleID).Str("buyer", email).
				Msg("compensating increment failed; durable quantity leaked")
		}
		s.releaseClaim(ctx, saleID, email)
		return "", fmt.Errorf("create order: %w", err)
	}

	// The consumed marker must outlive the scheduled release sweep so a late
	// expiry never restores a purchased unit.
	consumedTTL := holdTTL + s.consumedBuffer
	if min := s.defaultHoldTTL + s.consumedBuffer; consumedTTL < min {
		consumedTTL = min
	}
	if err := s.cache.FinalizePurchase(ctx, saleID, email, consumedTTL); err != nil {
		// The order exists; the release sweep's consumed check is what this
		// protects, so a failure here is loud but not fatal to the caller.
		s.logger.Error().Err(err).Str("sale", saleID).Str("buyer", email).
			Msg("finalize purchase markers failed")
	}

	s.logger.Info().Str("sale", saleID).Str("buyer", email).Str("order", order.ID).
		Msg("purchase confirmed")
	return order.ID, nil
}

func (s *ConfirmService) releaseClaim(ctx context.Context, saleID, email string) {
	if err := s.cache.ReleaseClaim(ctx, saleID, email); err != nil {
		s.logger.Warn().Err(err).Str("sale", saleID).Str("buyer", email).
			Msg("claim release failed; short TTL will clear it")
	}
}
