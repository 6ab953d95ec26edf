package service

import (
	"context"
	"fmt"

	"flashline/internal/core/domain"
	"flashline/internal/port"
)

// PositionService is the read-only view buyers poll while waiting. It never
// mutates anything.
type PositionService struct {
	cache port.CacheRepository
}

func NewPositionService(cache port.CacheRepository) *PositionService {
	return &PositionService{cache: cache}
}

func (s *PositionService) Position(ctx context.Context, email, saleID string) (domain.Position, error) {
	email, saleID, err := normalizeBuyer(email, saleID)
	if err != nil {
		return domain.Position{}, err
	}

	holdTTL, err := s.cache.HoldTTL(ctx, saleID, email)
	if err != nil {
		return domain.Position{}, fmt.Errorf("read hold ttl: %w", err)
	}
	if holdTTL > 0 {
		return domain.Position{Status: domain.LineStatusReady, HoldTTL: holdTTL}, nil
	}

	rank, err := s.cache.LineRank(ctx, saleID, email)
	if err != nil {
		return domain.Position{}, fmt.Errorf("read rank: %w", err)
	}
	if rank < 0 {
		return domain.Position{Status: domain.LineStatusNone}, nil
	}

	size, err := s.cache.LineSize(ctx, saleID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("read line size: %w", err)
	}
	return domain.Position{Status: domain.LineStatusQueued, Rank: rank, LineSize: size}, nil
}
