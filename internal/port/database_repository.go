package port

import (
	"context"
	"time"

	"flashline/internal/core/domain"
)

// DatabaseRepository is the durable record store: authoritative campaign
// inventory and completed orders.
type DatabaseRepository interface {
	// GetSaleMeta loads the minimal campaign projection by id, falling back
	// to a slug lookup when the id does not resolve. Returns
	// domain.ErrSaleNotFound when neither matches.
	GetSaleMeta(ctx context.Context, saleID string) (domain.SaleMeta, error)

	// DecrementQuantity conditionally takes one unit: the campaign must be
	// active, inside its window at now, and have currentQuantity > 0.
	// Returns false when the condition does not match. This is the
	// authoritative gate, independent of the fast counter.
	DecrementQuantity(ctx context.Context, saleID string, now time.Time) (bool, error)

	// IncrementQuantity compensates a decrement whose order creation failed.
	IncrementQuantity(ctx context.Context, saleID string) error

	// FindOrder returns the buyer's order for the sale, or nil when none
	// exists.
	FindOrder(ctx context.Context, saleID, email string) (*domain.Order, error)

	// FindPaidOrder returns the buyer's paid order for the sale, or nil.
	FindPaidOrder(ctx context.Context, saleID, email string) (*domain.Order, error)

	// CreateOrder persists a new order. Returns domain.ErrOrderExists when
	// the (campaign, buyer) uniqueness constraint rejects it.
	CreateOrder(ctx context.Context, order domain.Order) error
}
