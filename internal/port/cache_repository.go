package port

import (
	"context"
	"time"

	"flashline/internal/core/domain"
)

// CacheRepository is the fast shared state store backing the admission fast
// path: the waiting line, the provisional stock counter, hold/claim/consumed
// keys and the sale metadata cache. All mutations relied on for correctness
// are atomic store primitives; in-process synchronization is never assumed.
type CacheRepository interface {
	// LineAdd inserts the buyer into the sale's waiting line with the given
	// enqueue timestamp, only if absent. Returns true when a new entry was
	// created.
	LineAdd(ctx context.Context, saleID, email string, enqueuedAt time.Time) (bool, error)

	// LineRank returns the buyer's 0-based rank, or -1 if not in line.
	LineRank(ctx context.Context, saleID, email string) (int64, error)

	// LineSize returns the number of buyers currently in line.
	LineSize(ctx context.Context, saleID string) (int64, error)

	// LineRemove evicts the buyer from the line if present.
	LineRemove(ctx context.Context, saleID, email string) error

	// LinePopMin atomically removes and returns the earliest-enqueued buyer.
	// ok is false when the line is empty.
	LinePopMin(ctx context.Context, saleID string) (email string, ok bool, err error)

	// InitStock sets the fast counter from the campaign's starting quantity
	// if, and only if, it has not been initialized yet.
	InitStock(ctx context.Context, saleID string, quantity int) error

	// Stock returns the current fast counter value. A missing counter reads
	// as zero.
	Stock(ctx context.Context, saleID string) (int64, error)

	// IncrStock restores one unit to the fast counter and returns the new
	// value.
	IncrStock(ctx context.Context, saleID string) (int64, error)

	// GrantHold decrements the counter, sets the buyer's hold key with the
	// given TTL and removes them from the line, as one batched operation.
	GrantHold(ctx context.Context, saleID, email string, ttl time.Duration) error

	// HoldTTL returns the remaining TTL of the buyer's hold, or zero when no
	// hold is active.
	HoldTTL(ctx context.Context, saleID, email string) (time.Duration, error)

	// Consumed reports whether the buyer's purchase-completed marker is set.
	Consumed(ctx context.Context, saleID, email string) (bool, error)

	// AcquireClaim sets the buyer's confirm claim if absent. Returns false
	// when another confirmation already holds it.
	AcquireClaim(ctx context.Context, saleID, email string, ttl time.Duration) (bool, error)

	// ClaimTTL returns the remaining TTL of the buyer's confirm claim.
	ClaimTTL(ctx context.Context, saleID, email string) (time.Duration, error)

	// ReleaseClaim drops the confirm claim.
	ReleaseClaim(ctx context.Context, saleID, email string) error

	// FinalizePurchase marks the buyer consumed, deletes their hold, removes
	// any stray line membership and releases the confirm claim, as one
	// batched operation.
	FinalizePurchase(ctx context.Context, saleID, email string, consumedTTL time.Duration) error

	// SaleMeta returns the cached metadata snapshot. ok is false on a miss;
	// malformed cached data is treated as a miss, never trusted.
	SaleMeta(ctx context.Context, saleID string) (domain.SaleMeta, bool, error)

	// SetSaleMeta caches the metadata snapshot with the given TTL.
	SetSaleMeta(ctx context.Context, meta domain.SaleMeta, ttl time.Duration) error
}
