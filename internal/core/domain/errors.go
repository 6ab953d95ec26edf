package domain

import (
	"errors"
	"time"
)

// Terminal conditions surfaced to callers.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyPurchased  = errors.New("already purchased")
	ErrNoActiveHold      = errors.New("no active hold")
	ErrConfirmInProgress = errors.New("confirmation already in progress")
	ErrSaleUnavailable   = errors.New("out of stock or sale not active")
	ErrSaleNotFound      = errors.New("sale not found")
	ErrSaleEnded         = errors.New("sale ended")
	ErrOrderExists       = errors.New("order already exists")
	ErrQueueUnavailable  = errors.New("job queue unavailable")
)

// Internal retry conditions. These never reach an HTTP caller; the queue
// integration maps them to backoff retries while the buyer polls position.
var (
	ErrNotFirst     = errors.New("not first in line")
	ErrNotYetActive = errors.New("sale not yet active")
	ErrNoStockYet   = errors.New("no stock available yet")
	ErrLockBusy     = errors.New("sale lock busy")
)

// AlreadyPurchasedError carries the existing order id when a buyer who
// already paid tries to re-enter the line.
type AlreadyPurchasedError struct {
	OrderID string
}

func (e *AlreadyPurchasedError) Error() string {
	return ErrAlreadyPurchased.Error()
}

func (e *AlreadyPurchasedError) Is(target error) bool {
	return target == ErrAlreadyPurchased
}

// ConfirmBusyError reports a confirm attempt that lost the claim race while
// no order exists yet. It carries the remaining fence TTLs so the caller
// knows when a retry could succeed.
type ConfirmBusyError struct {
	ClaimTTL time.Duration
	HoldTTL  time.Duration
}

func (e *ConfirmBusyError) Error() string {
	return ErrConfirmInProgress.Error()
}

func (e *ConfirmBusyError) Is(target error) bool {
	return target == ErrConfirmInProgress
}

// Retryable reports whether err is one of the internal retry kinds. Lock
// contention is classified the same as losing the rank check: back off and
// try again.
func Retryable(err error) bool {
	return errors.Is(err, ErrNotFirst) ||
		errors.Is(err, ErrNotYetActive) ||
		errors.Is(err, ErrNoStockYet) ||
		errors.Is(err, ErrLockBusy)
}
