package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"flashline/internal/core/domain"
	"flashline/internal/port"
)

// In-memory fakes for the store, queue and locker ports, mutex-guarded the
// same way the real backends are atomic.

type lineEntry struct {
	email string
	score int64
}

type fakeCache struct {
	mu       sync.Mutex
	lines    map[string][]lineEntry
	stock    map[string]int64
	hasStock map[string]bool
	holds    map[string]time.Time
	consumed map[string]time.Time
	claims   map[string]time.Time
	metas    map[string]domain.SaleMeta
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		lines:    make(map[string][]lineEntry),
		stock:    make(map[string]int64),
		hasStock: make(map[string]bool),
		holds:    make(map[string]time.Time),
		consumed: make(map[string]time.Time),
		claims:   make(map[string]time.Time),
		metas:    make(map[string]domain.SaleMeta),
	}
}

func buyerKey(saleID, email string) string { return saleID + "|" + email }

func (f *fakeCache) LineAdd(_ context.Context, saleID, email string, enqueuedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.lines[saleID] {
		if e.email == email {
			return false, nil
		}
	}
	f.lines[saleID] = append(f.lines[saleID], lineEntry{email: email, score: enqueuedAt.UnixMilli()})
	sort.SliceStable(f.lines[saleID], func(i, j int) bool {
		a, b := f.lines[saleID][i], f.lines[saleID][j]
		if a.score != b.score {
			return a.score < b.score
		}
		return a.email < b.email
	})
	return true, nil
}

func (f *fakeCache) LineRank(_ context.Context, saleID, email string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.lines[saleID] {
		if e.email == email {
			return int64(i), nil
		}
	}
	return -1, nil
}

func (f *fakeCache) LineSize(_ context.Context, saleID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lines[saleID])), nil
}

func (f *fakeCache) LineRemove(_ context.Context, saleID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(saleID, email)
	return nil
}

func (f *fakeCache) removeLocked(saleID, email string) {
	entries := f.lines[saleID]
	for i, e := range entries {
		if e.email == email {
			f.lines[saleID] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

func (f *fakeCache) LinePopMin(_ context.Context, saleID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.lines[saleID]
	if len(entries) == 0 {
		return "", false, nil
	}
	email := entries[0].email
	f.lines[saleID] = entries[1:]
	return email, true, nil
}

func (f *fakeCache) InitStock(_ context.Context, saleID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasStock[saleID] {
		f.stock[saleID] = int64(quantity)
		f.hasStock[saleID] = true
	}
	return nil
}

func (f *fakeCache) Stock(_ context.Context, saleID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[saleID], nil
}

func (f *fakeCache) IncrStock(_ context.Context, saleID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[saleID]++
	f.hasStock[saleID] = true
	return f.stock[saleID], nil
}

func (f *fakeCache) GrantHold(_ context.Context, saleID, email string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[saleID]--
	f.holds[buyerKey(saleID, email)] = time.Now().Add(ttl)
	f.removeLocked(saleID, email)
	return nil
}

func (f *fakeCache) HoldTTL(_ context.Context, saleID, email string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	expiry, ok := f.holds[buyerKey(saleID, email)]
	if !ok {
		return 0, nil
	}
	ttl := time.Until(expiry)
	if ttl <= 0 {
		delete(f.holds, buyerKey(saleID, email))
		return 0, nil
	}
	return ttl, nil
}

func (f *fakeCache) Consumed(_ context.Context, saleID, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	expiry, ok := f.consumed[buyerKey(saleID, email)]
	return ok && time.Now().Before(expiry), nil
}

func (f *fakeCache) AcquireClaim(_ context.Context, saleID, email string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := buyerKey(saleID, email)
	if expiry, ok := f.claims[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	f.claims[key] = time.Now().Add(ttl)
	return true, nil
}

func (f *fakeCache) ClaimTTL(_ context.Context, saleID, email string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	expiry, ok := f.claims[buyerKey(saleID, email)]
	if !ok {
		return 0, nil
	}
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (f *fakeCache) ReleaseClaim(_ context.Context, saleID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.claims, buyerKey(saleID, email))
	return nil
}

func (f *fakeCache) FinalizePurchase(_ context.Context, saleID, email string, consumedTTL time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := buyerKey(saleID, email)
	f.consumed[key] = time.Now().Add(consumedTTL)
	delete(f.holds, key)
	f.removeLocked(saleID, email)
	delete(f.claims, key)
	return nil
}

func (f *fakeCache) SaleMeta(_ context.Context, saleID string) (domain.SaleMeta, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.metas[saleID]
	return meta, ok, nil
}

func (f *fakeCache) SetSaleMeta(_ context.Context, meta domain.SaleMeta, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metas[meta.SaleID] = meta
	return nil
}

// helpers for test setup

func (f *fakeCache) setHold(saleID, email string, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holds[buyerKey(saleID, email)] = time.Now().Add(ttl)
}

func (f *fakeCache) setConsumed(saleID, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumed[buyerKey(saleID, email)] = time.Now().Add(time.Minute)
}

func (f *fakeCache) holdActive(saleID, email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	expiry, ok := f.holds[buyerKey(saleID, email)]
	return ok && time.Now().Before(expiry)
}

type fakeDB struct {
	mu         sync.Mutex
	metas      map[string]domain.SaleMeta
	qty        map[string]int
	orders     map[string]domain.Order
	failCreate error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		metas:  make(map[string]domain.SaleMeta),
		qty:    make(map[string]int),
		orders: make(map[string]domain.Order),
	}
}

func (f *fakeDB) addCampaign(meta domain.SaleMeta, currentQty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metas[meta.SaleID] = meta
	f.qty[meta.SaleID] = currentQty
}

func (f *fakeDB) GetSaleMeta(_ context.Context, saleID string) (domain.SaleMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.metas[saleID]
	if !ok {
		return domain.SaleMeta{}, domain.ErrSaleNotFound
	}
	return meta, nil
}

func (f *fakeDB) DecrementQuantity(_ context.Context, saleID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.metas[saleID]
	if !ok || meta.Status != domain.CampaignStatusActive ||
		now.Before(meta.StartsAt) || !now.Before(meta.EndsAt) || f.qty[saleID] <= 0 {
		return false, nil
	}
	f.qty[saleID]--
	return true, nil
}

func (f *fakeDB) IncrementQuantity(_ context.Context, saleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qty[saleID]++
	return nil
}

func (f *fakeDB) FindOrder(_ context.Context, saleID, email string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order, ok := f.orders[buyerKey(saleID, email)]; ok {
		return &order, nil
	}
	return nil, nil
}

func (f *fakeDB) FindPaidOrder(ctx context.Context, saleID, email string) (*domain.Order, error) {
	return f.FindOrder(ctx, saleID, email)
}

func (f *fakeDB) CreateOrder(_ context.Context, order domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	key := buyerKey(order.CampaignID, order.BuyerEmail)
	if _, ok := f.orders[key]; ok {
		return domain.ErrOrderExists
	}
	f.orders[key] = order
	return nil
}

func (f *fakeDB) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type scheduledRelease struct {
	task  port.ReleaseTask
	delay time.Duration
}

type fakeQueue struct {
	mu           sync.Mutex
	reserves     []port.ReserveTask
	releases     []scheduledRelease
	failEnqueue  error
	failSchedule error
}

func (f *fakeQueue) EnqueueReserve(_ context.Context, task port.ReserveTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEnqueue != nil {
		return f.failEnqueue
	}
	f.reserves = append(f.reserves, task)
	return nil
}

func (f *fakeQueue) ScheduleRelease(_ context.Context, task port.ReleaseTask, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSchedule != nil {
		return f.failSchedule
	}
	f.releases = append(f.releases, scheduledRelease{task: task, delay: delay})
	return nil
}

func (f *fakeQueue) reserveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reserves)
}

func (f *fakeQueue) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.releases)
}

type fakeLocker struct {
	mu   sync.Mutex
	busy bool
}

func (f *fakeLocker) WithLock(ctx context.Context, _ string, _ time.Duration, fn func(ctx context.Context) error) error {
	if f.busy {
		return domain.ErrLockBusy
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}
