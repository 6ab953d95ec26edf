package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"flashline/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func cleanSale(ctx context.Context, client *redis.Client, saleID string) {
	keys, _ := client.Keys(ctx, "sale:"+saleID+":*").Result()
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func TestLine_AddRankPop(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	saleID := "line-test"
	cleanSale(ctx, client, saleID)

	base := time.Now()
	added, err := adapter.LineAdd(ctx, saleID, "a@x.com", base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !added {
		t.Error("expected first add to create an entry")
	}
	adapter.LineAdd(ctx, saleID, "b@x.com", base.Add(time.Second))

	// Re-adding with a later timestamp must not move the buyer back.
	added, _ = adapter.LineAdd(ctx, saleID, "a@x.com", base.Add(time.Hour))
	if added {
		t.Error("expected re-add to be a no-op")
	}
	rank, _ := adapter.LineRank(ctx, saleID, "a@x.com")
	if rank != 0 {
		t.Errorf("expected rank 0 after re-add, got %d", rank)
	}

	size, _ := adapter.LineSize(ctx, saleID)
	if size != 2 {
		t.Errorf("expected size 2, got %d", size)
	}

	email, ok, err := adapter.LinePopMin(ctx, saleID)
	if err != nil || !ok {
		t.Fatalf("pop failed: ok=%v err=%v", ok, err)
	}
	if email != "a@x.com" {
		t.Errorf("expected earliest buyer popped, got %s", email)
	}

	rank, _ = adapter.LineRank(ctx, saleID, "missing@x.com")
	if rank != -1 {
		t.Errorf("expected -1 for absent member, got %d", rank)
	}
}

func TestStock_InitIsSetOnce(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	saleID := "stock-test"
	cleanSale(ctx, client, saleID)

	adapter.InitStock(ctx, saleID, 10)
	adapter.InitStock(ctx, saleID, 999) // must be a no-op

	stock, err := adapter.Stock(ctx, saleID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock != 10 {
		t.Errorf("expected stock 10, got %d", stock)
	}

	restored, _ := adapter.IncrStock(ctx, saleID)
	if restored != 11 {
		t.Errorf("expected 11 after increment, got %d", restored)
	}
}

func TestStock_MissingReadsZero(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	cleanSale(ctx, client, "ghost")

	stock, err := adapter.Stock(ctx, "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock != 0 {
		t.Errorf("expected 0 for missing counter, got %d", stock)
	}
}

func TestGrantHold_Batch(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	saleID := "grant-test"
	cleanSale(ctx, client, saleID)

	adapter.InitStock(ctx, saleID, 3)
	adapter.LineAdd(ctx, saleID, "b@x.com", time.Now())

	if err := adapter.GrantHold(ctx, saleID, "b@x.com", 30*time.Second); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	stock, _ := adapter.Stock(ctx, saleID)
	if stock != 2 {
		t.Errorf("expected stock 2, got %d", stock)
	}
	ttl, _ := adapter.HoldTTL(ctx, saleID, "b@x.com")
	if ttl <= 0 || ttl > 30*time.Second {
		t.Errorf("expected hold ttl in (0, 30s], got %v", ttl)
	}
	rank, _ := adapter.LineRank(ctx, saleID, "b@x.com")
	if rank != -1 {
		t.Error("expected buyer removed from line")
	}
}

func TestHoldTTL_MissingIsZero(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	cleanSale(ctx, client, "hold-missing")

	ttl, err := adapter.HoldTTL(ctx, "hold-missing", "nobody@x.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl != 0 {
		t.Errorf("expected 0 for missing hold, got %v", ttl)
	}
}

func TestClaim_SetIfAbsent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	saleID := "claim-test"
	cleanSale(ctx, client, saleID)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := adapter.AcquireClaim(ctx, saleID, "b@x.com", 10*time.Second)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 claim winner, got %d", wins.Load())
	}

	adapter.ReleaseClaim(ctx, saleID, "b@x.com")
	won, _ := adapter.AcquireClaim(ctx, saleID, "b@x.com", 10*time.Second)
	if !won {
		t.Error("expected claim acquirable after release")
	}
}

func TestFinalizePurchase(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	saleID := "finalize-test"
	cleanSale(ctx, client, saleID)

	adapter.LineAdd(ctx, saleID, "b@x.com", time.Now())
	adapter.GrantHold(ctx, saleID, "b@x.com", time.Minute)
	adapter.AcquireClaim(ctx, saleID, "b@x.com", 10*time.Second)

	if err := adapter.FinalizePurchase(ctx, saleID, "b@x.com", 3*time.Minute); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	consumed, _ := adapter.Consumed(ctx, saleID, "b@x.com")
	if !consumed {
		t.Error("expected consumed marker")
	}
	ttl, _ := adapter.HoldTTL(ctx, saleID, "b@x.com")
	if ttl != 0 {
		t.Error("expected hold deleted")
	}
	rank, _ := adapter.LineRank(ctx, saleID, "b@x.com")
	if rank != -1 {
		t.Error("expected line membership removed")
	}
}

func TestSaleMeta_RoundTripAndCorruption(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	saleID := "meta-test"
	cleanSale(ctx, client, saleID)

	_, ok, err := adapter.SaleMeta(ctx, saleID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected miss for absent meta")
	}

	meta := domain.SaleMeta{
		SaleID:           saleID,
		Status:           domain.CampaignStatusActive,
		StartsAt:         time.Now().Add(-time.Hour).Truncate(time.Second),
		EndsAt:           time.Now().Add(time.Hour).Truncate(time.Second),
		StartingQuantity: 5,
	}
	if err := adapter.SetSaleMeta(ctx, meta, 30*time.Second); err != nil {
		t.Fatalf("set meta failed: %v", err)
	}

	got, ok, err := adapter.SaleMeta(ctx, saleID)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.Status != meta.Status || got.StartingQuantity != meta.StartingQuantity {
		t.Errorf("meta mismatch: %+v", got)
	}

	// Corrupt cached bytes must read as a miss, not an error.
	client.Set(ctx, "sale:"+saleID+":meta", "{not json", 30*time.Second)
	_, ok, err = adapter.SaleMeta(ctx, saleID)
	if err != nil {
		t.Fatalf("unexpected error on corrupt meta: %v", err)
	}
	if ok {
		t.Error("expected corrupt meta treated as a miss")
	}
}
