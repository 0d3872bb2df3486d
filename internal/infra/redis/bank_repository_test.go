package redis

import (
	"context"
	"testing"
	"time"

	"alpharia-assessment/internal/app"
	"alpharia-assessment/internal/itembank"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBankRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{BankLoader: app.NewDocumentBankLoader(nil)}
	repo := NewBankRepository(client, loader, time.Minute)

	bank, err := repo.GetBank(context.Background(), itembank.DefaultBankID)
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("alpharia:bank:default") {
		t.Fatalf("expected bank cached in redis")
	}
	if ttl := mr.TTL("alpharia:bank:default"); ttl < time.Minute || ttl > 66*time.Second {
		t.Fatalf("expected ttl within jitter window, got %s", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetBank(context.Background(), itembank.DefaultBankID)
	if err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.TotalItems() != bank.TotalItems() {
		t.Fatalf("cached bank differs: %d vs %d items", cached.TotalItems(), bank.TotalItems())
	}

	if err := repo.InvalidateBank(context.Background(), itembank.DefaultBankID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("alpharia:bank:default") {
		t.Fatalf("expected cache key removed")
	}
}

type countingLoader struct {
	app.BankLoader
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context, id string) (itembank.Bank, error) {
	l.calls++
	return l.BankLoader.LoadBank(ctx, id)
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
