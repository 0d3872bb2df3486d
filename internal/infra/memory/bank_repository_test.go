package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"alpharia-assessment/internal/app"
	"alpharia-assessment/internal/domain"
	"alpharia-assessment/internal/itembank"
)

func TestBankRepositoryCaches(t *testing.T) {
	loader := &countingLoader{BankLoader: app.NewDocumentBankLoader(nil)}
	repo := NewBankRepository(loader, time.Minute)

	if _, err := repo.GetBank(context.Background(), itembank.DefaultBankID); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	bank, err := repo.GetBank(context.Background(), itembank.DefaultBankID)
	if err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
	if len(bank.Sections) != 17 {
		t.Fatalf("expected 17 sections, got %d", len(bank.Sections))
	}

	if err := repo.InvalidateBank(context.Background(), itembank.DefaultBankID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := repo.GetBank(context.Background(), itembank.DefaultBankID); err != nil {
		t.Fatalf("get bank 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestBankRepositoryExpires(t *testing.T) {
	loader := &countingLoader{BankLoader: app.NewDocumentBankLoader(nil)}
	repo := NewBankRepository(loader, time.Minute)
	now := time.Now()
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetBank(context.Background(), itembank.DefaultBankID)
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetBank(context.Background(), itembank.DefaultBankID)
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestBankRepositoryMissing(t *testing.T) {
	repo := NewBankRepository(app.NewDocumentBankLoader(NewDocumentStore()), time.Minute)
	_, err := repo.GetBank(context.Background(), "nope")
	if !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected bank not found, got %v", err)
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
