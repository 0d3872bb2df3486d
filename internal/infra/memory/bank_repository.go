package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"alpharia-assessment/internal/app"
	"alpharia-assessment/internal/itembank"
	"golang.org/x/sync/singleflight"
)

// BankRepository caches item banks with TTL to avoid repeated store hits.
type BankRepository struct {
	loader app.BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	bank      itembank.Bank
	expiresAt time.Time
}

func NewBankRepository(loader app.BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, id string) (itembank.Bank, error) {
	if bank, ok := r.lookup(id); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		if bank, ok := r.lookup(id); ok {
			return bank, nil
		}

		bank, err := r.loader.LoadBank(ctx, id)
		if err != nil {
			return itembank.Bank{}, err
		}

		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[id] = cachedBank{bank: bank, expiresAt: expiresAt}
		r.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return itembank.Bank{}, err
	}
	return result.(itembank.Bank), nil
}

// InvalidateBank drops a cached bank so the next read reloads it.
func (r *BankRepository) InvalidateBank(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
	return nil
}

func (r *BankRepository) lookup(id string) (itembank.Bank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[id]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return itembank.Bank{}, false
	}
	return entry.bank, true
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
