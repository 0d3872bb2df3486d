package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"alpharia-assessment/internal/app"
	"alpharia-assessment/internal/itembank"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankRepository caches item banks in Redis and falls back to a loader on cache miss.
// Banks are stored as: SET alpharia:bank:{bankID} {bank json} EX ttl
type BankRepository struct {
	client *redis.Client
	loader app.BankLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBankRepository(client *redis.Client, loader app.BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, id string) (itembank.Bank, error) {
	if bank, ok := r.cached(ctx, id); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := r.cached(ctx, id); ok {
			return bank, nil
		}

		bank, err := r.loader.LoadBank(ctx, id)
		if err != nil {
			return itembank.Bank{}, err
		}

		if raw, err := json.Marshal(bank); err == nil {
			_ = r.client.Set(ctx, r.key(id), raw, r.ttlWithJitter()).Err()
		}
		return bank, nil
	})
	if err != nil {
		return itembank.Bank{}, err
	}
	return result.(itembank.Bank), nil
}

// InvalidateBank removes the cached copy of a bank.
func (r *BankRepository) InvalidateBank(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

func (r *BankRepository) cached(ctx context.Context, id string) (itembank.Bank, bool) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil { // redis.Nil on miss
		return itembank.Bank{}, false
	}
	var bank itembank.Bank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return itembank.Bank{}, false
	}
	return bank, true
}

func (r *BankRepository) key(id string) string {
	return "alpharia:bank:" + id
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
