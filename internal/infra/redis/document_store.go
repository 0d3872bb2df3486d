package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"alpharia-assessment/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DocumentStore keeps each collection in one hash:
// HSET doc:{collection} {id} {document json}
type DocumentStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewDocumentStore(client *redis.Client) *DocumentStore {
	return &DocumentStore{client: client, clock: time.Now}
}

func (s *DocumentStore) GetDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	raw, err := s.client.HGet(ctx, s.key(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("redis hget: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *DocumentStore) SaveDocument(ctx context.Context, collection, id string, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("%s/%s: invalid json", collection, id)
	}
	raw, err := json.Marshal(domain.Document{Collection: collection, ID: id, Data: data, UpdatedAt: s.clock().UTC()})
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key(collection), id, raw).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// QueryDocuments scans the collection hash and filters client-side.
func (s *DocumentStore) QueryDocuments(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	all, err := s.client.HGetAll(ctx, s.key(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out := make([]domain.Document, 0, len(all))
	for id, raw := range all {
		var doc domain.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		if domain.MatchAll(doc.Data, filters) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *DocumentStore) DeleteDocument(ctx context.Context, collection, id string) error {
	n, err := s.client.HDel(ctx, s.key(collection), id).Result()
	if err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	return nil
}

func (s *DocumentStore) key(collection string) string {
	return "doc:" + collection
}
