package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"alpharia-assessment/internal/domain"
)

// DocumentStore keeps documents in process memory. Contents are lost on restart.
type DocumentStore struct {
	clock func() time.Time

	mu          sync.RWMutex
	collections map[string]map[string]domain.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		clock:       time.Now,
		collections: make(map[string]map[string]domain.Document),
	}
}

func (s *DocumentStore) GetDocument(_ context.Context, collection, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	return doc, nil
}

func (s *DocumentStore) SaveDocument(_ context.Context, collection, id string, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("%s/%s: invalid json", collection, id)
	}
	buf := make(json.RawMessage, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]domain.Document)
		s.collections[collection] = coll
	}
	coll[id] = domain.Document{Collection: collection, ID: id, Data: buf, UpdatedAt: s.clock()}
	return nil
}

// QueryDocuments returns matching documents ordered by id.
func (s *DocumentStore) QueryDocuments(_ context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0)
	for _, doc := range s.collections[collection] {
		if domain.MatchAll(doc.Data, filters) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *DocumentStore) DeleteDocument(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	delete(s.collections[collection], id)
	return nil
}
