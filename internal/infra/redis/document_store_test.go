package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"alpharia-assessment/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestDocumentStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewDocumentStore(newClient(mr))

	if err := store.SaveDocument(ctx, "attempts", "a1", json.RawMessage(`{"studentId":"kim","timedOut":true}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveDocument(ctx, "attempts", "a2", json.RawMessage(`{"studentId":"lee","timedOut":false}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, err := mr.HKeys("doc:attempts"); err != nil || len(got) != 2 {
		t.Fatalf("expected 2 hash fields, got %v (%v)", got, err)
	}

	doc, err := store.GetDocument(ctx, "attempts", "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var data map[string]any
	if err := json.Unmarshal(doc.Data, &data); err != nil || data["studentId"] != "kim" {
		t.Fatalf("unexpected data %s (%v)", doc.Data, err)
	}

	docs, err := store.QueryDocuments(ctx, "attempts", domain.Filter{Field: "timedOut", Value: true})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a1" {
		t.Fatalf("expected a1 only, got %+v", docs)
	}

	if err := store.DeleteDocument(ctx, "attempts", "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetDocument(ctx, "attempts", "a1"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.DeleteDocument(ctx, "attempts", "a1"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found on repeat delete, got %v", err)
	}
}
