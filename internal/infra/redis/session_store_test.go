package redis

import (
	"testing"
	"time"

	"alpharia-assessment/internal/app"
	"alpharia-assessment/internal/itembank"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	session, err := app.NewTestSession(itembank.Default(), app.SessionOptions{ID: "s-1", StudentID: "kim"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	store.Put(session)
	if !mr.Exists("alpharia:session:s-1") {
		t.Fatalf("expected redis key to be set")
	}
	if got, _ := mr.Get("alpharia:session:s-1"); got != "kim" {
		t.Fatalf("expected student id in liveness key, got %q", got)
	}
	if _, ok := store.Get("s-1"); !ok {
		t.Fatalf("expected session present")
	}

	store.Delete("s-1")
	if mr.Exists("alpharia:session:s-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("s-1"); ok {
		t.Fatalf("expected session removed")
	}
}
