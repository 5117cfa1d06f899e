package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"quizzer-session/internal/domain"
)

func TestContextStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewContextStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), time.Minute)

	sctx := domain.SessionContext{SessionID: "s1", Code: 4321, SessionResultID: "r1", UserID: "u1", IsHost: true}
	if err := store.Save(ctx, sctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:ctx:u1") {
		t.Fatalf("expected redis key for the stored identity")
	}

	got, err := store.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != sctx {
		t.Fatalf("expected %+v, got %+v", sctx, got)
	}

	if err := store.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("quiz:ctx:u1") {
		t.Fatalf("expected redis key removed")
	}
}

func TestExpiredIdentityRequiresRejoin(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewContextStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), time.Minute)

	sctx := domain.SessionContext{SessionID: "s1", UserID: "u1"}
	if err := store.Save(ctx, sctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Load(ctx, "u1"); !errors.Is(err, domain.ErrIdentityMissing) {
		t.Fatalf("expected ErrIdentityMissing after TTL expiry, got %v", err)
	}
}
