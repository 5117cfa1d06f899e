package memory

import (
	"context"
	"errors"
	"testing"

	"quizzer-session/internal/domain"
)

func TestContextStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewContextStore()

	sctx := domain.SessionContext{SessionID: "s1", Code: 4321, SessionResultID: "r1", UserID: "u1", IsHost: true}
	if err := store.Save(ctx, sctx); err != nil {
		t.Fatalf("save: %v", err)
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
	if _, err := store.Load(ctx, "u1"); !errors.Is(err, domain.ErrIdentityMissing) {
		t.Fatalf("expected ErrIdentityMissing after clear, got %v", err)
	}
}

func TestLoadUnknownUserRequiresRejoin(t *testing.T) {
	store := NewContextStore()
	if _, err := store.Load(context.Background(), "ghost"); !errors.Is(err, domain.ErrIdentityMissing) {
		t.Fatalf("expected ErrIdentityMissing, got %v", err)
	}
}
