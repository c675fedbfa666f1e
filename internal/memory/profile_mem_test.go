package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sori-ai/sori/internal/memory"
	"github.com/sori-ai/sori/pkg/message"
)

func TestInMemoryProfileStore_UpsertOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryProfileStore()

	if _, found, err := store.Get(ctx, "u1"); err != nil || found {
		t.Fatalf("Get on empty store: found=%v err=%v", found, err)
	}

	age := 72
	if err := store.Upsert(ctx, message.NewProfile("u1", &age, []string{"gardening", "walking"})); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, message.NewProfile("u1", nil, []string{"chess"})); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	p, found, err := store.Get(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if p.HasAge() {
		t.Errorf("upsert must overwrite, not merge: age = %d", *p.Age)
	}
	if len(p.Interests) != 1 || p.Interests[0] != "chess" {
		t.Errorf("Interests = %v, want [chess]", p.Interests)
	}
}

func TestInMemoryProfileStore_Isolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryProfileStore()

	interests := []string{"music"}
	if err := store.Upsert(ctx, message.Profile{SessionID: "u1", Interests: interests}); err != nil {
		t.Fatal(err)
	}
	interests[0] = "mutated"

	p, _, _ := store.Get(ctx, "u1")
	if p.Interests[0] != "music" {
		t.Errorf("store shares caller slice: %v", p.Interests)
	}
	p.Interests[0] = "again"

	p2, _, _ := store.Get(ctx, "u1")
	if p2.Interests[0] != "music" {
		t.Errorf("store shares returned slice: %v", p2.Interests)
	}
}

func TestInMemoryProfileStore_EmptySession(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryProfileStore()
	err := store.Upsert(context.Background(), message.Profile{})
	if !errors.Is(err, memory.ErrEmptySession) {
		t.Errorf("err = %v, want ErrEmptySession", err)
	}
}

func TestInMemoryBackend(t *testing.T) {
	t.Parallel()

	var b memory.Backend = memory.NewInMemoryBackend()
	if b.History() == nil || b.Profiles() == nil {
		t.Fatal("backend returned nil store")
	}
}
