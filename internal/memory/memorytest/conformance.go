package memorytest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/sori-ai/sori/internal/memory"
	"github.com/sori-ai/sori/pkg/message"
)

// RunHistoryStoreTests checks the HistoryStore contract against a fresh
// store returned by newStore for every subtest.
func RunHistoryStoreTests(t *testing.T, newStore func(t *testing.T) memory.HistoryStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown session is empty", func(t *testing.T) {
		s := newStore(t)
		turns, err := s.ReadAll(ctx, "nobody")
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if len(turns) != 0 {
			t.Fatalf("turns = %v, want empty", turns)
		}
	})

	t.Run("append then read in order", func(t *testing.T) {
		s := newStore(t)
		want := []struct {
			role    message.Role
			content string
		}{
			{message.RoleHuman, "hello"},
			{message.RoleAssistant, "hi there"},
			{message.RoleHuman, "how are you? 😊"},
		}
		var last int64
		for _, w := range want {
			turn, err := s.Append(ctx, "u1", w.role, w.content)
			if err != nil {
				t.Fatalf("Append: %v", err)
			}
			if turn.Sequence <= last {
				t.Fatalf("sequence %d not greater than %d", turn.Sequence, last)
			}
			last = turn.Sequence
		}

		got, err := s.ReadAll(ctx, "u1")
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("got %d turns, want %d", len(got), len(want))
		}
		for i, w := range want {
			if got[i].Role != w.role || got[i].Content != w.content || got[i].SessionID != "u1" {
				t.Errorf("turn %d = %+v, want %s:%q", i, got[i], w.role, w.content)
			}
		}
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Append(ctx, "a", message.RoleHuman, "for a"); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if _, err := s.Append(ctx, "b", message.RoleHuman, "for b"); err != nil {
			t.Fatalf("Append: %v", err)
		}
		got, err := s.ReadAll(ctx, "a")
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if len(got) != 1 || got[0].Content != "for a" {
			t.Fatalf("session a = %+v", got)
		}
	})

	t.Run("empty session id rejected", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Append(ctx, "", message.RoleHuman, "x"); err == nil {
			t.Fatal("expected error for empty session id")
		}
	})

	t.Run("concurrent appends keep unique sequences", func(t *testing.T) {
		s := newStore(t)
		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Append(ctx, "c", message.RoleHuman, fmt.Sprintf("m%d", i)); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("Append: %v", err)
		}

		got, err := s.ReadAll(ctx, "c")
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if len(got) != n {
			t.Fatalf("got %d turns, want %d", len(got), n)
		}
		seqs := make([]int64, len(got))
		for i, turn := range got {
			seqs[i] = turn.Sequence
		}
		if !slices.IsSorted(seqs) || len(slices.Compact(slices.Clone(seqs))) != n {
			t.Fatalf("sequences not strictly increasing: %v", seqs)
		}
	})
}

// RunProfileStoreTests checks the ProfileStore contract.
func RunProfileStoreTests(t *testing.T, newStore func(t *testing.T) memory.ProfileStore) {
	t.Helper()
	ctx := context.Background()
	age := func(v int) *int { return &v }

	t.Run("missing profile", func(t *testing.T) {
		s := newStore(t)
		_, found, err := s.Get(ctx, "nobody")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if found {
			t.Fatal("found = true for unknown session")
		}
	})

	t.Run("upsert then overwrite", func(t *testing.T) {
		s := newStore(t)
		if err := s.Upsert(ctx, message.NewProfile("u1", age(72), []string{"gardening"})); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		p, found, err := s.Get(ctx, "u1")
		if err != nil || !found {
			t.Fatalf("Get = %v, %v", found, err)
		}
		if p.Age == nil || *p.Age != 72 || !slices.Equal(p.Interests, []string{"gardening"}) {
			t.Fatalf("profile = %+v", p)
		}

		if err := s.Upsert(ctx, message.NewProfile("u1", age(73), []string{"chess", "tea"})); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		p, _, err = s.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if *p.Age != 73 || !slices.Equal(p.Interests, []string{"chess", "tea"}) {
			t.Fatalf("profile after overwrite = %+v", p)
		}
	})

	t.Run("unknown fields stay unknown", func(t *testing.T) {
		s := newStore(t)
		if err := s.Upsert(ctx, message.NewProfile("u2", nil, nil)); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		p, found, err := s.Get(ctx, "u2")
		if err != nil || !found {
			t.Fatalf("Get = %v, %v", found, err)
		}
		if p.HasAge() || p.HasInterests() {
			t.Fatalf("profile = %+v, want unknown fields", p)
		}
	})

	t.Run("empty session id rejected", func(t *testing.T) {
		s := newStore(t)
		if err := s.Upsert(ctx, message.Profile{}); err == nil {
			t.Fatal("expected error for empty session id")
		}
	})
}
