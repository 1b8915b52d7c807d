package entry

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newConv(chatID int64, kind Kind, createdAt time.Time) *Conversation {
	return &Conversation{
		ChatID:    chatID,
		Kind:      kind,
		Fields:    make(map[string]string),
		CreatedAt: createdAt,
	}
}

func TestStoreCreateConflict(t *testing.T) {
	s := NewStore()
	now := time.Now()

	if err := s.Create(1, newConv(1, KindIncome, now)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := s.Create(1, newConv(1, KindExpense, now)); !errors.Is(err, ErrConflict) {
		t.Fatalf("second create: got %v, want ErrConflict", err)
	}

	// The original conversation must be untouched.
	conv, ok := s.Get(1)
	if !ok || conv.Kind != KindIncome {
		t.Fatalf("existing conversation replaced: %+v, ok=%v", conv, ok)
	}
}

func TestStoreUpdateMissing(t *testing.T) {
	s := NewStore()
	err := s.Update(99, func(conv *Conversation) (bool, error) {
		t.Fatal("mutator must not run without state")
		return false, nil
	})
	if !errors.Is(err, ErrNoActiveConversation) {
		t.Fatalf("got %v, want ErrNoActiveConversation", err)
	}
}

func TestStoreUpdateRemove(t *testing.T) {
	s := NewStore()
	if err := s.Create(1, newConv(1, KindIncome, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.Update(1, func(conv *Conversation) (bool, error) {
		return true, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok := s.Get(1); ok {
		t.Fatal("conversation should be removed")
	}
	if s.Len() != 0 {
		t.Fatalf("len = %d, want 0", s.Len())
	}
}

func TestStoreRemoveIdempotent(t *testing.T) {
	s := NewStore()
	s.Remove(5)
	if err := s.Create(5, newConv(5, KindSaving, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	s.Remove(5)
	s.Remove(5)
	if s.Len() != 0 {
		t.Fatalf("len = %d, want 0", s.Len())
	}
}

func TestStoreGetSnapshot(t *testing.T) {
	s := NewStore()
	if err := s.Create(1, newConv(1, KindIncome, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, ok := s.Get(1)
	if !ok {
		t.Fatal("expected conversation")
	}
	snap.Fields["category"] = "Salary"

	live, _ := s.Get(1)
	if _, tainted := live.Fields["category"]; tainted {
		t.Fatal("Get must return a copy, not the live map")
	}
}

func TestStoreSerializesPerChat(t *testing.T) {
	s := NewStore()
	if err := s.Create(1, newConv(1, KindIncome, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 16
	const iterations = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				_ = s.Update(1, func(conv *Conversation) (bool, error) {
					conv.StepIndex++
					return false, nil
				})
			}
		}()
	}
	wg.Wait()

	conv, ok := s.Get(1)
	if !ok {
		t.Fatal("conversation lost")
	}
	if conv.StepIndex != workers*iterations {
		t.Fatalf("StepIndex = %d, want %d (lost updates)", conv.StepIndex, workers*iterations)
	}
}

func TestStoreExpire(t *testing.T) {
	s := NewStore()
	old := time.Now().Add(-time.Hour)
	fresh := time.Now()

	if err := s.Create(1, newConv(1, KindIncome, old)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(2, newConv(2, KindExpense, fresh)); err != nil {
		t.Fatalf("create: %v", err)
	}

	cutoff := time.Now().Add(-30 * time.Minute)
	if n := s.Expire(cutoff); n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	if _, ok := s.Get(1); ok {
		t.Fatal("stale conversation should be gone")
	}
	if _, ok := s.Get(2); !ok {
		t.Fatal("fresh conversation should survive")
	}

	if n := s.Expire(cutoff); n != 0 {
		t.Fatalf("second expire = %d, want 0", n)
	}
}
