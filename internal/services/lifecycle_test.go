package services

import (
	"context"
	"testing"
	"time"
)

type fakeLifecycleStore struct {
	cutoff time.Time
	swept  int64
	calls  int
}

func (f *fakeLifecycleStore) MarkInactiveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	f.calls++
	return f.swept, nil
}

func TestLifecycleSweeper_RunOnceUsesInactivityCutoff(t *testing.T) {
	store := &fakeLifecycleStore{swept: 3}
	sweeper := NewLifecycleSweeper(store, time.Hour)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sweeper.now = func() time.Time { return now }

	swept, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if swept != 3 {
		t.Errorf("expected 3 swept, got %d", swept)
	}

	want := now.Add(-InactiveAfter)
	if !store.cutoff.Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, store.cutoff)
	}
}

func TestLifecycleSweeper_StopIsIdempotent(t *testing.T) {
	sweeper := NewLifecycleSweeper(&fakeLifecycleStore{}, time.Hour)
	sweeper.Stop()
	sweeper.Stop()
}
