package auth

import (
	"testing"
	"time"
)

func TestStateIsOneShot(t *testing.T) {
	states := NewStateStore()

	state, err := states.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !states.Consume(state) {
		t.Fatal("first consume failed")
	}
	if states.Consume(state) {
		t.Fatal("second consume succeeded")
	}
}

func TestStateUnknownToken(t *testing.T) {
	states := NewStateStore()
	if states.Consume("never-issued") {
		t.Fatal("unknown state accepted")
	}
}

func TestStateExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	states := NewStateStore().WithClock(func() time.Time { return now })

	state, err := states.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(6 * time.Minute)
	if states.Consume(state) {
		t.Fatal("expired state accepted")
	}
}

func TestStatesAreUnique(t *testing.T) {
	states := NewStateStore()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		state, err := states.Issue()
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if seen[state] {
			t.Fatalf("duplicate state %q", state)
		}
		seen[state] = true
	}
}
