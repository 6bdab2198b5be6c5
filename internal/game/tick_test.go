package game

import (
	"testing"
	"time"
)

func firstChooser(int) int { return 0 }

func baseState(cash float64, lastTick time.Time, rate float64) State {
	st := DefaultState(lastTick)
	st.Cash = cash
	st.Customer.RatePerMinute = rate
	return st
}

func TestCustomerTickEmptyShelves(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := last.Add(time.Minute)
	st := baseState(50, last, 10)

	out := CustomerTick(st, now, firstChooser)

	if out.Cash != 50 {
		t.Fatalf("cash = %v, want 50", out.Cash)
	}
	if out.Customer.Carry != 0 {
		t.Fatalf("carry = %v, want 0", out.Customer.Carry)
	}
	if out.Stats.Revenue != 0 {
		t.Fatalf("revenue = %v, want 0", out.Stats.Revenue)
	}
	if out.Customer.LastTickAt != FormatInstant(now) {
		t.Fatalf("lastTickAt = %q, want %q", out.Customer.LastTickAt, FormatInstant(now))
	}
}

func TestCustomerTickSellsUntilSoldOut(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := last.Add(time.Minute)
	st := baseState(40, last, 10)
	st.Inventory["apple"] = 5

	out := CustomerTick(st, now, firstChooser)

	if out.Inventory["apple"] != 0 {
		t.Fatalf("apple inventory = %d, want 0", out.Inventory["apple"])
	}
	if out.Stats.Sold["apple"] != 5 {
		t.Fatalf("apple sold = %d, want 5", out.Stats.Sold["apple"])
	}
	if out.Cash != 55 {
		t.Fatalf("cash = %v, want 55", out.Cash)
	}
	if out.Stats.Revenue != 15 {
		t.Fatalf("revenue = %v, want 15", out.Stats.Revenue)
	}
}

func TestCustomerTickFractionalCarry(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := last.Add(30 * time.Second)
	st := baseState(100, last, 1) // 0.5 expected arrivals

	out := CustomerTick(st, now, firstChooser)
	if out.Customer.Carry < 0.499 || out.Customer.Carry > 0.501 {
		t.Fatalf("carry = %v, want ~0.5", out.Customer.Carry)
	}

	// The second half-minute tips the carry over into one arrival.
	out.Inventory["bread"] = 1
	later := now.Add(30 * time.Second)
	out2 := CustomerTick(out, later, firstChooser)
	if out2.Stats.Sold["bread"] != 1 {
		t.Fatalf("bread sold = %d, want 1", out2.Stats.Sold["bread"])
	}
	if out2.Customer.Carry < 0 || out2.Customer.Carry >= 1 {
		t.Fatalf("carry = %v, want in [0,1)", out2.Customer.Carry)
	}
}

func TestCustomerTickOfflineCap(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := baseState(100, last, 2)
	st.Inventory["apple"] = 1000000
	st.Inventory["bread"] = 1000000

	capped := CustomerTick(st, last.Add(480*time.Minute), firstChooser)
	weekLater := CustomerTick(st, last.Add(7*24*time.Hour), firstChooser)

	if capped.Stats.Revenue != weekLater.Stats.Revenue {
		t.Fatalf("revenue diverged: %v vs %v", capped.Stats.Revenue, weekLater.Stats.Revenue)
	}
	if capped.Stats.Sold["apple"] != weekLater.Stats.Sold["apple"] {
		t.Fatalf("apple sold diverged: %d vs %d", capped.Stats.Sold["apple"], weekLater.Stats.Sold["apple"])
	}
	if capped.Customer.Carry != weekLater.Customer.Carry {
		t.Fatalf("carry diverged: %v vs %v", capped.Customer.Carry, weekLater.Customer.Carry)
	}
}

func TestCustomerTickUnparseableLastTick(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := baseState(100, now, 10)
	st.Customer.LastTickAt = "not-a-timestamp"
	st.Inventory["apple"] = 5

	out := CustomerTick(st, now, firstChooser)

	if out.Stats.Sold["apple"] != 0 {
		t.Fatalf("apple sold = %d, want 0 (no elapsed time)", out.Stats.Sold["apple"])
	}
	if out.Customer.LastTickAt != FormatInstant(now) {
		t.Fatalf("lastTickAt not reset: %q", out.Customer.LastTickAt)
	}
}

func TestCustomerTickClockSkew(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := baseState(100, last, 10)
	st.Inventory["apple"] = 5

	// now earlier than lastTickAt: no arrivals, clock snaps forward to now.
	now := last.Add(-time.Hour)
	out := CustomerTick(st, now, firstChooser)
	if out.Stats.Sold["apple"] != 0 {
		t.Fatalf("apple sold = %d, want 0", out.Stats.Sold["apple"])
	}
	if out.Customer.LastTickAt != FormatInstant(now) {
		t.Fatalf("lastTickAt = %q, want %q", out.Customer.LastTickAt, FormatInstant(now))
	}
}

func TestCustomerTickConservation(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := baseState(100, last, 7)
	st.Inventory["apple"] = 13
	st.Inventory["bread"] = 4
	st.Stats.Sold["apple"] = 2

	choose := func(n int) int { return n - 1 }
	out := CustomerTick(st, last.Add(3*time.Minute), choose)

	for _, id := range CatalogSKUs() {
		before := st.Inventory[id] + st.Stats.Sold[id]
		after := out.Inventory[id] + out.Stats.Sold[id]
		if before != after {
			t.Fatalf("%s: inventory+sold changed from %d to %d", id, before, after)
		}
		if out.Inventory[id] < 0 {
			t.Fatalf("%s: inventory went negative: %d", id, out.Inventory[id])
		}
	}
}

func TestCustomerTickDoesNotMutateInput(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := baseState(100, last, 10)
	st.Inventory["apple"] = 5

	_ = CustomerTick(st, last.Add(time.Minute), firstChooser)

	if st.Inventory["apple"] != 5 {
		t.Fatalf("input inventory mutated: %d", st.Inventory["apple"])
	}
	if st.Customer.LastTickAt != FormatInstant(last) {
		t.Fatalf("input lastTickAt mutated: %q", st.Customer.LastTickAt)
	}
}
