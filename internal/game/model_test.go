package game

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestDefaultState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := DefaultState(now)

	if st.Cash != DefaultCash {
		t.Fatalf("cash = %v, want %v", st.Cash, DefaultCash)
	}
	if st.Customer.RatePerMinute != DefaultRatePerMinute {
		t.Fatalf("rate = %v, want %v", st.Customer.RatePerMinute, DefaultRatePerMinute)
	}
	if st.Customer.LastTickAt != FormatInstant(now) {
		t.Fatalf("lastTickAt = %q", st.Customer.LastTickAt)
	}
	for _, id := range CatalogSKUs() {
		if st.Inventory[id] != 0 {
			t.Fatalf("%s inventory = %d, want 0", id, st.Inventory[id])
		}
		if st.Stats.Sold[id] != 0 {
			t.Fatalf("%s sold = %d, want 0", id, st.Stats.Sold[id])
		}
	}
}

func TestNormalizeRepairsLegacyDocument(t *testing.T) {
	// A save from before the customer and stats blocks existed.
	var st State
	if err := json.Unmarshal([]byte(`{"cash": 25}`), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	out := Normalize(st)

	if out.Cash != 25 {
		t.Fatalf("cash = %v, want 25", out.Cash)
	}
	if out.Customer.RatePerMinute != DefaultRatePerMinute {
		t.Fatalf("rate = %v, want default", out.Customer.RatePerMinute)
	}
	if out.Inventory == nil || out.Stats.Sold == nil {
		t.Fatal("maps not materialized")
	}
	for _, id := range CatalogSKUs() {
		if _, ok := out.Inventory[id]; !ok {
			t.Fatalf("%s missing from inventory", id)
		}
	}
}

func TestNormalizeClampsBadValues(t *testing.T) {
	st := DefaultState(time.Now())
	st.Cash = math.NaN()
	st.Inventory["apple"] = -3
	st.Customer.RatePerMinute = math.Inf(1)
	st.Customer.Carry = 1.7
	st.Stats.Revenue = math.NaN()

	out := Normalize(st)

	if out.Cash != DefaultCash {
		t.Fatalf("cash = %v, want %v", out.Cash, DefaultCash)
	}
	if out.Inventory["apple"] != 0 {
		t.Fatalf("apple inventory = %d, want 0", out.Inventory["apple"])
	}
	if out.Customer.RatePerMinute != DefaultRatePerMinute {
		t.Fatalf("rate = %v, want default", out.Customer.RatePerMinute)
	}
	if out.Customer.Carry != 0 {
		t.Fatalf("carry = %v, want 0", out.Customer.Carry)
	}
	if out.Stats.Revenue != 0 {
		t.Fatalf("revenue = %v, want 0", out.Stats.Revenue)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	st := DefaultState(time.Now())
	st.Inventory["apple"] = 3

	cp := st.Clone()
	cp.Inventory["apple"] = 99
	cp.Stats.Sold["bread"] = 7

	if st.Inventory["apple"] != 3 {
		t.Fatalf("clone shares inventory map")
	}
	if st.Stats.Sold["bread"] != 0 {
		t.Fatalf("clone shares sold map")
	}
}
