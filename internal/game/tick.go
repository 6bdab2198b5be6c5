package game

import (
	"math"
	"time"
)

// Chooser picks an index in [0, n). n is always at least 1. Production wires a
// uniform random source; tests fix the sequence.
type Chooser func(n int) int

// CustomerTick advances the simulation from the document's LastTickAt to now
// and returns the updated document. It is pure: the input is never modified,
// no I/O happens, and the version counter is untouched (replaying the same
// wall-clock window is not a client intent worth a version bump).
//
// Arrivals are Poisson-ish in the simplest possible way: rate times elapsed
// minutes, with the fractional remainder carried to the next tick so slow
// shops still see customers eventually. Each arrival buys one unit of a
// uniformly chosen in-stock item, or leaves if the shelves are empty.
func CustomerTick(s State, now time.Time, choose Chooser) State {
	out := Normalize(s)

	elapsed := elapsedMinutes(out.Customer.LastTickAt, now)
	total := out.Customer.RatePerMinute*elapsed + out.Customer.Carry
	arrivals := int64(math.Floor(total))
	out.Customer.Carry = total - math.Floor(total)

	for i := int64(0); i < arrivals; i++ {
		inStock := inStockSKUs(out.Inventory)
		if len(inStock) == 0 {
			// Nothing on the shelves; this and every later arrival walks out.
			break
		}
		id := inStock[choose(len(inStock))]
		out.Inventory[id]--
		out.Stats.Sold[id]++
		price := Catalog[id].SellPrice
		out.Cash += price
		out.Stats.Revenue += price
	}

	out.Customer.LastTickAt = FormatInstant(now)
	return out
}

// elapsedMinutes clamps the simulated window to [0, MaxOfflineMinutes]. An
// unparseable LastTickAt yields zero: the caller resets the clock to now and
// the save keeps working instead of erroring forever.
func elapsedMinutes(lastTickAt string, now time.Time) float64 {
	last, err := time.Parse(time.RFC3339Nano, lastTickAt)
	if err != nil {
		return 0
	}
	minutes := now.Sub(last).Minutes()
	if minutes < 0 {
		return 0
	}
	if minutes > MaxOfflineMinutes {
		return MaxOfflineMinutes
	}
	return minutes
}

func inStockSKUs(inventory map[string]int64) []string {
	var ids []string
	for _, id := range CatalogSKUs() {
		if inventory[id] > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
