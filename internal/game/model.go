package game

import (
	"errors"
	"math"
	"sort"
	"time"
)

const (
	// MaxOfflineMinutes caps how much wall-clock time a single tick may
	// simulate. Anything beyond it is forfeited, which also bounds the work
	// done per request for accounts that went dark for weeks.
	MaxOfflineMinutes = 480.0

	DefaultCash          = 100.0
	DefaultRatePerMinute = 6.0
)

var (
	ErrInvalidSKU       = errors.New("invalid_sku")
	ErrInvalidQty       = errors.New("invalid_qty")
	ErrInsufficientCash = errors.New("insufficient_cash")
	ErrUnknownOpType    = errors.New("unknown_op_type")
	ErrInvalidPayload   = errors.New("invalid_payload")
)

// SKU describes one catalog item: what the shop pays to restock it and what a
// customer pays to buy it.
type SKU struct {
	BuyCost   float64
	SellPrice float64
}

// Catalog is the fixed set of goods the shop can stock.
var Catalog = map[string]SKU{
	"apple": {BuyCost: 2, SellPrice: 3},
	"bread": {BuyCost: 3, SellPrice: 5},
}

// CatalogSKUs returns the catalog ids in a stable order.
func CatalogSKUs() []string {
	ids := make([]string, 0, len(Catalog))
	for id := range Catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// State is the per-account save document, persisted as jsonb. Field names are
// part of the wire and storage format; older saves may lack newer fields and
// are repaired by Normalize.
type State struct {
	Cash      float64          `json:"cash"`
	Inventory map[string]int64 `json:"inventory"`
	Customer  Customer         `json:"customer"`
	Stats     Stats            `json:"stats"`
}

type Customer struct {
	// LastTickAt is the RFC 3339 instant the simulation was last advanced to.
	// Kept as a string so a corrupt value degrades to "no elapsed time"
	// instead of making the whole document unreadable.
	LastTickAt    string  `json:"lastTickAt"`
	RatePerMinute float64 `json:"ratePerMinute"`
	Carry         float64 `json:"carry"`
}

type Stats struct {
	Sold    map[string]int64 `json:"sold"`
	Revenue float64          `json:"revenue"`
	Cost    float64          `json:"cost"`
}

// DefaultState is the document a brand-new account starts with.
func DefaultState(now time.Time) State {
	st := State{
		Cash:      DefaultCash,
		Inventory: make(map[string]int64, len(Catalog)),
		Customer: Customer{
			LastTickAt:    FormatInstant(now),
			RatePerMinute: DefaultRatePerMinute,
		},
		Stats: Stats{Sold: make(map[string]int64, len(Catalog))},
	}
	for id := range Catalog {
		st.Inventory[id] = 0
		st.Stats.Sold[id] = 0
	}
	return st
}

// FormatInstant renders a timestamp the way LastTickAt stores it.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Clone deep-copies the document so callers can mutate the copy freely.
func (s State) Clone() State {
	out := s
	out.Inventory = make(map[string]int64, len(s.Inventory))
	for id, qty := range s.Inventory {
		out.Inventory[id] = qty
	}
	out.Stats.Sold = make(map[string]int64, len(s.Stats.Sold))
	for id, n := range s.Stats.Sold {
		out.Stats.Sold[id] = n
	}
	return out
}

// Normalize repairs a partial or legacy document into a complete, well-typed
// one. It is a single fill-defaults pass: every field the rest of the package
// relies on is guaranteed present and finite afterwards. The input is not
// modified.
func Normalize(s State) State {
	out := s.Clone()

	if !isFinite(out.Cash) {
		out.Cash = DefaultCash
	}

	if out.Inventory == nil {
		out.Inventory = make(map[string]int64, len(Catalog))
	}
	for id := range Catalog {
		qty := out.Inventory[id]
		if qty < 0 {
			qty = 0
		}
		out.Inventory[id] = qty
	}

	// A save written before the customer block existed has it zeroed out
	// entirely; restock it with the documented defaults.
	if out.Customer.LastTickAt == "" && out.Customer.RatePerMinute == 0 && out.Customer.Carry == 0 {
		out.Customer.RatePerMinute = DefaultRatePerMinute
	}
	if !isFinite(out.Customer.RatePerMinute) || out.Customer.RatePerMinute < 0 {
		out.Customer.RatePerMinute = DefaultRatePerMinute
	}
	if !isFinite(out.Customer.Carry) || out.Customer.Carry < 0 || out.Customer.Carry >= 1 {
		out.Customer.Carry = 0
	}

	if out.Stats.Sold == nil {
		out.Stats.Sold = make(map[string]int64, len(Catalog))
	}
	for id := range Catalog {
		n := out.Stats.Sold[id]
		if n < 0 {
			n = 0
		}
		out.Stats.Sold[id] = n
	}
	if !isFinite(out.Stats.Revenue) {
		out.Stats.Revenue = 0
	}
	if !isFinite(out.Stats.Cost) {
		out.Stats.Cost = 0
	}

	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
