package game

import "encoding/json"

// OpType tags a client-submitted mutation. The set is closed: adding an
// operation means adding a constant, a payload type, and a case in ApplyOp.
type OpType string

const (
	OpRestock OpType = "restock"
)

type RestockPayload struct {
	SKUID string `json:"skuId"`
	Qty   int64  `json:"qty"`
}

// ApplyOp validates and applies one mutation against the document, returning
// a new document. It is pure; on any failure the input is untouched and the
// zero State is returned alongside a coded error, so callers must not persist
// anything unless err is nil.
func ApplyOp(s State, opType OpType, payload json.RawMessage) (State, error) {
	switch opType {
	case OpRestock:
		var p RestockPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return State{}, ErrInvalidPayload
		}
		return applyRestock(s, p)
	default:
		return State{}, ErrUnknownOpType
	}
}

func applyRestock(s State, p RestockPayload) (State, error) {
	sku, ok := Catalog[p.SKUID]
	if !ok {
		return State{}, ErrInvalidSKU
	}
	if p.Qty <= 0 {
		return State{}, ErrInvalidQty
	}
	cost := sku.BuyCost * float64(p.Qty)
	if s.Cash < cost {
		return State{}, ErrInsufficientCash
	}

	out := s.Clone()
	out.Cash -= cost
	out.Inventory[p.SKUID] += p.Qty
	out.Stats.Cost += cost
	return out, nil
}
