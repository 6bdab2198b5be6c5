package save

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"shopkeep/internal/game"
)

// OpRequest is one client-submitted mutation. OpID is client-generated and
// globally unique; BaseVersion is the version the client believes is current.
type OpRequest struct {
	OpID        string
	BaseVersion int64
	Type        game.OpType
	Payload     json.RawMessage
}

// OpResult is the committed outcome of a mutation or of its idempotent replay.
type OpResult struct {
	State   game.State
	Version int64
}

// SaveResult is what a fetch returns after ticking and committing.
type SaveResult struct {
	State      game.State
	Version    int64
	LastSeenAt time.Time
	ServerTime time.Time
}

// VersionConflictError rejects a mutation whose BaseVersion is stale. It
// carries the committed version so the client can re-fetch and resubmit.
type VersionConflictError struct {
	ServerVersion int64
}

func (e *VersionConflictError) Error() string { return "version_conflict" }

// Coordinator runs the save protocol: lock the account row, advance simulated
// time, then either replay, reject, or apply the mutation, committing the
// whole outcome atomically.
type Coordinator struct {
	store  Store
	log    *slog.Logger
	now    func() time.Time
	choose game.Chooser

	mu   sync.Mutex
	rand *mathrand.Rand
}

type Option func(*Coordinator)

// WithClock fixes the coordinator's notion of now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithChooser replaces the uniform customer-choice source.
func WithChooser(choose game.Chooser) Option {
	return func(c *Coordinator) { c.choose = choose }
}

func NewCoordinator(store Store, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		store: store,
		log:   logger,
		now:   time.Now,
		rand:  mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.choose == nil {
		c.choose = c.uniformChoice
	}
	return c
}

func (c *Coordinator) uniformChoice(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rand.Intn(n)
}

// ApplyOp processes exactly one mutation for one account as a single atomic
// unit. Outcomes:
//
//   - replay (op id already in the ledger): only the tick is persisted and the
//     prior committed version is returned; the op is never re-applied
//   - stale BaseVersion: nothing persists, VersionConflictError
//   - validation failure: nothing persists, the op's coded error
//   - success: state, version+1, timestamps and the ledger row commit together
//
// A duplicate submission racing this one may win the ledger insert; that
// surfaces as ErrOpRecorded, and the committed result is re-read and returned
// as a replay rather than an error.
func (c *Coordinator) ApplyOp(ctx context.Context, userID string, req OpRequest) (OpResult, error) {
	if strings.TrimSpace(req.OpID) == "" || req.BaseVersion < 0 || req.Type == "" {
		return OpResult{}, ErrInvalidRequest
	}

	now := c.now().UTC()
	var out OpResult
	err := c.store.Update(ctx, userID, func(tx Tx) error {
		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}

		ticked := game.CustomerTick(snap.State, now, c.choose)

		seen, err := tx.SeenOp(ctx, req.OpID)
		if err != nil {
			return err
		}
		if seen {
			// Retry of a committed op. The time advance is still honored so
			// retries never lose simulated progress.
			if err := tx.WriteTicked(ctx, ticked); err != nil {
				return err
			}
			out = OpResult{State: ticked, Version: snap.Version}
			return nil
		}

		if req.BaseVersion != snap.Version {
			return &VersionConflictError{ServerVersion: snap.Version}
		}

		applied, err := game.ApplyOp(ticked, req.Type, req.Payload)
		if err != nil {
			return err
		}

		if err := tx.WriteApplied(ctx, applied, snap.Version+1); err != nil {
			return err
		}
		if err := tx.RecordOp(ctx, req.OpID); err != nil {
			return err
		}
		out = OpResult{State: applied, Version: snap.Version + 1}
		return nil
	})
	if err == nil {
		return out, nil
	}
	if errors.Is(err, ErrOpRecorded) {
		c.log.Info("duplicate op raced a concurrent submission", "user_id", userID, "op_id", req.OpID)
		snap, lerr := c.store.Load(ctx, userID)
		if lerr != nil {
			return OpResult{}, lerr
		}
		return OpResult{State: snap.State, Version: snap.Version}, nil
	}
	return OpResult{}, err
}

// GetSave ticks the account's save, commits the advance, and returns the
// result. Reading is deliberately not side-effect-free: fetching a save is
// what moves its simulated clock forward.
func (c *Coordinator) GetSave(ctx context.Context, userID string) (SaveResult, error) {
	now := c.now().UTC()
	var out SaveResult
	err := c.store.Update(ctx, userID, func(tx Tx) error {
		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}
		ticked := game.CustomerTick(snap.State, now, c.choose)
		if err := tx.WriteTicked(ctx, ticked); err != nil {
			return err
		}
		out = SaveResult{
			State:      ticked,
			Version:    snap.Version,
			LastSeenAt: snap.LastSeenAt,
			ServerTime: now,
		}
		return nil
	})
	if err != nil {
		return SaveResult{}, err
	}
	return out, nil
}
