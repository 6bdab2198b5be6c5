package save

import (
	"context"
	"errors"
	"time"

	"shopkeep/internal/game"
)

// DemoUserID is the fixed account used by the development login and the
// operator reset command.
const DemoUserID = "11111111-1111-1111-1111-111111111111"

var (
	// ErrNotFound means the account has no save row.
	ErrNotFound = errors.New("save not found")
	// ErrOpRecorded is returned by Tx.RecordOp when the ledger already holds
	// the op id, which only happens when a duplicate submission committed
	// concurrently. The coordinator resolves it by re-reading the winner.
	ErrOpRecorded = errors.New("op already recorded")
	// ErrInvalidRequest covers a mutation whose envelope is malformed.
	ErrInvalidRequest = errors.New("invalid_request")
)

// Snapshot is one committed save row.
type Snapshot struct {
	State      game.State
	Version    int64
	LastSeenAt time.Time // zero until the first applied mutation
	UpdatedAt  time.Time
}

// Store is the coordinator's view of the backing store.
type Store interface {
	// Update runs fn inside a transaction holding an exclusive lock on the
	// account's save row. If fn returns an error, nothing is persisted.
	Update(ctx context.Context, userID string, fn func(tx Tx) error) error
	// Load reads the committed save without locking it.
	Load(ctx context.Context, userID string) (Snapshot, error)
}

// Tx is the set of statements the coordinator issues inside one transaction.
type Tx interface {
	// Snapshot reads the locked save row.
	Snapshot(ctx context.Context) (Snapshot, error)
	// SeenOp reports whether the idempotency ledger holds opID.
	SeenOp(ctx context.Context, opID string) (bool, error)
	// WriteTicked persists a tick-only advance: state and updated_at change,
	// version and last_seen_at do not.
	WriteTicked(ctx context.Context, st game.State) error
	// WriteApplied persists a successful mutation: state, version,
	// last_seen_at and updated_at all change.
	WriteApplied(ctx context.Context, st game.State, version int64) error
	// RecordOp appends opID to the idempotency ledger.
	RecordOp(ctx context.Context, opID string) error
}

// Identity is a third-party login mapped onto a local account.
type Identity struct {
	LinuxDoID      string
	Username       string
	Name           string
	AvatarTemplate string
	TrustLevel     int
	Active         bool
	Silenced       bool
}

// Accounts covers the login-time bookkeeping around saves.
type Accounts interface {
	// EnsureSave creates the account and its save with the given initial
	// state if they do not exist yet. Idempotent.
	EnsureSave(ctx context.Context, userID string, st game.State) error
	// UpsertIdentity maps a third-party identity to a local user id,
	// creating the user on first login and refreshing profile fields after.
	UpsertIdentity(ctx context.Context, id Identity) (string, error)
}
