package save

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"shopkeep/internal/game"
)

// MemoryStore implements Store and Accounts in memory with the same
// commit/rollback semantics as the Postgres store: writes issued through a Tx
// stage until fn returns nil. It exists for tests and local tinkering.
type MemoryStore struct {
	mu         sync.Mutex
	rows       map[string]*memoryRow
	ops        map[string]string // op id -> user id
	identities map[string]string // linuxdo id -> user id
}

type memoryRow struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:       make(map[string]*memoryRow),
		ops:        make(map[string]string),
		identities: make(map[string]string),
	}
}

func (s *MemoryStore) Update(ctx context.Context, userID string, fn func(tx Tx) error) error {
	s.mu.Lock()
	row, ok := s.rows[userID]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	row.mu.Lock()
	defer row.mu.Unlock()

	tx := &memoryTx{store: s, row: row, userID: userID, now: time.Now()}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, userID string) (Snapshot, error) {
	s.mu.Lock()
	row, ok := s.rows[userID]
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	return cloneSnapshot(row.snap), nil
}

func (s *MemoryStore) EnsureSave(ctx context.Context, userID string, st game.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[userID]; ok {
		return nil
	}
	s.rows[userID] = &memoryRow{snap: Snapshot{
		State:     st.Clone(),
		Version:   0,
		UpdatedAt: time.Now(),
	}}
	return nil
}

func (s *MemoryStore) UpsertIdentity(ctx context.Context, id Identity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID, ok := s.identities[id.LinuxDoID]; ok {
		return userID, nil
	}
	userID := uuid.NewString()
	s.identities[id.LinuxDoID] = userID
	return userID, nil
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.State = s.State.Clone()
	return s
}

type memoryTx struct {
	store  *MemoryStore
	row    *memoryRow
	userID string
	now    time.Time

	pendingState   *game.State
	pendingVersion *int64
	pendingOpID    string
}

func (t *memoryTx) Snapshot(ctx context.Context) (Snapshot, error) {
	return cloneSnapshot(t.row.snap), nil
}

func (t *memoryTx) SeenOp(ctx context.Context, opID string) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	_, ok := t.store.ops[opID]
	return ok, nil
}

func (t *memoryTx) WriteTicked(ctx context.Context, st game.State) error {
	cp := st.Clone()
	t.pendingState = &cp
	return nil
}

func (t *memoryTx) WriteApplied(ctx context.Context, st game.State, version int64) error {
	cp := st.Clone()
	t.pendingState = &cp
	t.pendingVersion = &version
	return nil
}

func (t *memoryTx) RecordOp(ctx context.Context, opID string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.ops[opID]; ok {
		return ErrOpRecorded
	}
	t.pendingOpID = opID
	return nil
}

func (t *memoryTx) commit() {
	if t.pendingState != nil {
		t.row.snap.State = *t.pendingState
		t.row.snap.UpdatedAt = t.now
	}
	if t.pendingVersion != nil {
		t.row.snap.Version = *t.pendingVersion
		t.row.snap.LastSeenAt = t.now
	}
	if t.pendingOpID != "" {
		t.store.mu.Lock()
		t.store.ops[t.pendingOpID] = t.userID
		t.store.mu.Unlock()
	}
}
