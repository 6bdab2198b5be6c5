package save

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopkeep/internal/game"
)

// PGStore backs the coordinator with Postgres. The exclusive per-account lock
// is the row lock taken by SELECT ... FOR UPDATE on the account's saves row;
// unrelated accounts never contend.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Update(ctx context.Context, userID string, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx, userID: userID}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Load(ctx context.Context, userID string) (Snapshot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT state_json, version, last_seen_at, updated_at
		FROM saves
		WHERE user_id = $1
	`, userID)
	return scanSnapshot(row)
}

func (s *PGStore) EnsureSave(ctx context.Context, userID string, st game.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO users (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO saves (user_id, state_json, version)
		VALUES ($1, $2::jsonb, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, raw); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) UpsertIdentity(ctx context.Context, id Identity) (string, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var userID string
	err = tx.QueryRow(ctx, `
		SELECT user_id
		FROM user_identities
		WHERE linuxdo_id = $1
	`, id.LinuxDoID).Scan(&userID)
	switch {
	case err == nil:
		if _, err := tx.Exec(ctx, `
			UPDATE user_identities
			SET username = $2,
			    name = $3,
			    avatar_template = $4,
			    trust_level = $5,
			    active = $6,
			    silenced = $7,
			    updated_at = now()
			WHERE linuxdo_id = $1
		`, id.LinuxDoID, id.Username, id.Name, id.AvatarTemplate, id.TrustLevel, id.Active, id.Silenced); err != nil {
			return "", err
		}
	case errors.Is(err, pgx.ErrNoRows):
		userID = uuid.NewString()
		if _, err := tx.Exec(ctx, `INSERT INTO users (id) VALUES ($1)`, userID); err != nil {
			return "", err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_identities
			    (linuxdo_id, user_id, username, name, avatar_template, trust_level, active, silenced)
			VALUES
			    ($1, $2, $3, $4, $5, $6, $7, $8)
		`, id.LinuxDoID, userID, id.Username, id.Name, id.AvatarTemplate, id.TrustLevel, id.Active, id.Silenced); err != nil {
			return "", err
		}
	default:
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return userID, nil
}

type pgTx struct {
	tx     pgx.Tx
	userID string
}

func (t *pgTx) Snapshot(ctx context.Context) (Snapshot, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT state_json, version, last_seen_at, updated_at
		FROM saves
		WHERE user_id = $1
		FOR UPDATE
	`, t.userID)
	return scanSnapshot(row)
}

func (t *pgTx) SeenOp(ctx context.Context, opID string) (bool, error) {
	var seen bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM ops WHERE op_id = $1)
	`, opID).Scan(&seen)
	return seen, err
}

func (t *pgTx) WriteTicked(ctx context.Context, st game.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE saves
		SET state_json = $2::jsonb,
		    updated_at = now()
		WHERE user_id = $1
	`, t.userID, raw)
	return err
}

func (t *pgTx) WriteApplied(ctx context.Context, st game.State, version int64) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE saves
		SET state_json = $2::jsonb,
		    version = $3,
		    last_seen_at = now(),
		    updated_at = now()
		WHERE user_id = $1
	`, t.userID, raw, version)
	return err
}

func (t *pgTx) RecordOp(ctx context.Context, opID string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ops (op_id, user_id)
		VALUES ($1, $2)
	`, opID, t.userID)
	if isUniqueViolation(err) {
		return ErrOpRecorded
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var (
		raw      []byte
		snap     Snapshot
		lastSeen *time.Time
	)
	if err := row.Scan(&raw, &snap.Version, &lastSeen, &snap.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	if err := json.Unmarshal(raw, &snap.State); err != nil {
		return Snapshot{}, fmt.Errorf("decode state: %w", err)
	}
	if lastSeen != nil {
		snap.LastSeenAt = *lastSeen
	}
	return snap, nil
}
