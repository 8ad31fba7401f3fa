package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rwaledger/internal/evolution/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
	txcontext "rwaledger/pkg/platform/tx"
)

// PostgresStore keeps chains in evolution_chains and every snapshot, open or
// closed, in evolution_snapshots ordered by position.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const chainColumns = `composite_id, primary_id, integrity_hash, verification_mode, created_at, version`

func (s *PostgresStore) Create(ctx context.Context, c *models.Chain) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chain tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO evolution_chains (`+chainColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (composite_id) DO NOTHING`,
		string(c.CompositeID), string(c.PrimaryID), c.IntegrityHash, string(c.Mode), c.CreatedAt, c.Version)
	if err != nil {
		return fmt.Errorf("insert chain: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert chain: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("chain %s: %w", c.CompositeID, sentinel.ErrConflict)
	}
	for pos, snap := range c.Snapshots() {
		if err := insertSnapshot(ctx, tx, c.CompositeID, pos, snap); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chain tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, compositeID id.TokenID) (*models.Chain, error) {
	return load(ctx, s.db, `SELECT `+chainColumns+` FROM evolution_chains WHERE composite_id = $1`, compositeID)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Chain, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT composite_id FROM evolution_chains ORDER BY composite_id`)
	if err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}
	var ids []id.TokenID
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan chain id: %w", err)
		}
		ids = append(ids, id.TokenID(cid))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chains: %w", err)
	}
	out := make([]*models.Chain, 0, len(ids))
	for _, cid := range ids {
		c, err := s.FindByID(ctx, cid)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Execute locks the chain row, applies validate and mutate, then writes the
// closed snapshot, the appended ones and the new chain version.
func (s *PostgresStore) Execute(ctx context.Context, compositeID id.TokenID, validate func(*models.Chain) error, mutate func(*models.Chain)) (*models.Chain, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin chain tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	c, err := load(ctx, tx, `SELECT `+chainColumns+` FROM evolution_chains WHERE composite_id = $1 FOR UPDATE`, compositeID)
	if err != nil {
		return nil, err
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	before := c.Snapshots()
	mutate(c)
	after := c.Snapshots()

	for pos := range before {
		if before[pos].EffectiveTo == nil && after[pos].EffectiveTo != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE evolution_snapshots SET effective_to = $2 WHERE id = $1`,
				uuid.UUID(after[pos].ID), *after[pos].EffectiveTo); err != nil {
				return nil, fmt.Errorf("close snapshot: %w", err)
			}
		}
	}
	for pos := len(before); pos < len(after); pos++ {
		if err := insertSnapshot(ctx, tx, c.CompositeID, pos, after[pos]); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE evolution_chains SET verification_mode = $2, version = version + 1 WHERE composite_id = $1`,
		string(c.CompositeID), string(c.Mode)); err != nil {
		return nil, fmt.Errorf("update chain: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chain tx: %w", err)
	}
	c.Version++
	return c, nil
}

func insertSnapshot(ctx context.Context, q txcontext.Querier, compositeID id.TokenID, pos int, snap models.Snapshot) error {
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("encode snapshot data: %w", err)
	}
	var changeID any
	if snap.ChangeID != nil {
		changeID = uuid.UUID(*snap.ChangeID)
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO evolution_snapshots
			(id, composite_id, position, token_type, data, content_hash, previous_hash, effective_from, effective_to, reason, actor, change_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(snap.ID), string(compositeID), pos, string(snap.TokenType), string(data), snap.ContentHash,
		snap.PreviousHash, snap.EffectiveFrom, snap.EffectiveTo, string(snap.Reason), string(snap.Actor), changeID); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func load(ctx context.Context, q txcontext.Querier, query string, compositeID id.TokenID) (*models.Chain, error) {
	var (
		c         models.Chain
		composite string
		primary   string
		mode      string
	)
	err := q.QueryRowContext(ctx, query, string(compositeID)).
		Scan(&composite, &primary, &c.IntegrityHash, &mode, &c.CreatedAt, &c.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan chain: %w", err)
	}
	c.CompositeID = id.TokenID(composite)
	c.PrimaryID = id.TokenID(primary)
	c.Mode = models.VerificationMode(mode)
	c.History = []models.Snapshot{}

	rows, err := q.QueryContext(ctx, `
		SELECT id, token_type, data, content_hash, previous_hash, effective_from, effective_to, reason, actor, change_id
		FROM evolution_snapshots WHERE composite_id = $1 ORDER BY position`, composite)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		if snap.EffectiveTo == nil {
			c.Current = snap
			continue
		}
		c.History = append(c.History, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return &c, nil
}

func scanSnapshot(rows *sql.Rows) (*models.Snapshot, error) {
	var (
		snap      models.Snapshot
		snapID    uuid.UUID
		tokenType string
		data      []byte
		effTo     sql.NullTime
		reason    string
		actor     string
		changeID  uuid.NullUUID
	)
	if err := rows.Scan(&snapID, &tokenType, &data, &snap.ContentHash, &snap.PreviousHash,
		&snap.EffectiveFrom, &effTo, &reason, &actor, &changeID); err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	// data is a JSON (not JSONB) column, so the stored text is what was
	// marshalled. Numbers decode as json.Number and re-encode unchanged.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&snap.Data); err != nil {
		return nil, fmt.Errorf("decode snapshot data: %w", err)
	}
	snap.ID = id.SnapshotID(snapID)
	snap.TokenType = models.TokenType(tokenType)
	snap.Reason = models.Reason(reason)
	snap.Actor = id.ActorID(actor)
	if effTo.Valid {
		t := effTo.Time
		snap.EffectiveTo = &t
	}
	if changeID.Valid {
		cid := id.ChangeID(changeID.UUID)
		snap.ChangeID = &cid
	}
	return &snap, nil
}
