package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rwaledger/internal/approval/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
)

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists changes in approval_changes and their votes in
// approval_decisions. Bound to a *sql.Tx via NewPostgresTx, FindByIDForUpdate
// holds the row lock until commit.
type PostgresStore struct {
	q dbQuerier
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

const changeColumns = `id, parent_token_id, change_type, tier, status, created_by, created_at, submitted_at, deadline, decided_at, version`

func (s *PostgresStore) Create(ctx context.Context, c *models.Change) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO approval_changes (`+changeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		uuid.UUID(c.ID), string(c.ParentTokenID), string(c.ChangeType), string(c.Tier), string(c.Status),
		string(c.CreatedBy), c.CreatedAt, c.SubmittedAt, c.Deadline, c.DecidedAt, c.Version)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("change %s: %w", c.ID, sentinel.ErrConflict)
	}
	return s.insertDecisions(ctx, c)
}

func (s *PostgresStore) FindByID(ctx context.Context, changeID id.ChangeID) (*models.Change, error) {
	return s.find(ctx, `SELECT `+changeColumns+` FROM approval_changes WHERE id = $1`, changeID)
}

func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, changeID id.ChangeID) (*models.Change, error) {
	return s.find(ctx, `SELECT `+changeColumns+` FROM approval_changes WHERE id = $1 FOR UPDATE`, changeID)
}

func (s *PostgresStore) find(ctx context.Context, query string, changeID id.ChangeID) (*models.Change, error) {
	c, err := scanChange(s.q.QueryRowContext(ctx, query, uuid.UUID(changeID)))
	if err != nil {
		return nil, err
	}
	if err := s.loadDecisions(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update writes c if the stored version still matches, then bumps the version.
func (s *PostgresStore) Update(ctx context.Context, c *models.Change) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE approval_changes SET
			status = $3, submitted_at = $4, deadline = $5, decided_at = $6, version = version + 1
		WHERE id = $1 AND version = $2`,
		uuid.UUID(c.ID), c.Version, string(c.Status), c.SubmittedAt, c.Deadline, c.DecidedAt)
	if err != nil {
		return fmt.Errorf("update change: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update change: %w", err)
	}
	if rows == 0 {
		if _, err := s.FindByID(ctx, c.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("change %s version %d: %w", c.ID, c.Version, sentinel.ErrConflict)
	}
	c.Version++
	return s.insertDecisions(ctx, c)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.Change, error) {
	return s.list(ctx, `SELECT `+changeColumns+` FROM approval_changes WHERE status = $1 ORDER BY created_at, id`, string(status))
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Change, error) {
	return s.list(ctx, `SELECT `+changeColumns+` FROM approval_changes ORDER BY created_at, id`)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Change, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	var out []*models.Change
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	for _, c := range out {
		if err := s.loadDecisions(ctx, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// insertDecisions writes every decision; rows already stored are skipped by
// the (change_id, approver_id) key.
func (s *PostgresStore) insertDecisions(ctx context.Context, c *models.Change) error {
	for pos, d := range c.Decisions {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO approval_decisions (change_id, approver_id, approver_role, decision, reason, decided_at, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (change_id, approver_id) DO NOTHING`,
			uuid.UUID(c.ID), string(d.ApproverID), string(d.Role), string(d.Verdict), d.Reason, d.DecidedAt, pos); err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) loadDecisions(ctx context.Context, c *models.Change) error {
	rows, err := s.q.QueryContext(ctx, `
		SELECT approver_id, approver_role, decision, reason, decided_at
		FROM approval_decisions WHERE change_id = $1 ORDER BY position`, uuid.UUID(c.ID))
	if err != nil {
		return fmt.Errorf("load decisions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d        models.Decision
			approver string
			role     string
			verdict  string
		)
		if err := rows.Scan(&approver, &role, &verdict, &d.Reason, &d.DecidedAt); err != nil {
			return fmt.Errorf("scan decision: %w", err)
		}
		d.ApproverID = id.ActorID(approver)
		d.Role = models.Role(role)
		d.Verdict = models.Verdict(verdict)
		c.Decisions = append(c.Decisions, d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate decisions: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChange(row rowScanner) (*models.Change, error) {
	var (
		c          models.Change
		changeID   uuid.UUID
		parent     string
		changeType string
		tier       string
		status     string
		createdBy  string
		submitted  sql.NullTime
		deadline   sql.NullTime
		decided    sql.NullTime
	)
	err := row.Scan(&changeID, &parent, &changeType, &tier, &status, &createdBy,
		&c.CreatedAt, &submitted, &deadline, &decided, &c.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan change: %w", err)
	}
	c.ID = id.ChangeID(changeID)
	c.ParentTokenID = id.TokenID(parent)
	c.ChangeType = models.ChangeType(changeType)
	c.Tier = models.Tier(tier)
	c.Status = models.Status(status)
	c.CreatedBy = id.ActorID(createdBy)
	c.SubmittedAt = nullTime(submitted)
	c.Deadline = nullTime(deadline)
	c.DecidedAt = nullTime(decided)
	return &c, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
