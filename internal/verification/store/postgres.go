package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rwaledger/internal/verification/models"
	verifier "rwaledger/internal/verifier/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
	txcontext "rwaledger/pkg/platform/tx"
)

// PostgresStore keeps requests in verification_requests and their results in
// verification_results. Execute locks the request row so two verifiers
// submitting at once serialize on completion.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) querier(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFrom(ctx, s.db)
}

const requestColumns = `id, subject_id, asset_type, trust_level, required_tier, assigned_verifiers, requested_at, completed_at, change_id`

func (s *PostgresStore) NextSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.querier(ctx).QueryRowContext(ctx, `SELECT nextval('verification_request_sequence')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next request sequence: %w", err)
	}
	return seq, nil
}

func (s *PostgresStore) Save(ctx context.Context, r *models.Request) error {
	assigned := make([]string, len(r.Assigned))
	for i, v := range r.Assigned {
		assigned[i] = string(v)
	}
	res, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO verification_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		string(r.ID), string(r.SubjectID), r.AssetType, string(r.TrustLevel), string(r.RequiredTier),
		pq.Array(assigned), r.RequestedAt, r.CompletedAt, changeIDValue(r.ChangeID))
	if err != nil {
		return fmt.Errorf("insert verification request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert verification request: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("request %s: %w", r.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	q := s.querier(ctx)
	r, err := scanRequest(q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM verification_requests WHERE id = $1`, string(requestID)))
	if err != nil {
		return nil, err
	}
	if err := loadResults(ctx, q, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Request, error) {
	return s.list(ctx, `SELECT `+requestColumns+` FROM verification_requests
		WHERE completed_at IS NULL ORDER BY requested_at, id`)
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject id.TokenID) ([]*models.Request, error) {
	return s.list(ctx, `SELECT `+requestColumns+` FROM verification_requests
		WHERE subject_id = $1 ORDER BY requested_at, id`, string(subject))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Request, error) {
	q := s.querier(ctx)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list verification requests: %w", err)
	}
	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification requests: %w", err)
	}
	for _, r := range out {
		if err := loadResults(ctx, q, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) Execute(ctx context.Context, requestID id.RequestID, validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin request tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	r, err := scanRequest(tx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM verification_requests WHERE id = $1 FOR UPDATE`, string(requestID)))
	if err != nil {
		return nil, err
	}
	if err := loadResults(ctx, tx, r); err != nil {
		return nil, err
	}
	if err := validate(r); err != nil {
		return nil, err
	}
	before := len(r.Results)
	mutate(r)

	for pos := before; pos < len(r.Results); pos++ {
		res := r.Results[pos]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO verification_results (request_id, verifier_id, verified, trust_level, summary, submitted_at, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			string(r.ID), string(res.VerifierID), res.Verified, string(res.AchievedLevel), res.Summary, res.SubmittedAt, pos); err != nil {
			return nil, fmt.Errorf("insert verification result: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE verification_requests SET completed_at = $2 WHERE id = $1`,
		string(r.ID), r.CompletedAt); err != nil {
		return nil, fmt.Errorf("update verification request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit request tx: %w", err)
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r           models.Request
		rid         string
		subject     string
		level       string
		tier        string
		assigned    []string
		completedAt sql.NullTime
		changeID    uuid.NullUUID
	)
	err := row.Scan(&rid, &subject, &r.AssetType, &level, &tier, pq.Array(&assigned), &r.RequestedAt, &completedAt, &changeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification request: %w", err)
	}
	r.ID = id.RequestID(rid)
	r.SubjectID = id.TokenID(subject)
	r.TrustLevel = verifier.TrustLevel(level)
	r.RequiredTier = verifier.Tier(tier)
	r.Assigned = make([]id.VerifierID, len(assigned))
	for i, v := range assigned {
		r.Assigned[i] = id.VerifierID(v)
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if changeID.Valid {
		cid := id.ChangeID(changeID.UUID)
		r.ChangeID = &cid
	}
	return &r, nil
}

func changeIDValue(c *id.ChangeID) uuid.NullUUID {
	if c == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*c), Valid: true}
}

func loadResults(ctx context.Context, q txcontext.Querier, r *models.Request) error {
	rows, err := q.QueryContext(ctx, `
		SELECT verifier_id, verified, trust_level, summary, submitted_at
		FROM verification_results WHERE request_id = $1 ORDER BY position`, string(r.ID))
	if err != nil {
		return fmt.Errorf("load verification results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			res   models.Result
			vid   string
			level string
		)
		if err := rows.Scan(&vid, &res.Verified, &level, &res.Summary, &res.SubmittedAt); err != nil {
			return fmt.Errorf("scan verification result: %w", err)
		}
		res.VerifierID = id.VerifierID(vid)
		res.AchievedLevel = verifier.TrustLevel(level)
		r.Results = append(r.Results, res)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate verification results: %w", err)
	}
	return nil
}
