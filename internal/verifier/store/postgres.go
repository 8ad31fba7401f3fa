package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rwaledger/internal/verifier/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
	txcontext "rwaledger/pkg/platform/tx"
)

// PostgresStore persists verifiers in PostgreSQL. Execute locks the row with
// SELECT ... FOR UPDATE so concurrent reputation updates serialize per verifier.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) querier(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFrom(ctx, s.db)
}

const verifierColumns = `
	id, name, tier, tier_rank, specialization, status, reputation, credential_expiry,
	completed_verifications, successful_verifications, sequence,
	registered_at, updated_at, approved_at, status_reason`

func (s *PostgresStore) NextSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.querier(ctx).QueryRowContext(ctx, `SELECT nextval('verifier_sequence')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next verifier sequence: %w", err)
	}
	return seq, nil
}

func (s *PostgresStore) Create(ctx context.Context, v *models.Verifier) error {
	query := `INSERT INTO verifiers (` + verifierColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING`
	res, err := s.querier(ctx).ExecContext(ctx, query, verifierArgs(v)...)
	if err != nil {
		return fmt.Errorf("insert verifier: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert verifier: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("verifier %s: %w", v.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, verifierID id.VerifierID) (*models.Verifier, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+verifierColumns+` FROM verifiers WHERE id = $1`, string(verifierID))
	return scanVerifier(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Verifier, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT `+verifierColumns+` FROM verifiers ORDER BY sequence`)
	if err != nil {
		return nil, fmt.Errorf("list verifiers: %w", err)
	}
	defer rows.Close()
	return scanVerifiers(rows)
}

func (s *PostgresStore) ListActive(ctx context.Context, minTier models.Tier) ([]*models.Verifier, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT `+verifierColumns+` FROM verifiers
		 WHERE status = $1 AND tier_rank >= $2
		 ORDER BY sequence`,
		string(models.StatusActive), minTier.Rank())
	if err != nil {
		return nil, fmt.Errorf("list active verifiers: %w", err)
	}
	defer rows.Close()
	return scanVerifiers(rows)
}

func (s *PostgresStore) Execute(ctx context.Context, verifierID id.VerifierID, validate func(*models.Verifier) error, mutate func(*models.Verifier)) (*models.Verifier, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin verifier tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+verifierColumns+` FROM verifiers WHERE id = $1 FOR UPDATE`, string(verifierID))
	v, err := scanVerifier(row)
	if err != nil {
		return nil, err
	}
	if err := validate(v); err != nil {
		return nil, err
	}
	mutate(v)

	_, err = tx.ExecContext(ctx, `
		UPDATE verifiers SET
			status = $2, reputation = $3, credential_expiry = $4,
			completed_verifications = $5, successful_verifications = $6,
			updated_at = $7, approved_at = $8, status_reason = $9
		WHERE id = $1`,
		string(v.ID), string(v.Status), v.Reputation, v.CredentialExpiry,
		v.CompletedVerifications, v.SuccessfulVerifications,
		v.UpdatedAt, v.ApprovedAt, v.StatusReason)
	if err != nil {
		return nil, fmt.Errorf("update verifier: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit verifier tx: %w", err)
	}
	return v, nil
}

func verifierArgs(v *models.Verifier) []any {
	return []any{
		string(v.ID), v.Name, string(v.Tier), v.Tier.Rank(), v.Specialization, string(v.Status),
		v.Reputation, v.CredentialExpiry, v.CompletedVerifications, v.SuccessfulVerifications,
		v.Sequence, v.RegisteredAt, v.UpdatedAt, v.ApprovedAt, v.StatusReason,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerifier(row rowScanner) (*models.Verifier, error) {
	var (
		v          models.Verifier
		vid        string
		tier       string
		tierRank   int
		status     string
		approvedAt sql.NullTime
	)
	err := row.Scan(&vid, &v.Name, &tier, &tierRank, &v.Specialization, &status, &v.Reputation,
		&v.CredentialExpiry, &v.CompletedVerifications, &v.SuccessfulVerifications, &v.Sequence,
		&v.RegisteredAt, &v.UpdatedAt, &approvedAt, &v.StatusReason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan verifier: %w", err)
	}
	v.ID = id.VerifierID(vid)
	v.Tier = models.Tier(tier)
	v.Status = models.VerifierStatus(status)
	if approvedAt.Valid {
		t := approvedAt.Time
		v.ApprovedAt = &t
	}
	return &v, nil
}

func scanVerifiers(rows *sql.Rows) ([]*models.Verifier, error) {
	var out []*models.Verifier
	for rows.Next() {
		v, err := scanVerifier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifiers: %w", err)
	}
	return out, nil
}
