package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "credentia/pkg/domain"
	"credentia/pkg/evidence"
	"credentia/pkg/platform/sentinel"
	txcontext "credentia/pkg/platform/tx"
)

// PostgresStore persists policies in PostgreSQL. The per-institution listing
// is an ordered query over the institution column; seq gives creation order.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const policyColumns = `
	id, title, description, policy_type, institution, frameworks,
	effective_date, review_date, creator, document_ref, statuses,
	active, seq, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, p *Policy) error {
	frameworks, err := json.Marshal(p.Frameworks)
	if err != nil {
		return fmt.Errorf("encode frameworks: %w", err)
	}
	statuses, err := json.Marshal(p.Statuses)
	if err != nil {
		return fmt.Errorf("encode statuses: %w", err)
	}
	query := `
		INSERT INTO policies (
			id, title, description, policy_type, institution, frameworks,
			effective_date, review_date, creator, document_ref, statuses,
			active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID), p.Title, p.Description, string(p.Type), p.Institution, frameworks,
		p.EffectiveDate, p.ReviewDate, p.Creator.String(), p.Document.String(), statuses,
		p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, policyID id.PolicyID) (*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`
	p, err := scanPolicy(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(policyID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find policy: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByInstitution(ctx context.Context, institution string) ([]*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE institution = $1 ORDER BY seq`
	rows, err := s.execer(ctx).QueryContext(ctx, query, institution)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var out []*Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Execute requires an ambient transaction so the FOR UPDATE row lock spans
// validate and mutate.
func (s *PostgresStore) Execute(ctx context.Context, policyID id.PolicyID, validate func(*Policy) error, mutate func(*Policy)) (*Policy, error) {
	execer := s.execer(ctx)
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1 FOR UPDATE`
	p, err := scanPolicy(execer.QueryRowContext(ctx, query, uuid.UUID(policyID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock policy: %w", err)
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)

	statuses, err := json.Marshal(p.Statuses)
	if err != nil {
		return nil, fmt.Errorf("encode statuses: %w", err)
	}
	update := `
		UPDATE policies SET
			statuses = $2, active = $3, updated_at = $4
		WHERE id = $1
	`
	_, err = execer.ExecContext(ctx, update,
		uuid.UUID(p.ID), statuses, p.Active, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*Policy, error) {
	var (
		p           Policy
		policyID    uuid.UUID
		policyType  string
		creator     string
		documentRef string
		frameworks  []byte
		statuses    []byte
		seq         int64
	)
	if err := row.Scan(
		&policyID, &p.Title, &p.Description, &policyType, &p.Institution, &frameworks,
		&p.EffectiveDate, &p.ReviewDate, &creator, &documentRef, &statuses,
		&p.Active, &seq, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.ID = id.PolicyID(policyID)
	p.Type = id.PolicyType(policyType)
	p.Creator = id.Principal(creator)
	p.Document = evidence.Ref(documentRef)
	if err := json.Unmarshal(frameworks, &p.Frameworks); err != nil {
		return nil, fmt.Errorf("decode frameworks: %w", err)
	}
	if err := json.Unmarshal(statuses, &p.Statuses); err != nil {
		return nil, fmt.Errorf("decode statuses: %w", err)
	}
	return &p, nil
}
