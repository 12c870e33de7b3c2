package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "credentia/pkg/domain"
	"credentia/pkg/evidence"
	"credentia/pkg/platform/sentinel"
	txcontext "credentia/pkg/platform/tx"
)

// PostgresStore persists audits in PostgreSQL; seq gives creation order.
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

const auditColumns = `
	id, framework, institution, policy_type, audit_area, status,
	audited_at, next_review_at, findings, recommendations, auditor,
	evidence_ref, active, seq, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, a *ComplianceAudit) error {
	query := `
		INSERT INTO compliance_audits (
			id, framework, institution, policy_type, audit_area, status,
			audited_at, next_review_at, findings, recommendations, auditor,
			evidence_ref, active, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID), string(a.Framework), a.Institution, string(a.PolicyType), a.AuditArea, string(a.Status),
		a.AuditedAt, a.NextReviewAt, a.Findings, a.Recommendations, a.Auditor.String(),
		a.Evidence.String(), a.Active, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, auditID id.AuditID) (*ComplianceAudit, error) {
	query := `SELECT ` + auditColumns + ` FROM compliance_audits WHERE id = $1`
	a, err := scanAudit(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(auditID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find audit: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListByInstitution(ctx context.Context, institution string) ([]*ComplianceAudit, error) {
	query := `SELECT ` + auditColumns + ` FROM compliance_audits WHERE institution = $1 ORDER BY seq`
	return s.list(ctx, query, institution)
}

func (s *PostgresStore) ListDueBetween(ctx context.Context, after, until time.Time) ([]*ComplianceAudit, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM compliance_audits
		WHERE active AND next_review_at > $1 AND next_review_at <= $2
		ORDER BY next_review_at, id
	`
	return s.list(ctx, query, after, until)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*ComplianceAudit, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var out []*ComplianceAudit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Execute requires an ambient transaction so the FOR UPDATE row lock spans
// validate and mutate.
func (s *PostgresStore) Execute(ctx context.Context, auditID id.AuditID, validate func(*ComplianceAudit) error, mutate func(*ComplianceAudit)) (*ComplianceAudit, error) {
	execer := s.execer(ctx)
	query := `SELECT ` + auditColumns + ` FROM compliance_audits WHERE id = $1 FOR UPDATE`
	a, err := scanAudit(execer.QueryRowContext(ctx, query, uuid.UUID(auditID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock audit: %w", err)
	}

	if err := validate(a); err != nil {
		return nil, err
	}
	mutate(a)

	update := `
		UPDATE compliance_audits SET
			status = $2, findings = $3, recommendations = $4, active = $5, updated_at = $6
		WHERE id = $1
	`
	_, err = execer.ExecContext(ctx, update,
		uuid.UUID(a.ID), string(a.Status), a.Findings, a.Recommendations, a.Active, a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update audit: %w", err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*ComplianceAudit, error) {
	var (
		a           ComplianceAudit
		auditID     uuid.UUID
		framework   string
		policyType  string
		status      string
		auditor     string
		evidenceRef string
		seq         int64
	)
	if err := row.Scan(
		&auditID, &framework, &a.Institution, &policyType, &a.AuditArea, &status,
		&a.AuditedAt, &a.NextReviewAt, &a.Findings, &a.Recommendations, &auditor,
		&evidenceRef, &a.Active, &seq, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.ID = id.AuditID(auditID)
	a.Framework = id.Framework(framework)
	a.PolicyType = id.PolicyType(policyType)
	a.Status = id.ComplianceStatus(status)
	a.Auditor = id.Principal(auditor)
	a.Evidence = evidence.Ref(evidenceRef)
	return &a, nil
}
