package institution

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	id "credentia/pkg/domain"
	"credentia/pkg/platform/sentinel"
	txcontext "credentia/pkg/platform/tx"
)

// PostgresStore persists institutions in PostgreSQL. Compliance summary maps
// are stored as JSONB; audit history as a text array column would lose
// ordering guarantees across drivers, so it is JSONB too.
// This store is pure I/O; invariants live in the model and service.
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

const institutionColumns = `
	name, accreditation, admin_principal, frameworks, active,
	compliance_statuses, last_audit_dates, next_audit_dates, audit_history,
	created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, inst *Institution) error {
	row, err := encodeInstitution(inst)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO institutions (` + institutionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (lower(name)) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		row.name, row.accreditation, row.admin, row.frameworks, row.active,
		row.statuses, row.lastDates, row.nextDates, row.history,
		row.createdAt, row.updatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert institution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert institution: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE lower(name) = lower($1)`
	inst, err := scanInstitution(s.execer(ctx).QueryRowContext(ctx, query, strings.TrimSpace(name)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find institution: %w", err)
	}
	return inst, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions ORDER BY name`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	defer rows.Close()

	var out []*Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// Execute requires an ambient transaction (tx.Runner) so the FOR UPDATE row
// lock spans validate and mutate and releases on commit.
func (s *PostgresStore) Execute(ctx context.Context, name string, validate func(*Institution) error, mutate func(*Institution)) (*Institution, error) {
	execer := s.execer(ctx)
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE lower(name) = lower($1) FOR UPDATE`
	inst, err := scanInstitution(execer.QueryRowContext(ctx, query, strings.TrimSpace(name)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock institution: %w", err)
	}

	if err := validate(inst); err != nil {
		return nil, err
	}
	mutate(inst)

	row, err := encodeInstitution(inst)
	if err != nil {
		return nil, err
	}
	update := `
		UPDATE institutions SET
			accreditation = $2, admin_principal = $3, frameworks = $4, active = $5,
			compliance_statuses = $6, last_audit_dates = $7, next_audit_dates = $8,
			audit_history = $9, updated_at = $10
		WHERE lower(name) = lower($1)
	`
	_, err = execer.ExecContext(ctx, update,
		row.name, row.accreditation, row.admin, row.frameworks, row.active,
		row.statuses, row.lastDates, row.nextDates, row.history, row.updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update institution: %w", err)
	}
	return inst, nil
}

type institutionRow struct {
	name          string
	accreditation string
	admin         string
	frameworks    []byte
	active        bool
	statuses      []byte
	lastDates     []byte
	nextDates     []byte
	history       []byte
	createdAt     time.Time
	updatedAt     time.Time
}

func encodeInstitution(inst *Institution) (*institutionRow, error) {
	frameworks, err := json.Marshal(inst.Frameworks)
	if err != nil {
		return nil, fmt.Errorf("encode frameworks: %w", err)
	}
	statuses, err := json.Marshal(inst.ComplianceStatuses)
	if err != nil {
		return nil, fmt.Errorf("encode compliance statuses: %w", err)
	}
	lastDates, err := json.Marshal(inst.LastAuditDates)
	if err != nil {
		return nil, fmt.Errorf("encode last audit dates: %w", err)
	}
	nextDates, err := json.Marshal(inst.NextAuditDates)
	if err != nil {
		return nil, fmt.Errorf("encode next audit dates: %w", err)
	}
	history, err := json.Marshal(inst.AuditHistory)
	if err != nil {
		return nil, fmt.Errorf("encode audit history: %w", err)
	}
	return &institutionRow{
		name:          inst.Name,
		accreditation: inst.Accreditation,
		admin:         inst.Admin.String(),
		frameworks:    frameworks,
		active:        inst.Active,
		statuses:      statuses,
		lastDates:     lastDates,
		nextDates:     nextDates,
		history:       history,
		createdAt:     inst.CreatedAt,
		updatedAt:     inst.UpdatedAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstitution(row rowScanner) (*Institution, error) {
	var r institutionRow
	if err := row.Scan(
		&r.name, &r.accreditation, &r.admin, &r.frameworks, &r.active,
		&r.statuses, &r.lastDates, &r.nextDates, &r.history,
		&r.createdAt, &r.updatedAt,
	); err != nil {
		return nil, err
	}

	inst := &Institution{
		Name:          r.name,
		Accreditation: r.accreditation,
		Admin:         id.Principal(r.admin),
		Active:        r.active,
		CreatedAt:     r.createdAt,
		UpdatedAt:     r.updatedAt,
	}
	if err := json.Unmarshal(r.frameworks, &inst.Frameworks); err != nil {
		return nil, fmt.Errorf("decode frameworks: %w", err)
	}
	if err := json.Unmarshal(r.statuses, &inst.ComplianceStatuses); err != nil {
		return nil, fmt.Errorf("decode compliance statuses: %w", err)
	}
	if err := json.Unmarshal(r.lastDates, &inst.LastAuditDates); err != nil {
		return nil, fmt.Errorf("decode last audit dates: %w", err)
	}
	if err := json.Unmarshal(r.nextDates, &inst.NextAuditDates); err != nil {
		return nil, fmt.Errorf("decode next audit dates: %w", err)
	}
	if err := json.Unmarshal(r.history, &inst.AuditHistory); err != nil {
		return nil, fmt.Errorf("decode audit history: %w", err)
	}
	return inst, nil
}
