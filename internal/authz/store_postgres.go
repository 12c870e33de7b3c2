package authz

import (
	"context"
	"database/sql"
	"fmt"

	id "credentia/pkg/domain"
	txcontext "credentia/pkg/platform/tx"
)

// PostgresStore persists capability grants in PostgreSQL.
// This store is pure I/O; authorization decisions belong in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, grant Grant) error {
	query := `
		INSERT INTO authz_grants (principal, role, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (principal, role) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		grant.Principal.String(),
		string(grant.Role),
		grant.GrantedBy.String(),
		grant.GrantedAt,
	)
	if err != nil {
		return fmt.Errorf("save grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, principal id.Principal, role Role) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM authz_grants WHERE principal = $1 AND role = $2`,
		principal.String(), string(role),
	)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Has(ctx context.Context, principal id.Principal, role Role) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM authz_grants WHERE principal = $1 AND role = $2)`,
		principal.String(), string(role),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context, role Role) ([]Grant, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT principal, role, granted_by, granted_at FROM authz_grants WHERE role = $1 ORDER BY granted_at`,
		string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var g Grant
		var principal, grantRole, grantedBy string
		if err := rows.Scan(&principal, &grantRole, &grantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.Principal = id.Principal(principal)
		g.Role = Role(grantRole)
		g.GrantedBy = id.Principal(grantedBy)
		out = append(out, g)
	}
	return out, rows.Err()
}
