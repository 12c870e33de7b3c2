package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "credentia/pkg/domain"
	"credentia/pkg/evidence"
	"credentia/pkg/platform/sentinel"
	txcontext "credentia/pkg/platform/tx"
)

// PostgresStore persists credentials in PostgreSQL. The per-student index is
// derived from the student column with an ordered query rather than a
// separate table; issued_at plus id gives a stable insertion order.
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

const credentialColumns = `
	id, student, external_student_id, credential_type, title, institution,
	program, grade, credits, issued_at, completed_at, evidence_ref,
	frameworks, framework_compliance, active, seq, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, cred *Credential) error {
	frameworks, err := json.Marshal(cred.Frameworks)
	if err != nil {
		return fmt.Errorf("encode frameworks: %w", err)
	}
	compliance, err := json.Marshal(cred.FrameworkCompliance)
	if err != nil {
		return fmt.Errorf("encode framework compliance: %w", err)
	}
	query := `
		INSERT INTO credentials (
			id, student, external_student_id, credential_type, title, institution,
			program, grade, credits, issued_at, completed_at, evidence_ref,
			frameworks, framework_compliance, active, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(cred.ID), cred.Student.String(), cred.ExternalStudentID,
		string(cred.Type), cred.Title, cred.Institution,
		cred.Program, cred.Grade, cred.Credits, cred.IssuedAt,
		nullableTime(cred.CompletedAt), cred.Evidence.String(),
		frameworks, compliance, cred.Active, cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credID id.CredentialID) (*Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	cred, err := scanCredential(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(credID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return cred, nil
}

func (s *PostgresStore) ListByStudent(ctx context.Context, student id.Principal) ([]*Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE student = $1 ORDER BY seq`
	rows, err := s.execer(ctx).QueryContext(ctx, query, student.String())
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []*Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

// Execute requires an ambient transaction so the FOR UPDATE row lock spans
// validate and mutate.
func (s *PostgresStore) Execute(ctx context.Context, credID id.CredentialID, validate func(*Credential) error, mutate func(*Credential)) (*Credential, error) {
	execer := s.execer(ctx)
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1 FOR UPDATE`
	cred, err := scanCredential(execer.QueryRowContext(ctx, query, uuid.UUID(credID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock credential: %w", err)
	}

	if err := validate(cred); err != nil {
		return nil, err
	}
	mutate(cred)

	compliance, err := json.Marshal(cred.FrameworkCompliance)
	if err != nil {
		return nil, fmt.Errorf("encode framework compliance: %w", err)
	}
	update := `
		UPDATE credentials SET
			framework_compliance = $2, active = $3, updated_at = $4
		WHERE id = $1
	`
	_, err = execer.ExecContext(ctx, update,
		uuid.UUID(cred.ID), compliance, cred.Active, cred.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update credential: %w", err)
	}
	return cred, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*Credential, error) {
	var (
		cred        Credential
		credID      uuid.UUID
		student     string
		credType    string
		evidenceRef string
		completedAt sql.NullTime
		frameworks  []byte
		compliance  []byte
		seq         int64
	)
	if err := row.Scan(
		&credID, &student, &cred.ExternalStudentID, &credType, &cred.Title, &cred.Institution,
		&cred.Program, &cred.Grade, &cred.Credits, &cred.IssuedAt, &completedAt, &evidenceRef,
		&frameworks, &compliance, &cred.Active, &seq, &cred.UpdatedAt,
	); err != nil {
		return nil, err
	}
	cred.ID = id.CredentialID(credID)
	cred.Student = id.Principal(student)
	cred.Type = id.CredentialType(credType)
	cred.Evidence = evidence.Ref(evidenceRef)
	if completedAt.Valid {
		cred.CompletedAt = completedAt.Time
	}
	if err := json.Unmarshal(frameworks, &cred.Frameworks); err != nil {
		return nil, fmt.Errorf("decode frameworks: %w", err)
	}
	if err := json.Unmarshal(compliance, &cred.FrameworkCompliance); err != nil {
		return nil, fmt.Errorf("decode framework compliance: %w", err)
	}
	return &cred, nil
}
