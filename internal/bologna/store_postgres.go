package bologna

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "credentia/pkg/domain"
	"credentia/pkg/platform/sentinel"
	txcontext "credentia/pkg/platform/tx"
)

// PostgresStore persists Bologna records in PostgreSQL, one row per
// credential. This store is pure I/O; ECTS/EQF validation lives in the
// service and model.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const bolognaColumns = `
	credential_id, ects_credits, eqf_level, diploma_supplement_issued,
	learning_outcomes, qa_agency, joint_degree, mobility_partners,
	automatic_recognition_eligible, updated_at
`

func (s *PostgresStore) Save(ctx context.Context, data *Data) error {
	outcomes, err := json.Marshal(data.LearningOutcomes)
	if err != nil {
		return fmt.Errorf("encode learning outcomes: %w", err)
	}
	partners, err := json.Marshal(data.MobilityPartners)
	if err != nil {
		return fmt.Errorf("encode mobility partners: %w", err)
	}
	query := `
		INSERT INTO bologna_data (` + bolognaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (credential_id) DO UPDATE SET
			ects_credits = EXCLUDED.ects_credits,
			eqf_level = EXCLUDED.eqf_level,
			diploma_supplement_issued = EXCLUDED.diploma_supplement_issued,
			learning_outcomes = EXCLUDED.learning_outcomes,
			qa_agency = EXCLUDED.qa_agency,
			joint_degree = EXCLUDED.joint_degree,
			mobility_partners = EXCLUDED.mobility_partners,
			automatic_recognition_eligible = EXCLUDED.automatic_recognition_eligible,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(data.CredentialID), data.ECTSCredits, data.EQFLevel,
		data.DiplomaSupplementIssued, outcomes, data.QAAgency,
		data.JointDegree, partners, data.AutomaticRecognitionEligible,
		data.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save bologna data: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByCredential(ctx context.Context, credID id.CredentialID) (*Data, error) {
	query := `SELECT ` + bolognaColumns + ` FROM bologna_data WHERE credential_id = $1`
	data, err := scanData(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(credID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find bologna data: %w", err)
	}
	return data, nil
}

// Execute requires an ambient transaction so the FOR UPDATE row lock spans
// validate and mutate.
func (s *PostgresStore) Execute(ctx context.Context, credID id.CredentialID, validate func(*Data) error, mutate func(*Data)) (*Data, error) {
	execer := s.execer(ctx)
	query := `SELECT ` + bolognaColumns + ` FROM bologna_data WHERE credential_id = $1 FOR UPDATE`
	data, err := scanData(execer.QueryRowContext(ctx, query, uuid.UUID(credID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock bologna data: %w", err)
	}

	if err := validate(data); err != nil {
		return nil, err
	}
	mutate(data)

	update := `
		UPDATE bologna_data SET
			ects_credits = $2, automatic_recognition_eligible = $3, updated_at = $4
		WHERE credential_id = $1
	`
	_, err = execer.ExecContext(ctx, update,
		uuid.UUID(data.CredentialID), data.ECTSCredits,
		data.AutomaticRecognitionEligible, data.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update bologna data: %w", err)
	}
	return data, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanData(row rowScanner) (*Data, error) {
	var (
		data     Data
		credID   uuid.UUID
		outcomes []byte
		partners []byte
	)
	if err := row.Scan(
		&credID, &data.ECTSCredits, &data.EQFLevel, &data.DiplomaSupplementIssued,
		&outcomes, &data.QAAgency, &data.JointDegree, &partners,
		&data.AutomaticRecognitionEligible, &data.UpdatedAt,
	); err != nil {
		return nil, err
	}
	data.CredentialID = id.CredentialID(credID)
	if err := json.Unmarshal(outcomes, &data.LearningOutcomes); err != nil {
		return nil, fmt.Errorf("decode learning outcomes: %w", err)
	}
	if err := json.Unmarshal(partners, &data.MobilityPartners); err != nil {
		return nil, fmt.Errorf("decode mobility partners: %w", err)
	}
	return &data, nil
}
