package credential

import (
	"time"

	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/evidence"
)

// Credential is an issued academic credential. It is never deleted:
// revocation flips the active flag and preserves the full record for
// auditability.
//
// Invariants:
//   - Student, ExternalStudentID, and Title are non-empty
//   - FrameworkCompliance holds an entry only for frameworks in Frameworks
//   - Credits is non-negative
type Credential struct {
	ID                id.CredentialID
	Student           id.Principal
	ExternalStudentID string
	Type              id.CredentialType
	Title             string
	Institution       string
	Program           string
	Grade             string
	Credits           int
	IssuedAt          time.Time
	CompletedAt       time.Time
	Evidence          evidence.Ref
	Frameworks        []id.Framework
	// FrameworkCompliance starts true for every applicable framework: the
	// issuer asserts compliance at issuance time, later corroborated or
	// contradicted by audits against the institution.
	FrameworkCompliance map[id.Framework]bool
	Active              bool
	UpdatedAt           time.Time
}

// IssueRequest carries the caller-supplied fields for a new credential.
type IssueRequest struct {
	Student           id.Principal
	ExternalStudentID string
	Type              id.CredentialType
	Title             string
	Institution       string
	Program           string
	Grade             string
	Credits           int
	CompletedAt       time.Time
	Evidence          evidence.Ref
	Frameworks        []id.Framework
}

// New validates an IssueRequest and constructs an active credential.
func New(req IssueRequest, now time.Time) (*Credential, error) {
	if req.Student.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "student principal is required")
	}
	if req.ExternalStudentID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "external student id is required")
	}
	if req.Title == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential title is required")
	}
	if !req.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential type is invalid")
	}
	if req.Credits < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credits cannot be negative")
	}

	compliance := make(map[id.Framework]bool, len(req.Frameworks))
	for _, f := range req.Frameworks {
		compliance[f] = true
	}

	return &Credential{
		ID:                  id.NewCredentialID(),
		Student:             req.Student,
		ExternalStudentID:   req.ExternalStudentID,
		Type:                req.Type,
		Title:               req.Title,
		Institution:         req.Institution,
		Program:             req.Program,
		Grade:               req.Grade,
		Credits:             req.Credits,
		IssuedAt:            now,
		CompletedAt:         req.CompletedAt,
		Evidence:            req.Evidence,
		Frameworks:          req.Frameworks,
		FrameworkCompliance: compliance,
		Active:              true,
		UpdatedAt:           now,
	}, nil
}

// AppliesTo reports whether the framework is in the credential's applicable set.
func (c *Credential) AppliesTo(framework id.Framework) bool {
	for _, f := range c.Frameworks {
		if f == framework {
			return true
		}
	}
	return false
}

// VerificationResult is the read model returned by Verify. Valid is true iff
// the credential is active and its institution is active.
type VerificationResult struct {
	Valid       bool         `json:"valid"`
	Student     id.Principal `json:"student"`
	Title       string       `json:"title"`
	Institution string       `json:"institution"`
	IssuedAt    time.Time    `json:"issued_at"`
	Active      bool         `json:"active"`
}
