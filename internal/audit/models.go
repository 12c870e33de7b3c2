package audit

import (
	"strings"
	"time"

	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/evidence"
)

// ComplianceAudit is one ledger entry for an (institution, framework) pair.
// The ledger is append-only: audits are never deleted, and a superseded or
// incorrect audit is deactivated rather than removed.
//
// UpdatedAt tracks the most recent write to the record; the institution's
// summary status for a framework follows the active audit with the latest
// UpdatedAt, not the latest AuditedAt.
type ComplianceAudit struct {
	ID              id.AuditID
	Framework       id.Framework
	Institution     string
	PolicyType      id.PolicyType
	AuditArea       string
	Status          id.ComplianceStatus
	AuditedAt       time.Time
	NextReviewAt    time.Time
	Findings        string
	Recommendations string
	Auditor         id.Principal
	Evidence        evidence.Ref
	Active          bool
	UpdatedAt       time.Time
}

// CreateRequest carries the caller-supplied audit fields.
type CreateRequest struct {
	Framework       id.Framework
	Institution     string
	PolicyType      id.PolicyType
	AuditArea       string
	Status          id.ComplianceStatus
	NextReviewAt    time.Time
	Findings        string
	Recommendations string
	Evidence        evidence.Ref
}

// New builds a validated, active audit stamped at now. The next review must
// fall strictly after the creation time.
func New(req CreateRequest, auditor id.Principal, now time.Time) (*ComplianceAudit, error) {
	if strings.TrimSpace(req.Institution) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "institution name is required")
	}
	if strings.TrimSpace(req.AuditArea) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit area is required")
	}
	if !req.Framework.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown framework %q", req.Framework)
	}
	if !req.PolicyType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown policy type %q", req.PolicyType)
	}
	if !req.Status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance status %q", req.Status)
	}
	if !req.NextReviewAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvalidDateOrdering, "next review date must be in the future")
	}

	return &ComplianceAudit{
		ID:              id.NewAuditID(),
		Framework:       req.Framework,
		Institution:     req.Institution,
		PolicyType:      req.PolicyType,
		AuditArea:       req.AuditArea,
		Status:          req.Status,
		AuditedAt:       now,
		NextReviewAt:    req.NextReviewAt,
		Findings:        req.Findings,
		Recommendations: req.Recommendations,
		Auditor:         auditor,
		Evidence:        req.Evidence,
		Active:          true,
		UpdatedAt:       now,
	}, nil
}

// StatusUpdate carries the mutable fields of UpdateStatus. Nil findings or
// recommendations leave the stored text untouched.
type StatusUpdate struct {
	Status          id.ComplianceStatus
	Findings        *string
	Recommendations *string
}

// Summary aggregates an institution's current per-framework statuses across
// the closed framework set, plus the total number of audits ever recorded.
type Summary struct {
	TotalAudits            int `json:"total_audits"`
	CompliantFrameworks    int `json:"compliant_frameworks"`
	NonCompliantFrameworks int `json:"non_compliant_frameworks"`
	UnderReviewFrameworks  int `json:"under_review_frameworks"`
}
