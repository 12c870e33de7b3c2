package institution

import (
	"time"

	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
)

// Institution is the aggregate root for a registered institution. The
// per-framework compliance fields are denormalized summary state driven
// exclusively by the audit ledger: the status for a framework always mirrors
// the most recently written active audit for it, and absence of a map entry
// means "no audit on record".
//
// Invariants:
//   - Name is non-empty and unique case-insensitively among active records
//   - Admin is a non-zero principal
//   - Deactivation is soft: history, credentials, and audits are retained
type Institution struct {
	Name          string
	Accreditation string
	Admin         id.Principal
	Frameworks    []id.Framework
	Active        bool

	// Compliance summary, one entry per framework that has at least one audit.
	ComplianceStatuses map[id.Framework]id.ComplianceStatus
	LastAuditDates     map[id.Framework]time.Time
	NextAuditDates     map[id.Framework]time.Time
	AuditHistory       []id.AuditID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New validates and constructs a registered, active institution.
func New(name, accreditation string, admin id.Principal, frameworks []id.Framework, now time.Time) (*Institution, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "institution name is required")
	}
	if admin.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "institution admin principal is required")
	}
	return &Institution{
		Name:               name,
		Accreditation:      accreditation,
		Admin:              admin,
		Frameworks:         frameworks,
		Active:             true,
		ComplianceStatuses: make(map[id.Framework]id.ComplianceStatus),
		LastAuditDates:     make(map[id.Framework]time.Time),
		NextAuditDates:     make(map[id.Framework]time.Time),
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// CanDeactivate checks the active → inactive transition.
func (i *Institution) CanDeactivate() error {
	if !i.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "institution is already inactive")
	}
	return nil
}

// ApplyDeactivation flips the active flag. Call CanDeactivate first.
func (i *Institution) ApplyDeactivation(now time.Time) {
	i.Active = false
	i.UpdatedAt = now
}

// CanReactivate checks the inactive → active transition.
func (i *Institution) CanReactivate() error {
	if i.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "institution is already active")
	}
	return nil
}

// ApplyReactivation flips the active flag. Call CanReactivate first.
func (i *Institution) ApplyReactivation(now time.Time) {
	i.Active = true
	i.UpdatedAt = now
}

// RecordAudit updates the compliance summary for one framework and appends
// the audit to the institution's history.
func (i *Institution) RecordAudit(auditID id.AuditID, framework id.Framework, status id.ComplianceStatus, auditedAt, nextReview time.Time) {
	if i.ComplianceStatuses == nil {
		i.ComplianceStatuses = make(map[id.Framework]id.ComplianceStatus)
	}
	if i.LastAuditDates == nil {
		i.LastAuditDates = make(map[id.Framework]time.Time)
	}
	if i.NextAuditDates == nil {
		i.NextAuditDates = make(map[id.Framework]time.Time)
	}
	i.ComplianceStatuses[framework] = status
	i.LastAuditDates[framework] = auditedAt
	i.NextAuditDates[framework] = nextReview
	i.AuditHistory = append(i.AuditHistory, auditID)
	i.UpdatedAt = auditedAt
}

// SetFrameworkStatus overwrites the summary status for one framework without
// touching audit dates or history. Used when an existing audit is updated.
func (i *Institution) SetFrameworkStatus(framework id.Framework, status id.ComplianceStatus, now time.Time) {
	if i.ComplianceStatuses == nil {
		i.ComplianceStatuses = make(map[id.Framework]id.ComplianceStatus)
	}
	i.ComplianceStatuses[framework] = status
	i.UpdatedAt = now
}

// ClearFrameworkStatus removes the summary entry for a framework, returning
// it to "no audit on record". Used when the last active audit for the
// framework is deactivated.
func (i *Institution) ClearFrameworkStatus(framework id.Framework, now time.Time) {
	delete(i.ComplianceStatuses, framework)
	delete(i.LastAuditDates, framework)
	delete(i.NextAuditDates, framework)
	i.UpdatedAt = now
}
