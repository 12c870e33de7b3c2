package policy

import (
	"strings"
	"time"

	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/evidence"
)

// Policy is an institutional governance document tracked per framework.
// Framework statuses start at pending_review and only move when an auditor
// sets them.
type Policy struct {
	ID            id.PolicyID
	Title         string
	Description   string
	Type          id.PolicyType
	Institution   string
	Frameworks    []id.Framework
	EffectiveDate time.Time
	ReviewDate    time.Time
	Creator       id.Principal
	Document      evidence.Ref
	Statuses      map[id.Framework]id.ComplianceStatus
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateRequest carries the caller-supplied policy fields.
type CreateRequest struct {
	Title         string
	Description   string
	Type          id.PolicyType
	Institution   string
	Frameworks    []id.Framework
	EffectiveDate time.Time
	ReviewDate    time.Time
	Document      evidence.Ref
}

// New builds a validated Policy with every listed framework initialized to
// pending_review. The review date must fall strictly after the effective date.
func New(req CreateRequest, creator id.Principal, now time.Time) (*Policy, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "policy title is required")
	}
	if strings.TrimSpace(req.Institution) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "institution name is required")
	}
	if creator.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "creator principal is required")
	}
	if !req.Type.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown policy type %q", req.Type)
	}
	if !req.ReviewDate.After(req.EffectiveDate) {
		return nil, dErrors.New(dErrors.CodeInvalidDateOrdering, "review date must be after effective date")
	}

	statuses := make(map[id.Framework]id.ComplianceStatus, len(req.Frameworks))
	for _, fw := range req.Frameworks {
		statuses[fw] = id.StatusPendingReview
	}

	return &Policy{
		ID:            id.NewPolicyID(),
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Type:          req.Type,
		Institution:   req.Institution,
		Frameworks:    req.Frameworks,
		EffectiveDate: req.EffectiveDate,
		ReviewDate:    req.ReviewDate,
		Creator:       creator,
		Document:      req.Document,
		Statuses:      statuses,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// AppliesTo reports whether the policy lists the framework.
func (p *Policy) AppliesTo(fw id.Framework) bool {
	for _, f := range p.Frameworks {
		if f == fw {
			return true
		}
	}
	return false
}

// CanDeactivate restricts deactivation to the creator or the ledger owner.
func (p *Policy) CanDeactivate(caller, owner id.Principal) error {
	if caller != p.Creator && caller != owner {
		return dErrors.New(dErrors.CodeUnauthorized, "only the policy creator or the owner may deactivate a policy")
	}
	if !p.Active {
		return dErrors.Newf(dErrors.CodeConflict, "policy %s is already inactive", p.ID)
	}
	return nil
}
