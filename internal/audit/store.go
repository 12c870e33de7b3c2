package audit

import (
	"context"
	"time"

	id "credentia/pkg/domain"
)

// Store persists audits keyed by id.
type Store interface {
	Create(ctx context.Context, a *ComplianceAudit) error
	// FindByID fails with sentinel.ErrNotFound when unknown.
	FindByID(ctx context.Context, auditID id.AuditID) (*ComplianceAudit, error)
	// ListByInstitution returns every audit for the institution, active or
	// not, in creation order.
	ListByInstitution(ctx context.Context, institution string) ([]*ComplianceAudit, error)
	// ListDueBetween returns active audits whose next review falls in
	// (after, until], in next-review order.
	ListDueBetween(ctx context.Context, after, until time.Time) ([]*ComplianceAudit, error)
	// Execute locks the audit, runs validate then mutate, and returns the
	// updated snapshot. A validate error aborts the mutation.
	Execute(ctx context.Context, auditID id.AuditID, validate func(*ComplianceAudit) error, mutate func(*ComplianceAudit)) (*ComplianceAudit, error)
}
