package audit

import (
	"context"
	"errors"
	"time"

	"credentia/internal/authz"
	"credentia/internal/institution"
	"credentia/internal/notify"
	"credentia/internal/platform/metrics"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/platform/sentinel"
	"credentia/pkg/platform/tx"
	"credentia/pkg/requestcontext"
)

// Service is the compliance audit ledger. Recording an audit is the only way
// an institution's per-framework summary status moves: every write here
// propagates to the institution aggregate inside the same transaction, so the
// summary map and the ledger can never disagree.
type Service struct {
	store        Store
	institutions institution.Store
	authz        *authz.Service
	notifier     notify.Notifier
	runner       tx.Runner
	metrics      *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics installs Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, institutions institution.Store, authzSvc *authz.Service, notifier notify.Notifier, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:        store,
		institutions: institutions,
		authz:        authzSvc,
		notifier:     notifier,
		runner:       runner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create appends an audit to the ledger and overwrites the institution's
// summary status for the audited framework, recording the audit date, the
// next review date, and the history entry in the same transaction.
//
// Errors: CodeUnauthorized without auditor capability, CodeInvalidInput for
// missing or out-of-range fields, CodeInvalidDateOrdering when the next
// review is not strictly in the future, CodeNotFound for an unregistered
// institution.
func (s *Service) Create(ctx context.Context, caller id.Principal, req CreateRequest) (*ComplianceAudit, error) {
	if err := s.authz.RequireAuditor(ctx, caller); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	a, err := New(req, caller, now)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.institutions.Execute(ctx, a.Institution,
			func(*institution.Institution) error { return nil },
			func(inst *institution.Institution) {
				// Normalize to the registered spelling so history lookups and
				// the summary recompute see every audit for the institution.
				a.Institution = inst.Name
				inst.RecordAudit(a.ID, a.Framework, a.Status, a.AuditedAt, a.NextReviewAt)
			},
		); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeNotFound, "institution %q is not registered", a.Institution)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update institution summary")
		}
		if err := s.store.Create(ctx, a); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store audit")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementAuditsRecorded(a.Framework.String())

	s.notifier.Emit(ctx, notify.Event{
		Type:        notify.EventAuditRecorded,
		Actor:       caller,
		Institution: a.Institution,
		Subject:     a.ID.String(),
		Attrs: map[string]string{
			"framework": a.Framework.String(),
			"status":    a.Status.String(),
		},
	})
	s.emitStatusChange(ctx, caller, a.Institution, a.Framework, a.Status.String())
	return a, nil
}

// UpdateStatus mutates an active audit in place and re-propagates the new
// status to the institution summary. The most recently written audit wins,
// whether that write was a creation or an update.
func (s *Service) UpdateStatus(ctx context.Context, caller id.Principal, auditID id.AuditID, update StatusUpdate) (*ComplianceAudit, error) {
	if err := s.authz.RequireAuditor(ctx, caller); err != nil {
		return nil, err
	}
	if !update.Status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance status %q", update.Status)
	}

	now := requestcontext.Now(ctx)
	var a *ComplianceAudit
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.store.Execute(ctx, auditID,
			func(a *ComplianceAudit) error {
				if !a.Active {
					return dErrors.Newf(dErrors.CodeConflict, "audit %s is deactivated", auditID)
				}
				return nil
			},
			func(a *ComplianceAudit) {
				a.Status = update.Status
				if update.Findings != nil {
					a.Findings = *update.Findings
				}
				if update.Recommendations != nil {
					a.Recommendations = *update.Recommendations
				}
				a.UpdatedAt = now
			},
		)
		if err != nil {
			return s.wrapStoreErr(err, auditID)
		}

		_, err = s.institutions.Execute(ctx, a.Institution,
			func(*institution.Institution) error { return nil },
			func(inst *institution.Institution) {
				inst.SetFrameworkStatus(a.Framework, a.Status, now)
			},
		)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update institution summary")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitStatusChange(ctx, caller, a.Institution, a.Framework, a.Status.String())
	return a, nil
}

// Deactivate flags an audit as superseded or incorrect without deleting it,
// then recomputes the institution's summary for the audited framework from
// the remaining active audits. Deactivating twice is a no-op.
func (s *Service) Deactivate(ctx context.Context, caller id.Principal, auditID id.AuditID) error {
	if err := s.authz.RequireAuditor(ctx, caller); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	alreadyInactive := false
	var a *ComplianceAudit
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.store.Execute(ctx, auditID,
			func(a *ComplianceAudit) error {
				alreadyInactive = !a.Active
				return nil
			},
			func(a *ComplianceAudit) {
				if alreadyInactive {
					return
				}
				a.Active = false
				a.UpdatedAt = now
			},
		)
		if err != nil {
			return s.wrapStoreErr(err, auditID)
		}
		if alreadyInactive {
			return nil
		}
		return s.recomputeFramework(ctx, a.Institution, a.Framework, now)
	})
	if err != nil || alreadyInactive {
		return err
	}

	s.emitStatusChange(ctx, caller, a.Institution, a.Framework, "recomputed")
	return nil
}

// recomputeFramework rebuilds the institution's summary entry for one
// framework from the most recently written active audit, or clears it when
// none remain.
func (s *Service) recomputeFramework(ctx context.Context, institutionName string, framework id.Framework, now time.Time) error {
	audits, err := s.store.ListByInstitution(ctx, institutionName)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audits")
	}

	var latest *ComplianceAudit
	for _, candidate := range audits {
		if !candidate.Active || candidate.Framework != framework {
			continue
		}
		if latest == nil || candidate.UpdatedAt.After(latest.UpdatedAt) {
			latest = candidate
		}
	}

	_, err = s.institutions.Execute(ctx, institutionName,
		func(*institution.Institution) error { return nil },
		func(inst *institution.Institution) {
			if latest == nil {
				inst.ClearFrameworkStatus(framework, now)
				return
			}
			inst.SetFrameworkStatus(framework, latest.Status, now)
		},
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update institution summary")
	}
	return nil
}

// Upcoming returns active audits whose next review falls within
// (now, now+daysAhead], soonest first.
func (s *Service) Upcoming(ctx context.Context, daysAhead int) ([]*ComplianceAudit, error) {
	if daysAhead <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "days ahead must be positive")
	}
	now := requestcontext.Now(ctx)
	audits, err := s.store.ListDueBetween(ctx, now, now.AddDate(0, 0, daysAhead))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list upcoming audits")
	}
	return audits, nil
}

// InstitutionSummary aggregates the institution's current per-framework
// statuses over the closed framework set. Frameworks without an audit on
// record contribute to no bucket.
func (s *Service) InstitutionSummary(ctx context.Context, institutionName string) (Summary, error) {
	inst, err := s.institutions.FindByName(ctx, institutionName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Summary{}, dErrors.Newf(dErrors.CodeNotFound, "institution %q is not registered", institutionName)
		}
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up institution")
	}

	summary := Summary{TotalAudits: len(inst.AuditHistory)}
	for _, fw := range id.Frameworks() {
		status, ok := inst.ComplianceStatuses[fw]
		if !ok {
			continue
		}
		switch status {
		case id.StatusCompliant, id.StatusConditionallyCompliant:
			summary.CompliantFrameworks++
		case id.StatusNonCompliant:
			summary.NonCompliantFrameworks++
		case id.StatusUnderReview, id.StatusPendingReview:
			summary.UnderReviewFrameworks++
		}
	}
	return summary, nil
}

// Get returns an audit snapshot.
func (s *Service) Get(ctx context.Context, auditID id.AuditID) (*ComplianceAudit, error) {
	a, err := s.store.FindByID(ctx, auditID)
	if err != nil {
		return nil, s.wrapStoreErr(err, auditID)
	}
	return a, nil
}

// History returns every audit ever recorded for an institution, including
// deactivated ones, in creation order.
func (s *Service) History(ctx context.Context, institutionName string) ([]*ComplianceAudit, error) {
	audits, err := s.store.ListByInstitution(ctx, institutionName)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audits")
	}
	return audits, nil
}

func (s *Service) emitStatusChange(ctx context.Context, actor id.Principal, institutionName string, framework id.Framework, status string) {
	s.notifier.Emit(ctx, notify.Event{
		Type:        notify.EventComplianceStatusUpdated,
		Actor:       actor,
		Institution: institutionName,
		Subject:     framework.String(),
		Attrs:       map[string]string{"status": status},
	})
}

func (s *Service) wrapStoreErr(err error, auditID id.AuditID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "audit %s does not exist", auditID)
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "audit store failure")
}
