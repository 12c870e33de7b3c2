package policy

import (
	"context"
	"errors"

	"credentia/internal/authz"
	"credentia/internal/institution"
	"credentia/internal/notify"
	"credentia/internal/platform/metrics"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/platform/sentinel"
	"credentia/pkg/requestcontext"
)

// Service manages institutional policies and their per-framework compliance
// statuses. Policy creation is deliberately open: any principal may file a
// policy, but the statuses only move once an authorized auditor sets them.
type Service struct {
	store        Store
	institutions institution.Store
	authz        *authz.Service
	notifier     notify.Notifier
	metrics      *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics installs Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, institutions institution.Store, authzSvc *authz.Service, notifier notify.Notifier, opts ...Option) *Service {
	s := &Service{
		store:        store,
		institutions: institutions,
		authz:        authzSvc,
		notifier:     notifier,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new policy with every listed framework at
// pending_review. The owning institution must be registered; it does not have
// to be active, since policies document governance history as much as current
// practice.
//
// Errors: CodeInvalidInput for missing fields, CodeInvalidDateOrdering when
// the review date does not fall after the effective date, CodeNotFound for an
// unregistered institution.
func (s *Service) Create(ctx context.Context, caller id.Principal, req CreateRequest) (*Policy, error) {
	p, err := New(req, caller, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	inst, err := s.institutions.FindByName(ctx, req.Institution)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "institution %q is not registered", req.Institution)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up institution")
	}
	// Normalize to the registered spelling so the institution index is
	// consistent.
	p.Institution = inst.Name

	if err := s.store.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store policy")
	}
	s.metrics.IncrementPoliciesCreated()

	s.notifier.Emit(ctx, notify.Event{
		Type:        notify.EventPolicyCreated,
		Actor:       caller,
		Institution: p.Institution,
		Subject:     p.ID.String(),
		Attrs: map[string]string{
			"title":       p.Title,
			"policy_type": p.Type.String(),
		},
	})
	return p, nil
}

// UpdateFrameworkStatus overwrites a single framework's status on an active
// policy. Auditor capability is required; the framework must be listed on the
// policy.
func (s *Service) UpdateFrameworkStatus(ctx context.Context, caller id.Principal, policyID id.PolicyID, framework id.Framework, status id.ComplianceStatus) error {
	if err := s.authz.RequireAuditor(ctx, caller); err != nil {
		return err
	}
	if !status.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance status %q", status)
	}

	now := requestcontext.Now(ctx)
	p, err := s.store.Execute(ctx, policyID,
		func(p *Policy) error {
			if !p.Active {
				return dErrors.Newf(dErrors.CodeConflict, "policy %s is inactive", policyID)
			}
			if !p.AppliesTo(framework) {
				return dErrors.Newf(dErrors.CodeFrameworkNotApplicable,
					"framework %s is not listed on policy %s", framework, policyID)
			}
			return nil
		},
		func(p *Policy) {
			p.Statuses[framework] = status
			p.UpdatedAt = now
		},
	)
	if err != nil {
		return s.wrapStoreErr(err, policyID)
	}

	s.notifier.Emit(ctx, notify.Event{
		Type:        notify.EventPolicyUpdated,
		Actor:       caller,
		Institution: p.Institution,
		Subject:     policyID.String(),
		Attrs: map[string]string{
			"framework": framework.String(),
			"status":    status.String(),
		},
	})
	return nil
}

// Deactivate retires a policy. Only the original creator or the ledger owner
// may do so; a second deactivation fails with CodeConflict.
func (s *Service) Deactivate(ctx context.Context, caller id.Principal, policyID id.PolicyID) error {
	now := requestcontext.Now(ctx)
	p, err := s.store.Execute(ctx, policyID,
		func(p *Policy) error {
			return p.CanDeactivate(caller, s.authz.Owner())
		},
		func(p *Policy) {
			p.Active = false
			p.UpdatedAt = now
		},
	)
	if err != nil {
		return s.wrapStoreErr(err, policyID)
	}

	s.notifier.Emit(ctx, notify.Event{
		Type:        notify.EventPolicyUpdated,
		Actor:       caller,
		Institution: p.Institution,
		Subject:     policyID.String(),
		Attrs:       map[string]string{"change": "deactivated"},
	})
	return nil
}

// Get returns a policy snapshot.
func (s *Service) Get(ctx context.Context, policyID id.PolicyID) (*Policy, error) {
	p, err := s.store.FindByID(ctx, policyID)
	if err != nil {
		return nil, s.wrapStoreErr(err, policyID)
	}
	return p, nil
}

// ListByInstitution returns an institution's policies in creation order.
func (s *Service) ListByInstitution(ctx context.Context, institutionName string) ([]*Policy, error) {
	policies, err := s.store.ListByInstitution(ctx, institutionName)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return policies, nil
}

func (s *Service) wrapStoreErr(err error, policyID id.PolicyID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "policy %s does not exist", policyID)
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "policy store failure")
}
