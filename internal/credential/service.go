package credential

import (
	"context"
	"errors"
	"fmt"

	"credentia/internal/authz"
	"credentia/internal/institution"
	"credentia/internal/notify"
	"credentia/internal/platform/metrics"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/platform/sentinel"
	"credentia/pkg/requestcontext"
)

// Service orchestrates credential issuance and lifecycle. Every mutation is
// gated by the authorization manager; issuance additionally requires the
// owning institution to be registered and active.
type Service struct {
	store        Store
	institutions institution.Store
	authz        *authz.Service
	notifier     notify.Notifier
	cache        VerificationCache
	metrics      *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithCache installs a read-through cache for Verify.
func WithCache(cache VerificationCache) Option {
	return func(s *Service) { s.cache = cache }
}

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

// Issue creates a credential for a student.
//
// Errors: CodeUnauthorized for callers without issuer capability,
// CodeNotFound for an unregistered institution, CodeInstitutionInactive for a
// deactivated one, CodeInvalidInput for missing required fields.
func (s *Service) Issue(ctx context.Context, caller id.Principal, req IssueRequest) (*Credential, error) {
	if err := s.authz.RequireIssuer(ctx, caller); err != nil {
		return nil, err
	}

	inst, err := s.institutions.FindByName(ctx, req.Institution)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "institution %q is not registered", req.Institution)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up institution")
	}
	if !inst.Active {
		return nil, dErrors.Newf(dErrors.CodeInstitutionInactive, "institution %q is deactivated", inst.Name)
	}
	// Normalize to the registered spelling so the index is consistent.
	req.Institution = inst.Name

	cred, err := New(req, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, cred); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}

	s.metrics.IncrementCredentialsIssued()
	s.notifier.Emit(ctx, notify.Event{
		Type:        notify.EventCredentialIssued,
		Actor:       caller,
		Institution: cred.Institution,
		Subject:     cred.ID.String(),
		Attrs: map[string]string{
			"student": cred.Student.String(),
			"type":    cred.Type.String(),
		},
	})
	return cred, nil
}

// Verify reports whether a credential is currently valid: active and issued
// by an institution that is itself active. Read-only and cacheable.
func (s *Service) Verify(ctx context.Context, credID id.CredentialID) (*VerificationResult, error) {
	if s.cache != nil {
		if result, ok := s.cache.Get(ctx, credID); ok {
			s.metrics.ObserveVerification(true)
			return result, nil
		}
		s.metrics.ObserveVerification(false)
	}

	cred, err := s.findCredential(ctx, credID)
	if err != nil {
		return nil, err
	}

	institutionActive := false
	inst, err := s.institutions.FindByName(ctx, cred.Institution)
	if err == nil {
		institutionActive = inst.Active
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up institution")
	}

	result := &VerificationResult{
		Valid:       cred.Active && institutionActive,
		Student:     cred.Student,
		Title:       cred.Title,
		Institution: cred.Institution,
		IssuedAt:    cred.IssuedAt,
		Active:      cred.Active,
	}
	if s.cache != nil {
		s.cache.Set(ctx, credID, result)
	}
	return result, nil
}

// Revoke flips the credential inactive. Idempotent: revoking an already
// revoked credential is a no-op, not an error.
func (s *Service) Revoke(ctx context.Context, caller id.Principal, credID id.CredentialID) error {
	if err := s.authz.RequireIssuer(ctx, caller); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	alreadyRevoked := false
	_, err := s.store.Execute(ctx, credID,
		func(c *Credential) error {
			alreadyRevoked = !c.Active
			return nil
		},
		func(c *Credential) {
			if c.Active {
				c.Active = false
				c.UpdatedAt = now
			}
		},
	)
	if err != nil {
		return s.wrapStoreErr(err, credID)
	}
	if alreadyRevoked {
		return nil
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, credID)
	}
	s.metrics.IncrementCredentialsRevoked()
	s.notifier.Emit(ctx, notify.Event{
		Type:    notify.EventCredentialRevoked,
		Actor:   caller,
		Subject: credID.String(),
	})
	return nil
}

// UpdateFrameworkCompliance sets the per-framework compliance flag.
//
// Errors: CodeFrameworkNotApplicable when the framework is not in the
// credential's applicable set; state is left unchanged.
func (s *Service) UpdateFrameworkCompliance(ctx context.Context, caller id.Principal, credID id.CredentialID, framework id.Framework, compliant bool) error {
	if err := s.authz.RequireIssuer(ctx, caller); err != nil {
		return err
	}
	if !framework.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "framework is invalid")
	}

	now := requestcontext.Now(ctx)
	_, err := s.store.Execute(ctx, credID,
		func(c *Credential) error {
			if !c.AppliesTo(framework) {
				return dErrors.Newf(dErrors.CodeFrameworkNotApplicable,
					"framework %s is not applicable to credential %s", framework, credID)
			}
			return nil
		},
		func(c *Credential) {
			c.FrameworkCompliance[framework] = compliant
			c.UpdatedAt = now
		},
	)
	if err != nil {
		return s.wrapStoreErr(err, credID)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, credID)
	}
	s.notifier.Emit(ctx, notify.Event{
		Type:    notify.EventComplianceStatusUpdated,
		Actor:   caller,
		Subject: credID.String(),
		Attrs: map[string]string{
			"framework": framework.String(),
			"compliant": fmt.Sprintf("%t", compliant),
		},
	})
	return nil
}

// StudentCredentials returns the ids of a student's credentials in issuance
// order.
func (s *Service) StudentCredentials(ctx context.Context, student id.Principal) ([]id.CredentialID, error) {
	if student.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "student principal is required")
	}
	creds, err := s.store.ListByStudent(ctx, student)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	ids := make([]id.CredentialID, 0, len(creds))
	for _, c := range creds {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Get returns the full credential record.
func (s *Service) Get(ctx context.Context, credID id.CredentialID) (*Credential, error) {
	return s.findCredential(ctx, credID)
}

func (s *Service) findCredential(ctx context.Context, credID id.CredentialID) (*Credential, error) {
	cred, err := s.store.FindByID(ctx, credID)
	if err != nil {
		return nil, s.wrapStoreErr(err, credID)
	}
	return cred, nil
}

func (s *Service) wrapStoreErr(err error, credID id.CredentialID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "credential %s does not exist", credID)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "credential store failure")
}
