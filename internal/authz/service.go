package authz

import (
	"context"

	"credentia/internal/notify"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/requestcontext"
)

// Service owns the set of principals permitted to write to the ledger. A
// distinguished owner principal is the superuser: only the owner may grant or
// revoke capabilities, and the owner implicitly holds both roles.
type Service struct {
	owner    id.Principal
	store    Store
	notifier notify.Notifier
}

func NewService(owner id.Principal, store Store, notifier notify.Notifier) *Service {
	return &Service{owner: owner, store: store, notifier: notifier}
}

// Owner returns the superuser principal.
func (s *Service) Owner() id.Principal { return s.owner }

// AuthorizeIssuer grants issuer capability to a principal. Owner-only.
func (s *Service) AuthorizeIssuer(ctx context.Context, caller, principal id.Principal) error {
	return s.grant(ctx, caller, principal, RoleIssuer, notify.EventIssuerAuthorized)
}

// RevokeIssuer removes issuer capability from a principal. Owner-only.
// Revoking an absent grant is a no-op.
func (s *Service) RevokeIssuer(ctx context.Context, caller, principal id.Principal) error {
	return s.revoke(ctx, caller, principal, RoleIssuer, notify.EventIssuerRevoked)
}

// AuthorizeAuditor grants auditor capability to a principal. Owner-only.
func (s *Service) AuthorizeAuditor(ctx context.Context, caller, principal id.Principal) error {
	return s.grant(ctx, caller, principal, RoleAuditor, notify.EventAuditorAuthorized)
}

// RevokeAuditor removes auditor capability from a principal. Owner-only.
func (s *Service) RevokeAuditor(ctx context.Context, caller, principal id.Principal) error {
	return s.revoke(ctx, caller, principal, RoleAuditor, notify.EventAuditorRevoked)
}

// IsAuthorized reports whether the principal may issue credentials: the owner
// or any principal holding the issuer role.
func (s *Service) IsAuthorized(ctx context.Context, principal id.Principal) (bool, error) {
	if principal == s.owner {
		return true, nil
	}
	has, err := s.store.Has(ctx, principal, RoleIssuer)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer grant")
	}
	return has, nil
}

// IsAuditor reports whether the principal may write audits and policy
// statuses: the owner or any principal holding the auditor role.
func (s *Service) IsAuditor(ctx context.Context, principal id.Principal) (bool, error) {
	if principal == s.owner {
		return true, nil
	}
	has, err := s.store.Has(ctx, principal, RoleAuditor)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check auditor grant")
	}
	return has, nil
}

// RequireIssuer fails with CodeUnauthorized unless the caller may issue.
func (s *Service) RequireIssuer(ctx context.Context, caller id.Principal) error {
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller principal is required")
	}
	ok, err := s.IsAuthorized(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not an authorized issuer")
	}
	return nil
}

// RequireAuditor fails with CodeUnauthorized unless the caller may audit.
func (s *Service) RequireAuditor(ctx context.Context, caller id.Principal) error {
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller principal is required")
	}
	ok, err := s.IsAuditor(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not an authorized auditor")
	}
	return nil
}

// RequireOwner fails with CodeUnauthorized unless the caller is the owner.
func (s *Service) RequireOwner(caller id.Principal) error {
	if caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "operation restricted to the registry owner")
	}
	return nil
}

func (s *Service) grant(ctx context.Context, caller, principal id.Principal, role Role, event notify.EventType) error {
	if err := s.RequireOwner(caller); err != nil {
		return err
	}
	if principal.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	g := Grant{
		Principal: principal,
		Role:      role,
		GrantedBy: caller,
		GrantedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Save(ctx, g); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save grant")
	}
	s.notifier.Emit(ctx, notify.Event{
		Type:    event,
		Actor:   caller,
		Subject: principal.String(),
	})
	return nil
}

func (s *Service) revoke(ctx context.Context, caller, principal id.Principal, role Role, event notify.EventType) error {
	if err := s.RequireOwner(caller); err != nil {
		return err
	}
	if principal.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if err := s.store.Delete(ctx, principal, role); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete grant")
	}
	s.notifier.Emit(ctx, notify.Event{
		Type:    event,
		Actor:   caller,
		Subject: principal.String(),
	})
	return nil
}
