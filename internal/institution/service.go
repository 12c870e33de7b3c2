package institution

import (
	"context"
	"errors"
	"strings"

	"credentia/internal/authz"
	"credentia/internal/notify"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/platform/sentinel"
	"credentia/pkg/requestcontext"
)

// Service orchestrates institution lifecycle. Registration is owner-only and
// implicitly authorizes the institution's admin as a credential issuer.
type Service struct {
	store    Store
	authz    *authz.Service
	notifier notify.Notifier
}

func NewService(store Store, authzSvc *authz.Service, notifier notify.Notifier) *Service {
	return &Service{store: store, authz: authzSvc, notifier: notifier}
}

// Register creates an institution. Owner-only.
//
// Errors: CodeUnauthorized for non-owner callers, CodeInvalidInput for an
// empty name or unset admin, CodeDuplicateInstitution when the name is taken.
func (s *Service) Register(ctx context.Context, caller id.Principal, name, accreditation string, admin id.Principal, frameworks []id.Framework) (*Institution, error) {
	if err := s.authz.RequireOwner(caller); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	inst, err := New(name, accreditation, admin, frameworks, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, inst); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Newf(dErrors.CodeDuplicateInstitution, "institution %q is already registered", name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register institution")
	}

	// The admin can issue credentials for the institution without a separate
	// authorization step.
	if err := s.authz.AuthorizeIssuer(ctx, caller, admin); err != nil {
		return nil, err
	}

	s.notifier.Emit(ctx, notify.Event{
		Type:        notify.EventInstitutionRegistered,
		Actor:       caller,
		Institution: inst.Name,
		Subject:     admin.String(),
	})
	return inst, nil
}

// Deactivate flips the institution inactive. Owner-only. Existing credentials
// remain on record; new issuance against the institution fails until
// reactivation.
func (s *Service) Deactivate(ctx context.Context, caller id.Principal, name string) (*Institution, error) {
	if err := s.authz.RequireOwner(caller); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	inst, err := s.store.Execute(ctx, name,
		func(i *Institution) error {
			if err := i.CanDeactivate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "institution is already inactive")
			}
			return nil
		},
		func(i *Institution) {
			i.ApplyDeactivation(now)
		},
	)
	if err != nil {
		return nil, s.wrapStoreErr(err, name)
	}
	s.notifier.Emit(ctx, notify.Event{
		Type:        notify.EventInstitutionDeactivated,
		Actor:       caller,
		Institution: inst.Name,
	})
	return inst, nil
}

// Reactivate flips the institution active again. Owner-only.
func (s *Service) Reactivate(ctx context.Context, caller id.Principal, name string) (*Institution, error) {
	if err := s.authz.RequireOwner(caller); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	inst, err := s.store.Execute(ctx, name,
		func(i *Institution) error {
			if err := i.CanReactivate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "institution is already active")
			}
			return nil
		},
		func(i *Institution) {
			i.ApplyReactivation(now)
		},
	)
	if err != nil {
		return nil, s.wrapStoreErr(err, name)
	}
	s.notifier.Emit(ctx, notify.Event{
		Type:        notify.EventInstitutionReactivated,
		Actor:       caller,
		Institution: inst.Name,
	})
	return inst, nil
}

// Get returns the institution by name.
func (s *Service) Get(ctx context.Context, name string) (*Institution, error) {
	if strings.TrimSpace(name) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "institution name is required")
	}
	inst, err := s.store.FindByName(ctx, name)
	if err != nil {
		return nil, s.wrapStoreErr(err, name)
	}
	return inst, nil
}

// List returns every registered institution, active or not.
func (s *Service) List(ctx context.Context) ([]*Institution, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list institutions")
	}
	return out, nil
}

func (s *Service) wrapStoreErr(err error, name string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "institution %q is not registered", name)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "institution store failure")
}
