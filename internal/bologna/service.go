package bologna

import (
	"context"
	"errors"
	"strconv"

	"credentia/internal/authz"
	"credentia/internal/credential"
	"credentia/internal/notify"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/platform/sentinel"
	"credentia/pkg/requestcontext"
)

// Service manages ECTS/EQF compliance data attached to credentials.
type Service struct {
	store       Store
	credentials credential.Store
	authz       *authz.Service
	notifier    notify.Notifier
}

func NewService(store Store, credentials credential.Store, authzSvc *authz.Service, notifier notify.Notifier) *Service {
	return &Service{
		store:       store,
		credentials: credentials,
		authz:       authzSvc,
		notifier:    notifier,
	}
}

// SetData creates or replaces the Bologna record for a credential.
//
// The automatic-recognition flag is set true on every successful write: the
// issuer asserts eligibility at write time. CheckCompliance re-derives the
// answer from current data, so the assertion and the derivation can diverge;
// both are exposed deliberately.
//
// Errors: CodeUnauthorized for non-issuers, CodeNotFound for an unknown
// credential, CodeInvariantViolation for a revoked one, CodeInvalidEctsCredits
// and CodeInvalidEqfLevel for out-of-range values.
func (s *Service) SetData(ctx context.Context, caller id.Principal, credID id.CredentialID, req SetRequest) (*Data, error) {
	if err := s.authz.RequireIssuer(ctx, caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cred, err := s.credentials.FindByID(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "credential %s does not exist", credID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up credential")
	}
	if !cred.Active {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "credential %s is revoked", credID)
	}

	data := &Data{
		CredentialID:                 credID,
		ECTSCredits:                  req.ECTSCredits,
		EQFLevel:                     req.EQFLevel,
		DiplomaSupplementIssued:      req.DiplomaSupplementIssued,
		LearningOutcomes:             req.LearningOutcomes,
		QAAgency:                     req.QAAgency,
		JointDegree:                  req.JointDegree,
		MobilityPartners:             req.MobilityPartners,
		AutomaticRecognitionEligible: true,
		UpdatedAt:                    requestcontext.Now(ctx),
	}
	if err := s.store.Save(ctx, data); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store bologna data")
	}

	s.notifier.Emit(ctx, notify.Event{
		Type:        notify.EventBolognaComplianceSet,
		Actor:       caller,
		Institution: cred.Institution,
		Subject:     credID.String(),
		Attrs: map[string]string{
			"ects_credits": strconv.Itoa(req.ECTSCredits),
			"eqf_level":    strconv.Itoa(req.EQFLevel),
		},
	})
	return data, nil
}

// CheckCompliance re-derives automatic-recognition eligibility from current
// data, independent of the stored flag.
func (s *Service) CheckCompliance(ctx context.Context, credID id.CredentialID) (ComplianceReport, error) {
	data, err := s.findData(ctx, credID)
	if err != nil {
		return ComplianceReport{}, err
	}
	return EvaluateCompliance(data), nil
}

// Get returns the stored Bologna record, including the point-in-time
// automatic-recognition assertion.
func (s *Service) Get(ctx context.Context, credID id.CredentialID) (*Data, error) {
	return s.findData(ctx, credID)
}

// StudentTotalECTS sums ECTS across all of the student's credentials carrying
// Bologna data; credentials without it contribute zero.
func (s *Service) StudentTotalECTS(ctx context.Context, student id.Principal) (int, error) {
	if student.IsZero() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "student principal is required")
	}
	creds, err := s.credentials.ListByStudent(ctx, student)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}

	total := 0
	for _, cred := range creds {
		data, err := s.store.FindByCredential(ctx, cred.ID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read bologna data")
		}
		total += data.ECTSCredits
	}
	return total, nil
}

// UpdateECTSCredits overwrites the credit count in place. The emitted event
// carries both the previous and the new value so the change remains
// reconstructable downstream.
func (s *Service) UpdateECTSCredits(ctx context.Context, caller id.Principal, credID id.CredentialID, newCredits int) (*Data, error) {
	if err := s.authz.RequireIssuer(ctx, caller); err != nil {
		return nil, err
	}
	if newCredits <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidEctsCredits, "ECTS credits must be positive")
	}

	now := requestcontext.Now(ctx)
	var before int
	data, err := s.store.Execute(ctx, credID,
		func(d *Data) error {
			before = d.ECTSCredits
			return nil
		},
		func(d *Data) {
			d.ECTSCredits = newCredits
			d.UpdatedAt = now
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "credential %s has no bologna data", credID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update ECTS credits")
	}

	s.notifier.Emit(ctx, notify.Event{
		Type:    notify.EventECTSCreditsUpdated,
		Actor:   caller,
		Subject: credID.String(),
		Attrs: map[string]string{
			"previous_credits": strconv.Itoa(before),
			"new_credits":      strconv.Itoa(newCredits),
		},
	})
	return data, nil
}

func (s *Service) findData(ctx context.Context, credID id.CredentialID) (*Data, error) {
	data, err := s.store.FindByCredential(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "credential %s has no bologna data", credID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read bologna data")
	}
	return data, nil
}
