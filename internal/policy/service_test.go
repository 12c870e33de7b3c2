package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentia/internal/authz"
	"credentia/internal/institution"
	"credentia/internal/notify"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
)

const (
	owner   = id.Principal("did:web:registry.owner")
	admin   = id.Principal("did:web:registrar.state.edu")
	auditor = id.Principal("did:web:auditor.enqa.eu")
	filer   = id.Principal("did:web:compliance.state.edu")
)

type fixture struct {
	svc  *Service
	sink *notify.MemorySink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	sink := notify.NewMemorySink()
	notifier := notify.NewDirect(sink)
	authzSvc := authz.NewService(owner, authz.NewInMemoryStore(), notifier)
	require.NoError(t, authzSvc.AuthorizeAuditor(ctx, owner, auditor))

	instStore := institution.NewInMemoryStore()
	instSvc := institution.NewService(instStore, authzSvc, notifier)
	_, err := instSvc.Register(ctx, owner, "State University", "regional", admin,
		[]id.Framework{id.FrameworkAACSB, id.FrameworkBolognaProcess})
	require.NoError(t, err)

	svc := NewService(NewInMemoryStore(), instStore, authzSvc, notifier)
	return &fixture{svc: svc, sink: sink}
}

func createRequest() CreateRequest {
	effective := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return CreateRequest{
		Title:         "Grading Integrity Policy",
		Description:   "Rules governing grade assignment and appeals.",
		Type:          id.PolicyTypeAcademic,
		Institution:   "State University",
		Frameworks:    []id.Framework{id.FrameworkAACSB, id.FrameworkBolognaProcess},
		EffectiveDate: effective,
		ReviewDate:    effective.AddDate(1, 0, 0),
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("any caller creates; statuses initialize to pending review", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)

		assert.True(t, p.Active)
		assert.Equal(t, filer, p.Creator)
		require.Len(t, p.Statuses, 2)
		assert.Equal(t, id.StatusPendingReview, p.Statuses[id.FrameworkAACSB])
		assert.Equal(t, id.StatusPendingReview, p.Statuses[id.FrameworkBolognaProcess])

		events := f.sink.Events()
		require.NotEmpty(t, events)
		assert.Equal(t, notify.EventPolicyCreated, events[len(events)-1].Type)
	})

	t.Run("normalizes caller casing to the registered spelling", func(t *testing.T) {
		f := newFixture(t)

		req := createRequest()
		req.Institution = "state UNIVERSITY"
		p, err := f.svc.Create(ctx, filer, req)
		require.NoError(t, err)
		assert.Equal(t, "State University", p.Institution)

		listed, err := f.svc.ListByInstitution(ctx, "State University")
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, p.ID, listed[0].ID)
	})

	t.Run("review date must follow effective date", func(t *testing.T) {
		f := newFixture(t)

		req := createRequest()
		req.ReviewDate = req.EffectiveDate
		_, err := f.svc.Create(ctx, filer, req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidDateOrdering))

		req.ReviewDate = req.EffectiveDate.AddDate(0, -6, 0)
		_, err = f.svc.Create(ctx, filer, req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidDateOrdering))
	})

	t.Run("requires title and institution", func(t *testing.T) {
		f := newFixture(t)

		req := createRequest()
		req.Title = "  "
		_, err := f.svc.Create(ctx, filer, req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		req = createRequest()
		req.Institution = ""
		_, err = f.svc.Create(ctx, filer, req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects unregistered institution", func(t *testing.T) {
		f := newFixture(t)

		req := createRequest()
		req.Institution = "Ghost College"
		_, err := f.svc.Create(ctx, filer, req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("rejects unknown policy type", func(t *testing.T) {
		f := newFixture(t)

		req := createRequest()
		req.Type = "procurement"
		_, err := f.svc.Create(ctx, filer, req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestUpdateFrameworkStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("auditor overwrites a single framework", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)

		err = f.svc.UpdateFrameworkStatus(ctx, auditor, p.ID, id.FrameworkAACSB, id.StatusCompliant)
		require.NoError(t, err)

		got, err := f.svc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, id.StatusCompliant, got.Statuses[id.FrameworkAACSB])
		assert.Equal(t, id.StatusPendingReview, got.Statuses[id.FrameworkBolognaProcess])
	})

	t.Run("issuer capability is not enough", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)

		err = f.svc.UpdateFrameworkStatus(ctx, admin, p.ID, id.FrameworkAACSB, id.StatusCompliant)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects framework the policy does not list", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)

		err = f.svc.UpdateFrameworkStatus(ctx, auditor, p.ID, id.FrameworkABET, id.StatusCompliant)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeFrameworkNotApplicable))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)

		err = f.svc.UpdateFrameworkStatus(ctx, auditor, p.ID, id.FrameworkAACSB, "excellent")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects inactive policy", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)
		require.NoError(t, f.svc.Deactivate(ctx, filer, p.ID))

		err = f.svc.UpdateFrameworkStatus(ctx, auditor, p.ID, id.FrameworkAACSB, id.StatusCompliant)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("creator deactivates own policy", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)

		require.NoError(t, f.svc.Deactivate(ctx, filer, p.ID))
		got, err := f.svc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)
	})

	t.Run("owner deactivates any policy", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)

		require.NoError(t, f.svc.Deactivate(ctx, owner, p.ID))
	})

	t.Run("other callers are rejected, even auditors", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)

		err = f.svc.Deactivate(ctx, auditor, p.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("second deactivation conflicts", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)
		require.NoError(t, f.svc.Deactivate(ctx, filer, p.ID))

		err = f.svc.Deactivate(ctx, filer, p.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestListByInstitution(t *testing.T) {
	ctx := context.Background()

	t.Run("returns policies in creation order", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.svc.Create(ctx, filer, createRequest())
		require.NoError(t, err)

		req := createRequest()
		req.Title = "Faculty Hiring Policy"
		req.Type = id.PolicyTypeFaculty
		second, err := f.svc.Create(ctx, filer, req)
		require.NoError(t, err)

		policies, err := f.svc.ListByInstitution(ctx, "State University")
		require.NoError(t, err)
		require.Len(t, policies, 2)
		assert.Equal(t, first.ID, policies[0].ID)
		assert.Equal(t, second.ID, policies[1].ID)
	})

	t.Run("unknown institution lists empty", func(t *testing.T) {
		f := newFixture(t)
		policies, err := f.svc.ListByInstitution(ctx, "Ghost College")
		require.NoError(t, err)
		assert.Empty(t, policies)
	})
}
