package bologna

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentia/internal/authz"
	"credentia/internal/credential"
	"credentia/internal/institution"
	"credentia/internal/notify"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
)

const (
	owner  = id.Principal("did:web:registry.owner")
	issuer = id.Principal("did:web:registrar.state.edu")
)

type fixture struct {
	svc         *Service
	credentials *credential.Service
	sink        *notify.MemorySink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	sink := notify.NewMemorySink()
	notifier := notify.NewDirect(sink)
	authzSvc := authz.NewService(owner, authz.NewInMemoryStore(), notifier)
	instStore := institution.NewInMemoryStore()
	instSvc := institution.NewService(instStore, authzSvc, notifier)

	_, err := instSvc.Register(ctx, owner, "State University", "regional", issuer,
		[]id.Framework{id.FrameworkBolognaProcess})
	require.NoError(t, err)

	credStore := credential.NewInMemoryStore()
	credSvc := credential.NewService(credStore, instStore, authzSvc, notifier)
	svc := NewService(NewInMemoryStore(), credStore, authzSvc, notifier)
	return &fixture{svc: svc, credentials: credSvc, sink: sink}
}

func (f *fixture) issue(t *testing.T, student id.Principal, title string) id.CredentialID {
	t.Helper()
	cred, err := f.credentials.Issue(context.Background(), issuer, credential.IssueRequest{
		Student:           student,
		ExternalStudentID: "S-1001",
		Type:              id.CredentialTypeDegree,
		Title:             title,
		Institution:       "State University",
		Program:           "Computer Science",
		Credits:           180,
		Frameworks:        []id.Framework{id.FrameworkBolognaProcess},
	})
	require.NoError(t, err)
	return cred.ID
}

func setRequest() SetRequest {
	return SetRequest{
		ECTSCredits:             180,
		EQFLevel:                6,
		DiplomaSupplementIssued: true,
		LearningOutcomes:        []string{"design and implement software systems"},
		QAAgency:                "ENQA",
		MobilityPartners:        []string{"TU Delft"},
	}
}

func TestSetData(t *testing.T) {
	ctx := context.Background()

	t.Run("stores data and asserts automatic recognition", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")

		data, err := f.svc.SetData(ctx, issuer, credID, setRequest())
		require.NoError(t, err)
		assert.Equal(t, 180, data.ECTSCredits)
		assert.Equal(t, 6, data.EQFLevel)
		assert.True(t, data.AutomaticRecognitionEligible)

		events := f.sink.Events()
		require.NotEmpty(t, events)
		assert.Equal(t, notify.EventBolognaComplianceSet, events[len(events)-1].Type)
	})

	t.Run("rejects non-issuers", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")

		_, err := f.svc.SetData(ctx, "did:web:impostor", credID, setRequest())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects unknown credential", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SetData(ctx, issuer, id.NewCredentialID(), setRequest())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("rejects revoked credential", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")
		require.NoError(t, f.credentials.Revoke(ctx, issuer, credID))

		_, err := f.svc.SetData(ctx, issuer, credID, setRequest())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects non-positive ECTS credits", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")

		req := setRequest()
		req.ECTSCredits = 0
		_, err := f.svc.SetData(ctx, issuer, credID, req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidEctsCredits))
	})

	t.Run("rejects EQF level outside 1..8", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")

		for _, level := range []int{0, 9, -3} {
			req := setRequest()
			req.EQFLevel = level
			_, err := f.svc.SetData(ctx, issuer, credID, req)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidEqfLevel), "level %d", level)
		}
	})

	t.Run("replaces existing data", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")

		_, err := f.svc.SetData(ctx, issuer, credID, setRequest())
		require.NoError(t, err)

		req := setRequest()
		req.ECTSCredits = 60
		req.EQFLevel = 7
		data, err := f.svc.SetData(ctx, issuer, credID, req)
		require.NoError(t, err)
		assert.Equal(t, 60, data.ECTSCredits)
		assert.Equal(t, 7, data.EQFLevel)
	})
}

func TestCheckCompliance(t *testing.T) {
	ctx := context.Background()

	t.Run("compliant when all criteria hold", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")
		_, err := f.svc.SetData(ctx, issuer, credID, setRequest())
		require.NoError(t, err)

		report, err := f.svc.CheckCompliance(ctx, credID)
		require.NoError(t, err)
		assert.True(t, report.Compliant)
	})

	t.Run("derivation is independent of the stored flag", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")

		req := setRequest()
		req.QAAgency = ""
		req.LearningOutcomes = nil
		_, err := f.svc.SetData(ctx, issuer, credID, req)
		require.NoError(t, err)

		// The write asserted eligibility, but re-derivation sees the gaps.
		stored, err := f.svc.Get(ctx, credID)
		require.NoError(t, err)
		assert.True(t, stored.AutomaticRecognitionEligible)

		report, err := f.svc.CheckCompliance(ctx, credID)
		require.NoError(t, err)
		assert.False(t, report.Compliant)
		assert.Contains(t, report.Report, "quality assurance agency")
		assert.Contains(t, report.Report, "learning outcomes")
	})

	t.Run("fails with not found when no data exists", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")

		_, err := f.svc.CheckCompliance(ctx, credID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestStudentTotalECTS(t *testing.T) {
	ctx := context.Background()

	t.Run("sums only credentials carrying bologna data", func(t *testing.T) {
		f := newFixture(t)
		first := f.issue(t, "did:stu:alice", "BSc Computer Science")
		second := f.issue(t, "did:stu:alice", "MSc Computer Science")
		f.issue(t, "did:stu:alice", "Cloud Certificate") // no bologna data

		req := setRequest()
		_, err := f.svc.SetData(ctx, issuer, first, req)
		require.NoError(t, err)

		req.ECTSCredits = 120
		req.EQFLevel = 7
		_, err = f.svc.SetData(ctx, issuer, second, req)
		require.NoError(t, err)

		total, err := f.svc.StudentTotalECTS(ctx, "did:stu:alice")
		require.NoError(t, err)
		assert.Equal(t, 300, total)
	})

	t.Run("unknown student totals zero", func(t *testing.T) {
		f := newFixture(t)
		total, err := f.svc.StudentTotalECTS(ctx, "did:stu:nobody")
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("does not mix students", func(t *testing.T) {
		f := newFixture(t)
		alice := f.issue(t, "did:stu:alice", "BSc Computer Science")
		bob := f.issue(t, "did:stu:bob", "BSc Mathematics")

		_, err := f.svc.SetData(ctx, issuer, alice, setRequest())
		require.NoError(t, err)

		req := setRequest()
		req.ECTSCredits = 90
		_, err = f.svc.SetData(ctx, issuer, bob, req)
		require.NoError(t, err)

		total, err := f.svc.StudentTotalECTS(ctx, "did:stu:bob")
		require.NoError(t, err)
		assert.Equal(t, 90, total)
	})
}

func TestUpdateECTSCredits(t *testing.T) {
	ctx := context.Background()

	t.Run("updates credits and records before and after", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")
		_, err := f.svc.SetData(ctx, issuer, credID, setRequest())
		require.NoError(t, err)

		data, err := f.svc.UpdateECTSCredits(ctx, issuer, credID, 240)
		require.NoError(t, err)
		assert.Equal(t, 240, data.ECTSCredits)

		events := f.sink.Events()
		last := events[len(events)-1]
		assert.Equal(t, notify.EventECTSCreditsUpdated, last.Type)
		assert.Equal(t, "180", last.Attrs["previous_credits"])
		assert.Equal(t, "240", last.Attrs["new_credits"])
	})

	t.Run("rejects non-positive credits", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")
		_, err := f.svc.SetData(ctx, issuer, credID, setRequest())
		require.NoError(t, err)

		_, err = f.svc.UpdateECTSCredits(ctx, issuer, credID, 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidEctsCredits))
	})

	t.Run("rejects non-issuers", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")

		_, err := f.svc.UpdateECTSCredits(ctx, "did:web:impostor", credID, 240)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("fails with not found when no data exists", func(t *testing.T) {
		f := newFixture(t)
		credID := f.issue(t, "did:stu:alice", "BSc Computer Science")

		_, err := f.svc.UpdateECTSCredits(ctx, issuer, credID, 240)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
