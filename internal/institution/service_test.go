package institution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentia/internal/authz"
	"credentia/internal/notify"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
)

const owner = id.Principal("did:web:registry.owner")

func newTestService() (*Service, *authz.Service, *notify.MemorySink) {
	sink := notify.NewMemorySink()
	notifier := notify.NewDirect(sink)
	authzSvc := authz.NewService(owner, authz.NewInMemoryStore(), notifier)
	return NewService(NewInMemoryStore(), authzSvc, notifier), authzSvc, sink
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("registers and implicitly authorizes the admin as issuer", func(t *testing.T) {
		svc, authzSvc, sink := newTestService()

		inst, err := svc.Register(ctx, owner, "Test U", "regional", "did:web:admin.testu", []id.Framework{id.FrameworkAACSB})
		require.NoError(t, err)
		assert.True(t, inst.Active)
		assert.Empty(t, inst.ComplianceStatuses, "no audit on record at registration")

		ok, err := authzSvc.IsAuthorized(ctx, "did:web:admin.testu")
		require.NoError(t, err)
		assert.True(t, ok, "admin must be able to issue after registration")

		types := make([]notify.EventType, 0)
		for _, e := range sink.Events() {
			types = append(types, e.Type)
		}
		assert.Contains(t, types, notify.EventInstitutionRegistered)
	})

	t.Run("duplicate name fails with DuplicateInstitution", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.Register(ctx, owner, "Test U", "regional", "did:web:admin.testu", nil)
		require.NoError(t, err)

		_, err = svc.Register(ctx, owner, "Test U", "regional", "did:web:other", nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateInstitution))

		// Case-insensitive uniqueness.
		_, err = svc.Register(ctx, owner, "test u", "regional", "did:web:other", nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateInstitution))
	})

	t.Run("rejects empty name and unset admin", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.Register(ctx, owner, "   ", "regional", "did:web:admin", nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = svc.Register(ctx, owner, "Valid U", "regional", "", nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("non-owner cannot register", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.Register(ctx, "did:web:stranger", "Test U", "regional", "did:web:admin", nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.Register(ctx, owner, "State University", "regional", "did:web:admin.state", nil)
	require.NoError(t, err)

	t.Run("deactivate flips the flag and retains the record", func(t *testing.T) {
		inst, err := svc.Deactivate(ctx, owner, "State University")
		require.NoError(t, err)
		assert.False(t, inst.Active)

		got, err := svc.Get(ctx, "State University")
		require.NoError(t, err)
		assert.False(t, got.Active)
	})

	t.Run("double deactivate conflicts", func(t *testing.T) {
		_, err := svc.Deactivate(ctx, owner, "State University")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("reactivate restores issuance eligibility", func(t *testing.T) {
		inst, err := svc.Reactivate(ctx, owner, "State University")
		require.NoError(t, err)
		assert.True(t, inst.Active)
	})

	t.Run("unknown institution reports NotFound", func(t *testing.T) {
		_, err := svc.Deactivate(ctx, owner, "Ghost College")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
