package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentia/internal/notify"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
)

const owner = id.Principal("did:web:registry.owner")

func newTestService() (*Service, *notify.MemorySink) {
	sink := notify.NewMemorySink()
	return NewService(owner, NewInMemoryStore(), notify.NewDirect(sink)), sink
}

func TestService_OwnerOnlyGrants(t *testing.T) {
	ctx := context.Background()
	svc, sink := newTestService()

	t.Run("owner can authorize an issuer", func(t *testing.T) {
		require.NoError(t, svc.AuthorizeIssuer(ctx, owner, "did:web:state.edu"))

		ok, err := svc.IsAuthorized(ctx, "did:web:state.edu")
		require.NoError(t, err)
		assert.True(t, ok)

		events := sink.Events()
		require.NotEmpty(t, events)
		assert.Equal(t, notify.EventIssuerAuthorized, events[len(events)-1].Type)
	})

	t.Run("non-owner cannot authorize", func(t *testing.T) {
		err := svc.AuthorizeIssuer(ctx, "did:web:state.edu", "did:web:someone")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("owner is implicitly authorized for both roles", func(t *testing.T) {
		ok, err := svc.IsAuthorized(ctx, owner)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.IsAuditor(ctx, owner)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestService_RolesAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	require.NoError(t, svc.AuthorizeIssuer(ctx, owner, "did:web:issuer.only"))
	require.NoError(t, svc.AuthorizeAuditor(ctx, owner, "did:web:auditor.only"))

	ok, err := svc.IsAuditor(ctx, "did:web:issuer.only")
	require.NoError(t, err)
	assert.False(t, ok, "issuer role must not imply auditor role")

	ok, err = svc.IsAuthorized(ctx, "did:web:auditor.only")
	require.NoError(t, err)
	assert.False(t, ok, "auditor role must not imply issuer role")
}

func TestService_Revocation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	require.NoError(t, svc.AuthorizeIssuer(ctx, owner, "did:web:revoked.edu"))
	require.NoError(t, svc.RevokeIssuer(ctx, owner, "did:web:revoked.edu"))

	ok, err := svc.IsAuthorized(ctx, "did:web:revoked.edu")
	require.NoError(t, err)
	assert.False(t, ok)

	// Revoking again is a no-op, not an error.
	require.NoError(t, svc.RevokeIssuer(ctx, owner, "did:web:revoked.edu"))
}

func TestService_RequireHelpers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	err := svc.RequireIssuer(ctx, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	err = svc.RequireAuditor(ctx, "did:web:nobody")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	require.NoError(t, svc.RequireIssuer(ctx, owner))
	require.NoError(t, svc.RequireAuditor(ctx, owner))
}
