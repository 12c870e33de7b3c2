package jwtauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
)

var svc = NewService("test-signing-key", "test-issuer")

func Test_GenerateToken_RoundTrip(t *testing.T) {
	principal := id.Principal("did:web:registrar.state.edu")

	token, err := svc.GenerateToken(principal, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, principal, got)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := svc.ValidateToken("invalid-token-string")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := svc.GenerateToken("did:web:registrar.state.edu", -time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewService("different-key", "test-issuer")
	token, err := other.GenerateToken("did:web:registrar.state.edu", time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
