package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/syncroom"
)

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	v := NewVerifier("test-secret")
	require.NotNil(t, v)

	token, err := v.Sign("u1", "alice", time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestVerifyWrongSecret(t *testing.T) {
	t.Parallel()

	issuer := NewVerifier("secret-a")
	verifier := NewVerifier("secret-b")

	token, err := issuer.Sign("u1", "alice", time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, syncroom.ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	v := NewVerifier("test-secret")

	token, err := v.Sign("u1", "alice", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, syncroom.ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	t.Parallel()

	v := NewVerifier("test-secret")

	_, err := v.Verify("not-a-token")
	assert.ErrorIs(t, err, syncroom.ErrInvalidToken)
}

func TestEmptySecretDisablesAuth(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewVerifier(""))
}
