package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseRoundtrip(t *testing.T) {
	tok, err := SignUserToken("secret", "alice", time.Hour)
	require.NoError(t, err)

	uid, err := ParseUserToken("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)
}

func TestParseWrongSecret(t *testing.T) {
	tok, err := SignUserToken("secret", "alice", time.Hour)
	require.NoError(t, err)

	_, err = ParseUserToken("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseExpiredToken(t *testing.T) {
	tok, err := SignUserToken("secret", "alice", -time.Minute)
	require.NoError(t, err)

	_, err = ParseUserToken("secret", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseGarbage(t *testing.T) {
	_, err := ParseUserToken("secret", "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDemoTokenSource(t *testing.T) {
	src := NewDemoTokenSource("alice")
	tok, err := src.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "demo-token-alice", tok.IDToken)
	assert.Equal(t, "alice", tok.UserID)
	assert.True(t, IsDemoToken(tok.IDToken))
}

func TestIsDemoToken(t *testing.T) {
	assert.True(t, IsDemoToken("demo-token"))
	assert.True(t, IsDemoToken("demo-token-bob"))
	assert.False(t, IsDemoToken("eyJhbGciOiJIUzI1NiJ9.x.y"))
	assert.False(t, IsDemoToken(""))
}
