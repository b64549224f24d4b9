package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return token
}

func TestParseIdentity_Subject(t *testing.T) {
	token := signed(t, jwt.MapClaims{"sub": "u1", "email": "ada@example.com", "name": "Ada"})

	id, err := ParseIdentity("Bearer " + token)

	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Email: "ada@example.com", Name: "Ada"}, id)
}

func TestParseIdentity_UserIDFallback(t *testing.T) {
	id, err := ParseIdentity(signed(t, jwt.MapClaims{"userId": "u2"}))

	require.NoError(t, err)
	assert.Equal(t, "u2", id.UserID)
}

func TestParseIdentity_Errors(t *testing.T) {
	_, err := ParseIdentity("not-a-jwt")
	assert.Error(t, err)

	_, err = ParseIdentity(signed(t, jwt.MapClaims{"email": "x@example.com"}))
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestKeyedLimiter(t *testing.T) {
	l := NewKeyedLimiter(60, 2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))

	l.Reset("a")
	assert.True(t, l.Allow("a"))
}
