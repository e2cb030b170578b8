package services

import (
	"strings"
	"testing"
	"time"

	"dormsync-backend-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	tokens := TokenService{}
	hash, err := tokens.HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))
	assert.True(t, tokens.VerifyPassword("correct horse", hash))
	assert.False(t, tokens.VerifyPassword("wrong horse", hash))
	assert.False(t, tokens.VerifyPassword("anything", ""))

	legacy, err := bcrypt.GenerateFromPassword([]byte("imported"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, tokens.VerifyPassword("imported", string(legacy)))
	assert.False(t, tokens.VerifyPassword("other", string(legacy)))
}

func TestSessionTokenRoundTrip(t *testing.T) {
	now := fixedNow
	tokens := TokenService{Secret: []byte("k"), Issuer: "dormsync", TTL: time.Hour, Now: func() time.Time { return now }}
	account := models.Account{ID: "acc-1", Role: models.RoleManager}

	token, exp, err := tokens.CreateSessionToken(account)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(time.Hour), exp)

	claims, err := tokens.ParseSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, models.RoleManager, claims.Role)

	other := tokens
	other.Secret = []byte("different")
	_, err = other.ParseSessionToken(token)
	assert.True(t, HasCode(err, CodeUnauthorized))

	foreign := tokens
	foreign.Issuer = "someone-else"
	_, err = foreign.ParseSessionToken(token)
	assert.True(t, HasCode(err, CodeUnauthorized))

	now = fixedNow.Add(2 * time.Hour)
	_, err = tokens.ParseSessionToken(token)
	assert.True(t, HasCode(err, CodeUnauthorized))
}

func TestRandomPasswordIsUnique(t *testing.T) {
	a, err := RandomPassword()
	require.NoError(t, err)
	b, err := RandomPassword()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
