package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signShareToken(t *testing.T, secret []byte, goalID uuid.UUID, expiresAt time.Time) string {
	t.Helper()

	claims := shareClaims{
		GoalID: goalID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "stashHabitAPI",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestParseShareToken(t *testing.T) {
	s := &ShareService{secret: []byte("test-secret")}
	goalID := uuid.New()

	token := signShareToken(t, s.secret, goalID, time.Now().Add(time.Hour))

	parsed, err := s.parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, goalID, parsed)
}

func TestParseShareTokenExpired(t *testing.T) {
	s := &ShareService{secret: []byte("test-secret")}

	token := signShareToken(t, s.secret, uuid.New(), time.Now().Add(-time.Hour))

	_, err := s.parseToken(token)
	assert.Error(t, err)
}

func TestParseShareTokenWrongSecret(t *testing.T) {
	s := &ShareService{secret: []byte("test-secret")}

	token := signShareToken(t, []byte("other-secret"), uuid.New(), time.Now().Add(time.Hour))

	_, err := s.parseToken(token)
	assert.Error(t, err)
}

func TestParseShareTokenGarbage(t *testing.T) {
	s := &ShareService{secret: []byte("test-secret")}

	_, err := s.parseToken("not-a-token")
	assert.Error(t, err)
}
