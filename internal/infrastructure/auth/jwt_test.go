package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/intlshop/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestVerifier(opts ...VerifierOption) *Verifier {
	return NewVerifier(config.JWTConfig{Secret: testSecret, Issuer: "test-issuer"}, opts...)
}

func sign(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
		UserID:   42,
		Username: "alice",
		Role:     "user",
	}
}

func TestVerifier_Verify_ValidToken(t *testing.T) {
	v := newTestVerifier()
	token := sign(t, jwt.SigningMethodHS256, testSecret, validClaims())

	claims, err := v.Verify(token)

	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.False(t, claims.IsAdmin())
	assert.False(t, claims.GetExpiresAtTime().IsZero())
}

func TestVerifier_Verify_SubjectFallback(t *testing.T) {
	c := validClaims()
	c.UserID = 0
	c.Subject = "1001"

	claims, err := newTestVerifier().Verify(sign(t, jwt.SigningMethodHS256, testSecret, c))

	require.NoError(t, err)
	assert.Equal(t, int64(1001), claims.UserID)
}

func TestVerifier_Verify_MissingUserID(t *testing.T) {
	c := validClaims()
	c.UserID = 0
	c.Subject = "not-a-number"

	_, err := newTestVerifier().Verify(sign(t, jwt.SigningMethodHS256, testSecret, c))

	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestVerifier_Verify_Expired(t *testing.T) {
	c := validClaims()
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	_, err := newTestVerifier().Verify(sign(t, jwt.SigningMethodHS256, testSecret, c))

	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifier_Verify_NotYetValid(t *testing.T) {
	c := validClaims()
	c.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))

	_, err := newTestVerifier().Verify(sign(t, jwt.SigningMethodHS256, testSecret, c))

	assert.ErrorIs(t, err, ErrTokenNotYetValid)
}

func TestVerifier_Verify_ClockOverride(t *testing.T) {
	c := validClaims()
	token := sign(t, jwt.SigningMethodHS256, testSecret, c)
	future := func() time.Time { return time.Now().Add(time.Hour) }

	_, err := newTestVerifier(WithClock(future)).Verify(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifier_Verify_WrongSecret(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, "another-secret-key-of-32-characters", validClaims())

	_, err := newTestVerifier().Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_Verify_WrongIssuer(t *testing.T) {
	c := validClaims()
	c.Issuer = "someone-else"

	_, err := newTestVerifier().Verify(sign(t, jwt.SigningMethodHS256, testSecret, c))

	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestVerifier_Verify_IssuerCheckDisabled(t *testing.T) {
	c := validClaims()
	c.Issuer = "someone-else"
	v := NewVerifier(config.JWTConfig{Secret: testSecret})

	claims, err := v.Verify(sign(t, jwt.SigningMethodHS256, testSecret, c))

	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestVerifier_Verify_RejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims()).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestVerifier().Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_Verify_Garbage(t *testing.T) {
	for _, token := range []string{"", "abc", "a.b.c"} {
		_, err := newTestVerifier().Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestClaims_Roles(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		admin  bool
	}{
		{"primary role", Claims{Role: RoleAdmin}, true},
		{"role list", Claims{Role: "user", Roles: []string{"support", RoleAdmin}}, true},
		{"plain user", Claims{Role: "user"}, false},
		{"no roles", Claims{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.admin, tt.claims.IsAdmin())
		})
	}
}
