package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()

	m, err := NewJWTManager(testSecret, "items-api", 5*time.Minute)
	require.NoError(t, err)

	return m
}

func TestNewJWTManager_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewJWTManager("short", "items-api", time.Minute)
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = NewJWTManager(testSecret, "items-api", 0)
	assert.Error(t, err)
}

func TestJWTManager_IssueAndVerify(t *testing.T) {
	t.Parallel()

	// Arrange
	m := newTestManager(t)

	// Act
	token, expiry, err := m.Issue("testuser")
	require.NoError(t, err)

	claims, err := m.Verify(context.Background(), token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "testuser", claims.Subject)
	assert.Equal(t, "items-api", claims.Issuer)
	assert.WithinDuration(t, expiry, claims.Expiry, time.Second)
	assert.Equal(t, "access", claims.Claims["token_type"])
	assert.NotEmpty(t, claims.Claims["jti"])
	assert.Equal(t, 5*time.Minute, m.Lifetime())
}

func TestJWTManager_Expired(t *testing.T) {
	t.Parallel()

	// Arrange
	m := newTestManager(t)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := m.Issue("testuser")
	require.NoError(t, err)
	m.now = time.Now

	// Act
	_, err = m.Verify(context.Background(), token)

	// Assert
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_Rejects(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	valid, _, err := m.Issue("testuser")
	require.NoError(t, err)

	other, err := NewJWTManager(strings.Repeat("x", 32), "items-api", time.Minute)
	require.NoError(t, err)
	foreign, _, err := other.Issue("testuser")
	require.NoError(t, err)

	otherIssuer, err := NewJWTManager(testSecret, "someone-else", time.Minute)
	require.NoError(t, err)
	wrongIssuer, _, err := otherIssuer.Issue("testuser")
	require.NoError(t, err)

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "testuser",
		"iss":        "items-api",
		"exp":        time.Now().Add(time.Minute).Unix(),
		"token_type": "refresh",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "testuser",
		"iss":        "items-api",
		"token_type": "access",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub":        "testuser",
		"iss":        "items-api",
		"exp":        time.Now().Add(time.Minute).Unix(),
		"token_type": "access",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"tampered", valid[:strings.LastIndex(valid, ".")] + ".c2lnbmF0dXJl"},
		{"foreign secret", foreign},
		{"wrong issuer", wrongIssuer},
		{"refresh token", refresh},
		{"missing expiry", noExpiry},
		{"unexpected algorithm", hs512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := m.Verify(context.Background(), tt.token)

			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}
