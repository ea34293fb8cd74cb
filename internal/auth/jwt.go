package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum HS256 signing key size in bytes.
const MinSecretLength = 32

// accessTokenType marks tokens issued for API access.
const accessTokenType = "access"

// ErrWeakSecret is returned when the signing secret is too short.
var ErrWeakSecret = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)

// accessClaims are the claims written into issued access tokens.
type accessClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 access tokens.
type JWTManager struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	now      func() time.Time
}

// NewJWTManager creates a manager signing with the given secret.
func NewJWTManager(
	secret string,
	issuer string,
	lifetime time.Duration,
) (*JWTManager, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("jwt lifetime must be positive, got %s", lifetime)
	}

	return &JWTManager{
		secret:   []byte(secret),
		issuer:   issuer,
		lifetime: lifetime,
		now:      time.Now,
	}, nil
}

// Lifetime returns how long issued tokens stay valid.
func (m *JWTManager) Lifetime() time.Duration {
	return m.lifetime
}

// Issue signs a new access token for subject and returns it with its expiry.
func (m *JWTManager) Issue(subject string) (string, time.Time, error) {
	now := m.now()
	expiry := now.Add(m.lifetime)

	claims := accessClaims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}

	return signed, expiry, nil
}

// Verify validates signature, algorithm, issuer, expiry and token type.
func (m *JWTManager) Verify(_ context.Context, rawToken string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(rawToken, claims,
		func(_ *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, classifyJWTError(err)
	}

	if tt, _ := claims["token_type"].(string); tt != accessTokenType {
		return nil, fmt.Errorf("%w: token_type %q is not %q", ErrInvalidToken, tt, accessTokenType)
	}

	return tokenClaimsFromMap(claims)
}

// classifyJWTError maps golang-jwt errors onto this package's sentinels.
func classifyJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidToken, err)
}

// tokenClaimsFromMap extracts registered claims from a verified token.
func tokenClaimsFromMap(claims jwt.MapClaims) (*TokenClaims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	iss, _ := claims.GetIssuer()
	aud, _ := claims.GetAudience()

	var expiry time.Time
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		expiry = exp.Time
	}

	return &TokenClaims{
		Subject:  sub,
		Audience: []string(aud),
		Issuer:   iss,
		Expiry:   expiry,
		Claims:   map[string]any(claims),
	}, nil
}
