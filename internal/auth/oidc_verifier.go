package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OIDC verifier errors.
var (
	ErrJWKSFetch   = errors.New("failed to fetch JWKS")
	ErrKeyNotFound = errors.New("signing key not found in JWKS")
)

// jwksRefreshInterval defines how often the JWKS keys are refreshed.
const jwksRefreshInterval = 5 * time.Minute

// maxJWKSRetries is the maximum number of retry attempts for JWKS fetch.
const maxJWKSRetries = 3

// initialRetryDelay is the base delay for exponential backoff.
const initialRetryDelay = 500 * time.Millisecond

// missRefreshInterval is the minimum time between JWKS refreshes triggered
// by tokens carrying an unknown kid.
const missRefreshInterval = 30 * time.Second

// httpClientTimeout is the timeout for HTTP requests to the OIDC provider.
const httpClientTimeout = 10 * time.Second

var rsaMethods = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodRS384.Alg(),
	jwt.SigningMethodRS512.Alg(),
}

// oidcDiscoveryDocument represents the OpenID Connect discovery document.
type oidcDiscoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// jwksDocument represents a JSON Web Key Set document.
type jwksDocument struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey represents a single JSON Web Key.
type jwkKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// OIDCTokenVerifier implements TokenVerifier by validating RSA-signed
// JWTs against keys published by an OIDC provider.
type OIDCTokenVerifier struct {
	issuerURL string
	audience  string
	jwksURI   string
	client    *http.Client

	mu              sync.RWMutex
	keys            map[string]*rsa.PublicKey // kid -> public key
	lastMissRefresh time.Time

	stopRefresh chan struct{}
	stopOnce    sync.Once
}

// NewOIDCTokenVerifier fetches the discovery document and JWKS from the
// issuer and starts a background goroutine refreshing the keys.
// An empty audience disables the audience check.
func NewOIDCTokenVerifier(
	ctx context.Context,
	issuerURL string,
	audience string,
) (*OIDCTokenVerifier, error) {
	client := &http.Client{Timeout: httpClientTimeout}

	discoveryURL := strings.TrimRight(issuerURL, "/") + "/.well-known/openid-configuration"

	var disc oidcDiscoveryDocument
	if err := getJSON(ctx, client, discoveryURL, &disc); err != nil {
		return nil, fmt.Errorf("fetching OIDC discovery document: %w", err)
	}
	if disc.JWKSURI == "" {
		return nil, fmt.Errorf("discovery document missing jwks_uri")
	}

	v := &OIDCTokenVerifier{
		issuerURL:   issuerURL,
		audience:    audience,
		jwksURI:     disc.JWKSURI,
		client:      client,
		keys:        make(map[string]*rsa.PublicKey),
		stopRefresh: make(chan struct{}),
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, fmt.Errorf("initial JWKS fetch: %w", err)
	}

	go v.backgroundRefresh()

	return v, nil
}

// Stop terminates the background JWKS refresh goroutine.
func (v *OIDCTokenVerifier) Stop() {
	v.stopOnce.Do(func() { close(v.stopRefresh) })
}

// Verify validates the token signature, algorithm, issuer, expiry and
// (when configured) audience.
func (v *OIDCTokenVerifier) Verify(ctx context.Context, rawToken string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(rsaMethods),
		jwt.WithIssuer(v.issuerURL),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.getKey(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, classifyJWTError(err)
	}

	return tokenClaimsFromMap(claims)
}

// getKey retrieves the RSA public key for the given key ID from the cached JWKS.
func (v *OIDCTokenVerifier) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	v.mu.RUnlock()

	if ok {
		return key, nil
	}

	// Keys may have been rotated. A miss refreshes with a single attempt,
	// at most once per missRefreshInterval.
	if !v.reserveMissRefresh() {
		return nil, fmt.Errorf("%w: kid=%q", ErrKeyNotFound, kid)
	}
	if err := v.loadKeys(ctx); err != nil {
		return nil, fmt.Errorf("%w: refresh failed: %w", ErrKeyNotFound, err)
	}

	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: kid=%q", ErrKeyNotFound, kid)
	}

	return key, nil
}

// reserveMissRefresh reports whether a cache miss may refresh the keys now.
func (v *OIDCTokenVerifier) reserveMissRefresh() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.lastMissRefresh.IsZero() && time.Since(v.lastMissRefresh) < missRefreshInterval {
		return false
	}
	v.lastMissRefresh = time.Now()
	return true
}

// loadKeys fetches the JWKS document once and replaces the cached keys.
func (v *OIDCTokenVerifier) loadKeys(ctx context.Context) error {
	keys, err := fetchJWKS(ctx, v.client, v.jwksURI)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJWKSFetch, err)
	}

	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()

	return nil
}

// refreshKeys fetches the JWKS document with exponential backoff and
// replaces the cached keys.
func (v *OIDCTokenVerifier) refreshKeys(ctx context.Context) error {
	var lastErr error
	delay := initialRetryDelay

	for attempt := range maxJWKSRetries {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrJWKSFetch, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		if lastErr = v.loadKeys(ctx); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("after %d attempts: %w", maxJWKSRetries, lastErr)
}

// backgroundRefresh periodically refreshes the JWKS keys.
func (v *OIDCTokenVerifier) backgroundRefresh() {
	ticker := time.NewTicker(jwksRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-v.stopRefresh:
			return
		case <-ticker.C:
			// Cached keys stay in use until a refresh succeeds.
			_ = v.refreshKeys(context.Background())
		}
	}
}

// getJSON performs a GET and decodes a 200 response into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}

	return nil
}

// fetchJWKS retrieves the JWKS document and parses RSA signing keys.
func fetchJWKS(ctx context.Context, client *http.Client, jwksURI string) (map[string]*rsa.PublicKey, error) {
	var doc jwksDocument
	if err := getJSON(ctx, client, jwksURI, &doc); err != nil {
		return nil, err
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))

	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}

		pubKey, err := parseRSAPublicKey(jwk)
		if err != nil {
			continue
		}

		keys[jwk.Kid] = pubKey
	}

	return keys, nil
}

// parseRSAPublicKey constructs an RSA public key from a JWK.
func parseRSAPublicKey(jwk jwkKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(jwk.N, "="))
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(jwk.E, "="))
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
