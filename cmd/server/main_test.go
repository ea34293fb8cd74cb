package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/items-api/internal/auth"
	"github.com/vyrodovalexey/items-api/internal/config"
	"github.com/vyrodovalexey/items-api/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func localConfig() *config.Config {
	return &config.Config{
		ServerPort:          8080,
		LogLevel:            "info",
		ShutdownTimeout:     time.Second,
		StoreDriver:         store.DriverMemory,
		TokenVerifier:       config.VerifierLocal,
		JWTSecret:           testSecret,
		JWTIssuer:           "items-api",
		AccessTokenLifetime: time.Minute,
		CookieSameSite:      "Lax",
		CORSAllowedOrigins:  "*",
	}
}

func TestInitLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "invalid"} {
		t.Run(level, func(t *testing.T) {
			logger, err := initLogger(level)

			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestInitLogger_InvalidFallsBackToInfo(t *testing.T) {
	logger, err := initLogger("verbose")

	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestCreateVerifier_Local(t *testing.T) {
	v, stop, err := createVerifier(context.Background(), localConfig(), zap.NewNop())

	require.NoError(t, err)
	assert.Nil(t, stop)
	assert.IsType(t, &auth.JWTManager{}, v)
}

func TestCreateVerifier_Unknown(t *testing.T) {
	cfg := localConfig()
	cfg.TokenVerifier = "saml"

	_, _, err := createVerifier(context.Background(), cfg, zap.NewNop())

	assert.Error(t, err)
}

func TestCreateVerifier_OIDCUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	cfg := localConfig()
	cfg.TokenVerifier = config.VerifierOIDC
	cfg.OIDCIssuerURL = srv.URL

	_, _, err := createVerifier(context.Background(), cfg, zap.NewNop())

	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dsn     string
		wantErr bool
	}{
		{"memory", store.DriverMemory, "", false},
		{"sqlite", store.DriverSQLite, ":memory:", false},
		{"unknown", "postgres", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig()
			cfg.StoreDriver = tt.driver
			cfg.StoreDSN = tt.dsn

			s, err := openStore(context.Background(), cfg)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Ping(context.Background()))
			assert.NoError(t, s.Close())
		})
	}
}

func TestBuild_SeedsEmptyStoreAndServes(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	seedFile := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(seedFile, []byte(`[{"name":"Apple","price":100}]`), 0o600))

	hash, err := auth.HashPassword("testpass123", bcrypt.MinCost)
	require.NoError(t, err)

	cfg := localConfig()
	cfg.SeedFile = seedFile
	cfg.AuthUsers = "testuser:" + hash

	// Act
	app, err := build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.close()

	manager, err := auth.NewJWTManager(testSecret, "items-api", time.Minute)
	require.NoError(t, err)
	token, _, err := manager.Issue("testuser")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	app.server.Router().ServeHTTP(rr, req)

	// Assert
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"items":[{"id":1,"name":"Apple","price":100}],"count":1,"limit":10,"offset":0}`, rr.Body.String())
}

func TestBuild_InvalidUsers(t *testing.T) {
	cfg := localConfig()
	cfg.AuthUsers = "no-colon"

	_, err := build(context.Background(), cfg, zap.NewNop())

	assert.Error(t, err)
}

func TestBuild_MissingSeedFile(t *testing.T) {
	cfg := localConfig()
	cfg.SeedFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := build(context.Background(), cfg, zap.NewNop())

	assert.Error(t, err)
}
