// Package main is the entry point for the items API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/items-api/internal/auth"
	"github.com/vyrodovalexey/items-api/internal/config"
	"github.com/vyrodovalexey/items-api/internal/handler"
	"github.com/vyrodovalexey/items-api/internal/server"
	"github.com/vyrodovalexey/items-api/internal/service"
	"github.com/vyrodovalexey/items-api/internal/store"
)

const startupTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.Bool("debug", cfg.Debug),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("token_verifier", cfg.TokenVerifier),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStart()

	app, err := build(startCtx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return 1
	}
	defer app.close()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// application holds the wired server and the resources it must release.
type application struct {
	server  *server.Server
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build constructs every collaborator explicitly and hands them to the
// server by reference.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	app := &application{}

	itemStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() {
		if err := itemStore.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	})

	deps := server.Deps{Store: itemStore}

	verifier, stop, err := createVerifier(ctx, cfg, logger)
	if err != nil {
		app.close()
		return nil, err
	}
	if stop != nil {
		app.closers = append(app.closers, stop)
	}
	deps.Authenticator = auth.NewTokenAuthenticator(verifier)

	if manager, ok := verifier.(*auth.JWTManager); ok {
		users, err := auth.NewUserDirectory(cfg.AuthUsers)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("loading auth users: %w", err)
		}
		if users.Len() == 0 {
			logger.Warn("no login users configured, /api/auth/login will reject every attempt")
		}
		deps.Issuer = manager
		deps.Users = users
	}

	deps.Feed = handler.NewWebSocketHandler(cfg.AllowedOrigins(), logger)
	deps.Items = service.NewItemService(itemStore, deps.Feed)

	if cfg.SeedFile != "" {
		if err := seedEmptyStore(ctx, deps.Items, itemStore, cfg.SeedFile, logger); err != nil {
			app.close()
			return nil, err
		}
	}

	app.server = server.New(cfg, logger, deps)
	return app, nil
}

// openStore creates the configured item store.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == store.DriverMemory {
		return store.NewMemoryStore(), nil
	}

	s, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.StoreDriver, err)
	}
	return s, nil
}

// createVerifier builds the token verifier selected by config. The
// returned stop function, if any, releases background resources.
func createVerifier(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (auth.TokenVerifier, func(), error) {
	switch cfg.TokenVerifier {
	case config.VerifierLocal:
		logger.Info("token verifier: local HS256", zap.String("issuer", cfg.JWTIssuer))
		m, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenLifetime)
		if err != nil {
			return nil, nil, fmt.Errorf("creating JWT manager: %w", err)
		}
		return m, nil, nil
	case config.VerifierOIDC:
		logger.Info("token verifier: OIDC",
			zap.String("issuer_url", cfg.OIDCIssuerURL),
			zap.String("audience", cfg.OIDCAudience),
		)
		v, err := auth.NewOIDCTokenVerifier(ctx, cfg.OIDCIssuerURL, cfg.OIDCAudience)
		if err != nil {
			return nil, nil, fmt.Errorf("creating OIDC token verifier: %w", err)
		}
		return v, v.Stop, nil
	default:
		return nil, nil, fmt.Errorf("unknown token verifier: %s", cfg.TokenVerifier)
	}
}

// seedEmptyStore loads the seed file into a store that has no items yet.
func seedEmptyStore(
	ctx context.Context,
	items *service.ItemService,
	s store.Store,
	seedFile string,
	logger *zap.Logger,
) error {
	count, err := s.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting items: %w", err)
	}
	if count > 0 {
		logger.Info("store not empty, skipping seed", zap.Int("count", count))
		return nil
	}

	seed, err := service.LoadSeed(seedFile)
	if err != nil {
		return err
	}
	if err := items.Reset(ctx, seed); err != nil {
		return fmt.Errorf("seeding store: %w", err)
	}

	logger.Info("store seeded", zap.String("seed_file", seedFile), zap.Int("items", len(seed)))
	return nil
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}
