package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/sivia/sivia/internal/config"
	"github.com/sivia/sivia/internal/domain/consultation"
	"github.com/sivia/sivia/internal/domain/extraction"
	"github.com/sivia/sivia/internal/domain/occupational"
	"github.com/sivia/sivia/internal/domain/profile"
	"github.com/sivia/sivia/internal/domain/suggestion"
	"github.com/sivia/sivia/internal/platform/auth"
	"github.com/sivia/sivia/internal/platform/blobstore"
	"github.com/sivia/sivia/internal/platform/db"
	"github.com/sivia/sivia/internal/platform/gateway"
	"github.com/sivia/sivia/internal/platform/middleware"
)

const (
	version           = "0.1.0"
	documentUploadAPI = "/api/v1/document-parser"
)

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Shared AI rate limit
	var aiLimit []echo.MiddlewareFunc
	if cfg.RedisURL != "" {
		rdb, err := middleware.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		limiter := middleware.NewRedisRateLimiter(rdb, cfg.AIRateLimitPerMinute, time.Minute, logger)
		aiLimit = append(aiLimit, limiter.Middleware())
		logger.Info().Int("per_minute", cfg.AIRateLimitPerMinute).Msg("redis AI rate limit enabled")
	}

	archive, err := newArchive(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure document archive")
	}

	authMW, err := authMiddleware(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure auth")
	}

	e := newEcho(cfg, logger)
	e.GET("/health/db", db.HealthHandler(pool))

	api := e.Group("/api/v1")
	api.Use(authMW)
	api.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	api.Use(middleware.Audit(logger, middleware.AuditCounter))

	registerDomains(api, pool, cfg, logger, archive, aiLimit...)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newEcho builds the server with its global middleware and the
// unauthenticated operational routes.
func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{HSTS: cfg.TLSEnabled}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Client-Info", "apikey"},
	}))
	e.Use(middleware.Metrics())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadBodyLimit, documentUploadAPI))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", middleware.MetricsHandler())
	return e
}

func registerDomains(api *echo.Group, pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger, archive blobstore.Store, aiLimit ...echo.MiddlewareFunc) {
	gw := gateway.New(gateway.Config{
		BaseURL: cfg.AIGatewayURL,
		APIKey:  cfg.AIGatewayAPIKey,
		Timeout: cfg.AITimeout,
	})
	if !gw.Configured() {
		logger.Warn().Msg("AI_GATEWAY_API_KEY is not set; AI routes will answer 500")
	}

	// Profiles
	profileSvc := profile.NewService(profile.NewRepoPG(pool))
	profile.NewHandler(profileSvc).RegisterRoutes(api)

	// History store
	consultationSvc := consultation.NewService(consultation.NewRepoPG(pool), profileSvc)
	consultation.NewHandler(consultationSvc).RegisterRoutes(api)

	// Clarification and generation relays
	suggestionSvc := suggestion.NewService(gw, cfg.AIClinicalModel, logger)
	suggestionSvc.SetHistory(consultationSvc)
	suggestion.NewHandler(suggestionSvc).RegisterRoutes(api, aiLimit...)

	// Document extraction relay
	extractionSvc := extraction.NewService(gw, cfg.AIVisionModel, logger)
	if archive != nil {
		extractionSvc.SetArchive(archive)
	}
	extraction.NewHandler(extractionSvc).RegisterRoutes(api, aiLimit...)

	// Occupational exams
	occupationalSvc := occupational.NewService(occupational.NewRepoPG(pool), profileSvc)
	occupationalSvc.SetTxBeginner(pool)
	occupational.NewHandler(occupationalSvc).RegisterRoutes(api)
}

// authMiddleware selects token verification from the resolved auth mode.
func authMiddleware(cfg *config.Config) (echo.MiddlewareFunc, error) {
	switch mode := cfg.ResolvedAuthMode(); mode {
	case "development":
		return auth.DevAuthMiddleware(), nil
	case "jwks":
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}), nil
	case "secret":
		if cfg.AuthJWTSecret == "" {
			return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
		}
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthJWTSecret),
		}), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	return rl
}

// newArchive returns where accepted uploads are kept: S3 when a bucket is
// configured, memory in development, nowhere otherwise.
func newArchive(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch {
	case cfg.StorageBucket != "":
		store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:         cfg.StorageBucket,
			Region:         cfg.StorageRegion,
			Endpoint:       cfg.StorageEndpoint,
			AccessKey:      cfg.StorageAccessKey,
			SecretKey:      cfg.StorageSecretKey,
			ForcePathStyle: cfg.StorageForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case cfg.IsDev():
		return blobstore.NewMemoryStore(), nil
	}
	return nil, nil
}
