package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruban1613/ibet/config"
	httpHandler "github.com/ruban1613/ibet/internal/adapter/http/handler"
	"github.com/ruban1613/ibet/internal/adapter/notify"
	pgStorage "github.com/ruban1613/ibet/internal/adapter/storage/postgres"
	redisStorage "github.com/ruban1613/ibet/internal/adapter/storage/redis"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/internal/service"
	"github.com/ruban1613/ibet/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting IBET wallet core")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	eventRepo := pgStorage.NewSecurityEventRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	challengeStore := redisStorage.NewChallengeStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	activityStore := redisStorage.NewActivityStore(rdb)
	eventCache := redisStorage.NewEventCache(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	secretHasher := service.NewHMACSecretHasher(cfg.OTP.Secret)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	securitySvc := service.NewSecurityService(eventRepo, eventCache, log)
	rateLimiter := service.NewRateLimitService(rateLimitStore, securitySvc, cfg.RateLimit, log)
	anomalySvc := service.NewAnomalyService(activityStore, securitySvc, service.DefaultAnomalyRules(), log)
	otpSvc := service.NewOTPService(challengeStore, secretHasher, rateLimiter, anomalySvc, securitySvc, cfg.OTP, log)
	walletSvc := service.NewWalletService(walletRepo, txRepo, transactor, securitySvc, anomalySvc, cfg.Wallet, log)
	authSvc := service.NewAuthService(userRepo, walletRepo, hashSvc, tokenSvc, securitySvc, anomalySvc, log)

	// OTP delivery channel. The log sender is for development; swap in a
	// real SMS/email adapter for production.
	otpSender := notify.NewLogSender(log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		OTPSvc:         otpSvc,
		OTPSender:      otpSender,
		WalletSvc:      walletSvc,
		WalletRepo:     walletRepo,
		SecuritySvc:    securitySvc,
		TokenSvc:       tokenSvc,
		RateLimiter:    rateLimiter,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
