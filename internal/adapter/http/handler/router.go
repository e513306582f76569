package handler

import (
	"github.com/ruban1613/ibet/internal/adapter/http/middleware"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	OTPSvc         ports.OTPService
	OTPSender      ports.OTPSender // nil = codes not delivered (dev mode)
	WalletSvc      ports.WalletService
	WalletRepo     ports.WalletRepository
	SecuritySvc    ports.SecurityRecorder
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = HTTP-level rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
// OTP issuance and verification enforce their own scopes inside the
// service, so only the wallet scopes are applied at the HTTP boundary.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Helper: return rate limiter middleware if configured, else noop.
	rl := func(scope string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimit(deps.RateLimiter, scope, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	otpHandler := NewOTPHandler(deps.OTPSvc, deps.OTPSender, deps.Logger)
	otp := v1.Group("/otp", jwtAuth)
	{
		otp.POST("/request", otpHandler.Request)
		otp.POST("/verify", otpHandler.Verify)
	}

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.OTPSvc, deps.WalletRepo)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl(service.ScopeWalletAccess), walletHandler.Balance)
		wallet.GET("/transactions", rl(service.ScopeWalletAccess), walletHandler.Transactions)
		wallet.POST("/deposit", rl(service.ScopeSensitiveOperation), walletHandler.Deposit)
		wallet.POST("/withdraw", rl(service.ScopeSensitiveOperation), walletHandler.Withdraw)
		wallet.POST("/transfer", rl(service.ScopeSensitiveOperation), walletHandler.Transfer)
		wallet.PUT("/lock", rl(service.ScopeSensitiveOperation), walletHandler.SetLock)
	}

	securityHandler := NewSecurityHandler(deps.SecuritySvc)
	security := v1.Group("/security", jwtAuth)
	{
		security.GET("/events", rl(service.ScopeWalletAccess), securityHandler.Events)
	}

	return r
}
