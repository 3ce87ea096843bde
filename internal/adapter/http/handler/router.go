package handler

import (
	"net/http"

	"sodminer-wallet/internal/adapter/http/middleware"
	redisStore "sodminer-wallet/internal/adapter/storage/redis"
	"sodminer-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService      // nil = audit logging disabled
	Metrics        middleware.HTTPObserver // nil = no request metrics
	MetricsHandler http.Handler            // nil = /metrics not exposed
	AdminRole      string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	adminRole := deps.AdminRole
	if adminRole == "" {
		adminRole = "admin"
	}

	v1 := r.Group("/api/v1")
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	// --- Player wallet (JWT-authenticated) ---
	walletHandler := NewWalletHandler(deps.LedgerSvc)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet_read"), walletHandler.GetWallet)
		wallet.PUT("/address", rl("wallet_read"), walletHandler.UpdateAddress)
		wallet.GET("/balance", rl("wallet_read"), walletHandler.GetBalance)
		wallet.GET("/stats", rl("wallet_read"), walletHandler.GetStats)
		wallet.GET("/settings", rl("wallet_read"), walletHandler.GetSettings)
		wallet.GET("/transactions", rl("wallet_read"), walletHandler.ListTransactions)

		wallet.POST("/deposits", rl("deposits"), walletHandler.Deposit)
		wallet.POST("/withdrawals", rl("withdrawals"), walletHandler.RequestWithdrawal)
		wallet.GET("/withdrawals", rl("wallet_read"), walletHandler.ListWithdrawals)
		wallet.GET("/withdrawals/:id", rl("wallet_read"), walletHandler.GetWithdrawal)
		wallet.POST("/transfers", rl("transfers"), walletHandler.Transfer)
		wallet.POST("/purchases", rl("purchases"), walletHandler.PurchasePlan)
	}

	// --- Operators (JWT + role claim) ---
	adminHandler := NewAdminHandler(deps.LedgerSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.RequireRole(adminRole), rl("admin"))
	{
		admin.GET("/withdrawals", adminHandler.ListWithdrawals)
		admin.PATCH("/withdrawals/:id", adminHandler.UpdateWithdrawalStatus)
		admin.PUT("/settings", adminHandler.UpdateSettings)
	}

	return r
}
