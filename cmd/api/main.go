package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sodminer-wallet/config"
	httpHandler "sodminer-wallet/internal/adapter/http/handler"
	"sodminer-wallet/internal/adapter/messaging/rabbitmq"
	"sodminer-wallet/internal/adapter/metrics"
	"sodminer-wallet/internal/adapter/storage/memory"
	pgStorage "sodminer-wallet/internal/adapter/storage/postgres"
	redisStorage "sodminer-wallet/internal/adapter/storage/redis"
	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"
	"sodminer-wallet/internal/service"
	"sodminer-wallet/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// gateway bundles the repositories of one storage driver.
type gateway struct {
	wallets     ports.WalletRepository
	txns        ports.WalletTransactionRepository
	withdrawals ports.WithdrawalRepository
	settings    ports.SettingsRepository
	idempotency ports.IdempotencyRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
	close       func()
}

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("SMW_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting SOD Miner wallet")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required to verify bearer tokens")
	}

	defaults, err := defaultSettings(cfg.Wallet)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid wallet defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence gateway
	gw, err := openGateway(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer gw.close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	notifier := redisStorage.NewSettingsNotifier(rdb, logger.Component(log, "settings"))

	// Ledger events
	var publisher ports.EventPublisher
	if cfg.RabbitMQ.URL == "" {
		publisher = rabbitmq.NewNopPublisher(log)
	} else if p, err := rabbitmq.NewPublisher(cfg.RabbitMQ, logger.Component(log, "events")); err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, ledger events disabled")
		publisher = rabbitmq.NewNopPublisher(log)
	} else {
		publisher = p
		log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("RabbitMQ connected")
	}
	defer publisher.Close()

	prom := metrics.NewPrometheus()

	// Initialize services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(gw.audit, log)
	ledgerSvc := service.NewLedgerService(service.LedgerDeps{
		Wallets:          gw.wallets,
		Transactions:     gw.txns,
		Withdrawals:      gw.withdrawals,
		Settings:         gw.settings,
		IdempotencyRepo:  gw.idempotency,
		IdempotencyCache: idempotencyCache,
		Transactor:       gw.transactor,
		Publisher:        publisher,
		Notifier:         notifier,
		Metrics:          prom,
		DefaultSettings:  defaults,
		IdempotencyTTL:   cfg.Wallet.IdempotencyTTL,
		Logger:           log,
	})

	// Settings must be loaded before the first request is served.
	if err := ledgerSvc.LoadSettings(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load wallet settings")
	}
	if err := notifier.Listen(ctx, ledgerSvc.LoadSettings); err != nil {
		log.Warn().Err(err).Msg("Settings updates from other instances will not be picked up")
	}

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{gw.health, redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       auditSvc,
		Metrics:        prom,
		MetricsHandler: prom.Handler(),
		AdminRole:      cfg.JWT.AdminRole,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// defaultSettings turns the wallet config section into the fallback policy
// used for keys missing from the settings table.
func defaultSettings(w config.WalletConfig) (domain.WalletSettings, error) {
	settings, err := domain.WalletSettings{}.Merge(map[string]string{
		domain.SettingUSDTCap:                  w.USDTCap,
		domain.SettingMinWithdrawalUSDT:        w.MinWithdrawalUSDT,
		domain.SettingMaxWithdrawalUSDT:        w.MaxWithdrawalUSDT,
		domain.SettingWithdrawalFeePercent:     w.WithdrawalFeePercent,
		domain.SettingWithdrawalProcessingTime: w.WithdrawalProcessingTime,
	})
	if err != nil {
		return domain.WalletSettings{}, err
	}
	return settings, settings.Validate()
}

// openGateway connects the configured storage driver.
func openGateway(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gateway, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &gateway{
			wallets:     memory.NewWalletRepo(store),
			txns:        memory.NewTransactionRepo(store),
			withdrawals: memory.NewWithdrawalRepo(store),
			settings:    memory.NewSettingsRepo(store),
			idempotency: memory.NewIdempotencyRepo(store),
			audit:       memory.NewAuditRepo(store),
			transactor:  memory.NewTransactor(store),
			health:      store,
			close:       func() {},
		}, nil

	case "postgres", "":
		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(cfg.Database, log); err != nil {
				return nil, err
			}
		}
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("PostgreSQL connected")
		return &gateway{
			wallets:     pgStorage.NewWalletRepo(pool),
			txns:        pgStorage.NewTransactionRepo(pool),
			withdrawals: pgStorage.NewWithdrawalRepo(pool),
			settings:    pgStorage.NewSettingsRepo(pool),
			idempotency: pgStorage.NewIdempotencyRepo(pool),
			audit:       pgStorage.NewAuditRepo(pool),
			transactor:  pgStorage.NewTransactor(pool),
			health:      pgStorage.NewHealthCheck(pool),
			close:       pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
