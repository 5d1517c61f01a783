package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sewago/sewago-api/internal/config"
	"github.com/sewago/sewago-api/internal/domain/booking"
	"github.com/sewago/sewago-api/internal/domain/settlement"
	"github.com/sewago/sewago-api/internal/domain/wallet"
	"github.com/sewago/sewago-api/internal/middleware"
	"github.com/sewago/sewago-api/internal/pkg/database"
	"github.com/sewago/sewago-api/internal/pkg/esewa"
	"github.com/sewago/sewago-api/internal/pkg/events"
	"github.com/sewago/sewago-api/internal/pkg/gateway"
	"github.com/sewago/sewago-api/internal/pkg/jwt"
	"github.com/sewago/sewago-api/internal/pkg/khalti"
	"github.com/sewago/sewago-api/internal/pkg/logger"
	"github.com/sewago/sewago-api/internal/pkg/ratelimit"
	"github.com/sewago/sewago-api/internal/pkg/realtime"
	"github.com/sewago/sewago-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, Service: "sewago-api"})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting SewaGo API")

	ctx := context.Background()

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	redis, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Events ----------
	var publisher events.Publisher
	if cfg.EventsEnabled {
		publisher = events.Connect(cfg.RabbitMQURL, cfg.EventsExchange)
		defer publisher.Close()
	}

	hub := realtime.NewHub(redis)
	go hub.Run()
	defer hub.Shutdown()

	notifier := events.NewNotifier(publisher, hub)

	// ---------- Statement storage ----------
	store := newObjectStore(ctx, cfg)

	// ---------- Services ----------
	bookingService := booking.NewService(booking.NewRepository(db), notifier)
	walletService := wallet.NewService(wallet.NewRepository(db), store, cfg.StatementURLTTL)
	settlementService := settlement.NewService(
		settlement.NewRepository(db),
		bookingService,
		walletService,
		newGatewayRegistry(cfg),
		notifier,
		settlement.Config{
			BackendURL:     cfg.BackendURL,
			FrontendURL:    cfg.FrontendURL,
			VerifyAttempts: cfg.GatewayVerifyAttempts,
			RetryBackoff:   cfg.GatewayRetryBackoff,
			PendingAge:     cfg.PendingRecheckAge,
		},
	)

	// ---------- Handlers ----------
	authMiddleware := middleware.Auth(jwtService)
	var limiter *ratelimit.Limiter
	if redis != nil {
		limiter = ratelimit.New(redis, "sewago:ratelimit")
	}

	r := newRouter(routerDeps{
		allowedOrigins:    cfg.AllowedOrigins,
		authMiddleware:    authMiddleware,
		paymentLimiter:    middleware.LimitByUser(limiter, "payments", cfg.PaymentRateLimit, cfg.PaymentRateWindow),
		bookingHandler:    booking.NewHandler(bookingService, settlementService),
		walletHandler:     wallet.NewHandler(walletService),
		settlementHandler: settlement.NewHandler(settlementService, cfg.FrontendURL),
		wsHandler:         http.HandlerFunc(realtime.NewHandler(hub, cfg.AllowedOrigins).ServeWS),
		ping:              db.PingContext,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	notifier.Wait()

	log.Info().Msg("Server exited properly")
}

// newGatewayRegistry registers the providers that have credentials configured.
func newGatewayRegistry(cfg *config.Config) *gateway.Registry {
	registry := gateway.NewRegistry()
	if cfg.EsewaConfigured() {
		registry.Register(gateway.NewEsewaGateway(esewa.Config{
			BaseURL:     cfg.EsewaBaseURL,
			StatusURL:   cfg.EsewaStatusURL,
			ProductCode: cfg.EsewaProductCode,
			SecretKey:   cfg.EsewaSecretKey,
			Timeout:     cfg.GatewayTimeout,
			RPS:         cfg.GatewayRPS,
		}))
	} else {
		log.Warn().Msg("eSewa is not configured, gateway disabled")
	}
	if cfg.KhaltiConfigured() {
		registry.Register(gateway.NewKhaltiGateway(khalti.Config{
			BaseURL:    cfg.KhaltiBaseURL,
			SecretKey:  cfg.KhaltiSecretKey,
			WebsiteURL: cfg.KhaltiWebsiteURL,
			Timeout:    cfg.GatewayTimeout,
			RPS:        cfg.GatewayRPS,
		}))
	} else {
		log.Warn().Msg("Khalti is not configured, gateway disabled")
	}
	log.Info().Strs("gateways", registry.Names()).Msg("Payment gateways registered")
	return registry
}

// newObjectStore prefers R2 and falls back to local disk in development.
func newObjectStore(ctx context.Context, cfg *config.Config) storage.ObjectStore {
	if cfg.StorageConfigured() {
		r2, err := storage.NewR2Storage(ctx, storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 storage")
		}
		return r2
	}

	if cfg.IsProduction() {
		log.Warn().Msg("R2 is not configured, wallet statements disabled")
		return nil
	}
	local, err := storage.NewLocalStorage("./data/statements", cfg.BackendURL+"/files")
	if err != nil {
		log.Warn().Err(err).Msg("Local statement storage unavailable")
		return nil
	}
	return local
}
