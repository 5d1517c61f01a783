package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sewago/sewago-api/internal/config"
	"github.com/sewago/sewago-api/internal/domain/booking"
	"github.com/sewago/sewago-api/internal/domain/settlement"
	"github.com/sewago/sewago-api/internal/domain/wallet"
	"github.com/sewago/sewago-api/internal/pkg/database"
	"github.com/sewago/sewago-api/internal/pkg/esewa"
	"github.com/sewago/sewago-api/internal/pkg/events"
	"github.com/sewago/sewago-api/internal/pkg/gateway"
	"github.com/sewago/sewago-api/internal/pkg/khalti"
	"github.com/sewago/sewago-api/internal/pkg/logger"
	"github.com/sewago/sewago-api/internal/pkg/scheduler"
)

// Publishing a job name on this channel runs the job immediately
const wakeChannel = "sewago:reconciler:run"

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, Service: "sewago-reconciler"})

	log.Info().Msg("Starting reconciler")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	var publisher events.Publisher
	if cfg.EventsEnabled {
		publisher = events.Connect(cfg.RabbitMQURL, cfg.EventsExchange)
		defer publisher.Close()
	}
	notifier := events.NewNotifier(publisher)

	bookingService := booking.NewService(booking.NewRepository(db), notifier)
	walletService := wallet.NewService(wallet.NewRepository(db), nil, cfg.StatementURLTTL)
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

	jobs := newJobs(walletService, settlementService)

	sched := scheduler.New(10 * time.Minute)
	if err := sched.Register(jobLedgerAudit, cfg.ReconcileSchedule, jobs[jobLedgerAudit]); err != nil {
		log.Fatal().Err(err).Msg("Invalid reconcile schedule")
	}
	if err := sched.Register(jobPendingRecheck, cfg.PendingRecheckSchedule, jobs[jobPendingRecheck]); err != nil {
		log.Fatal().Err(err).Msg("Invalid pending recheck schedule")
	}
	sched.Start()

	if rdb != nil {
		go subscribeWakeups(ctx, rdb, func(name string) {
			job, ok := jobs[name]
			if !ok {
				log.Warn().Str("job", name).Msg("Unknown job requested")
				return
			}
			sched.RunNow(name, job)
		})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	log.Info().Msg("Shutdown signal received")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	sched.Stop(stopCtx)
	notifier.Wait()

	log.Info().Msg("Reconciler stopped")
}

// subscribeWakeups runs on-demand jobs published by operators. Scheduled runs continue regardless.
func subscribeWakeups(ctx context.Context, rdb *redis.Client, run func(name string)) {
	sub := rdb.Subscribe(ctx, wakeChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		log.Warn().Err(err).Msg("Redis wake-up subscription failed (scheduled runs only)")
		return
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			log.Info().Str("job", msg.Payload).Msg("Wake-up received")
			run(msg.Payload)
		}
	}
}

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
	}
	if cfg.KhaltiConfigured() {
		registry.Register(gateway.NewKhaltiGateway(khalti.Config{
			BaseURL:    cfg.KhaltiBaseURL,
			SecretKey:  cfg.KhaltiSecretKey,
			WebsiteURL: cfg.KhaltiWebsiteURL,
			Timeout:    cfg.GatewayTimeout,
			RPS:        cfg.GatewayRPS,
		}))
	}
	return registry
}
