// The astroline bot entry point: loads configuration, prepares storage,
// restores per-user delivery schedules and runs the Telegram event loop next
// to an operational HTTP server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/astroline/astroline-bot/internal/bot"
	"github.com/astroline/astroline-bot/internal/database"
	"github.com/astroline/astroline-bot/internal/delivery"
	apperrors "github.com/astroline/astroline-bot/internal/errors"
	"github.com/astroline/astroline-bot/internal/health"
	"github.com/astroline/astroline-bot/internal/idempotency"
	"github.com/astroline/astroline-bot/internal/payments"
	"github.com/astroline/astroline-bot/internal/profile"
	"github.com/astroline/astroline-bot/internal/ratelimit"
	"github.com/astroline/astroline-bot/internal/repository"
	"github.com/astroline/astroline-bot/internal/scheduler"
	"github.com/astroline/astroline-bot/internal/state"
	"github.com/astroline/astroline-bot/pkg/config"
	"github.com/astroline/astroline-bot/pkg/graceful"
	"github.com/astroline/astroline-bot/pkg/logger"
	"github.com/astroline/astroline-bot/pkg/metrics"
	pkgredis "github.com/astroline/astroline-bot/pkg/redis"

	_ "github.com/lib/pq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, level := logger.New(cfg.Logger, cfg.Sentry.Enabled)
	slog.SetDefault(log)

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.AppEnv,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	config.Watch(v, func(fresh *config.Config) {
		level.Set(logger.ParseLevel(fresh.Logger.Level))
		log.Info("config reloaded", slog.String("log_level", fresh.Logger.Level))
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("error closing database", slog.Any("error", cerr))
		}
	}()

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	redisClient, err := pkgredis.New(ctx, pkgredis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			log.Error("error closing redis", slog.Any("error", cerr))
		}
	}()

	fsm := state.NewMachine(state.NewRedisStorage(redisClient.Client, log), log, redisClient.Client)

	profileRepo := repository.NewProfileRepository(db, log)
	paymentRepo := repository.NewPaymentRepository(db, log)
	profiles := profile.NewService(profileRepo, paymentRepo, cfg.Referral.BonusPoints, log)

	idem := idempotency.NewManager(idempotency.NewRedisStore(redisClient.Client, log), log)
	processor := payments.NewProcessor(profiles, idem, cfg.Subscription.Period(), log)

	limiter := ratelimit.NewRedisLimiter(redisClient.Client, log)
	rules := ratelimit.NewRules(cfg.RateLimit)

	// The scheduler fires into the deliverer, which sends through the bot,
	// and the bot's handlers re-arm the scheduler. The callback closes over
	// the deliverer variable to break the construction cycle.
	var deliverer *delivery.Deliverer
	sched := scheduler.New(func(ctx context.Context, userID int64) {
		if deliverer != nil {
			deliverer.Deliver(ctx, userID)
		}
	}, log)
	defer sched.Shutdown()

	b, err := bot.New(*cfg, log, fsm, profiles, sched, processor, limiter, rules)
	if err != nil {
		return fmt.Errorf("build bot: %w", err)
	}

	deliverer = delivery.New(profiles, b, log)

	if err := restoreSchedules(ctx, profiles, sched, log); err != nil {
		return err
	}

	checker := health.NewChecker(log)
	checker.AddCheck("postgres", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(redisClient.Client))
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))

	mux := http.NewServeMux()
	mux.Handle("/healthz", logger.Middleware(checker.Handler()))
	mux.Handle("/metrics", promhttp.Handler())

	srv := graceful.NewServer(log, &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}, shutdownTimeout)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.ListenAndServe(ctx)
	}()

	go b.Start()
	log.Info("bot started",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.HTTP.Port),
		slog.Int("scheduled_users", sched.Len()),
	)

	<-ctx.Done()
	log.Info("shutting down")

	b.Stop()

	if err := <-srvErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// The database may come up after the bot in containerized deployments.
	err = apperrors.WithRetry(ctx, func() error {
		if pingErr := db.PingContext(ctx); pingErr != nil {
			return apperrors.NewStoreError(pingErr)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func restoreSchedules(ctx context.Context, profiles *profile.Service, sched *scheduler.Scheduler, log *slog.Logger) error {
	all, err := profiles.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}

	for _, p := range all {
		if err := sched.Reschedule(p.UserID, p.MessageTime); err != nil {
			log.Error("failed to restore schedule",
				slog.Int64("user_id", p.UserID),
				slog.String("message_time", p.MessageTime),
				slog.Any("error", err),
			)
		}
	}

	metrics.SetScheduledJobs(sched.Len())
	log.Info("restored delivery schedules", slog.Int("count", sched.Len()))

	return nil
}
