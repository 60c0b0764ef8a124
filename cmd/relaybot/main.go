package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/relay-bot/config"
	"github.com/d60-Lab/relay-bot/internal/api"
	"github.com/d60-Lab/relay-bot/internal/api/handler"
	"github.com/d60-Lab/relay-bot/internal/bot"
	"github.com/d60-Lab/relay-bot/internal/platform/telegram"
	"github.com/d60-Lab/relay-bot/internal/repository"
	"github.com/d60-Lab/relay-bot/internal/service"
	"github.com/d60-Lab/relay-bot/pkg/database"
	"github.com/d60-Lab/relay-bot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger 尚未初始化
		_, _ = os.Stderr.WriteString("relaybot: " + err.Error() + "\n")
		os.Exit(2)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		_, _ = os.Stderr.WriteString("relaybot: init logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			logger.Fatal("init sentry", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := initTracing(ctx, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	checks := map[string]handler.Pinger{}

	var db *gorm.DB
	if cfg.Directory.Backend == "sql" {
		db, err = database.InitDB(cfg)
		if err != nil {
			logger.Fatal("init database", zap.Error(err))
		}
		if err := repository.Migrate(db); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	var rdb *redis.Client
	if cfg.Directory.Backend == "redis" || cfg.Relay.CorrelationBackend == "redis" {
		rdb, err = database.InitRedis(ctx, cfg)
		if err != nil {
			logger.Fatal("init redis", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var users repository.UserRepository
	if rdb != nil && cfg.Directory.Backend == "redis" {
		users = repository.NewRedisUserRepository(rdb)
	} else {
		users = repository.NewUserRepository(db)
	}

	var correlations repository.CorrelationRepository
	if rdb != nil && cfg.Relay.CorrelationBackend == "redis" {
		correlations = repository.NewRedisCorrelationRepository(rdb, cfg.Relay.CorrelationTTL)
	} else {
		correlations = repository.NewMemoryCorrelationRepository(cfg.Relay.CorrelationCapacity, cfg.Relay.CorrelationTTL)
	}

	// HTTP 超时要覆盖 long polling
	client, err := telegram.New(cfg.Bot.Token, cfg.Bot.APIEndpoint, cfg.Bot.PollTimeout+cfg.Relay.CallTimeout)
	if err != nil {
		logger.Fatal("init telegram", zap.Error(err))
	}

	gate := service.NewMembershipGate(client, cfg.Bot.GateChat, cfg.Relay.CallTimeout)
	relay := service.NewRelayService(client, gate, users, correlations, service.RelayOptions{
		OperatorID:  cfg.Bot.OperatorID,
		CallTimeout: cfg.Relay.CallTimeout,
	})
	broadcast := service.NewBroadcastService(client, users, service.BroadcastOptions{
		OperatorID:  cfg.Bot.OperatorID,
		Workers:     cfg.Broadcast.Workers,
		Rate:        cfg.Broadcast.Rate,
		CallTimeout: cfg.Relay.CallTimeout,
	})

	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.NewRouter(handler.NewHandler(relay, checks)),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server listening", zap.String("addr", cfg.HTTP.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("relay bot started",
		zap.String("bot", client.Self()),
		zap.String("gate", cfg.Bot.GateChat),
		zap.String("directory", cfg.Directory.Backend),
		zap.String("correlations", cfg.Relay.CorrelationBackend))

	h := bot.NewHandler(client, relay, broadcast, cfg.Bot.GateChat, cfg.Relay.CallTimeout)
	bot.NewRunner(h, cfg.Relay.MaxInFlight, cfg.Relay.DrainTimeout).Run(ctx, client.Updates(ctx, cfg.Bot.PollTimeout))

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
	logger.Info("relay bot stopped")
}
