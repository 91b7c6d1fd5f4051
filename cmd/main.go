package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	httpapi "github.com/immxrtalbeast/safewatch/internal/api/http"
	"github.com/immxrtalbeast/safewatch/internal/auth"
	"github.com/immxrtalbeast/safewatch/internal/broker"
	"github.com/immxrtalbeast/safewatch/internal/config"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/internal/repository"
	"github.com/immxrtalbeast/safewatch/internal/repository/model"
	"github.com/immxrtalbeast/safewatch/internal/service"
	"github.com/immxrtalbeast/safewatch/internal/sms"
	"github.com/immxrtalbeast/safewatch/lib/logger/sl"
	"github.com/immxrtalbeast/safewatch/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	if cfg.Auth.Secret == "" {
		log.Error("auth secret is empty")
		os.Exit(1)
	}

	ctx := context.Background()

	principals, observers, err := setupRepositories(cfg.Database, log)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}

	directory := service.NewDirectoryService(principals, observers, log)
	policy := service.LinkPolicy{Open: cfg.Relay.OpenRooms}

	relayOpts := service.RelayOptions{
		Policy:     policy,
		OutboxSize: cfg.Relay.OutboxSize,
	}

	var fanout *broker.RedisBroker
	if cfg.Redis.Addr != "" {
		client := broker.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		fanout = broker.NewRedisBroker(client, cfg.Redis.Channel, log)
		if err := fanout.Ping(ctx); err != nil {
			log.Error("failed to connect redis", sl.Err(err))
			os.Exit(1)
		}
		relayOpts.Fanout = fanout
	}

	relay := service.NewRelayService(directory, relayOpts, log)

	if fanout != nil {
		sub, err := fanout.Subscribe(ctx)
		if err != nil {
			log.Error("failed to subscribe relay channel", sl.Err(err))
			os.Exit(1)
		}
		go func() {
			err := sub.Run(ctx, func(env domain.Envelope) { relay.Deliver(env) })
			log.Error("relay subscription stopped", sl.Err(err))
		}()
		log.Info("relay fan-out via redis", slog.String("channel", cfg.Redis.Channel))
	}

	var sender service.SMSSender
	if cfg.SMS.Enabled() {
		sender = sms.NewTwilioSender(cfg.SMS.BaseURL, cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From, log)
	} else {
		log.Warn("sms gateway not configured, alerts are web only")
	}

	alerts := service.NewAlertService(relay, directory, sender, policy, cfg.SMS.CountryPrefix, log)
	gate := auth.NewGate(cfg.Auth.Secret, cfg.Auth.TokenTTL, directory, log)

	router := httpapi.SetupRouter(cfg.HTTP.AllowOrigins, gate, httpapi.Controllers{
		Relay:     httpapi.NewRelayController(relay, cfg.Relay.PingInterval, log),
		Directory: httpapi.NewDirectoryController(directory, gate),
		Alerts:    httpapi.NewAlertController(alerts),
	})

	log.Info("starting application",
		slog.String("addr", cfg.HTTP.Address),
		slog.Bool("open_rooms", cfg.Relay.OpenRooms),
	)
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupRepositories(cfg config.DatabaseConfig, log *slog.Logger) (repository.PrincipalRepository, repository.ObserverRepository, error) {
	if cfg.DSN == "" {
		log.Warn("database dsn is empty, directory is kept in memory")
		return repository.NewInMemoryPrincipalRepository(), repository.NewInMemoryObserverRepository(), nil
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewPostgresPrincipalRepository(db), repository.NewPostgresObserverRepository(db), nil
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.Principal{}, &model.Observer{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
