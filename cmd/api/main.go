// Package main запускает HTTP API ассистента и, если включен, gRPC
// сервер проверки здоровья
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Ultrahd-dev/pronote-assistant/internal/ai"
	"github.com/Ultrahd-dev/pronote-assistant/internal/auth"
	"github.com/Ultrahd-dev/pronote-assistant/internal/config"
	"github.com/Ultrahd-dev/pronote-assistant/internal/crypt"
	"github.com/Ultrahd-dev/pronote-assistant/internal/grpc"
	"github.com/Ultrahd-dev/pronote-assistant/internal/jwt"
	"github.com/Ultrahd-dev/pronote-assistant/internal/portal"
	"github.com/Ultrahd-dev/pronote-assistant/internal/server"
	"github.com/Ultrahd-dev/pronote-assistant/internal/session"
)

// Интервал удаления просроченных сессий из PostgreSQL
const purgeInterval = time.Hour

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// Ожидаем сигнала завершения
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sealer, err := crypt.NewSealer(cfg.Security.EncryptionKey)
	if err != nil {
		return err
	}
	sessions := session.NewManager(store, sealer, cfg.Session.TTL, logger)
	tokens := jwt.NewManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiration)

	fixture, err := portal.LoadFixture(cfg.Portal.FixturePath)
	if err != nil {
		return err
	}
	connector := portal.NewRetrying(fixture, cfg.Portal.Attempts, cfg.Portal.Backoff, logger)
	authService := auth.NewService(connector, sessions, tokens, logger)

	provider, closeAI, err := openAI(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAI()

	api := server.New(authService, sessions, provider, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		TrustedProxies: cfg.Server.TrustedProxies,
		DefaultModel:   cfg.AI.Model,
		AITimeout:      cfg.AI.Timeout,
	}, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "port", cfg.Server.Port, "env", cfg.Env, "store", store.Name(), "ai", provider.Name())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.Server.GRPCPort > 0 {
		healthServer := grpc.NewServer(sessions, 10*time.Second, logger)
		g.Go(func() error {
			return healthServer.Start(gctx, cfg.Server.GRPCPort)
		})
	}

	if pg, ok := store.(*session.PostgresStore); ok {
		g.Go(func() error {
			purgeExpired(gctx, pg, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// openStore подключает хранилище сессий, выбранное в конфигурации
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, func(), error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch cfg.Session.Store {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		return session.NewRedisStore(rdb), func() { rdb.Close() }, nil

	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
		}
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ошибка проверки подключения к БД: %w", err)
		}
		goose.SetBaseFS(session.Migrations)
		if err := goose.SetDialect("postgres"); err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := goose.UpContext(ctx, db, session.MigrationsDir); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ошибка применения миграций: %w", err)
		}
		logger.Info("connected to postgres", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)
		return session.NewPostgresStore(db), func() { db.Close() }, nil

	default:
		logger.Warn("sessions are kept in memory and lost on restart")
		return session.NewMemoryStore(), func() {}, nil
	}
}

// openAI создает клиента выбранного AI провайдера
func openAI(ctx context.Context, cfg *config.Config) (ai.Provider, func(), error) {
	if cfg.AI.Provider == config.AIGemini {
		gemini, err := ai.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Temperature, cfg.AI.MaxTokens)
		if err != nil {
			return nil, nil, err
		}
		return gemini, func() { gemini.Close() }, nil
	}
	return ai.NewOpenRouter(ai.OpenRouterConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Referer:     cfg.AI.Referer,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     cfg.AI.Timeout,
	}), func() {}, nil
}

func purgeExpired(ctx context.Context, store *session.PostgresStore, logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge of expired sessions failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions purged", "count", n)
			}
		}
	}
}
