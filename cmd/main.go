package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"simbot/config"
	"simbot/internal/handler"
	"simbot/internal/repository"
	"simbot/internal/service"
	"simbot/traits/database"
	"simbot/traits/logger"
)

func main() {
	// Initialize logger
	zapLogger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("🌟 Starting SIM shop bot...")

	// Initialize configuration
	cfg, err := config.NewConfig()
	if err != nil {
		zapLogger.Fatal("Failed to initialize config", zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
		return
	}

	// Initialize database
	db, err := sql.Open("sqlite3", cfg.DBName)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		return
	}
	defer db.Close()

	if err = db.Ping(); err != nil {
		zapLogger.Fatal("Failed to ping database", zap.Error(err))
		return
	}
	zapLogger.Info("Database connected successfully", zap.String("db", cfg.DBName))

	if err := database.CreateTables(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to create database tables", zap.Error(err))
		return
	}
	if err := database.CreateViews(db, zapLogger); err != nil {
		zapLogger.Warn("Failed to create database views", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Conversation state backend
	var store service.StateStore
	switch cfg.StateBackend {
	case config.BackendRedis:
		rdb, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
			return
		}
		defer database.CloseRedis(rdb, zapLogger)
		store = repository.NewRedisRepository(rdb)
	case config.BackendMemory:
		store = repository.NewMemoryStateRepository()
	default:
		store = repository.NewSQLiteStateRepository(db)
	}
	zapLogger.Info("Conversation state backend ready", zap.String("backend", cfg.StateBackend))

	orders := repository.NewOrderRepository(db)
	oracle := service.NewOpenAIOracle(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.MaxTokens, cfg.OracleTimeout, zapLogger)
	conv := service.NewConversation(cfg, zapLogger, service.DefaultCatalog(), oracle, store, orders)

	handle := handler.NewHandler(cfg, zapLogger, ctx, conv, orders)

	// Initialize Telegram bot
	opts := []bot.Option{
		bot.WithDefaultHandler(handle.DefaultHandler),
	}
	if cfg.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		zapLogger.Fatal("Failed to initialize Telegram bot", zap.Error(err))
		return
	}
	handle.SetBot(b)
	zapLogger.Info("Telegram bot initialized successfully")

	// Setup graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go handle.StartWebServer(ctx, b)

	if cfg.WebhookURL != "" {
		ok, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:         cfg.WebhookURL,
			SecretToken: cfg.WebhookSecret,
		})
		if err != nil || !ok {
			zapLogger.Fatal("Failed to set webhook", zap.String("url", cfg.WebhookURL), zap.Error(err))
			return
		}
		go func() {
			zapLogger.Info("Starting Telegram bot in webhook mode", zap.String("url", cfg.WebhookURL))
			b.StartWebhook(ctx)
		}()
	} else {
		go func() {
			zapLogger.Info("Starting Telegram bot in polling mode")
			b.Start(ctx)
		}()
	}

	// Drop idle conversation states once a day, idle rate limiter entries hourly
	go func() {
		cleanupTicker := time.NewTicker(24 * time.Hour)
		defer cleanupTicker.Stop()
		limiterTicker := time.NewTicker(time.Hour)
		defer limiterTicker.Stop()
		for {
			select {
			case <-cleanupTicker.C:
				if err := database.CleanupOldData(db, cfg.StateRetention, zapLogger); err != nil {
					zapLogger.Error("Failed to cleanup old data", zap.Error(err))
				}
			case <-limiterTicker.C:
				if n := handle.Limiter().Cleanup(time.Hour); n > 0 {
					zapLogger.Debug("Pruned idle chat limiters", zap.Int("removed", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	<-stop
	zapLogger.Info("🛑 Shutdown signal received, gracefully stopping...")
	cancel()

	// give in-flight handlers a moment to finish
	time.Sleep(time.Second)
	zapLogger.Info("✅ Bot stopped gracefully")
}
