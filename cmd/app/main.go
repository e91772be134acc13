package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-api/internal/app"
	"github.com/BuzzLyutic/todo-api/internal/config"
	"github.com/BuzzLyutic/todo-api/internal/identity"
	"github.com/BuzzLyutic/todo-api/internal/ratelimit"
	"github.com/BuzzLyutic/todo-api/internal/repo"
)

func main() {
	// Загрузка конфигурации
	cfg := config.Load()

	// Подключаем логгер
	logger := newLogger(cfg)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err)) // Fatal потому что дальнейшая работа теряет смысл
	}

	deps := app.Deps{
		Logger: logger,
		Provider: identity.NewGoTrue(cfg.SupabaseURL, cfg.SupabaseKey,
			identity.WithJWTSecret(cfg.SupabaseJWTSecret),
			identity.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		),
		MaxTasksPerUser: cfg.MaxTasksPerUser,
		AllowedOrigins:  cfg.AllowedOrigins,
		FrontendURL:     cfg.FrontendURL,
		DevMode:         !cfg.IsProduction(),
		AccessLog:       true,
	}

	// Хранилище задач
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("Using in-memory task storage, data is lost on restart")
		deps.Tasks = repo.NewMemoryTaskRepo()
	default:
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL) // Создаем новое соединение к БД
		if err != nil {
			logger.Fatal("Failed to connect to Database.", zap.Error(err))
		}
		defer pool.Close() // Запланированное закрытие соединения

		if err := pool.Ping(context.Background()); err != nil { // Пытаемся пингануть БД
			logger.Fatal("Failed to ping the Database.", zap.Error(err))
		}
		logger.Info("Successfully connected to the Database!")
		deps.Tasks = repo.NewTaskRepo(pool, cfg.DBRole)
	}

	// Rate limiting включается только при наличии Redis
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis is unreachable, auth rate limiting will fail open", zap.Error(err))
		}
		deps.Limiter = ratelimit.NewLimiter(rdb, "todo:ratelimit:", cfg.AuthRateLimit, cfg.AuthRateWindow)
		logger.Info("Auth rate limiting enabled",
			zap.Int("limit", cfg.AuthRateLimit),
			zap.Duration("window", cfg.AuthRateWindow),
		)
	}

	srv := http.Server{ // Создаем сервер
		Addr:         ":" + cfg.Port,
		Handler:      app.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
		return
	}
	logger.Info("Server stopped successfully!")
}

func newLogger(cfg config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
