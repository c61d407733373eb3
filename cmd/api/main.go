package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sparkclean/internal/api"
	"sparkclean/internal/auth"
	"sparkclean/internal/config"
	"sparkclean/internal/database"
	"sparkclean/internal/domain"
	"sparkclean/internal/events"
	"sparkclean/internal/google"
	"sparkclean/internal/logging"
	"sparkclean/internal/mail"
	"sparkclean/internal/metrics"
	"sparkclean/internal/models"
	"sparkclean/internal/notify"
	"sparkclean/internal/realtime"
	"sparkclean/internal/repository"
	"sparkclean/internal/service"
	"sparkclean/internal/storage"
	"sparkclean/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const tokenJanitorInterval = time.Hour

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database, &logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	hub := realtime.NewHub(cfg.Realtime.BufferSize, &logger)
	defer hub.Close()
	if cfg.Realtime.RelayEnabled && redisClient != nil {
		relay := realtime.NewRedisRelay(redisClient, cfg.Realtime.RedisChannel, hub, &logger)
		if err := relay.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("realtime relay disabled")
		}
	}

	var wg sync.WaitGroup
	outbox := worker.NewOutboxWorker(db, redisClient, cfg.Worker, &logger)
	bg := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	registerTaskHandlers(ctx, cfg, outbox, db, bg, &logger)

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Warn().Err(err).Str("type", cfg.Storage.Type).Msg("gallery storage unavailable, gallery uploads disabled")
		blobs = nil
	}

	svc := service.New(service.Deps{
		DB:       db,
		Sessions: initSessions(redisClient, &logger),
		Hasher:   auth.NewHasher(),
		Tokens:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.App.Name),
		Tasks:    outbox,
		Changes:  hub,
		Events:   events.NewEventBus(),
		Storage:  blobs,
		Config:   cfg,
		Logger:   &logger,
	})

	bg(func() { outbox.Start(ctx) })
	bg(func() { worker.RunTokenJanitor(ctx, db, tokenJanitorInterval, &logger) })
	bg(func() { database.NewBackupService(db, cfg.Backup, &logger).Start(ctx) })

	startMetrics(ctx, cfg, bg, &logger)

	httpServer := api.NewServer(cfg, svc, hub, db, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API.GRPC.Port, db, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		bg(func() { grpcServer.Watch(ctx, 10*time.Second) })
	}

	err = serve(ctx, httpServer, grpcServer, &logger)
	stop()
	wg.Wait()
	logger.Info().Msg("API server stopped")
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, *logging.Component(baseLogger, "api-main"), closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initSessions prefers redis and falls back to process memory while redis is
// down.
func initSessions(redisClient *redis.Client, logger *zerolog.Logger) domain.SessionStore {
	memory := repository.NewMemorySessionStore()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverSessionStore(repository.NewRedisSessionStore(redisClient), memory, logger)
}

// registerTaskHandlers binds every outbox task type to its integration, or
// discards it when the integration is not configured.
func registerTaskHandlers(
	ctx context.Context,
	cfg *config.Config,
	outbox *worker.OutboxWorker,
	db *database.DB,
	bg func(func()),
	logger *zerolog.Logger,
) {
	mailer, err := mail.NewMailer(cfg.SMTP, cfg.App, logger)
	if err == nil {
		outbox.RegisterEmail(mailer)
	} else {
		logger.Warn().Err(err).Msg("emails are dropped")
		outbox.Discard(models.TaskEmailConfirmation, models.TaskEmailPasswordReset, models.TaskAdminEmail)
	}

	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.AdminChatIDs) > 0 {
		bot, err := notify.NewBot(cfg.Telegram.BotToken)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, admin notifications are dropped")
			outbox.Discard(models.TaskTelegramNotify)
		} else {
			outbox.RegisterTelegram(notify.NewTelegram(bot, cfg.Telegram.AdminChatIDs, logger))
		}
	} else {
		outbox.Discard(models.TaskTelegramNotify)
	}

	if cfg.Google.CredentialsFile != "" && cfg.Google.BookingsSpreadsheetID != "" {
		ledger, err := google.NewBookingLedger(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("google sheets init failed, booking ledger disabled")
			outbox.Discard(models.TaskSheetsUpsert, models.TaskSheetsDelete)
			return
		}
		outbox.RegisterSheets(db, ledger)
		bg(func() { ledger.Run(ctx) })
		logger.Info().Msg("google sheets connected")
		return
	}
	outbox.Discard(models.TaskSheetsUpsert, models.TaskSheetsDelete)
}

func startMetrics(ctx context.Context, cfg *config.Config, bg func(func()), logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	bg(func() { startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger) })
}

func serve(ctx context.Context, httpServer *api.Server, grpcServer *api.GRPCServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err = <-errCh:
		logger.Error().Err(err).Msg("server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn().Err(shutdownErr).Msg("http shutdown")
	}
	return err
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
