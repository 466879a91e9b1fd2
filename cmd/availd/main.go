package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"marketbook/internal/api"
	"marketbook/internal/config"
	"marketbook/internal/db"
	"marketbook/internal/events"
	"marketbook/internal/metrics"
	"marketbook/internal/notify"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("MARKETBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("invalid timezone")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load + hot reload of the markets catalog
	if err := config.WatchMarkets(ctx, cfg.Markets.Path, cfg.MarketsWatchInterval(), logger, func(updated *config.MarketsConfig) {
		setups, err := updated.Setups()
		if err != nil {
			logger.Error().Err(err).Msg("failed to compile markets config")
			return
		}
		if err := database.SyncMarketsFromConfig(ctx, setups); err != nil {
			logger.Error().Err(err).Msg("failed to apply markets config")
			return
		}
		logger.Info().Int("markets", len(setups)).Msg("markets config applied")
	}); err != nil {
		logger.Error().Err(err).Msg("markets watch failed")
	}

	sender, err := newSender(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create notification sender error")
	}
	dispatcher := notify.NewDispatcher(sender, &notify.Config{
		QueueSize: cfg.NotifyQueueSize(),
		Retry:     notify.DefaultRetryConfig(),
	}, &logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	bus := events.NewEventBus()
	bus.Subscribe(dispatcher.HandleEvent, events.BookingConfirmed, events.BookingPending, events.BookingStatus)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		backups := db.NewBackupService(database, cfg.Backup.Path, cfg.BackupInterval(), cfg.BackupRetention(), &logger)
		go backups.Start(ctx)
	}

	server := api.NewServer(database, bus, api.Options{APIKey: cfg.Server.APIKey, Location: loc}, &logger)
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("address", cfg.Server.Address).Str("timezone", loc.String()).Msg("availability server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("availability server stopped")
}

func newSender(cfg *config.Config, logger *zerolog.Logger) (notify.Sender, error) {
	token := cfg.Telegram.BotToken
	if token == "" || token == "YOUR_BOT_TOKEN_HERE" {
		logger.Warn().Msg("telegram.bot_token not set, owner notifications go to the log")
		return notify.NewLogSender(logger), nil
	}
	tg, err := notify.NewTelegramSender(token, cfg.Telegram.Debug)
	if err != nil {
		return nil, err
	}
	return tg, nil
}

func startHealthServer(ctx context.Context, port int, database *db.DB, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.HealthCheck(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
