package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"turfbook/internal/api"
	"turfbook/internal/config"
	"turfbook/internal/database"
	"turfbook/internal/domain"
	"turfbook/internal/events"
	"turfbook/internal/export"
	"turfbook/internal/gateway"
	"turfbook/internal/logging"
	"turfbook/internal/metrics"
	"turfbook/internal/models"
	"turfbook/internal/notifier"
	"turfbook/internal/repository"
	"turfbook/internal/service"
	"turfbook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

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

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	turfs, prices, err := loadTurfs(&logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, turfs, prices, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, cache := initCache(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	loc, err := time.LoadLocation(cfg.Bookings.Timezone)
	if err != nil {
		logger.Error().Err(err).Str("timezone", cfg.Bookings.Timezone).Msg("Неизвестный часовой пояс")
		return err
	}

	eventBus := events.NewEventBus()
	subscribeAuditLog(eventBus, &logger)

	gatewayTimeout := time.Duration(cfg.Payments.TimeoutSec) * time.Second
	registry := gateway.NewRegistry(
		gateway.NewRazorpay(cfg.Payments.Razorpay, gatewayTimeout),
		gateway.NewCashfree(cfg.Payments.Cashfree, gatewayTimeout),
	)

	availabilityService := service.NewAvailabilityService(db, cache, &logger)
	bookingService := service.NewBookingService(db, availabilityService, eventBus, cfg.Bookings.MaxDays, loc, &logger)
	paymentService := service.NewPaymentService(db, registry, cfg.Payments.ActiveGateway, cfg.Payments.Currency,
		eventBus, time.Duration(cfg.Payments.SweepGraceMin)*time.Minute, &logger)
	reminderService := service.NewReminderService(db, initNotifier(cfg, &logger), eventBus, loc,
		cfg.Reminders.ToleranceMin, &logger)
	exporter := export.NewExporter(db, db, cfg.Exports.Path, &logger)

	startMetrics(ctx, cfg, &logger)

	var wg sync.WaitGroup
	startSweepers(ctx, &wg, cfg, paymentService, reminderService, &logger)

	httpServer := api.NewHTTPServer(cfg.API, availabilityService, bookingService, paymentService,
		reminderService, exporter, cache, &logger)
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	wg.Wait()

	logger.Info().Msg("Shutdown complete.")
	return nil
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
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

func loadTurfs(logger *zerolog.Logger) ([]models.Turf, []models.HourlyPrice, error) {
	turfsPath := os.Getenv("TURFS_PATH")
	if turfsPath == "" {
		turfsPath = "configs/turfs.yaml"
	}
	turfsData, err := os.ReadFile(turfsPath)
	if err != nil {
		logger.Error().Err(err).Str("turfs_path", turfsPath).Msgf("Ошибка чтения %s", turfsPath)
		return nil, nil, err
	}

	var turfsConfig struct {
		Turfs  []models.Turf        `yaml:"turfs"`
		Prices []models.HourlyPrice `yaml:"prices"`
	}
	if err := yaml.Unmarshal(turfsData, &turfsConfig); err != nil {
		logger.Error().Err(err).Msg("Ошибка парсинга turfs.yaml")
		return nil, nil, err
	}

	if err := config.ValidateTurfs(turfsConfig.Turfs, turfsConfig.Prices); err != nil {
		logger.Error().Err(err).Msg("Turfs validation failed")
		return nil, nil, err
	}

	return turfsConfig.Turfs, turfsConfig.Prices, nil
}

func initDatabase(cfg *config.Config, turfs []models.Turf, prices []models.HourlyPrice, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("Ошибка инициализации базы данных")
		return nil, err
	}

	ctx := context.Background()
	turfPointers := make([]*models.Turf, len(turfs))
	for i := range turfs {
		turfPointers[i] = &turfs[i]
	}
	if err := db.SetTurfs(ctx, turfPointers); err != nil {
		logger.Error().Err(err).Msg("Ошибка синхронизации площадок")
		return nil, err
	}
	for i := range prices {
		if err := db.UpsertHourlyPrice(ctx, &prices[i]); err != nil {
			logger.Error().Err(err).Int64("turf_id", prices[i].TurfID).Int("hour", prices[i].Hour).
				Msg("Ошибка загрузки прайса")
			return nil, err
		}
	}
	return db, nil
}

// initCache wires the failover pair: redis when configured, always backed by
// the in-process cache.
func initCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.CacheRepository) {
	ttl := time.Duration(models.DefaultAvailabilityCacheTTL) * time.Second
	fallback := repository.NewMemoryCacheRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory cache")
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	primary := repository.NewRedisCacheRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverCacheRepository(primary, fallback, logger)
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Warn().Msg("telegram token not set, reminders go to the log")
		return notifier.NewLogNotifier(logger)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI, напоминания пойдут в лог")
		return notifier.NewLogNotifier(logger)
	}
	botAPI.Debug = cfg.Telegram.Debug

	logger.Info().Str("bot", botAPI.Self.UserName).Msg("telegram notifier connected")
	return notifier.NewTelegramNotifier(botAPI)
}

func startSweepers(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg *config.Config,
	payments *service.PaymentService,
	reminders *service.ReminderService,
	logger *zerolog.Logger,
) {
	backoff := worker.Backoff{Base: 2 * time.Second, Cap: time.Minute}

	paymentSweeper := worker.NewSweeper("payment-sweep",
		time.Duration(cfg.Payments.SweepEverySec)*time.Second,
		func(ctx context.Context) error {
			applied, err := payments.ReconcilePending(ctx)
			if applied > 0 {
				logger.Info().Int("applied", applied).Msg("payment sweep credited payments")
			}
			return err
		}, backoff, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		paymentSweeper.Run(ctx)
	}()

	if !cfg.Reminders.Enabled {
		logger.Info().Msg("reminder dispatch disabled in config")
		return
	}

	reminderSweeper := worker.NewSweeper("reminder-dispatch",
		time.Duration(cfg.Reminders.SweepEverySec)*time.Second,
		func(ctx context.Context) error {
			report, err := reminders.Dispatch(ctx, time.Now())
			if err != nil {
				return err
			}
			if report.Sent > 0 || report.Failed > 0 {
				logger.Info().Int("sent", report.Sent).Int("failed", report.Failed).
					Int("skipped", report.Skipped).Msg("reminder dispatch pass")
			}
			return nil
		}, backoff, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reminderSweeper.Run(ctx)
	}()
}

// subscribeAuditLog mirrors domain events into the structured log.
func subscribeAuditLog(bus *events.EventBus, logger *zerolog.Logger) {
	logEvent := func(event *events.Event) error {
		logger.Info().Str("event", event.Type).RawJSON("payload", event.Payload).Msg("domain event")
		return nil
	}
	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingCancelled,
		events.EventBookingCompleted,
		events.EventPaymentApplied,
		events.EventPaymentFailed,
		events.EventReminderSent,
	} {
		bus.Subscribe(eventType, logEvent)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", port).Msg("metrics server started")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
