package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/resto/services/kitchen/config"
	"example.com/resto/services/kitchen/internal/api"
	"example.com/resto/services/kitchen/internal/cache"
	"example.com/resto/services/kitchen/internal/database"
	"example.com/resto/services/kitchen/internal/kitchen"
	"example.com/resto/services/kitchen/internal/metrics"
	"example.com/resto/services/kitchen/internal/realtime"
	"example.com/resto/services/kitchen/internal/search"
	"example.com/resto/services/kitchen/internal/sources"
	"example.com/resto/services/kitchen/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the kitchen display API server",
	Long:  `Start the HTTP API server that serves the merged kitchen board and mediates status updates`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connections
	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	// Initialize redis
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return errors.Wrap(err, "failed to initialize Redis")
	}
	defer redisClient.Close()

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Disabled()
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without history search")
		elasticClient = nil
	}

	// Initialize metrics
	metricsCollector := metrics.New()

	// Build the store over its source ports
	posSource, err := buildPOSSource(cfg, db, readOnlyDB, redisClient)
	if err != nil {
		return err
	}
	onlineSource := sources.NewOnlineSource(db, readOnlyDB)
	subscriber := realtime.NewRedisSubscriber(redisClient, cfg.Redis.Channel)

	store := kitchen.NewStore(posSource, onlineSource, subscriber, kitchen.Thresholds{
		UrgentMinutes:     cfg.Kitchen.UrgentThresholdMinutes,
		CollectionWarning: cfg.Kitchen.CollectionWarningMinutes,
		DeliveryWarning:   cfg.Kitchen.DeliveryWarningMinutes,
		AmberMinutes:      cfg.Kitchen.AmberMinutes,
	}, metricsCollector)

	if elasticClient != nil {
		store.SetCompletionHook(func(order kitchen.UnifiedOrder) {
			hookCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerTimeout)
			defer cancel()
			if err := elasticClient.IndexOrder(hookCtx, order); err != nil {
				log.Warn().Err(err).Str("order_id", order.ID).Msg("Failed to index completed order")
			}
		})
	}

	// Initial load; a failure here is not fatal, the board starts empty
	// and recovers on the first successful refresh.
	if err := store.LoadOrders(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial order load failed")
	}
	metricsCollector.SetHealth("store", store.Err() == "")

	// Open the realtime subscription
	if err := store.StartRealtime(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to open realtime subscription, relying on periodic refresh")
	}
	defer store.StopRealtime()

	// Periodic refresh keeps time-derived fields moving even without
	// change events.
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "failed to create scheduler")
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Kitchen.RefreshInterval),
		gocron.NewTask(func() {
			if err := store.RefreshOrders(ctx); err != nil {
				log.Error().Err(err).Msg("Periodic board refresh failed")
			}
			metricsCollector.SetHealth("store", store.Err() == "")
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule board refresh")
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown error")
		}
	}()

	// Initialize and start the server
	server := api.NewServer(cfg, store, elasticClient, metricsCollector, tracer)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

// buildPOSSource selects the POS backing store implementation per
// configuration: Postgres table session rows or the serialized table
// state the front of house keeps in redis.
func buildPOSSource(cfg config.Config, db, readOnlyDB *gorm.DB, redisClient *cache.RedisClient) (kitchen.SourcePort, error) {
	switch cfg.POS.Backend {
	case "postgres":
		return sources.NewTableOrderSource(db, readOnlyDB), nil
	case "redis":
		if !redisClient.Enabled() {
			return nil, errors.New("pos.backend is redis but redis is disabled")
		}
		return sources.NewRedisStateSource(redisClient), nil
	default:
		return nil, errors.Errorf("unknown pos.backend %q", cfg.POS.Backend)
	}
}
