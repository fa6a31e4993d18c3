package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/resto/services/kitchen/config"
	"example.com/resto/services/kitchen/internal/cache"
	"example.com/resto/services/kitchen/internal/database"
	"example.com/resto/services/kitchen/internal/ingest"
	"example.com/resto/services/kitchen/internal/messaging"
	"example.com/resto/services/kitchen/internal/metrics"
	"example.com/resto/services/kitchen/internal/realtime"
	"example.com/resto/services/kitchen/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to ingest online-order events from Azure Service Bus and sweep overdue orders`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connections
	db, _, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	// Initialize redis for change notifications
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

	// Initialize metrics
	metricsCollector := metrics.New()

	// Initialize the ingest service
	notifier := realtime.NewRedisNotifier(redisClient, cfg.Redis.Channel)
	ingestService := ingest.NewService(db, notifier, tracer, metricsCollector)

	// Initialize Azure Service Bus client
	serviceBus, err := messaging.NewServiceBus(cfg.Azure)
	if err != nil {
		return err
	}
	defer serviceBus.Close()

	// Start the service bus processor
	g.Go(func() error {
		log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting online-order event processor")
		return serviceBus.ProcessMessages(ctx, ingestService.ProcessOrderMessage)
	})

	// Start the overdue-order sweep
	g.Go(func() error {
		log.Info().Msg("Starting overdue-order sweep job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Kitchen.SweepInterval),
			gocron.NewTask(func() {
				if err := ingestService.SweepOverdueOrders(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to sweep overdue orders")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
