package api

import (
	"context"
	"net/http"
	"time"

	"example.com/resto/services/kitchen/config"
	"example.com/resto/services/kitchen/internal/api/handlers"
	"example.com/resto/services/kitchen/internal/api/middleware"
	"example.com/resto/services/kitchen/internal/kitchen"
	"example.com/resto/services/kitchen/internal/metrics"
	"example.com/resto/services/kitchen/internal/search"
	"example.com/resto/services/kitchen/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	store      *kitchen.Store
	tracer     tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	store *kitchen.Store,
	elastic *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *Server {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config: cfg,
		store:  store,
		tracer: tracer,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Tracing(tracer))

	// Register handlers
	kitchenHandler := handlers.NewKitchenHandler(store, tracer)
	kitchenHandler.RegisterRoutes(router)

	historyHandler := handlers.NewHistoryHandler(elastic, tracer)
	historyHandler.RegisterRoutes(router)

	metricsHandler := handlers.NewMetricsHandler(metricsCollector, tracer)
	metricsHandler.RegisterRoutes(router)

	server.router = router
	server.httpServer = &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  cfg.ServerTimeout,
		WriteTimeout: cfg.ServerTimeout,
	}

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
