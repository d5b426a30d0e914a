package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/priyakat/marketlink/backend/internal/auth"
	"github.com/priyakat/marketlink/backend/internal/config"
	"github.com/priyakat/marketlink/backend/internal/enrich"
	"github.com/priyakat/marketlink/backend/internal/events"
	"github.com/priyakat/marketlink/backend/internal/graph"
	"github.com/priyakat/marketlink/backend/internal/logging"
	"github.com/priyakat/marketlink/backend/internal/repository"
	"github.com/priyakat/marketlink/backend/internal/server"
	"github.com/priyakat/marketlink/backend/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	graphClient, err := buildGraphClient(ctx, cfg)
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := graphClient.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()

	repo := repository.New(graphClient)
	if err := repo.EnsureConstraints(ctx); err != nil {
		logger.Error("failed to ensure graph constraints", "error", err)
		os.Exit(1)
	}

	var publisher events.Publisher
	if len(cfg.Events.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(logger, cfg.Events.Brokers)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Warn("closing event publisher failed", "error", err)
			}
		}()
		publisher = kafkaPublisher
		logger.Info("event publishing enabled", "brokers", cfg.Events.Brokers)
	}

	tokens := auth.NewTokens(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	lifecycleService := service.NewLifecycleService(repo, publisher)
	directoryService := service.NewDirectoryService(repo, tokens)
	companyService := buildCompanyService(logger, cfg)

	apiHandlers := server.NewAPIHandlers(logger, lifecycleService, directoryService, companyService)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.GraphHealthService{Client: graphClient},
		API:              apiHandlers,
		Tokens:           tokens,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildGraphClient(ctx context.Context, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, graph.ErrMissingURI
	}

	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	return graph.NewNeo4jClient(ctx, opts)
}

func buildCompanyService(logger *slog.Logger, cfg config.Config) *enrich.Service {
	if cfg.Enrich.CompanyAPIURL == "" {
		return nil
	}

	var cache enrich.Cache = enrich.NewMemoryCache()
	if cfg.Enrich.RedisAddr != "" {
		cache = enrich.NewRedisCache(redis.NewClient(&redis.Options{
			Addr: cfg.Enrich.RedisAddr,
		}))
		logger.Info("suggestion cache backed by redis", "addr", cfg.Enrich.RedisAddr)
	}
	return enrich.New(logger, cfg.Enrich.CompanyAPIURL, cache, cfg.Enrich.CacheTTL)
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
