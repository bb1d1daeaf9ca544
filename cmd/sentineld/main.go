// Command sentineld runs the multi-agent event orchestration core: it wires
// the Model Adapter, Retrieval Index, Event Bus, the seven agent handlers,
// and the Pipeline Supervisor together, then blocks until signaled.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"sentinel/internal/bus"
	"sentinel/internal/config"
	"sentinel/internal/events"
	"sentinel/internal/handlers"
	"sentinel/internal/modeladapter"
	"sentinel/internal/observability"
	"sentinel/internal/retrieval"
	"sentinel/internal/supervisor"
)

const shutdownGrace = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("sentineld")
	}
}

func run() error {
	cfg := config.Load()
	observability.InitLogger(cfg.Observability.LogPath, cfg.Observability.LogLevel)

	baseCtx := context.Background()

	shutdownOTel, err := observability.InitOTel(baseCtx, observability.Config{
		Endpoint:    cfg.Observability.OTLPEndpoint,
		ServiceName: cfg.Observability.ServiceName,
		Environment: cfg.Observability.Environment,
	})
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without telemetry")
		shutdownOTel = nil
	}
	if shutdownOTel != nil {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 7 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   7 * time.Second,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   50,
		MaxConnsPerHost:       200,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	httpClient := observability.NewHTTPClient(&http.Client{Transport: tr})

	adapter, err := modeladapter.Build(cfg.Model, httpClient)
	if err != nil {
		return fmt.Errorf("build model adapter: %w", err)
	}

	var store retrieval.VectorStore
	if cfg.Qdrant.Enabled {
		qdrantStore, err := retrieval.NewQdrantStore(baseCtx, cfg.Qdrant.DSN, cfg.Qdrant.Collection, cfg.EmbeddingDimension, cfg.Qdrant.Metric)
		if err != nil {
			return fmt.Errorf("connect qdrant: %w", err)
		}
		store = qdrantStore
	} else {
		store = retrieval.NewMemoryStore()
	}
	index := retrieval.NewIndex(adapter, store, cfg.EmbeddingDimension, cfg.ReingestPolicy)

	var remote bus.RemoteTransport
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka enabled but no brokers configured")
		}
		ctxAdmin, cancelAdmin := context.WithTimeout(baseCtx, 5*time.Second)
		if err := bus.EnsureTopics(ctxAdmin, cfg.Kafka.Brokers); err != nil {
			cancelAdmin()
			return fmt.Errorf("ensure kafka topics: %w", err)
		}
		cancelAdmin()
		remote = bus.NewKafkaTransport(cfg.Kafka.Brokers)
	}

	var fallback bus.FallbackTransport
	if cfg.Redis.Addr != "" {
		redisTransport, err := bus.NewRedisTransport(cfg.Redis.Addr)
		if err != nil {
			log.Warn().Err(err).Msg("redis fallback transport unavailable, continuing without it")
		} else {
			fallback = redisTransport
		}
	}

	b := bus.New(bus.Config{
		QueueDepth:                  cfg.SubscriberQueueDepth,
		PublishBackpressureDeadline: cfg.BackpressureDeadline(),
		DeadLetterCapacity:          cfg.DeadLetterQueueCapacity,
	}, remote, fallback)

	harness := handlers.NewHarness(b, cfg.HandlerTimeout(), handlers.DefaultDedupCapacity, cfg.ContextTTL())
	if _, err := handlers.RegisterAll(b, harness, index, adapter, cfg); err != nil {
		return fmt.Errorf("register handlers: %w", err)
	}

	sup := supervisor.New(cfg.ContextTTL(), cfg.ContextGrace(), cfg.SupervisorMaxContexts)
	if err := sup.Attach(b); err != nil {
		return fmt.Errorf("attach supervisor: %w", err)
	}

	log.Info().
		Int("topics", len(events.AllTopics())).
		Bool("kafka_enabled", cfg.Kafka.Enabled).
		Bool("qdrant_enabled", cfg.Qdrant.Enabled).
		Msg("sentineld started")

	ctx, cancel := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	log.Info().Msg("sentineld shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancelShutdown()
	if err := b.Shutdown(shutdownCtx, shutdownGrace, cfg.DeadLetterFilePath); err != nil {
		return fmt.Errorf("bus shutdown: %w", err)
	}

	log.Info().Msg("sentineld stopped")
	return nil
}
