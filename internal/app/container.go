// Package app wires the gateway's collaborators into one dependency
// container shared by the HTTP handlers.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/podcraft/speech-gateway/internal/audio"
	"github.com/podcraft/speech-gateway/internal/backend"
	"github.com/podcraft/speech-gateway/internal/config"
	"github.com/podcraft/speech-gateway/internal/health"
	"github.com/podcraft/speech-gateway/internal/limits"
	"github.com/podcraft/speech-gateway/internal/observability"
	"github.com/podcraft/speech-gateway/internal/pipeline"
	"github.com/podcraft/speech-gateway/internal/redisclient"
)

// Container aggregates runtime dependencies for handlers and services.
type Container struct {
	Config        *config.Config
	Logger        *slog.Logger
	Redis         *redis.Client
	Observability *observability.Provider
	Tools         *audio.Tools
	Registry      *backend.Registry
	Gates         pipeline.Gates
	RateLimiter   *limits.RateLimiter
	Pipeline      *pipeline.Service
	Health        *health.Monitor
}

// NewContainer builds a dependency container from the loaded configuration.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	obs, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	tools := audio.NewTools(cfg.Audio.FFprobeBin, cfg.Audio.FFmpegBin)

	registry := backend.NewRegistry(backend.Config{
		ModelsDir:     cfg.Models.Dir,
		RecognitionID: cfg.Models.Recognition,
		AlignmentID:   cfg.Models.Alignment,
		SynthesisID:   cfg.Models.Synthesis,
		QualityID:     cfg.Models.Quality,
		QualityLabel:  cfg.Models.QualityLabel,
	}, backend.BinLoaders(cfg.Models.RunnerBin), logger)

	inf := cfg.Inference
	gates := pipeline.Gates{
		Recognition: limits.NewGate("recognition", inf.RecognitionConcurrency, inf.QueueTimeout),
		Alignment:   limits.NewGate("alignment", inf.AlignmentConcurrency, inf.QueueTimeout),
		Synthesis:   limits.NewGate("synthesis", inf.SynthesisConcurrency, inf.QueueTimeout),
		Quality:     limits.NewGate("quality", inf.QualityConcurrency, inf.QueueTimeout),
	}

	var (
		redisClient *redis.Client
		limiter     *limits.RateLimiter
	)
	if cfg.RateLimits.RequestsPerMinute > 0 {
		redisClient = redisclient.New(cfg.Redis)
		if err := redisclient.Ping(ctx, redisClient); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		limiter = limits.NewRateLimiter(redisClient, cfg.RateLimits.RequestsPerMinute)
	}

	var metrics pipeline.Metrics
	if obs != nil {
		metrics = obs
	}
	svc := pipeline.NewService(tools, registry, gates, logger, metrics, pipeline.Options{
		DefaultLanguage: inf.DefaultLanguage,
		SampleInterval:  inf.MemorySampleInterval,
	})

	monitor := health.NewMonitor(
		cfg.Models.Dir,
		cfg.Models.RunnerBin,
		[]string{cfg.Models.Recognition, cfg.Models.Alignment, cfg.Models.Synthesis, cfg.Models.Quality},
		cfg.Models.QualityLabel,
		cfg.Health.CheckInterval,
	)
	monitor.Start(ctx)

	return &Container{
		Config:        cfg,
		Logger:        logger,
		Redis:         redisClient,
		Observability: obs,
		Tools:         tools,
		Registry:      registry,
		Gates:         gates,
		RateLimiter:   limiter,
		Pipeline:      svc,
		Health:        monitor,
	}, nil
}

// Close releases container-held resources.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Registry != nil {
		c.Registry.Reset()
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
}
