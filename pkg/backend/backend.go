// Package backend assembles the long-lived collaborators of reel commands
// from a config.Config: the event store, the event publisher, the recording
// worker pool and the agent.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/completion"
	"github.com/papercomputeco/reel/pkg/config"
	"github.com/papercomputeco/reel/pkg/dotdir"
	"github.com/papercomputeco/reel/pkg/eventstream"
	"github.com/papercomputeco/reel/pkg/eventstream/kafka"
	"github.com/papercomputeco/reel/pkg/eventstream/nop"
	"github.com/papercomputeco/reel/pkg/llm/provider"
	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/storage/inmemory"
	"github.com/papercomputeco/reel/pkg/storage/postgres"
	"github.com/papercomputeco/reel/pkg/storage/sqlite"
	"github.com/papercomputeco/reel/pkg/toolbox"
	"github.com/papercomputeco/reel/pkg/toolbox/demo"
	"github.com/papercomputeco/reel/pkg/worker"
)

// Storage driver names accepted in storage.driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLiteFile is the database file created in the .reel/ directory when
// storage.sqlite_path is unset.
const SQLiteFile = "reel.sqlite"

// Backend owns the store, publisher and worker pool of one process.
type Backend struct {
	Driver    storage.Driver
	Publisher eventstream.Publisher
	Pool      *worker.Pool

	logger *slog.Logger
}

// Open creates the storage driver and publisher selected by cfg and starts a
// worker pool recording into them. configDir is the --config-dir override
// used to place the default SQLite file.
func Open(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (*Backend, error) {
	driver, err := OpenDriver(ctx, cfg, configDir, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := NewPublisher(cfg, logger)
	if err != nil {
		driver.Close()
		return nil, err
	}

	pool, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		publisher.Close()
		driver.Close()
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	return &Backend{
		Driver:    driver,
		Publisher: publisher,
		Pool:      pool,
		logger:    logger,
	}, nil
}

// Close drains the worker pool, then closes the publisher and the driver.
func (b *Backend) Close() error {
	b.Pool.Close()
	return errors.Join(b.Publisher.Close(), b.Driver.Close())
}

// OpenDriver opens the storage driver named by cfg.Storage.Driver.
func OpenDriver(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (storage.Driver, error) {
	switch cfg.Storage.Driver {
	case DriverMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case DriverSQLite, "":
		path := cfg.Storage.SQLitePath
		if path == "" {
			var err error
			path, err = dotdir.NewManager().File(configDir, SQLiteFile)
			if err != nil {
				return nil, fmt.Errorf("resolving sqlite path: %w", err)
			}
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Info("using SQLite storage", "path", path)
		return driver, nil

	case DriverPostgres:
		if cfg.Storage.PostgresDSN == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres driver")
		}
		driver, err := postgres.NewDriver(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q (want %s, %s or %s)",
			cfg.Storage.Driver, DriverMemory, DriverSQLite, DriverPostgres)
	}
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func NewPublisher(cfg *config.Config, logger *slog.Logger) (eventstream.Publisher, error) {
	brokers := cfg.EventStream.Brokers()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   cfg.EventStream.KafkaTopic,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	logger.Info("publishing events to kafka", "brokers", brokers, "topic", cfg.EventStream.KafkaTopic)
	return publisher, nil
}

// NewRegistry returns a registry holding the built-in demo tools.
func NewRegistry(logger *slog.Logger) (*toolbox.Registry, error) {
	registry := toolbox.NewRegistry(toolbox.WithLogger(logger))
	if err := demo.RegisterWeather(registry); err != nil {
		return nil, fmt.Errorf("registering demo tools: %w", err)
	}
	return registry, nil
}

// AgentOption customizes NewAgent.
type AgentOption func(*agentOptions)

type agentOptions struct {
	recorder agent.Recorder
	tee      io.Writer
	registry *toolbox.Registry
}

// WithRecorder records every run of the agent.
func WithRecorder(r agent.Recorder) AgentOption {
	return func(o *agentOptions) { o.recorder = r }
}

// WithTee copies every raw completion response to w.
func WithTee(w io.Writer) AgentOption {
	return func(o *agentOptions) { o.tee = w }
}

// WithRegistry replaces the demo tool registry.
func WithRegistry(r *toolbox.Registry) AgentOption {
	return func(o *agentOptions) { o.registry = r }
}

// NewAgent builds an agent talking to the completion API selected by
// cfg.Model with the sampling and agent settings of cfg.
func NewAgent(cfg *config.Config, logger *slog.Logger, opts ...AgentOption) (*agent.Agent, error) {
	o := &agentOptions{}
	for _, opt := range opts {
		opt(o)
	}

	p, err := provider.New(cfg.Model.Provider)
	if err != nil {
		return nil, err
	}

	client, err := completion.New(completion.Config{
		BaseURL:  cfg.Model.BaseURL,
		APIKey:   cfg.Model.APIKey,
		Provider: p,
		Tee:      o.tee,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	registry := o.registry
	if registry == nil {
		registry, err = NewRegistry(logger)
		if err != nil {
			return nil, err
		}
	}

	var maxTokens *int
	if cfg.Sampling.MaxTokens > 0 {
		n := cfg.Sampling.MaxTokens
		maxTokens = &n
	}

	return agent.New(agent.Config{
		Completer:    agent.FromClient(client),
		Registry:     registry,
		Provider:     p.Name(),
		Model:        cfg.Model.Name,
		SystemPrompt: cfg.Agent.SystemPrompt,
		Temperature:  cfg.Sampling.Temperature,
		TopP:         cfg.Sampling.TopP,
		MaxTokens:    maxTokens,
		MaxSteps:     cfg.Agent.MaxSteps,
		Recorder:     o.recorder,
		Logger:       logger,
	})
}
