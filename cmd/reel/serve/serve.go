// Package servecmder provides the serve command, which runs the HTTP API
// and MCP endpoint backed by the configured agent and event store.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/api"
	proxycmder "github.com/papercomputeco/reel/cmd/reel/serve/proxy"
	"github.com/papercomputeco/reel/pkg/backend"
	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
	"github.com/papercomputeco/reel/pkg/dotdir"
	"github.com/papercomputeco/reel/pkg/logger"
)

type serveCommander struct {
	listen      string
	provider    string
	model       string
	baseURL     string
	apiKey      string
	temperature string
	topP        string
	maxTokens   int
	system      string
	maxSteps    int
	storage     string
	sqlitePath  string
	postgresDSN string
	kafka       string
	kafkaTopic  string

	debug     bool
	configDir string

	cfg    *config.Config
	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagProvider,
	config.FlagModel,
	config.FlagBaseURL,
	config.FlagAPIKey,
	config.FlagTemperature,
	config.FlagTopP,
	config.FlagMaxTokens,
	config.FlagSystemPrompt,
	config.FlagMaxSteps,
	config.FlagStorage,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafka,
	config.FlagKafkaTopic,
}

const serveLongDesc string = `Run the reel API server.

Endpoints:
  GET  /ping           Health check
  POST /v1/ask         Run the agent, streaming events as SSE
  GET  /v1/runs        List recorded runs
  GET  /v1/runs/:id    A run with its event log
  /mcp                 The agent's tools over the Model Context Protocol

Use "reel serve proxy" to record the traffic of other clients instead.`

const serveShortDesc string = "Run the reel API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}

			cmder.cfg, err = config.ForCommand(cmd, cmder.configDir, serveFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &cmder.apiKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagTemperature, &cmder.temperature)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopP, &cmder.topP)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &cmder.system)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxSteps, &cmder.maxSteps)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorage, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafka, &cmder.kafka)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

// LogFile is the JSON log serve appends to in the .reel/ directory.
const LogFile = "serve.log"

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	logFile, err := openLogFile(c.configDir)
	if err != nil {
		return err
	}
	defer logFile.Close()

	// The terminal follows --debug; the file always keeps debug records.
	c.logger = logger.Multi(
		logger.New(
			logger.WithDebug(c.debug),
			logger.WithPretty(true),
			logger.WithWriter(cmd.ErrOrStderr()),
		),
		logger.New(
			logger.WithDebug(true),
			logger.WithJSON(true),
			logger.WithWriter(logFile),
		),
	)

	var b *backend.Backend
	err = cliui.Step(cmd.ErrOrStderr(), "Opening run store", func() error {
		var err error
		b, err = backend.Open(ctx, c.cfg, c.configDir, c.logger)
		return err
	})
	if err != nil {
		return err
	}
	defer b.Close()

	ag, err := backend.NewAgent(c.cfg, c.logger, backend.WithRecorder(b.Pool))
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Config{ListenAddr: c.cfg.Serve.Listen}, b.Driver, ag, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	ln, err := net.Listen("tcp", c.cfg.Serve.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", c.cfg.Serve.Listen, err)
	}

	c.logger.Info("serving agent",
		"listen", ln.Addr().String(),
		"provider", c.cfg.Model.Provider,
		"model", c.cfg.Model.Name,
		"tools", ag.Registry().Len(),
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.RunWithListener(ln)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down API server: %w", err)
		}
		return <-errChan
	}
}

func openLogFile(configDir string) (*os.File, error) {
	path, err := dotdir.NewManager().File(configDir, LogFile)
	if err != nil {
		return nil, fmt.Errorf("resolving log file: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
