// Package proxycmder provides the recording proxy command.
package proxycmder

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/pkg/backend"
	"github.com/papercomputeco/reel/pkg/config"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/proxy"
)

type proxyCommander struct {
	listen      string
	provider    string
	baseURL     string
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

var proxyFlags = []string{
	config.FlagProxyListen,
	config.FlagProvider,
	config.FlagBaseURL,
	config.FlagStorage,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafka,
	config.FlagKafkaTopic,
}

const proxyLongDesc string = `Run the recording proxy.

The proxy forwards every request to the configured base URL. Streaming chat
responses are relayed to the client unchanged while a copy is reduced into
events and recorded as a run. The run ID is returned in the X-Reel-Run-Id
response header.

Requests to /providers/<name>/... are decoded as that provider's format and
sent to its public API.

Supported provider types: anthropic, openai, ollama`

const proxyShortDesc string = "Run the reel recording proxy"

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
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

			cmder.cfg, err = config.ForCommand(cmd, cmder.configDir, proxyFlags...)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorage, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafka, &cmder.kafka)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	return cmd
}

func (c *proxyCommander) run(ctx context.Context, cmd *cobra.Command) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(cmd.ErrOrStderr()),
	)

	b, err := backend.Open(ctx, c.cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := proxy.New(
		proxy.Config{
			ListenAddr:   c.cfg.Serve.ProxyListen,
			UpstreamURL:  c.cfg.Model.BaseURL,
			ProviderType: c.cfg.Model.Provider,
		},
		b.Pool,
		c.logger,
	)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	ln, err := net.Listen("tcp", c.cfg.Serve.ProxyListen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", c.cfg.Serve.ProxyListen, err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.RunWithListener(ln)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("proxy error: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("shutting down")
		if err := p.Close(); err != nil {
			return fmt.Errorf("shutting down proxy: %w", err)
		}
		return <-errChan
	}
}
