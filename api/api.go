package api

import (
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reel/api/mcp"
	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/storage"
)

// Server is the API server for asking the agent and browsing recorded runs.
type Server struct {
	config Config
	storer storage.Driver
	agent  *agent.Agent
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The storer is injected to allow sharing with the agent's recorder. A nil
// agent disables /v1/ask and serves an empty MCP endpoint.
func NewServer(config Config, storer storage.Driver, ag *agent.Agent, logger *slog.Logger) (*Server, error) {
	if storer == nil {
		return nil, errors.New("storage driver is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		storer: storer,
		agent:  ag,
		logger: logger,
		app:    app,
	}

	mcpConfig := mcp.Config{Noop: ag == nil, Logger: logger}
	if ag != nil {
		mcpConfig.Registry = ag.Registry()
	}
	mcpServer, err := mcp.NewServer(mcpConfig)
	if err != nil {
		return nil, err
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/ask", s.handleAsk)
	app.Get("/v1/runs", s.handleListRuns)
	app.Get("/v1/runs/:id", s.handleGetRun)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server on an existing listener.
func (s *Server) RunWithListener(ln net.Listener) error {
	s.logger.Info("starting API server",
		"listen", ln.Addr().String(),
	)
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
