// Package proxy provides a completion API proxy that records the streams it
// forwards. Streaming responses are passed to the client byte for byte while
// a copy is reduced into events and handed to a Recorder.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/google/uuid"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/completion"
	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/llm/provider"
	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/stream"
	"github.com/papercomputeco/reel/proxy/header"
)

const providerPathPrefix = "/providers/"

// defaultUpstreams are used for /providers/<name>/ routes without a
// configured upstream.
var defaultUpstreams = map[string]string{
	provider.OpenAI:    "https://api.openai.com/v1",
	provider.Anthropic: "https://api.anthropic.com",
}

// Proxy is a transparent completion API proxy. Every streaming chat request
// becomes a recorded run.
type Proxy struct {
	config        Config
	recorder      agent.Recorder
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	providers     map[string]provider.Provider
	defaultProv   provider.Provider
	headerHandler *header.Handler
}

// New creates a new Proxy recording through recorder.
// Returns an error if the configured provider type is not recognized.
func New(config Config, recorder agent.Recorder, logger *slog.Logger) (*Proxy, error) {
	if config.ProviderType == "" {
		return nil, errors.New("provider type is required")
	}
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if recorder == nil {
		return nil, errors.New("recorder is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	defaultProv, err := provider.New(config.ProviderType)
	if err != nil {
		return nil, fmt.Errorf("could not create new provider: %w", err)
	}

	providers := make(map[string]provider.Provider)
	for _, name := range provider.SupportedProviders() {
		prov, err := provider.New(name)
		if err != nil {
			return nil, fmt.Errorf("could not create provider %s: %w", name, err)
		}
		providers[name] = prov
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// Add compression middleware to handle responses
	app.Use(compress.New())

	p := &Proxy{
		config:        config,
		recorder:      recorder,
		logger:        logger,
		server:        app,
		providers:     providers,
		defaultProv:   defaultProv,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			// Completions can be slow, especially with reasoning
			Timeout: 5 * time.Minute,
		},
	}

	// Register transparent proxy route - forwards any path to upstream
	app.All("/*", p.handleProxy)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy server.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

// chatRequest is the part of a chat request body the proxy inspects. The
// field names are shared by the OpenAI, Anthropic and Ollama formats.
type chatRequest struct {
	Model    string `json:"model"`
	Stream   *bool  `json:"stream"`
	Messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

// prompt returns the text of the last user message.
func (r *chatRequest) prompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		msg := r.Messages[i]
		if msg.Role != llm.RoleUser {
			continue
		}

		var text string
		if err := json.Unmarshal(msg.Content, &text); err == nil {
			return text
		}

		var blocks []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Content, &blocks); err == nil {
			var parts []string
			for _, b := range blocks {
				if b.Type == "text" && b.Text != "" {
					parts = append(parts, b.Text)
				}
			}
			return strings.Join(parts, "\n")
		}
		return ""
	}
	return ""
}

// handleProxy is a transparent proxy handler that forwards requests to
// upstream and records streamed chat completions.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	prov, upstreamURL, path := p.resolveProvider(c.Path())
	method := c.Method()
	body := c.Body()

	var req *chatRequest
	if method == fiber.MethodPost && len(body) > 0 {
		req = &chatRequest{}
		if err := json.Unmarshal(body, req); err != nil {
			p.logger.Debug("request is not a chat request",
				"provider", prov.Name(),
				"path", path,
				"error", err,
			)
			req = nil
		}
	}

	// Some providers (e.g. Ollama) stream by default when "stream" is omitted.
	streaming := false
	if req != nil {
		if req.Stream != nil {
			streaming = *req.Stream
		} else {
			streaming = prov.Framing() == llm.FramingNDJSON
		}
	}

	if streaming {
		return p.handleStreamingProxy(c, upstreamURL+path, prov, req, body)
	}
	return p.handleForward(c, method, upstreamURL+path, body)
}

// handleForward relays a request whose response is not recorded.
func (p *Proxy) handleForward(c *fiber.Ctx, method, upstreamURL string, body []byte) error {
	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(c.Context(), method, upstreamURL, reqBody)
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding request to upstream",
		"method", method,
		"url", upstreamURL,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "failed to read upstream response"})
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	return c.Status(httpResp.StatusCode).Send(respBody)
}

// handleStreamingProxy forwards a streaming chat request and records the
// reduced response as a run.
func (p *Proxy) handleStreamingProxy(c *fiber.Ctx, upstreamURL string, prov provider.Provider, req *chatRequest, body []byte) error {
	// fasthttp recycles its RequestCtx after the handler returns, but the
	// body is relayed from a separate goroutine that needs the upstream
	// connection to stay open.
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, upstreamURL, bytes.NewReader(body))
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding streaming request to upstream",
		"url", upstreamURL,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		p.logger.Error("upstream returned error",
			"status", httpResp.StatusCode,
			"body", string(respBody),
		)
		return c.Status(httpResp.StatusCode).Send(respBody)
	}

	run := &storage.Run{
		ID:        uuid.NewString(),
		Prompt:    req.prompt(),
		Model:     req.Model,
		Provider:  prov.Name(),
		StartedAt: time.Now().UTC(),
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Set(header.RunIDHeader, run.ID)

	// pw.Write blocks until fasthttp reads from the pipe and flushes to the
	// socket, so each chunk reaches the client as soon as it arrives.
	pr, pw := io.Pipe()
	go p.relay(httpResp, pw, prov, run)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// relay copies the upstream body to the client and reduces the same bytes
// into events. A stream the provider cannot decode is still relayed in full;
// only its recording stops.
func (p *Proxy) relay(httpResp *http.Response, pw *io.PipeWriter, prov provider.Provider, run *storage.Run) {
	defer httpResp.Body.Close()
	defer pw.Close()

	startTime := time.Now()
	recorder := p.recorder
	if err := recorder.StartRun(context.Background(), run); err != nil {
		p.logger.Warn("recording disabled for run", "run_id", run.ID, "error", err)
		recorder = nil
	}

	tee := io.TeeReader(httpResp.Body, pw)
	s := completion.NewStream(io.NopCloser(tee), prov, completion.WithLogger(p.logger))
	reducer := stream.NewReducer(s)

	seq := 0
	finishReason := ""
	for ev, err := range reducer.All() {
		if err != nil {
			finishReason = agent.FinishError
			p.logger.Warn("stream recording stopped",
				"run_id", run.ID,
				"provider", prov.Name(),
				"error", err,
			)
			break
		}
		if _, ok := ev.(stream.FullEvent); ok && recorder != nil {
			recorder.RecordEvent(run, seq, ev)
			seq++
		}
	}

	// Relay whatever the decoder did not consume.
	if _, err := io.Copy(io.Discard, tee); err != nil {
		p.logger.Debug("client went away", "run_id", run.ID, "error", err)
	}

	if finishReason == "" {
		finishReason = reducer.FinishReason()
		if finishReason != "" && recorder != nil {
			recorder.RecordEvent(run, seq, stream.End{FinishReason: finishReason})
			seq++
		}
	}
	if recorder != nil {
		recorder.FinishRun(run, finishReason)
	}

	p.logger.Debug("streaming complete",
		"run_id", run.ID,
		"provider", prov.Name(),
		"events", seq,
		"finish_reason", finishReason,
		"duration", time.Since(startTime),
	)
}

// resolveProvider picks the decoder and upstream for a request path.
// /providers/<name>/rest routes to the named provider with "/rest" as the
// upstream path.
func (p *Proxy) resolveProvider(path string) (provider.Provider, string, string) {
	name, trimmed := resolveProviderOverride(path)
	if name == "" {
		return p.defaultProv, p.config.UpstreamURL, path
	}

	prov, ok := p.providers[name]
	if !ok {
		return p.defaultProv, p.config.UpstreamURL, path
	}
	return prov, p.providerUpstream(name), trimmed
}

func (p *Proxy) providerUpstream(name string) string {
	if upstream := strings.TrimSpace(p.config.ProviderUpstreams[name]); upstream != "" {
		return upstream
	}
	if name == p.defaultProv.Name() {
		return p.config.UpstreamURL
	}
	if upstream, ok := defaultUpstreams[name]; ok {
		return upstream
	}
	return p.config.UpstreamURL
}

func resolveProviderOverride(path string) (string, string) {
	if !strings.HasPrefix(path, providerPathPrefix) {
		return "", path
	}

	remainder := strings.TrimPrefix(path, providerPathPrefix)
	if remainder == "" {
		return "", path
	}

	parts := strings.SplitN(remainder, "/", 2)
	providerName := strings.TrimSpace(parts[0])
	if providerName == "" {
		return "", path
	}

	if len(parts) == 1 {
		return providerName, "/"
	}

	return providerName, "/" + parts[1]
}
