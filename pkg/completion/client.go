// Package completion sends streaming chat requests to a completion API and
// exposes the response as a stream.ChunkSource.
package completion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/llm/provider"
)

// maxErrorBody caps how much of a failed response is kept in a StatusError.
const maxErrorBody = 64 * 1024

// Config configures a Client.
type Config struct {
	// BaseURL is the API root the provider's endpoint is appended to,
	// e.g. "http://localhost:11434" or "https://api.openai.com/v1".
	BaseURL string

	// APIKey is handed to the provider's Authorize. May be empty.
	APIKey string

	// Provider encodes requests and decodes the stream.
	Provider provider.Provider

	// HTTPClient defaults to a client with a 5 minute timeout.
	HTTPClient *http.Client

	// Tee receives a verbatim copy of every response stream.
	Tee io.Writer

	Logger *slog.Logger
}

// Client issues streaming completion requests.
type Client struct {
	baseURL    string
	apiKey     string
	provider   provider.Provider
	httpClient *http.Client
	tee        io.Writer
	logger     *slog.Logger
}

// StatusError is returned by Complete when the API answers with a non-200
// status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("completion request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion request failed with status %d: %s", e.StatusCode, body)
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Provider == nil {
		return nil, errors.New("completion client requires a provider")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("completion client requires a base URL")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// LLM requests can be slow, especially with thinking blocks
			Timeout: 5 * time.Minute,
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		provider:   cfg.Provider,
		httpClient: httpClient,
		tee:        cfg.Tee,
		logger:     logger,
	}, nil
}

// Provider returns the provider the client speaks.
func (c *Client) Provider() provider.Provider {
	return c.provider
}

// Complete sends req and returns the response stream. The caller must Close
// the stream.
func (c *Client) Complete(ctx context.Context, req *llm.ChatRequest) (*Stream, error) {
	body, err := c.provider.BuildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", c.provider.Name(), err)
	}

	url := c.baseURL + c.provider.Endpoint()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.provider.Framing() == llm.FramingSSE {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/x-ndjson")
	}
	c.provider.Authorize(httpReq.Header, c.apiKey)

	c.logger.Debug("sending completion request",
		"provider", c.provider.Name(),
		"url", url,
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		c.logger.Error("upstream returned error",
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	opts := []StreamOption{WithLogger(c.logger)}
	if c.tee != nil {
		opts = append(opts, WithTee(c.tee))
	}
	return NewStream(resp.Body, c.provider, opts...), nil
}
