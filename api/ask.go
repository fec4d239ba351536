package api

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/sse"
	"github.com/papercomputeco/reel/pkg/stream"
)

// SSE event types sent by /v1/ask besides the stream event kinds.
const (
	EventToolResult = "tool_result"
	EventSummary    = "summary"
	EventError      = "error"
)

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Prompt string `json:"prompt"`
}

// ToolResultPayload is the data of a tool_result event.
type ToolResultPayload struct {
	CallID string `json:"call_id,omitempty"`
	Name   string `json:"name"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// SummaryPayload is the data of the final summary event.
type SummaryPayload struct {
	RunID        string `json:"run_id"`
	Text         string `json:"text"`
	Steps        int    `json:"steps"`
	FinishReason string `json:"finish_reason,omitempty"`
	ToolCalls    int    `json:"tool_calls"`
}

// NewToolResultPayload converts a tool call outcome to its wire form.
func NewToolResultPayload(res agent.ToolResult) ToolResultPayload {
	payload := ToolResultPayload{CallID: res.CallID, Name: res.Name, Output: res.Output}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}
	return payload
}

// NewSummaryPayload converts a run summary to its wire form.
func NewSummaryPayload(s *agent.Summary) SummaryPayload {
	return SummaryPayload{
		RunID:        s.RunID,
		Text:         s.Text,
		Steps:        s.Steps,
		FinishReason: s.FinishReason,
		ToolCalls:    len(s.ToolResults),
	}
}

// handleAsk runs the agent and streams every event back as SSE. Each stream
// event is sent with its kind as the SSE event type and the kind-tagged JSON
// as data.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	if s.agent == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "agent not configured"})
	}

	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "prompt is required"})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// pw.Write blocks until fasthttp reads from the pipe and flushes to the
	// socket, so each event reaches the client as it is produced.
	pr, pw := io.Pipe()
	go s.streamRun(req.Prompt, pw)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// streamRun runs in its own goroutine: fasthttp recycles the request
// context once the handler returns, so the run gets a fresh context that is
// cancelled when the client goes away.
func (s *Server) streamRun(prompt string, pw *io.PipeWriter) {
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := sse.NewWriter(pw)
	send := func(eventType string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			s.logger.Error("failed to encode SSE payload", "event", eventType, "error", err)
			return
		}
		if err := w.Write(sse.Event{Type: eventType, Data: string(data)}); err != nil {
			s.logger.Debug("client went away", "error", err)
			cancel()
		}
	}

	summary, err := s.agent.Run(ctx, prompt,
		agent.OnEvent(func(ev stream.Event) {
			data, err := stream.MarshalEvent(ev)
			if err != nil {
				s.logger.Error("failed to encode event", "kind", ev.Kind().String(), "error", err)
				return
			}
			send(ev.Kind().String(), json.RawMessage(data))
		}),
		agent.OnToolResult(func(res agent.ToolResult) {
			send(EventToolResult, NewToolResultPayload(res))
		}),
	)

	if err != nil {
		s.logger.Error("run failed", "error", err)
		send(EventError, llm.ErrorResponse{Error: err.Error()})
	}
	if summary != nil {
		send(EventSummary, NewSummaryPayload(summary))
	}
}
