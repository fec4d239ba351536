package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/stream"
)

// RunsResponse lists recorded runs.
type RunsResponse struct {
	Count int            `json:"count"`
	Runs  []*storage.Run `json:"runs"`
}

// RunResponse is one run with its full events, each in the kind-tagged
// form produced by stream.MarshalEvent.
type RunResponse struct {
	*storage.Run
	Log []json.RawMessage `json:"log"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListRuns returns every recorded run, newest first.
func (s *Server) handleListRuns(c *fiber.Ctx) error {
	runs, err := s.storer.Runs(c.Context())
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list runs"})
	}

	return c.JSON(RunsResponse{Count: len(runs), Runs: runs})
}

// handleGetRun returns a run and its events.
func (s *Server) handleGetRun(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "id parameter required"})
	}

	ctx := c.Context()
	run, err := s.storer.GetRun(ctx, id)
	if storage.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "run not found"})
	}
	if err != nil {
		s.logger.Error("failed to get run", "run_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get run"})
	}

	entries, err := s.storer.List(ctx, id)
	if err != nil {
		s.logger.Error("failed to list run events", "run_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list run events"})
	}

	log := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		ev, err := entry.Event()
		if err != nil {
			s.logger.Warn("skipping undecodable event",
				"run_id", id,
				"seq", entry.Seq,
				"error", err,
			)
			continue
		}
		data, err := stream.MarshalEvent(ev)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to encode event"})
		}
		log = append(log, data)
	}

	return c.JSON(RunResponse{Run: run, Log: log})
}
