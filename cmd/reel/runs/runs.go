// Package runscmder provides the runs command for inspecting recorded agent
// runs and their event logs.
package runscmder

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/api"
	"github.com/papercomputeco/reel/pkg/backend"
	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/stream"
	"github.com/papercomputeco/reel/pkg/utils"
)

// maxPreview bounds prompt and event previews in tables.
const maxPreview = 60

type runsCommander struct {
	storage     string
	sqlitePath  string
	postgresDSN string
	jsonOut     bool

	debug     bool
	configDir string

	cfg    *config.Config
	logger *slog.Logger
}

var runsFlags = []string{
	config.FlagStorage,
	config.FlagSQLite,
	config.FlagPostgres,
}

const runsLongDesc string = `Inspect recorded runs.

Without arguments, lists every run in the event store, newest first.
With a run ID, prints the run and the full events it produced.

Examples:
  reel runs
  reel runs 6f1c0f0e-4a51-4b7a-9f0e-2d1f3c9a8b7e
  reel runs --json --storage postgres --postgres "$DSN"`

const runsShortDesc string = "Inspect recorded runs"

func NewRunsCmd() *cobra.Command {
	cmder := &runsCommander{}

	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: runsShortDesc,
		Long:  runsLongDesc,
		Args:  cobra.MaximumNArgs(1),
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

			cmder.cfg, err = config.ForCommand(cmd, cmder.configDir, runsFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorage, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print JSON instead of a table")

	return cmd
}

func (c *runsCommander) run(cmd *cobra.Command, args []string) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(cmd.ErrOrStderr()),
	)

	driver, err := backend.OpenDriver(cmd.Context(), c.cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	if len(args) == 1 {
		return c.show(cmd, driver, args[0])
	}
	return c.list(cmd, driver)
}

func (c *runsCommander) list(cmd *cobra.Command, driver storage.Driver) error {
	runs, err := driver.Runs(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if c.jsonOut {
		return writeJSON(out, api.RunsResponse{Count: len(runs), Runs: runs})
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet. Start one with: reel ask <prompt>")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tMODEL\tEVENTS\tFINISH\tPROMPT")
	for _, run := range runs {
		finish := run.FinishReason
		if run.FinishedAt == nil {
			finish = "running"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Model,
			run.Events,
			finish,
			preview(run.Prompt),
		)
	}
	return w.Flush()
}

func (c *runsCommander) show(cmd *cobra.Command, driver storage.Driver, id string) error {
	ctx := cmd.Context()
	run, err := driver.GetRun(ctx, id)
	if err != nil {
		return err
	}
	entries, err := driver.List(ctx, id)
	if err != nil {
		return fmt.Errorf("listing events of run %s: %w", id, err)
	}

	events := make([]stream.Event, 0, len(entries))
	for _, entry := range entries {
		ev, err := entry.Event()
		if err != nil {
			c.logger.Warn("skipping undecodable event", "run_id", id, "seq", entry.Seq, "error", err)
			continue
		}
		events = append(events, ev)
	}

	out := cmd.OutOrStdout()
	if c.jsonOut {
		resp := api.RunResponse{Run: run, Log: make([]json.RawMessage, 0, len(events))}
		for _, ev := range events {
			data, err := stream.MarshalEvent(ev)
			if err != nil {
				return err
			}
			resp.Log = append(resp.Log, data)
		}
		return writeJSON(out, resp)
	}

	fmt.Fprintf(out, "\n  %s %s\n", cliui.KeyStyle.Render("Run:"), run.ID)
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Prompt:"), run.Prompt)
	fmt.Fprintf(out, "  %s %s / %s\n", cliui.KeyStyle.Render("Model:"), run.Provider, run.Model)
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "  %s %s in %s\n\n",
			cliui.KeyStyle.Render("Finished:"),
			run.FinishReason,
			cliui.FormatDuration(run.FinishedAt.Sub(run.StartedAt)),
		)
	} else {
		fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("(not finished)"))
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, ev := range events {
		fmt.Fprintf(w, "  %d\t%s\t%s\n", i, ev.Kind(), describe(ev))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

// describe renders a one-line preview of a full event.
func describe(ev stream.Event) string {
	switch e := ev.(type) {
	case stream.TextResponse:
		return preview(e.Content)
	case stream.ReasoningResponse:
		return cliui.DimStyle.Render(preview(e.Content))
	case stream.ToolCallRequest:
		return e.FunctionName + " " + preview(e.Arguments)
	case stream.End:
		return e.FinishReason
	default:
		return ""
	}
}

func preview(s string) string {
	return utils.Truncate(strings.ReplaceAll(s, "\n", " "), maxPreview)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
