// Package askcmder provides the ask command: it sends a prompt to the
// configured model, streams the reduced events to the terminal, runs the
// tools the model asks for and records the run.
package askcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/api"
	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/backend"
	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/stream"
	"github.com/papercomputeco/reel/pkg/toolbox"
)

type askCommander struct {
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

	jsonOut   bool
	markdown  bool
	reasoning bool
	capture   string
	noTools   bool
	noRecord  bool

	debug     bool
	configDir string

	cfg    *config.Config
	logger *slog.Logger
}

var askFlags = []string{
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

const askLongDesc string = `Ask the model a question.

The response is streamed as it is reduced into events: text and reasoning
are printed as they arrive, tool calls are executed against the built-in
tools and their results are fed back to the model until it answers.

Every full event is recorded in the configured event store and, when Kafka
brokers are configured, published to the event topic.

Examples:
  reel ask "What's the temperature in Lisbon?"
  reel ask --json "Is it raining in Oslo?"
  reel ask --capture run.sse -p openai -u https://api.openai.com/v1 "hi"`

const askShortDesc string = "Ask the model a question"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
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

			cmder.cfg, err = config.ForCommand(cmd, cmder.configDir, askFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

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

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print events as JSON lines instead of rendering them")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render the final answer as markdown")
	cmd.Flags().BoolVar(&cmder.reasoning, "reasoning", false, "Show the model's reasoning")
	cmd.Flags().StringVar(&cmder.capture, "capture", "", "Write the raw completion streams to this file for replay")
	cmd.Flags().BoolVar(&cmder.noTools, "no-tools", false, "Do not offer any tools to the model")
	cmd.Flags().BoolVar(&cmder.noRecord, "no-record", false, "Do not record the run")

	return cmd
}

func (c *askCommander) run(cmd *cobra.Command, prompt string) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(cmd.ErrOrStderr()),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []backend.AgentOption

	if !c.noRecord {
		b, err := backend.Open(ctx, c.cfg, c.configDir, c.logger)
		if err != nil {
			return err
		}
		defer b.Close()
		opts = append(opts, backend.WithRecorder(b.Pool))
	}

	if c.capture != "" {
		f, err := os.Create(c.capture)
		if err != nil {
			return fmt.Errorf("creating capture file: %w", err)
		}
		defer f.Close()
		opts = append(opts, backend.WithTee(f))
	}

	if c.noTools {
		opts = append(opts, backend.WithRegistry(toolbox.NewRegistry(toolbox.WithLogger(c.logger))))
	}

	ag, err := backend.NewAgent(c.cfg, c.logger, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.jsonOut {
		return c.runJSON(ctx, out, ag, prompt)
	}
	return c.runRendered(ctx, out, ag, prompt)
}

func (c *askCommander) runRendered(ctx context.Context, out io.Writer, ag *agent.Agent, prompt string) error {
	var ropts []cliui.RendererOption
	if c.markdown {
		ropts = append(ropts, cliui.WithMarkdown())
	}
	if c.reasoning {
		ropts = append(ropts, cliui.WithReasoning())
	}
	r := cliui.NewRenderer(out, ropts...)

	summary, err := ag.Run(ctx, prompt,
		agent.OnEvent(r.Event),
		agent.OnToolResult(r.ToolResult),
	)
	if summary != nil {
		r.Summary(summary)
	}
	return err
}

// jsonLine tags a non-event payload with its kind so every output line can
// be dispatched on "kind".
type jsonLine[T any] struct {
	Kind string `json:"kind"`
	Data T      `json:"data"`
}

func (c *askCommander) runJSON(ctx context.Context, out io.Writer, ag *agent.Agent, prompt string) error {
	enc := json.NewEncoder(out)

	summary, err := ag.Run(ctx, prompt,
		agent.OnEvent(func(ev stream.Event) {
			data, err := stream.MarshalEvent(ev)
			if err != nil {
				c.logger.Error("failed to encode event", "kind", ev.Kind().String(), "error", err)
				return
			}
			fmt.Fprintf(out, "%s\n", data)
		}),
		agent.OnToolResult(func(res agent.ToolResult) {
			_ = enc.Encode(jsonLine[api.ToolResultPayload]{Kind: api.EventToolResult, Data: api.NewToolResultPayload(res)})
		}),
	)
	if summary != nil {
		_ = enc.Encode(jsonLine[api.SummaryPayload]{Kind: api.EventSummary, Data: api.NewSummaryPayload(summary)})
	}
	return err
}
