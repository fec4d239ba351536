// Package replaycmder provides the replay command, which reduces a captured
// completion stream offline and prints the resulting events.
package replaycmder

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/completion"
	"github.com/papercomputeco/reel/pkg/llm/provider"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/sse"
	"github.com/papercomputeco/reel/pkg/stream"
)

type replayCommander struct {
	provider  string
	jsonOut   bool
	markdown  bool
	reasoning bool
	debug     bool

	logger *slog.Logger
}

const replayLongDesc string = `Replay a captured completion stream.

Reads an SSE or NDJSON response body, as written by "reel ask --capture",
reduces it into events and prints them. The provider is detected from the
first chunk unless --provider is set. Use "-" to read from stdin.

Examples:
  reel replay run.sse
  reel replay --json run.ndjson
  curl -sN ... | reel replay --provider openai -`

const replayShortDesc string = "Reduce a captured completion stream"

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{}

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.provider, "provider", "p", "", "Stream format (openai, anthropic, ollama); detected when empty")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print events as JSON lines instead of rendering them")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render text responses as markdown")
	cmd.Flags().BoolVar(&cmder.reasoning, "reasoning", false, "Show reasoning")

	return cmd
}

func (c *replayCommander) run(cmd *cobra.Command, path string) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(cmd.ErrOrStderr()),
	)

	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	p, err := c.resolveProvider(data)
	if err != nil {
		return err
	}
	c.logger.Debug("replaying stream", "provider", p.Name(), "bytes", len(data))

	s := completion.NewStream(io.NopCloser(bytes.NewReader(data)), p, completion.WithLogger(c.logger))
	defer s.Close()

	reducer := stream.NewReducer(s)
	out := cmd.OutOrStdout()

	var render func(stream.Event) error
	if c.jsonOut {
		render = func(ev stream.Event) error {
			line, err := stream.MarshalEvent(ev)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%s\n", line)
			return err
		}
	} else {
		var ropts []cliui.RendererOption
		if c.markdown {
			ropts = append(ropts, cliui.WithMarkdown())
		}
		if c.reasoning {
			ropts = append(ropts, cliui.WithReasoning())
		}
		r := cliui.NewRenderer(out, ropts...)
		render = func(ev stream.Event) error {
			r.Event(ev)
			return nil
		}
		defer func() {
			if reason := reducer.FinishReason(); reason != "" {
				fmt.Fprintln(out, cliui.StepStyle.Render("\n("+reason+")"))
			}
		}()
	}

	for ev, err := range reducer.All() {
		if err != nil {
			return err
		}
		if err := render(ev); err != nil {
			return err
		}
	}
	return nil
}

func (c *replayCommander) resolveProvider(data []byte) (provider.Provider, error) {
	if c.provider != "" {
		return provider.New(c.provider)
	}

	payload := firstPayload(data)
	if payload == nil {
		return nil, fmt.Errorf("no stream chunks found to detect the provider; set --provider")
	}
	p, err := provider.NewDetector().Detect(payload)
	if err != nil {
		return nil, fmt.Errorf("detecting provider: %w; set --provider", err)
	}
	return p, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading capture: %w", err)
	}
	return data, nil
}

// firstPayload returns the first chunk payload of an SSE or NDJSON body.
func firstPayload(data []byte) []byte {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isSSEField(line) {
			return firstSSEData(data)
		}
		return []byte(line)
	}
	return nil
}

func isSSEField(line string) bool {
	return strings.HasPrefix(line, "data:") ||
		strings.HasPrefix(line, "event:") ||
		strings.HasPrefix(line, "id:") ||
		strings.HasPrefix(line, ":")
}

func firstSSEData(data []byte) []byte {
	r := sse.NewReader(bytes.NewReader(data))
	for {
		ev, err := r.Next()
		if err != nil || ev == nil {
			return nil
		}
		if ev.Data != "" && ev.Data != "[DONE]" {
			return []byte(ev.Data)
		}
	}
}
