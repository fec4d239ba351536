// Package reelcmder is the root of the reel command tree.
package reelcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/reel/cmd/reel/ask"
	configcmder "github.com/papercomputeco/reel/cmd/reel/config"
	replaycmder "github.com/papercomputeco/reel/cmd/reel/replay"
	runscmder "github.com/papercomputeco/reel/cmd/reel/runs"
	servecmder "github.com/papercomputeco/reel/cmd/reel/serve"
	versioncmder "github.com/papercomputeco/reel/cmd/version"
)

const reelLongDesc string = `reel turns streaming model completions into typed events.

Talk to a model, run the tools it asks for and record what happened:
  reel ask "What's the weather in Paris?"   Stream an answer and run tools
  reel replay capture.sse                   Reduce a captured stream offline
  reel serve                                Serve the agent over HTTP and MCP
  reel runs [id]                            Inspect recorded runs`

const reelShortDesc string = "reel - streaming completion events"

func NewReelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "reel",
		Short:        reelShortDesc,
		Long:         reelLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .reel/ configuration directory")

	// Add subcommands
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(runscmder.NewRunsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
