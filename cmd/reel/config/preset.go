package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
)

const presetLongDesc string = `Point the model section at a known provider.

Replaces model.provider, model.name and model.base_url with the preset's
values. The API key and every other section are kept.

Examples:
  reel config preset openai
  reel config preset ollama`

const presetShortDesc string = "Apply a provider preset"

func newPresetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "preset <name>",
		Short:     presetShortDesc,
		Long:      presetLongDesc,
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.ValidPresetNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runPreset(cmd, args[0], configDir)
		},
	}

	return cmd
}

func runPreset(cmd *cobra.Command, name, configDir string) error {
	preset, err := config.PresetConfig(name)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	printTarget(cmd, cfger.GetTarget())

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	apiKey := cfg.Model.APIKey
	cfg.Model = preset.Model
	cfg.Model.APIKey = apiKey

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "  %s Using %s (%s at %s)\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(cfg.Model.Provider),
		cliui.ValueStyle.Render(cfg.Model.Name),
		cliui.DimStyle.Render(cfg.Model.BaseURL),
	)
	return nil
}
