package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single definition of a CLI flag shared by every command that
// exposes it, so names, shorthands and help text cannot drift.
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "model.name").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet maps registry keys to flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagProvider     = "provider"
	FlagModel        = "model"
	FlagBaseURL      = "base-url"
	FlagAPIKey       = "api-key"
	FlagTemperature  = "temperature"
	FlagTopP         = "top-p"
	FlagMaxTokens    = "max-tokens"
	FlagSystemPrompt = "system"
	FlagMaxSteps     = "max-steps"
	FlagStorage      = "storage"
	FlagSQLite       = "sqlite"
	FlagPostgres     = "postgres"
	FlagKafka        = "kafka-brokers"
	FlagKafkaTopic   = "kafka-topic"
	FlagListen       = "listen"
	FlagProxyListen  = "proxy-listen"
)

// Flags is the registry shared by all reel commands.
var Flags = FlagSet{
	FlagProvider:     {Name: "provider", Shorthand: "p", ViperKey: "model.provider", Description: "Completion API format (openai, anthropic, ollama)"},
	FlagModel:        {Name: "model", Shorthand: "m", ViperKey: "model.name", Description: "Model name"},
	FlagBaseURL:      {Name: "base-url", Shorthand: "u", ViperKey: "model.base_url", Description: "Base URL of the completion API"},
	FlagAPIKey:       {Name: "api-key", ViperKey: "model.api_key", Description: "API key for the completion API"},
	FlagTemperature:  {Name: "temperature", ViperKey: "sampling.temperature", Description: "Sampling temperature (empty for provider default)"},
	FlagTopP:         {Name: "top-p", ViperKey: "sampling.top_p", Description: "Nucleus sampling probability (empty for provider default)"},
	FlagMaxTokens:    {Name: "max-tokens", ViperKey: "sampling.max_tokens", Description: "Maximum tokens per completion (0 for provider default)"},
	FlagSystemPrompt: {Name: "system", Shorthand: "s", ViperKey: "agent.system_prompt", Description: "System prompt"},
	FlagMaxSteps:     {Name: "max-steps", ViperKey: "agent.max_steps", Description: "Maximum completions per run when chaining tool results"},
	FlagStorage:      {Name: "storage", ViperKey: "storage.driver", Description: "Event storage driver (memory, sqlite, postgres)"},
	FlagSQLite:       {Name: "sqlite", ViperKey: "storage.sqlite_path", Description: "SQLite database path (default: reel.sqlite in the .reel dir)"},
	FlagPostgres:     {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagKafka:        {Name: "kafka-brokers", ViperKey: "eventstream.kafka_brokers", Description: "Comma-separated Kafka brokers to publish events to"},
	FlagKafkaTopic:   {Name: "kafka-topic", ViperKey: "eventstream.kafka_topic", Description: "Kafka topic for published events"},
	FlagListen:       {Name: "listen", Shorthand: "l", ViperKey: "serve.listen", Description: "Address for the HTTP server to listen on"},
	FlagProxyListen:  {Name: "listen", Shorthand: "l", ViperKey: "serve.proxy_listen", Description: "Address for the recording proxy to listen on"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper. Call it in
// PreRunE after InitViper so flags take precedence over env and file values.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
