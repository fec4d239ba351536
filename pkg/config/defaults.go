package config

const (
	defaultProvider = "ollama"
	defaultModel    = "qwen3"
	defaultBaseURL  = "http://localhost:11434"

	defaultMaxSteps = 8

	defaultStorageDriver = "sqlite"
	defaultKafkaTopic    = "reel.events"
	defaultListen        = ":8080"
	defaultProxyListen   = ":8090"

	// DefaultSystemPrompt is used when agent.system_prompt is unset.
	DefaultSystemPrompt = "You are a helpful assistant. You can answer questions and use tools to get information. " +
		"DO NOT make up information, only use the tools provided to you. " +
		"DO NOT USE TOOLS IF THEY ARE NOT HELPFUL."
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Model: ModelConfig{
			Provider: defaultProvider,
			Name:     defaultModel,
			BaseURL:  defaultBaseURL,
		},
		Agent: AgentConfig{
			SystemPrompt: DefaultSystemPrompt,
			MaxSteps:     defaultMaxSteps,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		EventStream: EventStreamConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Serve: ServeConfig{
			Listen:      defaultListen,
			ProxyListen: defaultProxyListen,
		},
	}
}
