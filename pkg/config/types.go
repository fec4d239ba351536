package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent reel configuration stored as config.toml
// in the .reel/ directory.
type Config struct {
	Version     int               `toml:"version"`
	Model       ModelConfig       `toml:"model"`
	Sampling    SamplingConfig    `toml:"sampling"`
	Agent       AgentConfig       `toml:"agent"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Serve       ServeConfig       `toml:"serve"`
}

// ModelConfig selects the completion endpoint.
type ModelConfig struct {
	Provider string `toml:"provider,omitempty"`
	Name     string `toml:"name,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// SamplingConfig holds generation parameters. Nil or zero means "provider
// default".
type SamplingConfig struct {
	Temperature *float64 `toml:"temperature,omitempty"`
	TopP        *float64 `toml:"top_p,omitempty"`
	MaxTokens   int      `toml:"max_tokens,omitempty"`
}

// AgentConfig holds orchestration settings.
type AgentConfig struct {
	SystemPrompt string `toml:"system_prompt,omitempty"`

	// MaxSteps bounds how many completions one run may chain through tool
	// results.
	MaxSteps int `toml:"max_steps,omitempty"`
}

// StorageConfig selects where Full events are recorded.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite", "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig configures event publishing. Publishing is disabled when
// no brokers are set.
type EventStreamConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// Brokers splits KafkaBrokers on commas.
func (c EventStreamConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// ServeConfig holds HTTP server settings.
type ServeConfig struct {
	Listen string `toml:"listen,omitempty"`

	// ProxyListen is the address of the recording proxy.
	ProxyListen string `toml:"proxy_listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if n := *field(c); n != 0 {
				return strconv.Itoa(n)
			}
			return ""
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid value for %s: %q", name, v)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) **float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if p := *field(c); p != nil {
				return strconv.FormatFloat(*p, 'g', -1, 64)
			}
			return ""
		},
		set: func(c *Config, v string) error {
			if v == "" {
				*field(c) = nil
				return nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = &f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"model.provider":            stringKey(func(c *Config) *string { return &c.Model.Provider }),
	"model.name":                stringKey(func(c *Config) *string { return &c.Model.Name }),
	"model.base_url":            stringKey(func(c *Config) *string { return &c.Model.BaseURL }),
	"model.api_key":             stringKey(func(c *Config) *string { return &c.Model.APIKey }),
	"sampling.temperature":      floatKey("sampling.temperature", func(c *Config) **float64 { return &c.Sampling.Temperature }),
	"sampling.top_p":            floatKey("sampling.top_p", func(c *Config) **float64 { return &c.Sampling.TopP }),
	"sampling.max_tokens":       intKey("sampling.max_tokens", func(c *Config) *int { return &c.Sampling.MaxTokens }),
	"agent.system_prompt":       stringKey(func(c *Config) *string { return &c.Agent.SystemPrompt }),
	"agent.max_steps":           intKey("agent.max_steps", func(c *Config) *int { return &c.Agent.MaxSteps }),
	"storage.driver":            stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":       stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn":      stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"eventstream.kafka_brokers": stringKey(func(c *Config) *string { return &c.EventStream.KafkaBrokers }),
	"eventstream.kafka_topic":   stringKey(func(c *Config) *string { return &c.EventStream.KafkaTopic }),
	"serve.listen":              stringKey(func(c *Config) *string { return &c.Serve.Listen }),
	"serve.proxy_listen":        stringKey(func(c *Config) *string { return &c.Serve.ProxyListen }),
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"model.provider",
	"model.name",
	"model.base_url",
	"model.api_key",
	"sampling.temperature",
	"sampling.top_p",
	"sampling.max_tokens",
	"agent.system_prompt",
	"agent.max_steps",
	"storage.driver",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"eventstream.kafka_brokers",
	"eventstream.kafka_topic",
	"serve.listen",
	"serve.proxy_listen",
}
