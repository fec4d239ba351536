package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/config"
)

var _ = Describe("Configer", func() {
	var (
		tmpDir string
		c      *config.Configer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		c, err = config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	writeConfig := func(content string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0o600)).To(Succeed())
	}

	Describe("LoadConfig", func() {
		It("returns defaults when no file exists", func() {
			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("overlays file values on the defaults", func() {
			writeConfig(`
[model]
provider = "openai"
name = "gpt-4o"

[sampling]
temperature = 0.0
top_p = 0.9

[storage]
driver = "postgres"
postgres_dsn = "postgres://localhost/reel"
`)
			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Model.Provider).To(Equal("openai"))
			Expect(cfg.Model.Name).To(Equal("gpt-4o"))
			Expect(cfg.Model.BaseURL).To(Equal("http://localhost:11434"))
			Expect(cfg.Sampling.Temperature).To(HaveValue(BeNumerically("==", 0)))
			Expect(cfg.Sampling.TopP).To(HaveValue(BeNumerically("==", 0.9)))
			Expect(cfg.Storage.Driver).To(Equal("postgres"))
			Expect(cfg.Agent.SystemPrompt).To(Equal(config.DefaultSystemPrompt))
			Expect(cfg.Agent.MaxSteps).To(Equal(8))
		})

		It("rejects malformed TOML", func() {
			writeConfig("[model\nname=")
			_, err := c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})

		It("rejects unsupported versions", func() {
			writeConfig("version = 3\n")
			_, err := c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
		})
	})

	Describe("SaveConfig", func() {
		It("round-trips through disk with owner-only permissions", func() {
			cfg, err := config.PresetConfig("anthropic")
			Expect(err).NotTo(HaveOccurred())
			cfg.Model.APIKey = "sk-ant"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(c.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("refuses a nil config", func() {
			Expect(c.SaveConfig(nil)).To(HaveOccurred())
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		It("sets and reads back string, int and float keys", func() {
			Expect(c.SetConfigValue("model.name", "llama3.2")).To(Succeed())
			Expect(c.SetConfigValue("sampling.max_tokens", "256")).To(Succeed())
			Expect(c.SetConfigValue("sampling.temperature", "0.25")).To(Succeed())

			Expect(c.GetConfigValue("model.name")).To(Equal("llama3.2"))
			Expect(c.GetConfigValue("sampling.max_tokens")).To(Equal("256"))
			Expect(c.GetConfigValue("sampling.temperature")).To(Equal("0.25"))
		})

		It("clears a float key with an empty value", func() {
			Expect(c.SetConfigValue("sampling.top_p", "0.5")).To(Succeed())
			Expect(c.SetConfigValue("sampling.top_p", "")).To(Succeed())
			Expect(c.GetConfigValue("sampling.top_p")).To(BeEmpty())
		})

		It("keeps other values when setting a key", func() {
			Expect(c.SetConfigValue("serve.listen", ":9090")).To(Succeed())
			Expect(c.SetConfigValue("model.provider", "anthropic")).To(Succeed())
			Expect(c.GetConfigValue("serve.listen")).To(Equal(":9090"))
		})

		It("rejects unknown keys and invalid numbers", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))
			Expect(c.SetConfigValue("agent.max_steps", "many")).To(HaveOccurred())
			Expect(c.SetConfigValue("agent.max_steps", "-1")).To(HaveOccurred())
			_, err := c.GetConfigValue("nope")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("lists every key exactly once", func() {
		keys := config.ValidConfigKeys()
		Expect(keys).To(ContainElements("model.provider", "sampling.top_p", "storage.postgres_dsn", "eventstream.kafka_brokers", "serve.listen", "serve.proxy_listen"))
		for _, k := range keys {
			Expect(config.IsValidConfigKey(k)).To(BeTrue())
		}
		seen := map[string]bool{}
		for _, k := range keys {
			Expect(seen).NotTo(HaveKey(k))
			seen[k] = true
		}
	})
})

var _ = Describe("PresetConfig", func() {
	DescribeTable("selects the provider endpoint",
		func(name, provider, baseURL string) {
			cfg, err := config.PresetConfig(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Model.Provider).To(Equal(provider))
			Expect(cfg.Model.BaseURL).To(Equal(baseURL))
		},
		Entry("openai", "openai", "openai", "https://api.openai.com/v1"),
		Entry("anthropic", "Anthropic", "anthropic", "https://api.anthropic.com"),
		Entry("ollama", "ollama", "ollama", "http://localhost:11434"),
	)

	It("rejects unknown presets", func() {
		_, err := config.PresetConfig("bedrock")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("EventStreamConfig", func() {
	It("splits and trims the broker list", func() {
		cfg := config.EventStreamConfig{KafkaBrokers: " a:9092, ,b:9092"}
		Expect(cfg.Brokers()).To(Equal([]string{"a:9092", "b:9092"}))
		Expect(config.EventStreamConfig{}.Brokers()).To(BeEmpty())
	})
})
