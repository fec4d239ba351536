package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/pkg/config"
)

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`
[model]
name = "from-file"
provider = "openai"

[serve]
listen = ":7000"
`), 0o600)).To(Succeed())
	})

	It("layers flags over env over file over defaults", func() {
		GinkgoT().Setenv("REEL_MODEL_PROVIDER", "anthropic")
		GinkgoT().Setenv("REEL_SERVE_LISTEN", ":7001")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		var listen string
		cmd := &cobra.Command{Use: "test"}
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
		Expect(cmd.Flags().Set("listen", ":7002")).To(Succeed())
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})

		cfg, err := config.FromViper(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Model.Name).To(Equal("from-file"))
		Expect(cfg.Model.Provider).To(Equal("anthropic"))
		Expect(cfg.Serve.Listen).To(Equal(":7002"))
		Expect(cfg.Model.BaseURL).To(Equal("http://localhost:11434"))
		Expect(cfg.Sampling.Temperature).To(BeNil())
	})

	It("parses numeric values from the environment", func() {
		GinkgoT().Setenv("REEL_SAMPLING_TEMPERATURE", "0.7")
		GinkgoT().Setenv("REEL_AGENT_MAX_STEPS", "3")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		cfg, err := config.FromViper(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Sampling.Temperature).To(HaveValue(BeNumerically("==", 0.7)))
		Expect(cfg.Agent.MaxSteps).To(Equal(3))
	})

	It("uses flag defaults from the config defaults", func() {
		var model string
		cmd := &cobra.Command{Use: "test"}
		config.AddStringFlag(cmd, config.Flags, config.FlagModel, &model)
		Expect(model).To(Equal("qwen3"))
		Expect(cmd.Flags().Lookup("model").Shorthand).To(Equal("m"))
	})

	It("resolves a command's flags through ForCommand", func() {
		var model string
		var steps int
		cmd := &cobra.Command{Use: "test"}
		config.AddStringFlag(cmd, config.Flags, config.FlagModel, &model)
		config.AddIntFlag(cmd, config.Flags, config.FlagMaxSteps, &steps)
		Expect(cmd.Flags().Set("max-steps", "2")).To(Succeed())

		cfg, err := config.ForCommand(cmd, tmpDir, config.FlagModel, config.FlagMaxSteps)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Model.Name).To(Equal("from-file"))
		Expect(cfg.Agent.MaxSteps).To(Equal(2))
	})
})
