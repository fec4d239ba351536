package askcmder_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/reel/cmd/reel/ask"
)

const toolCallStream = `{"model":"qwen3","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_city_temperature","arguments":{"city_name":"Paris"}}}]},"done":false}
{"model":"qwen3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}
`

const answerStream = `{"model":"qwen3","message":{"role":"assistant","content":"It is "},"done":false}
{"model":"qwen3","message":{"role":"assistant","content":"20 degrees."},"done":false}
{"model":"qwen3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}
`

// newRoot mirrors the persistent flags the reel root command provides.
func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "reel", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolP("debug", "d", false, "")
	root.PersistentFlags().String("config-dir", "", "")
	root.AddCommand(askcmder.NewAskCmd())
	return root
}

var _ = Describe("ask command", func() {
	var (
		srv       *httptest.Server
		requests  atomic.Int32
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		requests.Store(0)
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			w.Header().Set("Content-Type", "application/x-ndjson")
			if requests.Add(1) == 1 {
				_, _ = io.WriteString(w, toolCallStream)
				return
			}
			_, _ = io.WriteString(w, answerStream)
		}))
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		srv.Close()
	})

	execute := func(args ...string) error {
		root := newRoot()
		root.SetOut(out)
		root.SetErr(io.Discard)
		root.SetArgs(append([]string{
			"ask",
			"--config-dir", configDir,
			"--provider", "ollama",
			"--base-url", srv.URL,
			"--storage", "memory",
		}, args...))
		return root.Execute()
	}

	It("prints events as JSON lines", func() {
		Expect(execute("--json", "weather", "in", "Paris?")).To(Succeed())
		Expect(requests.Load()).To(Equal(int32(2)))

		var kinds []string
		var summary map[string]any
		scanner := bufio.NewScanner(out)
		for scanner.Scan() {
			var line map[string]any
			Expect(json.Unmarshal(scanner.Bytes(), &line)).To(Succeed())
			kind := line["kind"].(string)
			kinds = append(kinds, kind)
			if kind == "summary" {
				summary = line["data"].(map[string]any)
			}
		}

		Expect(kinds).To(Equal([]string{
			"tool_call_select",
			"tool_call_arguments",
			"tool_call_request",
			"tool_result",
			"text_delta",
			"text_delta",
			"text_response",
			"summary",
		}))
		Expect(summary["text"]).To(Equal("It is 20 degrees."))
		Expect(summary["steps"]).To(BeNumerically("==", 2))
		Expect(summary["tool_calls"]).To(BeNumerically("==", 1))
	})

	It("renders the answer and tool results", func() {
		Expect(execute("weather?")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("It is 20 degrees."))
		Expect(out.String()).To(ContainSubstring("get_city_temperature"))
		Expect(out.String()).To(ContainSubstring("20 degrees Celsius"))
	})

	It("captures the raw streams", func() {
		capture := filepath.Join(configDir, "run.ndjson")
		Expect(execute("--capture", capture, "--no-record", "weather?")).To(Succeed())

		data, err := os.ReadFile(capture)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(toolCallStream + answerStream))
	})

	It("offers no tools with --no-tools", func() {
		var body map[string]any
		srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			_, _ = io.WriteString(w, answerStream)
		})

		Expect(execute("--no-tools", "--no-record", "hi")).To(Succeed())
		Expect(body).NotTo(HaveKey("tools"))
		Expect(strings.Count(out.String(), "It is 20 degrees.")).To(BeNumerically(">=", 1))
	})

	It("requires a prompt", func() {
		Expect(execute()).NotTo(Succeed())
	})

	It("rejects unknown providers", func() {
		Expect(execute("--provider", "nope", "hi")).To(MatchError(ContainSubstring("unknown provider type")))
	})
})
