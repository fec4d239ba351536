package replaycmder_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	replaycmder "github.com/papercomputeco/reel/cmd/reel/replay"
)

const openaiCapture = `: keep-alive

data: {"object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Let me "}}]}

data: {"object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"check."}}]}

data: {"object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"get_city_rainfall","arguments":""}}]}}]}

data: {"object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city_name\":"}}]}}]}

data: {"object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Oslo\"}"}}]}}]}

data: {"object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]

`

const ollamaCapture = `{"model":"qwen3","message":{"role":"assistant","content":"","thinking":"hmm"},"done":false}
{"model":"qwen3","message":{"role":"assistant","content":"Hi"},"done":false}
{"model":"qwen3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}
`

func newRoot(stdin io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{Use: "reel", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolP("debug", "d", false, "")
	root.AddCommand(replaycmder.NewReplayCmd())
	root.SetIn(stdin)
	root.SetOut(out)
	root.SetErr(io.Discard)
	return root
}

func kindsOf(out string) []string {
	var kinds []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var ev struct {
			Kind string `json:"kind"`
		}
		Expect(json.Unmarshal([]byte(line), &ev)).To(Succeed())
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

var _ = Describe("replay command", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("reduces a captured OpenAI stream", func() {
		root := newRoot(nil, out)
		root.SetArgs([]string{"replay", "--json", write("run.sse", openaiCapture)})
		Expect(root.Execute()).To(Succeed())

		Expect(kindsOf(out.String())).To(Equal([]string{
			"text_delta",
			"text_delta",
			"tool_call_select",
			"text_response",
			"tool_call_arguments",
			"tool_call_arguments",
			"tool_call_request",
		}))
		Expect(out.String()).To(ContainSubstring(`"arguments":"{\"city_name\":\"Oslo\"}"`))
		Expect(out.String()).To(ContainSubstring(`"function_name":"get_city_rainfall"`))
	})

	It("detects NDJSON streams and reads stdin", func() {
		root := newRoot(strings.NewReader(ollamaCapture), out)
		root.SetArgs([]string{"replay", "--json", "-"})
		Expect(root.Execute()).To(Succeed())

		Expect(kindsOf(out.String())).To(Equal([]string{
			"reasoning_delta",
			"text_delta",
			"reasoning_response",
			"text_response",
		}))
	})

	It("renders events with the finish reason", func() {
		root := newRoot(nil, out)
		root.SetArgs([]string{"replay", write("run.ndjson", ollamaCapture)})
		Expect(root.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Hi"))
		Expect(out.String()).To(ContainSubstring("(stop)"))
	})

	It("fails on undetectable input", func() {
		root := newRoot(nil, out)
		root.SetArgs([]string{"replay", write("junk.txt", "hello world\n")})
		Expect(root.Execute()).To(MatchError(ContainSubstring("set --provider")))
	})

	It("surfaces decode errors with an explicit provider", func() {
		root := newRoot(nil, out)
		root.SetArgs([]string{"replay", "--provider", "ollama", write("junk.txt", "not json\n")})
		Expect(root.Execute()).To(MatchError(ContainSubstring("decoding ollama chunk")))
	})

	It("fails on a missing file", func() {
		root := newRoot(nil, out)
		root.SetArgs([]string{"replay", filepath.Join(dir, "missing")})
		Expect(root.Execute()).To(MatchError(ContainSubstring("reading capture")))
	})
})

var _ = Describe("firstPayload", func() {
	It("skips SSE comments and [DONE]", func() {
		Expect(string(replaycmder.FirstPayload([]byte(": ping\n\ndata: [DONE]\n\ndata: {\"a\":1}\n\n")))).To(Equal(`{"a":1}`))
	})

	It("returns the first NDJSON line", func() {
		Expect(string(replaycmder.FirstPayload([]byte("\n{\"done\":false}\n{\"done\":true}\n")))).To(Equal(`{"done":false}`))
	})

	It("returns nil for empty input", func() {
		Expect(replaycmder.FirstPayload(nil)).To(BeNil())
	})
})
