package completion_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/completion"
	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/llm/provider"
	"github.com/papercomputeco/reel/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/stream"
)

const openaiStream = `data: {"object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}

data: {"object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"lo"}}]}

: keep-alive

data: {"object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]

`

const ollamaStream = `{"model":"qwen3","message":{"role":"assistant","content":"","thinking":"hmm"},"done":false}
{"model":"qwen3","message":{"role":"assistant","content":"Hi"},"done":false}

{"model":"qwen3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":3,"eval_count":2}
`

func newClient(srv *httptest.Server, name string, tee io.Writer) *completion.Client {
	prov, err := provider.New(name)
	Expect(err).NotTo(HaveOccurred())

	c, err := completion.New(completion.Config{
		BaseURL:  srv.URL + "/",
		APIKey:   "sk-test",
		Provider: prov,
		Tee:      tee,
		Logger:   logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())
	return c
}

func collect(s *completion.Stream) []llm.StreamChunk {
	var chunks []llm.StreamChunk
	for {
		c, err := s.Next()
		Expect(err).NotTo(HaveOccurred())
		if c == nil {
			return chunks
		}
		chunks = append(chunks, *c)
	}
}

var _ = Describe("Client", func() {
	var req *llm.ChatRequest

	BeforeEach(func() {
		req = &llm.ChatRequest{
			Model:    "test-model",
			System:   "be brief",
			Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hello")},
		}
	})

	Describe("New", func() {
		It("requires a provider", func() {
			_, err := completion.New(completion.Config{BaseURL: "http://localhost"})
			Expect(err).To(HaveOccurred())
		})

		It("requires a base URL", func() {
			prov, _ := provider.New("ollama")
			_, err := completion.New(completion.Config{Provider: prov})
			Expect(err).To(HaveOccurred())
		})
	})

	Context("with an SSE provider", func() {
		var (
			srv      *httptest.Server
			gotPath  string
			gotAuth  string
			gotBody  map[string]any
			gotTypes []string
		)

		BeforeEach(func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotAuth = r.Header.Get("Authorization")
				gotTypes = []string{r.Header.Get("Content-Type"), r.Header.Get("Accept")}
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, openaiStream)
			}))
		})

		AfterEach(func() {
			srv.Close()
		})

		It("posts a streaming request to the provider endpoint", func() {
			s, err := newClient(srv, "openai", nil).Complete(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()
			collect(s)

			Expect(gotPath).To(Equal("/chat/completions"))
			Expect(gotAuth).To(Equal("Bearer sk-test"))
			Expect(gotTypes).To(Equal([]string{"application/json", "text/event-stream"}))
			Expect(gotBody).To(HaveKeyWithValue("stream", true))
			Expect(gotBody).To(HaveKeyWithValue("model", "test-model"))
		})

		It("decodes chunks and skips [DONE] and comments", func() {
			s, err := newClient(srv, "openai", nil).Complete(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			chunks := collect(s)
			Expect(chunks).To(HaveLen(3))
			Expect(chunks[0].Choices[0].Text).To(Equal("Hel"))
			Expect(chunks[1].Choices[0].Text).To(Equal("lo"))
			Expect(chunks[2].Choices[0].FinishReason).To(Equal("stop"))
		})

		It("feeds the reducer", func() {
			s, err := newClient(srv, "openai", nil).Complete(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			var events []stream.Event
			for ev, err := range stream.Reduce(s) {
				Expect(err).NotTo(HaveOccurred())
				events = append(events, ev)
			}
			Expect(events).To(Equal([]stream.Event{
				stream.TextDelta{Content: "Hel"},
				stream.TextDelta{Content: "lo"},
				stream.TextResponse{Content: "Hello"},
			}))
		})

		It("copies the raw stream to the tee", func() {
			var buf bytes.Buffer
			s, err := newClient(srv, "openai", &buf).Complete(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()
			collect(s)

			Expect(buf.String()).To(Equal(openaiStream))
		})
	})

	Context("with an NDJSON provider", func() {
		var srv *httptest.Server

		BeforeEach(func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/chat"))
				Expect(r.Header.Get("Accept")).To(Equal("application/x-ndjson"))
				w.Header().Set("Content-Type", "application/x-ndjson")
				_, _ = io.WriteString(w, ollamaStream)
			}))
		})

		AfterEach(func() {
			srv.Close()
		})

		It("decodes one chunk per non-empty line", func() {
			s, err := newClient(srv, "ollama", nil).Complete(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			chunks := collect(s)
			Expect(chunks).To(HaveLen(3))
			Expect(chunks[0].Choices[0].Reasoning).To(Equal("hmm"))
			Expect(chunks[1].Choices[0].Text).To(Equal("Hi"))
			Expect(chunks[2].Choices[0].FinishReason).To(Equal("stop"))
			Expect(chunks[2].Usage.TotalTokens).To(Equal(5))
		})

		It("copies every line to the tee", func() {
			var buf bytes.Buffer
			s, err := newClient(srv, "ollama", &buf).Complete(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()
			collect(s)

			Expect(buf.String()).To(Equal(ollamaStream))
		})
	})

	It("returns a StatusError for non-200 responses", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"bad key"}`)
		}))
		defer srv.Close()

		_, err := newClient(srv, "openai", nil).Complete(context.Background(), req)

		var statusErr *completion.StatusError
		Expect(errors.As(err, &statusErr)).To(BeTrue())
		Expect(statusErr.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(statusErr.Body).To(ContainSubstring("bad key"))
		Expect(err.Error()).To(ContainSubstring("401"))
	})

	It("surfaces mid-stream provider errors", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
		}))
		defer srv.Close()

		s, err := newClient(srv, "anthropic", nil).Complete(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		_, err = s.Next()
		var streamErr *anthropic.StreamError
		Expect(errors.As(err, &streamErr)).To(BeTrue())
		Expect(streamErr.Type).To(Equal("overloaded_error"))
	})

	It("honors context cancellation", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newClient(srv, "openai", nil).Complete(ctx, req)
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("NewStream", func() {
	It("replays a captured body", func() {
		prov, err := provider.New("openai")
		Expect(err).NotTo(HaveOccurred())

		s := completion.NewStream(io.NopCloser(strings.NewReader(openaiStream)), prov)
		Expect(collect(s)).To(HaveLen(3))
		Expect(s.Close()).To(Succeed())
	})

	It("wraps decode errors with the provider name", func() {
		prov, err := provider.New("ollama")
		Expect(err).NotTo(HaveOccurred())

		s := completion.NewStream(io.NopCloser(strings.NewReader("not json\n")), prov)
		_, err = s.Next()
		Expect(err).To(MatchError(ContainSubstring("decoding ollama chunk")))
	})
})
