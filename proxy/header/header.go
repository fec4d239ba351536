// Package header decides which headers cross the recording proxy.
//
//	client <--> reel proxy <--> upstream completion API
//
// Each of the two legs negotiates its own connection and body encoding, so
// headers describing those stop at the proxy. Everything else, credentials
// included, passes through untouched.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RunIDHeader names the run a recorded response was stored under. Only the
// proxy sets it.
const RunIDHeader = "X-Reel-Run-Id"

// Handler filters headers in both directions. It is stateless.
type Handler struct{}

// NewHandler returns a Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// hopByHop headers are scoped to one connection.
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

var (
	// skipRequest stops at the proxy on the way up. Host and Accept-Encoding
	// are left to http.Transport, which then decompresses the upstream body
	// before the proxy decodes the stream.
	skipRequest = headerSet(hopByHop, "Host", "Accept-Encoding", RunIDHeader)

	// skipResponse stops at the proxy on the way down. The relayed body is
	// already decompressed, and fiber sets the encoding and length it
	// actually sends.
	skipResponse = headerSet(hopByHop, "Content-Encoding", "Content-Length")
)

func headerSet(base []string, extra ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(base)+len(extra))
	for _, h := range append(base, extra...) {
		set[http.CanonicalHeaderKey(h)] = struct{}{}
	}
	return set
}

// SetUpstreamRequestHeaders copies the client's request headers onto req,
// leaving out connection-scoped ones and any header the client's Connection
// header names.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	named := connectionTokens(c.Get(fiber.HeaderConnection))

	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; skip {
			return
		}
		if _, skip := named[k]; skip {
			return
		}
		req.Header.Set(k, string(value))
	})
}

// SetClientResponseHeaders copies the upstream response headers onto the
// client response, joining repeated values with commas.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	named := connectionTokens(resp.Header.Get("Connection"))

	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; skip {
			continue
		}
		if _, skip := named[k]; skip {
			continue
		}
		c.Set(k, strings.Join(v, ", "))
	}
}

// connectionTokens returns the header names listed in a Connection value.
func connectionTokens(v string) map[string]struct{} {
	if v == "" {
		return nil
	}

	tokens := map[string]struct{}{}
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens[http.CanonicalHeaderKey(t)] = struct{}{}
		}
	}
	return tokens
}
