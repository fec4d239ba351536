package proxy

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// UpstreamURL is the upstream completion API (e.g., "http://localhost:11434")
	UpstreamURL string

	// ProviderType selects the decoder for upstream streams (e.g., "anthropic",
	// "openai", "ollama").
	ProviderType string

	// ProviderUpstreams overrides the upstream of requests routed through
	// /providers/<name>/... to another provider.
	ProviderUpstreams map[string]string
}
