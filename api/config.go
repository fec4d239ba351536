// Package api provides the HTTP server that runs the agent on request and
// serves recorded runs.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}
