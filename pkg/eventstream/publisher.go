package eventstream

import "context"

// Publisher publishes recorded events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, env *Envelope) error
	Close() error
}
