package sources

import (
	"context"
	"net/url"
	"time"
)

type LogSource interface {
	// Fetch returns the next batch of raw lines for the instance. A zero
	// since means "from the beginning". On failure the error is a *FetchError.
	Fetch(ctx context.Context, instanceID string, since time.Time) ([]string, error)

	// Name returns the name of the source (e.g. for logging and metrics).
	Name() string
}

// Transport performs one authenticated GET against the provider API.
// *transport.Client satisfies it.
type Transport interface {
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
}
