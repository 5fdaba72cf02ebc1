// Package transport defines the one-shot message push boundary used by the
// broadcast registry, and provides the in-process websocket implementation.
package transport

import (
	"context"
	"errors"
)

// ErrGone reports that the endpoint no longer exists; the caller should stop
// addressing it (the original transport signalled this with HTTP 410).
var ErrGone = errors.New("transport: endpoint gone")

// ErrThrottled reports a transient refusal; the caller may retry after
// backing off (the original transport signalled this with HTTP 429).
var ErrThrottled = errors.New("transport: endpoint throttled")

// Endpoint addresses one deliverable client connection.
type Endpoint struct {
	DomainName   string
	ConnectionID string
}

// Transport pushes one payload to one endpoint. Implementations report
// ErrGone for permanently unreachable endpoints and ErrThrottled for
// transient refusals; any other error is a delivery failure the caller
// treats as best-effort.
type Transport interface {
	Push(ctx context.Context, ep Endpoint, payload []byte) error
}
