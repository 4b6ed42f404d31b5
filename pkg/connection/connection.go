package connection

import "context"

// Transport is everything the gateway needs from the remote PocketBase server.
// HTTPConnection is the production implementation; tests substitute their own.
type Transport interface {
	// AuthWithPassword logs in with admin credentials and returns the session token.
	AuthWithPassword(ctx context.Context, identity, password string) (string, error)
	// Health returns nil when the remote answered the reachability probe.
	Health(ctx context.Context) error
	// Do issues one authenticated call. An empty token sends no Authorization header.
	Do(ctx context.Context, token string, req Request) (*Response, error)
}

var _ Transport = (*HTTPConnection)(nil)
