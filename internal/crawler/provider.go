package crawler

import (
	"context"
	"net/http"
)

// FetchProvider supplies the anonymized transport consumed by the Engine.
// The tor package provides the production implementation; tests substitute
// their own.
//
// Design decision: The engine consumes an interface rather than a concrete
// Tor client because:
//  1. Traversal logic is independent of how anonymity is achieved
//  2. Tests can serve canned responses without a running Tor daemon
//  3. Session creation and identity rotation are the only two capabilities
//     the engine actually needs
type FetchProvider interface {
	// NewSession returns an HTTP client routed through the anonymizing
	// proxy. A session is exclusive to one site crawl for its whole run;
	// sessions are never shared across concurrent site tasks, so each can
	// carry its own connection pool and randomized headers.
	NewSession() *http.Client

	// RenewIdentity asks the transport to switch to a new network path.
	// Best effort: the engine logs failures and continues crawling at the
	// unchanged anonymity state.
	RenewIdentity(ctx context.Context) error
}
