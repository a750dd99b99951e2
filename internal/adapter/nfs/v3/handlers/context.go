package handlers

import (
	"context"
	"net"
)

// NFSHandlerContext carries per-request state into a procedure handler:
// the Go context for cancellation, the caller's address, and whatever
// AUTH_UNIX identity the dispatcher managed to extract.
//
// Credential extraction is best-effort; UID and GID are nil when the call
// carried AUTH_NULL or an unparseable credential. Handlers must tolerate
// that — permission decisions in this server are type-based, not
// identity-based.
type NFSHandlerContext struct {
	// Context is the Go context for cancellation and timeout control.
	Context context.Context

	// ClientAddr is the remote address ("host:port") of the connection.
	ClientAddr string

	// Export is the export name being served (for logging).
	Export string

	// AuthFlavor is the RPC credential flavor of this call.
	AuthFlavor uint32

	// UID is the caller's effective user ID, when AUTH_UNIX was parsed.
	UID *uint32

	// GID is the caller's effective group ID, when AUTH_UNIX was parsed.
	GID *uint32

	// GIDs are the caller's supplementary groups, when AUTH_UNIX was parsed.
	GIDs []uint32
}

// isContextCancelled reports whether the request's context is done.
func (c *NFSHandlerContext) isContextCancelled() bool {
	if c.Context == nil {
		return false
	}
	select {
	case <-c.Context.Done():
		return true
	default:
		return false
	}
}

// extractClientIP strips the port from a "host:port" address for logging.
func extractClientIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
