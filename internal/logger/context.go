package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context
type LogContext struct {
	XID       uint32    // RPC transaction ID
	Procedure string    // procedure name (READ, WRITE, LOOKUP, ...)
	Export    string    // export name (/export)
	ClientIP  string    // client IP address (without port)
	UID       uint32    // effective user ID from AUTH_UNIX
	GID       uint32    // effective group ID from AUTH_UNIX
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithProcedure returns a copy with the xid and procedure set
func (lc *LogContext) WithProcedure(xid uint32, procedure string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.XID = xid
		clone.Procedure = procedure
	}
	return clone
}

// WithAuth returns a copy with authentication info set
func (lc *LogContext) WithAuth(uid, gid uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.UID = uid
		clone.GID = gid
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
