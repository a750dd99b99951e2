package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so aggregated logs
// can be queried by field.
const (
	// RPC envelope
	KeyXID       = "xid"       // RPC transaction ID (hex)
	KeyProgram   = "program"   // RPC program number
	KeyProcedure = "procedure" // Procedure name: READ, WRITE, MNT, GETPORT, ...
	KeyStatus    = "status"    // nfsstat3 / mountstat3 value

	// File system
	KeyHandle   = "handle"   // opaque file handle (hex)
	KeyFileID   = "fileid"   // 64-bit file identifier
	KeyExport   = "export"   // export name (/export)
	KeyPath     = "path"     // path within the export
	KeyFilename = "filename" // entry name within a directory

	// I/O
	KeyOffset       = "offset"
	KeyCount        = "count"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeyEOF          = "eof"
	KeyEntries      = "entries"

	// Client identity
	KeyClientIP = "client_ip"
	KeyUID      = "uid"
	KeyGID      = "gid"
	KeyAuth     = "auth"

	// Connection
	KeyConnectionID = "conn_id"
	KeyDurationMs   = "duration_ms"
	KeyError        = "error"
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// XID returns a slog.Attr for an RPC transaction ID, formatted as hex.
func XID(xid uint32) slog.Attr {
	return slog.String(KeyXID, fmt.Sprintf("0x%x", xid))
}

// Procedure returns a slog.Attr for a procedure name.
func Procedure(name string) slog.Attr {
	return slog.String(KeyProcedure, name)
}

// Handle returns a slog.Attr for a file handle (formatted as hex).
func Handle(h []byte) slog.Attr {
	return slog.String(KeyHandle, fmt.Sprintf("%x", h))
}

// FileID returns a slog.Attr for a 64-bit file identifier.
func FileID(id uint64) slog.Attr {
	return slog.Uint64(KeyFileID, id)
}

// Export returns a slog.Attr for the export name.
func Export(name string) slog.Attr {
	return slog.String(KeyExport, name)
}

// Status returns a slog.Attr for a protocol status value.
func Status(code uint32) slog.Attr {
	return slog.Any(KeyStatus, code)
}

// ClientIP returns a slog.Attr for a client IP address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ConnectionID returns a slog.Attr for a connection identifier.
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
