// Package handlers implements the 22 NFSv3 procedures (RFC 1813 Section 3).
//
// Each procedure lives in its own file as a method on Handler together with
// its request/response codec. Handlers decode nothing themselves: the
// dispatch layer decodes arguments, invokes the handler with a typed
// request, and encodes the typed response. Responses embed
// NFSResponseBase so the dispatcher can observe the nfsstat3 without
// re-parsing the encoded bytes.
package handlers

import (
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// Handler executes NFSv3 procedures against a file system.
//
// The FS handle is shared by every in-flight procedure; the contract
// requires it to be safe under concurrent calls (pkg/vfs).
type Handler struct {
	// FS is the file system backing the export.
	FS vfs.FileSystem
}

// NewHandler creates a Handler serving the given file system.
func NewHandler(fs vfs.FileSystem) *Handler {
	return &Handler{FS: fs}
}

// NFSResponseBase carries the nfsstat3 every response starts with.
type NFSResponseBase struct {
	// Status is the nfsstat3 for this reply (types.NFS3OK on success).
	Status uint32
}

// GetStatus returns the response status.
func (b *NFSResponseBase) GetStatus() uint32 {
	return b.Status
}
