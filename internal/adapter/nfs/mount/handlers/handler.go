// Package handlers implements the MOUNT v3 procedures (RFC 1813
// Appendix I): NULL, MNT, UMNT, UMNTALL and EXPORT. DUMP is refused with
// PROC_UNAVAIL by the dispatcher — no client registry is maintained, so
// there is nothing to dump.
package handlers

import (
	"context"

	"github.com/quillfs/quillnfs/pkg/vfs"
)

// mountstat3 values (RFC 1813 Appendix I).
const (
	MountOK             uint32 = 0
	MountErrPerm        uint32 = 1
	MountErrNoEnt       uint32 = 2
	MountErrIO          uint32 = 5
	MountErrAcces       uint32 = 13
	MountErrNotDir      uint32 = 20
	MountErrInval       uint32 = 22
	MountErrNameTooLong uint32 = 63
	MountErrNotSupp     uint32 = 10004
	MountErrServerFault uint32 = 10006
)

// MOUNT v3 procedure numbers.
const (
	MountProcNull    uint32 = 0
	MountProcMnt     uint32 = 1
	MountProcDump    uint32 = 2
	MountProcUmnt    uint32 = 3
	MountProcUmntAll uint32 = 4
	MountProcExport  uint32 = 5
)

// MaxDirPathLength is MNTPATHLEN from RFC 1813 Appendix I.
const MaxDirPathLength = 1024

// Handler executes MOUNT procedures against a single export.
type Handler struct {
	// FS is the file system backing the export.
	FS vfs.FileSystem

	// ExportName is the dirpath prefix clients must mount (e.g. "/export").
	ExportName string

	// MountSignal, when non-nil, receives true on every successful MNT
	// and false on UMNT/UMNTALL. It exists so an embedding supervisor can
	// observe mount activity; sends never block.
	MountSignal chan<- bool
}

// NewHandler creates a MOUNT handler for one export.
func NewHandler(fs vfs.FileSystem, exportName string, mountSignal chan<- bool) *Handler {
	return &Handler{FS: fs, ExportName: exportName, MountSignal: mountSignal}
}

// signalMount notifies the supervisor channel without ever blocking the
// procedure on a slow consumer.
func (h *Handler) signalMount(mounted bool) {
	if h.MountSignal == nil {
		return
	}
	select {
	case h.MountSignal <- mounted:
	default:
	}
}

// MountHandlerContext carries per-request state into MOUNT procedures.
type MountHandlerContext struct {
	Context    context.Context
	ClientAddr string
	AuthFlavor uint32
}

// MountResponseBase carries the mountstat3 every non-void response
// starts with.
type MountResponseBase struct {
	Status uint32
}

// GetStatus returns the response status.
func (b *MountResponseBase) GetStatus() uint32 {
	return b.Status
}
