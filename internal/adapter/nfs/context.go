// Package nfs is the RPC dispatch layer: it decodes call envelopes,
// suppresses retransmissions, routes by program/version/procedure to the
// NFSv3, MOUNT and PORTMAP handlers, and frames their results into
// replies.
package nfs

import (
	"sync"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/mount/handlers"
	"github.com/quillfs/quillnfs/internal/adapter/nfs/portmap"
	nfshandlers "github.com/quillfs/quillnfs/internal/adapter/nfs/v3/handlers"
	"github.com/quillfs/quillnfs/internal/metrics"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// ConnContext is the per-connection dispatch state: immutable after
// construction, shared by every request task spawned for the connection.
type ConnContext struct {
	// LocalPort is the server's listening port, advertised by GETPORT.
	LocalPort uint16

	// ClientAddr is the remote address ("host:port") of the connection.
	ClientAddr string

	// FS is the shared file system handle.
	FS vfs.FileSystem

	// ExportName is the dirpath prefix MOUNT expects.
	ExportName string

	// MountSignal, when non-nil, observes mount/unmount events.
	MountSignal chan<- bool

	// Tracker is the server-wide retransmission tracker.
	Tracker *TransactionTracker

	// Metrics is the server-wide instrumentation; nil disables it.
	Metrics *metrics.ServerMetrics

	// handlersOnce guards the lazy handler construction: record tasks of
	// one connection call Handlers concurrently.
	handlersOnce   sync.Once
	v3Handler      *nfshandlers.Handler
	mountHandler   *handlers.Handler
	portmapHandler *portmap.Handler
}

// Handlers lazily builds the per-program handlers for this context.
func (cc *ConnContext) Handlers() (*nfshandlers.Handler, *handlers.Handler, *portmap.Handler) {
	cc.handlersOnce.Do(func() {
		cc.v3Handler = nfshandlers.NewHandler(cc.FS)
		cc.mountHandler = handlers.NewHandler(cc.FS, cc.ExportName, cc.MountSignal)
		cc.portmapHandler = portmap.NewHandler(cc.LocalPort)
	})
	return cc.v3Handler, cc.mountHandler, cc.portmapHandler
}
