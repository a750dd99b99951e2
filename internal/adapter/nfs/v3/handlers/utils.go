package handlers

import (
	"context"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// resolveHandle converts an opaque handle to a file ID, returning the
// nfsstat3 to report on failure. File ID 0 is reserved and never issued,
// so a handle carrying it is malformed.
func resolveHandle(handle []byte) (uint64, uint32) {
	id, err := vfs.HandleToID(handle)
	if err != nil {
		return 0, vfs.Status(err)
	}
	if id == 0 {
		return 0, types.NFS3ErrBadHandle
	}
	return id, types.NFS3OK
}

// postOpAttr fetches attributes for a post_op_attr slot. Failures
// downgrade the slot to void; post-op attributes are always best-effort.
func (h *Handler) postOpAttr(ctx context.Context, id uint64) *vfs.FileAttr {
	attr, err := h.FS.GetAttr(ctx, id)
	if err != nil {
		return nil
	}
	return &attr
}

// preOpAttr fetches the wcc_attr subset for a pre_op_attr slot, plus the
// full attributes for handlers that also need the current ctime. The error
// is the raw GetAttr failure; callers decide whether it aborts the
// procedure (SETATTR, MKDIR) or merely voids the slot (WRITE, LINK).
func (h *Handler) preOpAttr(ctx context.Context, id uint64) (*types.WccAttr, vfs.FileAttr, error) {
	attr, err := h.FS.GetAttr(ctx, id)
	if err != nil {
		return nil, vfs.FileAttr{}, err
	}
	return types.PreOpFromAttr(attr), attr, nil
}

// isReadOnly reports whether the file system rejects mutations.
func (h *Handler) isReadOnly() bool {
	return h.FS.Capabilities() != vfs.ReadWrite
}

// cookieVerifier packs a directory mtime into the cookieverf3 advertised by
// READDIR/READDIRPLUS: (seconds << 32) | nseconds, big-endian on the wire.
// The verifier a client sends back is never checked — rejecting stale
// cookies with BAD_COOKIE breaks clients listing directories that mutate
// underneath them — but returning a deterministic value lets well-behaved
// clients invalidate their own caches.
func cookieVerifier(attr *vfs.FileAttr) uint64 {
	if attr == nil {
		return 0
	}
	return uint64(attr.Mtime.Seconds)<<32 | uint64(attr.Mtime.Nseconds)
}
