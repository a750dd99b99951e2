package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// LookupRequest represents a LOOKUP request: a directory handle and a name.
type LookupRequest struct {
	DirHandle []byte
	Name      string
}

// LookupResponse represents the result of LOOKUP. On success it carries the
// child's handle and post-op attributes; both arms carry the directory's
// post-op attributes so the client can revalidate its dirent cache even on
// NFS3ERR_NOENT.
type LookupResponse struct {
	NFSResponseBase

	Handle  []byte
	Attr    *vfs.FileAttr
	DirAttr *vfs.FileAttr
}

// Lookup handles NFS LOOKUP (RFC 1813 Section 3.3.3). Called once per path
// component on every first access, so it stays on the fast path: one
// Lookup plus two GetAttrs.
func (h *Handler) Lookup(ctx *NFSHandlerContext, req *LookupRequest) (*LookupResponse, error) {
	dirID, status := resolveHandle(req.DirHandle)
	if status != types.NFS3OK {
		return &LookupResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	dirAttr := h.postOpAttr(ctx.Context, dirID)

	childID, err := h.FS.Lookup(ctx.Context, dirID, req.Name)
	if err != nil {
		logger.DebugCtx(ctx.Context, "LOOKUP miss", "fileid", dirID, "filename", req.Name, "error", err)
		return &LookupResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			DirAttr:         dirAttr,
		}, nil
	}

	return &LookupResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Handle:          vfs.IDToHandle(childID),
		Attr:            h.postOpAttr(ctx.Context, childID),
		DirAttr:         dirAttr,
	}, nil
}

// DecodeLookupRequest decodes LOOKUP3args (a diropargs3).
func DecodeLookupRequest(data []byte) (*LookupRequest, error) {
	args, err := types.DecodeDirOpArgs(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode LOOKUP args: %w", err)
	}
	return &LookupRequest{DirHandle: args.Dir, Name: args.Name}, nil
}

// Encode serializes LOOKUP3res.
//
// Success: handle, obj post_op_attr, dir post_op_attr.
// Failure: dir post_op_attr only.
func (resp *LookupResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}

	if resp.Status != types.NFS3OK {
		if err := types.EncodePostOpAttr(&buf, resp.DirAttr); err != nil {
			return nil, fmt.Errorf("encode LOOKUP dir attributes: %w", err)
		}
		return buf.Bytes(), nil
	}

	if err := types.EncodeFileHandle(&buf, resp.Handle); err != nil {
		return nil, fmt.Errorf("encode LOOKUP handle: %w", err)
	}
	if err := types.EncodePostOpAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode LOOKUP object attributes: %w", err)
	}
	if err := types.EncodePostOpAttr(&buf, resp.DirAttr); err != nil {
		return nil, fmt.Errorf("encode LOOKUP dir attributes: %w", err)
	}
	return buf.Bytes(), nil
}
