package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// SymlinkRequest represents a SYMLINK request: where to create the link,
// its initial attributes and its target path.
type SymlinkRequest struct {
	DirHandle []byte
	Name      string
	Attr      vfs.SetAttr
	Target    string
}

// Symlink handles NFS SYMLINK (RFC 1813 Section 3.3.10). The reply shape
// is CREATE's, so it reuses CreateResponse.
func (h *Handler) Symlink(ctx *NFSHandlerContext, req *SymlinkRequest) (*CreateResponse, error) {
	if h.isReadOnly() {
		return &CreateResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrROFS}}, nil
	}

	dirID, status := resolveHandle(req.DirHandle)
	if status != types.NFS3OK {
		return &CreateResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	before, _, err := h.preOpAttr(ctx.Context, dirID)
	if err != nil {
		return &CreateResponse{NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)}}, nil
	}

	newID, newAttr, err := h.FS.Symlink(ctx.Context, dirID, req.Name, req.Target, req.Attr)

	wcc := types.WccData{Before: before, After: h.postOpAttr(ctx.Context, dirID)}

	if err != nil {
		logger.DebugCtx(ctx.Context, "SYMLINK failed", "fileid", dirID, "filename", req.Name, "error", err)
		return &CreateResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			DirWcc:          wcc,
		}, nil
	}

	return &CreateResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Handle:          vfs.IDToHandle(newID),
		Attr:            &newAttr,
		DirWcc:          wcc,
	}, nil
}

// DecodeSymlinkRequest decodes SYMLINK3args: diropargs3 followed by
// symlinkdata3 (sattr3 + nfspath3).
func DecodeSymlinkRequest(data []byte) (*SymlinkRequest, error) {
	reader := bytes.NewReader(data)

	args, err := types.DecodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode SYMLINK where: %w", err)
	}
	attr, err := types.DecodeSetAttr(reader)
	if err != nil {
		return nil, fmt.Errorf("decode SYMLINK attributes: %w", err)
	}
	target, err := types.DecodePath(reader)
	if err != nil {
		return nil, fmt.Errorf("decode SYMLINK target: %w", err)
	}

	return &SymlinkRequest{DirHandle: args.Dir, Name: args.Name, Attr: attr, Target: target}, nil
}
