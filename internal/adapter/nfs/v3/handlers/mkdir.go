package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// MkdirRequest represents a MKDIR request.
type MkdirRequest struct {
	DirHandle []byte
	Name      string
	Attr      vfs.SetAttr
}

// Mkdir handles NFS MKDIR (RFC 1813 Section 3.3.9). The reply shape is
// CREATE's, so it reuses CreateResponse.
func (h *Handler) Mkdir(ctx *NFSHandlerContext, req *MkdirRequest) (*CreateResponse, error) {
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

	newID, newAttr, err := h.FS.Mkdir(ctx.Context, dirID, req.Name)

	wcc := types.WccData{Before: before, After: h.postOpAttr(ctx.Context, dirID)}

	if err != nil {
		logger.DebugCtx(ctx.Context, "MKDIR failed", "fileid", dirID, "filename", req.Name, "error", err)
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

// DecodeMkdirRequest decodes MKDIR3args.
func DecodeMkdirRequest(data []byte) (*MkdirRequest, error) {
	reader := bytes.NewReader(data)

	args, err := types.DecodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode MKDIR where: %w", err)
	}
	attr, err := types.DecodeSetAttr(reader)
	if err != nil {
		return nil, fmt.Errorf("decode MKDIR attributes: %w", err)
	}

	return &MkdirRequest{DirHandle: args.Dir, Name: args.Name, Attr: attr}, nil
}
