package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// RemoveRequest represents a REMOVE or RMDIR request: a diropargs3.
type RemoveRequest struct {
	DirHandle []byte
	Name      string
}

// RemoveResponse represents the result of REMOVE/RMDIR: the parent
// directory's wcc_data in both arms.
type RemoveResponse struct {
	NFSResponseBase

	DirWcc types.WccData
}

// Remove handles both NFS REMOVE and RMDIR (RFC 1813 Sections 3.3.12 and
// 3.3.13). The two procedures share argument and result layouts, and the
// file system's Remove is responsible for refusing to unlink a non-empty
// directory, so a single handler serves both.
func (h *Handler) Remove(ctx *NFSHandlerContext, req *RemoveRequest) (*RemoveResponse, error) {
	if h.isReadOnly() {
		return &RemoveResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrROFS}}, nil
	}

	dirID, status := resolveHandle(req.DirHandle)
	if status != types.NFS3OK {
		return &RemoveResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	before, _, err := h.preOpAttr(ctx.Context, dirID)
	if err != nil {
		return &RemoveResponse{NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)}}, nil
	}

	err = h.FS.Remove(ctx.Context, dirID, req.Name)

	wcc := types.WccData{Before: before, After: h.postOpAttr(ctx.Context, dirID)}

	if err != nil {
		logger.DebugCtx(ctx.Context, "REMOVE failed", "fileid", dirID, "filename", req.Name, "error", err)
		return &RemoveResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			DirWcc:          wcc,
		}, nil
	}

	return &RemoveResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		DirWcc:          wcc,
	}, nil
}

// DecodeRemoveRequest decodes REMOVE3args / RMDIR3args.
func DecodeRemoveRequest(data []byte) (*RemoveRequest, error) {
	args, err := types.DecodeDirOpArgs(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode REMOVE args: %w", err)
	}
	return &RemoveRequest{DirHandle: args.Dir, Name: args.Name}, nil
}

// Encode serializes REMOVE3res / RMDIR3res: status then the parent's
// wcc_data.
func (resp *RemoveResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodeWccData(&buf, resp.DirWcc); err != nil {
		return nil, fmt.Errorf("encode REMOVE wcc: %w", err)
	}
	return buf.Bytes(), nil
}
