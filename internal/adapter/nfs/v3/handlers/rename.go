package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// RenameRequest represents a RENAME request: source and destination
// diropargs3 pairs.
type RenameRequest struct {
	FromDirHandle []byte
	FromName      string
	ToDirHandle   []byte
	ToName        string
}

// RenameResponse represents the result of RENAME: wcc_data for both the
// source and destination directories, in both arms.
type RenameResponse struct {
	NFSResponseBase

	FromDirWcc types.WccData
	ToDirWcc   types.WccData
}

// Rename handles NFS RENAME (RFC 1813 Section 3.3.14). Pre-op attributes
// are captured for both directories before the mutation; when source and
// destination are the same directory the two wcc pairs simply coincide.
func (h *Handler) Rename(ctx *NFSHandlerContext, req *RenameRequest) (*RenameResponse, error) {
	if h.isReadOnly() {
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrROFS}}, nil
	}

	fromID, status := resolveHandle(req.FromDirHandle)
	if status != types.NFS3OK {
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}
	toID, status := resolveHandle(req.ToDirHandle)
	if status != types.NFS3OK {
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	fromBefore, _, err := h.preOpAttr(ctx.Context, fromID)
	if err != nil {
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)}}, nil
	}
	toBefore, _, err := h.preOpAttr(ctx.Context, toID)
	if err != nil {
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)}}, nil
	}

	err = h.FS.Rename(ctx.Context, fromID, req.FromName, toID, req.ToName)

	resp := &RenameResponse{
		FromDirWcc: types.WccData{Before: fromBefore, After: h.postOpAttr(ctx.Context, fromID)},
		ToDirWcc:   types.WccData{Before: toBefore, After: h.postOpAttr(ctx.Context, toID)},
	}

	if err != nil {
		logger.DebugCtx(ctx.Context, "RENAME failed",
			"fileid", fromID, "filename", req.FromName,
			"to_fileid", toID, "to_filename", req.ToName,
			"error", err)
		resp.Status = vfs.Status(err)
		return resp, nil
	}

	resp.Status = types.NFS3OK
	return resp, nil
}

// DecodeRenameRequest decodes RENAME3args.
func DecodeRenameRequest(data []byte) (*RenameRequest, error) {
	reader := bytes.NewReader(data)

	from, err := types.DecodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode RENAME from: %w", err)
	}
	to, err := types.DecodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode RENAME to: %w", err)
	}

	return &RenameRequest{
		FromDirHandle: from.Dir,
		FromName:      from.Name,
		ToDirHandle:   to.Dir,
		ToName:        to.Name,
	}, nil
}

// Encode serializes RENAME3res: status, then fromdir and todir wcc_data.
func (resp *RenameResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodeWccData(&buf, resp.FromDirWcc); err != nil {
		return nil, fmt.Errorf("encode RENAME fromdir wcc: %w", err)
	}
	if err := types.EncodeWccData(&buf, resp.ToDirWcc); err != nil {
		return nil, fmt.Errorf("encode RENAME todir wcc: %w", err)
	}
	return buf.Bytes(), nil
}
