package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// LinkRequest represents a LINK request: the file to link and the
// directory/name to link it under.
type LinkRequest struct {
	Handle    []byte
	DirHandle []byte
	Name      string
}

// LinkResponse represents the result of LINK: the file's post-op
// attributes and the target directory's wcc_data, in both arms.
type LinkResponse struct {
	NFSResponseBase

	Attr   *vfs.FileAttr
	DirWcc types.WccData
}

// Link handles NFS LINK (RFC 1813 Section 3.3.15). Failure replies still
// carry best-effort attributes for both the file and the directory.
func (h *Handler) Link(ctx *NFSHandlerContext, req *LinkRequest) (*LinkResponse, error) {
	if h.isReadOnly() {
		return &LinkResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrROFS}}, nil
	}

	fileID, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &LinkResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}
	dirID, status := resolveHandle(req.DirHandle)
	if status != types.NFS3OK {
		return &LinkResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	// Best-effort pre-op capture; a failed fetch voids the slot.
	var before *types.WccAttr
	if wcc, _, err := h.preOpAttr(ctx.Context, dirID); err == nil {
		before = wcc
	}

	attr, err := h.FS.Link(ctx.Context, fileID, dirID, req.Name)

	wcc := types.WccData{Before: before, After: h.postOpAttr(ctx.Context, dirID)}

	if err != nil {
		logger.DebugCtx(ctx.Context, "LINK failed", "fileid", fileID, "filename", req.Name, "error", err)
		return &LinkResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			Attr:            h.postOpAttr(ctx.Context, fileID),
			DirWcc:          wcc,
		}, nil
	}

	return &LinkResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Attr:            &attr,
		DirWcc:          wcc,
	}, nil
}

// DecodeLinkRequest decodes LINK3args.
func DecodeLinkRequest(data []byte) (*LinkRequest, error) {
	reader := bytes.NewReader(data)

	handle, err := types.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode LINK file handle: %w", err)
	}
	args, err := types.DecodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode LINK target: %w", err)
	}

	return &LinkRequest{Handle: handle, DirHandle: args.Dir, Name: args.Name}, nil
}

// Encode serializes LINK3res: status, the file's post_op_attr, then the
// directory's wcc_data.
func (resp *LinkResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodePostOpAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode LINK attributes: %w", err)
	}
	if err := types.EncodeWccData(&buf, resp.DirWcc); err != nil {
		return nil, fmt.Errorf("encode LINK dir wcc: %w", err)
	}
	return buf.Bytes(), nil
}
