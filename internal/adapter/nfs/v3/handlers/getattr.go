package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// GetAttrRequest represents a GETATTR request: just the file handle.
type GetAttrRequest struct {
	Handle []byte
}

// GetAttrResponse represents the result of GETATTR. On success Attr holds
// the object's attributes; the failure arm is void (RFC 1813 Section 3.3.1).
type GetAttrResponse struct {
	NFSResponseBase

	Attr *vfs.FileAttr
}

// GetAttr handles NFS GETATTR (RFC 1813 Section 3.3.1). The hottest
// procedure on most mounts; it resolves the handle and fetches attributes,
// nothing more.
func (h *Handler) GetAttr(ctx *NFSHandlerContext, req *GetAttrRequest) (*GetAttrResponse, error) {
	id, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &GetAttrResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	attr, err := h.FS.GetAttr(ctx.Context, id)
	if err != nil {
		logger.DebugCtx(ctx.Context, "GETATTR failed", "fileid", id, "error", err)
		return &GetAttrResponse{NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)}}, nil
	}

	return &GetAttrResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Attr:            &attr,
	}, nil
}

// DecodeGetAttrRequest decodes GETATTR3args.
func DecodeGetAttrRequest(data []byte) (*GetAttrRequest, error) {
	reader := bytes.NewReader(data)
	handle, err := types.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode GETATTR args: %w", err)
	}
	return &GetAttrRequest{Handle: handle}, nil
}

// Encode serializes GETATTR3res: status, then fattr3 on success only.
func (resp *GetAttrResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := types.EncodeFileAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode GETATTR attributes: %w", err)
	}
	return buf.Bytes(), nil
}

// writeStatus writes the leading nfsstat3 of a result.
func writeStatus(buf *bytes.Buffer, status uint32) error {
	return xdr.WriteUint32(buf, status)
}
