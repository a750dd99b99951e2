package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// ReadlinkRequest represents a READLINK request: the symlink's handle.
type ReadlinkRequest struct {
	Handle []byte
}

// ReadlinkResponse represents the result of READLINK: the link target plus
// the symlink's post-op attributes (both arms).
type ReadlinkResponse struct {
	NFSResponseBase

	Attr   *vfs.FileAttr
	Target string
}

// Readlink handles NFS READLINK (RFC 1813 Section 3.3.5). An object whose
// attributes cannot be fetched is reported with that failure rather than
// the Readlink result, matching the handle-then-attributes order clients
// expect.
func (h *Handler) Readlink(ctx *NFSHandlerContext, req *ReadlinkRequest) (*ReadlinkResponse, error) {
	id, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &ReadlinkResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	attr, err := h.FS.GetAttr(ctx.Context, id)
	if err != nil {
		return &ReadlinkResponse{NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)}}, nil
	}

	target, err := h.FS.Readlink(ctx.Context, id)
	if err != nil {
		return &ReadlinkResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			Attr:            &attr,
		}, nil
	}

	return &ReadlinkResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Attr:            &attr,
		Target:          target,
	}, nil
}

// DecodeReadlinkRequest decodes READLINK3args.
func DecodeReadlinkRequest(data []byte) (*ReadlinkRequest, error) {
	handle, err := types.DecodeFileHandle(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode READLINK args: %w", err)
	}
	return &ReadlinkRequest{Handle: handle}, nil
}

// Encode serializes READLINK3res: status, post_op_attr, then the target
// path on success.
func (resp *ReadlinkResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodePostOpAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode READLINK attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := xdr.WriteString(&buf, resp.Target); err != nil {
		return nil, fmt.Errorf("encode READLINK target: %w", err)
	}
	return buf.Bytes(), nil
}
