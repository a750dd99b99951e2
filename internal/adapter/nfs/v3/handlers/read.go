package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// ReadRequest represents a READ request: handle, offset and byte count.
type ReadRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
}

// ReadResponse represents the result of READ. Count is the number of bytes
// actually read — possibly fewer than requested at end of file — and Eof
// flags whether the read reached it.
type ReadResponse struct {
	NFSResponseBase

	Attr *vfs.FileAttr
	Data []byte
	Eof  bool
}

// Read handles NFS READ (RFC 1813 Section 3.3.6). Reads past the end of
// file are not errors: the file system returns whatever is available with
// eof set.
func (h *Handler) Read(ctx *NFSHandlerContext, req *ReadRequest) (*ReadResponse, error) {
	id, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &ReadResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	attr := h.postOpAttr(ctx.Context, id)

	data, eof, err := h.FS.Read(ctx.Context, id, req.Offset, req.Count)
	if err != nil {
		logger.DebugCtx(ctx.Context, "READ failed", "fileid", id, "offset", req.Offset, "error", err)
		return &ReadResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			Attr:            attr,
		}, nil
	}

	return &ReadResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Attr:            attr,
		Data:            data,
		Eof:             eof,
	}, nil
}

// DecodeReadRequest decodes READ3args.
func DecodeReadRequest(data []byte) (*ReadRequest, error) {
	reader := bytes.NewReader(data)

	handle, err := types.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READ handle: %w", err)
	}
	offset, err := xdr.DecodeUint64(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READ offset: %w", err)
	}
	count, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READ count: %w", err)
	}

	return &ReadRequest{Handle: handle, Offset: offset, Count: count}, nil
}

// Encode serializes READ3res: status, post_op_attr, then count, eof and the
// data opaque on success.
func (resp *ReadResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodePostOpAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode READ attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := xdr.WriteUint32(&buf, uint32(len(resp.Data))); err != nil {
		return nil, fmt.Errorf("encode READ count: %w", err)
	}
	if err := xdr.WriteBool(&buf, resp.Eof); err != nil {
		return nil, fmt.Errorf("encode READ eof: %w", err)
	}
	if err := xdr.WriteOpaque(&buf, resp.Data); err != nil {
		return nil, fmt.Errorf("encode READ data: %w", err)
	}
	return buf.Bytes(), nil
}
