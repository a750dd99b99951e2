package handlers

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// ErrWriteCountMismatch reports WRITE3args whose count field disagrees
// with the length of the data opaque. The dispatcher answers such calls
// with a GARBAGE_ARGS reply; the file system is never invoked.
var ErrWriteCountMismatch = errors.New("write count does not match data length")

// WriteRequest represents a WRITE request.
type WriteRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
	Stable uint32
	Data   []byte
}

// WriteResponse represents the result of WRITE. Every write is committed
// synchronously, so Committed is always FILE_SYNC and the verifier is the
// server's generation number.
type WriteResponse struct {
	NFSResponseBase

	Wcc   types.WccData
	Count uint32
	Verf  [8]byte
}

// Write handles NFS WRITE (RFC 1813 Section 3.3.7).
//
// The WCC discipline: pre-op attributes are fetched before the write,
// post-op attributes come from the write's own result, and both arms of
// the reply carry the pair so clients can detect concurrent mutation.
func (h *Handler) Write(ctx *NFSHandlerContext, req *WriteRequest) (*WriteResponse, error) {
	if h.isReadOnly() {
		return &WriteResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrROFS}}, nil
	}

	id, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &WriteResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	// Best-effort pre-op capture; a failed fetch voids the slot.
	var before *types.WccAttr
	if wcc, _, err := h.preOpAttr(ctx.Context, id); err == nil {
		before = wcc
	}

	after, err := h.FS.Write(ctx.Context, id, req.Offset, req.Data)
	if err != nil {
		logger.DebugCtx(ctx.Context, "WRITE failed", "fileid", id, "offset", req.Offset, "count", req.Count, "error", err)
		return &WriteResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			Wcc:             types.WccData{Before: before, After: h.postOpAttr(ctx.Context, id)},
		}, nil
	}

	return &WriteResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Wcc:             types.WccData{Before: before, After: &after},
		Count:           req.Count,
		Verf:            vfs.ServerVerifier(),
	}, nil
}

// DecodeWriteRequest decodes WRITE3args and validates that the count field
// matches the data opaque's length.
func DecodeWriteRequest(data []byte) (*WriteRequest, error) {
	reader := bytes.NewReader(data)

	handle, err := types.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode WRITE handle: %w", err)
	}
	offset, err := xdr.DecodeUint64(reader)
	if err != nil {
		return nil, fmt.Errorf("decode WRITE offset: %w", err)
	}
	count, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode WRITE count: %w", err)
	}
	stable, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode WRITE stable: %w", err)
	}
	payload, err := xdr.DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("decode WRITE data: %w", err)
	}

	if uint32(len(payload)) != count {
		return nil, fmt.Errorf("count %d, data %d bytes: %w", count, len(payload), ErrWriteCountMismatch)
	}

	return &WriteRequest{
		Handle: handle,
		Offset: offset,
		Count:  count,
		Stable: stable,
		Data:   payload,
	}, nil
}

// Encode serializes WRITE3res: status, wcc_data, then count, committed and
// the write verifier on success.
func (resp *WriteResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodeWccData(&buf, resp.Wcc); err != nil {
		return nil, fmt.Errorf("encode WRITE wcc: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := xdr.WriteUint32(&buf, resp.Count); err != nil {
		return nil, fmt.Errorf("encode WRITE count: %w", err)
	}
	if err := xdr.WriteUint32(&buf, types.FileSyncWrite); err != nil {
		return nil, fmt.Errorf("encode WRITE committed: %w", err)
	}
	if _, err := buf.Write(resp.Verf[:]); err != nil {
		return nil, fmt.Errorf("encode WRITE verifier: %w", err)
	}
	return buf.Bytes(), nil
}
