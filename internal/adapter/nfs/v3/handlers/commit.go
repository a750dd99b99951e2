package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// CommitRequest represents a COMMIT request: the file handle plus the
// byte range to flush (count 0 means to the end of file).
type CommitRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
}

// CommitResponse represents the result of COMMIT. The verifier matches
// the one WRITE returns so clients can detect a server restart between
// the write and the commit.
type CommitResponse struct {
	NFSResponseBase

	Wcc  types.WccData
	Verf [8]byte
}

// Commit handles NFS COMMIT (RFC 1813 Section 3.3.21). Writes here are
// already FILE_SYNC, so the file system's Commit is typically a no-op
// returning fresh attributes — but the WCC discipline is kept regardless.
func (h *Handler) Commit(ctx *NFSHandlerContext, req *CommitRequest) (*CommitResponse, error) {
	if h.isReadOnly() {
		return &CommitResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrROFS}}, nil
	}

	id, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &CommitResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	// Best-effort pre-op capture; a failed fetch voids the slot.
	var before *types.WccAttr
	if wcc, _, err := h.preOpAttr(ctx.Context, id); err == nil {
		before = wcc
	}

	after, err := h.FS.Commit(ctx.Context, id, req.Offset, req.Count)
	if err != nil {
		logger.DebugCtx(ctx.Context, "COMMIT failed", "fileid", id, "error", err)
		return &CommitResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			Wcc:             types.WccData{Before: before, After: h.postOpAttr(ctx.Context, id)},
		}, nil
	}

	return &CommitResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Wcc:             types.WccData{Before: before, After: &after},
		Verf:            vfs.ServerVerifier(),
	}, nil
}

// DecodeCommitRequest decodes COMMIT3args.
func DecodeCommitRequest(data []byte) (*CommitRequest, error) {
	reader := bytes.NewReader(data)

	handle, err := types.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode COMMIT handle: %w", err)
	}
	offset, err := xdr.DecodeUint64(reader)
	if err != nil {
		return nil, fmt.Errorf("decode COMMIT offset: %w", err)
	}
	count, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode COMMIT count: %w", err)
	}

	return &CommitRequest{Handle: handle, Offset: offset, Count: count}, nil
}

// Encode serializes COMMIT3res: status, wcc_data, then the verifier on
// success.
func (resp *CommitResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodeWccData(&buf, resp.Wcc); err != nil {
		return nil, fmt.Errorf("encode COMMIT wcc: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if _, err := buf.Write(resp.Verf[:]); err != nil {
		return nil, fmt.Errorf("encode COMMIT verifier: %w", err)
	}
	return buf.Bytes(), nil
}
