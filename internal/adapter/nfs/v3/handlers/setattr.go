package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// SetAttrRequest represents a SETATTR request: the object handle, the new
// attributes, and an optional guard ctime.
type SetAttrRequest struct {
	Handle []byte
	Attr   vfs.SetAttr

	// Guard, when non-nil, is the ctime the object must still carry.
	// A mismatch fails the call with NFS3ERR_NOT_SYNC and no mutation.
	Guard *vfs.Time
}

// SetAttrResponse represents the result of SETATTR: wcc_data in both arms.
type SetAttrResponse struct {
	NFSResponseBase

	Wcc types.WccData
}

// SetAttr handles NFS SETATTR (RFC 1813 Section 3.3.2).
//
// Pre-op attributes are captured before anything mutates; the guard is
// compared against the ctime from that same fetch so the check and the
// recorded "before" state agree.
func (h *Handler) SetAttr(ctx *NFSHandlerContext, req *SetAttrRequest) (*SetAttrResponse, error) {
	if h.isReadOnly() {
		return &SetAttrResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrROFS}}, nil
	}

	id, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &SetAttrResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	before, current, err := h.preOpAttr(ctx.Context, id)
	if err != nil {
		return &SetAttrResponse{NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)}}, nil
	}

	if req.Guard != nil && *req.Guard != current.Ctime {
		logger.DebugCtx(ctx.Context, "SETATTR guard mismatch",
			"fileid", id,
			"guard", fmt.Sprintf("%d.%09d", req.Guard.Seconds, req.Guard.Nseconds),
			"ctime", fmt.Sprintf("%d.%09d", current.Ctime.Seconds, current.Ctime.Nseconds))
		return &SetAttrResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrNotSync}}, nil
	}

	after, err := h.FS.SetAttr(ctx.Context, id, req.Attr)
	if err != nil {
		logger.DebugCtx(ctx.Context, "SETATTR failed", "fileid", id, "error", err)
		return &SetAttrResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			Wcc:             types.WccData{Before: before, After: h.postOpAttr(ctx.Context, id)},
		}, nil
	}

	return &SetAttrResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Wcc:             types.WccData{Before: before, After: &after},
	}, nil
}

// DecodeSetAttrRequest decodes SETATTR3args.
func DecodeSetAttrRequest(data []byte) (*SetAttrRequest, error) {
	reader := bytes.NewReader(data)

	handle, err := types.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode SETATTR handle: %w", err)
	}
	attr, err := types.DecodeSetAttr(reader)
	if err != nil {
		return nil, fmt.Errorf("decode SETATTR new attributes: %w", err)
	}
	guard, err := types.DecodeSetAttrGuard(reader)
	if err != nil {
		return nil, fmt.Errorf("decode SETATTR guard: %w", err)
	}

	return &SetAttrRequest{Handle: handle, Attr: attr, Guard: guard}, nil
}

// Encode serializes SETATTR3res: status then wcc_data in both arms.
func (resp *SetAttrResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodeWccData(&buf, resp.Wcc); err != nil {
		return nil, fmt.Errorf("encode SETATTR wcc: %w", err)
	}
	return buf.Bytes(), nil
}
