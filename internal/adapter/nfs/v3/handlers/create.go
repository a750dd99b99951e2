package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// CreateRequest represents a CREATE request: where to create, which
// createmode3, and the mode-specific payload.
type CreateRequest struct {
	DirHandle []byte
	Name      string

	// Mode is one of CreateUnchecked, CreateGuarded, CreateExclusive.
	Mode uint32

	// Attr holds the initial attributes for UNCHECKED and GUARDED creates.
	Attr vfs.SetAttr

	// Verf is the client's 8-byte create verifier for EXCLUSIVE creates.
	// This server does not persist it; exclusivity is enforced by name.
	Verf [8]byte
}

// CreateResponse represents the result of CREATE (shared with MKDIR,
// SYMLINK and MKNOD at the wire level): the new object's optional handle
// and attributes plus the parent directory's wcc_data.
type CreateResponse struct {
	NFSResponseBase

	Handle []byte
	Attr   *vfs.FileAttr
	DirWcc types.WccData
}

// Create handles NFS CREATE (RFC 1813 Section 3.3.8).
//
// GUARDED creates probe for the name first and fail with NFS3ERR_EXIST
// when present; UNCHECKED creates truncate an existing file; EXCLUSIVE
// creates delegate to the file system's CreateExclusive.
func (h *Handler) Create(ctx *NFSHandlerContext, req *CreateRequest) (*CreateResponse, error) {
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

	fail := func(err error) *CreateResponse {
		return &CreateResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			DirWcc:          types.WccData{Before: before, After: h.postOpAttr(ctx.Context, dirID)},
		}
	}

	var newID uint64
	var newAttr *vfs.FileAttr

	switch req.Mode {
	case types.CreateExclusive:
		id, err := h.FS.CreateExclusive(ctx.Context, dirID, req.Name)
		if err != nil {
			logger.DebugCtx(ctx.Context, "CREATE exclusive failed", "fileid", dirID, "filename", req.Name, "error", err)
			return fail(err), nil
		}
		newID = id
		newAttr = h.postOpAttr(ctx.Context, id)

	case types.CreateGuarded:
		if _, err := h.FS.Lookup(ctx.Context, dirID, req.Name); err == nil {
			return fail(vfs.ErrExist), nil
		}
		fallthrough

	case types.CreateUnchecked:
		id, attr, err := h.FS.Create(ctx.Context, dirID, req.Name, req.Attr)
		if err != nil {
			logger.DebugCtx(ctx.Context, "CREATE failed", "fileid", dirID, "filename", req.Name, "error", err)
			return fail(err), nil
		}
		newID = id
		newAttr = &attr

	default:
		return fail(vfs.ErrInval), nil
	}

	return &CreateResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Handle:          vfs.IDToHandle(newID),
		Attr:            newAttr,
		DirWcc:          types.WccData{Before: before, After: h.postOpAttr(ctx.Context, dirID)},
	}, nil
}

// DecodeCreateRequest decodes CREATE3args.
func DecodeCreateRequest(data []byte) (*CreateRequest, error) {
	reader := bytes.NewReader(data)

	args, err := types.DecodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode CREATE where: %w", err)
	}

	mode, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode CREATE mode: %w", err)
	}

	req := &CreateRequest{DirHandle: args.Dir, Name: args.Name, Mode: mode}

	switch mode {
	case types.CreateUnchecked, types.CreateGuarded:
		if req.Attr, err = types.DecodeSetAttr(reader); err != nil {
			return nil, fmt.Errorf("decode CREATE attributes: %w", err)
		}
	case types.CreateExclusive:
		verf, err := xdr.DecodeOpaqueFixed(reader, 8)
		if err != nil {
			return nil, fmt.Errorf("decode CREATE verifier: %w", err)
		}
		copy(req.Verf[:], verf)
	default:
		return nil, fmt.Errorf("CREATE mode %d: %w", mode, xdr.ErrInvalidDiscriminant)
	}

	return req, nil
}

// Encode serializes CREATE3res: status; on success post_op_fh3 and
// post_op_attr of the new object; wcc_data of the parent in both arms.
func (resp *CreateResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}

	if resp.Status == types.NFS3OK {
		if err := types.EncodePostOpHandle(&buf, resp.Handle); err != nil {
			return nil, fmt.Errorf("encode CREATE handle: %w", err)
		}
		if err := types.EncodePostOpAttr(&buf, resp.Attr); err != nil {
			return nil, fmt.Errorf("encode CREATE attributes: %w", err)
		}
	}

	if err := types.EncodeWccData(&buf, resp.DirWcc); err != nil {
		return nil, fmt.Errorf("encode CREATE dir wcc: %w", err)
	}
	return buf.Bytes(), nil
}
