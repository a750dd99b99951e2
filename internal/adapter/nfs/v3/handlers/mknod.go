package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// MknodRequest represents a MKNOD request: where to create the node, its
// type, and for devices the major/minor pair.
type MknodRequest struct {
	DirHandle []byte
	Name      string
	Type      vfs.FileType
	Spec      vfs.SpecData
	Attr      vfs.SetAttr
}

// Mknod handles NFS MKNOD (RFC 1813 Section 3.3.11). The reply shape is
// CREATE's, so it reuses CreateResponse.
func (h *Handler) Mknod(ctx *NFSHandlerContext, req *MknodRequest) (*CreateResponse, error) {
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

	newID, newAttr, err := h.FS.Mknod(ctx.Context, dirID, req.Name, req.Type, req.Spec, req.Attr)

	wcc := types.WccData{Before: before, After: h.postOpAttr(ctx.Context, dirID)}

	if err != nil {
		logger.DebugCtx(ctx.Context, "MKNOD failed", "fileid", dirID, "filename", req.Name, "error", err)
		return &CreateResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			DirWcc:          wcc,
		}, nil
	}

	return &CreateResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Handle:          vfs.IDToHandle(newID),
		Attr:            &newAttr,
		DirWcc:          wcc,
	}, nil
}

// DecodeMknodRequest decodes MKNOD3args: diropargs3 followed by mknoddata3,
// whose arms depend on the node type.
func DecodeMknodRequest(data []byte) (*MknodRequest, error) {
	reader := bytes.NewReader(data)

	args, err := types.DecodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode MKNOD where: %w", err)
	}

	ftype, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode MKNOD type: %w", err)
	}

	req := &MknodRequest{DirHandle: args.Dir, Name: args.Name, Type: vfs.FileType(ftype)}

	switch req.Type {
	case vfs.TypeChr, vfs.TypeBlk:
		// devicedata3: sattr3 + specdata3
		if req.Attr, err = types.DecodeSetAttr(reader); err != nil {
			return nil, fmt.Errorf("decode MKNOD device attributes: %w", err)
		}
		if req.Spec.Major, err = xdr.DecodeUint32(reader); err != nil {
			return nil, fmt.Errorf("decode MKNOD major: %w", err)
		}
		if req.Spec.Minor, err = xdr.DecodeUint32(reader); err != nil {
			return nil, fmt.Errorf("decode MKNOD minor: %w", err)
		}
	case vfs.TypeSock, vfs.TypeFifo:
		if req.Attr, err = types.DecodeSetAttr(reader); err != nil {
			return nil, fmt.Errorf("decode MKNOD attributes: %w", err)
		}
	default:
		return nil, fmt.Errorf("MKNOD type %d: %w", ftype, xdr.ErrInvalidDiscriminant)
	}

	return req, nil
}
