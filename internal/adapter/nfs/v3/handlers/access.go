package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// AccessRequest represents an ACCESS request: the object handle plus the
// bitmap of permissions the client wants checked.
type AccessRequest struct {
	Handle []byte
	Access uint32
}

// AccessResponse represents the result of ACCESS: the granted subset of
// the requested bits plus post-op attributes.
type AccessResponse struct {
	NFSResponseBase

	Attr   *vfs.FileAttr
	Access uint32
}

// Access handles NFS ACCESS (RFC 1813 Section 3.3.4).
//
// Permission checks here are type-based only: the uid/gid from AUTH_UNIX
// is deliberately not consulted, since the file system behind the export
// owns its own access model. LOOKUP is always granted for objects that
// exist. The granted set per type and capability:
//
//	REG   read-only: requested ∩ (READ|EXECUTE)   read-write: requested
//	DIR   read-only: requested ∩ READ             read-write: requested ∩ (READ|EXECUTE|MODIFY|EXTEND|DELETE)
//	LNK   requested ∩ READ
//	other requested ∩ (READ|EXECUTE)
func (h *Handler) Access(ctx *NFSHandlerContext, req *AccessRequest) (*AccessResponse, error) {
	id, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &AccessResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	attr, err := h.FS.GetAttr(ctx.Context, id)
	if err != nil {
		return &AccessResponse{NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)}}, nil
	}

	granted := grantedAccess(req.Access, attr.Type, h.isReadOnly())

	logger.DebugCtx(ctx.Context, "ACCESS",
		"fileid", id,
		"requested", fmt.Sprintf("0x%x", req.Access),
		"granted", fmt.Sprintf("0x%x", granted))

	return &AccessResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Attr:            &attr,
		Access:          granted,
	}, nil
}

// grantedAccess computes the granted bitmap from the requested bits, the
// object type and the file system capability.
func grantedAccess(requested uint32, ftype vfs.FileType, readOnly bool) uint32 {
	// LOOKUP is always granted for existing objects.
	granted := types.AccessLookup

	switch ftype {
	case vfs.TypeReg:
		if readOnly {
			granted |= requested & (types.AccessRead | types.AccessExecute)
		} else {
			granted |= requested
		}

	case vfs.TypeDir:
		if readOnly {
			granted |= requested & types.AccessRead
		} else {
			granted |= requested & (types.AccessRead | types.AccessExecute)
			granted |= requested & (types.AccessModify | types.AccessExtend | types.AccessDelete)
		}

	case vfs.TypeLnk:
		granted |= requested & types.AccessRead

	default:
		// devices, sockets, FIFOs
		granted |= requested & (types.AccessRead | types.AccessExecute)
	}

	return granted
}

// DecodeAccessRequest decodes ACCESS3args.
func DecodeAccessRequest(data []byte) (*AccessRequest, error) {
	reader := bytes.NewReader(data)

	handle, err := types.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode ACCESS handle: %w", err)
	}
	access, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode ACCESS bitmap: %w", err)
	}

	return &AccessRequest{Handle: handle, Access: access}, nil
}

// Encode serializes ACCESS3res: status, post_op_attr, then the granted
// bitmap on success.
func (resp *AccessResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodePostOpAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode ACCESS attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := xdr.WriteUint32(&buf, resp.Access); err != nil {
		return nil, fmt.Errorf("encode ACCESS granted bitmap: %w", err)
	}
	return buf.Bytes(), nil
}
