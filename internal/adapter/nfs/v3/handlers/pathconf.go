package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// PathConfRequest represents a PATHCONF request: the object handle.
type PathConfRequest struct {
	Handle []byte
}

// PathConfResponse represents the result of PATHCONF: POSIX pathconf
// figures for the object. The advertised values are homogeneous across
// the export (FSINFO sets FSF_HOMOGENEOUS).
type PathConfResponse struct {
	NFSResponseBase

	Attr            *vfs.FileAttr
	LinkMax         uint32
	NameMax         uint32
	NoTrunc         bool
	ChownRestricted bool
	CaseInsensitive bool
	CasePreserving  bool
}

// PathConf handles NFS PATHCONF (RFC 1813 Section 3.3.20).
func (h *Handler) PathConf(ctx *NFSHandlerContext, req *PathConfRequest) (*PathConfResponse, error) {
	id, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &PathConfResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	return &PathConfResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Attr:            h.postOpAttr(ctx.Context, id),
		LinkMax:         types.MaxNameLength,
		NameMax:         types.MaxNameLength,
		NoTrunc:         true,
		ChownRestricted: true,
		CaseInsensitive: false,
		CasePreserving:  true,
	}, nil
}

// DecodePathConfRequest decodes PATHCONF3args.
func DecodePathConfRequest(data []byte) (*PathConfRequest, error) {
	handle, err := types.DecodeFileHandle(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode PATHCONF args: %w", err)
	}
	return &PathConfRequest{Handle: handle}, nil
}

// Encode serializes PATHCONF3res.
func (resp *PathConfResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodePostOpAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode PATHCONF attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := xdr.WriteUint32(&buf, resp.LinkMax); err != nil {
		return nil, fmt.Errorf("encode PATHCONF linkmax: %w", err)
	}
	if err := xdr.WriteUint32(&buf, resp.NameMax); err != nil {
		return nil, fmt.Errorf("encode PATHCONF name_max: %w", err)
	}
	for _, v := range []bool{resp.NoTrunc, resp.ChownRestricted, resp.CaseInsensitive, resp.CasePreserving} {
		if err := xdr.WriteBool(&buf, v); err != nil {
			return nil, fmt.Errorf("encode PATHCONF flag: %w", err)
		}
	}
	return buf.Bytes(), nil
}
