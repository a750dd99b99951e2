package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// FSInfoRequest represents an FSINFO request: the root handle.
type FSInfoRequest struct {
	Handle []byte
}

// FSInfoResponse represents the result of FSINFO: the static transfer-size
// and capability constants clients configure themselves with at mount time.
type FSInfoResponse struct {
	NFSResponseBase

	Attr *vfs.FileAttr
	Info vfs.FSInfo
}

// FSInfo handles NFS FSINFO (RFC 1813 Section 3.3.19). The figures come
// from the file system when it implements vfs.FSInfoProvider and from
// vfs.DefaultFSInfo otherwise.
func (h *Handler) FSInfo(ctx *NFSHandlerContext, req *FSInfoRequest) (*FSInfoResponse, error) {
	id, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &FSInfoResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	info, err := vfs.GetFSInfo(ctx.Context, h.FS, id)
	if err != nil {
		return &FSInfoResponse{NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)}}, nil
	}

	return &FSInfoResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Attr:            h.postOpAttr(ctx.Context, id),
		Info:            info,
	}, nil
}

// DecodeFSInfoRequest decodes FSINFO3args.
func DecodeFSInfoRequest(data []byte) (*FSInfoRequest, error) {
	handle, err := types.DecodeFileHandle(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode FSINFO args: %w", err)
	}
	return &FSInfoRequest{Handle: handle}, nil
}

// Encode serializes FSINFO3res.
func (resp *FSInfoResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodePostOpAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode FSINFO attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	for _, v := range []uint32{
		resp.Info.RTMax, resp.Info.RTPref, resp.Info.RTMult,
		resp.Info.WTMax, resp.Info.WTPref, resp.Info.WTMult,
		resp.Info.DTPref,
	} {
		if err := xdr.WriteUint32(&buf, v); err != nil {
			return nil, fmt.Errorf("encode FSINFO transfer size: %w", err)
		}
	}
	if err := xdr.WriteUint64(&buf, resp.Info.MaxFileSize); err != nil {
		return nil, fmt.Errorf("encode FSINFO maxfilesize: %w", err)
	}
	if err := types.EncodeTime(&buf, resp.Info.TimeDelta); err != nil {
		return nil, fmt.Errorf("encode FSINFO time_delta: %w", err)
	}
	if err := xdr.WriteUint32(&buf, resp.Info.Properties); err != nil {
		return nil, fmt.Errorf("encode FSINFO properties: %w", err)
	}
	return buf.Bytes(), nil
}
