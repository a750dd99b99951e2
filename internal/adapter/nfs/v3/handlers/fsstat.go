package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// FSStatRequest represents an FSSTAT request: the root handle.
type FSStatRequest struct {
	Handle []byte
}

// FSStatResponse represents the result of FSSTAT: volatile file-system
// usage figures.
type FSStatResponse struct {
	NFSResponseBase

	Attr     *vfs.FileAttr
	TBytes   uint64
	FBytes   uint64
	ABytes   uint64
	TFiles   uint64
	FFiles   uint64
	AFiles   uint64
	Invarsec uint32
}

// FSStat handles NFS FSSTAT (RFC 1813 Section 3.3.18). The VFS contract
// has no usage accounting, so fixed figures are advertised: 1 TiB of
// total/free/available bytes and 1 Gi files.
func (h *Handler) FSStat(ctx *NFSHandlerContext, req *FSStatRequest) (*FSStatResponse, error) {
	id, status := resolveHandle(req.Handle)
	if status != types.NFS3OK {
		return &FSStatResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	const (
		tib = 1024 * 1024 * 1024 * 1024
		gi  = 1024 * 1024 * 1024
	)

	return &FSStatResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		Attr:            h.postOpAttr(ctx.Context, id),
		TBytes:          tib,
		FBytes:          tib,
		ABytes:          tib,
		TFiles:          gi,
		FFiles:          gi,
		AFiles:          gi,
		Invarsec:        ^uint32(0),
	}, nil
}

// DecodeFSStatRequest decodes FSSTAT3args.
func DecodeFSStatRequest(data []byte) (*FSStatRequest, error) {
	handle, err := types.DecodeFileHandle(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode FSSTAT args: %w", err)
	}
	return &FSStatRequest{Handle: handle}, nil
}

// Encode serializes FSSTAT3res.
func (resp *FSStatResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodePostOpAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode FSSTAT attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	for _, v := range []uint64{resp.TBytes, resp.FBytes, resp.ABytes, resp.TFiles, resp.FFiles, resp.AFiles} {
		if err := xdr.WriteUint64(&buf, v); err != nil {
			return nil, fmt.Errorf("encode FSSTAT figure: %w", err)
		}
	}
	if err := xdr.WriteUint32(&buf, resp.Invarsec); err != nil {
		return nil, fmt.Errorf("encode FSSTAT invarsec: %w", err)
	}
	return buf.Bytes(), nil
}
