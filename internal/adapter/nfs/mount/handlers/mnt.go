package handlers

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/internal/protocol/rpc"
	"github.com/quillfs/quillnfs/pkg/vfs"
	raskyxdr "github.com/rasky/go-xdr/xdr2"
)

// MountRequest represents an MNT request: the dirpath the client wants to
// mount. It must begin with the configured export name; the remainder is
// resolved inside the export.
type MountRequest struct {
	DirPath string
}

// MountResponse represents the result of MNT. On success it carries the
// file handle of the mounted directory and the auth flavors the server
// accepts for NFS calls (AUTH_NULL and AUTH_UNIX).
type MountResponse struct {
	MountResponseBase

	Handle      []byte
	AuthFlavors []uint32
}

// Mnt handles MOUNT MNT (RFC 1813 Appendix I, procedure 1).
//
// The dirpath is matched against the export name; a mismatch is
// indistinguishable from a missing directory (MNT3ERR_NOENT), revealing
// nothing about what is exported. The remainder of the path is walked
// with LOOKUP via the core's path resolution.
func (h *Handler) Mnt(ctx *MountHandlerContext, req *MountRequest) (*MountResponse, error) {
	clientIP := extractClientIP(ctx.ClientAddr)

	logger.Info("Mount request", "path", req.DirPath, "export", h.ExportName, "client_ip", clientIP)

	subPath, ok := strings.CutPrefix(req.DirPath, h.ExportName)
	if !ok {
		logger.Debug("Mount refused: no matching export", "path", req.DirPath, "export", h.ExportName)
		return &MountResponse{MountResponseBase: MountResponseBase{Status: MountErrNoEnt}}, nil
	}

	subPath = "/" + strings.TrimSpace(strings.Trim(subPath, "/"))

	id, err := vfs.PathToID(ctx.Context, h.FS, subPath)
	if err != nil {
		logger.Debug("Mount refused: path does not resolve", "path", subPath, "error", err)
		return &MountResponse{MountResponseBase: MountResponseBase{Status: MountErrNoEnt}}, nil
	}

	h.signalMount(true)

	logger.Info("Mount successful", "path", req.DirPath, "fileid", id, "client_ip", clientIP)

	return &MountResponse{
		MountResponseBase: MountResponseBase{Status: MountOK},
		Handle:            vfs.IDToHandle(id),
		AuthFlavors:       []uint32{rpc.AuthNull, rpc.AuthUnix},
	}, nil
}

// DecodeMountRequest decodes an MNT request's dirpath.
func DecodeMountRequest(data []byte) (*MountRequest, error) {
	req := &MountRequest{}
	if _, err := raskyxdr.Unmarshal(bytes.NewReader(data), req); err != nil {
		return nil, fmt.Errorf("unmarshal mount request: %w", err)
	}
	if len(req.DirPath) > MaxDirPathLength {
		return nil, fmt.Errorf("dirpath too long: %d bytes (max %d)", len(req.DirPath), MaxDirPathLength)
	}
	return req, nil
}

// Encode serializes mountres3: status, then on success the fhandle3 and
// the auth flavor list.
func (resp *MountResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteUint32(&buf, resp.Status); err != nil {
		return nil, err
	}
	if resp.Status != MountOK {
		return buf.Bytes(), nil
	}
	if err := xdr.WriteOpaque(&buf, resp.Handle); err != nil {
		return nil, fmt.Errorf("encode mount handle: %w", err)
	}
	if err := xdr.WriteUint32(&buf, uint32(len(resp.AuthFlavors))); err != nil {
		return nil, fmt.Errorf("encode auth flavor count: %w", err)
	}
	for _, flavor := range resp.AuthFlavors {
		if err := xdr.WriteUint32(&buf, flavor); err != nil {
			return nil, fmt.Errorf("encode auth flavor: %w", err)
		}
	}
	return buf.Bytes(), nil
}
