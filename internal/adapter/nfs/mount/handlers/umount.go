package handlers

import (
	"bytes"
	"fmt"
	"net"

	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	raskyxdr "github.com/rasky/go-xdr/xdr2"
)

// UmountRequest represents a UMNT request: the dirpath being unmounted.
type UmountRequest struct {
	DirPath string
}

// UmountResponse represents the result of UMNT/UMNTALL. The status is
// always MountOK: no server-side mount registry is maintained — unmounting
// is a client-side affair and UMNT always succeeds per RFC 1813. The
// procedure exists so the supervisor channel can observe the event.
type UmountResponse struct {
	MountResponseBase
}

// Umnt handles MOUNT UMNT (RFC 1813 Appendix I, procedure 3).
func (h *Handler) Umnt(ctx *MountHandlerContext, req *UmountRequest) (*UmountResponse, error) {
	logger.Info("Unmount request", "path", req.DirPath, "client_ip", extractClientIP(ctx.ClientAddr))
	h.signalMount(false)
	return &UmountResponse{MountResponseBase: MountResponseBase{Status: MountOK}}, nil
}

// UmntAll handles MOUNT UMNTALL (RFC 1813 Appendix I, procedure 4). With
// no registry to clear it is just a broader unmount signal.
func (h *Handler) UmntAll(ctx *MountHandlerContext) (*UmountResponse, error) {
	logger.Info("Unmount-all request", "client_ip", extractClientIP(ctx.ClientAddr))
	h.signalMount(false)
	return &UmountResponse{MountResponseBase: MountResponseBase{Status: MountOK}}, nil
}

// DecodeUmountRequest decodes a UMNT request's dirpath.
func DecodeUmountRequest(data []byte) (*UmountRequest, error) {
	req := &UmountRequest{}
	if _, err := raskyxdr.Unmarshal(bytes.NewReader(data), req); err != nil {
		return nil, fmt.Errorf("unmarshal umount request: %w", err)
	}
	return req, nil
}

// Encode serializes the UMNT/UMNTALL result: just the status word.
func (resp *UmountResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteUint32(&buf, resp.Status); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// extractClientIP strips the port from a "host:port" address for logging.
func extractClientIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
