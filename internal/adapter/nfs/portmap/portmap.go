// Package portmap implements the PORTMAP v2 procedures this server fakes
// (RFC 1057 Appendix A): NULL and GETPORT. The server is not a real
// portmapper — every GETPORT answer points back at its own listening
// port, which is what NFS clients probing program 100000 on the data
// port expect.
package portmap

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	raskyxdr "github.com/rasky/go-xdr/xdr2"
)

// PORTMAP v2 procedure numbers.
const (
	ProcNull    uint32 = 0
	ProcSet     uint32 = 1
	ProcUnset   uint32 = 2
	ProcGetPort uint32 = 3
	ProcDump    uint32 = 4
	ProcCallIt  uint32 = 5
)

// Protocol numbers used in mappings.
const (
	IPProtoTCP uint32 = 6
	IPProtoUDP uint32 = 17
)

// Mapping is the pmap mapping structure: which (program, version,
// protocol) the caller is asking about.
type Mapping struct {
	Prog uint32
	Vers uint32
	Prot uint32
	Port uint32
}

// Handler answers portmap queries for a single-port server.
type Handler struct {
	// LocalPort is the port every GETPORT reply advertises.
	LocalPort uint16
}

// NewHandler creates a portmap handler advertising the given port.
func NewHandler(localPort uint16) *Handler {
	return &Handler{LocalPort: localPort}
}

// GetPortResponse represents the result of GETPORT: just the port, or 0
// had the program not been registered (never the case here).
type GetPortResponse struct {
	Port uint32
}

// GetPort handles PMAPPROC_GETPORT (RFC 1057 Appendix A).
func (h *Handler) GetPort(req *Mapping) (*GetPortResponse, error) {
	logger.Debug("GETPORT",
		"program", req.Prog,
		"version", req.Vers,
		"protocol", req.Prot,
		"port", h.LocalPort)
	return &GetPortResponse{Port: uint32(h.LocalPort)}, nil
}

// DecodeGetPortRequest decodes the mapping argument of GETPORT.
func DecodeGetPortRequest(data []byte) (*Mapping, error) {
	req := &Mapping{}
	if _, err := raskyxdr.Unmarshal(bytes.NewReader(data), req); err != nil {
		return nil, fmt.Errorf("unmarshal getport mapping: %w", err)
	}
	return req, nil
}

// Encode serializes the GETPORT result.
func (resp *GetPortResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteUint32(&buf, resp.Port); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NullResponse is the void result of PMAPPROC_NULL.
type NullResponse struct{}

// Null handles PMAPPROC_NULL.
func (h *Handler) Null() (*NullResponse, error) {
	return &NullResponse{}, nil
}

// Encode serializes the void NULL result.
func (resp *NullResponse) Encode() ([]byte, error) {
	return []byte{}, nil
}
