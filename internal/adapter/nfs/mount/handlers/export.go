package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
)

// ExportResponse represents the result of EXPORT: the export list. This
// server serves exactly one export with no group restrictions, so the
// list always holds a single entry.
type ExportResponse struct {
	DirPath string
}

// Export handles MOUNT EXPORT (RFC 1813 Appendix I, procedure 5).
func (h *Handler) Export(ctx *MountHandlerContext) (*ExportResponse, error) {
	logger.Debug("Export list request", "client_ip", extractClientIP(ctx.ClientAddr))
	return &ExportResponse{DirPath: h.ExportName}, nil
}

// Encode serializes the exports linked list:
//
//	entry present  = true
//	  ex_dir       = export name
//	  ex_groups    = empty list
//	next entry     = false
func (resp *ExportResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteBool(&buf, true); err != nil {
		return nil, err
	}
	if err := xdr.WriteString(&buf, resp.DirPath); err != nil {
		return nil, fmt.Errorf("encode export dirpath: %w", err)
	}
	// groups: empty linked list
	if err := xdr.WriteBool(&buf, false); err != nil {
		return nil, err
	}
	// next export entry: none
	if err := xdr.WriteBool(&buf, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NullResponse is the void result of MOUNT NULL.
type NullResponse struct{}

// Null handles MOUNT NULL (RFC 1813 Appendix I, procedure 0).
func (h *Handler) Null(ctx *MountHandlerContext) (*NullResponse, error) {
	logger.Debug("MOUNT NULL", "client_ip", extractClientIP(ctx.ClientAddr))
	return &NullResponse{}, nil
}

// Encode serializes the void NULL result.
func (resp *NullResponse) Encode() ([]byte, error) {
	return []byte{}, nil
}
