package handlers

import (
	"github.com/quillfs/quillnfs/internal/logger"
)

// NullResponse is the void result of NFSPROC3_NULL.
type NullResponse struct{}

// Null handles NFS NULL (RFC 1813 Section 3.3.0). It does nothing, by
// specification; clients use it to probe that the server is alive.
func (h *Handler) Null(ctx *NFSHandlerContext) (*NullResponse, error) {
	logger.DebugCtx(ctx.Context, "NULL", "client", extractClientIP(ctx.ClientAddr))
	return &NullResponse{}, nil
}

// Encode serializes the void NULL result.
func (resp *NullResponse) Encode() ([]byte, error) {
	return []byte{}, nil
}
