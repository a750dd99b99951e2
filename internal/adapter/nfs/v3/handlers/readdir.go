package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// replyTrailerReserve is the slack kept below the client's byte limit for
// the terminating present=false marker and the eof flag.
const replyTrailerReserve = 128

// ReadDirRequest represents a READDIR request.
type ReadDirRequest struct {
	DirHandle []byte

	// Cookie resumes listing after the entry with this file ID; 0 starts
	// from the beginning.
	Cookie uint64

	// CookieVerf is the client's verifier. Never checked: rejecting stale
	// cookies with BAD_COOKIE breaks clients racing directory mutation.
	CookieVerf uint64

	// Count is the client's byte budget for the whole reply.
	Count uint32
}

// ReadDirEntry is one admitted entry of a READDIR reply.
type ReadDirEntry struct {
	FileID uint64
	Name   string
}

// ReadDirResponse represents the result of READDIR.
type ReadDirResponse struct {
	NFSResponseBase

	DirAttr    *vfs.FileAttr
	CookieVerf uint64
	Entries    []ReadDirEntry

	// Eof is true only when every entry the file system returned was
	// admitted within the byte budget and the listing reached the end of
	// the directory.
	Eof bool
}

// ReadDir handles NFS READDIR (RFC 1813 Section 3.3.16).
//
// The client limits the reply by bytes, not entries, so each entry is
// serialized into a scratch buffer first and admitted only while the
// running reply size stays strictly below count minus the trailer
// reserve. The entry cookie is the entry's file ID, which is also what
// ReadDir's startAfter consumes on the next page.
func (h *Handler) ReadDir(ctx *NFSHandlerContext, req *ReadDirRequest) (*ReadDirResponse, error) {
	dirID, status := resolveHandle(req.DirHandle)
	if status != types.NFS3OK {
		return &ReadDirResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	dirAttr := h.postOpAttr(ctx.Context, dirID)

	// dircount bounds just the name subset, which is hard to ballpark
	// before listing; 16 bytes per entry is the working estimate.
	maxEntries := int(req.Count / 16)

	result, err := h.FS.ReadDir(ctx.Context, dirID, req.Cookie, maxEntries)
	if err != nil {
		logger.DebugCtx(ctx.Context, "READDIR failed", "fileid", dirID, "error", err)
		return &ReadDirResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			DirAttr:         dirAttr,
		}, nil
	}

	resp := &ReadDirResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		DirAttr:         dirAttr,
		CookieVerf:      cookieVerifier(dirAttr),
	}

	budget := int(req.Count) - replyTrailerReserve
	written := readDirPrefixSize(dirAttr)
	allAdmitted := true

	var scratch bytes.Buffer
	for _, entry := range result.Entries {
		scratch.Reset()
		if err := encodeDirEntry(&scratch, entry.FileID, entry.Name); err != nil {
			return nil, fmt.Errorf("encode READDIR entry: %w", err)
		}

		if written+scratch.Len() >= budget {
			allAdmitted = false
			break
		}

		written += scratch.Len()
		resp.Entries = append(resp.Entries, ReadDirEntry{FileID: entry.FileID, Name: entry.Name})
	}

	resp.Eof = allAdmitted && result.End

	logger.DebugCtx(ctx.Context, "READDIR",
		"fileid", dirID,
		"cookie", req.Cookie,
		"entries", len(resp.Entries),
		"eof", resp.Eof)

	return resp, nil
}

// readDirPrefixSize is the encoded size of the reply before the entry
// list: status, the directory's post_op_attr, and the cookie verifier.
func readDirPrefixSize(dirAttr *vfs.FileAttr) int {
	size := 4 + 4 + 8 // status + attr discriminant + cookieverf
	if dirAttr != nil {
		size += 84 // fattr3
	}
	return size
}

// encodeDirEntry writes one entry3 preceded by its present marker:
// bool, fileid, name, cookie. The cookie is the entry's file ID.
func encodeDirEntry(buf *bytes.Buffer, fileID uint64, name string) error {
	if err := xdr.WriteBool(buf, true); err != nil {
		return err
	}
	if err := xdr.WriteUint64(buf, fileID); err != nil {
		return err
	}
	if err := xdr.WriteString(buf, name); err != nil {
		return err
	}
	return xdr.WriteUint64(buf, fileID)
}

// DecodeReadDirRequest decodes READDIR3args.
func DecodeReadDirRequest(data []byte) (*ReadDirRequest, error) {
	reader := bytes.NewReader(data)

	handle, err := types.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READDIR handle: %w", err)
	}
	cookie, err := xdr.DecodeUint64(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READDIR cookie: %w", err)
	}
	verf, err := xdr.DecodeUint64(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READDIR cookieverf: %w", err)
	}
	count, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READDIR count: %w", err)
	}

	return &ReadDirRequest{DirHandle: handle, Cookie: cookie, CookieVerf: verf, Count: count}, nil
}

// Encode serializes READDIR3res: status, dir post_op_attr; on success the
// cookie verifier, the entry list and the eof flag.
func (resp *ReadDirResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodePostOpAttr(&buf, resp.DirAttr); err != nil {
		return nil, fmt.Errorf("encode READDIR dir attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := xdr.WriteUint64(&buf, resp.CookieVerf); err != nil {
		return nil, fmt.Errorf("encode READDIR cookieverf: %w", err)
	}
	for _, entry := range resp.Entries {
		if err := encodeDirEntry(&buf, entry.FileID, entry.Name); err != nil {
			return nil, fmt.Errorf("encode READDIR entry: %w", err)
		}
	}
	if err := xdr.WriteBool(&buf, false); err != nil {
		return nil, fmt.Errorf("encode READDIR terminator: %w", err)
	}
	if err := xdr.WriteBool(&buf, resp.Eof); err != nil {
		return nil, fmt.Errorf("encode READDIR eof: %w", err)
	}
	return buf.Bytes(), nil
}
