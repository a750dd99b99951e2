package handlers

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// ReadDirPlusRequest represents a READDIRPLUS request. Unlike READDIR it
// carries two byte budgets: DirCount bounds just the name subset of every
// entry (fileid + length-prefixed name + cookie) while MaxCount bounds the
// whole reply.
type ReadDirPlusRequest struct {
	DirHandle  []byte
	Cookie     uint64
	CookieVerf uint64
	DirCount   uint32
	MaxCount   uint32
}

// ReadDirPlusEntry is one admitted entry of a READDIRPLUS reply, carrying
// attributes and a handle alongside the name.
type ReadDirPlusEntry struct {
	FileID uint64
	Name   string
	Attr   *vfs.FileAttr
	Handle []byte
}

// ReadDirPlusResponse represents the result of READDIRPLUS.
type ReadDirPlusResponse struct {
	NFSResponseBase

	DirAttr    *vfs.FileAttr
	CookieVerf uint64
	Entries    []ReadDirPlusEntry
	Eof        bool
}

// ReadDirPlus handles NFS READDIRPLUS (RFC 1813 Section 3.3.17).
//
// Admission is double-budgeted: an entry is included only while the
// running reply stays strictly below maxcount minus the trailer reserve
// AND the running name-subset bytes (8 + 4 + len(name) + 8 per entry)
// stay strictly below dircount. When either budget runs out the listing
// is truncated and eof is forced false so the client pages again.
func (h *Handler) ReadDirPlus(ctx *NFSHandlerContext, req *ReadDirPlusRequest) (*ReadDirPlusResponse, error) {
	dirID, status := resolveHandle(req.DirHandle)
	if status != types.NFS3OK {
		return &ReadDirPlusResponse{NFSResponseBase: NFSResponseBase{Status: status}}, nil
	}

	dirAttr := h.postOpAttr(ctx.Context, dirID)

	maxEntries := int(req.DirCount / 16)

	result, err := h.FS.ReadDir(ctx.Context, dirID, req.Cookie, maxEntries)
	if err != nil {
		logger.DebugCtx(ctx.Context, "READDIRPLUS failed", "fileid", dirID, "error", err)
		return &ReadDirPlusResponse{
			NFSResponseBase: NFSResponseBase{Status: vfs.Status(err)},
			DirAttr:         dirAttr,
		}, nil
	}

	resp := &ReadDirPlusResponse{
		NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
		DirAttr:         dirAttr,
		CookieVerf:      cookieVerifier(dirAttr),
	}

	byteBudget := int(req.MaxCount) - replyTrailerReserve
	dirCountBudget := int(req.DirCount)
	written := readDirPrefixSize(dirAttr)
	dirCountUsed := 0
	allAdmitted := true

	var scratch bytes.Buffer
	for i := range result.Entries {
		entry := &result.Entries[i]

		plusEntry := ReadDirPlusEntry{
			FileID: entry.FileID,
			Name:   entry.Name,
			Attr:   &entry.Attr,
			Handle: vfs.IDToHandle(entry.FileID),
		}

		scratch.Reset()
		if err := encodeDirEntryPlus(&scratch, &plusEntry); err != nil {
			return nil, fmt.Errorf("encode READDIRPLUS entry: %w", err)
		}

		// The dircount subset: fileid + name length prefix + name + cookie.
		entryDirCount := 8 + 4 + len(entry.Name) + 8

		if written+scratch.Len() >= byteBudget || dirCountUsed+entryDirCount >= dirCountBudget {
			allAdmitted = false
			break
		}

		written += scratch.Len()
		dirCountUsed += entryDirCount
		resp.Entries = append(resp.Entries, plusEntry)
	}

	resp.Eof = allAdmitted && result.End

	logger.DebugCtx(ctx.Context, "READDIRPLUS",
		"fileid", dirID,
		"cookie", req.Cookie,
		"entries", len(resp.Entries),
		"eof", resp.Eof)

	return resp, nil
}

// encodeDirEntryPlus writes one entryplus3 preceded by its present marker:
// bool, fileid, name, cookie, name_attributes, name_handle.
func encodeDirEntryPlus(buf *bytes.Buffer, entry *ReadDirPlusEntry) error {
	if err := encodeDirEntry(buf, entry.FileID, entry.Name); err != nil {
		return err
	}
	if err := types.EncodePostOpAttr(buf, entry.Attr); err != nil {
		return err
	}
	return types.EncodePostOpHandle(buf, entry.Handle)
}

// DecodeReadDirPlusRequest decodes READDIRPLUS3args.
func DecodeReadDirPlusRequest(data []byte) (*ReadDirPlusRequest, error) {
	reader := bytes.NewReader(data)

	handle, err := types.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READDIRPLUS handle: %w", err)
	}
	cookie, err := xdr.DecodeUint64(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READDIRPLUS cookie: %w", err)
	}
	verf, err := xdr.DecodeUint64(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READDIRPLUS cookieverf: %w", err)
	}
	dirCount, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READDIRPLUS dircount: %w", err)
	}
	maxCount, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READDIRPLUS maxcount: %w", err)
	}

	return &ReadDirPlusRequest{
		DirHandle:  handle,
		Cookie:     cookie,
		CookieVerf: verf,
		DirCount:   dirCount,
		MaxCount:   maxCount,
	}, nil
}

// Encode serializes READDIRPLUS3res.
func (resp *ReadDirPlusResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, resp.Status); err != nil {
		return nil, err
	}
	if err := types.EncodePostOpAttr(&buf, resp.DirAttr); err != nil {
		return nil, fmt.Errorf("encode READDIRPLUS dir attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := xdr.WriteUint64(&buf, resp.CookieVerf); err != nil {
		return nil, fmt.Errorf("encode READDIRPLUS cookieverf: %w", err)
	}
	for i := range resp.Entries {
		if err := encodeDirEntryPlus(&buf, &resp.Entries[i]); err != nil {
			return nil, fmt.Errorf("encode READDIRPLUS entry: %w", err)
		}
	}
	if err := xdr.WriteBool(&buf, false); err != nil {
		return nil, fmt.Errorf("encode READDIRPLUS terminator: %w", err)
	}
	if err := xdr.WriteBool(&buf, resp.Eof); err != nil {
		return nil, fmt.Errorf("encode READDIRPLUS eof: %w", err)
	}
	return buf.Bytes(), nil
}
