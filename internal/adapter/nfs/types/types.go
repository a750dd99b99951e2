// Package types holds the NFSv3 wire-level structures shared by the
// procedure handlers: attribute encodings, weak-cache-consistency pairs and
// the common discriminated unions (post_op_attr, pre_op_attr, post_op_fh3,
// sattrguard3).
//
// The value types themselves come from pkg/vfs — the contract already
// mirrors fattr3/sattr3 field-for-field — so this package only owns the
// XDR mapping.
package types

import (
	"bytes"
	"fmt"
	"io"

	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// WccAttr is the wcc_attr subset of pre-operation attributes: just enough
// to prove to a client whether its cache is still valid.
type WccAttr struct {
	Size  uint64
	Mtime vfs.Time
	Ctime vfs.Time
}

// WccData is the before/after pair every mutating reply carries. A nil
// slot encodes as the void arm.
type WccData struct {
	Before *WccAttr
	After  *vfs.FileAttr
}

// PreOpFromAttr projects full attributes down to the wcc_attr subset.
func PreOpFromAttr(attr vfs.FileAttr) *WccAttr {
	return &WccAttr{
		Size:  attr.Size,
		Mtime: attr.Mtime,
		Ctime: attr.Ctime,
	}
}

// ============================================================================
// Encoding
// ============================================================================

// EncodeTime writes an nfstime3.
func EncodeTime(buf *bytes.Buffer, t vfs.Time) error {
	if err := xdr.WriteUint32(buf, t.Seconds); err != nil {
		return err
	}
	return xdr.WriteUint32(buf, t.Nseconds)
}

// EncodeFileAttr writes a fattr3 in declaration order (RFC 1813 Section 2.5).
func EncodeFileAttr(buf *bytes.Buffer, attr *vfs.FileAttr) error {
	if err := xdr.WriteUint32(buf, uint32(attr.Type)); err != nil {
		return fmt.Errorf("write type: %w", err)
	}
	for _, v := range []uint32{attr.Mode, attr.Nlink, attr.UID, attr.GID} {
		if err := xdr.WriteUint32(buf, v); err != nil {
			return fmt.Errorf("write fattr3 field: %w", err)
		}
	}
	if err := xdr.WriteUint64(buf, attr.Size); err != nil {
		return fmt.Errorf("write size: %w", err)
	}
	if err := xdr.WriteUint64(buf, attr.Used); err != nil {
		return fmt.Errorf("write used: %w", err)
	}
	if err := xdr.WriteUint32(buf, attr.Rdev.Major); err != nil {
		return fmt.Errorf("write rdev major: %w", err)
	}
	if err := xdr.WriteUint32(buf, attr.Rdev.Minor); err != nil {
		return fmt.Errorf("write rdev minor: %w", err)
	}
	if err := xdr.WriteUint64(buf, attr.Fsid); err != nil {
		return fmt.Errorf("write fsid: %w", err)
	}
	if err := xdr.WriteUint64(buf, attr.FileID); err != nil {
		return fmt.Errorf("write fileid: %w", err)
	}
	for _, t := range []vfs.Time{attr.Atime, attr.Mtime, attr.Ctime} {
		if err := EncodeTime(buf, t); err != nil {
			return fmt.Errorf("write time: %w", err)
		}
	}
	return nil
}

// EncodePostOpAttr writes a post_op_attr union: void when attr is nil.
func EncodePostOpAttr(buf *bytes.Buffer, attr *vfs.FileAttr) error {
	return xdr.WriteOptional(buf, attr != nil, func(b *bytes.Buffer) error {
		return EncodeFileAttr(b, attr)
	})
}

// EncodePreOpAttr writes a pre_op_attr union: void when attr is nil.
func EncodePreOpAttr(buf *bytes.Buffer, attr *WccAttr) error {
	return xdr.WriteOptional(buf, attr != nil, func(b *bytes.Buffer) error {
		if err := xdr.WriteUint64(b, attr.Size); err != nil {
			return err
		}
		if err := EncodeTime(b, attr.Mtime); err != nil {
			return err
		}
		return EncodeTime(b, attr.Ctime)
	})
}

// EncodeWccData writes a wcc_data pair.
func EncodeWccData(buf *bytes.Buffer, wcc WccData) error {
	if err := EncodePreOpAttr(buf, wcc.Before); err != nil {
		return fmt.Errorf("write wcc before: %w", err)
	}
	if err := EncodePostOpAttr(buf, wcc.After); err != nil {
		return fmt.Errorf("write wcc after: %w", err)
	}
	return nil
}

// EncodeFileHandle writes an nfs_fh3: a length-prefixed opaque.
func EncodeFileHandle(buf *bytes.Buffer, handle []byte) error {
	return xdr.WriteOpaque(buf, handle)
}

// EncodePostOpHandle writes a post_op_fh3 union: void when handle is nil.
func EncodePostOpHandle(buf *bytes.Buffer, handle []byte) error {
	return xdr.WriteOptional(buf, handle != nil, func(b *bytes.Buffer) error {
		return EncodeFileHandle(b, handle)
	})
}

// ============================================================================
// Decoding
// ============================================================================

// DecodeTime reads an nfstime3.
func DecodeTime(reader io.Reader) (vfs.Time, error) {
	seconds, err := xdr.DecodeUint32(reader)
	if err != nil {
		return vfs.Time{}, err
	}
	nseconds, err := xdr.DecodeUint32(reader)
	if err != nil {
		return vfs.Time{}, err
	}
	return vfs.Time{Seconds: seconds, Nseconds: nseconds}, nil
}

// DecodeFileHandle reads an nfs_fh3, enforcing the 64-byte RFC limit.
// Handle validity (length 16, live generation) is judged later by
// vfs.HandleToID; this only guards the decoder.
func DecodeFileHandle(reader io.Reader) ([]byte, error) {
	handle, err := xdr.DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("decode handle: %w", err)
	}
	if len(handle) > MaxHandleSize {
		return nil, fmt.Errorf("handle too long: %d bytes (max %d)", len(handle), MaxHandleSize)
	}
	return handle, nil
}

// DecodeFilename reads a filename3, enforcing the name_max limit.
func DecodeFilename(reader io.Reader) (string, error) {
	name, err := xdr.DecodeString(reader)
	if err != nil {
		return "", fmt.Errorf("decode filename: %w", err)
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("filename too long: %d bytes (max %d)", len(name), MaxNameLength)
	}
	return name, nil
}

// DecodePath reads an nfspath3 (symlink target).
func DecodePath(reader io.Reader) (string, error) {
	path, err := xdr.DecodeString(reader)
	if err != nil {
		return "", fmt.Errorf("decode path: %w", err)
	}
	if len(path) > MaxPathLength {
		return "", fmt.Errorf("path too long: %d bytes (max %d)", len(path), MaxPathLength)
	}
	return path, nil
}

// DirOpArgs is a decoded diropargs3: a directory handle plus a name.
type DirOpArgs struct {
	Dir  []byte
	Name string
}

// DecodeDirOpArgs reads a diropargs3.
func DecodeDirOpArgs(reader io.Reader) (DirOpArgs, error) {
	dir, err := DecodeFileHandle(reader)
	if err != nil {
		return DirOpArgs{}, err
	}
	name, err := DecodeFilename(reader)
	if err != nil {
		return DirOpArgs{}, err
	}
	return DirOpArgs{Dir: dir, Name: name}, nil
}

// DecodeSetAttr reads a sattr3: six unions, one per settable attribute.
func DecodeSetAttr(reader io.Reader) (vfs.SetAttr, error) {
	var attr vfs.SetAttr

	mode, present, err := decodeOptionalUint32(reader)
	if err != nil {
		return attr, fmt.Errorf("decode set mode: %w", err)
	}
	if present {
		attr.Mode = &mode
	}

	uid, present, err := decodeOptionalUint32(reader)
	if err != nil {
		return attr, fmt.Errorf("decode set uid: %w", err)
	}
	if present {
		attr.UID = &uid
	}

	gid, present, err := decodeOptionalUint32(reader)
	if err != nil {
		return attr, fmt.Errorf("decode set gid: %w", err)
	}
	if present {
		attr.GID = &gid
	}

	size, present, err := decodeOptionalUint64(reader)
	if err != nil {
		return attr, fmt.Errorf("decode set size: %w", err)
	}
	if present {
		attr.Size = &size
	}

	if attr.Atime, err = decodeSetTime(reader); err != nil {
		return attr, fmt.Errorf("decode set atime: %w", err)
	}
	if attr.Mtime, err = decodeSetTime(reader); err != nil {
		return attr, fmt.Errorf("decode set mtime: %w", err)
	}

	return attr, nil
}

// DecodeSetAttrGuard reads a sattrguard3: an optional ctime the object must
// still carry for SETATTR to proceed.
func DecodeSetAttrGuard(reader io.Reader) (*vfs.Time, error) {
	present, err := xdr.DecodeBool(reader)
	if err != nil {
		return nil, fmt.Errorf("decode guard discriminant: %w", err)
	}
	if !present {
		return nil, nil
	}
	t, err := DecodeTime(reader)
	if err != nil {
		return nil, fmt.Errorf("decode guard ctime: %w", err)
	}
	return &t, nil
}

func decodeOptionalUint32(reader io.Reader) (uint32, bool, error) {
	present, err := xdr.DecodeBool(reader)
	if err != nil {
		return 0, false, err
	}
	if !present {
		return 0, false, nil
	}
	v, err := xdr.DecodeUint32(reader)
	return v, true, err
}

func decodeOptionalUint64(reader io.Reader) (uint64, bool, error) {
	present, err := xdr.DecodeBool(reader)
	if err != nil {
		return 0, false, err
	}
	if !present {
		return 0, false, nil
	}
	v, err := xdr.DecodeUint64(reader)
	return v, true, err
}

func decodeSetTime(reader io.Reader) (vfs.SetTime, error) {
	how, err := xdr.DecodeUint32(reader)
	if err != nil {
		return vfs.SetTime{}, err
	}
	switch vfs.TimeHow(how) {
	case vfs.DontChange, vfs.SetToServerTime:
		return vfs.SetTime{How: vfs.TimeHow(how)}, nil
	case vfs.SetToClientTime:
		t, err := DecodeTime(reader)
		if err != nil {
			return vfs.SetTime{}, err
		}
		return vfs.SetTime{How: vfs.SetToClientTime, Time: t}, nil
	default:
		return vfs.SetTime{}, fmt.Errorf("set time how %d: %w", how, xdr.ErrInvalidDiscriminant)
	}
}
