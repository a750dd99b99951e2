package types

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAttr() vfs.FileAttr {
	return vfs.FileAttr{
		Type:   vfs.TypeReg,
		Mode:   0644,
		Nlink:  1,
		UID:    1000,
		GID:    1000,
		Size:   4096,
		Used:   4096,
		Rdev:   vfs.SpecData{Major: 0, Minor: 0},
		Fsid:   1,
		FileID: 42,
		Atime:  vfs.Time{Seconds: 100, Nseconds: 1},
		Mtime:  vfs.Time{Seconds: 200, Nseconds: 2},
		Ctime:  vfs.Time{Seconds: 300, Nseconds: 3},
	}
}

func TestEncodeFileAttrLayout(t *testing.T) {
	attr := sampleAttr()

	var buf bytes.Buffer
	require.NoError(t, EncodeFileAttr(&buf, &attr))

	// fattr3 is fixed-size: 4*5 + 8*2 + 4*2 + 8*2 + 8*3 = 84 bytes
	require.Equal(t, 84, buf.Len())

	data := buf.Bytes()
	assert.EqualValues(t, uint32(vfs.TypeReg), binary.BigEndian.Uint32(data[0:4]))
	assert.EqualValues(t, 0644, binary.BigEndian.Uint32(data[4:8]))
	assert.EqualValues(t, 4096, binary.BigEndian.Uint64(data[20:28]))
	assert.EqualValues(t, 42, binary.BigEndian.Uint64(data[52:60]), "fileid")
	assert.EqualValues(t, 300, binary.BigEndian.Uint32(data[76:80]), "ctime seconds")
}

func TestEncodePostOpAttrVoid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePostOpAttr(&buf, nil))
	assert.Equal(t, []byte{0, 0, 0, 0}, buf.Bytes())
}

func TestEncodePostOpAttrPresent(t *testing.T) {
	attr := sampleAttr()

	var buf bytes.Buffer
	require.NoError(t, EncodePostOpAttr(&buf, &attr))
	assert.Equal(t, 4+84, buf.Len())
	assert.EqualValues(t, 1, binary.BigEndian.Uint32(buf.Bytes()[:4]))
}

func TestEncodeWccData(t *testing.T) {
	attr := sampleAttr()
	wcc := WccData{
		Before: PreOpFromAttr(attr),
		After:  &attr,
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeWccData(&buf, wcc))

	// before: bool(4) + size(8) + mtime(8) + ctime(8); after: bool(4) + fattr3(84)
	assert.Equal(t, 28+88, buf.Len())

	data := buf.Bytes()
	assert.EqualValues(t, 1, binary.BigEndian.Uint32(data[0:4]), "before present")
	assert.EqualValues(t, attr.Size, binary.BigEndian.Uint64(data[4:12]))
	assert.EqualValues(t, attr.Mtime.Seconds, binary.BigEndian.Uint32(data[12:16]))
	assert.EqualValues(t, attr.Ctime.Seconds, binary.BigEndian.Uint32(data[20:24]))
}

func TestEncodeWccDataVoid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeWccData(&buf, WccData{}))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, buf.Bytes())
}

func TestDecodeDirOpArgs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, xdr.WriteOpaque(&buf, vfs.IDToHandle(1)))
	require.NoError(t, xdr.WriteString(&buf, "file.txt"))

	args, err := DecodeDirOpArgs(&buf)
	require.NoError(t, err)
	assert.Len(t, args.Dir, vfs.HandleSize)
	assert.Equal(t, "file.txt", args.Name)
}

func TestDecodeFileHandleTooLong(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, xdr.WriteOpaque(&buf, make([]byte, 65)))

	_, err := DecodeFileHandle(&buf)
	assert.Error(t, err)
}

func TestDecodeSetAttrAllPresent(t *testing.T) {
	var buf bytes.Buffer
	// mode
	require.NoError(t, xdr.WriteBool(&buf, true))
	require.NoError(t, xdr.WriteUint32(&buf, 0755))
	// uid
	require.NoError(t, xdr.WriteBool(&buf, true))
	require.NoError(t, xdr.WriteUint32(&buf, 500))
	// gid
	require.NoError(t, xdr.WriteBool(&buf, false))
	// size
	require.NoError(t, xdr.WriteBool(&buf, true))
	require.NoError(t, xdr.WriteUint64(&buf, 1234))
	// atime: server time
	require.NoError(t, xdr.WriteUint32(&buf, uint32(vfs.SetToServerTime)))
	// mtime: client time
	require.NoError(t, xdr.WriteUint32(&buf, uint32(vfs.SetToClientTime)))
	require.NoError(t, xdr.WriteUint32(&buf, 77))
	require.NoError(t, xdr.WriteUint32(&buf, 88))

	attr, err := DecodeSetAttr(&buf)
	require.NoError(t, err)

	require.NotNil(t, attr.Mode)
	assert.EqualValues(t, 0755, *attr.Mode)
	require.NotNil(t, attr.UID)
	assert.EqualValues(t, 500, *attr.UID)
	assert.Nil(t, attr.GID)
	require.NotNil(t, attr.Size)
	assert.EqualValues(t, 1234, *attr.Size)
	assert.Equal(t, vfs.SetToServerTime, attr.Atime.How)
	assert.Equal(t, vfs.SetToClientTime, attr.Mtime.How)
	assert.Equal(t, vfs.Time{Seconds: 77, Nseconds: 88}, attr.Mtime.Time)
}

func TestDecodeSetAttrGuard(t *testing.T) {
	t.Run("Void", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, xdr.WriteBool(&buf, false))

		guard, err := DecodeSetAttrGuard(&buf)
		require.NoError(t, err)
		assert.Nil(t, guard)
	})

	t.Run("Present", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, xdr.WriteBool(&buf, true))
		require.NoError(t, xdr.WriteUint32(&buf, 11))
		require.NoError(t, xdr.WriteUint32(&buf, 22))

		guard, err := DecodeSetAttrGuard(&buf)
		require.NoError(t, err)
		require.NotNil(t, guard)
		assert.Equal(t, vfs.Time{Seconds: 11, Nseconds: 22}, *guard)
	})
}

func TestDecodeSetTimeInvalidHow(t *testing.T) {
	var buf bytes.Buffer
	// mode/uid/gid/size absent
	for i := 0; i < 4; i++ {
		require.NoError(t, xdr.WriteBool(&buf, false))
	}
	require.NoError(t, xdr.WriteUint32(&buf, 9)) // bogus set_atime discriminant

	_, err := DecodeSetAttr(&buf)
	assert.ErrorIs(t, err, xdr.ErrInvalidDiscriminant)
}
