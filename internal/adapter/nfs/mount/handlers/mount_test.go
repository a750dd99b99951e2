package handlers

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/quillfs/quillnfs/internal/protocol/rpc"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
	"github.com/quillfs/quillnfs/pkg/vfs/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *MountHandlerContext {
	return &MountHandlerContext{
		Context:    context.Background(),
		ClientAddr: "198.51.100.7:712",
	}
}

func TestMnt_ExportRoot(t *testing.T) {
	fs := memfs.New()
	h := NewHandler(fs, "/export", nil)

	for _, dirpath := range []string{"/export", "/export/", "/export//"} {
		resp, err := h.Mnt(testContext(), &MountRequest{DirPath: dirpath})
		require.NoError(t, err)

		assert.Equal(t, MountOK, resp.Status, "dirpath %q", dirpath)
		assert.Equal(t, vfs.IDToHandle(fs.RootDir()), resp.Handle)
		assert.Equal(t, []uint32{rpc.AuthNull, rpc.AuthUnix}, resp.AuthFlavors)
	}
}

func TestMnt_Subdirectory(t *testing.T) {
	fs := memfs.New()
	dirID, err := fs.AddDir("nested/deep")
	require.NoError(t, err)
	h := NewHandler(fs, "/export", nil)

	resp, err := h.Mnt(testContext(), &MountRequest{DirPath: "/export/nested/deep"})
	require.NoError(t, err)

	assert.Equal(t, MountOK, resp.Status)
	assert.Equal(t, vfs.IDToHandle(dirID), resp.Handle)
}

func TestMnt_WrongExport(t *testing.T) {
	h := NewHandler(memfs.New(), "/export", nil)

	for _, dirpath := range []string{"/wrong", "/exports", ""} {
		resp, err := h.Mnt(testContext(), &MountRequest{DirPath: dirpath})
		require.NoError(t, err)
		assert.Equal(t, MountErrNoEnt, resp.Status, "dirpath %q", dirpath)
		assert.Nil(t, resp.Handle)
	}
}

func TestMnt_MissingSubdirectory(t *testing.T) {
	h := NewHandler(memfs.New(), "/export", nil)

	resp, err := h.Mnt(testContext(), &MountRequest{DirPath: "/export/nothere"})
	require.NoError(t, err)
	assert.Equal(t, MountErrNoEnt, resp.Status)
}

func TestDecodeMountRequest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, xdr.WriteString(&buf, "/export/data"))

	req, err := DecodeMountRequest(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "/export/data", req.DirPath)
}

func TestMountSignals(t *testing.T) {
	signal := make(chan bool, 4)
	h := NewHandler(memfs.New(), "/export", signal)

	_, err := h.Mnt(testContext(), &MountRequest{DirPath: "/export"})
	require.NoError(t, err)
	assert.True(t, <-signal)

	_, err = h.Umnt(testContext(), &UmountRequest{DirPath: "/export"})
	require.NoError(t, err)
	assert.False(t, <-signal)

	_, err = h.UmntAll(testContext())
	require.NoError(t, err)
	assert.False(t, <-signal)
}

func TestMountSignalNeverBlocks(t *testing.T) {
	// Unbuffered channel with no reader: the send must be dropped, not
	// wedge the procedure.
	signal := make(chan bool)
	h := NewHandler(memfs.New(), "/export", signal)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.Mnt(testContext(), &MountRequest{DirPath: "/export"})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("MNT blocked on the mount signal channel")
	}
}

func TestExportEncoding(t *testing.T) {
	h := NewHandler(memfs.New(), "/export", nil)

	resp, err := h.Export(testContext())
	require.NoError(t, err)

	encoded, err := resp.Encode()
	require.NoError(t, err)

	r := bytes.NewReader(encoded)
	present, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	assert.True(t, present)

	dirPath, err := xdr.DecodeString(r)
	require.NoError(t, err)
	assert.Equal(t, "/export", dirPath)
}
