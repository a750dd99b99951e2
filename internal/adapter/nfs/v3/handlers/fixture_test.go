package handlers_test

import (
	"context"
	"testing"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/v3/handlers"
	"github.com/quillfs/quillnfs/pkg/vfs"
	"github.com/quillfs/quillnfs/pkg/vfs/memfs"
	"github.com/stretchr/testify/require"
)

// HandlerFixture wires a Handler to a fresh in-memory file system and
// offers path-based helpers so tests read as scenarios, not plumbing.
type HandlerFixture struct {
	t       *testing.T
	FS      *memfs.MemFS
	Handler *handlers.Handler
}

// NewHandlerFixture builds a fixture around an empty read-write MemFS.
func NewHandlerFixture(t *testing.T) *HandlerFixture {
	t.Helper()
	fs := memfs.New()
	return &HandlerFixture{
		t:       t,
		FS:      fs,
		Handler: handlers.NewHandler(fs),
	}
}

// Context returns a handler context for a local test client.
func (f *HandlerFixture) Context() *handlers.NFSHandlerContext {
	return &handlers.NFSHandlerContext{
		Context:    context.Background(),
		ClientAddr: "127.0.0.1:1023",
		Export:     "/export",
	}
}

// CreateFile creates a file (with parents) and returns its handle.
func (f *HandlerFixture) CreateFile(path string, data []byte) []byte {
	f.t.Helper()
	id, err := f.FS.AddFile(path, data)
	require.NoError(f.t, err)
	return vfs.IDToHandle(id)
}

// CreateDirectory creates a directory (with parents) and returns its handle.
func (f *HandlerFixture) CreateDirectory(path string) []byte {
	f.t.Helper()
	id, err := f.FS.AddDir(path)
	require.NoError(f.t, err)
	return vfs.IDToHandle(id)
}

// MustGetHandle resolves an existing path to its handle.
func (f *HandlerFixture) MustGetHandle(path string) []byte {
	f.t.Helper()
	id, err := vfs.PathToID(context.Background(), f.FS, path)
	require.NoError(f.t, err)
	return vfs.IDToHandle(id)
}

// RootHandle returns the export root's handle.
func (f *HandlerFixture) RootHandle() []byte {
	return vfs.IDToHandle(f.FS.RootDir())
}

// Attr fetches current attributes for a handle.
func (f *HandlerFixture) Attr(handle []byte) vfs.FileAttr {
	f.t.Helper()
	id, err := vfs.HandleToID(handle)
	require.NoError(f.t, err)
	attr, err := f.FS.GetAttr(context.Background(), id)
	require.NoError(f.t, err)
	return attr
}

// badHandle returns a correctly sized handle with a bogus generation.
func badHandle() []byte {
	handle := make([]byte, vfs.HandleSize)
	for i := range handle {
		handle[i] = 0xff
	}
	return handle
}
