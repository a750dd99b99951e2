package badgerfs

import (
	"context"
	"testing"

	"github.com/quillfs/quillnfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestFS(t *testing.T) *BadgerFS {
	t.Helper()
	fs, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func ctx() context.Context { return context.Background() }

func TestRootExists(t *testing.T) {
	fs := openTestFS(t)

	attr, err := fs.GetAttr(ctx(), fs.RootDir())
	require.NoError(t, err)
	assert.Equal(t, vfs.TypeDir, attr.Type)
}

func TestCreateWriteReadCycle(t *testing.T) {
	fs := openTestFS(t)

	id, _, err := fs.Create(ctx(), fs.RootDir(), "file.bin", vfs.SetAttr{})
	require.NoError(t, err)

	_, err = fs.Write(ctx(), id, 0, []byte("persistent data"))
	require.NoError(t, err)

	data, eof, err := fs.Read(ctx(), id, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("persistent data"), data)
	assert.True(t, eof)

	attr, err := fs.GetAttr(ctx(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 15, attr.Size)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	fs, err := Open(dir)
	require.NoError(t, err)

	id, _, err := fs.Create(ctx(), fs.RootDir(), "durable.txt", vfs.SetAttr{})
	require.NoError(t, err)
	_, err = fs.Write(ctx(), id, 0, []byte("survives restart"))
	require.NoError(t, err)
	require.NoError(t, fs.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.Lookup(ctx(), reopened.RootDir(), "durable.txt")
	require.NoError(t, err)
	assert.Equal(t, id, found)

	data, _, err := reopened.Read(ctx(), found, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("survives restart"), data)
}

func TestDirectoryOperations(t *testing.T) {
	fs := openTestFS(t)

	dirID, _, err := fs.Mkdir(ctx(), fs.RootDir(), "docs")
	require.NoError(t, err)

	_, _, err = fs.Create(ctx(), dirID, "a.txt", vfs.SetAttr{})
	require.NoError(t, err)
	_, _, err = fs.Create(ctx(), dirID, "b.txt", vfs.SetAttr{})
	require.NoError(t, err)

	result, err := fs.ReadDir(ctx(), dirID, 0, 0)
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.True(t, result.End)
	assert.Less(t, result.Entries[0].FileID, result.Entries[1].FileID)

	// Pagination resumes after the given file ID.
	page, err := fs.ReadDir(ctx(), dirID, result.Entries[0].FileID, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, result.Entries[1].FileID, page.Entries[0].FileID)

	err = fs.Remove(ctx(), fs.RootDir(), "docs")
	assert.ErrorIs(t, err, vfs.ErrNotEmpty)
}

func TestIDsNotReused(t *testing.T) {
	fs := openTestFS(t)

	firstID, _, err := fs.Create(ctx(), fs.RootDir(), "first", vfs.SetAttr{})
	require.NoError(t, err)
	require.NoError(t, fs.Remove(ctx(), fs.RootDir(), "first"))

	secondID, _, err := fs.Create(ctx(), fs.RootDir(), "second", vfs.SetAttr{})
	require.NoError(t, err)
	assert.Greater(t, secondID, firstID, "file IDs are never reused")
}

func TestSymlinkAndLink(t *testing.T) {
	fs := openTestFS(t)

	linkID, _, err := fs.Symlink(ctx(), fs.RootDir(), "ln", "/elsewhere", vfs.SetAttr{})
	require.NoError(t, err)

	target, err := fs.Readlink(ctx(), linkID)
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere", target)

	fileID, _, err := fs.Create(ctx(), fs.RootDir(), "orig", vfs.SetAttr{})
	require.NoError(t, err)

	attr, err := fs.Link(ctx(), fileID, fs.RootDir(), "alias")
	require.NoError(t, err)
	assert.EqualValues(t, 2, attr.Nlink)
}

func TestRename(t *testing.T) {
	fs := openTestFS(t)

	id, _, err := fs.Create(ctx(), fs.RootDir(), "old", vfs.SetAttr{})
	require.NoError(t, err)

	require.NoError(t, fs.Rename(ctx(), fs.RootDir(), "old", fs.RootDir(), "new"))

	_, err = fs.Lookup(ctx(), fs.RootDir(), "old")
	assert.ErrorIs(t, err, vfs.ErrNoEnt)

	found, err := fs.Lookup(ctx(), fs.RootDir(), "new")
	require.NoError(t, err)
	assert.Equal(t, id, found)
}

func TestSetAttrTruncate(t *testing.T) {
	fs := openTestFS(t)

	id, _, err := fs.Create(ctx(), fs.RootDir(), "trunc", vfs.SetAttr{})
	require.NoError(t, err)
	_, err = fs.Write(ctx(), id, 0, []byte("0123456789"))
	require.NoError(t, err)

	size := uint64(4)
	attr, err := fs.SetAttr(ctx(), id, vfs.SetAttr{Size: &size})
	require.NoError(t, err)
	assert.EqualValues(t, 4, attr.Size)

	data, _, err := fs.Read(ctx(), id, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123"), data)
}

func TestMknod(t *testing.T) {
	fs := openTestFS(t)

	_, attr, err := fs.Mknod(ctx(), fs.RootDir(), "fifo", vfs.TypeFifo, vfs.SpecData{}, vfs.SetAttr{})
	require.NoError(t, err)
	assert.Equal(t, vfs.TypeFifo, attr.Type)

	_, _, err = fs.Mknod(ctx(), fs.RootDir(), "bad", vfs.TypeDir, vfs.SpecData{}, vfs.SetAttr{})
	assert.ErrorIs(t, err, vfs.ErrBadType)
}
