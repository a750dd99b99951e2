package memfs

import (
	"context"
	"testing"

	"github.com/quillfs/quillnfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctx() context.Context { return context.Background() }

func TestRootDir(t *testing.T) {
	fs := New()
	attr, err := fs.GetAttr(ctx(), fs.RootDir())
	require.NoError(t, err)
	assert.Equal(t, vfs.TypeDir, attr.Type)
	assert.EqualValues(t, 2, attr.Nlink)
}

func TestCreateLookupReadWrite(t *testing.T) {
	fs := New()

	id, attr, err := fs.Create(ctx(), fs.RootDir(), "hello.txt", vfs.SetAttr{})
	require.NoError(t, err)
	assert.Equal(t, vfs.TypeReg, attr.Type)
	assert.NotZero(t, id)

	found, err := fs.Lookup(ctx(), fs.RootDir(), "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, id, found)

	_, err = fs.Write(ctx(), id, 0, []byte("hello world"))
	require.NoError(t, err)

	data, eof, err := fs.Read(ctx(), id, 0, 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
	assert.True(t, eof)

	data, eof, err = fs.Read(ctx(), id, 6, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), data)
	assert.True(t, eof)

	data, eof, err = fs.Read(ctx(), id, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.False(t, eof)
}

func TestReadPastEOF(t *testing.T) {
	fs := New()
	id, _ := fs.AddFile("f.txt", []byte("abc"))

	data, eof, err := fs.Read(ctx(), id, 100, 10)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.True(t, eof)
}

func TestWriteExtendsSparsely(t *testing.T) {
	fs := New()
	id, _ := fs.AddFile("f.txt", nil)

	_, err := fs.Write(ctx(), id, 4, []byte("data"))
	require.NoError(t, err)

	data, _, err := fs.Read(ctx(), id, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 'd', 'a', 't', 'a'}, data)
}

func TestCreateUncheckedTruncates(t *testing.T) {
	fs := New()
	id1, _ := fs.AddFile("f.txt", []byte("old content"))

	id2, attr, err := fs.Create(ctx(), fs.RootDir(), "f.txt", vfs.SetAttr{})
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "unchecked create reuses the existing file")
	assert.Zero(t, attr.Size)
}

func TestCreateExclusive(t *testing.T) {
	fs := New()

	_, err := fs.CreateExclusive(ctx(), fs.RootDir(), "once")
	require.NoError(t, err)

	_, err = fs.CreateExclusive(ctx(), fs.RootDir(), "once")
	assert.ErrorIs(t, err, vfs.ErrExist)
}

func TestMkdirRemove(t *testing.T) {
	fs := New()

	dirID, attr, err := fs.Mkdir(ctx(), fs.RootDir(), "sub")
	require.NoError(t, err)
	assert.Equal(t, vfs.TypeDir, attr.Type)

	_, _, err = fs.Create(ctx(), dirID, "child", vfs.SetAttr{})
	require.NoError(t, err)

	err = fs.Remove(ctx(), fs.RootDir(), "sub")
	assert.ErrorIs(t, err, vfs.ErrNotEmpty)

	require.NoError(t, fs.Remove(ctx(), dirID, "child"))
	require.NoError(t, fs.Remove(ctx(), fs.RootDir(), "sub"))

	_, err = fs.Lookup(ctx(), fs.RootDir(), "sub")
	assert.ErrorIs(t, err, vfs.ErrNoEnt)
}

func TestRename(t *testing.T) {
	fs := New()
	id, _ := fs.AddFile("a/old.txt", []byte("x"))
	otherDir, _ := fs.AddDir("b")

	aDir, err := fs.Lookup(ctx(), fs.RootDir(), "a")
	require.NoError(t, err)

	require.NoError(t, fs.Rename(ctx(), aDir, "old.txt", otherDir, "new.txt"))

	_, err = fs.Lookup(ctx(), aDir, "old.txt")
	assert.ErrorIs(t, err, vfs.ErrNoEnt)

	found, err := fs.Lookup(ctx(), otherDir, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, id, found)
}

func TestRenameReplacesTarget(t *testing.T) {
	fs := New()
	srcID, _ := fs.AddFile("src.txt", []byte("src"))
	fs.AddFile("dst.txt", []byte("dst"))

	require.NoError(t, fs.Rename(ctx(), fs.RootDir(), "src.txt", fs.RootDir(), "dst.txt"))

	found, err := fs.Lookup(ctx(), fs.RootDir(), "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, srcID, found)
}

func TestReadDirPagination(t *testing.T) {
	fs := New()
	var ids []uint64
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		id, err := fs.AddFile(name, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Full listing, ordered by file ID.
	result, err := fs.ReadDir(ctx(), fs.RootDir(), 0, 0)
	require.NoError(t, err)
	require.Len(t, result.Entries, 5)
	assert.True(t, result.End)
	for i := 1; i < len(result.Entries); i++ {
		assert.Greater(t, result.Entries[i].FileID, result.Entries[i-1].FileID)
	}

	// Page of 2, then resume from the last entry.
	page, err := fs.ReadDir(ctx(), fs.RootDir(), 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.False(t, page.End)

	rest, err := fs.ReadDir(ctx(), fs.RootDir(), page.Entries[1].FileID, 0)
	require.NoError(t, err)
	assert.Len(t, rest.Entries, 3)
	assert.True(t, rest.End)

	// Resuming after the very last entry yields an empty final page.
	empty, err := fs.ReadDir(ctx(), fs.RootDir(), ids[4], 0)
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
	assert.True(t, empty.End)
}

func TestSymlinkReadlink(t *testing.T) {
	fs := New()

	id, attr, err := fs.Symlink(ctx(), fs.RootDir(), "link", "/target/path", vfs.SetAttr{})
	require.NoError(t, err)
	assert.Equal(t, vfs.TypeLnk, attr.Type)

	target, err := fs.Readlink(ctx(), id)
	require.NoError(t, err)
	assert.Equal(t, "/target/path", target)

	fileID, _ := fs.AddFile("plain", nil)
	_, err = fs.Readlink(ctx(), fileID)
	assert.ErrorIs(t, err, vfs.ErrInval)
}

func TestHardLink(t *testing.T) {
	fs := New()
	id, _ := fs.AddFile("orig", []byte("shared"))

	attr, err := fs.Link(ctx(), id, fs.RootDir(), "alias")
	require.NoError(t, err)
	assert.EqualValues(t, 2, attr.Nlink)

	// Content reachable through both names.
	aliasID, err := fs.Lookup(ctx(), fs.RootDir(), "alias")
	require.NoError(t, err)
	assert.Equal(t, id, aliasID)

	// Removing one name keeps the file alive.
	require.NoError(t, fs.Remove(ctx(), fs.RootDir(), "orig"))
	attr, err = fs.GetAttr(ctx(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, attr.Nlink)
}

func TestMknod(t *testing.T) {
	fs := New()

	id, attr, err := fs.Mknod(ctx(), fs.RootDir(), "null", vfs.TypeChr, vfs.SpecData{Major: 1, Minor: 3}, vfs.SetAttr{})
	require.NoError(t, err)
	assert.Equal(t, vfs.TypeChr, attr.Type)
	assert.Equal(t, vfs.SpecData{Major: 1, Minor: 3}, attr.Rdev)
	assert.NotZero(t, id)

	_, _, err = fs.Mknod(ctx(), fs.RootDir(), "bad", vfs.TypeReg, vfs.SpecData{}, vfs.SetAttr{})
	assert.ErrorIs(t, err, vfs.ErrBadType)
}

func TestSetAttr(t *testing.T) {
	fs := New()
	id, _ := fs.AddFile("f", []byte("0123456789"))

	mode := uint32(0600)
	size := uint64(4)
	attr, err := fs.SetAttr(ctx(), id, vfs.SetAttr{Mode: &mode, Size: &size})
	require.NoError(t, err)
	assert.EqualValues(t, 0600, attr.Mode)
	assert.EqualValues(t, 4, attr.Size)

	mtime := vfs.Time{Seconds: 1234, Nseconds: 5678}
	attr, err = fs.SetAttr(ctx(), id, vfs.SetAttr{Mtime: vfs.SetTime{How: vfs.SetToClientTime, Time: mtime}})
	require.NoError(t, err)
	assert.Equal(t, mtime, attr.Mtime)
}

func TestCapabilities(t *testing.T) {
	fs := New()
	assert.Equal(t, vfs.ReadWrite, fs.Capabilities())

	fs.SetReadOnly(true)
	assert.Equal(t, vfs.ReadOnly, fs.Capabilities())
}

func TestDotAndDotDotLookup(t *testing.T) {
	fs := New()
	dirID, _ := fs.AddDir("d")

	self, err := fs.Lookup(ctx(), dirID, ".")
	require.NoError(t, err)
	assert.Equal(t, dirID, self)

	rootSelf, err := fs.Lookup(ctx(), fs.RootDir(), "..")
	require.NoError(t, err)
	assert.Equal(t, fs.RootDir(), rootSelf)
}

func TestReadDirSimpleDefault(t *testing.T) {
	fs := New()
	fs.AddFile("x", nil)
	fs.AddFile("y", nil)

	result, err := vfs.ReadDirSimple(ctx(), fs, fs.RootDir(), 10)
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.True(t, result.End)
	for _, e := range result.Entries {
		assert.NotZero(t, e.FileID)
		assert.NotEmpty(t, e.Name)
	}
}

func TestPathToIDIntegration(t *testing.T) {
	fs := New()
	id, _ := fs.AddFile("a/b/c.txt", []byte("deep"))

	got, err := vfs.PathToID(ctx(), fs, "/a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
