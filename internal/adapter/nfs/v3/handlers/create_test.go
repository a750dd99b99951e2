package handlers_test

import (
	"testing"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/adapter/nfs/v3/handlers"
	"github.com/quillfs/quillnfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_Unchecked(t *testing.T) {
	fx := NewHandlerFixture(t)

	resp, err := fx.Handler.Create(fx.Context(), &handlers.CreateRequest{
		DirHandle: fx.RootHandle(),
		Name:      "new.txt",
		Mode:      types.CreateUnchecked,
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	assert.Len(t, resp.Handle, vfs.HandleSize)
	require.NotNil(t, resp.Attr)
	assert.Equal(t, vfs.TypeReg, resp.Attr.Type)
	require.NotNil(t, resp.DirWcc.Before, "parent wcc captured before the mutation")
	require.NotNil(t, resp.DirWcc.After)
}

func TestCreate_GuardedRefusesExisting(t *testing.T) {
	fx := NewHandlerFixture(t)
	fx.CreateFile("taken", nil)

	resp, err := fx.Handler.Create(fx.Context(), &handlers.CreateRequest{
		DirHandle: fx.RootHandle(),
		Name:      "taken",
		Mode:      types.CreateGuarded,
	})
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3ErrExist, resp.Status)
	assert.Nil(t, resp.Handle)
}

func TestCreate_Exclusive(t *testing.T) {
	fx := NewHandlerFixture(t)

	req := &handlers.CreateRequest{
		DirHandle: fx.RootHandle(),
		Name:      "excl",
		Mode:      types.CreateExclusive,
	}

	resp, err := fx.Handler.Create(fx.Context(), req)
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3OK, resp.Status)

	resp, err = fx.Handler.Create(fx.Context(), req)
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3ErrExist, resp.Status)
}

func TestCreate_ReadOnlyFS(t *testing.T) {
	fx := NewHandlerFixture(t)
	fx.FS.SetReadOnly(true)

	resp, err := fx.Handler.Create(fx.Context(), &handlers.CreateRequest{
		DirHandle: fx.RootHandle(),
		Name:      "nope",
		Mode:      types.CreateUnchecked,
	})
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3ErrROFS, resp.Status)
}

func TestMkdir(t *testing.T) {
	fx := NewHandlerFixture(t)

	resp, err := fx.Handler.Mkdir(fx.Context(), &handlers.MkdirRequest{
		DirHandle: fx.RootHandle(),
		Name:      "subdir",
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	require.NotNil(t, resp.Attr)
	assert.Equal(t, vfs.TypeDir, resp.Attr.Type)

	// New directory is visible to LOOKUP.
	lookup, err := fx.Handler.Lookup(fx.Context(), &handlers.LookupRequest{
		DirHandle: fx.RootHandle(),
		Name:      "subdir",
	})
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3OK, lookup.Status)
}

func TestRemove_FileAndWcc(t *testing.T) {
	fx := NewHandlerFixture(t)
	fx.CreateFile("victim", []byte("x"))

	resp, err := fx.Handler.Remove(fx.Context(), &handlers.RemoveRequest{
		DirHandle: fx.RootHandle(),
		Name:      "victim",
	})
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3OK, resp.Status)
	assert.NotNil(t, resp.DirWcc.Before)
	assert.NotNil(t, resp.DirWcc.After)

	lookup, err := fx.Handler.Lookup(fx.Context(), &handlers.LookupRequest{
		DirHandle: fx.RootHandle(),
		Name:      "victim",
	})
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3ErrNoEnt, lookup.Status)
}

func TestRemove_NonEmptyDirectory(t *testing.T) {
	fx := NewHandlerFixture(t)
	fx.CreateFile("full/inner", nil)

	resp, err := fx.Handler.Remove(fx.Context(), &handlers.RemoveRequest{
		DirHandle: fx.RootHandle(),
		Name:      "full",
	})
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3ErrNotEmpty, resp.Status)
	assert.NotNil(t, resp.DirWcc.Before, "failure reply still carries wcc_data")
}

func TestRename(t *testing.T) {
	fx := NewHandlerFixture(t)
	fx.CreateFile("src/a.txt", nil)
	srcHandle := fx.MustGetHandle("src")
	dstHandle := fx.CreateDirectory("dst")

	resp, err := fx.Handler.Rename(fx.Context(), &handlers.RenameRequest{
		FromDirHandle: srcHandle,
		FromName:      "a.txt",
		ToDirHandle:   dstHandle,
		ToName:        "b.txt",
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	assert.NotNil(t, resp.FromDirWcc.Before)
	assert.NotNil(t, resp.FromDirWcc.After)
	assert.NotNil(t, resp.ToDirWcc.Before)
	assert.NotNil(t, resp.ToDirWcc.After)
}

func TestLink(t *testing.T) {
	fx := NewHandlerFixture(t)
	fileHandle := fx.CreateFile("orig", []byte("shared"))
	dirHandle := fx.CreateDirectory("d")

	resp, err := fx.Handler.Link(fx.Context(), &handlers.LinkRequest{
		Handle:    fileHandle,
		DirHandle: dirHandle,
		Name:      "alias",
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	require.NotNil(t, resp.Attr)
	assert.EqualValues(t, 2, resp.Attr.Nlink)
	assert.NotNil(t, resp.DirWcc.After)
}

func TestLink_ExistingNameFailureStillReportsBoth(t *testing.T) {
	fx := NewHandlerFixture(t)
	fileHandle := fx.CreateFile("orig", nil)
	fx.CreateFile("d/alias", nil)
	dirHandle := fx.MustGetHandle("d")

	resp, err := fx.Handler.Link(fx.Context(), &handlers.LinkRequest{
		Handle:    fileHandle,
		DirHandle: dirHandle,
		Name:      "alias",
	})
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3ErrExist, resp.Status)
	assert.NotNil(t, resp.Attr, "failure still attempts the file's attributes")
	assert.NotNil(t, resp.DirWcc.After, "failure still attempts the directory's wcc")
}

func TestSymlink(t *testing.T) {
	fx := NewHandlerFixture(t)

	resp, err := fx.Handler.Symlink(fx.Context(), &handlers.SymlinkRequest{
		DirHandle: fx.RootHandle(),
		Name:      "ln",
		Target:    "../there",
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	require.NotNil(t, resp.Attr)
	assert.Equal(t, vfs.TypeLnk, resp.Attr.Type)
}

func TestMknod(t *testing.T) {
	fx := NewHandlerFixture(t)

	resp, err := fx.Handler.Mknod(fx.Context(), &handlers.MknodRequest{
		DirHandle: fx.RootHandle(),
		Name:      "null",
		Type:      vfs.TypeChr,
		Spec:      vfs.SpecData{Major: 1, Minor: 3},
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	require.NotNil(t, resp.Attr)
	assert.Equal(t, vfs.TypeChr, resp.Attr.Type)
	assert.Equal(t, vfs.SpecData{Major: 1, Minor: 3}, resp.Attr.Rdev)
}
