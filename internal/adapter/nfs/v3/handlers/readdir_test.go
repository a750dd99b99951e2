package handlers_test

import (
	"fmt"
	"testing"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	"github.com/quillfs/quillnfs/internal/adapter/nfs/v3/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDir_EmptyDirectory(t *testing.T) {
	fx := NewHandlerFixture(t)
	dirHandle := fx.CreateDirectory("empty")

	resp, err := fx.Handler.ReadDir(fx.Context(), &handlers.ReadDirRequest{
		DirHandle: dirHandle,
		Count:     4096,
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	assert.Empty(t, resp.Entries)
	assert.True(t, resp.Eof)
}

func TestReadDir_AllEntries(t *testing.T) {
	fx := NewHandlerFixture(t)
	fx.CreateFile("d/one", nil)
	fx.CreateFile("d/two", nil)
	fx.CreateFile("d/three", nil)
	dirHandle := fx.MustGetHandle("d")

	resp, err := fx.Handler.ReadDir(fx.Context(), &handlers.ReadDirRequest{
		DirHandle: dirHandle,
		Count:     4096,
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	assert.Len(t, resp.Entries, 3)
	assert.True(t, resp.Eof)

	names := make([]string, len(resp.Entries))
	for i, e := range resp.Entries {
		names[i] = e.Name
	}
	assert.ElementsMatch(t, []string{"one", "two", "three"}, names)
}

func TestReadDir_ByteBudgetTruncates(t *testing.T) {
	fx := NewHandlerFixture(t)
	for i := 0; i < 5; i++ {
		fx.CreateFile(fmt.Sprintf("d/f%d", i), nil)
	}
	dirHandle := fx.MustGetHandle("d")

	resp, err := fx.Handler.ReadDir(fx.Context(), &handlers.ReadDirRequest{
		DirHandle: dirHandle,
		Count:     300,
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	assert.NotEmpty(t, resp.Entries)
	assert.Less(t, len(resp.Entries), 5, "small budget cannot fit everything")
	assert.False(t, resp.Eof, "truncated listing must not claim eof")

	// The encoded reply respects the client's byte limit.
	encoded, err := resp.Encode()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(encoded), 300)
}

func TestReadDir_CookieResumes(t *testing.T) {
	fx := NewHandlerFixture(t)
	for i := 0; i < 6; i++ {
		fx.CreateFile(fmt.Sprintf("d/f%d", i), nil)
	}
	dirHandle := fx.MustGetHandle("d")

	seen := map[string]bool{}
	cookie := uint64(0)
	pages := 0

	for {
		resp, err := fx.Handler.ReadDir(fx.Context(), &handlers.ReadDirRequest{
			DirHandle: dirHandle,
			Cookie:    cookie,
			Count:     320,
		})
		require.NoError(t, err)
		require.EqualValues(t, types.NFS3OK, resp.Status)

		for _, entry := range resp.Entries {
			assert.False(t, seen[entry.Name], "no entry repeats across pages")
			seen[entry.Name] = true
			cookie = entry.FileID
		}

		pages++
		require.Less(t, pages, 20, "pagination must terminate")
		if resp.Eof {
			break
		}
		require.NotEmpty(t, resp.Entries, "progress on every non-final page")
	}

	assert.Len(t, seen, 6, "every entry listed exactly once")
	assert.Greater(t, pages, 1, "budget forces multiple pages")
}

func TestReadDir_CookieVerifierFromMtime(t *testing.T) {
	fx := NewHandlerFixture(t)
	dirHandle := fx.CreateDirectory("d")
	attr := fx.Attr(dirHandle)

	resp, err := fx.Handler.ReadDir(fx.Context(), &handlers.ReadDirRequest{DirHandle: dirHandle, Count: 4096})
	require.NoError(t, err)

	want := uint64(attr.Mtime.Seconds)<<32 | uint64(attr.Mtime.Nseconds)
	assert.Equal(t, want, resp.CookieVerf)

	// A client's stale verifier is never rejected.
	resp, err = fx.Handler.ReadDir(fx.Context(), &handlers.ReadDirRequest{
		DirHandle:  dirHandle,
		CookieVerf: 0xdeadbeef,
		Count:      4096,
	})
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3OK, resp.Status, "stale cookie verifiers are accepted")
}

func TestReadDirPlus_EntriesCarryAttrsAndHandles(t *testing.T) {
	fx := NewHandlerFixture(t)
	fx.CreateFile("d/file1", []byte("1"))
	fx.CreateFile("d/file2", []byte("22"))
	dirHandle := fx.MustGetHandle("d")

	resp, err := fx.Handler.ReadDirPlus(fx.Context(), &handlers.ReadDirPlusRequest{
		DirHandle: dirHandle,
		DirCount:  4096,
		MaxCount:  65536,
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	require.Len(t, resp.Entries, 2)
	assert.True(t, resp.Eof)
	for _, entry := range resp.Entries {
		assert.NotNil(t, entry.Attr, "entry %q carries attributes", entry.Name)
		assert.Len(t, entry.Handle, 16, "entry %q carries a handle", entry.Name)
		assert.Equal(t, entry.FileID, entry.Attr.FileID)
	}
}

// A dircount of 200 over 50 entries with 10-byte names admits at most 6
// entries (each contributes 8+4+10+8 = 30 dircount bytes) and must not
// claim eof.
func TestReadDirPlus_DirCountBudget(t *testing.T) {
	fx := NewHandlerFixture(t)
	for i := 0; i < 50; i++ {
		fx.CreateFile(fmt.Sprintf("big/name-%05d", i), nil) // 10-byte names
	}
	dirHandle := fx.MustGetHandle("big")

	resp, err := fx.Handler.ReadDirPlus(fx.Context(), &handlers.ReadDirPlusRequest{
		DirHandle: dirHandle,
		DirCount:  200,
		MaxCount:  8192,
	})
	require.NoError(t, err)

	assert.EqualValues(t, types.NFS3OK, resp.Status)
	assert.NotEmpty(t, resp.Entries)
	assert.LessOrEqual(t, len(resp.Entries), 6)
	assert.False(t, resp.Eof)

	// Per-entry dircount accounting stays within the budget.
	used := 0
	for _, entry := range resp.Entries {
		used += 8 + 4 + len(entry.Name) + 8
	}
	assert.Less(t, used, 200)
}

func TestReadDirPlus_MaxCountBudget(t *testing.T) {
	fx := NewHandlerFixture(t)
	for i := 0; i < 30; i++ {
		fx.CreateFile(fmt.Sprintf("d/entry-%02d", i), nil)
	}
	dirHandle := fx.MustGetHandle("d")

	resp, err := fx.Handler.ReadDirPlus(fx.Context(), &handlers.ReadDirPlusRequest{
		DirHandle: dirHandle,
		DirCount:  8192,
		MaxCount:  1024,
	})
	require.NoError(t, err)

	assert.Less(t, len(resp.Entries), 30)
	assert.False(t, resp.Eof)

	encoded, err := resp.Encode()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(encoded), 1024, "whole reply stays within maxcount")
}

func TestReadDirPlus_BadHandle(t *testing.T) {
	fx := NewHandlerFixture(t)

	resp, err := fx.Handler.ReadDirPlus(fx.Context(), &handlers.ReadDirPlusRequest{
		DirHandle: badHandle(),
		DirCount:  4096,
		MaxCount:  8192,
	})
	require.NoError(t, err)
	assert.EqualValues(t, types.NFS3ErrBadHandle, resp.Status)
}
