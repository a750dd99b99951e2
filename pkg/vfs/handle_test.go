package vfs

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRoundTrip(t *testing.T) {
	for _, id := range []uint64{1, 2, 42, 1 << 40, ^uint64(0)} {
		handle := IDToHandle(id)
		require.Len(t, handle, HandleSize)

		got, err := HandleToID(handle)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestHandleToIDWrongLength(t *testing.T) {
	for _, size := range []int{0, 8, 15, 17, 64} {
		_, err := HandleToID(make([]byte, size))
		assert.ErrorIs(t, err, ErrBadHandle, "length %d", size)
	}
}

func TestHandleToIDStaleGeneration(t *testing.T) {
	handle := IDToHandle(7)
	binary.LittleEndian.PutUint64(handle[0:8], GenerationNumber()-1)

	_, err := HandleToID(handle)
	assert.ErrorIs(t, err, ErrStale)
}

func TestHandleToIDFutureGeneration(t *testing.T) {
	handle := IDToHandle(7)
	binary.LittleEndian.PutUint64(handle[0:8], GenerationNumber()+1)

	_, err := HandleToID(handle)
	assert.ErrorIs(t, err, ErrBadHandle)
}

func TestGenerationNumberStable(t *testing.T) {
	assert.Equal(t, GenerationNumber(), GenerationNumber())
}

func TestServerVerifierMatchesGeneration(t *testing.T) {
	verf := ServerVerifier()
	assert.Equal(t, GenerationNumber(), binary.LittleEndian.Uint64(verf[:]))
}

func TestStatusMapping(t *testing.T) {
	assert.EqualValues(t, 0, Status(nil))
	assert.EqualValues(t, ErrNoEnt, Status(ErrNoEnt))
	assert.EqualValues(t, ErrStale, Status(ErrStale))
	assert.EqualValues(t, ErrIO, Status(assert.AnError), "unknown errors map to NFS3ERR_IO")
}

// walkFS is a minimal FileSystem for exercising PathToID.
type walkFS struct {
	FileSystem
	dirs map[uint64]map[string]uint64
}

func (f *walkFS) RootDir() uint64 { return 1 }

func (f *walkFS) Lookup(_ context.Context, dir uint64, name string) (uint64, error) {
	entries, ok := f.dirs[dir]
	if !ok {
		return 0, ErrNotDir
	}
	id, ok := entries[name]
	if !ok {
		return 0, ErrNoEnt
	}
	return id, nil
}

func TestPathToID(t *testing.T) {
	fs := &walkFS{dirs: map[uint64]map[string]uint64{
		1: {"a": 2},
		2: {"b.txt": 3},
	}}

	ctx := context.Background()

	id, err := PathToID(ctx, fs, "/")
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)

	id, err = PathToID(ctx, fs, "/a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, id)

	id, err = PathToID(ctx, fs, "/a/b.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 3, id)

	id, err = PathToID(ctx, fs, "//a//b.txt/")
	require.NoError(t, err)
	assert.EqualValues(t, 3, id, "empty components are skipped")

	_, err = PathToID(ctx, fs, "/missing")
	assert.ErrorIs(t, err, ErrNoEnt)
}
