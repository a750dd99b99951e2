package vfs

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"time"
)

// Opaque file handles.
//
// Clients retain handles across operations, so a handle must identify a
// file for as long as the serving process lives and expire when it
// restarts. The layout is exactly 16 bytes:
//
//	bytes 0..8   generation number, little-endian uint64
//	bytes 8..16  file ID, little-endian uint64
//
// The generation number is the process start time in milliseconds since the
// epoch, computed once per process. A handle with an older generation was
// issued by a previous incarnation (stale); a newer one can only be forged
// or corrupt (bad handle).

// HandleSize is the wire size of every handle issued by this server.
const HandleSize = 16

var (
	generationOnce  sync.Once
	generationValue uint64
)

// GenerationNumber returns the process-wide handle generation number.
// Lazily initialized on first use, constant thereafter. Never regenerated
// during a process's lifetime; every issued handle embeds it.
func GenerationNumber() uint64 {
	generationOnce.Do(func() {
		generationValue = uint64(time.Now().UnixMilli())
	})
	return generationValue
}

// IDToHandle packs a file ID into an opaque handle.
func IDToHandle(id uint64) []byte {
	handle := make([]byte, HandleSize)
	binary.LittleEndian.PutUint64(handle[0:8], GenerationNumber())
	binary.LittleEndian.PutUint64(handle[8:16], id)
	return handle
}

// HandleToID unpacks an opaque handle back into a file ID.
//
// Errors:
//   - ErrBadHandle when the length is not 16 bytes or the generation is
//     newer than this process's
//   - ErrStale when the generation is older (handle from a previous server
//     incarnation)
func HandleToID(handle []byte) (uint64, error) {
	if len(handle) != HandleSize {
		return 0, ErrBadHandle
	}

	gen := binary.LittleEndian.Uint64(handle[0:8])
	id := binary.LittleEndian.Uint64(handle[8:16])

	current := GenerationNumber()
	switch {
	case gen < current:
		return 0, ErrStale
	case gen > current:
		return 0, ErrBadHandle
	default:
		return id, nil
	}
}

// ServerVerifier returns the 8-byte verifier advertised in WRITE and COMMIT
// replies and reused as the write verifier: the little-endian generation
// number. A client that sees it change knows the server restarted and
// re-sends uncommitted writes.
func ServerVerifier() [8]byte {
	var verf [8]byte
	binary.LittleEndian.PutUint64(verf[:], GenerationNumber())
	return verf
}

// PathToID resolves a slash-separated path to a file ID by walking Lookup
// from the root. Empty components are skipped, so "/", "//a" and "a/" all
// behave as expected.
func PathToID(ctx context.Context, fs FileSystem, path string) (uint64, error) {
	id := fs.RootDir()
	for _, component := range strings.Split(path, "/") {
		if component == "" {
			continue
		}
		var err error
		if id, err = fs.Lookup(ctx, id, component); err != nil {
			return 0, err
		}
	}
	return id, nil
}
