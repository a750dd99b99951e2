// Package vfs defines the file-system contract an embedder implements to
// serve an export over NFSv3.
//
// Files are identified by a 64-bit file ID (inode-like; 0 is reserved and
// invalid). The opaque NFS file handle wrapping that ID is produced by this
// package (see handle.go) and never concerns the implementation.
//
// Implementations must be safe for concurrent use: multiple procedure
// handlers invoke the interface in parallel, each potentially blocking on
// I/O. The server core holds a single shared handle and performs no
// locking of its own.
//
// GetAttr should be fast; NFS clients call it constantly.
package vfs

import "context"

// Capabilities describes what an implementation supports.
type Capabilities int

const (
	// ReadOnly file systems reject every mutating procedure with ErrROFS
	// before the VFS is consulted.
	ReadOnly Capabilities = iota

	// ReadWrite file systems receive the full operation set.
	ReadWrite
)

// FileType is the ftype3 enumeration from RFC 1813.
type FileType uint32

const (
	TypeReg  FileType = 1 // regular file
	TypeDir  FileType = 2 // directory
	TypeBlk  FileType = 3 // block special device
	TypeChr  FileType = 4 // character special device
	TypeLnk  FileType = 5 // symbolic link
	TypeSock FileType = 6 // socket
	TypeFifo FileType = 7 // named pipe
)

// Time is an nfstime3: seconds and nanoseconds since the epoch.
type Time struct {
	Seconds  uint32
	Nseconds uint32
}

// SpecData carries the major/minor numbers of a special device.
type SpecData struct {
	Major uint32
	Minor uint32
}

// FileAttr is the full attribute set of a file (fattr3 minus the wire
// encoding). Every field is returned by GetAttr and echoed into post-op
// attributes on the wire.
type FileAttr struct {
	Type  FileType
	Mode  uint32
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  uint64
	Used  uint64
	Rdev  SpecData
	Fsid  uint64
	// FileID is set by implementations to the object's file ID.
	FileID uint64
	Atime  Time
	Mtime  Time
	Ctime  Time
}

// TimeHow selects how SETATTR updates a timestamp (set_atime/set_mtime).
type TimeHow uint32

const (
	// DontChange leaves the timestamp untouched.
	DontChange TimeHow = 0

	// SetToServerTime stamps the server's current time.
	SetToServerTime TimeHow = 1

	// SetToClientTime stamps the client-provided time.
	SetToClientTime TimeHow = 2
)

// SetTime is a timestamp update instruction.
type SetTime struct {
	How  TimeHow
	Time Time // valid only when How == SetToClientTime
}

// SetAttr is a decoded sattr3: each nil pointer / DontChange field leaves
// the corresponding attribute unchanged.
type SetAttr struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Size  *uint64
	Atime SetTime
	Mtime SetTime
}

// DirEntry is one directory entry with full attributes, as returned by
// ReadDir for READDIRPLUS.
type DirEntry struct {
	FileID uint64
	Name   string
	Attr   FileAttr
}

// ReadDirResult is a page of directory entries. End is true when the last
// entry of the directory is included.
type ReadDirResult struct {
	Entries []DirEntry
	End     bool
}

// DirEntrySimple is a name/ID pair for plain READDIR.
type DirEntrySimple struct {
	FileID uint64
	Name   string
}

// ReadDirSimpleResult is the plain-READDIR counterpart of ReadDirResult.
type ReadDirSimpleResult struct {
	Entries []DirEntrySimple
	End     bool
}

// FileSystem is the operation set the server core dispatches into.
//
// Every operation returns an error that is either nil, a vfs.Error carrying
// the nfsstat3 to put on the wire, or an arbitrary error (reported to the
// client as NFS3ERR_IO). Mutating operations on a ReadOnly file system are
// never invoked; the core answers NFS3ERR_ROFS itself.
type FileSystem interface {
	// Capabilities reports whether the file system accepts mutations.
	Capabilities() Capabilities

	// RootDir returns the file ID of the exported root directory.
	RootDir() uint64

	// Lookup resolves a name within a directory to its file ID.
	// Called very frequently; implementations should make it fast.
	Lookup(ctx context.Context, dir uint64, name string) (uint64, error)

	// GetAttr returns the attributes of a file ID.
	// Called very frequently; implementations should make it fast.
	GetAttr(ctx context.Context, id uint64) (FileAttr, error)

	// SetAttr applies the given attribute changes and returns the
	// resulting attributes.
	SetAttr(ctx context.Context, id uint64, attr SetAttr) (FileAttr, error)

	// Read returns up to count bytes starting at offset, plus an EOF flag.
	// Reads past the end of file return the available bytes with eof=true.
	Read(ctx context.Context, id uint64, offset uint64, count uint32) ([]byte, bool, error)

	// Write stores data at offset, extending the file as needed, and
	// returns the file's resulting attributes.
	Write(ctx context.Context, id uint64, offset uint64, data []byte) (FileAttr, error)

	// Create makes a regular file in dir, applying attr, and returns the
	// new file's ID and attributes. An existing file of the same name is
	// truncated (UNCHECKED create semantics).
	Create(ctx context.Context, dir uint64, name string, attr SetAttr) (uint64, FileAttr, error)

	// CreateExclusive makes a regular file only if the name does not
	// already exist, returning ErrExist otherwise.
	CreateExclusive(ctx context.Context, dir uint64, name string) (uint64, error)

	// Mkdir makes a directory and returns its ID and attributes.
	Mkdir(ctx context.Context, dir uint64, name string) (uint64, FileAttr, error)

	// Remove deletes a file or directory entry from dir.
	Remove(ctx context.Context, dir uint64, name string) error

	// Rename moves fromName in fromDir to toName in toDir, replacing any
	// existing target.
	Rename(ctx context.Context, fromDir uint64, fromName string, toDir uint64, toName string) error

	// ReadDir returns up to maxEntries directory entries in a
	// deterministic order, resuming after the entry whose file ID is
	// startAfter (0 starts from the beginning). startAfter may name any
	// position, including the last entry of the previous page.
	ReadDir(ctx context.Context, dir uint64, startAfter uint64, maxEntries int) (ReadDirResult, error)

	// Symlink creates a symbolic link holding target.
	Symlink(ctx context.Context, dir uint64, name string, target string, attr SetAttr) (uint64, FileAttr, error)

	// Readlink returns the target of a symbolic link.
	Readlink(ctx context.Context, id uint64) (string, error)

	// Link creates a hard link to id under dir/name and returns the
	// file's resulting attributes.
	Link(ctx context.Context, id uint64, dir uint64, name string) (FileAttr, error)

	// Mknod creates a special node (device, socket or FIFO).
	Mknod(ctx context.Context, dir uint64, name string, ftype FileType, spec SpecData, attr SetAttr) (uint64, FileAttr, error)

	// Commit flushes previously written data in [offset, offset+count) to
	// stable storage and returns the file's resulting attributes.
	Commit(ctx context.Context, id uint64, offset uint64, count uint32) (FileAttr, error)
}

// ReadDirSimple lists a directory for plain READDIR: names and IDs only.
// This is the core-provided default built on ReadDir; implementations with
// a cheaper listing path may shadow it via the ReadDirSimpler interface.
func ReadDirSimple(ctx context.Context, fs FileSystem, dir uint64, count int) (ReadDirSimpleResult, error) {
	if simpler, ok := fs.(ReadDirSimpler); ok {
		return simpler.ReadDirSimple(ctx, dir, count)
	}

	result, err := fs.ReadDir(ctx, dir, 0, count)
	if err != nil {
		return ReadDirSimpleResult{}, err
	}

	entries := make([]DirEntrySimple, len(result.Entries))
	for i, e := range result.Entries {
		entries[i] = DirEntrySimple{FileID: e.FileID, Name: e.Name}
	}
	return ReadDirSimpleResult{Entries: entries, End: result.End}, nil
}

// ReadDirSimpler is the optional fast path for ReadDirSimple.
type ReadDirSimpler interface {
	ReadDirSimple(ctx context.Context, dir uint64, count int) (ReadDirSimpleResult, error)
}

// FSInfo is the static file-system information advertised by FSINFO.
type FSInfo struct {
	RTMax       uint32
	RTPref      uint32
	RTMult      uint32
	WTMax       uint32
	WTPref      uint32
	WTMult      uint32
	DTPref      uint32
	MaxFileSize uint64
	TimeDelta   Time
	Properties  uint32
}

// FSINFO properties bitmask (RFC 1813 Section 3.3.19).
const (
	FSFLink        = 0x0001
	FSFSymlink     = 0x0002
	FSFHomogeneous = 0x0008
	FSFCanSetTime  = 0x0010
)

// DefaultFSInfo returns the constants this server advertises unless the
// file system provides its own via FSInfoProvider.
func DefaultFSInfo() FSInfo {
	return FSInfo{
		RTMax:       1024 * 1024,
		RTPref:      1024 * 124,
		RTMult:      1024 * 1024,
		WTMax:       1024 * 1024,
		WTPref:      1024 * 1024,
		WTMult:      1024 * 1024,
		DTPref:      1024 * 1024,
		MaxFileSize: 128 * 1024 * 1024 * 1024,
		TimeDelta:   Time{Seconds: 0, Nseconds: 1000000},
		Properties:  FSFSymlink | FSFHomogeneous | FSFCanSetTime,
	}
}

// FSInfoProvider lets a file system override the advertised FSINFO values.
type FSInfoProvider interface {
	FSInfo(ctx context.Context, root uint64) (FSInfo, error)
}

// GetFSInfo resolves the FSINFO values for a file system.
func GetFSInfo(ctx context.Context, fs FileSystem, root uint64) (FSInfo, error) {
	if provider, ok := fs.(FSInfoProvider); ok {
		return provider.FSInfo(ctx, root)
	}
	return DefaultFSInfo(), nil
}
