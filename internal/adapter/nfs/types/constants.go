package types

// NFSv3 protocol constants, transcribed from RFC 1813.

// nfsstat3 values (RFC 1813 Section 2.6).
const (
	NFS3OK             uint32 = 0
	NFS3ErrPerm        uint32 = 1
	NFS3ErrNoEnt       uint32 = 2
	NFS3ErrIO          uint32 = 5
	NFS3ErrNXIO        uint32 = 6
	NFS3ErrAcces       uint32 = 13
	NFS3ErrExist       uint32 = 17
	NFS3ErrXDev        uint32 = 18
	NFS3ErrNoDev       uint32 = 19
	NFS3ErrNotDir      uint32 = 20
	NFS3ErrIsDir       uint32 = 21
	NFS3ErrInval       uint32 = 22
	NFS3ErrFBig        uint32 = 27
	NFS3ErrNoSpc       uint32 = 28
	NFS3ErrROFS        uint32 = 30
	NFS3ErrMLink       uint32 = 31
	NFS3ErrNameTooLong uint32 = 63
	NFS3ErrNotEmpty    uint32 = 66
	NFS3ErrDQuot       uint32 = 69
	NFS3ErrStale       uint32 = 70
	NFS3ErrRemote      uint32 = 71
	NFS3ErrBadHandle   uint32 = 10001
	NFS3ErrNotSync     uint32 = 10002
	NFS3ErrBadCookie   uint32 = 10003
	NFS3ErrNotSupp     uint32 = 10004
	NFS3ErrTooSmall    uint32 = 10005
	NFS3ErrServerFault uint32 = 10006
	NFS3ErrBadType     uint32 = 10007
	NFS3ErrJukebox     uint32 = 10008
)

// NFSv3 procedure numbers (RFC 1813 Section 3).
const (
	NFSProc3Null        uint32 = 0
	NFSProc3GetAttr     uint32 = 1
	NFSProc3SetAttr     uint32 = 2
	NFSProc3Lookup      uint32 = 3
	NFSProc3Access      uint32 = 4
	NFSProc3Readlink    uint32 = 5
	NFSProc3Read        uint32 = 6
	NFSProc3Write       uint32 = 7
	NFSProc3Create      uint32 = 8
	NFSProc3Mkdir       uint32 = 9
	NFSProc3Symlink     uint32 = 10
	NFSProc3Mknod       uint32 = 11
	NFSProc3Remove      uint32 = 12
	NFSProc3Rmdir       uint32 = 13
	NFSProc3Rename      uint32 = 14
	NFSProc3Link        uint32 = 15
	NFSProc3ReadDir     uint32 = 16
	NFSProc3ReadDirPlus uint32 = 17
	NFSProc3FSStat      uint32 = 18
	NFSProc3FSInfo      uint32 = 19
	NFSProc3PathConf    uint32 = 20
	NFSProc3Commit      uint32 = 21
)

// ACCESS permission bits (RFC 1813 Section 3.3.4).
const (
	AccessRead    uint32 = 0x0001 // read file data / list directory
	AccessLookup  uint32 = 0x0002 // look up names in directory
	AccessModify  uint32 = 0x0004 // modify file data / directory entries
	AccessExtend  uint32 = 0x0008 // extend file / add directory entries
	AccessDelete  uint32 = 0x0010 // delete file or directory entry
	AccessExecute uint32 = 0x0020 // execute file / traverse directory
)

// stable_how values for WRITE (RFC 1813 Section 3.3.7).
const (
	UnstableWrite uint32 = 0
	DataSyncWrite uint32 = 1
	FileSyncWrite uint32 = 2
)

// createmode3 values for CREATE (RFC 1813 Section 3.3.8).
const (
	CreateUnchecked uint32 = 0
	CreateGuarded   uint32 = 1
	CreateExclusive uint32 = 2
)

// MaxHandleSize is the RFC 1813 ceiling for an nfs_fh3 (FHSIZE3).
const MaxHandleSize = 64

// MaxNameLength bounds single path components, matching PATHCONF name_max.
const MaxNameLength = 255

// MaxPathLength bounds nfspath3 values (symlink targets, mount paths).
const MaxPathLength = 1024
