package rpc

// ONC RPC v2 protocol constants, transcribed from RFC 1057 / RFC 5531.

// RPCVersion2 is the only supported RPC protocol version.
const RPCVersion2 = 2

// Program numbers served (or explicitly refused) by this library.
const (
	// ProgramPortmap is the portmapper program (RFC 1057 Appendix A).
	ProgramPortmap = 100000

	// ProgramNFS is the NFS program (RFC 1813).
	ProgramNFS = 100003

	// ProgramMount is the MOUNT program (RFC 1813 Appendix I).
	ProgramMount = 100005

	// ProgramNFSACL is the NFS Access Control List side protocol.
	// Refused with PROG_UNAVAIL; Linux clients probe it on every mount.
	ProgramNFSACL = 100227

	// ProgramNFSIDMap is the NFS ID mapping side protocol. Refused.
	ProgramNFSIDMap = 100270

	// ProgramNFSMetadata is a vendor metadata side protocol. Refused.
	ProgramNFSMetadata = 200024
)

// Program versions.
const (
	NFSVersion3     = 3
	MountVersion3   = 3
	PortmapVersion2 = 2
)

// Message types (msg_type in RFC 1057 Section 8).
const (
	RPCCall  = 0
	RPCReply = 1
)

// Reply status (reply_stat).
const (
	MsgAccepted = 0
	MsgDenied   = 1
)

// Accept status (accept_stat) for MSG_ACCEPTED replies.
const (
	AcceptSuccess      = 0 // RPC executed successfully
	AcceptProgUnavail  = 1 // remote hasn't exported program
	AcceptProgMismatch = 2 // remote can't support version number
	AcceptProcUnavail  = 3 // program can't support procedure
	AcceptGarbageArgs  = 4 // procedure can't decode params
	AcceptSystemErr    = 5 // errors like memory allocation failure
)

// Reject status (reject_stat) for MSG_DENIED replies.
const (
	RejectRPCMismatch = 0 // RPC version number != 2
	RejectAuthError   = 1 // remote can't authenticate caller
)

// Authentication flavors (RFC 1057 Section 9).
const (
	AuthNull  = 0
	AuthUnix  = 1
	AuthShort = 2
	AuthDES   = 3
)

// MaxAuthBodyLength is the RFC 1057 limit on opaque auth bodies (400 bytes).
const MaxAuthBodyLength = 400
