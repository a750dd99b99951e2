package rpc

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/protocol/xdr"
)

// UnixAuth holds parsed AUTH_UNIX (AUTH_SYS) credentials.
//
// Wire layout (RFC 1057 Section 9.2):
//
//	stamp       uint32
//	machinename string<255>
//	uid         uint32
//	gid         uint32
//	gids        uint32<16>
type UnixAuth struct {
	// Stamp is an arbitrary ID generated by the caller's machine.
	Stamp uint32

	// MachineName is the name of the caller's machine.
	MachineName string

	// UID is the caller's effective user ID.
	UID uint32

	// GID is the caller's effective group ID.
	GID uint32

	// GIDs are groups the caller is a member of (at most 16).
	GIDs []uint32
}

// maxUnixAuthGIDs is the RFC 1057 limit on supplementary groups.
const maxUnixAuthGIDs = 16

// ParseUnixAuth decodes an AUTH_UNIX credential body.
//
// Credential parsing is best-effort in the dispatcher: a malformed body is
// logged and the request proceeds unauthenticated, so this function reports
// errors rather than terminating anything.
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	reader := bytes.NewReader(body)

	auth := &UnixAuth{}

	var err error
	if auth.Stamp, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode stamp: %w", err)
	}
	if auth.MachineName, err = xdr.DecodeString(reader); err != nil {
		return nil, fmt.Errorf("decode machine name: %w", err)
	}
	if auth.UID, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode uid: %w", err)
	}
	if auth.GID, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode gid: %w", err)
	}
	if auth.GIDs, err = xdr.DecodeUint32Array(reader, maxUnixAuthGIDs); err != nil {
		return nil, fmt.Errorf("decode gids: %w", err)
	}

	return auth, nil
}
