package rpc

import (
	"errors"
	"fmt"
	"io"

	"github.com/quillfs/quillnfs/internal/protocol/xdr"
)

// ErrNotCall reports an inbound RPC message whose body is a REPLY. A server
// should never receive one; the connection is torn down when it does.
var ErrNotCall = errors.New("rpc: received REPLY where CALL was expected")

// OpaqueAuth is the opaque authentication structure attached to every call
// and reply (RFC 1057 Section 9): a flavor discriminant and up to 400 bytes
// of flavor-specific body.
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte
}

// RPCCallMessage is a decoded call_body plus the enclosing rpc_msg header.
//
// Wire layout (RFC 1057 Section 8):
//
//	xid        uint32
//	msg_type   uint32 (0 = CALL)
//	rpcvers    uint32 (must be 2)
//	prog       uint32
//	vers       uint32
//	proc       uint32
//	cred       opaque_auth
//	verf       opaque_auth
//
// The procedure arguments follow the verifier; DecodeCallMessage leaves the
// reader positioned at their first byte.
type RPCCallMessage struct {
	XID        uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Credential OpaqueAuth
	Verifier   OpaqueAuth
}

// DecodeCallMessage decodes an rpc_msg CALL envelope from the reader.
//
// Returns ErrNotCall when the message type is REPLY. Any short read or
// malformed field yields a decode error; the caller terminates the
// connection since resynchronizing a stream after a bad envelope is not
// possible.
func DecodeCallMessage(reader io.Reader) (*RPCCallMessage, error) {
	xid, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode xid: %w", err)
	}

	msgType, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode msg_type: %w", err)
	}
	if msgType == RPCReply {
		return nil, ErrNotCall
	}
	if msgType != RPCCall {
		return nil, fmt.Errorf("decode msg_type: value %d: %w", msgType, xdr.ErrInvalidDiscriminant)
	}

	call := &RPCCallMessage{XID: xid}

	if call.RPCVersion, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode rpcvers: %w", err)
	}
	if call.Program, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode prog: %w", err)
	}
	if call.Version, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode vers: %w", err)
	}
	if call.Procedure, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode proc: %w", err)
	}

	if call.Credential, err = decodeOpaqueAuth(reader); err != nil {
		return nil, fmt.Errorf("decode cred: %w", err)
	}
	if call.Verifier, err = decodeOpaqueAuth(reader); err != nil {
		return nil, fmt.Errorf("decode verf: %w", err)
	}

	return call, nil
}

// decodeOpaqueAuth decodes an opaque_auth structure, enforcing the RFC 1057
// 400-byte body limit.
func decodeOpaqueAuth(reader io.Reader) (OpaqueAuth, error) {
	flavor, err := xdr.DecodeUint32(reader)
	if err != nil {
		return OpaqueAuth{}, fmt.Errorf("read flavor: %w", err)
	}

	body, err := xdr.DecodeOpaque(reader)
	if err != nil {
		return OpaqueAuth{}, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxAuthBodyLength {
		return OpaqueAuth{}, fmt.Errorf("auth body too long: %d bytes (max %d)", len(body), MaxAuthBodyLength)
	}

	return OpaqueAuth{Flavor: flavor, Body: body}, nil
}

// GetAuthFlavor returns the credential's authentication flavor.
func (c *RPCCallMessage) GetAuthFlavor() uint32 {
	return c.Credential.Flavor
}

// GetAuthBody returns the credential's opaque body.
func (c *RPCCallMessage) GetAuthBody() []byte {
	return c.Credential.Body
}
