package rpc

import (
	"bytes"
	"fmt"

	"github.com/quillfs/quillnfs/internal/protocol/xdr"
)

// Reply builders. Every reply this server sends starts with one of these
// envelopes; procedure results are appended after the successful-reply
// header by the dispatcher.

// MakeSuccessReply builds the accepted-reply envelope shared by every
// normal reply:
//
//	xid          uint32
//	msg_type     REPLY (1)
//	reply_stat   MSG_ACCEPTED (0)
//	verf         opaque_auth (AUTH_NULL, empty)
//	accept_stat  SUCCESS (0)
//
// Protocol-level errors (nfsstat3, mountstat3) are carried inside this
// envelope in the procedure-specific result that follows.
func MakeSuccessReply(xid uint32) ([]byte, error) {
	return makeAcceptedReply(xid, AcceptSuccess)
}

// MakeErrorReply builds an accepted reply carrying a non-SUCCESS accept
// status: PROG_UNAVAIL, PROC_UNAVAIL or GARBAGE_ARGS.
func MakeErrorReply(xid uint32, acceptStat uint32) ([]byte, error) {
	return makeAcceptedReply(xid, acceptStat)
}

// MakeProgMismatchReply builds an accepted PROG_MISMATCH reply carrying the
// supported version range for the requested program.
func MakeProgMismatchReply(xid uint32, lowVersion, highVersion uint32) ([]byte, error) {
	buf, err := acceptedReplyPrefix(xid)
	if err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, AcceptProgMismatch); err != nil {
		return nil, fmt.Errorf("write accept_stat: %w", err)
	}
	if err := xdr.WriteUint32(buf, lowVersion); err != nil {
		return nil, fmt.Errorf("write mismatch low: %w", err)
	}
	if err := xdr.WriteUint32(buf, highVersion); err != nil {
		return nil, fmt.Errorf("write mismatch high: %w", err)
	}
	return buf.Bytes(), nil
}

// MakeRPCMismatchReply builds a MSG_DENIED / RPC_MISMATCH reply for calls
// whose rpcvers is not 2. The low and high supported versions are both 2.
func MakeRPCMismatchReply(xid uint32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.WriteUint32(buf, xid); err != nil {
		return nil, fmt.Errorf("write xid: %w", err)
	}
	if err := xdr.WriteUint32(buf, RPCReply); err != nil {
		return nil, fmt.Errorf("write msg_type: %w", err)
	}
	if err := xdr.WriteUint32(buf, MsgDenied); err != nil {
		return nil, fmt.Errorf("write reply_stat: %w", err)
	}
	if err := xdr.WriteUint32(buf, RejectRPCMismatch); err != nil {
		return nil, fmt.Errorf("write reject_stat: %w", err)
	}
	if err := xdr.WriteUint32(buf, RPCVersion2); err != nil {
		return nil, fmt.Errorf("write mismatch low: %w", err)
	}
	if err := xdr.WriteUint32(buf, RPCVersion2); err != nil {
		return nil, fmt.Errorf("write mismatch high: %w", err)
	}
	return buf.Bytes(), nil
}

// acceptedReplyPrefix writes xid, REPLY, MSG_ACCEPTED and the NULL verifier.
func acceptedReplyPrefix(xid uint32) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := xdr.WriteUint32(buf, xid); err != nil {
		return nil, fmt.Errorf("write xid: %w", err)
	}
	if err := xdr.WriteUint32(buf, RPCReply); err != nil {
		return nil, fmt.Errorf("write msg_type: %w", err)
	}
	if err := xdr.WriteUint32(buf, MsgAccepted); err != nil {
		return nil, fmt.Errorf("write reply_stat: %w", err)
	}
	// verf: AUTH_NULL flavor with an empty body
	if err := xdr.WriteUint32(buf, AuthNull); err != nil {
		return nil, fmt.Errorf("write verf flavor: %w", err)
	}
	if err := xdr.WriteUint32(buf, 0); err != nil {
		return nil, fmt.Errorf("write verf length: %w", err)
	}
	return buf, nil
}

func makeAcceptedReply(xid uint32, acceptStat uint32) ([]byte, error) {
	buf, err := acceptedReplyPrefix(xid)
	if err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, acceptStat); err != nil {
		return nil, fmt.Errorf("write accept_stat: %w", err)
	}
	return buf.Bytes(), nil
}
