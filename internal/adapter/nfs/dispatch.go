package nfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/rpc"
)

// HandleRecord processes one complete RPC record and returns the reply
// record to send, or nil when the call was suppressed as a retransmission.
//
// A non-nil error is connection-fatal: an envelope that cannot be decoded
// (including an inbound REPLY) leaves the stream unsynchronizable, so the
// caller terminates the connection without replying.
func HandleRecord(ctx context.Context, record []byte, cc *ConnContext) ([]byte, error) {
	reader := bytes.NewReader(record)

	call, err := rpc.DecodeCallMessage(reader)
	if err != nil {
		if errors.Is(err, rpc.ErrNotCall) {
			logger.Error("Received a REPLY where a CALL was expected", "client", cc.ClientAddr)
		}
		return nil, fmt.Errorf("decode rpc envelope: %w", err)
	}

	// Procedure arguments are whatever follows the verifier.
	args := record[len(record)-reader.Len():]

	if call.RPCVersion != rpc.RPCVersion2 {
		logger.Warn("Invalid RPC version",
			"rpcvers", call.RPCVersion,
			"xid", fmt.Sprintf("0x%x", call.XID),
			"client", cc.ClientAddr)
		return rpc.MakeRPCMismatchReply(call.XID)
	}

	if cc.Tracker != nil && cc.Tracker.IsRetransmission(call.XID, cc.ClientAddr) {
		logger.Debug("Retransmission suppressed",
			"xid", fmt.Sprintf("0x%x", call.XID),
			"client", cc.ClientAddr,
			"program", call.Program,
			"procedure", call.Procedure)
		cc.Metrics.ObserveRetransmission()
		return nil, nil
	}

	start := time.Now()
	reply, programName, procedureName, status, err := dispatch(ctx, call, args, cc)
	if err != nil {
		return nil, err
	}

	cc.Metrics.ObserveRequest(programName, procedureName, status, time.Since(start).Seconds())

	if cc.Tracker != nil {
		cc.Tracker.MarkProcessed(call.XID, cc.ClientAddr)
	}

	return reply, nil
}

// dispatch routes a call by program number and assembles the full reply
// record (envelope + procedure result).
func dispatch(ctx context.Context, call *rpc.RPCCallMessage, args []byte, cc *ConnContext) (reply []byte, programName, procedureName string, status uint32, err error) {
	switch call.Program {
	case rpc.ProgramNFS:
		reply, procedureName, status, err = dispatchNFS(ctx, call, args, cc)
		return reply, "nfs", procedureName, status, err

	case rpc.ProgramMount:
		reply, procedureName, status, err = dispatchMount(ctx, call, args, cc)
		return reply, "mount", procedureName, status, err

	case rpc.ProgramPortmap:
		reply, procedureName, status, err = dispatchPortmap(call, args, cc)
		return reply, "portmap", procedureName, status, err

	case rpc.ProgramNFSACL, rpc.ProgramNFSIDMap, rpc.ProgramNFSMetadata:
		// Side protocols Linux probes on every mount. Refusing them
		// quietly is expected behavior, not a fault worth logging loudly.
		logger.Debug("Refusing auxiliary program", "program", call.Program, "client", cc.ClientAddr)
		reply, err = rpc.MakeErrorReply(call.XID, rpc.AcceptProgUnavail)
		return reply, "other", "UNAVAIL", rpc.AcceptProgUnavail, err

	default:
		logger.Warn("Unknown RPC program", "program", call.Program, "client", cc.ClientAddr)
		reply, err = rpc.MakeErrorReply(call.XID, rpc.AcceptProgUnavail)
		return reply, "other", "UNAVAIL", rpc.AcceptProgUnavail, err
	}
}

// assembleReply concatenates the successful-reply envelope with an encoded
// procedure result.
func assembleReply(xid uint32, body []byte) ([]byte, error) {
	header, err := rpc.MakeSuccessReply(xid)
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}
