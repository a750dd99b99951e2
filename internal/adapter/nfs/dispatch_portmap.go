package nfs

import (
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/portmap"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/rpc"
)

// dispatchPortmap routes PORTMAP program calls: version 2 only, NULL and
// GETPORT; everything else (SET, UNSET, DUMP, CALLIT) is PROC_UNAVAIL
// since this is not a real portmapper.
func dispatchPortmap(call *rpc.RPCCallMessage, args []byte, cc *ConnContext) (reply []byte, procedureName string, status uint32, err error) {
	if call.Version != rpc.PortmapVersion2 {
		logger.Warn("Unsupported PORTMAP version",
			"requested", call.Version,
			"supported", rpc.PortmapVersion2,
			"xid", fmt.Sprintf("0x%x", call.XID),
			"client", cc.ClientAddr)
		reply, err = rpc.MakeProgMismatchReply(call.XID, rpc.PortmapVersion2, rpc.PortmapVersion2)
		return reply, "MISMATCH", rpc.AcceptProgMismatch, err
	}

	_, _, portmapHandler := cc.Handlers()

	var resp encodable

	switch call.Procedure {
	case portmap.ProcNull:
		procedureName = "NULL"
		resp, err = portmapHandler.Null()

	case portmap.ProcGetPort:
		procedureName = "GETPORT"
		var req *portmap.Mapping
		if req, err = portmap.DecodeGetPortRequest(args); err == nil {
			resp, err = portmapHandler.GetPort(req)
		}

	default:
		logger.Debug("Unsupported PORTMAP procedure", "procedure", call.Procedure, "client", cc.ClientAddr)
		reply, err = rpc.MakeErrorReply(call.XID, rpc.AcceptProcUnavail)
		return reply, "UNKNOWN", rpc.AcceptProcUnavail, err
	}

	if err != nil {
		logger.Warn("Malformed PORTMAP arguments",
			"procedure", procedureName,
			"xid", fmt.Sprintf("0x%x", call.XID),
			"client", cc.ClientAddr,
			"error", err)
		reply, err = rpc.MakeErrorReply(call.XID, rpc.AcceptGarbageArgs)
		return reply, procedureName, rpc.AcceptGarbageArgs, err
	}

	body, err := resp.Encode()
	if err != nil {
		return nil, procedureName, 0, fmt.Errorf("encode PORTMAP %s reply: %w", procedureName, err)
	}

	reply, err = assembleReply(call.XID, body)
	return reply, procedureName, 0, err
}
