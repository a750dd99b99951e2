package nfs

import (
	"context"
	"fmt"

	mount "github.com/quillfs/quillnfs/internal/adapter/nfs/mount/handlers"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/rpc"
)

// dispatchMount routes MOUNT program calls.
//
// MNT requires version 3 because its reply carries a v3 file handle. The
// other procedures (NULL, UMNT, UMNTALL, EXPORT) are version-agnostic —
// macOS sends UMNT as mount v1, and refusing it leaves stale mounts on
// the client.
func dispatchMount(ctx context.Context, call *rpc.RPCCallMessage, args []byte, cc *ConnContext) (reply []byte, procedureName string, status uint32, err error) {
	if call.Procedure == mount.MountProcMnt && call.Version != rpc.MountVersion3 {
		logger.Warn("Unsupported MOUNT version for MNT",
			"requested", call.Version,
			"supported", rpc.MountVersion3,
			"xid", fmt.Sprintf("0x%x", call.XID),
			"client", cc.ClientAddr)
		reply, err = rpc.MakeProgMismatchReply(call.XID, rpc.MountVersion3, rpc.MountVersion3)
		return reply, "MISMATCH", rpc.AcceptProgMismatch, err
	}

	_, mountHandler, _ := cc.Handlers()

	hctx := &mount.MountHandlerContext{
		Context:    ctx,
		ClientAddr: cc.ClientAddr,
		AuthFlavor: call.GetAuthFlavor(),
	}

	var resp encodable

	switch call.Procedure {
	case mount.MountProcNull:
		procedureName = "NULL"
		resp, err = mountHandler.Null(hctx)

	case mount.MountProcMnt:
		procedureName = "MNT"
		var req *mount.MountRequest
		if req, err = mount.DecodeMountRequest(args); err == nil {
			resp, err = mountHandler.Mnt(hctx, req)
		}

	case mount.MountProcUmnt:
		procedureName = "UMNT"
		var req *mount.UmountRequest
		if req, err = mount.DecodeUmountRequest(args); err == nil {
			resp, err = mountHandler.Umnt(hctx, req)
		}

	case mount.MountProcUmntAll:
		procedureName = "UMNTALL"
		resp, err = mountHandler.UmntAll(hctx)

	case mount.MountProcExport:
		procedureName = "EXPORT"
		resp, err = mountHandler.Export(hctx)

	default:
		// DUMP included: no mount registry exists, so there is nothing
		// to enumerate.
		logger.Debug("Unsupported MOUNT procedure", "procedure", call.Procedure, "client", cc.ClientAddr)
		reply, err = rpc.MakeErrorReply(call.XID, rpc.AcceptProcUnavail)
		return reply, "UNKNOWN", rpc.AcceptProcUnavail, err
	}

	if err != nil {
		logger.Warn("Malformed MOUNT arguments",
			"procedure", procedureName,
			"xid", fmt.Sprintf("0x%x", call.XID),
			"client", cc.ClientAddr,
			"error", err)
		reply, err = rpc.MakeErrorReply(call.XID, rpc.AcceptGarbageArgs)
		return reply, procedureName, rpc.AcceptGarbageArgs, err
	}

	body, err := resp.Encode()
	if err != nil {
		return nil, procedureName, 0, fmt.Errorf("encode MOUNT %s reply: %w", procedureName, err)
	}

	if carrier, ok := resp.(statusCarrier); ok {
		status = carrier.GetStatus()
	}

	reply, err = assembleReply(call.XID, body)
	return reply, procedureName, status, err
}
