package nfs

import (
	"context"
	"fmt"

	"github.com/quillfs/quillnfs/internal/adapter/nfs/types"
	nfshandlers "github.com/quillfs/quillnfs/internal/adapter/nfs/v3/handlers"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/protocol/rpc"
)

// encodable is what every procedure response knows how to do.
type encodable interface {
	Encode() ([]byte, error)
}

// statusCarrier exposes the nfsstat3 of a typed response.
type statusCarrier interface {
	GetStatus() uint32
}

// nfsProcedure is one dispatch-table entry: the procedure's name for
// logging/metrics and the glue that decodes its arguments, invokes the
// handler and encodes the result.
//
// Glue functions return an error ONLY for argument decode failures; the
// dispatcher answers those with a GARBAGE_ARGS reply, per the error
// contract: handlers express every semantic failure as an nfsstat3 inside
// a success envelope.
type nfsProcedure struct {
	Name string
	Call func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error)
}

// nfsDispatchTable maps NFSv3 procedure numbers to their glue.
var nfsDispatchTable = map[uint32]*nfsProcedure{
	types.NFSProc3Null: {Name: "NULL", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, _ []byte) (encodable, error) {
		return h.Null(hctx)
	}},
	types.NFSProc3GetAttr: {Name: "GETATTR", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeGetAttrRequest(data)
		if err != nil {
			return nil, err
		}
		return h.GetAttr(hctx, req)
	}},
	types.NFSProc3SetAttr: {Name: "SETATTR", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeSetAttrRequest(data)
		if err != nil {
			return nil, err
		}
		return h.SetAttr(hctx, req)
	}},
	types.NFSProc3Lookup: {Name: "LOOKUP", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeLookupRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Lookup(hctx, req)
	}},
	types.NFSProc3Access: {Name: "ACCESS", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeAccessRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Access(hctx, req)
	}},
	types.NFSProc3Readlink: {Name: "READLINK", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeReadlinkRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Readlink(hctx, req)
	}},
	types.NFSProc3Read: {Name: "READ", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeReadRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Read(hctx, req)
	}},
	types.NFSProc3Write: {Name: "WRITE", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeWriteRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Write(hctx, req)
	}},
	types.NFSProc3Create: {Name: "CREATE", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeCreateRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Create(hctx, req)
	}},
	types.NFSProc3Mkdir: {Name: "MKDIR", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeMkdirRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Mkdir(hctx, req)
	}},
	types.NFSProc3Symlink: {Name: "SYMLINK", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeSymlinkRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Symlink(hctx, req)
	}},
	types.NFSProc3Mknod: {Name: "MKNOD", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeMknodRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Mknod(hctx, req)
	}},
	types.NFSProc3Remove: {Name: "REMOVE", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeRemoveRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Remove(hctx, req)
	}},
	// RMDIR shares REMOVE's handler: identical argument and result
	// layouts, and the file system refuses non-empty directories itself.
	types.NFSProc3Rmdir: {Name: "RMDIR", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeRemoveRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Remove(hctx, req)
	}},
	types.NFSProc3Rename: {Name: "RENAME", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeRenameRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Rename(hctx, req)
	}},
	types.NFSProc3Link: {Name: "LINK", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeLinkRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Link(hctx, req)
	}},
	types.NFSProc3ReadDir: {Name: "READDIR", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeReadDirRequest(data)
		if err != nil {
			return nil, err
		}
		return h.ReadDir(hctx, req)
	}},
	types.NFSProc3ReadDirPlus: {Name: "READDIRPLUS", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeReadDirPlusRequest(data)
		if err != nil {
			return nil, err
		}
		return h.ReadDirPlus(hctx, req)
	}},
	types.NFSProc3FSStat: {Name: "FSSTAT", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeFSStatRequest(data)
		if err != nil {
			return nil, err
		}
		return h.FSStat(hctx, req)
	}},
	types.NFSProc3FSInfo: {Name: "FSINFO", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeFSInfoRequest(data)
		if err != nil {
			return nil, err
		}
		return h.FSInfo(hctx, req)
	}},
	types.NFSProc3PathConf: {Name: "PATHCONF", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodePathConfRequest(data)
		if err != nil {
			return nil, err
		}
		return h.PathConf(hctx, req)
	}},
	types.NFSProc3Commit: {Name: "COMMIT", Call: func(hctx *nfshandlers.NFSHandlerContext, h *nfshandlers.Handler, data []byte) (encodable, error) {
		req, err := nfshandlers.DecodeCommitRequest(data)
		if err != nil {
			return nil, err
		}
		return h.Commit(hctx, req)
	}},
}

// dispatchNFS routes an NFS program call: version 3 only, procedures per
// the dispatch table.
func dispatchNFS(ctx context.Context, call *rpc.RPCCallMessage, args []byte, cc *ConnContext) (reply []byte, procedureName string, status uint32, err error) {
	if call.Version != rpc.NFSVersion3 {
		logger.Warn("Unsupported NFS version",
			"requested", call.Version,
			"supported", rpc.NFSVersion3,
			"xid", fmt.Sprintf("0x%x", call.XID),
			"client", cc.ClientAddr)
		reply, err = rpc.MakeProgMismatchReply(call.XID, rpc.NFSVersion3, rpc.NFSVersion3)
		return reply, "MISMATCH", rpc.AcceptProgMismatch, err
	}

	procedure, ok := nfsDispatchTable[call.Procedure]
	if !ok {
		logger.Debug("Unknown NFS procedure", "procedure", call.Procedure, "client", cc.ClientAddr)
		reply, err = rpc.MakeErrorReply(call.XID, rpc.AcceptProcUnavail)
		return reply, "UNKNOWN", rpc.AcceptProcUnavail, err
	}

	v3Handler, _, _ := cc.Handlers()
	hctx := extractHandlerContext(ctx, call, cc, procedure.Name)

	resp, err := procedure.Call(hctx, v3Handler, args)
	if err != nil {
		// Glue errors are argument decode failures by contract.
		logger.Warn("Malformed procedure arguments",
			"procedure", procedure.Name,
			"xid", fmt.Sprintf("0x%x", call.XID),
			"client", cc.ClientAddr,
			"error", err)
		reply, err = rpc.MakeErrorReply(call.XID, rpc.AcceptGarbageArgs)
		return reply, procedure.Name, rpc.AcceptGarbageArgs, err
	}

	body, err := resp.Encode()
	if err != nil {
		return nil, procedure.Name, 0, fmt.Errorf("encode %s reply: %w", procedure.Name, err)
	}

	if carrier, ok := resp.(statusCarrier); ok {
		status = carrier.GetStatus()
	}

	reply, err = assembleReply(call.XID, body)
	return reply, procedure.Name, status, err
}

// extractHandlerContext builds the per-request handler context, parsing
// AUTH_UNIX credentials best-effort: failures are logged and the request
// proceeds unauthenticated.
func extractHandlerContext(ctx context.Context, call *rpc.RPCCallMessage, cc *ConnContext, procedureName string) *nfshandlers.NFSHandlerContext {
	hctx := &nfshandlers.NFSHandlerContext{
		Context:    ctx,
		ClientAddr: cc.ClientAddr,
		Export:     cc.ExportName,
		AuthFlavor: call.GetAuthFlavor(),
	}

	lc := logger.NewLogContext(cc.ClientAddr).WithProcedure(call.XID, procedureName)

	if hctx.AuthFlavor == rpc.AuthUnix {
		if body := call.GetAuthBody(); len(body) > 0 {
			if auth, err := rpc.ParseUnixAuth(body); err == nil {
				hctx.UID = &auth.UID
				hctx.GID = &auth.GID
				hctx.GIDs = auth.GIDs
				lc = lc.WithAuth(auth.UID, auth.GID)
			} else {
				logger.Warn("Failed to parse AUTH_UNIX credentials",
					"procedure", procedureName,
					"client", cc.ClientAddr,
					"error", err)
			}
		}
	}

	hctx.Context = logger.WithContext(ctx, lc)
	return hctx
}
