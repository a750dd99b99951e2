package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/quillfs/quillnfs/internal/protocol/rpc"
	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/quillfs/quillnfs/pkg/vfs"
	"github.com/quillfs/quillnfs/pkg/vfs/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer runs a server on an ephemeral port and returns its
// address plus a shutdown function.
func startTestServer(t *testing.T, fs vfs.FileSystem) string {
	t.Helper()

	srv := New(Config{BindAddress: "127.0.0.1", Port: 0, ExportName: "/export"}, fs)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	return fmt.Sprintf("127.0.0.1:%d", srv.LocalPort())
}

// call sends one record-marked CALL and reads back one reply record.
func call(t *testing.T, conn net.Conn, xid, prog, vers, proc uint32, args []byte) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	for _, v := range []uint32{xid, rpc.RPCCall, rpc.RPCVersion2, prog, vers, proc} {
		require.NoError(t, binary.Write(buf, binary.BigEndian, v))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, binary.Write(buf, binary.BigEndian, uint32(rpc.AuthNull)))
		require.NoError(t, binary.Write(buf, binary.BigEndian, uint32(0)))
	}
	buf.Write(args)

	require.NoError(t, rpc.WriteRecord(conn, buf.Bytes()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	reply, err := rpc.ReadRecord(conn)
	require.NoError(t, err)
	return reply
}

func TestServeMountAndNull(t *testing.T) {
	fs := memfs.New()
	_, err := fs.AddFile("hello.txt", []byte("hi"))
	require.NoError(t, err)

	addr := startTestServer(t, fs)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// NFS NULL round-trips with the same xid.
	reply := call(t, conn, 0x1001, rpc.ProgramNFS, rpc.NFSVersion3, 0, nil)
	require.GreaterOrEqual(t, len(reply), 24)
	assert.EqualValues(t, 0x1001, binary.BigEndian.Uint32(reply[0:4]))
	assert.EqualValues(t, rpc.AcceptSuccess, binary.BigEndian.Uint32(reply[20:24]))

	// MNT of the export returns the root handle.
	var dirpath bytes.Buffer
	require.NoError(t, xdr.WriteString(&dirpath, "/export"))
	reply = call(t, conn, 0x1002, rpc.ProgramMount, rpc.MountVersion3, 1, dirpath.Bytes())

	body := reply[24:]
	r := bytes.NewReader(body)
	status, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.Zero(t, status, "MNT3_OK")

	handle, err := xdr.DecodeOpaque(r)
	require.NoError(t, err)
	assert.Len(t, handle, vfs.HandleSize)

	// GETPORT answers with the server's own port.
	var mapping bytes.Buffer
	for _, v := range []uint32{rpc.ProgramNFS, 3, 6, 0} {
		require.NoError(t, xdr.WriteUint32(&mapping, v))
	}
	reply = call(t, conn, 0x1003, rpc.ProgramPortmap, rpc.PortmapVersion2, 3, mapping.Bytes())
	port := binary.BigEndian.Uint32(reply[24:28])

	_, wantPort, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	assert.Equal(t, wantPort, fmt.Sprintf("%d", port))
}

func TestServeLookupThroughWire(t *testing.T) {
	fs := memfs.New()
	fileID, err := fs.AddFile("data.bin", []byte("0123456789"))
	require.NoError(t, err)

	addr := startTestServer(t, fs)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// LOOKUP data.bin in the root.
	var args bytes.Buffer
	require.NoError(t, xdr.WriteOpaque(&args, vfs.IDToHandle(fs.RootDir())))
	require.NoError(t, xdr.WriteString(&args, "data.bin"))

	reply := call(t, conn, 0x2001, rpc.ProgramNFS, rpc.NFSVersion3, 3, args.Bytes())
	body := reply[24:]

	r := bytes.NewReader(body)
	status, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.Zero(t, status)

	handle, err := xdr.DecodeOpaque(r)
	require.NoError(t, err)

	resolved, err := vfs.HandleToID(handle)
	require.NoError(t, err)
	assert.Equal(t, fileID, resolved)

	// READ through the returned handle.
	args.Reset()
	require.NoError(t, xdr.WriteOpaque(&args, handle))
	require.NoError(t, xdr.WriteUint64(&args, 2)) // offset
	require.NoError(t, xdr.WriteUint32(&args, 4)) // count

	reply = call(t, conn, 0x2002, rpc.ProgramNFS, rpc.NFSVersion3, 6, args.Bytes())
	body = reply[24:]

	r = bytes.NewReader(body)
	status, err = xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.Zero(t, status)

	// post_op_attr
	present, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	if present {
		_, err = xdr.DecodeOpaqueFixed(r, 84)
		require.NoError(t, err)
	}

	count, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	eof, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	assert.False(t, eof)

	data, err := xdr.DecodeOpaque(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), data)
}

func TestServeRetransmissionSuppressed(t *testing.T) {
	addr := startTestServer(t, memfs.New())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// First NULL gets a reply.
	reply := call(t, conn, 0x3001, rpc.ProgramNFS, rpc.NFSVersion3, 0, nil)
	require.NotEmpty(t, reply)

	// The retransmitted twin is silently dropped: a different call sent
	// right after is answered first (and only it is answered).
	buf := new(bytes.Buffer)
	for _, v := range []uint32{0x3001, rpc.RPCCall, rpc.RPCVersion2, rpc.ProgramNFS, rpc.NFSVersion3, 0} {
		require.NoError(t, binary.Write(buf, binary.BigEndian, v))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, binary.Write(buf, binary.BigEndian, uint32(rpc.AuthNull)))
		require.NoError(t, binary.Write(buf, binary.BigEndian, uint32(0)))
	}
	require.NoError(t, rpc.WriteRecord(conn, buf.Bytes()))

	reply = call(t, conn, 0x3002, rpc.ProgramNFS, rpc.NFSVersion3, 0, nil)
	assert.EqualValues(t, 0x3002, binary.BigEndian.Uint32(reply[0:4]),
		"only the fresh xid is answered")
}
