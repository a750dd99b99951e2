package portmap

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/quillfs/quillnfs/internal/protocol/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPortAlwaysAnswersLocalPort(t *testing.T) {
	h := NewHandler(11111)

	for _, prog := range []uint32{100003, 100005, 100000} {
		resp, err := h.GetPort(&Mapping{Prog: prog, Vers: 3, Prot: IPProtoTCP})
		require.NoError(t, err)
		assert.EqualValues(t, 11111, resp.Port, "program %d", prog)
	}
}

func TestDecodeGetPortRequest(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []uint32{100003, 3, IPProtoTCP, 0} {
		require.NoError(t, xdr.WriteUint32(&buf, v))
	}

	req, err := DecodeGetPortRequest(buf.Bytes())
	require.NoError(t, err)
	assert.EqualValues(t, 100003, req.Prog)
	assert.EqualValues(t, 3, req.Vers)
	assert.Equal(t, IPProtoTCP, req.Prot)
	assert.Zero(t, req.Port)
}

func TestDecodeGetPortRequestTruncated(t *testing.T) {
	_, err := DecodeGetPortRequest([]byte{0, 0})
	assert.Error(t, err)
}

func TestGetPortResponseEncoding(t *testing.T) {
	resp := &GetPortResponse{Port: 2049}

	encoded, err := resp.Encode()
	require.NoError(t, err)
	require.Len(t, encoded, 4)
	assert.EqualValues(t, 2049, binary.BigEndian.Uint32(encoded))
}

func TestNullEncodesVoid(t *testing.T) {
	h := NewHandler(2049)
	resp, err := h.Null()
	require.NoError(t, err)

	encoded, err := resp.Encode()
	require.NoError(t, err)
	assert.Empty(t, encoded)
}
