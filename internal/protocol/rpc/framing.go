package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Record marking over a stream transport (RFC 1057 Section 10).
//
// Each record is a sequence of fragments. A fragment is a 4-byte big-endian
// header followed by the payload; the header's low 31 bits carry the payload
// length and the high bit marks the record's last fragment.

// MaxFragmentSize is the maximum allowed inbound RPC fragment size.
// Must be larger than the advertised rtmax/wtmax (1 MiB) to accommodate
// RPC and NFS headers on top of a full-size WRITE.
const MaxFragmentSize = (1 << 20) + (1 << 18) // 1MB + 256KB headroom

// maxWriteFragmentSize is the protocol ceiling for a single outbound
// fragment: 2^31 - 1 bytes. In practice every reply fits one fragment.
const maxWriteFragmentSize = (1 << 31) - 1

// lastFragmentBit flags the final fragment of a record.
const lastFragmentBit = 0x80000000

// FragmentHeader is a parsed record-marking fragment header.
type FragmentHeader struct {
	IsLast bool
	Length uint32
}

// ReadFragmentHeader reads and parses the 4-byte fragment header.
//
// EOF errors are returned unwrapped so callers can detect a normal client
// disconnect between records.
func ReadFragmentHeader(r io.Reader) (*FragmentHeader, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}

	header := binary.BigEndian.Uint32(buf[:])
	return &FragmentHeader{
		IsLast: header&lastFragmentBit != 0,
		Length: header & (lastFragmentBit - 1),
	}, nil
}

// ReadRecord reads one complete record from the stream, reassembling
// fragments until the last-fragment bit is seen.
//
// A fragment longer than MaxFragmentSize, or a record growing past it in
// aggregate, fails the read; the caller terminates the connection since a
// stream with an oversize record cannot be resynchronized.
func ReadRecord(r io.Reader) ([]byte, error) {
	var record []byte
	for {
		header, err := ReadFragmentHeader(r)
		if err != nil {
			if len(record) == 0 {
				// EOF between records is a normal disconnect.
				return nil, err
			}
			return nil, fmt.Errorf("read fragment header: %w", err)
		}

		if header.Length > MaxFragmentSize || len(record)+int(header.Length) > MaxFragmentSize {
			return nil, fmt.Errorf("record too large: %d bytes (max %d)", len(record)+int(header.Length), MaxFragmentSize)
		}

		start := len(record)
		record = append(record, make([]byte, header.Length)...)
		if _, err := io.ReadFull(r, record[start:]); err != nil {
			return nil, fmt.Errorf("read fragment payload: %w", err)
		}

		if header.IsLast {
			return record, nil
		}
	}
}

// WriteRecord writes data as a record, splitting it into fragments no
// larger than 2^31-1 bytes. The final fragment carries the last bit.
func WriteRecord(w io.Writer, data []byte) error {
	offset := 0
	for {
		remaining := len(data) - offset
		fragmentSize := remaining
		if fragmentSize > maxWriteFragmentSize {
			fragmentSize = maxWriteFragmentSize
		}
		isLast := offset+fragmentSize >= len(data)

		header := uint32(fragmentSize)
		if isLast {
			header |= lastFragmentBit
		}

		var headerBuf [4]byte
		binary.BigEndian.PutUint32(headerBuf[:], header)
		if _, err := w.Write(headerBuf[:]); err != nil {
			return fmt.Errorf("write fragment header: %w", err)
		}
		if _, err := w.Write(data[offset : offset+fragmentSize]); err != nil {
			return fmt.Errorf("write fragment payload: %w", err)
		}

		offset += fragmentSize
		if isLast {
			return nil
		}
	}
}

// EncodeRecord returns data framed as a single record in a fresh buffer.
// Useful in tests and for small control replies.
func EncodeRecord(data []byte) []byte {
	var buf bytes.Buffer
	// Writing to a bytes.Buffer cannot fail.
	_ = WriteRecord(&buf, data)
	return buf.Bytes()
}
