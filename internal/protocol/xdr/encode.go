package xdr

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ============================================================================
// XDR Encoding Helpers - Go Types → Wire Format
// ============================================================================

// WriteOpaque encodes opaque data (byte array) in XDR format: length + data + padding.
//
// Per RFC 4506 Section 4.10 (Variable-Length Opaque Data):
// Format: [length:uint32][data:bytes][padding:bytes]
//
// XDR opaque data is encoded as:
//  1. Length (uint32): Number of bytes in the data
//  2. Data: The actual bytes
//  3. Padding: Zero bytes to align to 4-byte boundary
//
// This is identical to string encoding but takes []byte instead of string.
// Used for binary data like file handles, authentication tokens, etc.
//
// Example:
//
//	[]byte{0x01, 0x02, 0x03} → [00 00 00 03][01 02 03][00] (8 bytes total)
func WriteOpaque(buf *bytes.Buffer, data []byte) error {
	length := uint32(len(data))
	if err := binary.Write(buf, binary.BigEndian, length); err != nil {
		return fmt.Errorf("write opaque length: %w", err)
	}

	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("write opaque data: %w", err)
	}

	return WritePadding(buf, length)
}

// WriteOpaqueFixed encodes fixed-length opaque data: just the bytes, padded
// to a 4-byte boundary, with no length prefix (RFC 4506 Section 4.9).
func WriteOpaqueFixed(buf *bytes.Buffer, data []byte) error {
	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("write fixed opaque data: %w", err)
	}
	return WritePadding(buf, uint32(len(data)))
}

// WriteString encodes a string in XDR format: length + data + padding.
//
// Per RFC 4506 Section 4.11 (String):
// Format: [length:uint32][data:bytes][padding:bytes]
//
// Padding calculation: (4 - (length % 4)) % 4 ensures the total encoded
// size is a multiple of 4 bytes.
//
// Example:
//
//	"abc" (3 bytes) → [00 00 00 03][61 62 63][00] (8 bytes total)
//	"test" (4 bytes) → [00 00 00 04][74 65 73 74] (8 bytes total)
func WriteString(buf *bytes.Buffer, s string) error {
	length := uint32(len(s))
	if err := binary.Write(buf, binary.BigEndian, length); err != nil {
		return fmt.Errorf("write string length: %w", err)
	}

	if _, err := buf.WriteString(s); err != nil {
		return fmt.Errorf("write string data: %w", err)
	}

	return WritePadding(buf, length)
}

// WritePadding writes padding bytes to align to 4-byte boundary.
//
// Per RFC 4506, all XDR data must be aligned to 4-byte boundaries. After
// writing variable-length data, 0-3 zero bytes are appended.
func WritePadding(buf *bytes.Buffer, dataLen uint32) error {
	padding := (4 - (dataLen % 4)) % 4
	if padding > 0 {
		var padBuf [3]byte
		if _, err := buf.Write(padBuf[:padding]); err != nil {
			return fmt.Errorf("write padding: %w", err)
		}
	}
	return nil
}

// WriteUint32 encodes a 32-bit unsigned integer in XDR format.
//
// Per RFC 4506 Section 4.1 (Integer): big-endian byte order.
func WriteUint32(buf *bytes.Buffer, v uint32) error {
	if err := binary.Write(buf, binary.BigEndian, v); err != nil {
		return fmt.Errorf("write uint32: %w", err)
	}
	return nil
}

// WriteUint64 encodes a 64-bit unsigned integer in XDR format.
//
// Per RFC 4506 Section 4.5 (Hyper Integer): big-endian byte order.
func WriteUint64(buf *bytes.Buffer, v uint64) error {
	if err := binary.Write(buf, binary.BigEndian, v); err != nil {
		return fmt.Errorf("write uint64: %w", err)
	}
	return nil
}

// WriteInt32 encodes a 32-bit signed integer in XDR format.
//
// Per RFC 4506 Section 4.1: big-endian, two's complement.
func WriteInt32(buf *bytes.Buffer, v int32) error {
	if err := binary.Write(buf, binary.BigEndian, v); err != nil {
		return fmt.Errorf("write int32: %w", err)
	}
	return nil
}

// WriteBool encodes a boolean value in XDR format.
//
// Per RFC 4506 Section 4.4 (Boolean): a uint32 holding 0 (false) or 1 (true).
func WriteBool(buf *bytes.Buffer, v bool) error {
	var encoded uint32
	if v {
		encoded = 1
	}
	return WriteUint32(buf, encoded)
}

// WriteOptional encodes an XDR optional-data discriminant followed by the
// value produced by encode when present.
//
// Per RFC 4506 Section 4.19 (Optional-Data): a bool followed by the value
// when true, nothing when false.
func WriteOptional(buf *bytes.Buffer, present bool, encode func(*bytes.Buffer) error) error {
	if err := WriteBool(buf, present); err != nil {
		return err
	}
	if !present {
		return nil
	}
	return encode(buf)
}
