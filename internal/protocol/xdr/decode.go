package xdr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ============================================================================
// XDR Decoding Helpers - Wire Format → Go Types
// ============================================================================

// ErrInvalidDiscriminant reports an unknown union/enum discriminant on the wire.
var ErrInvalidDiscriminant = errors.New("xdr: invalid discriminant")

// MaxOpaqueLength bounds variable-length opaques decoded by this package.
// NFSv3 advertises 1 MiB reads/writes; anything larger in a single opaque
// field is either corrupt or hostile.
const MaxOpaqueLength = 1024 * 1024

// DecodeOpaque decodes XDR variable-length opaque data.
//
// Per RFC 4506 Section 4.10 (Variable-Length Opaque Data):
// Format: [length:uint32][data:length bytes][padding:0-3 bytes]
// Padding aligns the next item to a 4-byte boundary.
func DecodeOpaque(reader io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	if length > MaxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, MaxOpaqueLength)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	// XDR padding is at most 3 bytes; a tiny stack buffer avoids io.CopyN.
	padding := (4 - (length % 4)) % 4
	if padding > 0 {
		var padBuf [3]byte
		if _, err := io.ReadFull(reader, padBuf[:padding]); err != nil {
			return nil, fmt.Errorf("skip padding: %w", err)
		}
	}

	return data, nil
}

// DecodeOpaqueFixed decodes fixed-length opaque data of the given size,
// consuming the 0-3 alignment padding bytes that follow it.
func DecodeOpaqueFixed(reader io.Reader, size uint32) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read fixed opaque: %w", err)
	}

	padding := (4 - (size % 4)) % 4
	if padding > 0 {
		var padBuf [3]byte
		if _, err := io.ReadFull(reader, padBuf[:padding]); err != nil {
			return nil, fmt.Errorf("skip padding: %w", err)
		}
	}

	return data, nil
}

// DecodeString decodes an XDR variable-length string.
//
// Per RFC 4506 Section 4.11 (String): same wire format as opaque data,
// interpreted as UTF-8.
func DecodeString(reader io.Reader) (string, error) {
	data, err := DecodeOpaque(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeUint32 decodes a 32-bit unsigned integer from XDR format.
//
// Per RFC 4506 Section 4.1 (Integer): big-endian byte order.
func DecodeUint32(reader io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("read uint32: %w", err)
	}
	return v, nil
}

// DecodeUint64 decodes a 64-bit unsigned integer from XDR format.
//
// Per RFC 4506 Section 4.5 (Hyper Integer): big-endian byte order.
func DecodeUint64(reader io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("read uint64: %w", err)
	}
	return v, nil
}

// DecodeBool decodes an XDR boolean.
//
// Per RFC 4506 Section 4.4 (Boolean): a uint32 holding 0 or 1. Any other
// value is rejected as an invalid discriminant.
func DecodeBool(reader io.Reader) (bool, error) {
	v, err := DecodeUint32(reader)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("bool value %d: %w", v, ErrInvalidDiscriminant)
	}
}

// DecodeUint32Array decodes an XDR variable-length array of uint32 values.
//
// Per RFC 4506 Section 4.13 (Variable-Length Array): a uint32 element count
// followed by the elements.
func DecodeUint32Array(reader io.Reader, maxElements uint32) ([]uint32, error) {
	count, err := DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read array length: %w", err)
	}
	if count > maxElements {
		return nil, fmt.Errorf("array length %d exceeds maximum %d", count, maxElements)
	}

	values := make([]uint32, count)
	for i := range values {
		if values[i], err = DecodeUint32(reader); err != nil {
			return nil, fmt.Errorf("read array element %d: %w", i, err)
		}
	}
	return values, nil
}
