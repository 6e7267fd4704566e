// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "github.com/dotnetmd/clrmeta/errs"

// WriteUint32 appends v to buf in little-endian form
// (binary.LittleEndian.Uint32's write-side twin).
func WriteUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WriteUint16 appends v to buf in little-endian form.
func WriteUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

// WriteUint8 appends v to buf.
func WriteUint8(buf []byte, v uint8) []byte {
	return append(buf, v)
}

// WriteIndex appends a heap or simple-RID index field sized to width (2 or
// 4 bytes).
func WriteIndex(buf []byte, v uint32, width int) []byte {
	if width == 2 {
		return WriteUint16(buf, uint16(v))
	}
	return WriteUint32(buf, v)
}

// CompressedUint appends the ECMA §II.23.2 compressed-uint encoding of n:
// one byte if n < 0x80, two bytes (top bits 10) if n < 0x4000, four bytes
// (top bits 110) otherwise. n must fit in 29 bits; ECMA-335 bounds
// compressed integers to that range.
func CompressedUint(buf []byte, n uint32) ([]byte, error) {
	switch {
	case n>>7 == 0:
		return append(buf, byte(n)), nil
	case n>>14 == 0:
		v := n | 0x8000
		return append(buf, byte(v>>8), byte(v)), nil
	case n>>29 == 0:
		v := n | 0xc0000000
		return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)), nil
	default:
		return nil, errs.New(errs.InvalidSignature, n, "compressed uint out of range")
	}
}

// DecodeCompressedUint reads a compressed uint from the front of b and
// returns its value and the number of bytes consumed. It exists to let
// round-trip tests assert CompressedUint's inverse without depending on a
// separate reader module.
func DecodeCompressedUint(b []byte) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, errs.New(errs.InvalidSignature, nil, "empty compressed uint")
	}
	first := b[0]
	switch {
	case first&0x80 == 0:
		return uint32(first), 1, nil
	case first&0xc0 == 0x80:
		if len(b) < 2 {
			return 0, 0, errs.New(errs.InvalidSignature, b, "truncated 2-byte compressed uint")
		}
		v := (uint32(first&0x3f) << 8) | uint32(b[1])
		return v, 2, nil
	case first&0xe0 == 0xc0:
		if len(b) < 4 {
			return 0, 0, errs.New(errs.InvalidSignature, b, "truncated 4-byte compressed uint")
		}
		v := (uint32(first&0x1f) << 24) | (uint32(b[1]) << 16) | (uint32(b[2]) << 8) | uint32(b[3])
		return v, 4, nil
	default:
		return 0, 0, errs.New(errs.InvalidSignature, b, "invalid compressed uint prefix")
	}
}

// CompressedInt appends the ECMA §II.23.2 compressed *signed* integer
// encoding of n: the value is first rotated left by one bit with the sign
// bit moved into bit 0, then encoded as an unsigned compressed integer of
// the narrowest width that holds the rotated magnitude.
func CompressedInt(buf []byte, n int32) ([]byte, error) {
	var rotated uint32
	switch {
	case n >= -0x40 && n < 0x40:
		u := uint32(n) & 0x7f
		rotated = (u << 1) | (u >> 6 & 1)
		return CompressedUint(buf, rotated&0x7f)
	case n >= -0x2000 && n < 0x2000:
		u := uint32(n) & 0x3fff
		rotated = (u << 1) | (u >> 13 & 1)
		return CompressedUint(buf, rotated&0x3fff)
	case n >= -0x10000000 && n < 0x10000000:
		u := uint32(n) & 0x1fffffff
		rotated = (u << 1) | (u >> 28 & 1)
		return CompressedUint(buf, rotated&0x1fffffff)
	default:
		return nil, errs.New(errs.InvalidSignature, n, "compressed int out of range")
	}
}

// BlobBytes returns value prefixed with its ECMA §II.23.2 compressed length,
// the wire form every blob-heap entry takes.
func BlobBytes(value []byte) ([]byte, error) {
	out, err := CompressedUint(nil, uint32(len(value)))
	if err != nil {
		return nil, err
	}
	return append(out, value...), nil
}
