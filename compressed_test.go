// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "testing"

func TestCompressedUintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7f, 0x80, 0x3fff, 0x4000, 0x1fffffff}
	for _, v := range values {
		buf, err := CompressedUint(nil, v)
		if err != nil {
			t.Fatalf("CompressedUint(%d): %v", v, err)
		}
		got, n, err := DecodeCompressedUint(buf)
		if err != nil {
			t.Fatalf("DecodeCompressedUint(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip mismatch for %d: got %d", v, got)
		}
		if n != len(buf) {
			t.Errorf("DecodeCompressedUint(%d) consumed %d bytes, want %d", v, n, len(buf))
		}
	}
}

func TestCompressedUintOverflow(t *testing.T) {
	if _, err := CompressedUint(nil, 0x20000000); err == nil {
		t.Fatal("expected overflow error for value exceeding 29 bits")
	}
}

func TestCompressedIntRoundTrip(t *testing.T) {
	values := []int32{0, 3, -3, 64, -64, 8192, -8192, 268435455, -268435456}
	for _, v := range values {
		buf, err := CompressedInt(nil, v)
		if err != nil {
			t.Fatalf("CompressedInt(%d): %v", v, err)
		}
		if len(buf) == 0 {
			t.Fatalf("CompressedInt(%d) produced no bytes", v)
		}
		u, n, err := DecodeCompressedUint(buf)
		if err != nil {
			t.Fatalf("DecodeCompressedUint(CompressedInt(%d)): %v", v, err)
		}
		// Undo the rotation: bit 0 is the sign, the rest is the low bits of
		// the two's-complement value at the encoded width.
		bits := map[int]uint{1: 7, 2: 14, 4: 29}[n]
		got := int32(u >> 1)
		if u&1 != 0 {
			got -= int32(1) << (bits - 1)
		}
		if got != v {
			t.Errorf("CompressedInt(%d) decoded back to %d", v, got)
		}
	}
}

func TestWriteIndexWidths(t *testing.T) {
	buf2 := WriteIndex(nil, 0x1234, 2)
	if len(buf2) != 2 {
		t.Fatalf("WriteIndex width 2 produced %d bytes", len(buf2))
	}
	buf4 := WriteIndex(nil, 0x12345678, 4)
	if len(buf4) != 4 {
		t.Fatalf("WriteIndex width 4 produced %d bytes", len(buf4))
	}
}

func TestBlobBytesPrefixesLength(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	out, err := BlobBytes(payload)
	if err != nil {
		t.Fatalf("BlobBytes: %v", err)
	}
	n, size, err := DecodeCompressedUint(out)
	if err != nil {
		t.Fatalf("DecodeCompressedUint: %v", err)
	}
	if int(n) != len(payload) {
		t.Errorf("length prefix = %d, want %d", n, len(payload))
	}
	if len(out)-size != len(payload) {
		t.Errorf("payload length = %d, want %d", len(out)-size, len(payload))
	}
}
