// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"
)

func TestResourceBufferAddOffsets(t *testing.T) {
	r := NewResourceBuffer()
	off0 := r.Add([]byte{0x01, 0x02, 0x03})
	if off0 != 0 {
		t.Fatalf("first entry offset = %d, want 0", off0)
	}
	off1 := r.Add([]byte{0x04, 0x05})
	if off1 != 7 { // 4-byte length prefix + 3-byte payload
		t.Fatalf("second entry offset = %d, want 7", off1)
	}
}

func TestResourceBufferFlushAlignment(t *testing.T) {
	r := NewResourceBuffer()
	r.Add([]byte{0x01})
	flushed := r.Flush()
	if len(flushed)%4 != 0 {
		t.Fatalf("flushed length = %d, not 4-byte aligned", len(flushed))
	}
}

func TestResourceBufferAddCompressedRoundTrips(t *testing.T) {
	r := NewResourceBuffer()
	payload := bytes.Repeat([]byte("hello clr"), 16)
	off, err := r.AddCompressed(payload)
	if err != nil {
		t.Fatalf("AddCompressed: %v", err)
	}
	if off != 0 {
		t.Fatalf("offset = %d, want 0", off)
	}

	flushed := r.Flush()
	length := uint32(flushed[0]) | uint32(flushed[1])<<8 | uint32(flushed[2])<<16 | uint32(flushed[3])<<24
	compressed := flushed[4 : 4+length]

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer zr.Close()
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading gzip stream: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("decompressed payload does not match original")
	}
}

func TestResourceBufferSizeTracksRawLength(t *testing.T) {
	r := NewResourceBuffer()
	if r.Size() != 0 {
		t.Fatalf("empty buffer size = %d, want 0", r.Size())
	}
	r.Add([]byte{0x01, 0x02})
	if r.Size() != 6 {
		t.Fatalf("size after one entry = %d, want 6", r.Size())
	}
}
