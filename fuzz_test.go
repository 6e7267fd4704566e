// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "testing"

// FuzzCompressedUintRoundTrip checks that every value CompressedUint accepts
// decodes back to itself and consumes exactly the bytes it produced.
func FuzzCompressedUintRoundTrip(f *testing.F) {
	for _, seed := range []uint32{0, 1, 0x7f, 0x80, 0x3fff, 0x4000, 0x1fffffff} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, v uint32) {
		buf, err := CompressedUint(nil, v)
		if err != nil {
			return // values >= 2^29 are rejected by design
		}
		got, n, err := DecodeCompressedUint(buf)
		if err != nil {
			t.Fatalf("DecodeCompressedUint(%x): %v", buf, err)
		}
		if got != v&0x1fffffff {
			t.Fatalf("round trip mismatch: encoded %d, decoded %d", v, got)
		}
		if n != len(buf) {
			t.Fatalf("decode consumed %d bytes, encode produced %d", n, len(buf))
		}
	})
}

// FuzzStringHeapDedup checks that StringHeap.GetIndex is idempotent for any
// input string: interning the same bytes twice always returns the same
// index, and the index always points at a NUL-terminated copy of the
// original string inside the flushed heap.
func FuzzStringHeapDedup(f *testing.F) {
	f.Add("")
	f.Add("System.Object")
	f.Add("\x00embedded-nul-is-invalid-utf8-safe-to-store-raw")
	f.Fuzz(func(t *testing.T, s string) {
		h := NewStringHeap()
		idx1 := h.GetIndex(s)
		idx2 := h.GetIndex(s)
		if idx1 != idx2 {
			t.Fatalf("GetIndex(%q) not idempotent: %d != %d", s, idx1, idx2)
		}

		flushed := h.Flush()
		end := int(idx1) + len(s)
		if end >= len(flushed) {
			t.Fatalf("index %d + len %d out of range of flushed heap (len %d)", idx1, len(s), len(flushed))
		}
		if string(flushed[idx1:end]) != s || flushed[end] != 0x00 {
			t.Fatalf("heap bytes at index %d = %q, want %q followed by NUL", idx1, flushed[idx1:end+1], s)
		}
	})
}

// FuzzCodedIndexRoundTrip checks that every token EncodeCodedIndex accepts
// for a given kind decodes back to an equivalent token: a null token (RID
// 0) always normalizes to the zero Token regardless of its original table
// tag, since a coded index of 0 carries no table information to recover.
func FuzzCodedIndexRoundTrip(f *testing.F) {
	f.Add(uint8(TypeDefOrRef), uint32(NewToken(TypeDef, 1)))
	f.Add(uint8(HasConstant), uint32(NewToken(Param, 5)))
	f.Add(uint8(ResolutionScope), uint32(NewToken(ModuleRef, 2)))
	f.Fuzz(func(t *testing.T, rawKind uint8, rawTok uint32) {
		kind := CodedIndexKind(rawKind % (uint8(TypeOrMethodDef) + 1))
		tok := Token(rawTok)

		encoded, err := EncodeCodedIndex(kind, tok)
		if err != nil {
			return // not every table/kind pairing is valid
		}
		decoded, err := DecodeCodedIndex(kind, encoded)
		if err != nil {
			t.Fatalf("DecodeCodedIndex after successful encode: %v", err)
		}
		want := tok
		if tok.IsNull() {
			want = Token(0)
		}
		if decoded != want {
			t.Fatalf("round trip mismatch: encoded %v, decoded %v, want %v", tok, decoded, want)
		}
	})
}
