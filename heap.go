// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"github.com/dotnetmd/clrmeta/errs"
)

// heapEntry records one interned value and the index that was returned for
// it, so a hash collision can be resolved by an exact byte compare.
type heapEntry struct {
	value []byte
	index uint32
}

// dedupBucket is a hash-then-verify dedup strategy: cheap 64-bit hash
// short-circuit first (grounded on arloliu/mebo's use of xxhash for fast
// value interning), exact byte compare on collision, so two distinct values
// that happen to collide are never silently merged.
type dedupBucket map[uint64][]heapEntry

func (d dedupBucket) lookup(value []byte) (uint32, bool) {
	h := xxhash.Sum64(value)
	for _, e := range d[h] {
		if bytes.Equal(e.value, value) {
			return e.index, true
		}
	}
	return 0, false
}

func (d dedupBucket) insert(value []byte, index uint32) {
	h := xxhash.Sum64(value)
	d[h] = append(d[h], heapEntry{value: append([]byte(nil), value...), index: index})
}

// StringHeap is the append-only, NUL-terminated UTF-8 #Strings heap. Index 0
// is reserved for the empty string.
type StringHeap struct {
	buf   []byte
	dedup dedupBucket
}

// NewStringHeap returns a StringHeap with its empty-string slot already
// reserved at index 0.
func NewStringHeap() *StringHeap {
	return &StringHeap{buf: []byte{0x00}, dedup: make(dedupBucket)}
}

// GetIndex interns s and returns its byte offset in the heap. Repeated
// identical strings return the same index.
func (h *StringHeap) GetIndex(s string) uint32 {
	if s == "" {
		return 0
	}
	b := []byte(s)
	if idx, ok := h.dedup.lookup(b); ok {
		return idx
	}
	idx := uint32(len(h.buf))
	h.buf = append(h.buf, b...)
	h.buf = append(h.buf, 0x00)
	h.dedup.insert(b, idx)
	return idx
}

// Size returns the current byte length of the heap.
func (h *StringHeap) Size() uint32 { return uint32(len(h.buf)) }

// Flush returns the heap's bytes, padded to a 4-byte boundary.
func (h *StringHeap) Flush() []byte { return pad4(h.buf) }

// BlobHeap is the append-only #Blob heap: compressed-length-prefixed raw
// byte values, deduplicated by exact value.
type BlobHeap struct {
	buf   []byte
	dedup dedupBucket
}

// NewBlobHeap returns a BlobHeap with its empty-blob slot reserved at
// index 0.
func NewBlobHeap() *BlobHeap {
	return &BlobHeap{buf: []byte{0x00}, dedup: make(dedupBucket)}
}

// GetIndex interns value (the raw, unprefixed bytes) and returns the byte
// offset of its length-prefixed form in the heap.
func (h *BlobHeap) GetIndex(value []byte) (uint32, error) {
	if len(value) == 0 {
		return 0, nil
	}
	if idx, ok := h.dedup.lookup(value); ok {
		return idx, nil
	}
	idx := uint32(len(h.buf))
	prefixed, err := BlobBytes(value)
	if err != nil {
		return 0, err
	}
	h.buf = append(h.buf, prefixed...)
	h.dedup.insert(value, idx)
	return idx, nil
}

// Size returns the current byte length of the heap.
func (h *BlobHeap) Size() uint32 { return uint32(len(h.buf)) }

// Flush returns the heap's bytes, padded to a 4-byte boundary.
func (h *BlobHeap) Flush() []byte { return pad4(h.buf) }

// nonASCIIPrintable is the ECMA §II.24.2.4 rule for the #US terminal byte:
// any character with a nonzero high byte, or one of a short list of
// low-byte special cases, forces the terminal byte to 1.
func nonASCIIPrintable(r uint16) bool {
	if r>>8 != 0 {
		return true
	}
	switch byte(r) {
	case 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x0E, 0x0F, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17,
		0x18, 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E, 0x1F,
		0x27, 0x2D, 0x7F:
		return true
	}
	return false
}

// UserStringHeap is the append-only #US heap: UTF-16LE strings used by the
// CIL ldstr instruction, each carrying a trailing marker byte.
type UserStringHeap struct {
	buf   []byte
	dedup dedupBucket
}

// NewUserStringHeap returns a UserStringHeap with index 0 reserved for the
// empty user string.
func NewUserStringHeap() *UserStringHeap {
	return &UserStringHeap{buf: []byte{0x00}, dedup: make(dedupBucket)}
}

// GetIndex interns s (encoded UTF-16LE) and returns its byte offset.
func (h *UserStringHeap) GetIndex(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	units := utf16Encode(s)
	key := make([]byte, len(units)*2)
	for i, u := range units {
		key[2*i] = byte(u)
		key[2*i+1] = byte(u >> 8)
	}
	if idx, ok := h.dedup.lookup(key); ok {
		return idx, nil
	}

	terminal := byte(0)
	for _, u := range units {
		if nonASCIIPrintable(u) {
			terminal = 1
			break
		}
	}

	idx := uint32(len(h.buf))
	prefix, err := CompressedUint(nil, uint32(len(key)+1))
	if err != nil {
		return 0, err
	}
	entry := append(prefix, key...)
	entry = append(entry, terminal)
	h.buf = append(h.buf, entry...)
	h.dedup.insert(key, idx)
	return idx, nil
}

// Size returns the current byte length of the heap.
func (h *UserStringHeap) Size() uint32 { return uint32(len(h.buf)) }

// Flush returns the heap's bytes, padded to a 4-byte boundary.
func (h *UserStringHeap) Flush() []byte { return pad4(h.buf) }

// GUID is a raw 16-byte metadata GUID value (e.g. a module's MVID).
type GUID [16]byte

// GUIDHeap is the #GUID heap: a dedicated array of 16-byte values, indexed
// one-based, where index 0 means "absent" (unlike the byte heaps, this is
// the one heap whose null element is index 0 by *absence* rather than by an
// actual empty payload at offset 0).
type GUIDHeap struct {
	values []GUID
	dedup  map[GUID]uint32
}

// NewGUIDHeap returns an empty GUIDHeap.
func NewGUIDHeap() *GUIDHeap {
	return &GUIDHeap{dedup: make(map[GUID]uint32)}
}

// GetIndex interns g and returns its one-based slot index.
func (h *GUIDHeap) GetIndex(g GUID) uint32 {
	if idx, ok := h.dedup[g]; ok {
		return idx
	}
	h.values = append(h.values, g)
	idx := uint32(len(h.values))
	h.dedup[g] = idx
	return idx
}

// Size returns the number of 16-byte slots currently stored.
func (h *GUIDHeap) Size() uint32 { return uint32(len(h.values)) }

// Flush returns the heap's bytes (always a multiple of 16, so no padding is
// needed to reach a 4-byte boundary).
func (h *GUIDHeap) Flush() []byte {
	out := make([]byte, 0, len(h.values)*16)
	for _, g := range h.values {
		out = append(out, g[:]...)
	}
	return out
}

// pad4 returns b padded with zero bytes to the next multiple of 4.
func pad4(b []byte) []byte {
	if rem := len(b) % 4; rem != 0 {
		b = append(b, make([]byte, 4-rem)...)
	}
	return b
}

// utf16Encode encodes s as UTF-16LE code units, including surrogate pairs
// for codepoints above the BMP.
func utf16Encode(s string) []uint16 {
	var out []uint16
	for _, r := range s {
		switch {
		case r < 0x10000:
			out = append(out, uint16(r))
		case r <= 0x10FFFF:
			r -= 0x10000
			out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
		default:
			out = append(out, 0xFFFD)
		}
	}
	return out
}

// errHeapOverflow is an IndexOverflow error for a heap whose byte length
// would exceed 2^32-1. No code in this package returns it: the heap types
// above do not check their size, and the only IndexOverflow checks are the
// 2^24-1 row limits in tables.go.
var errHeapOverflow = errs.New(errs.IndexOverflow, nil, "heap exceeds maximum size")
