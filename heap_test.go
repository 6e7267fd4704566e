// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "testing"

func TestStringHeapDedup(t *testing.T) {
	h := NewStringHeap()

	first := h.GetIndex("Program")
	second := h.GetIndex("Main")
	third := h.GetIndex("Program")

	if first != third {
		t.Errorf("GetIndex(%q) not deduplicated: got %d and %d", "Program", first, third)
	}
	if second == first {
		t.Errorf("GetIndex(%q) collided with %q at index %d", "Main", "Program", second)
	}
	if h.GetIndex("") != 0 {
		t.Errorf("GetIndex(\"\") = %d, want 0", h.GetIndex(""))
	}
}

func TestStringHeapFlushAlignment(t *testing.T) {
	h := NewStringHeap()
	h.GetIndex("x")
	flushed := h.Flush()
	if len(flushed)%4 != 0 {
		t.Errorf("Flush() length %d not 4-byte aligned", len(flushed))
	}
}

func TestBlobHeapDedup(t *testing.T) {
	h := NewBlobHeap()
	a, err := h.GetIndex([]byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	b, err := h.GetIndex([]byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	if a != b {
		t.Errorf("identical blobs got different indices: %d, %d", a, b)
	}
	c, err := h.GetIndex([]byte{0x01, 0x02, 0x04})
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	if c == a {
		t.Errorf("distinct blobs collided at index %d", a)
	}
}

func TestBlobHeapEmpty(t *testing.T) {
	h := NewBlobHeap()
	idx, err := h.GetIndex(nil)
	if err != nil {
		t.Fatalf("GetIndex(nil): %v", err)
	}
	if idx != 0 {
		t.Errorf("GetIndex(nil) = %d, want 0", idx)
	}
}

func TestUserStringHeapTerminalByte(t *testing.T) {
	h := NewUserStringHeap()
	plain, err := h.GetIndex("hi")
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	flushed := h.Flush()
	if len(flushed) == 0 {
		t.Fatal("Flush() returned empty buffer")
	}
	// "hi" is a 1-byte length prefix, 4 bytes of UTF-16, then the terminal byte.
	term := int(plain) + 5
	if term >= len(flushed) {
		t.Fatalf("terminal byte index %d out of range (len %d)", term, len(flushed))
	}
	if flushed[term] != 0 {
		t.Errorf("terminal byte for %q = %#x, want 0", "hi", flushed[term])
	}
}

func TestUserStringHeapDedup(t *testing.T) {
	h := NewUserStringHeap()
	a, err := h.GetIndex("duplicate")
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	b, err := h.GetIndex("duplicate")
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	if a != b {
		t.Errorf("identical user strings got different indices: %d, %d", a, b)
	}
}

func TestGUIDHeapOneBased(t *testing.T) {
	h := NewGUIDHeap()
	var g1, g2 GUID
	g1[0] = 1
	g2[0] = 2

	i1 := h.GetIndex(g1)
	i2 := h.GetIndex(g2)
	i1Again := h.GetIndex(g1)

	if i1 != 1 {
		t.Errorf("first GUID index = %d, want 1", i1)
	}
	if i2 != 2 {
		t.Errorf("second GUID index = %d, want 2", i2)
	}
	if i1Again != i1 {
		t.Errorf("GetIndex not idempotent: got %d, want %d", i1Again, i1)
	}
}
