// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "testing"

func TestSerializeHeapWidthPromotion(t *testing.T) {
	tb := NewTablesBuffer()
	if _, err := tb.AddModuleRow(0, ModuleTableRow{Name: 1, Mvid: 1}); err != nil {
		t.Fatalf("AddModuleRow: %v", err)
	}

	narrow := tb.Serialize(HeapSizes{Strings: 0x100, GUID: 16, Blob: 4})
	if narrow[6]&0x01 != 0 {
		t.Fatalf("heap_sizes byte = 0x%02x, want bit 0 clear for narrow #Strings", narrow[6])
	}

	wide := tb.Serialize(HeapSizes{Strings: 0x10000, GUID: 16, Blob: 4})
	if wide[6]&0x01 == 0 {
		t.Fatalf("heap_sizes byte = 0x%02x, want bit 0 set once #Strings reaches 2^16", wide[6])
	}
}

func TestSerializeValidBitmaskMatchesPopulatedTables(t *testing.T) {
	tb := NewTablesBuffer()
	if _, err := tb.AddModuleRow(0, ModuleTableRow{Name: 1, Mvid: 1}); err != nil {
		t.Fatalf("AddModuleRow: %v", err)
	}
	if _, err := tb.AddTypeRefRow(0, TypeRefTableRow{TypeName: 2}); err != nil {
		t.Fatalf("AddTypeRefRow: %v", err)
	}

	out := tb.Serialize(HeapSizes{})
	// header: Reserved(4) MajorVersion(1) MinorVersion(1) HeapSizes(1) Reserved2(1) = 8 bytes
	// then Valid (8 bytes little-endian).
	var valid uint64
	for i := 0; i < 8; i++ {
		valid |= uint64(out[8+i]) << (8 * i)
	}
	if valid&(1<<Module) == 0 {
		t.Error("Valid bitmask missing Module bit")
	}
	if valid&(1<<TypeRef) == 0 {
		t.Error("Valid bitmask missing TypeRef bit")
	}
	if valid&(1<<Field) != 0 {
		t.Error("Valid bitmask set for an empty table (Field)")
	}
}

func TestSerializeRowCountsMatchPopulatedTableOrder(t *testing.T) {
	tb := NewTablesBuffer()
	if _, err := tb.AddModuleRow(0, ModuleTableRow{Name: 1, Mvid: 1}); err != nil {
		t.Fatalf("AddModuleRow: %v", err)
	}
	if _, err := tb.AddFieldRow(0, FieldTableRow{Name: 2}); err != nil {
		t.Fatalf("AddFieldRow: %v", err)
	}
	if _, err := tb.AddFieldRow(0, FieldTableRow{Name: 3}); err != nil {
		t.Fatalf("AddFieldRow: %v", err)
	}

	out := tb.Serialize(HeapSizes{})
	// Row count list starts right after Valid+Sorted (8 header bytes + 8 + 8).
	rowCountsOffset := 24
	moduleCount := uint32(out[rowCountsOffset]) | uint32(out[rowCountsOffset+1])<<8 |
		uint32(out[rowCountsOffset+2])<<16 | uint32(out[rowCountsOffset+3])<<24
	if moduleCount != 1 {
		t.Errorf("first row count (Module) = %d, want 1", moduleCount)
	}
	fieldCount := uint32(out[rowCountsOffset+4]) | uint32(out[rowCountsOffset+5])<<8 |
		uint32(out[rowCountsOffset+6])<<16 | uint32(out[rowCountsOffset+7])<<24
	if fieldCount != 2 {
		t.Errorf("second row count (Field) = %d, want 2", fieldCount)
	}
}
