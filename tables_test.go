// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "testing"

func TestAssignRIDAppendAndPreferred(t *testing.T) {
	tb := NewTablesBuffer()

	rid1, err := tb.AddModuleRefRow(0, ModuleRefTableRow{Name: 1})
	if err != nil {
		t.Fatalf("AddModuleRefRow: %v", err)
	}
	if rid1 != 1 {
		t.Fatalf("first append rid = %d, want 1", rid1)
	}

	// Reserve rid 3 ahead of time, leaving rid 2 as an unfilled placeholder.
	rid3, err := tb.AddModuleRefRow(3, ModuleRefTableRow{Name: 3})
	if err != nil {
		t.Fatalf("AddModuleRefRow(3): %v", err)
	}
	if rid3 != 3 {
		t.Fatalf("preferred rid = %d, want 3", rid3)
	}

	if _, _, ok := tb.unfilled(); !ok {
		t.Fatal("expected an unfilled gap at rid 2, found none")
	}

	if _, err := tb.AddModuleRefRow(2, ModuleRefTableRow{Name: 2}); err != nil {
		t.Fatalf("filling gap at rid 2: %v", err)
	}
	if _, _, ok := tb.unfilled(); ok {
		t.Fatal("gap at rid 2 should be filled")
	}

	if _, err := tb.AddModuleRefRow(2, ModuleRefTableRow{Name: 99}); err == nil {
		t.Fatal("expected DuplicateRid error reusing rid 2")
	}
}

func TestApplySortOrderGenericParamConstraintRemap(t *testing.T) {
	tb := NewTablesBuffer()

	// Two generic params inserted out of (Owner, Number) sort order: RID 1
	// is (owner=2, number=0), RID 2 is (owner=1, number=0). After sorting,
	// RID 1 should become RID 2 and vice versa.
	if _, err := tb.AddGenericParamRow(0, GenericParamTableRow{Owner: 2, Number: 0}); err != nil {
		t.Fatalf("AddGenericParamRow: %v", err)
	}
	if _, err := tb.AddGenericParamRow(0, GenericParamTableRow{Owner: 1, Number: 0}); err != nil {
		t.Fatalf("AddGenericParamRow: %v", err)
	}

	// A constraint owned by the generic param currently at RID 1 (owner=2).
	if _, err := tb.AddGenericParamConstraintRow(0, GenericParamConstraintTableRow{Owner: 1, Constraint: 0}); err != nil {
		t.Fatalf("AddGenericParamConstraintRow: %v", err)
	}

	tb.ApplySortOrder()

	if tb.genericParam[0].Owner != 1 {
		t.Errorf("after sort, first GenericParam row owner = %d, want 1", tb.genericParam[0].Owner)
	}
	if tb.genericParamConstraint[0].Owner != 2 {
		t.Errorf("GenericParamConstraint.Owner not remapped: got %d, want 2", tb.genericParamConstraint[0].Owner)
	}
}

func TestApplySortOrderInterfaceImpl(t *testing.T) {
	tb := NewTablesBuffer()
	if _, err := tb.AddInterfaceImplRow(0, InterfaceImplTableRow{Class: 2, Interface: 10}); err != nil {
		t.Fatalf("AddInterfaceImplRow: %v", err)
	}
	if _, err := tb.AddInterfaceImplRow(0, InterfaceImplTableRow{Class: 1, Interface: 5}); err != nil {
		t.Fatalf("AddInterfaceImplRow: %v", err)
	}

	tb.ApplySortOrder()

	if tb.interfaceImpl[0].Class != 1 {
		t.Errorf("InterfaceImpl not sorted by Class: first row Class = %d, want 1", tb.interfaceImpl[0].Class)
	}
}

func TestRowCountReflectsInsertions(t *testing.T) {
	tb := NewTablesBuffer()
	if n := tb.RowCount(Field); n != 0 {
		t.Fatalf("empty RowCount(Field) = %d, want 0", n)
	}
	if _, err := tb.AddFieldRow(0, FieldTableRow{Name: 1}); err != nil {
		t.Fatalf("AddFieldRow: %v", err)
	}
	if n := tb.RowCount(Field); n != 1 {
		t.Errorf("RowCount(Field) = %d, want 1", n)
	}
}
