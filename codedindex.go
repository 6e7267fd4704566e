// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

// A coded index packs a choice among several tables, plus a row in the
// chosen table, into one integer: (rid << tagBits) | tagOf(table). The
// member-table lists and tag widths below are the write-side twin of the
// codedidx table a reader uses to size and decode the same columns; see
// ECMA-335 §II.24.2.6.
//
// noTable marks a reserved tag slot that ECMA-335 defines but no table
// currently occupies (distinct from Module, whose table index is
// legitimately 0).
const noTable = -1

// CodedIndexKind names one of the 13 coded-index categories ECMA-335
// defines.
type CodedIndexKind int

const (
	TypeDefOrRef CodedIndexKind = iota
	HasConstant
	HasCustomAttribute
	HasFieldMarshal
	HasDeclSecurity
	MemberRefParent
	HasSemantics
	MethodDefOrRef
	MemberForwarded
	Implementation
	CustomAttributeType
	ResolutionScope
	TypeOrMethodDef
)

// codedIndexSpec describes one category: its ordered member-table list
// (index into the list is the tag value) and the number of tag bits that
// list requires.
type codedIndexSpec struct {
	tables  []int
	tagBits uint
}

// codedIndexSpecs is the static ECMA-335 table of categories. Member-table
// order matters: it is the tag assignment, and changing it would silently
// break every previously-encoded coded index.
var codedIndexSpecs = map[CodedIndexKind]codedIndexSpec{
	TypeDefOrRef: {tagBits: 2, tables: []int{
		TypeDef, TypeRef, TypeSpec,
	}},
	HasConstant: {tagBits: 2, tables: []int{
		Field, Param, Property,
	}},
	HasCustomAttribute: {tagBits: 5, tables: []int{
		MethodDef, Field, TypeRef, TypeDef, Param, InterfaceImpl, MemberRef,
		Module, DeclSecurity, Property, Event, StandAloneSig, ModuleRef,
		TypeSpec, Assembly, AssemblyRef, FileMD, ExportedType,
		ManifestResource, GenericParam, GenericParamConstraint, MethodSpec,
	}},
	HasFieldMarshal: {tagBits: 1, tables: []int{
		Field, Param,
	}},
	HasDeclSecurity: {tagBits: 2, tables: []int{
		TypeDef, MethodDef, Assembly,
	}},
	MemberRefParent: {tagBits: 3, tables: []int{
		TypeDef, TypeRef, ModuleRef, MethodDef, TypeSpec,
	}},
	HasSemantics: {tagBits: 1, tables: []int{
		Event, Property,
	}},
	MethodDefOrRef: {tagBits: 1, tables: []int{
		MethodDef, MemberRef,
	}},
	MemberForwarded: {tagBits: 1, tables: []int{
		Field, MethodDef,
	}},
	Implementation: {tagBits: 2, tables: []int{
		FileMD, AssemblyRef, ExportedType,
	}},
	CustomAttributeType: {tagBits: 3, tables: []int{
		noTable, noTable, MethodDef, MemberRef, noTable,
	}},
	ResolutionScope: {tagBits: 2, tables: []int{
		Module, ModuleRef, AssemblyRef, TypeRef,
	}},
	TypeOrMethodDef: {tagBits: 1, tables: []int{
		TypeDef, MethodDef,
	}},
}

// EncodeCodedIndex packs tok into kind's coded-index representation. A null
// token always encodes as 0, regardless of category.
func EncodeCodedIndex(kind CodedIndexKind, tok Token) (uint32, error) {
	if tok.IsNull() {
		return 0, nil
	}
	spec := codedIndexSpecs[kind]
	tag := -1
	for i, t := range spec.tables {
		if t != noTable && uint8(t) == tok.Table() {
			tag = i
			break
		}
	}
	if tag < 0 {
		return 0, newInvalidCodedIndexError(kind, tok)
	}
	return (tok.RID() << spec.tagBits) | uint32(tag), nil
}

// DecodeCodedIndex is the inverse of EncodeCodedIndex; it exists so that
// round-trip tests can assert encode/decode symmetry without depending on
// an external reader.
func DecodeCodedIndex(kind CodedIndexKind, coded uint32) (Token, error) {
	if coded == 0 {
		return Token(0), nil
	}
	spec := codedIndexSpecs[kind]
	mask := uint32(1)<<spec.tagBits - 1
	tag := coded & mask
	rid := coded >> spec.tagBits
	if int(tag) >= len(spec.tables) || spec.tables[tag] == noTable {
		return 0, newInvalidCodedIndexError(kind, Token(coded))
	}
	return NewToken(uint8(spec.tables[tag]), rid), nil
}

// codedIndexWidth reports whether a coded index in category kind needs 2 or
// 4 bytes once every member table's current row count is known, per
// ECMA-335 §II.24.2.6: 2 bytes unless the largest member table's row count,
// shifted left by the tag width, overflows 16 bits.
func codedIndexWidth(kind CodedIndexKind, rowCounts func(table int) uint32) int {
	spec := codedIndexSpecs[kind]
	var maxRows uint32
	for _, t := range spec.tables {
		if t == noTable {
			continue
		}
		if n := rowCounts(t); n > maxRows {
			maxRows = n
		}
	}
	if maxRows<<spec.tagBits > 0xffff {
		return 4
	}
	return 2
}
