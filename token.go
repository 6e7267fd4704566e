// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

// Metadata table indices, per ECMA-335 §II.22. A Token's high byte is one
// of these values (or StringToken for a #US heap reference).
const (
	Module                 = 0x00
	TypeRef                = 0x01
	TypeDef                = 0x02
	FieldPtr               = 0x03
	Field                  = 0x04
	MethodPtr              = 0x05
	MethodDef              = 0x06
	ParamPtr               = 0x07
	Param                  = 0x08
	InterfaceImpl          = 0x09
	MemberRef              = 0x0a
	Constant               = 0x0b
	CustomAttribute        = 0x0c
	FieldMarshal           = 0x0d
	DeclSecurity           = 0x0e
	ClassLayout            = 0x0f
	FieldLayout            = 0x10
	StandAloneSig          = 0x11
	EventMap               = 0x12
	EventPtr               = 0x13
	Event                  = 0x14
	PropertyMap            = 0x15
	PropertyPtr            = 0x16
	Property               = 0x17
	MethodSemantics        = 0x18
	MethodImpl             = 0x19
	ModuleRef              = 0x1a
	TypeSpec               = 0x1b
	ImplMap                = 0x1c
	FieldRVA               = 0x1d
	ENCLog                 = 0x1e
	ENCMap                 = 0x1f
	Assembly               = 0x20
	AssemblyProcessor      = 0x21
	AssemblyOS             = 0x22
	AssemblyRef            = 0x23
	AssemblyRefProcessor   = 0x24
	AssemblyRefOS          = 0x25
	FileMD                 = 0x26
	ExportedType           = 0x27
	ManifestResource       = 0x28
	NestedClass            = 0x29
	GenericParam           = 0x2a
	MethodSpec             = 0x2b
	GenericParamConstraint = 0x2c

	// numTables is one past the highest table index defined by ECMA-335.
	numTables = 0x2d

	// StringToken is the pseudo table tag CIL ldstr operands use to name a
	// #US heap offset instead of a metadata row.
	StringToken = 0x70
)

// tableName maps a table index to its ECMA-335 name, used in error context
// strings and the tables-stream header dump.
var tableName = map[int]string{
	Module:                 "Module",
	TypeRef:                "TypeRef",
	TypeDef:                "TypeDef",
	FieldPtr:               "FieldPtr",
	Field:                  "Field",
	MethodPtr:              "MethodPtr",
	MethodDef:              "MethodDef",
	ParamPtr:               "ParamPtr",
	Param:                  "Param",
	InterfaceImpl:          "InterfaceImpl",
	MemberRef:              "MemberRef",
	Constant:               "Constant",
	CustomAttribute:        "CustomAttribute",
	FieldMarshal:           "FieldMarshal",
	DeclSecurity:           "DeclSecurity",
	ClassLayout:            "ClassLayout",
	FieldLayout:            "FieldLayout",
	StandAloneSig:          "StandAloneSig",
	EventMap:               "EventMap",
	EventPtr:               "EventPtr",
	Event:                  "Event",
	PropertyMap:            "PropertyMap",
	PropertyPtr:            "PropertyPtr",
	Property:               "Property",
	MethodSemantics:        "MethodSemantics",
	MethodImpl:             "MethodImpl",
	ModuleRef:              "ModuleRef",
	TypeSpec:               "TypeSpec",
	ImplMap:                "ImplMap",
	FieldRVA:               "FieldRVA",
	ENCLog:                 "ENCLog",
	ENCMap:                 "ENCMap",
	Assembly:               "Assembly",
	AssemblyProcessor:      "AssemblyProcessor",
	AssemblyOS:             "AssemblyOS",
	AssemblyRef:            "AssemblyRef",
	AssemblyRefProcessor:   "AssemblyRefProcessor",
	AssemblyRefOS:          "AssemblyRefOS",
	FileMD:                 "File",
	ExportedType:           "ExportedType",
	ManifestResource:       "ManifestResource",
	NestedClass:            "NestedClass",
	GenericParam:           "GenericParam",
	MethodSpec:             "MethodSpec",
	GenericParamConstraint: "GenericParamConstraint",
}

// TableIndexToString returns the ECMA-335 name of a table index, or "" if
// the index is not one of the 45 defined tables.
func TableIndexToString(idx int) string {
	return tableName[idx]
}

// Token is a 4-byte metadata handle: the high byte names a table (or
// StringToken for the user-string heap), the low 3 bytes are a 1-based RID.
// A zero Token is the null token.
type Token uint32

// NewToken packs a table tag and a 1-based row id into a Token.
func NewToken(table uint8, rid uint32) Token {
	return Token(uint32(table)<<24 | (rid & 0x00ffffff))
}

// Table returns the high-byte table tag of the token.
func (t Token) Table() uint8 {
	return uint8(t >> 24)
}

// RID returns the 1-based row index the token addresses within its table.
func (t Token) RID() uint32 {
	return uint32(t) & 0x00ffffff
}

// IsNull reports whether the token is the null token (rid == 0).
func (t Token) IsNull() bool {
	return t.RID() == 0
}

// String renders the token the way ildasm does, e.g. "0x06000001".
func (t Token) String() string {
	const hexDigits = "0123456789abcdef"
	buf := [10]byte{'0', 'x'}
	v := uint32(t)
	for i := 9; i >= 2; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf[:])
}
