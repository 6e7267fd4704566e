// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

// This file defines the write-side row shapes for 38 of the 45 ECMA-335
// metadata tables (§II.22); FieldPtr, MethodPtr, ParamPtr, EventPtr,
// PropertyPtr, ENCLog and ENCMap have no row shape. Heap-index fields are named after the heap they point
// into; fields documented "(coded)" hold the output of EncodeCodedIndex for
// the category named; all other uint32 fields are simple 1-based RIDs into
// the table named by the field's doc comment.

// ModuleTableRow is table 0x00.
type ModuleTableRow struct {
	Generation uint16
	Name       uint32 // #Strings
	Mvid       uint32 // #GUID
	EncID      uint32 // #GUID
	EncBaseID  uint32 // #GUID
}

// TypeRefTableRow is table 0x01.
type TypeRefTableRow struct {
	ResolutionScope uint32 // coded: ResolutionScope
	TypeName        uint32 // #Strings
	TypeNamespace   uint32 // #Strings
}

// TypeDefTableRow is table 0x02.
type TypeDefTableRow struct {
	Flags         uint32
	TypeName      uint32 // #Strings
	TypeNamespace uint32 // #Strings
	Extends       uint32 // coded: TypeDefOrRef
	FieldList     uint32 // Field
	MethodList    uint32 // MethodDef
}

// FieldTableRow is table 0x04.
type FieldTableRow struct {
	Flags     uint16
	Name      uint32 // #Strings
	Signature uint32 // #Blob
}

// MethodDefTableRow is table 0x06.
type MethodDefTableRow struct {
	RVA       uint32
	ImplFlags uint16
	Flags     uint16
	Name      uint32 // #Strings
	Signature uint32 // #Blob
	ParamList uint32 // Param
}

// ParamTableRow is table 0x08.
type ParamTableRow struct {
	Flags    uint16
	Sequence uint16
	Name     uint32 // #Strings
}

// InterfaceImplTableRow is table 0x09.
type InterfaceImplTableRow struct {
	Class     uint32 // TypeDef
	Interface uint32 // coded: TypeDefOrRef
}

// MemberRefTableRow is table 0x0a.
type MemberRefTableRow struct {
	Class     uint32 // coded: MemberRefParent
	Name      uint32 // #Strings
	Signature uint32 // #Blob
}

// ConstantTableRow is table 0x0b.
type ConstantTableRow struct {
	Type    uint8
	Padding uint8
	Parent  uint32 // coded: HasConstant
	Value   uint32 // #Blob
}

// CustomAttributeTableRow is table 0x0c.
type CustomAttributeTableRow struct {
	Parent uint32 // coded: HasCustomAttribute
	Type   uint32 // coded: CustomAttributeType
	Value  uint32 // #Blob
}

// FieldMarshalTableRow is table 0x0d.
type FieldMarshalTableRow struct {
	Parent     uint32 // coded: HasFieldMarshal
	NativeType uint32 // #Blob
}

// DeclSecurityTableRow is table 0x0e.
type DeclSecurityTableRow struct {
	Action        uint16
	Parent        uint32 // coded: HasDeclSecurity
	PermissionSet uint32 // #Blob
}

// ClassLayoutTableRow is table 0x0f.
type ClassLayoutTableRow struct {
	PackingSize uint16
	ClassSize   uint32
	Parent      uint32 // TypeDef
}

// FieldLayoutTableRow is table 0x10.
type FieldLayoutTableRow struct {
	Offset uint32
	Field  uint32 // Field
}

// StandAloneSigTableRow is table 0x11.
type StandAloneSigTableRow struct {
	Signature uint32 // #Blob
}

// EventMapTableRow is table 0x12.
type EventMapTableRow struct {
	Parent    uint32 // TypeDef
	EventList uint32 // Event
}

// EventTableRow is table 0x14.
type EventTableRow struct {
	EventFlags uint16
	Name       uint32 // #Strings
	EventType  uint32 // coded: TypeDefOrRef
}

// PropertyMapTableRow is table 0x15.
type PropertyMapTableRow struct {
	Parent       uint32 // TypeDef
	PropertyList uint32 // Property
}

// PropertyTableRow is table 0x17.
type PropertyTableRow struct {
	Flags uint16
	Name  uint32 // #Strings
	Type  uint32 // #Blob
}

// MethodSemanticsTableRow is table 0x18.
type MethodSemanticsTableRow struct {
	Semantics   uint16
	Method      uint32 // MethodDef
	Association uint32 // coded: HasSemantics
}

// MethodImplTableRow is table 0x19.
type MethodImplTableRow struct {
	Class             uint32 // TypeDef
	MethodBody        uint32 // coded: MethodDefOrRef
	MethodDeclaration uint32 // coded: MethodDefOrRef
}

// ModuleRefTableRow is table 0x1a.
type ModuleRefTableRow struct {
	Name uint32 // #Strings
}

// TypeSpecTableRow is table 0x1b.
type TypeSpecTableRow struct {
	Signature uint32 // #Blob
}

// ImplMapTableRow is table 0x1c.
type ImplMapTableRow struct {
	MappingFlags   uint16
	MemberForwarded uint32 // coded: MemberForwarded
	ImportName     uint32 // #Strings
	ImportScope    uint32 // ModuleRef
}

// FieldRVATableRow is table 0x1d.
type FieldRVATableRow struct {
	RVA   uint32
	Field uint32 // Field
}

// AssemblyTableRow is table 0x20.
type AssemblyTableRow struct {
	HashAlgId      uint32
	MajorVersion   uint16
	MinorVersion   uint16
	BuildNumber    uint16
	RevisionNumber uint16
	Flags          uint32
	PublicKey      uint32 // #Blob
	Name           uint32 // #Strings
	Culture        uint32 // #Strings
}

// AssemblyProcessorTableRow is table 0x21.
type AssemblyProcessorTableRow struct {
	Processor uint32
}

// AssemblyOSTableRow is table 0x22.
type AssemblyOSTableRow struct {
	OSPlatformID  uint32
	OSMajorVersion uint32
	OSMinorVersion uint32
}

// AssemblyRefTableRow is table 0x23.
type AssemblyRefTableRow struct {
	MajorVersion     uint16
	MinorVersion     uint16
	BuildNumber      uint16
	RevisionNumber   uint16
	Flags            uint32
	PublicKeyOrToken uint32 // #Blob
	Name             uint32 // #Strings
	Culture          uint32 // #Strings
	HashValue        uint32 // #Blob
}

// AssemblyRefProcessorTableRow is table 0x24.
type AssemblyRefProcessorTableRow struct {
	Processor   uint32
	AssemblyRef uint32 // AssemblyRef
}

// AssemblyRefOSTableRow is table 0x25.
type AssemblyRefOSTableRow struct {
	OSPlatformID   uint32
	OSMajorVersion uint32
	OSMinorVersion uint32
	AssemblyRef    uint32 // AssemblyRef
}

// FileTableRow is table 0x26.
type FileTableRow struct {
	Flags     uint32
	Name      uint32 // #Strings
	HashValue uint32 // #Blob
}

// ExportedTypeTableRow is table 0x27.
type ExportedTypeTableRow struct {
	Flags          uint32
	TypeDefId      uint32
	TypeName       uint32 // #Strings
	TypeNamespace  uint32 // #Strings
	Implementation uint32 // coded: Implementation
}

// ManifestResourceTableRow is table 0x28.
type ManifestResourceTableRow struct {
	Offset         uint32
	Flags          uint32
	Name           uint32 // #Strings
	Implementation uint32 // coded: Implementation
}

// NestedClassTableRow is table 0x29.
type NestedClassTableRow struct {
	NestedClass    uint32 // TypeDef
	EnclosingClass uint32 // TypeDef
}

// GenericParamTableRow is table 0x2a.
type GenericParamTableRow struct {
	Number uint16
	Flags  uint16
	Owner  uint32 // coded: TypeOrMethodDef
	Name   uint32 // #Strings
}

// MethodSpecTableRow is table 0x2b.
type MethodSpecTableRow struct {
	Method        uint32 // coded: MethodDefOrRef
	Instantiation uint32 // #Blob
}

// GenericParamConstraintTableRow is table 0x2c.
type GenericParamConstraintTableRow struct {
	Owner      uint32 // GenericParam
	Constraint uint32 // coded: TypeDefOrRef
}
