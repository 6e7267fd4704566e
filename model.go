// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

// This file defines the object-graph vocabulary callers build up before
// handing it to a Builder (directory.go). Each type is a plain value that
// names a metadata row the way a .NET compiler's in-memory model would;
// the Builder turns them into rows and assigns the tokens they end up at.
// Fields that point at another part of the graph do so by Go pointer, not
// by token, since tokens don't exist until the Builder assigns them.

// ModuleDefinition is the single Module table row every assembly has, and
// the root of the graph a Builder walks: CreateDirectory traverses Types
// (and everything they reach) in declaration order to produce the Field,
// MethodDef, and Param tables' ECMA-mandated contiguous ranges.
type ModuleDefinition struct {
	Name      string
	Mvid      GUID
	EncID     GUID
	EncBaseID GUID

	// Flags is the CLI header's COMIMAGE_FLAGS bitmask (ECMA §II.25.3.3.1),
	// a distinct flag space from AssemblyDefinition.Flags.
	Flags uint32

	Assembly      *AssemblyDefinition
	Types         []*TypeDefinition
	ExportedTypes []*ExportedType
	Files         []*FileReference
	Resources     []*ManifestResource
	EntryPoint    any // *MethodDefinition, *FileReference, or nil
}

// AssemblyDefinition is the optional Assembly table row naming this
// module's own identity.
type AssemblyDefinition struct {
	Name          string
	Culture       string
	Version       [4]uint16 // Major, Minor, Build, Revision
	PublicKey     []byte
	Flags         uint32
	HashAlgorithm uint32

	CustomAttributes []*CustomAttribute
	DeclSecurity     []*DeclSecurity
}

// AssemblyRef is a reference to an externally defined assembly.
type AssemblyRef struct {
	Name             string
	Culture          string
	Version          [4]uint16
	PublicKeyOrToken []byte
	HashValue        []byte
	Flags            uint32
}

// ModuleReference is a reference to another module within the same
// assembly (e.g. a satellite .netmodule holding a ManagedResource).
type ModuleReference struct {
	Name string
}

// TypeReference names a type defined outside this module, resolved through
// ResolutionScope (an *AssemblyRef, *ModuleReference, *TypeReference for a
// nested type, or nil for "the current module").
type TypeReference struct {
	Namespace       string
	Name            string
	ResolutionScope any
}

// TypeDefinition is a type defined in this module.
type TypeDefinition struct {
	Namespace     string
	Name          string
	Flags         uint32
	BaseType      any             // *TypeDefinition, *TypeReference, *TypeSpecification, or nil
	EnclosingType *TypeDefinition // non-nil for a nested type

	Fields           []*FieldDefinition
	Methods          []*MethodDefinition
	Events           []*EventDefinition
	Properties       []*PropertyDefinition
	Interfaces       []*InterfaceImplementation
	GenericParams    []*GenericParameter
	CustomAttributes []*CustomAttribute
	Layout           *ClassLayout
}

// TypeSpecification is a constructed type (array, generic instantiation,
// pointer, ...) described by a raw signature blob.
type TypeSpecification struct {
	Signature []byte
}

// FieldDefinition is a field defined on a TypeDefinition.
type FieldDefinition struct {
	DeclaringType *TypeDefinition
	Name          string
	Flags         uint16
	Signature     []byte

	CustomAttributes []*CustomAttribute
	Marshal          *FieldMarshal
	Layout           *FieldLayout // explicit offset, for sequential/explicit layout types
	RVA              *FieldRVA    // compile-time-initialized data location
	Constant         *ConstantValue
}

// ParamDefinition documents one parameter (or the return value, at
// Sequence 0) of a MethodDefinition.
type ParamDefinition struct {
	Name     string
	Flags    uint16
	Sequence uint16

	CustomAttributes []*CustomAttribute
	Marshal          *FieldMarshal
	Constant         *ConstantValue
}

// TokenFixup marks a 4-byte operand within MethodBody.Code that must be
// overwritten with Object's final token once the Builder has assigned one:
// compilers emit CIL against objects, not tokens, since a token doesn't
// exist until the referenced row is added. Object is usually a pointer to
// one of the imported reference/member types, but a ldstr operand names a
// UserString instead, since the #US heap has no row-owning struct of its
// own.
type TokenFixup struct {
	Offset uint32
	Object any
}

// UserString is a TokenFixup.Object naming a ldstr operand: the Builder
// interns the value into the #US heap and resolves it to a StringToken-
// tagged token (ECMA §II.24.2.4, §II.25.4.1 "ldstr").
type UserString string

// MethodBody is a method's CIL, carried separately from MethodDefinition so
// it can be attached lazily once the defining type's other members are
// known.
type MethodBody struct {
	MaxStack        uint16
	InitLocals      bool
	LocalsSignature []byte // StandAloneSig blob, or nil for no locals
	Code            []byte // raw CIL; operand bytes named by Fixups are placeholders
	Fixups          []TokenFixup
	ExceptionClauses []ExceptionClause
}

// ExceptionClause is one SEH/CLR exception region.
type ExceptionClause struct {
	Flags      uint32
	TryOffset  uint32
	TryLength  uint32
	HandlerOffset uint32
	HandlerLength uint32
	ClassToken uint32 // valid when Flags is the typed-catch kind
	FilterOffset  uint32 // valid when Flags is the filter kind
}

// MethodDefinition is a method defined on a TypeDefinition.
type MethodDefinition struct {
	DeclaringType *TypeDefinition
	Name          string
	Flags         uint16
	ImplFlags     uint16
	Signature     []byte
	RVA           uint32 // patched by a PE emitter once Body is placed; 0 if Body is nil
	Params        []*ParamDefinition
	Body          *MethodBody // nil for abstract/pinvoke/runtime methods

	CustomAttributes []*CustomAttribute
	GenericParams    []*GenericParameter
	ImplMap          *ImplMap
	DeclSecurity     []*DeclSecurity
	Overrides        []any // *MethodDefinition or *MemberReference this method implements (MethodImpl)
}

// MemberReference is a reference to a field or method defined outside this
// module (or, for a vararg call, a differently-signatured view of a local
// method), resolved through Parent.
type MemberReference struct {
	Parent    any // *TypeReference, *TypeDefinition, *ModuleReference, *MethodDefinition, or *TypeSpecification
	Name      string
	Signature []byte
}

// CustomAttribute attaches a blob-encoded attribute instance to Parent.
type CustomAttribute struct {
	Parent      any
	Constructor any // *MethodDefinition or *MemberReference
	Value       []byte
}

// GenericParameter is one generic type/method parameter slot.
type GenericParameter struct {
	Owner  any // *TypeDefinition or *MethodDefinition
	Number uint16
	Flags  uint16
	Name   string

	Constraints []*GenericParamConstraint
}

// GenericParamConstraint restricts a GenericParameter to types assignable
// from Constraint.
type GenericParamConstraint struct {
	Owner      *GenericParameter
	Constraint any // *TypeDefinition, *TypeReference, or *TypeSpecification
}

// InterfaceImplementation records that Class implements Interface.
type InterfaceImplementation struct {
	Class     *TypeDefinition
	Interface any // *TypeDefinition, *TypeReference, or *TypeSpecification
}

// ClassLayout fixes Class's packing size and/or total size.
type ClassLayout struct {
	Class       *TypeDefinition
	PackingSize uint16
	ClassSize   uint32
}

// FieldLayout fixes Field's explicit byte offset within its declaring type.
type FieldLayout struct {
	Field  *FieldDefinition
	Offset uint32
}

// FieldMarshal describes the native marshaling of Parent.
type FieldMarshal struct {
	Parent     any // *FieldDefinition or *ParamDefinition
	NativeType []byte
}

// FieldRVA is a compile-time-initialized field's initial data location.
type FieldRVA struct {
	Field *FieldDefinition
	RVA   uint32
}

// DeclSecurity attaches a declarative security permission set to Parent.
type DeclSecurity struct {
	Parent        any // *TypeDefinition, *MethodDefinition, or *AssemblyDefinition
	Action        uint16
	PermissionSet []byte
}

// ImplMap is a P/Invoke import binding for Member.
type ImplMap struct {
	Member       any // *FieldDefinition or *MethodDefinition
	MappingFlags uint16
	ImportName   string
	ImportScope  *ModuleReference
}

// NestedClassRelation records that Nested is lexically nested in Enclosing.
// The Builder does not read it: NestedClass rows come only from
// TypeDefinition.EnclosingType.
type NestedClassRelation struct {
	Nested    *TypeDefinition
	Enclosing *TypeDefinition
}

// FileReference names a non-metadata or secondary-module file that is part
// of this assembly's multi-file deployment unit.
type FileReference struct {
	Name      string
	HashValue []byte
	Flags     uint32
}

// ExportedType forwards a type defined in another module/file of the same
// assembly.
type ExportedType struct {
	Namespace      string
	Name           string
	Flags          uint32
	TypeDefId      uint32
	Implementation any // *FileReference, *AssemblyRef, or *ExportedType (enclosing)
}

// ManifestResource is an embedded or linked resource blob.
type ManifestResource struct {
	Name           string
	Flags          uint32
	Implementation any // nil for embedded-in-this-module, else *FileReference or *AssemblyRef
	Data           []byte
}

// StandAloneSignature is a signature not otherwise owned by a row (a local
// variable list, or a calli call site).
type StandAloneSignature struct {
	Signature []byte
}

// MethodSpecification is a generic method instantiation.
type MethodSpecification struct {
	Method        any // *MethodDefinition or *MemberReference
	Instantiation []byte
}

// EventDefinition is one event on a TypeDefinition.
type EventDefinition struct {
	DeclaringType *TypeDefinition
	Name          string
	Flags         uint16
	EventType     any // *TypeDefinition, *TypeReference, or *TypeSpecification
	AddMethod     *MethodDefinition
	RemoveMethod  *MethodDefinition
	FireMethod    *MethodDefinition
	OtherMethods  []*MethodDefinition
}

// PropertyDefinition is one property on a TypeDefinition.
type PropertyDefinition struct {
	DeclaringType *TypeDefinition
	Name          string
	Flags         uint16
	Signature     []byte
	GetMethod     *MethodDefinition
	SetMethod     *MethodDefinition
	OtherMethods  []*MethodDefinition
	DefaultValue  *ConstantValue
}

// ConstantValue is a compile-time constant attached to a Field, Param, or
// Property.
type ConstantValue struct {
	Type  uint8
	Value []byte
}
