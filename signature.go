// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "github.com/dotnetmd/clrmeta/errs"

// ECMA §II.23.1.16 element type tags.
const (
	elementTypeEnd         = 0x00
	elementTypeVoid        = 0x01
	elementTypeBoolean     = 0x02
	elementTypeChar        = 0x03
	elementTypeI1          = 0x04
	elementTypeU1          = 0x05
	elementTypeI2          = 0x06
	elementTypeU2          = 0x07
	elementTypeI4          = 0x08
	elementTypeU4          = 0x09
	elementTypeI8          = 0x0a
	elementTypeU8          = 0x0b
	elementTypeR4          = 0x0c
	elementTypeR8          = 0x0d
	elementTypeString      = 0x0e
	elementTypePtr         = 0x0f
	elementTypeByRef       = 0x10
	elementTypeValueType   = 0x11
	elementTypeClass       = 0x12
	elementTypeVar         = 0x13
	elementTypeArray       = 0x14
	elementTypeGenericInst = 0x15
	elementTypeTypedByRef  = 0x16
	elementTypeI           = 0x18
	elementTypeU           = 0x19
	elementTypeFnPtr       = 0x1b
	elementTypeObject      = 0x1c
	elementTypeSzArray     = 0x1d
	elementTypeMVar        = 0x1e
	elementTypeCModReqd    = 0x1f
	elementTypeCModOpt     = 0x20
	elementTypePinned      = 0x45
	elementTypeSentinel    = 0x41

	sigFlagDefault    = 0x00
	sigFlagVarArg     = 0x05
	sigFlagGeneric    = 0x10
	sigFlagHasThis    = 0x20
	sigFlagExplicitThis = 0x40
	sigFlagField      = 0x06
	sigFlagLocalVar   = 0x07
	sigFlagProperty   = 0x08

	// sigCallConvGenericInst is IMAGE_CEE_CS_CALLCONV_GENERICINST, the
	// leading byte of a METHODSPEC instantiation blob (§II.23.2.15). It is
	// distinct from sigFlagGeneric (0x10, IMAGE_CEE_CS_CALLCONV_GENERIC),
	// which marks a generic method's own signature as taking type-argument
	// count, not an instantiation site.
	sigCallConvGenericInst = 0x0a
)

// TokenResolver maps a model.go object (a *TypeDefinition, *TypeReference,
// or *TypeSpecification) to its already-assigned Token, so the signature
// builder can emit TypeDefOrRef coded indices without knowing about
// directory.go's bookkeeping. Builder (directory.go) implements this.
type TokenResolver interface {
	ResolveToken(obj any) (Token, error)
}

// SignatureBuilder assembles ECMA §II.23 signature blobs. It tracks which
// object identities are mid-encode so a caller-supplied type graph with an
// accidental cycle (e.g. a TypeElement that reaches itself again through
// its SzArray, Ptr or generic-argument children) fails
// with InvalidSignature instead of recursing forever; legitimate recursive
// generics bottom out because a class/valuetype element only ever emits a
// coded index token, never the referenced type's own shape.
type SignatureBuilder struct {
	resolver TokenResolver
	visiting map[any]bool
}

// NewSignatureBuilder returns a SignatureBuilder that resolves type graph
// nodes to tokens through resolver.
func NewSignatureBuilder(resolver TokenResolver) *SignatureBuilder {
	return &SignatureBuilder{resolver: resolver, visiting: make(map[any]bool)}
}

// TypeElement is the input to encodeType: exactly one field should be set,
// naming which ECMA §II.23.2.12 alternative this node is.
type TypeElement struct {
	Primitive  int  // one of the elementType* primitive constants, or 0 if unused
	ValueType  any  // *TypeDefinition/*TypeReference/*TypeSpecification, boxed as ValueType
	Class      any  // same, boxed as Class
	SzArray    *TypeElement
	Array      *ArrayShape
	GenericVar *GenericVarRef
	GenericInst *GenericInstance
	Ptr        *TypeElement // "void*" is a Ptr whose Primitive is elementTypeVoid
	ByRef      *TypeElement
	Pinned     *TypeElement
	ModReqd    *ModifiedType
	ModOpt     *ModifiedType
}

// ArrayShape is a general (non-vector) array's rank/bounds descriptor.
type ArrayShape struct {
	Element    *TypeElement
	Rank       uint32
	Sizes      []uint32
	LoBounds   []int32
}

// GenericVarRef names a !0-style class (Method=false) or !!0-style method
// (Method=true) generic parameter reference.
type GenericVarRef struct {
	Method bool
	Number uint32
}

// GenericInstance is a GENERICINST element: a generic type definition
// applied to a fixed argument list.
type GenericInstance struct {
	IsValueType bool
	Generic     any // *TypeDefinition or *TypeReference naming the open generic type
	Args        []*TypeElement
}

// ModifiedType is a custom-modifier-qualified element (CMOD_REQD/CMOD_OPT).
type ModifiedType struct {
	Modifier any // *TypeDefinition or *TypeReference
	Element  *TypeElement
}

func (b *SignatureBuilder) resolveCodedIndex(kind CodedIndexKind, obj any) (uint32, error) {
	tok, err := b.resolver.ResolveToken(obj)
	if err != nil {
		return 0, err
	}
	return EncodeCodedIndex(kind, tok)
}

func (b *SignatureBuilder) encodeType(buf []byte, el *TypeElement) ([]byte, error) {
	if el == nil {
		return nil, errs.New(errs.InvalidSignature, nil, "nil type element")
	}
	if b.visiting[el] {
		return nil, errs.New(errs.InvalidSignature, el, "cyclic type signature")
	}
	b.visiting[el] = true
	defer delete(b.visiting, el)

	switch {
	case el.Primitive != 0:
		return WriteUint8(buf, uint8(el.Primitive)), nil
	case el.ValueType != nil:
		buf = WriteUint8(buf, elementTypeValueType)
		idx, err := b.resolveCodedIndex(TypeDefOrRef, el.ValueType)
		if err != nil {
			return nil, err
		}
		return CompressedUint(buf, idx)
	case el.Class != nil:
		buf = WriteUint8(buf, elementTypeClass)
		idx, err := b.resolveCodedIndex(TypeDefOrRef, el.Class)
		if err != nil {
			return nil, err
		}
		return CompressedUint(buf, idx)
	case el.SzArray != nil:
		buf = WriteUint8(buf, elementTypeSzArray)
		return b.encodeType(buf, el.SzArray)
	case el.Array != nil:
		return b.encodeArray(buf, el.Array)
	case el.GenericVar != nil:
		tag := uint8(elementTypeVar)
		if el.GenericVar.Method {
			tag = elementTypeMVar
		}
		buf = WriteUint8(buf, tag)
		return CompressedUint(buf, el.GenericVar.Number)
	case el.GenericInst != nil:
		return b.encodeGenericInst(buf, el.GenericInst)
	case el.Ptr != nil:
		buf = WriteUint8(buf, elementTypePtr)
		if el.Ptr.Primitive == elementTypeVoid {
			return WriteUint8(buf, elementTypeVoid), nil
		}
		return b.encodeType(buf, el.Ptr)
	case el.ByRef != nil:
		buf = WriteUint8(buf, elementTypeByRef)
		return b.encodeType(buf, el.ByRef)
	case el.Pinned != nil:
		buf = WriteUint8(buf, elementTypePinned)
		return b.encodeType(buf, el.Pinned)
	case el.ModReqd != nil:
		return b.encodeModified(buf, elementTypeCModReqd, el.ModReqd)
	case el.ModOpt != nil:
		return b.encodeModified(buf, elementTypeCModOpt, el.ModOpt)
	default:
		return nil, errs.New(errs.InvalidSignature, el, "empty type element")
	}
}

func (b *SignatureBuilder) encodeModified(buf []byte, tag uint8, mt *ModifiedType) ([]byte, error) {
	buf = WriteUint8(buf, tag)
	idx, err := b.resolveCodedIndex(TypeDefOrRef, mt.Modifier)
	if err != nil {
		return nil, err
	}
	buf, err = CompressedUint(buf, idx)
	if err != nil {
		return nil, err
	}
	return b.encodeType(buf, mt.Element)
}

func (b *SignatureBuilder) encodeArray(buf []byte, shape *ArrayShape) ([]byte, error) {
	var err error
	buf = WriteUint8(buf, elementTypeArray)
	buf, err = b.encodeType(buf, shape.Element)
	if err != nil {
		return nil, err
	}
	buf, err = CompressedUint(buf, shape.Rank)
	if err != nil {
		return nil, err
	}
	buf, err = CompressedUint(buf, uint32(len(shape.Sizes)))
	if err != nil {
		return nil, err
	}
	for _, s := range shape.Sizes {
		if buf, err = CompressedUint(buf, s); err != nil {
			return nil, err
		}
	}
	buf, err = CompressedUint(buf, uint32(len(shape.LoBounds)))
	if err != nil {
		return nil, err
	}
	for _, lb := range shape.LoBounds {
		if buf, err = CompressedInt(buf, lb); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (b *SignatureBuilder) encodeGenericInst(buf []byte, gi *GenericInstance) ([]byte, error) {
	var err error
	buf = WriteUint8(buf, elementTypeGenericInst)
	tag := uint8(elementTypeClass)
	if gi.IsValueType {
		tag = elementTypeValueType
	}
	buf = WriteUint8(buf, tag)
	idx, err := b.resolveCodedIndex(TypeDefOrRef, gi.Generic)
	if err != nil {
		return nil, err
	}
	buf, err = CompressedUint(buf, idx)
	if err != nil {
		return nil, err
	}
	buf, err = CompressedUint(buf, uint32(len(gi.Args)))
	if err != nil {
		return nil, err
	}
	for _, arg := range gi.Args {
		if buf, err = b.encodeType(buf, arg); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// FieldSignature builds a FIELD signature blob (§II.23.2.4) for elem.
func (b *SignatureBuilder) FieldSignature(elem *TypeElement) ([]byte, error) {
	buf := []byte{sigFlagField}
	return b.encodeType(buf, elem)
}

// MethodParam holds a parameter's type; a by-ref parameter sets Type.ByRef.
type MethodParam struct {
	Type *TypeElement
}

// MethodSignature builds a METHOD signature blob (§II.23.2.1).
func (b *SignatureBuilder) MethodSignature(hasThis, explicitThis, vararg bool, genericParamCount uint32, ret *TypeElement, params []*MethodParam) ([]byte, error) {
	var flags uint8
	if hasThis {
		flags |= sigFlagHasThis
	}
	if explicitThis {
		flags |= sigFlagExplicitThis
	}
	if vararg {
		flags |= sigFlagVarArg
	}
	if genericParamCount > 0 {
		flags |= sigFlagGeneric
	}
	buf := []byte{flags}
	var err error
	if genericParamCount > 0 {
		if buf, err = CompressedUint(buf, genericParamCount); err != nil {
			return nil, err
		}
	}
	if buf, err = CompressedUint(buf, uint32(len(params))); err != nil {
		return nil, err
	}
	if buf, err = b.encodeType(buf, ret); err != nil {
		return nil, err
	}
	for _, p := range params {
		if buf, err = b.encodeType(buf, p.Type); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// PropertySignature builds a PROPERTY signature blob (§II.23.2.5).
func (b *SignatureBuilder) PropertySignature(hasThis bool, typ *TypeElement, params []*MethodParam) ([]byte, error) {
	flags := uint8(sigFlagProperty)
	if hasThis {
		flags |= sigFlagHasThis
	}
	buf := []byte{flags}
	var err error
	if buf, err = CompressedUint(buf, uint32(len(params))); err != nil {
		return nil, err
	}
	if buf, err = b.encodeType(buf, typ); err != nil {
		return nil, err
	}
	for _, p := range params {
		if buf, err = b.encodeType(buf, p.Type); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// LocalVarSignature builds a LOCAL_SIG blob (§II.23.2.6) for a StandAloneSig
// row describing a method body's local variables.
func (b *SignatureBuilder) LocalVarSignature(locals []*TypeElement) ([]byte, error) {
	buf := []byte{sigFlagLocalVar}
	var err error
	if buf, err = CompressedUint(buf, uint32(len(locals))); err != nil {
		return nil, err
	}
	for _, l := range locals {
		if buf, err = b.encodeType(buf, l); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// GenericInstSignature builds a METHODSPEC instantiation blob (§II.23.2.15).
func (b *SignatureBuilder) GenericInstSignature(args []*TypeElement) ([]byte, error) {
	buf := []byte{sigCallConvGenericInst}
	var err error
	if buf, err = CompressedUint(buf, uint32(len(args))); err != nil {
		return nil, err
	}
	for _, a := range args {
		if buf, err = b.encodeType(buf, a); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// TypeSpecSignature builds the blob a TypeSpec row stores: just the element
// itself, with no surrounding signature header (§II.23.2.14).
func (b *SignatureBuilder) TypeSpecSignature(elem *TypeElement) ([]byte, error) {
	return b.encodeType(nil, elem)
}
