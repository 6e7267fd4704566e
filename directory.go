// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import (
	"github.com/dotnetmd/clrmeta/clrmdlog"
	"github.com/dotnetmd/clrmeta/errs"
)

// MethodSemantics association kinds, ECMA §II.23.1.12.
const (
	semanticsSetter   = 0x0001
	semanticsGetter   = 0x0002
	semanticsOther    = 0x0004
	semanticsAddOn    = 0x0008
	semanticsRemoveOn = 0x0010
	semanticsFire     = 0x0020
)

// Builder is the top-level metadata-directory writer: it walks
// a ModuleDefinition's object graph exactly once, interning values into
// heaps and allocating rows into tables, and produces a final Directory.
//
// A Builder is not safe for concurrent use: it owns unsynchronized
// dedup maps and row vectors for its whole lifetime, and is spent (every
// Add* and CreateDirectory call fails) once CreateDirectory has run once.
type Builder struct {
	closed bool
	module *ModuleDefinition
	log    *clrmdlog.Helper

	tables    *TablesBuffer
	strings   *StringHeap
	us        *UserStringHeap
	blobs     *BlobHeap
	guids     *GUIDHeap
	resources *ResourceBuffer
	bodyCodec *methodBodyCodec

	tokens map[any]Token

	moduleToken Token
	methodCode  map[Token][]byte
}

// NewBuilder returns a Builder that will import module. logger may be nil,
// in which case builder diagnostics are discarded.
func NewBuilder(module *ModuleDefinition, logger clrmdlog.Logger) *Builder {
	b := &Builder{
		module:    module,
		log:       clrmdlog.NewHelper(logger),
		tables:    NewTablesBuffer(),
		strings:   NewStringHeap(),
		us:        NewUserStringHeap(),
		blobs:     NewBlobHeap(),
		guids:     NewGUIDHeap(),
		resources: NewResourceBuffer(),
		tokens:    make(map[any]Token),
		methodCode: make(map[Token][]byte),
	}
	b.bodyCodec = newMethodBodyCodec(b)
	return b
}

func (b *Builder) checkOpen() error {
	if b.closed {
		return errs.New(errs.BuilderSpent, nil, "builder already produced a directory")
	}
	return nil
}

func (b *Builder) cached(obj any) (Token, bool) {
	tok, ok := b.tokens[obj]
	return tok, ok
}

func (b *Builder) remember(obj any, tok Token) { b.tokens[obj] = tok }

// ResolveToken implements TokenResolver for signature.go and methodbody.go,
// and is the single dispatch point every import* helper and public Add*
// routes foreign or nested objects through.
func (b *Builder) ResolveToken(obj any) (Token, error) {
	if obj == nil {
		return Token(0), nil
	}
	if tok, ok := b.cached(obj); ok {
		return tok, nil
	}
	switch v := obj.(type) {
	case *ModuleDefinition:
		return b.importModule(v)
	case *AssemblyDefinition:
		return b.importAssembly(v)
	case *AssemblyRef:
		return b.importAssemblyRef(v)
	case *ModuleReference:
		return b.importModuleRef(v)
	case *TypeReference:
		return b.importTypeRef(v)
	case *TypeDefinition:
		return 0, errs.New(errs.MemberNotImported, v, "type not yet walked by CreateDirectory")
	case *TypeSpecification:
		return b.importTypeSpec(v)
	case *FieldDefinition:
		return 0, errs.New(errs.MemberNotImported, v, "field not yet walked by CreateDirectory")
	case *MethodDefinition:
		return 0, errs.New(errs.MemberNotImported, v, "method not yet walked by CreateDirectory")
	case *MemberReference:
		return b.importMemberRef(v)
	case *StandAloneSignature:
		return b.importStandAloneSig(v)
	case *MethodSpecification:
		return b.importMethodSpec(v)
	case *FileReference:
		return b.importFile(v)
	case *ExportedType:
		return b.importExportedType(v)
	case *ManifestResource:
		return b.importManifestResource(v)
	case *GenericParameter:
		return 0, errs.New(errs.MemberNotImported, v, "generic parameter not yet walked")
	case *MethodBody:
		return b.resolveLocalsSignature(v)
	case UserString:
		return b.resolveUserString(v)
	default:
		return 0, errs.New(errs.MemberNotImported, obj, "unsupported object kind")
	}
}

// resolveUserString interns s into the #US heap and returns its
// StringToken-tagged token, the form a ldstr operand takes (ECMA
// §II.24.2.4). Unlike the table-backed cases above, repeated identical
// UserString values simply re-resolve through UserStringHeap's own
// dedup rather than needing a b.cached/b.remember round trip, since
// UserString is a plain value type, not an object identity.
func (b *Builder) resolveUserString(s UserString) (Token, error) {
	idx, err := b.us.GetIndex(string(s))
	if err != nil {
		return 0, err
	}
	return NewToken(StringToken, idx), nil
}

// --- Public reference-import surface ---

// AddAssemblyReference imports a reference to an externally defined
// assembly.
func (b *Builder) AddAssemblyReference(ref *AssemblyRef) (Token, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return b.importAssemblyRef(ref)
}

// AddTypeReference imports a reference to a type defined outside this
// module.
func (b *Builder) AddTypeReference(ref *TypeReference) (Token, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return b.importTypeRef(ref)
}

// AddTypeSpecification imports a constructed-type signature.
func (b *Builder) AddTypeSpecification(spec *TypeSpecification) (Token, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return b.importTypeSpec(spec)
}

// AddMemberReference imports a reference to a field or method defined
// outside this module.
func (b *Builder) AddMemberReference(ref *MemberReference) (Token, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return b.importMemberRef(ref)
}

// AddStandAloneSignature imports a signature not otherwise owned by a row
// (a calli call-site signature, or a method body's locals).
func (b *Builder) AddStandAloneSignature(sig *StandAloneSignature) (Token, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return b.importStandAloneSig(sig)
}

// AddMethodSpecification imports a generic method instantiation.
func (b *Builder) AddMethodSpecification(spec *MethodSpecification) (Token, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return b.importMethodSpec(spec)
}

// AddModuleReference imports a reference to another module of the same
// assembly.
func (b *Builder) AddModuleReference(ref *ModuleReference) (Token, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return b.importModuleRef(ref)
}

// AddManagedResourceCompressed imports res with its data gzip-compressed,
// OR-ing ResourceCompressedFlag into the emitted row's Flags so a
// cooperating reader knows to gunzip it.
func (b *Builder) AddManagedResourceCompressed(res *ManifestResource) (Token, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	if tok, ok := b.cached(res); ok {
		return tok, nil
	}
	offset, err := b.resources.AddCompressed(res.Data)
	if err != nil {
		return 0, err
	}
	var implCoded uint32
	if res.Implementation != nil {
		implTok, err := b.ResolveToken(res.Implementation)
		if err != nil {
			return 0, err
		}
		if implCoded, err = EncodeCodedIndex(Implementation, implTok); err != nil {
			return 0, err
		}
	}
	rid, err := b.tables.AddManifestResourceRow(0, ManifestResourceTableRow{
		Offset:         offset,
		Flags:          res.Flags | ResourceCompressedFlag,
		Name:           b.strings.GetIndex(res.Name),
		Implementation: implCoded,
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(ManifestResource, rid)
	b.remember(res, tok)
	return tok, nil
}

// --- Reference-object importers ---

func (b *Builder) importModule(m *ModuleDefinition) (Token, error) {
	if tok, ok := b.cached(m); ok {
		return tok, nil
	}
	rid, err := b.tables.AddModuleRow(0, ModuleTableRow{
		Name:      b.strings.GetIndex(m.Name),
		Mvid:      b.guids.GetIndex(m.Mvid),
		EncID:     b.guids.GetIndex(m.EncID),
		EncBaseID: b.guids.GetIndex(m.EncBaseID),
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(Module, rid)
	b.remember(m, tok)
	return tok, nil
}

func (b *Builder) importAssembly(a *AssemblyDefinition) (Token, error) {
	if tok, ok := b.cached(a); ok {
		return tok, nil
	}
	rid, err := b.tables.AddAssemblyRow(0, AssemblyTableRow{
		HashAlgId:      a.HashAlgorithm,
		MajorVersion:   a.Version[0],
		MinorVersion:   a.Version[1],
		BuildNumber:    a.Version[2],
		RevisionNumber: a.Version[3],
		Flags:          a.Flags,
		PublicKey:      mustBlobIndex(b.blobs, a.PublicKey),
		Name:           b.strings.GetIndex(a.Name),
		Culture:        b.strings.GetIndex(a.Culture),
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(Assembly, rid)
	b.remember(a, tok)

	for _, ca := range a.CustomAttributes {
		if _, err := b.importCustomAttribute(a, ca); err != nil {
			return 0, err
		}
	}
	for _, ds := range a.DeclSecurity {
		if _, err := b.importDeclSecurity(a, ds); err != nil {
			return 0, err
		}
	}
	return tok, nil
}

func (b *Builder) importAssemblyRef(ref *AssemblyRef) (Token, error) {
	if tok, ok := b.cached(ref); ok {
		return tok, nil
	}
	rid, err := b.tables.AddAssemblyRefRow(0, AssemblyRefTableRow{
		MajorVersion:     ref.Version[0],
		MinorVersion:     ref.Version[1],
		BuildNumber:      ref.Version[2],
		RevisionNumber:   ref.Version[3],
		Flags:            ref.Flags,
		PublicKeyOrToken: mustBlobIndex(b.blobs, ref.PublicKeyOrToken),
		Name:             b.strings.GetIndex(ref.Name),
		Culture:          b.strings.GetIndex(ref.Culture),
		HashValue:        mustBlobIndex(b.blobs, ref.HashValue),
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(AssemblyRef, rid)
	b.remember(ref, tok)
	return tok, nil
}

func (b *Builder) importModuleRef(ref *ModuleReference) (Token, error) {
	if tok, ok := b.cached(ref); ok {
		return tok, nil
	}
	rid, err := b.tables.AddModuleRefRow(0, ModuleRefTableRow{Name: b.strings.GetIndex(ref.Name)})
	if err != nil {
		return 0, err
	}
	tok := NewToken(ModuleRef, rid)
	b.remember(ref, tok)
	return tok, nil
}

func (b *Builder) importTypeRef(ref *TypeReference) (Token, error) {
	if tok, ok := b.cached(ref); ok {
		return tok, nil
	}
	scopeTok := b.moduleToken
	if ref.ResolutionScope != nil {
		var err error
		scopeTok, err = b.ResolveToken(ref.ResolutionScope)
		if err != nil {
			return 0, err
		}
	} else if scopeTok.IsNull() {
		var err error
		if scopeTok, err = b.importModule(b.module); err != nil {
			return 0, err
		}
	}
	coded, err := EncodeCodedIndex(ResolutionScope, scopeTok)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddTypeRefRow(0, TypeRefTableRow{
		ResolutionScope: coded,
		TypeName:        b.strings.GetIndex(ref.Name),
		TypeNamespace:   b.strings.GetIndex(ref.Namespace),
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(TypeRef, rid)
	b.remember(ref, tok)
	return tok, nil
}

func (b *Builder) importTypeSpec(spec *TypeSpecification) (Token, error) {
	if tok, ok := b.cached(spec); ok {
		return tok, nil
	}
	blobIdx, err := b.blobs.GetIndex(spec.Signature)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddTypeSpecRow(0, TypeSpecTableRow{Signature: blobIdx})
	if err != nil {
		return 0, err
	}
	tok := NewToken(TypeSpec, rid)
	b.remember(spec, tok)
	return tok, nil
}

func (b *Builder) importMemberRef(ref *MemberReference) (Token, error) {
	if tok, ok := b.cached(ref); ok {
		return tok, nil
	}
	parentTok, err := b.ResolveToken(ref.Parent)
	if err != nil {
		return 0, err
	}
	coded, err := EncodeCodedIndex(MemberRefParent, parentTok)
	if err != nil {
		return 0, err
	}
	sigIdx, err := b.blobs.GetIndex(ref.Signature)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddMemberRefRow(0, MemberRefTableRow{
		Class:     coded,
		Name:      b.strings.GetIndex(ref.Name),
		Signature: sigIdx,
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(MemberRef, rid)
	b.remember(ref, tok)
	return tok, nil
}

func (b *Builder) importStandAloneSig(sig *StandAloneSignature) (Token, error) {
	if tok, ok := b.cached(sig); ok {
		return tok, nil
	}
	blobIdx, err := b.blobs.GetIndex(sig.Signature)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddStandAloneSigRow(0, StandAloneSigTableRow{Signature: blobIdx})
	if err != nil {
		return 0, err
	}
	tok := NewToken(StandAloneSig, rid)
	b.remember(sig, tok)
	return tok, nil
}

func (b *Builder) importMethodSpec(spec *MethodSpecification) (Token, error) {
	if tok, ok := b.cached(spec); ok {
		return tok, nil
	}
	methodTok, err := b.ResolveToken(spec.Method)
	if err != nil {
		return 0, err
	}
	coded, err := EncodeCodedIndex(MethodDefOrRef, methodTok)
	if err != nil {
		return 0, err
	}
	instIdx, err := b.blobs.GetIndex(spec.Instantiation)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddMethodSpecRow(0, MethodSpecTableRow{Method: coded, Instantiation: instIdx})
	if err != nil {
		return 0, err
	}
	tok := NewToken(MethodSpec, rid)
	b.remember(spec, tok)
	return tok, nil
}

func (b *Builder) importFile(f *FileReference) (Token, error) {
	if tok, ok := b.cached(f); ok {
		return tok, nil
	}
	rid, err := b.tables.AddFileRow(0, FileTableRow{
		Flags:     f.Flags,
		Name:      b.strings.GetIndex(f.Name),
		HashValue: mustBlobIndex(b.blobs, f.HashValue),
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(FileMD, rid)
	b.remember(f, tok)
	return tok, nil
}

func (b *Builder) importExportedType(e *ExportedType) (Token, error) {
	if tok, ok := b.cached(e); ok {
		return tok, nil
	}
	implTok, err := b.ResolveToken(e.Implementation)
	if err != nil {
		return 0, err
	}
	coded, err := EncodeCodedIndex(Implementation, implTok)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddExportedTypeRow(0, ExportedTypeTableRow{
		Flags:          e.Flags,
		TypeDefId:      e.TypeDefId,
		TypeName:       b.strings.GetIndex(e.Name),
		TypeNamespace:  b.strings.GetIndex(e.Namespace),
		Implementation: coded,
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(ExportedType, rid)
	b.remember(e, tok)
	return tok, nil
}

func (b *Builder) importManifestResource(m *ManifestResource) (Token, error) {
	if tok, ok := b.cached(m); ok {
		return tok, nil
	}
	var implCoded uint32
	if m.Implementation != nil {
		implTok, err := b.ResolveToken(m.Implementation)
		if err != nil {
			return 0, err
		}
		if implCoded, err = EncodeCodedIndex(Implementation, implTok); err != nil {
			return 0, err
		}
	}
	offset := b.resources.Add(m.Data)
	rid, err := b.tables.AddManifestResourceRow(0, ManifestResourceTableRow{
		Offset:         offset,
		Flags:          m.Flags,
		Name:           b.strings.GetIndex(m.Name),
		Implementation: implCoded,
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(ManifestResource, rid)
	b.remember(m, tok)
	return tok, nil
}

func (b *Builder) importCustomAttribute(owner any, ca *CustomAttribute) (Token, error) {
	if tok, ok := b.cached(ca); ok {
		return tok, nil
	}
	parentTok, err := b.ResolveToken(owner)
	if err != nil {
		return 0, err
	}
	parentCoded, err := EncodeCodedIndex(HasCustomAttribute, parentTok)
	if err != nil {
		return 0, err
	}
	ctorTok, err := b.ResolveToken(ca.Constructor)
	if err != nil {
		return 0, err
	}
	typeCoded, err := EncodeCodedIndex(CustomAttributeType, ctorTok)
	if err != nil {
		return 0, err
	}
	valIdx, err := b.blobs.GetIndex(ca.Value)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddCustomAttributeRow(0, CustomAttributeTableRow{
		Parent: parentCoded,
		Type:   typeCoded,
		Value:  valIdx,
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(CustomAttribute, rid)
	b.remember(ca, tok)
	return tok, nil
}

func (b *Builder) importInterfaceImpl(owner *TypeDefinition, ii *InterfaceImplementation) (Token, error) {
	classTok, _ := b.cached(owner)
	ifaceTok, err := b.ResolveToken(ii.Interface)
	if err != nil {
		return 0, err
	}
	coded, err := EncodeCodedIndex(TypeDefOrRef, ifaceTok)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddInterfaceImplRow(0, InterfaceImplTableRow{Class: classTok.RID(), Interface: coded})
	if err != nil {
		return 0, err
	}
	tok := NewToken(InterfaceImpl, rid)
	b.remember(ii, tok)
	return tok, nil
}

func (b *Builder) importClassLayout(owner *TypeDefinition, cl *ClassLayout) error {
	classTok, _ := b.cached(owner)
	_, err := b.tables.AddClassLayoutRow(0, ClassLayoutTableRow{
		PackingSize: cl.PackingSize,
		ClassSize:   cl.ClassSize,
		Parent:      classTok.RID(),
	})
	return err
}

func (b *Builder) importFieldLayout(owner *FieldDefinition, fl *FieldLayout) error {
	fieldTok, _ := b.cached(owner)
	_, err := b.tables.AddFieldLayoutRow(0, FieldLayoutTableRow{Offset: fl.Offset, Field: fieldTok.RID()})
	return err
}

func (b *Builder) importFieldMarshal(owner any, fm *FieldMarshal) error {
	ownerTok, err := b.ResolveToken(owner)
	if err != nil {
		return err
	}
	coded, err := EncodeCodedIndex(HasFieldMarshal, ownerTok)
	if err != nil {
		return err
	}
	nativeIdx, err := b.blobs.GetIndex(fm.NativeType)
	if err != nil {
		return err
	}
	_, err = b.tables.AddFieldMarshalRow(0, FieldMarshalTableRow{Parent: coded, NativeType: nativeIdx})
	return err
}

func (b *Builder) importFieldRVA(owner *FieldDefinition, rva *FieldRVA) error {
	fieldTok, _ := b.cached(owner)
	_, err := b.tables.AddFieldRVARow(0, FieldRVATableRow{RVA: rva.RVA, Field: fieldTok.RID()})
	return err
}

func (b *Builder) importConstant(owner any, c *ConstantValue) error {
	ownerTok, err := b.ResolveToken(owner)
	if err != nil {
		return err
	}
	coded, err := EncodeCodedIndex(HasConstant, ownerTok)
	if err != nil {
		return err
	}
	valIdx, err := b.blobs.GetIndex(c.Value)
	if err != nil {
		return err
	}
	_, err = b.tables.AddConstantRow(0, ConstantTableRow{Type: c.Type, Parent: coded, Value: valIdx})
	return err
}

func (b *Builder) importDeclSecurity(owner any, ds *DeclSecurity) (Token, error) {
	ownerTok, err := b.ResolveToken(owner)
	if err != nil {
		return 0, err
	}
	coded, err := EncodeCodedIndex(HasDeclSecurity, ownerTok)
	if err != nil {
		return 0, err
	}
	psIdx, err := b.blobs.GetIndex(ds.PermissionSet)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddDeclSecurityRow(0, DeclSecurityTableRow{
		Action:        ds.Action,
		Parent:        coded,
		PermissionSet: psIdx,
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(DeclSecurity, rid)
	b.remember(ds, tok)
	return tok, nil
}

func (b *Builder) importImplMap(owner any, im *ImplMap) error {
	memberTok, err := b.ResolveToken(owner)
	if err != nil {
		return err
	}
	coded, err := EncodeCodedIndex(MemberForwarded, memberTok)
	if err != nil {
		return err
	}
	scopeTok, err := b.ResolveToken(im.ImportScope)
	if err != nil {
		return err
	}
	_, err = b.tables.AddImplMapRow(0, ImplMapTableRow{
		MappingFlags:    im.MappingFlags,
		MemberForwarded: coded,
		ImportName:      b.strings.GetIndex(im.ImportName),
		ImportScope:     scopeTok.RID(),
	})
	return err
}

func (b *Builder) importGenericParam(gp *GenericParameter) (Token, error) {
	if tok, ok := b.cached(gp); ok {
		return tok, nil
	}
	ownerTok, err := b.ResolveToken(gp.Owner)
	if err != nil {
		return 0, err
	}
	coded, err := EncodeCodedIndex(TypeOrMethodDef, ownerTok)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddGenericParamRow(0, GenericParamTableRow{
		Number: gp.Number,
		Flags:  gp.Flags,
		Owner:  coded,
		Name:   b.strings.GetIndex(gp.Name),
	})
	if err != nil {
		return 0, err
	}
	tok := NewToken(GenericParam, rid)
	b.remember(gp, tok)

	for _, c := range gp.Constraints {
		if err := b.importGenericParamConstraint(gp, c); err != nil {
			return 0, err
		}
	}
	return tok, nil
}

func (b *Builder) importGenericParamConstraint(owner *GenericParameter, c *GenericParamConstraint) error {
	ownerTok, _ := b.cached(owner)
	constraintTok, err := b.ResolveToken(c.Constraint)
	if err != nil {
		return err
	}
	coded, err := EncodeCodedIndex(TypeDefOrRef, constraintTok)
	if err != nil {
		return err
	}
	_, err = b.tables.AddGenericParamConstraintRow(0, GenericParamConstraintTableRow{
		Owner:      ownerTok.RID(),
		Constraint: coded,
	})
	return err
}

func (b *Builder) importMethodSemantics(association any, method *MethodDefinition, semantics uint16) error {
	if method == nil {
		return nil
	}
	methodTok, ok := b.cached(method)
	if !ok {
		return errs.New(errs.MemberNotImported, method, "semantics method not yet walked")
	}
	assocTok, err := b.ResolveToken(association)
	if err != nil {
		return err
	}
	coded, err := EncodeCodedIndex(HasSemantics, assocTok)
	if err != nil {
		return err
	}
	_, err = b.tables.AddMethodSemanticsRow(0, MethodSemanticsTableRow{
		Semantics:   semantics,
		Method:      methodTok.RID(),
		Association: coded,
	})
	return err
}

func (b *Builder) importMethodImpl(owner *TypeDefinition, body *MethodDefinition, decl any) error {
	classTok, _ := b.cached(owner)
	bodyTok, _ := b.cached(body)
	bodyCoded, err := EncodeCodedIndex(MethodDefOrRef, bodyTok)
	if err != nil {
		return err
	}
	declTok, err := b.ResolveToken(decl)
	if err != nil {
		return err
	}
	declCoded, err := EncodeCodedIndex(MethodDefOrRef, declTok)
	if err != nil {
		return err
	}
	_, err = b.tables.AddMethodImplRow(0, MethodImplTableRow{
		Class:             classTok.RID(),
		MethodBody:        bodyCoded,
		MethodDeclaration: declCoded,
	})
	return err
}

// resolveLocalsSignature interns body's local-variable signature blob as a
// StandAloneSig row and memoizes the token under the body's own identity,
// so methodbody.go can resolve it by the same *MethodBody key it was
// given.
func (b *Builder) resolveLocalsSignature(body *MethodBody) (Token, error) {
	blobIdx, err := b.blobs.GetIndex(body.LocalsSignature)
	if err != nil {
		return 0, err
	}
	rid, err := b.tables.AddStandAloneSigRow(0, StandAloneSigTableRow{Signature: blobIdx})
	if err != nil {
		return 0, err
	}
	tok := NewToken(StandAloneSig, rid)
	b.remember(body, tok)
	return tok, nil
}

func mustBlobIndex(h *BlobHeap, v []byte) uint32 {
	idx, err := h.GetIndex(v)
	if err != nil {
		// BlobHeap.GetIndex only fails if the compressed length overflows
		// ECMA's 29-bit budget; every caller here passes small, in-memory
		// values far below that ceiling.
		panic(err)
	}
	return idx
}

// moduleTypeName is the reserved name of TypeDef RID 1, the pseudo-type
// every CLI module carries to own module-level members (ECMA §II.10.8).
const moduleTypeName = "<Module>"

// CreateDirectory walks module's full object graph exactly once and
// produces the finished metadata directory. It is the only way local
// definitions (TypeDef, Field, MethodDef, Param, Event, Property, and
// their ancillary rows) reach the tables: ECMA-335 requires TypeDef's
// FieldList/MethodList and MethodDef's ParamList to be contiguous ranges,
// which rules out a freely ordered public Add-per-object surface (spec
// §4.6, §9).
func (b *Builder) CreateDirectory() (*Directory, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	b.log.Infof("building metadata directory for module %q", b.module.Name)

	moduleTok, err := b.importModule(b.module)
	if err != nil {
		return nil, err
	}
	b.moduleToken = moduleTok

	moduleTypeRid, err := b.tables.AddTypeDefRow(0, TypeDefTableRow{
		TypeName:   b.strings.GetIndex(moduleTypeName),
		FieldList:  1,
		MethodList: 1,
	})
	if err != nil {
		return nil, err
	}

	// Pass 1: memoize every TypeDefinition's token before resolving any
	// BaseType/Interface/signature reference, so forward references within
	// module.Types (mutually referencing types, or a type used before its
	// own slice position) resolve correctly in pass 2.
	startRid := moduleTypeRid + 1
	for i, t := range b.module.Types {
		b.remember(t, NewToken(TypeDef, startRid+uint32(i)))
	}

	// Pass 2: emit TypeDef/Field/MethodDef/Param rows in declaration order,
	// each type's own members immediately after its TypeDef row, so the
	// Field/MethodDef/Param cursors captured per type are exactly where
	// that type's own rows land.
	for _, t := range b.module.Types {
		if err := b.walkType(t); err != nil {
			return nil, err
		}
	}

	// Pass 3: custom attributes, interface impls, generic
	// params/constraints, layouts, marshals, RVAs, constants, decl
	// security, P/Invoke maps, nested classes, events/properties and their
	// semantics, method bodies, and the assembly-scoped and multi-file
	// rows. ApplySortOrder re-sorts the sorted tables among these; Event,
	// Property, EventMap and PropertyMap rows keep the per-type runs the
	// walk appends, and the assembly-scoped rows keep their visit order.
	if err := b.walkAncillary(); err != nil {
		return nil, err
	}

	entryPointTok, err := b.resolveEntryPoint()
	if err != nil {
		return nil, err
	}

	b.tables.ApplySortOrder()

	if tbl, rid, ok := b.tables.unfilled(); ok {
		return nil, errs.New(errs.UnfilledRow, nil,
			"placeholder row left unfilled in "+TableIndexToString(tbl)+" at rid "+NewToken(uint8(tbl), rid).String())
	}

	stringsBytes := b.strings.Flush()
	usBytes := b.us.Flush()
	guidBytes := b.guids.Flush()
	blobBytes := b.blobs.Flush()

	tablesBytes := b.tables.Serialize(HeapSizes{
		Strings: b.strings.Size(),
		GUID:    b.guids.Size(),
		Blob:    b.blobs.Size(),
	})

	dirBytes := buildMetadataBlob(tablesBytes, stringsBytes, usBytes, guidBytes, blobBytes)

	methodBodies := make(map[Token][]byte, len(b.methodCode))
	for tok, code := range b.methodCode {
		methodBodies[tok] = code
	}

	b.closed = true
	return &Directory{
		Bytes:           dirBytes,
		Flags:           b.entryPointFlags(),
		EntryPointToken: entryPointTok,
		ResourcesData:   b.resources.Flush(),
		MethodBodies:    methodBodies,
	}, nil
}

// entryPointFlags mirrors the module's own COMIMAGE_FLAGS bitmask into the
// directory's Flags column: this builder does not add bits of its own
// (strong-name deferral, IL-only, etc. are the caller's choice).
func (b *Builder) entryPointFlags() uint32 {
	return b.module.Flags
}

// resolveEntryPoint resolves module.EntryPoint: a
// MethodDefinition's token directly, a FileReference's token for a
// multi-file assembly whose entry point lives in another module, or the
// null token when the module has none.
func (b *Builder) resolveEntryPoint() (Token, error) {
	switch v := b.module.EntryPoint.(type) {
	case nil:
		return 0, nil
	case *MethodDefinition:
		tok, ok := b.cached(v)
		if !ok {
			return 0, errs.New(errs.MemberNotImported, v, "entry point method not reachable from module.Types")
		}
		return tok, nil
	case *FileReference:
		return b.ResolveToken(v)
	default:
		return 0, errs.New(errs.MemberNotImported, v, "entry point must be a MethodDefinition or FileReference")
	}
}

// walkType emits t's TypeDef row, capturing the current Field/MethodDef row
// counts as its FieldList/MethodList cursors, then appends t's own Field
// and MethodDef (and nested Param) rows immediately so the cursors stay
// accurate for every type that follows.
func (b *Builder) walkType(t *TypeDefinition) error {
	var extendsCoded uint32
	if t.BaseType != nil {
		baseTok, err := b.ResolveToken(t.BaseType)
		if err != nil {
			return err
		}
		if extendsCoded, err = EncodeCodedIndex(TypeDefOrRef, baseTok); err != nil {
			return err
		}
	}

	fieldCursor := b.tables.RowCount(Field) + 1
	methodCursor := b.tables.RowCount(MethodDef) + 1

	preferredRid, _ := b.cached(t)
	if _, err := b.tables.AddTypeDefRow(preferredRid.RID(), TypeDefTableRow{
		Flags:         t.Flags,
		TypeName:      b.strings.GetIndex(t.Name),
		TypeNamespace: b.strings.GetIndex(t.Namespace),
		Extends:       extendsCoded,
		FieldList:     fieldCursor,
		MethodList:    methodCursor,
	}); err != nil {
		return err
	}

	for _, f := range t.Fields {
		sigIdx, err := b.blobs.GetIndex(f.Signature)
		if err != nil {
			return err
		}
		rid, err := b.tables.AddFieldRow(0, FieldTableRow{
			Flags:     f.Flags,
			Name:      b.strings.GetIndex(f.Name),
			Signature: sigIdx,
		})
		if err != nil {
			return err
		}
		b.remember(f, NewToken(Field, rid))
	}

	for _, m := range t.Methods {
		paramCursor := b.tables.RowCount(Param) + 1
		sigIdx, err := b.blobs.GetIndex(m.Signature)
		if err != nil {
			return err
		}
		rid, err := b.tables.AddMethodDefRow(0, MethodDefTableRow{
			RVA:       m.RVA,
			ImplFlags: m.ImplFlags,
			Flags:     m.Flags,
			Name:      b.strings.GetIndex(m.Name),
			Signature: sigIdx,
			ParamList: paramCursor,
		})
		if err != nil {
			return err
		}
		b.remember(m, NewToken(MethodDef, rid))

		for _, p := range m.Params {
			prid, err := b.tables.AddParamRow(0, ParamTableRow{
				Flags:    p.Flags,
				Sequence: p.Sequence,
				Name:     b.strings.GetIndex(p.Name),
			})
			if err != nil {
				return err
			}
			b.remember(p, NewToken(Param, prid))
		}
	}

	return nil
}

// walkAncillary emits the rows not written by the type, field and method
// passes. Rows of the sorted tables get their final placement from
// ApplySortOrder; Event, Property, EventMap and PropertyMap rows are not
// re-sorted and rely on walkEvents and walkProperties appending each
// type's events and properties as one contiguous run; the Assembly, File,
// ExportedType and ManifestResource rows stay in visit order.
func (b *Builder) walkAncillary() error {
	if b.module.Assembly != nil {
		if _, err := b.importAssembly(b.module.Assembly); err != nil {
			return err
		}
	}

	for _, t := range b.module.Types {
		if err := b.walkTypeAncillary(t); err != nil {
			return err
		}
	}

	for _, e := range b.module.ExportedTypes {
		if _, err := b.importExportedType(e); err != nil {
			return err
		}
	}
	for _, f := range b.module.Files {
		if _, err := b.importFile(f); err != nil {
			return err
		}
	}
	for _, r := range b.module.Resources {
		if _, err := b.importManifestResource(r); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) walkTypeAncillary(t *TypeDefinition) error {
	for _, ca := range t.CustomAttributes {
		if _, err := b.importCustomAttribute(t, ca); err != nil {
			return err
		}
	}
	for _, ii := range t.Interfaces {
		if _, err := b.importInterfaceImpl(t, ii); err != nil {
			return err
		}
	}
	for _, gp := range t.GenericParams {
		if _, err := b.importGenericParam(gp); err != nil {
			return err
		}
	}
	if t.Layout != nil {
		if err := b.importClassLayout(t, t.Layout); err != nil {
			return err
		}
	}
	if t.EnclosingType != nil {
		nestedTok, _ := b.cached(t)
		enclosingTok, _ := b.cached(t.EnclosingType)
		if _, err := b.tables.AddNestedClassRow(0, NestedClassTableRow{
			NestedClass:    nestedTok.RID(),
			EnclosingClass: enclosingTok.RID(),
		}); err != nil {
			return err
		}
	}

	if err := b.walkEvents(t); err != nil {
		return err
	}
	if err := b.walkProperties(t); err != nil {
		return err
	}

	for _, f := range t.Fields {
		if err := b.walkFieldAncillary(f); err != nil {
			return err
		}
	}
	for _, m := range t.Methods {
		if err := b.walkMethodAncillary(t, m); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) walkEvents(t *TypeDefinition) error {
	if len(t.Events) == 0 {
		return nil
	}
	typeTok, _ := b.cached(t)
	eventListStart := b.tables.RowCount(Event) + 1
	if _, err := b.tables.AddEventMapRow(0, EventMapTableRow{
		Parent:    typeTok.RID(),
		EventList: eventListStart,
	}); err != nil {
		return err
	}

	for _, e := range t.Events {
		typTok, err := b.ResolveToken(e.EventType)
		if err != nil {
			return err
		}
		typCoded, err := EncodeCodedIndex(TypeDefOrRef, typTok)
		if err != nil {
			return err
		}
		rid, err := b.tables.AddEventRow(0, EventTableRow{
			EventFlags: e.Flags,
			Name:       b.strings.GetIndex(e.Name),
			EventType:  typCoded,
		})
		if err != nil {
			return err
		}
		eventTok := NewToken(Event, rid)
		b.remember(e, eventTok)

		if err := b.importMethodSemantics(e, e.AddMethod, semanticsAddOn); err != nil {
			return err
		}
		if err := b.importMethodSemantics(e, e.RemoveMethod, semanticsRemoveOn); err != nil {
			return err
		}
		if err := b.importMethodSemantics(e, e.FireMethod, semanticsFire); err != nil {
			return err
		}
		for _, other := range e.OtherMethods {
			if err := b.importMethodSemantics(e, other, semanticsOther); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) walkProperties(t *TypeDefinition) error {
	if len(t.Properties) == 0 {
		return nil
	}
	typeTok, _ := b.cached(t)
	propertyListStart := b.tables.RowCount(Property) + 1
	if _, err := b.tables.AddPropertyMapRow(0, PropertyMapTableRow{
		Parent:       typeTok.RID(),
		PropertyList: propertyListStart,
	}); err != nil {
		return err
	}

	for _, p := range t.Properties {
		sigIdx, err := b.blobs.GetIndex(p.Signature)
		if err != nil {
			return err
		}
		rid, err := b.tables.AddPropertyRow(0, PropertyTableRow{
			Flags: p.Flags,
			Name:  b.strings.GetIndex(p.Name),
			Type:  sigIdx,
		})
		if err != nil {
			return err
		}
		propTok := NewToken(Property, rid)
		b.remember(p, propTok)

		if err := b.importMethodSemantics(p, p.GetMethod, semanticsGetter); err != nil {
			return err
		}
		if err := b.importMethodSemantics(p, p.SetMethod, semanticsSetter); err != nil {
			return err
		}
		for _, other := range p.OtherMethods {
			if err := b.importMethodSemantics(p, other, semanticsOther); err != nil {
				return err
			}
		}
		if p.DefaultValue != nil {
			if err := b.importConstant(p, p.DefaultValue); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) walkFieldAncillary(f *FieldDefinition) error {
	for _, ca := range f.CustomAttributes {
		if _, err := b.importCustomAttribute(f, ca); err != nil {
			return err
		}
	}
	if f.Marshal != nil {
		if err := b.importFieldMarshal(f, f.Marshal); err != nil {
			return err
		}
	}
	if f.Layout != nil {
		if err := b.importFieldLayout(f, f.Layout); err != nil {
			return err
		}
	}
	if f.RVA != nil {
		if err := b.importFieldRVA(f, f.RVA); err != nil {
			return err
		}
	}
	if f.Constant != nil {
		if err := b.importConstant(f, f.Constant); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) walkMethodAncillary(owner *TypeDefinition, m *MethodDefinition) error {
	for _, ca := range m.CustomAttributes {
		if _, err := b.importCustomAttribute(m, ca); err != nil {
			return err
		}
	}
	for _, gp := range m.GenericParams {
		if _, err := b.importGenericParam(gp); err != nil {
			return err
		}
	}
	if m.ImplMap != nil {
		if err := b.importImplMap(m, m.ImplMap); err != nil {
			return err
		}
	}
	for _, ds := range m.DeclSecurity {
		if _, err := b.importDeclSecurity(m, ds); err != nil {
			return err
		}
	}
	for _, decl := range m.Overrides {
		if err := b.importMethodImpl(owner, m, decl); err != nil {
			return err
		}
	}
	for _, p := range m.Params {
		for _, ca := range p.CustomAttributes {
			if _, err := b.importCustomAttribute(p, ca); err != nil {
				return err
			}
		}
		if p.Marshal != nil {
			if err := b.importFieldMarshal(p, p.Marshal); err != nil {
				return err
			}
		}
		if p.Constant != nil {
			if err := b.importConstant(p, p.Constant); err != nil {
				return err
			}
		}
	}
	if m.Body != nil {
		code, err := b.bodyCodec.Serialize(m.Body)
		if err != nil {
			return err
		}
		methodTok, _ := b.cached(m)
		b.methodCode[methodTok] = code
	}
	return nil
}
