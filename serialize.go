// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

// HeapSizes carries the size of each heap at the moment the tables stream
// is serialized (byte length for Strings and Blob, number of 16-byte slots
// for GUID), so simple-index field widths can be chosen
// per ECMA §II.24.2.6's "#Strings/#GUID/#Blob heap size" flags.
type HeapSizes struct {
	Strings uint32
	GUID    uint32
	Blob    uint32
}

const wideThreshold = 0x10000

func wide(size uint32) bool { return size >= wideThreshold }

func widthFor(wideFlag bool) int {
	if wideFlag {
		return 4
	}
	return 2
}

// tableOrder is the fixed emission order of the tables stream: ascending by
// table index, which is also the order bits appear in the Valid/Sorted
// bitmasks (ECMA §II.24.2.6).
var tableOrder = []int{
	Module, TypeRef, TypeDef, Field, MethodDef, Param, InterfaceImpl, MemberRef,
	Constant, CustomAttribute, FieldMarshal, DeclSecurity, ClassLayout, FieldLayout,
	StandAloneSig, EventMap, Event, PropertyMap, Property, MethodSemantics, MethodImpl,
	ModuleRef, TypeSpec, ImplMap, FieldRVA, Assembly, AssemblyProcessor, AssemblyOS,
	AssemblyRef, AssemblyRefProcessor, AssemblyRefOS, FileMD, ExportedType,
	ManifestResource, NestedClass, GenericParam, MethodSpec, GenericParamConstraint,
}

// tableIndexWidth is the width of a plain row reference into table: 2 bytes
// unless the table holds 2^16 or more rows (ECMA §II.24.2.6).
func (t *TablesBuffer) tableIndexWidth(table int) int {
	return widthFor(t.RowCount(table) >= wideThreshold)
}

// Serialize renders every populated table into the #~ tables-stream wire
// format: the stream header (reserved words, heap-size flags, Valid/Sorted
// bitmasks, row counts) followed by each table's rows in table-index order.
// Rows must already be final (ApplySortOrder has run and every preferred-RID
// placeholder has been filled) before this is called.
func (t *TablesBuffer) Serialize(heaps HeapSizes) []byte {
	sw := widthFor(wide(heaps.Strings))
	gw := widthFor(wide(heaps.GUID))
	bw := widthFor(wide(heaps.Blob))

	var valid uint64
	rowCounts := make([]uint32, 0, len(tableOrder))
	for _, tbl := range tableOrder {
		if n := t.RowCount(tbl); n > 0 {
			valid |= 1 << uint(tbl)
			rowCounts = append(rowCounts, n)
		}
	}
	sorted := sortedTableMask() & valid

	var heapFlags uint8
	if sw == 4 {
		heapFlags |= 0x01
	}
	if gw == 4 {
		heapFlags |= 0x02
	}
	if bw == 4 {
		heapFlags |= 0x04
	}

	buf := make([]byte, 0, 4096)
	buf = WriteUint32(buf, 0) // Reserved
	buf = WriteUint8(buf, 2)  // MajorVersion
	buf = WriteUint8(buf, 0)  // MinorVersion
	buf = WriteUint8(buf, heapFlags)
	buf = WriteUint8(buf, 1) // Reserved2 ("RID", conventionally 1)
	buf = append(buf, littleEndian64(valid)...)
	buf = append(buf, littleEndian64(sorted)...)
	for _, n := range rowCounts {
		buf = WriteUint32(buf, n)
	}

	for _, tbl := range tableOrder {
		if t.RowCount(tbl) == 0 {
			continue
		}
		buf = t.serializeTable(buf, tbl, sw, gw, bw)
	}
	return pad4(buf)
}

func littleEndian64(v uint64) []byte {
	return []byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
}

func (t *TablesBuffer) serializeTable(buf []byte, tbl, sw, gw, bw int) []byte {
	ci := func(kind CodedIndexKind) int { return codedIndexWidth(kind, t.RowCount) }
	tw := t.tableIndexWidth

	switch tbl {
	case Module:
		for _, r := range t.module {
			buf = WriteUint16(buf, r.Generation)
			buf = WriteIndex(buf, r.Name, sw)
			buf = WriteIndex(buf, r.Mvid, gw)
			buf = WriteIndex(buf, r.EncID, gw)
			buf = WriteIndex(buf, r.EncBaseID, gw)
		}
	case TypeRef:
		w := ci(ResolutionScope)
		for _, r := range t.typeRef {
			buf = WriteIndex(buf, r.ResolutionScope, w)
			buf = WriteIndex(buf, r.TypeName, sw)
			buf = WriteIndex(buf, r.TypeNamespace, sw)
		}
	case TypeDef:
		w := ci(TypeDefOrRef)
		for _, r := range t.typeDef {
			buf = WriteUint32(buf, r.Flags)
			buf = WriteIndex(buf, r.TypeName, sw)
			buf = WriteIndex(buf, r.TypeNamespace, sw)
			buf = WriteIndex(buf, r.Extends, w)
			buf = WriteIndex(buf, r.FieldList, tw(Field))
			buf = WriteIndex(buf, r.MethodList, tw(MethodDef))
		}
	case Field:
		for _, r := range t.field {
			buf = WriteUint16(buf, r.Flags)
			buf = WriteIndex(buf, r.Name, sw)
			buf = WriteIndex(buf, r.Signature, bw)
		}
	case MethodDef:
		for _, r := range t.methodDef {
			buf = WriteUint32(buf, r.RVA)
			buf = WriteUint16(buf, r.ImplFlags)
			buf = WriteUint16(buf, r.Flags)
			buf = WriteIndex(buf, r.Name, sw)
			buf = WriteIndex(buf, r.Signature, bw)
			buf = WriteIndex(buf, r.ParamList, tw(Param))
		}
	case Param:
		for _, r := range t.param {
			buf = WriteUint16(buf, r.Flags)
			buf = WriteUint16(buf, r.Sequence)
			buf = WriteIndex(buf, r.Name, sw)
		}
	case InterfaceImpl:
		w := ci(TypeDefOrRef)
		for _, r := range t.interfaceImpl {
			buf = WriteIndex(buf, r.Class, tw(TypeDef))
			buf = WriteIndex(buf, r.Interface, w)
		}
	case MemberRef:
		w := ci(MemberRefParent)
		for _, r := range t.memberRef {
			buf = WriteIndex(buf, r.Class, w)
			buf = WriteIndex(buf, r.Name, sw)
			buf = WriteIndex(buf, r.Signature, bw)
		}
	case Constant:
		w := ci(HasConstant)
		for _, r := range t.constant {
			buf = WriteUint8(buf, r.Type)
			buf = WriteUint8(buf, r.Padding)
			buf = WriteIndex(buf, r.Parent, w)
			buf = WriteIndex(buf, r.Value, bw)
		}
	case CustomAttribute:
		wp := ci(HasCustomAttribute)
		wt := ci(CustomAttributeType)
		for _, r := range t.customAttribute {
			buf = WriteIndex(buf, r.Parent, wp)
			buf = WriteIndex(buf, r.Type, wt)
			buf = WriteIndex(buf, r.Value, bw)
		}
	case FieldMarshal:
		w := ci(HasFieldMarshal)
		for _, r := range t.fieldMarshal {
			buf = WriteIndex(buf, r.Parent, w)
			buf = WriteIndex(buf, r.NativeType, bw)
		}
	case DeclSecurity:
		w := ci(HasDeclSecurity)
		for _, r := range t.declSecurity {
			buf = WriteUint16(buf, r.Action)
			buf = WriteIndex(buf, r.Parent, w)
			buf = WriteIndex(buf, r.PermissionSet, bw)
		}
	case ClassLayout:
		for _, r := range t.classLayout {
			buf = WriteUint16(buf, r.PackingSize)
			buf = WriteUint32(buf, r.ClassSize)
			buf = WriteIndex(buf, r.Parent, tw(TypeDef))
		}
	case FieldLayout:
		for _, r := range t.fieldLayout {
			buf = WriteUint32(buf, r.Offset)
			buf = WriteIndex(buf, r.Field, tw(Field))
		}
	case StandAloneSig:
		for _, r := range t.standAloneSig {
			buf = WriteIndex(buf, r.Signature, bw)
		}
	case EventMap:
		for _, r := range t.eventMap {
			buf = WriteIndex(buf, r.Parent, tw(TypeDef))
			buf = WriteIndex(buf, r.EventList, tw(Event))
		}
	case Event:
		w := ci(TypeDefOrRef)
		for _, r := range t.event {
			buf = WriteUint16(buf, r.EventFlags)
			buf = WriteIndex(buf, r.Name, sw)
			buf = WriteIndex(buf, r.EventType, w)
		}
	case PropertyMap:
		for _, r := range t.propertyMap {
			buf = WriteIndex(buf, r.Parent, tw(TypeDef))
			buf = WriteIndex(buf, r.PropertyList, tw(Property))
		}
	case Property:
		for _, r := range t.property {
			buf = WriteUint16(buf, r.Flags)
			buf = WriteIndex(buf, r.Name, sw)
			buf = WriteIndex(buf, r.Type, bw)
		}
	case MethodSemantics:
		w := ci(HasSemantics)
		for _, r := range t.methodSemantics {
			buf = WriteUint16(buf, r.Semantics)
			buf = WriteIndex(buf, r.Method, tw(MethodDef))
			buf = WriteIndex(buf, r.Association, w)
		}
	case MethodImpl:
		w := ci(MethodDefOrRef)
		for _, r := range t.methodImpl {
			buf = WriteIndex(buf, r.Class, tw(TypeDef))
			buf = WriteIndex(buf, r.MethodBody, w)
			buf = WriteIndex(buf, r.MethodDeclaration, w)
		}
	case ModuleRef:
		for _, r := range t.moduleRef {
			buf = WriteIndex(buf, r.Name, sw)
		}
	case TypeSpec:
		for _, r := range t.typeSpec {
			buf = WriteIndex(buf, r.Signature, bw)
		}
	case ImplMap:
		w := ci(MemberForwarded)
		for _, r := range t.implMap {
			buf = WriteUint16(buf, r.MappingFlags)
			buf = WriteIndex(buf, r.MemberForwarded, w)
			buf = WriteIndex(buf, r.ImportName, sw)
			buf = WriteIndex(buf, r.ImportScope, tw(ModuleRef))
		}
	case FieldRVA:
		for _, r := range t.fieldRVA {
			buf = WriteUint32(buf, r.RVA)
			buf = WriteIndex(buf, r.Field, tw(Field))
		}
	case Assembly:
		for _, r := range t.assembly {
			buf = WriteUint32(buf, r.HashAlgId)
			buf = WriteUint16(buf, r.MajorVersion)
			buf = WriteUint16(buf, r.MinorVersion)
			buf = WriteUint16(buf, r.BuildNumber)
			buf = WriteUint16(buf, r.RevisionNumber)
			buf = WriteUint32(buf, r.Flags)
			buf = WriteIndex(buf, r.PublicKey, bw)
			buf = WriteIndex(buf, r.Name, sw)
			buf = WriteIndex(buf, r.Culture, sw)
		}
	case AssemblyProcessor:
		for _, r := range t.assemblyProcessor {
			buf = WriteUint32(buf, r.Processor)
		}
	case AssemblyOS:
		for _, r := range t.assemblyOS {
			buf = WriteUint32(buf, r.OSPlatformID)
			buf = WriteUint32(buf, r.OSMajorVersion)
			buf = WriteUint32(buf, r.OSMinorVersion)
		}
	case AssemblyRef:
		for _, r := range t.assemblyRef {
			buf = WriteUint16(buf, r.MajorVersion)
			buf = WriteUint16(buf, r.MinorVersion)
			buf = WriteUint16(buf, r.BuildNumber)
			buf = WriteUint16(buf, r.RevisionNumber)
			buf = WriteUint32(buf, r.Flags)
			buf = WriteIndex(buf, r.PublicKeyOrToken, bw)
			buf = WriteIndex(buf, r.Name, sw)
			buf = WriteIndex(buf, r.Culture, sw)
			buf = WriteIndex(buf, r.HashValue, bw)
		}
	case AssemblyRefProcessor:
		for _, r := range t.assemblyRefProcessor {
			buf = WriteUint32(buf, r.Processor)
			buf = WriteIndex(buf, r.AssemblyRef, tw(AssemblyRef))
		}
	case AssemblyRefOS:
		for _, r := range t.assemblyRefOS {
			buf = WriteUint32(buf, r.OSPlatformID)
			buf = WriteUint32(buf, r.OSMajorVersion)
			buf = WriteUint32(buf, r.OSMinorVersion)
			buf = WriteIndex(buf, r.AssemblyRef, tw(AssemblyRef))
		}
	case FileMD:
		for _, r := range t.file {
			buf = WriteUint32(buf, r.Flags)
			buf = WriteIndex(buf, r.Name, sw)
			buf = WriteIndex(buf, r.HashValue, bw)
		}
	case ExportedType:
		w := ci(Implementation)
		for _, r := range t.exportedType {
			buf = WriteUint32(buf, r.Flags)
			buf = WriteUint32(buf, r.TypeDefId)
			buf = WriteIndex(buf, r.TypeName, sw)
			buf = WriteIndex(buf, r.TypeNamespace, sw)
			buf = WriteIndex(buf, r.Implementation, w)
		}
	case ManifestResource:
		w := ci(Implementation)
		for _, r := range t.manifestResource {
			buf = WriteUint32(buf, r.Offset)
			buf = WriteUint32(buf, r.Flags)
			buf = WriteIndex(buf, r.Name, sw)
			buf = WriteIndex(buf, r.Implementation, w)
		}
	case NestedClass:
		for _, r := range t.nestedClass {
			buf = WriteIndex(buf, r.NestedClass, tw(TypeDef))
			buf = WriteIndex(buf, r.EnclosingClass, tw(TypeDef))
		}
	case GenericParam:
		w := ci(TypeOrMethodDef)
		for _, r := range t.genericParam {
			buf = WriteUint16(buf, r.Number)
			buf = WriteUint16(buf, r.Flags)
			buf = WriteIndex(buf, r.Owner, w)
			buf = WriteIndex(buf, r.Name, sw)
		}
	case MethodSpec:
		w := ci(MethodDefOrRef)
		for _, r := range t.methodSpec {
			buf = WriteIndex(buf, r.Method, w)
			buf = WriteIndex(buf, r.Instantiation, bw)
		}
	case GenericParamConstraint:
		w := ci(TypeDefOrRef)
		for _, r := range t.genericParamConstraint {
			buf = WriteIndex(buf, r.Owner, tw(GenericParam))
			buf = WriteIndex(buf, r.Constraint, w)
		}
	}
	return buf
}
