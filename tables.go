// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import (
	"sort"

	"github.com/dotnetmd/clrmeta/errs"
)

// maxRows is the largest row id a table can hold; RIDs are 24-bit per
// Token's layout.
const maxRows = 0x00ffffff

// TablesBuffer accumulates rows for every ECMA-335 metadata table and turns
// them into the bytes of the #~ tables stream. The five "*Ptr" tables and
// the two ENCLog/ENCMap tables are never populated by this builder (they
// exist only for edit-and-continue and table-optimization scenarios a fresh
// assembly build never produces), so TablesBuffer carries no storage for
// them and their Valid bits are never set.
type TablesBuffer struct {
	module                 []ModuleTableRow
	typeRef                []TypeRefTableRow
	typeDef                []TypeDefTableRow
	field                  []FieldTableRow
	methodDef              []MethodDefTableRow
	param                  []ParamTableRow
	interfaceImpl          []InterfaceImplTableRow
	memberRef              []MemberRefTableRow
	constant               []ConstantTableRow
	customAttribute        []CustomAttributeTableRow
	fieldMarshal           []FieldMarshalTableRow
	declSecurity           []DeclSecurityTableRow
	classLayout            []ClassLayoutTableRow
	fieldLayout            []FieldLayoutTableRow
	standAloneSig          []StandAloneSigTableRow
	eventMap               []EventMapTableRow
	event                  []EventTableRow
	propertyMap            []PropertyMapTableRow
	property               []PropertyTableRow
	methodSemantics        []MethodSemanticsTableRow
	methodImpl             []MethodImplTableRow
	moduleRef              []ModuleRefTableRow
	typeSpec               []TypeSpecTableRow
	implMap                []ImplMapTableRow
	fieldRVA               []FieldRVATableRow
	assembly               []AssemblyTableRow
	assemblyProcessor      []AssemblyProcessorTableRow
	assemblyOS             []AssemblyOSTableRow
	assemblyRef            []AssemblyRefTableRow
	assemblyRefProcessor   []AssemblyRefProcessorTableRow
	assemblyRefOS          []AssemblyRefOSTableRow
	file                   []FileTableRow
	exportedType           []ExportedTypeTableRow
	manifestResource       []ManifestResourceTableRow
	nestedClass            []NestedClassTableRow
	genericParam           []GenericParamTableRow
	methodSpec             []MethodSpecTableRow
	genericParamConstraint []GenericParamConstraintTableRow

	filled map[int][]bool
}

// NewTablesBuffer returns an empty TablesBuffer.
func NewTablesBuffer() *TablesBuffer {
	return &TablesBuffer{filled: make(map[int][]bool)}
}

// assignRID implements the preferred-RID/placeholder-fill rule: if
// preferredRID is 0 the row is appended at the next free slot; otherwise the
// slice is grown with zero-value placeholders up to preferredRID and the row
// is written there, unless that slot is already filled, which is a
// DuplicateRid error.
func assignRID[T any](rows *[]T, filledFor *[]bool, table int, preferredRID uint32, row T) (uint32, error) {
	if preferredRID == 0 {
		*rows = append(*rows, row)
		*filledFor = append(*filledFor, true)
		rid := uint32(len(*rows))
		if rid > maxRows {
			return 0, errs.New(errs.IndexOverflow, table, "table exceeds maximum row count")
		}
		return rid, nil
	}
	if preferredRID > maxRows {
		return 0, errs.New(errs.IndexOverflow, table, "preferred rid exceeds maximum row count")
	}
	idx := int(preferredRID - 1)
	for len(*rows) <= idx {
		var zero T
		*rows = append(*rows, zero)
		*filledFor = append(*filledFor, false)
	}
	if (*filledFor)[idx] {
		return 0, errs.NewToken(errs.DuplicateRid, NewToken(uint8(table), preferredRID), "rid already assigned")
	}
	(*rows)[idx] = row
	(*filledFor)[idx] = true
	return preferredRID, nil
}

func (t *TablesBuffer) filledSlice(table int, n int) *[]bool {
	s := t.filled[table]
	for len(s) < n {
		s = append(s, false)
	}
	t.filled[table] = s
	return &s
}

// unfilled reports the first placeholder gap left across every table, for
// CreateDirectory's UnfilledRow check.
func (t *TablesBuffer) unfilled() (table int, rid uint32, ok bool) {
	for tbl, s := range t.filled {
		for i, f := range s {
			if !f {
				return tbl, uint32(i + 1), true
			}
		}
	}
	return 0, 0, false
}

// AddModuleRow inserts or overwrites a Module row at preferredRID (0 = append).
func (t *TablesBuffer) AddModuleRow(preferredRID uint32, row ModuleTableRow) (uint32, error) {
	f := t.filledSlice(Module, len(t.module))
	rid, err := assignRID(&t.module, f, Module, preferredRID, row)
	t.filled[Module] = *f
	return rid, err
}

// AddTypeRefRow inserts or overwrites a TypeRef row.
func (t *TablesBuffer) AddTypeRefRow(preferredRID uint32, row TypeRefTableRow) (uint32, error) {
	f := t.filledSlice(TypeRef, len(t.typeRef))
	rid, err := assignRID(&t.typeRef, f, TypeRef, preferredRID, row)
	t.filled[TypeRef] = *f
	return rid, err
}

// AddTypeDefRow inserts or overwrites a TypeDef row.
func (t *TablesBuffer) AddTypeDefRow(preferredRID uint32, row TypeDefTableRow) (uint32, error) {
	f := t.filledSlice(TypeDef, len(t.typeDef))
	rid, err := assignRID(&t.typeDef, f, TypeDef, preferredRID, row)
	t.filled[TypeDef] = *f
	return rid, err
}

// AddFieldRow inserts or overwrites a Field row.
func (t *TablesBuffer) AddFieldRow(preferredRID uint32, row FieldTableRow) (uint32, error) {
	f := t.filledSlice(Field, len(t.field))
	rid, err := assignRID(&t.field, f, Field, preferredRID, row)
	t.filled[Field] = *f
	return rid, err
}

// AddMethodDefRow inserts or overwrites a MethodDef row.
func (t *TablesBuffer) AddMethodDefRow(preferredRID uint32, row MethodDefTableRow) (uint32, error) {
	f := t.filledSlice(MethodDef, len(t.methodDef))
	rid, err := assignRID(&t.methodDef, f, MethodDef, preferredRID, row)
	t.filled[MethodDef] = *f
	return rid, err
}

// AddParamRow inserts or overwrites a Param row.
func (t *TablesBuffer) AddParamRow(preferredRID uint32, row ParamTableRow) (uint32, error) {
	f := t.filledSlice(Param, len(t.param))
	rid, err := assignRID(&t.param, f, Param, preferredRID, row)
	t.filled[Param] = *f
	return rid, err
}

// AddInterfaceImplRow inserts or overwrites an InterfaceImpl row.
func (t *TablesBuffer) AddInterfaceImplRow(preferredRID uint32, row InterfaceImplTableRow) (uint32, error) {
	f := t.filledSlice(InterfaceImpl, len(t.interfaceImpl))
	rid, err := assignRID(&t.interfaceImpl, f, InterfaceImpl, preferredRID, row)
	t.filled[InterfaceImpl] = *f
	return rid, err
}

// AddMemberRefRow inserts or overwrites a MemberRef row.
func (t *TablesBuffer) AddMemberRefRow(preferredRID uint32, row MemberRefTableRow) (uint32, error) {
	f := t.filledSlice(MemberRef, len(t.memberRef))
	rid, err := assignRID(&t.memberRef, f, MemberRef, preferredRID, row)
	t.filled[MemberRef] = *f
	return rid, err
}

// AddConstantRow inserts or overwrites a Constant row.
func (t *TablesBuffer) AddConstantRow(preferredRID uint32, row ConstantTableRow) (uint32, error) {
	f := t.filledSlice(Constant, len(t.constant))
	rid, err := assignRID(&t.constant, f, Constant, preferredRID, row)
	t.filled[Constant] = *f
	return rid, err
}

// AddCustomAttributeRow inserts or overwrites a CustomAttribute row.
func (t *TablesBuffer) AddCustomAttributeRow(preferredRID uint32, row CustomAttributeTableRow) (uint32, error) {
	f := t.filledSlice(CustomAttribute, len(t.customAttribute))
	rid, err := assignRID(&t.customAttribute, f, CustomAttribute, preferredRID, row)
	t.filled[CustomAttribute] = *f
	return rid, err
}

// AddFieldMarshalRow inserts or overwrites a FieldMarshal row.
func (t *TablesBuffer) AddFieldMarshalRow(preferredRID uint32, row FieldMarshalTableRow) (uint32, error) {
	f := t.filledSlice(FieldMarshal, len(t.fieldMarshal))
	rid, err := assignRID(&t.fieldMarshal, f, FieldMarshal, preferredRID, row)
	t.filled[FieldMarshal] = *f
	return rid, err
}

// AddDeclSecurityRow inserts or overwrites a DeclSecurity row.
func (t *TablesBuffer) AddDeclSecurityRow(preferredRID uint32, row DeclSecurityTableRow) (uint32, error) {
	f := t.filledSlice(DeclSecurity, len(t.declSecurity))
	rid, err := assignRID(&t.declSecurity, f, DeclSecurity, preferredRID, row)
	t.filled[DeclSecurity] = *f
	return rid, err
}

// AddClassLayoutRow inserts or overwrites a ClassLayout row.
func (t *TablesBuffer) AddClassLayoutRow(preferredRID uint32, row ClassLayoutTableRow) (uint32, error) {
	f := t.filledSlice(ClassLayout, len(t.classLayout))
	rid, err := assignRID(&t.classLayout, f, ClassLayout, preferredRID, row)
	t.filled[ClassLayout] = *f
	return rid, err
}

// AddFieldLayoutRow inserts or overwrites a FieldLayout row.
func (t *TablesBuffer) AddFieldLayoutRow(preferredRID uint32, row FieldLayoutTableRow) (uint32, error) {
	f := t.filledSlice(FieldLayout, len(t.fieldLayout))
	rid, err := assignRID(&t.fieldLayout, f, FieldLayout, preferredRID, row)
	t.filled[FieldLayout] = *f
	return rid, err
}

// AddStandAloneSigRow inserts or overwrites a StandAloneSig row.
func (t *TablesBuffer) AddStandAloneSigRow(preferredRID uint32, row StandAloneSigTableRow) (uint32, error) {
	f := t.filledSlice(StandAloneSig, len(t.standAloneSig))
	rid, err := assignRID(&t.standAloneSig, f, StandAloneSig, preferredRID, row)
	t.filled[StandAloneSig] = *f
	return rid, err
}

// AddEventMapRow inserts or overwrites an EventMap row.
func (t *TablesBuffer) AddEventMapRow(preferredRID uint32, row EventMapTableRow) (uint32, error) {
	f := t.filledSlice(EventMap, len(t.eventMap))
	rid, err := assignRID(&t.eventMap, f, EventMap, preferredRID, row)
	t.filled[EventMap] = *f
	return rid, err
}

// AddEventRow inserts or overwrites an Event row.
func (t *TablesBuffer) AddEventRow(preferredRID uint32, row EventTableRow) (uint32, error) {
	f := t.filledSlice(Event, len(t.event))
	rid, err := assignRID(&t.event, f, Event, preferredRID, row)
	t.filled[Event] = *f
	return rid, err
}

// AddPropertyMapRow inserts or overwrites a PropertyMap row.
func (t *TablesBuffer) AddPropertyMapRow(preferredRID uint32, row PropertyMapTableRow) (uint32, error) {
	f := t.filledSlice(PropertyMap, len(t.propertyMap))
	rid, err := assignRID(&t.propertyMap, f, PropertyMap, preferredRID, row)
	t.filled[PropertyMap] = *f
	return rid, err
}

// AddPropertyRow inserts or overwrites a Property row.
func (t *TablesBuffer) AddPropertyRow(preferredRID uint32, row PropertyTableRow) (uint32, error) {
	f := t.filledSlice(Property, len(t.property))
	rid, err := assignRID(&t.property, f, Property, preferredRID, row)
	t.filled[Property] = *f
	return rid, err
}

// AddMethodSemanticsRow inserts or overwrites a MethodSemantics row.
func (t *TablesBuffer) AddMethodSemanticsRow(preferredRID uint32, row MethodSemanticsTableRow) (uint32, error) {
	f := t.filledSlice(MethodSemantics, len(t.methodSemantics))
	rid, err := assignRID(&t.methodSemantics, f, MethodSemantics, preferredRID, row)
	t.filled[MethodSemantics] = *f
	return rid, err
}

// AddMethodImplRow inserts or overwrites a MethodImpl row.
func (t *TablesBuffer) AddMethodImplRow(preferredRID uint32, row MethodImplTableRow) (uint32, error) {
	f := t.filledSlice(MethodImpl, len(t.methodImpl))
	rid, err := assignRID(&t.methodImpl, f, MethodImpl, preferredRID, row)
	t.filled[MethodImpl] = *f
	return rid, err
}

// AddModuleRefRow inserts or overwrites a ModuleRef row.
func (t *TablesBuffer) AddModuleRefRow(preferredRID uint32, row ModuleRefTableRow) (uint32, error) {
	f := t.filledSlice(ModuleRef, len(t.moduleRef))
	rid, err := assignRID(&t.moduleRef, f, ModuleRef, preferredRID, row)
	t.filled[ModuleRef] = *f
	return rid, err
}

// AddTypeSpecRow inserts or overwrites a TypeSpec row.
func (t *TablesBuffer) AddTypeSpecRow(preferredRID uint32, row TypeSpecTableRow) (uint32, error) {
	f := t.filledSlice(TypeSpec, len(t.typeSpec))
	rid, err := assignRID(&t.typeSpec, f, TypeSpec, preferredRID, row)
	t.filled[TypeSpec] = *f
	return rid, err
}

// AddImplMapRow inserts or overwrites an ImplMap row.
func (t *TablesBuffer) AddImplMapRow(preferredRID uint32, row ImplMapTableRow) (uint32, error) {
	f := t.filledSlice(ImplMap, len(t.implMap))
	rid, err := assignRID(&t.implMap, f, ImplMap, preferredRID, row)
	t.filled[ImplMap] = *f
	return rid, err
}

// AddFieldRVARow inserts or overwrites a FieldRVA row.
func (t *TablesBuffer) AddFieldRVARow(preferredRID uint32, row FieldRVATableRow) (uint32, error) {
	f := t.filledSlice(FieldRVA, len(t.fieldRVA))
	rid, err := assignRID(&t.fieldRVA, f, FieldRVA, preferredRID, row)
	t.filled[FieldRVA] = *f
	return rid, err
}

// AddAssemblyRow inserts or overwrites the (singular) Assembly row.
func (t *TablesBuffer) AddAssemblyRow(preferredRID uint32, row AssemblyTableRow) (uint32, error) {
	f := t.filledSlice(Assembly, len(t.assembly))
	rid, err := assignRID(&t.assembly, f, Assembly, preferredRID, row)
	t.filled[Assembly] = *f
	return rid, err
}

// AddAssemblyProcessorRow inserts or overwrites an AssemblyProcessor row.
func (t *TablesBuffer) AddAssemblyProcessorRow(preferredRID uint32, row AssemblyProcessorTableRow) (uint32, error) {
	f := t.filledSlice(AssemblyProcessor, len(t.assemblyProcessor))
	rid, err := assignRID(&t.assemblyProcessor, f, AssemblyProcessor, preferredRID, row)
	t.filled[AssemblyProcessor] = *f
	return rid, err
}

// AddAssemblyOSRow inserts or overwrites an AssemblyOS row.
func (t *TablesBuffer) AddAssemblyOSRow(preferredRID uint32, row AssemblyOSTableRow) (uint32, error) {
	f := t.filledSlice(AssemblyOS, len(t.assemblyOS))
	rid, err := assignRID(&t.assemblyOS, f, AssemblyOS, preferredRID, row)
	t.filled[AssemblyOS] = *f
	return rid, err
}

// AddAssemblyRefRow inserts or overwrites an AssemblyRef row.
func (t *TablesBuffer) AddAssemblyRefRow(preferredRID uint32, row AssemblyRefTableRow) (uint32, error) {
	f := t.filledSlice(AssemblyRef, len(t.assemblyRef))
	rid, err := assignRID(&t.assemblyRef, f, AssemblyRef, preferredRID, row)
	t.filled[AssemblyRef] = *f
	return rid, err
}

// AddAssemblyRefProcessorRow inserts or overwrites an AssemblyRefProcessor row.
func (t *TablesBuffer) AddAssemblyRefProcessorRow(preferredRID uint32, row AssemblyRefProcessorTableRow) (uint32, error) {
	f := t.filledSlice(AssemblyRefProcessor, len(t.assemblyRefProcessor))
	rid, err := assignRID(&t.assemblyRefProcessor, f, AssemblyRefProcessor, preferredRID, row)
	t.filled[AssemblyRefProcessor] = *f
	return rid, err
}

// AddAssemblyRefOSRow inserts or overwrites an AssemblyRefOS row.
func (t *TablesBuffer) AddAssemblyRefOSRow(preferredRID uint32, row AssemblyRefOSTableRow) (uint32, error) {
	f := t.filledSlice(AssemblyRefOS, len(t.assemblyRefOS))
	rid, err := assignRID(&t.assemblyRefOS, f, AssemblyRefOS, preferredRID, row)
	t.filled[AssemblyRefOS] = *f
	return rid, err
}

// AddFileRow inserts or overwrites a File row.
func (t *TablesBuffer) AddFileRow(preferredRID uint32, row FileTableRow) (uint32, error) {
	f := t.filledSlice(FileMD, len(t.file))
	rid, err := assignRID(&t.file, f, FileMD, preferredRID, row)
	t.filled[FileMD] = *f
	return rid, err
}

// AddExportedTypeRow inserts or overwrites an ExportedType row.
func (t *TablesBuffer) AddExportedTypeRow(preferredRID uint32, row ExportedTypeTableRow) (uint32, error) {
	f := t.filledSlice(ExportedType, len(t.exportedType))
	rid, err := assignRID(&t.exportedType, f, ExportedType, preferredRID, row)
	t.filled[ExportedType] = *f
	return rid, err
}

// AddManifestResourceRow inserts or overwrites a ManifestResource row.
func (t *TablesBuffer) AddManifestResourceRow(preferredRID uint32, row ManifestResourceTableRow) (uint32, error) {
	f := t.filledSlice(ManifestResource, len(t.manifestResource))
	rid, err := assignRID(&t.manifestResource, f, ManifestResource, preferredRID, row)
	t.filled[ManifestResource] = *f
	return rid, err
}

// AddNestedClassRow inserts or overwrites a NestedClass row.
func (t *TablesBuffer) AddNestedClassRow(preferredRID uint32, row NestedClassTableRow) (uint32, error) {
	f := t.filledSlice(NestedClass, len(t.nestedClass))
	rid, err := assignRID(&t.nestedClass, f, NestedClass, preferredRID, row)
	t.filled[NestedClass] = *f
	return rid, err
}

// AddGenericParamRow inserts or overwrites a GenericParam row.
func (t *TablesBuffer) AddGenericParamRow(preferredRID uint32, row GenericParamTableRow) (uint32, error) {
	f := t.filledSlice(GenericParam, len(t.genericParam))
	rid, err := assignRID(&t.genericParam, f, GenericParam, preferredRID, row)
	t.filled[GenericParam] = *f
	return rid, err
}

// AddMethodSpecRow inserts or overwrites a MethodSpec row.
func (t *TablesBuffer) AddMethodSpecRow(preferredRID uint32, row MethodSpecTableRow) (uint32, error) {
	f := t.filledSlice(MethodSpec, len(t.methodSpec))
	rid, err := assignRID(&t.methodSpec, f, MethodSpec, preferredRID, row)
	t.filled[MethodSpec] = *f
	return rid, err
}

// AddGenericParamConstraintRow inserts or overwrites a GenericParamConstraint row.
func (t *TablesBuffer) AddGenericParamConstraintRow(preferredRID uint32, row GenericParamConstraintTableRow) (uint32, error) {
	f := t.filledSlice(GenericParamConstraint, len(t.genericParamConstraint))
	rid, err := assignRID(&t.genericParamConstraint, f, GenericParamConstraint, preferredRID, row)
	t.filled[GenericParamConstraint] = *f
	return rid, err
}

// RowCount returns the number of rows currently held for table, used by
// coded-index width decisions (ECMA §II.24.2.6) and the tables-stream Row
// count array.
func (t *TablesBuffer) RowCount(table int) uint32 {
	switch table {
	case Module:
		return uint32(len(t.module))
	case TypeRef:
		return uint32(len(t.typeRef))
	case TypeDef:
		return uint32(len(t.typeDef))
	case Field:
		return uint32(len(t.field))
	case MethodDef:
		return uint32(len(t.methodDef))
	case Param:
		return uint32(len(t.param))
	case InterfaceImpl:
		return uint32(len(t.interfaceImpl))
	case MemberRef:
		return uint32(len(t.memberRef))
	case Constant:
		return uint32(len(t.constant))
	case CustomAttribute:
		return uint32(len(t.customAttribute))
	case FieldMarshal:
		return uint32(len(t.fieldMarshal))
	case DeclSecurity:
		return uint32(len(t.declSecurity))
	case ClassLayout:
		return uint32(len(t.classLayout))
	case FieldLayout:
		return uint32(len(t.fieldLayout))
	case StandAloneSig:
		return uint32(len(t.standAloneSig))
	case EventMap:
		return uint32(len(t.eventMap))
	case Event:
		return uint32(len(t.event))
	case PropertyMap:
		return uint32(len(t.propertyMap))
	case Property:
		return uint32(len(t.property))
	case MethodSemantics:
		return uint32(len(t.methodSemantics))
	case MethodImpl:
		return uint32(len(t.methodImpl))
	case ModuleRef:
		return uint32(len(t.moduleRef))
	case TypeSpec:
		return uint32(len(t.typeSpec))
	case ImplMap:
		return uint32(len(t.implMap))
	case FieldRVA:
		return uint32(len(t.fieldRVA))
	case Assembly:
		return uint32(len(t.assembly))
	case AssemblyProcessor:
		return uint32(len(t.assemblyProcessor))
	case AssemblyOS:
		return uint32(len(t.assemblyOS))
	case AssemblyRef:
		return uint32(len(t.assemblyRef))
	case AssemblyRefProcessor:
		return uint32(len(t.assemblyRefProcessor))
	case AssemblyRefOS:
		return uint32(len(t.assemblyRefOS))
	case FileMD:
		return uint32(len(t.file))
	case ExportedType:
		return uint32(len(t.exportedType))
	case ManifestResource:
		return uint32(len(t.manifestResource))
	case NestedClass:
		return uint32(len(t.nestedClass))
	case GenericParam:
		return uint32(len(t.genericParam))
	case MethodSpec:
		return uint32(len(t.methodSpec))
	case GenericParamConstraint:
		return uint32(len(t.genericParamConstraint))
	default:
		return 0
	}
}

// ApplySortOrder reorders the tables ECMA-335 requires to be sorted by
// their logical owner column, so consumers can binary search them.
// GenericParam is the only sorted table any other row field
// references by plain RID (GenericParamConstraint.Owner), so resorting it
// remaps that field before GenericParamConstraint is itself sorted; every
// other sorted table is only ever referenced through a coded index or from
// a non-sorted table, so no further fixups are needed.
func (t *TablesBuffer) ApplySortOrder() {
	sortRows(t.interfaceImpl, func(a, b InterfaceImplTableRow) bool {
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		return a.Interface < b.Interface
	})
	sortRows(t.constant, func(a, b ConstantTableRow) bool { return a.Parent < b.Parent })
	sortRows(t.customAttribute, func(a, b CustomAttributeTableRow) bool { return a.Parent < b.Parent })
	sortRows(t.fieldMarshal, func(a, b FieldMarshalTableRow) bool { return a.Parent < b.Parent })
	sortRows(t.declSecurity, func(a, b DeclSecurityTableRow) bool { return a.Parent < b.Parent })
	sortRows(t.classLayout, func(a, b ClassLayoutTableRow) bool { return a.Parent < b.Parent })
	sortRows(t.fieldLayout, func(a, b FieldLayoutTableRow) bool { return a.Field < b.Field })
	sortRows(t.methodSemantics, func(a, b MethodSemanticsTableRow) bool { return a.Association < b.Association })
	sortRows(t.methodImpl, func(a, b MethodImplTableRow) bool { return a.Class < b.Class })
	sortRows(t.implMap, func(a, b ImplMapTableRow) bool { return a.MemberForwarded < b.MemberForwarded })
	sortRows(t.fieldRVA, func(a, b FieldRVATableRow) bool { return a.Field < b.Field })
	sortRows(t.nestedClass, func(a, b NestedClassTableRow) bool { return a.NestedClass < b.NestedClass })

	if len(t.genericParam) > 0 {
		idx := stableSortIndices(len(t.genericParam), func(i, j int) bool {
			a, b := t.genericParam[i], t.genericParam[j]
			if a.Owner != b.Owner {
				return a.Owner < b.Owner
			}
			return a.Number < b.Number
		})
		remap := make(map[uint32]uint32, len(idx))
		reordered := make([]GenericParamTableRow, len(idx))
		for newPos, oldPos := range idx {
			reordered[newPos] = t.genericParam[oldPos]
			remap[uint32(oldPos+1)] = uint32(newPos + 1)
		}
		t.genericParam = reordered

		for i := range t.genericParamConstraint {
			if nr, ok := remap[t.genericParamConstraint[i].Owner]; ok {
				t.genericParamConstraint[i].Owner = nr
			}
		}
	}
	sortRows(t.genericParamConstraint, func(a, b GenericParamConstraintTableRow) bool {
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Constraint < b.Constraint
	})
}

// sortedTableMask is the ECMA-335 Sorted bitmask this builder always
// produces, since ApplySortOrder is unconditionally run before Serialize.
func sortedTableMask() uint64 {
	var mask uint64
	for _, tbl := range []int{
		InterfaceImpl, Constant, CustomAttribute, FieldMarshal, DeclSecurity,
		ClassLayout, FieldLayout, MethodSemantics, MethodImpl, ImplMap,
		FieldRVA, NestedClass, GenericParam, GenericParamConstraint,
	} {
		mask |= 1 << uint(tbl)
	}
	return mask
}

// sortRows sorts rows in place using less, leaving relative order of equal
// elements unchanged (ECMA-335 does not require a particular tie-break, but
// a stable sort keeps output deterministic across runs with the same
// input order).
func sortRows[T any](rows []T, less func(a, b T) bool) {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}

// stableSortIndices returns a permutation of [0,n) ordered by less, without
// touching the original data; callers use it when they need to know the
// old-to-new position mapping alongside the reordering itself.
func stableSortIndices(n int, less func(i, j int) bool) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return less(idx[a], idx[b]) })
	return idx
}
