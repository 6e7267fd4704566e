// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "testing"

func TestCreateDirectoryEmptyModule(t *testing.T) {
	module := &ModuleDefinition{Name: "Empty.dll"}
	b := NewBuilder(module, nil)

	dir, err := b.CreateDirectory()
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if len(dir.Bytes) == 0 {
		t.Fatal("expected non-empty directory bytes")
	}
	if !dir.EntryPointToken.IsNull() {
		t.Errorf("expected null entry point, got %v", dir.EntryPointToken)
	}
}

func TestCreateDirectoryEmptyModuleWithAssembly(t *testing.T) {
	module := &ModuleDefinition{
		Name:  "Empty.dll",
		Flags: 0x0001,
		Assembly: &AssemblyDefinition{
			Name:    "Empty",
			Version: [4]uint16{1, 0, 0, 0},
		},
	}
	b := NewBuilder(module, nil)

	dir, err := b.CreateDirectory()
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if len(dir.Bytes) == 0 {
		t.Fatal("expected non-empty directory bytes")
	}
	if dir.Flags != module.Flags {
		t.Errorf("dir.Flags = 0x%x, want module's own 0x%x", dir.Flags, module.Flags)
	}
	if _, ok := b.cached(module.Assembly); !ok {
		t.Fatal("Module + Assembly rows: assembly was never assigned a token")
	}
}

func TestCreateDirectorySpentAfterFirstCall(t *testing.T) {
	module := &ModuleDefinition{Name: "Empty.dll"}
	b := NewBuilder(module, nil)

	if _, err := b.CreateDirectory(); err != nil {
		t.Fatalf("first CreateDirectory: %v", err)
	}
	if _, err := b.CreateDirectory(); err == nil {
		t.Fatal("expected error calling CreateDirectory twice")
	}
	if _, err := b.AddModuleReference(&ModuleReference{Name: "x"}); err == nil {
		t.Fatal("expected error calling Add* after CreateDirectory")
	}
}

func TestCreateDirectoryHelloWorldEntryPoint(t *testing.T) {
	module := &ModuleDefinition{Name: "HelloWorld.dll"}
	program := &TypeDefinition{Namespace: "HelloWorld", Name: "Program", Flags: 0x100001}
	// ldstr "Hello" ; pop ; ret -- the ldstr operand is a UserString fixup
	// resolved against the #US heap, not a table row.
	code := []byte{0x72, 0x00, 0x00, 0x00, 0x00, 0x26, 0x2a}
	main := &MethodDefinition{
		DeclaringType: program,
		Name:          "Main",
		Flags:         0x0096,
		Signature:     []byte{0x00, 0x00, 0x01},
		Body: &MethodBody{
			MaxStack: 1,
			Code:     code,
			Fixups:   []TokenFixup{{Offset: 1, Object: UserString("Hello")}},
		},
	}
	program.Methods = []*MethodDefinition{main}
	module.Types = []*TypeDefinition{program}
	module.EntryPoint = main

	b := NewBuilder(module, nil)
	dir, err := b.CreateDirectory()
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if dir.EntryPointToken.Table() != MethodDef {
		t.Errorf("entry point table = 0x%x, want MethodDef", dir.EntryPointToken.Table())
	}
	if dir.EntryPointToken.RID() != 1 {
		t.Errorf("entry point rid = %d, want 1", dir.EntryPointToken.RID())
	}
	if len(dir.MethodBodies) != 1 {
		t.Fatalf("expected one serialized method body, got %d", len(dir.MethodBodies))
	}

	body := dir.MethodBodies[dir.EntryPointToken]
	if len(body) < 6 {
		t.Fatalf("serialized body too short: %d bytes", len(body))
	}
	// Tiny header (1 byte) precedes code, so the ldstr operand at code
	// offset 1 lands at body offset 2.
	gotTok := uint32(body[2]) | uint32(body[3])<<8 | uint32(body[4])<<16 | uint32(body[5])<<24
	wantTok := uint32(NewToken(StringToken, 1))
	if gotTok != wantTok {
		t.Errorf("ldstr operand token = 0x%08x, want 0x%08x", gotTok, wantTok)
	}
	if wantTok != 0x70000001 {
		t.Fatalf("sanity check failed: first #US entry should be 0x70000001, computed 0x%08x", wantTok)
	}
}

func TestCreateDirectoryFieldAndMethodRangesContiguous(t *testing.T) {
	module := &ModuleDefinition{Name: "Ranges.dll"}

	typeA := &TypeDefinition{Name: "A"}
	typeA.Fields = []*FieldDefinition{
		{DeclaringType: typeA, Name: "f0", Signature: []byte{0x06, 0x08}},
		{DeclaringType: typeA, Name: "f1", Signature: []byte{0x06, 0x08}},
	}
	typeA.Methods = []*MethodDefinition{
		{DeclaringType: typeA, Name: "m0", Signature: []byte{0x00, 0x00, 0x01}},
	}

	typeB := &TypeDefinition{Name: "B"}
	typeB.Fields = []*FieldDefinition{
		{DeclaringType: typeB, Name: "f2", Signature: []byte{0x06, 0x08}},
	}
	typeB.Methods = []*MethodDefinition{
		{DeclaringType: typeB, Name: "m1", Signature: []byte{0x00, 0x00, 0x01}},
		{DeclaringType: typeB, Name: "m2", Signature: []byte{0x00, 0x00, 0x01}},
	}

	module.Types = []*TypeDefinition{typeA, typeB}

	b := NewBuilder(module, nil)
	dir, err := b.CreateDirectory()
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if len(dir.Bytes) == 0 {
		t.Fatal("expected directory bytes")
	}

	aField, ok := b.cached(typeA.Fields[0])
	if !ok {
		t.Fatal("typeA's first field was never assigned a token")
	}
	bField, ok := b.cached(typeB.Fields[0])
	if !ok {
		t.Fatal("typeB's field was never assigned a token")
	}
	// typeA owns 2 fields starting wherever its FieldList cursor landed;
	// typeB's field must immediately follow them, not overlap or skip.
	if bField.RID() != aField.RID()+2 {
		t.Errorf("typeB field rid = %d, want %d (immediately after typeA's 2 fields)", bField.RID(), aField.RID()+2)
	}

	aMethod, ok := b.cached(typeA.Methods[0])
	if !ok {
		t.Fatal("typeA's method was never assigned a token")
	}
	bMethod, ok := b.cached(typeB.Methods[0])
	if !ok {
		t.Fatal("typeB's first method was never assigned a token")
	}
	if bMethod.RID() != aMethod.RID()+1 {
		t.Errorf("typeB method rid = %d, want %d (immediately after typeA's 1 method)", bMethod.RID(), aMethod.RID()+1)
	}
}

func TestCreateDirectoryGenericConstraint(t *testing.T) {
	module := &ModuleDefinition{Name: "Generic.dll"}
	box := &TypeDefinition{Namespace: "Generic", Name: "Box`1"}
	tp := &GenericParameter{Owner: box, Number: 0, Name: "T"}
	tp.Constraints = []*GenericParamConstraint{{Owner: tp, Constraint: box}}
	box.GenericParams = []*GenericParameter{tp}
	module.Types = []*TypeDefinition{box}

	b := NewBuilder(module, nil)
	dir, err := b.CreateDirectory()
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if len(dir.Bytes) == 0 {
		t.Fatal("expected directory bytes")
	}
}

func TestCreateDirectoryCustomAttributeOnAssembly(t *testing.T) {
	module := &ModuleDefinition{Name: "Attributed.dll"}
	ctorType := &TypeReference{Namespace: "System.Reflection", Name: "AssemblyTitleAttribute"}
	ctor := &MemberReference{Parent: ctorType, Name: ".ctor", Signature: []byte{0x20, 0x01, 0x01, 0x0e}}
	module.Assembly = &AssemblyDefinition{
		Name:    "Attributed",
		Version: [4]uint16{1, 0, 0, 0},
		CustomAttributes: []*CustomAttribute{
			{Constructor: ctor, Value: []byte{0x01, 0x00, 0x00, 0x00}},
		},
	}

	b := NewBuilder(module, nil)
	dir, err := b.CreateDirectory()
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if len(dir.Bytes) == 0 {
		t.Fatal("expected directory bytes")
	}
}

func TestCreateDirectoryDuplicateBlobInterning(t *testing.T) {
	module := &ModuleDefinition{Name: "Dedup.dll"}
	typeA := &TypeDefinition{Name: "A"}
	sig := []byte{0x06, 0x08}
	typeA.Fields = []*FieldDefinition{
		{DeclaringType: typeA, Name: "f0", Signature: sig},
		{DeclaringType: typeA, Name: "f1", Signature: append([]byte(nil), sig...)},
	}
	module.Types = []*TypeDefinition{typeA}

	b := NewBuilder(module, nil)
	if _, err := b.CreateDirectory(); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}

	f0, _ := b.cached(typeA.Fields[0])
	f1, _ := b.cached(typeA.Fields[1])
	s0 := b.tables.field[f0.RID()-1].Signature
	s1 := b.tables.field[f1.RID()-1].Signature
	if s0 != s1 {
		t.Errorf("equal signatures interned at different blob indices: %d and %d", s0, s1)
	}
	if b.blobs.Size() == 0 {
		t.Fatal("expected blob heap to contain the shared signature")
	}
}
