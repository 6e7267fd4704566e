// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "testing"

// fakeResolver maps object identities to fixed tokens for signature and
// method-body tests, so they don't need a full Builder.
type fakeResolver map[any]Token

func (f fakeResolver) ResolveToken(obj any) (Token, error) {
	if obj == nil {
		return 0, nil
	}
	tok, ok := f[obj]
	if !ok {
		return 0, errTestUnresolved
	}
	return tok, nil
}

var errTestUnresolved = &testErr{"object not registered with fakeResolver"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

func TestFieldSignaturePrimitive(t *testing.T) {
	b := NewSignatureBuilder(fakeResolver{})
	sig, err := b.FieldSignature(&TypeElement{Primitive: elementTypeI4})
	if err != nil {
		t.Fatalf("FieldSignature: %v", err)
	}
	want := []byte{sigFlagField, elementTypeI4}
	if !bytesEqual(sig, want) {
		t.Errorf("FieldSignature = % x, want % x", sig, want)
	}
}

func TestFieldSignatureValueType(t *testing.T) {
	var vt TypeDefinition
	resolver := fakeResolver{&vt: NewToken(TypeDef, 7)}
	b := NewSignatureBuilder(resolver)

	sig, err := b.FieldSignature(&TypeElement{ValueType: &vt})
	if err != nil {
		t.Fatalf("FieldSignature: %v", err)
	}
	if len(sig) < 2 || sig[0] != sigFlagField || sig[1] != elementTypeValueType {
		t.Errorf("FieldSignature = % x, want prefix [%02x %02x]", sig, sigFlagField, elementTypeValueType)
	}
}

func TestMethodSignatureShape(t *testing.T) {
	b := NewSignatureBuilder(fakeResolver{})
	sig, err := b.MethodSignature(true, false, false, 0,
		&TypeElement{Primitive: elementTypeVoid},
		[]*MethodParam{{Type: &TypeElement{Primitive: elementTypeI4}}})
	if err != nil {
		t.Fatalf("MethodSignature: %v", err)
	}
	want := []byte{sigFlagHasThis, 0x01, elementTypeVoid, elementTypeI4}
	if !bytesEqual(sig, want) {
		t.Errorf("MethodSignature = % x, want % x", sig, want)
	}
}

func TestSignatureCyclicElementRejected(t *testing.T) {
	b := NewSignatureBuilder(fakeResolver{})
	el := &TypeElement{}
	el.SzArray = el // an element naming itself as its own array element

	if _, err := b.FieldSignature(el); err == nil {
		t.Fatal("expected cyclic type signature error")
	}
}

func TestSignatureRecursiveGenericConstraintTerminates(t *testing.T) {
	// class C<T> where T : C<T> -- legitimate recursion, since the class
	// element only ever emits a coded-index token, never C's own shape.
	var c TypeDefinition
	resolver := fakeResolver{&c: NewToken(TypeDef, 1)}
	b := NewSignatureBuilder(resolver)

	inst := &GenericInstance{Generic: &c, Args: []*TypeElement{{Class: &c}}}
	sig, err := b.TypeSpecSignature(&TypeElement{GenericInst: inst})
	if err != nil {
		t.Fatalf("TypeSpecSignature: %v", err)
	}
	if len(sig) == 0 {
		t.Fatal("expected non-empty signature")
	}
}

func TestGenericInstSignatureCallingConvention(t *testing.T) {
	b := NewSignatureBuilder(fakeResolver{})
	sig, err := b.GenericInstSignature([]*TypeElement{{Primitive: elementTypeI4}})
	if err != nil {
		t.Fatalf("GenericInstSignature: %v", err)
	}
	if len(sig) == 0 || sig[0] != sigCallConvGenericInst {
		t.Fatalf("GenericInstSignature leading byte = 0x%02x, want GENERICINST 0x%02x", sig[0], sigCallConvGenericInst)
	}
	if sig[0] == sigFlagGeneric {
		t.Fatal("GenericInstSignature must not emit the method-signature generic flag as its calling convention")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
