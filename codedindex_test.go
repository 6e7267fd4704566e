// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import (
	"testing"

	"github.com/dotnetmd/clrmeta/errs"
)

func TestCodedIndexRoundTrip(t *testing.T) {
	tests := []struct {
		kind CodedIndexKind
		tok  Token
	}{
		{TypeDefOrRef, NewToken(TypeDef, 5)},
		{TypeDefOrRef, NewToken(TypeRef, 9)},
		{TypeDefOrRef, NewToken(TypeSpec, 1)},
		{HasCustomAttribute, NewToken(MethodDef, 3)},
		{HasCustomAttribute, NewToken(Assembly, 1)},
		{ResolutionScope, NewToken(AssemblyRef, 2)},
		{MemberRefParent, NewToken(TypeSpec, 7)},
		{TypeOrMethodDef, NewToken(MethodDef, 4)},
	}

	for _, tt := range tests {
		coded, err := EncodeCodedIndex(tt.kind, tt.tok)
		if err != nil {
			t.Fatalf("EncodeCodedIndex(%v, %v): %v", tt.kind, tt.tok, err)
		}
		got, err := DecodeCodedIndex(tt.kind, coded)
		if err != nil {
			t.Fatalf("DecodeCodedIndex(%v, 0x%x): %v", tt.kind, coded, err)
		}
		if got != tt.tok {
			t.Errorf("round trip mismatch: got %v, want %v", got, tt.tok)
		}
	}
}

func TestCodedIndexNullToken(t *testing.T) {
	coded, err := EncodeCodedIndex(TypeDefOrRef, Token(0))
	if err != nil {
		t.Fatalf("EncodeCodedIndex(null): %v", err)
	}
	if coded != 0 {
		t.Errorf("null token encoded as 0x%x, want 0", coded)
	}
	tok, err := DecodeCodedIndex(TypeDefOrRef, 0)
	if err != nil {
		t.Fatalf("DecodeCodedIndex(0): %v", err)
	}
	if !tok.IsNull() {
		t.Errorf("decoded 0 as non-null token %v", tok)
	}
}

func TestCodedIndexUnsupportedTable(t *testing.T) {
	_, err := EncodeCodedIndex(HasFieldMarshal, NewToken(TypeDef, 1))
	if err == nil {
		t.Fatal("expected error encoding TypeDef into HasFieldMarshal")
	}
	if !errs.Is(err, errs.InvalidCodedIndex) {
		t.Errorf("expected InvalidCodedIndex error kind, got %v", err)
	}
}

func TestCodedIndexWidthPromotion(t *testing.T) {
	narrow := codedIndexWidth(TypeDefOrRef, func(table int) uint32 { return 10 })
	if narrow != 2 {
		t.Errorf("narrow width = %d, want 2", narrow)
	}

	wide := codedIndexWidth(TypeDefOrRef, func(table int) uint32 { return 0x4000 })
	if wide != 4 {
		t.Errorf("wide width = %d, want 4", wide)
	}
}
