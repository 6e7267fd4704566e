// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "testing"

func TestMethodBodyTinyFormat(t *testing.T) {
	codec := newMethodBodyCodec(fakeResolver{})
	body := &MethodBody{MaxStack: 1, Code: []byte{0x00, 0x2a}} // nop, ret

	out, err := codec.Serialize(body)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("tiny body length = %d, want 3", len(out))
	}
	if out[0] != uint8(len(body.Code)<<2)|corILMethodTinyFormat {
		t.Errorf("tiny header byte = 0x%02x", out[0])
	}
	if out[1] != 0x00 || out[2] != 0x2a {
		t.Errorf("tiny body code = % x, want [00 2a]", out[1:])
	}
}

func TestMethodBodyFatFormatNoLocals(t *testing.T) {
	codec := newMethodBodyCodec(fakeResolver{})
	code := make([]byte, 70) // force fat format via length alone
	for i := range code {
		code[i] = 0x2a
	}
	body := &MethodBody{MaxStack: 4, Code: code}

	out, err := codec.Serialize(body)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(out) != 12+len(code) {
		t.Fatalf("fat body length = %d, want %d", len(out), 12+len(code))
	}
	flags := uint16(out[0]) | uint16(out[1])<<8
	if flags&0x0f != corILMethodFatFormat {
		t.Errorf("fat header format nibble = 0x%x", flags&0x0f)
	}
}

func TestMethodBodyTokenFixup(t *testing.T) {
	target := &MethodDefinition{}
	resolver := fakeResolver{target: NewToken(MethodDef, 0x55)}
	codec := newMethodBodyCodec(resolver)

	code := []byte{0x28, 0x00, 0x00, 0x00, 0x00, 0x2a} // call <token>, ret
	body := &MethodBody{
		MaxStack: 8,
		Code:     code,
		Fixups:   []TokenFixup{{Offset: 1, Object: target}},
	}

	out, err := codec.Serialize(body)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	// Tiny format: 1-byte header then code.
	got := uint32(out[2]) | uint32(out[3])<<8 | uint32(out[4])<<16 | uint32(out[5])<<24
	want := uint32(NewToken(MethodDef, 0x55))
	if got != want {
		t.Errorf("fixup token = 0x%08x, want 0x%08x", got, want)
	}
}

func TestMethodBodyExceptionClauseSmallForm(t *testing.T) {
	codec := newMethodBodyCodec(fakeResolver{})
	body := &MethodBody{
		MaxStack: 2,
		Code:     []byte{0x2a},
		ExceptionClauses: []ExceptionClause{
			{Flags: corILExceptionClauseFinally, TryOffset: 0, TryLength: 1, HandlerOffset: 2, HandlerLength: 3},
		},
	}
	out, err := codec.Serialize(body)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(out) <= 12+len(body.Code) {
		t.Fatal("expected exception section bytes appended after the fat header and code")
	}
	// 12-byte fat header + 1 code byte, padded to 16, then a 4-byte small
	// section header and one 12-byte small clause.
	if len(out) != 32 {
		t.Fatalf("len(out) = %d, want 32 (small exception section)", len(out))
	}
	if out[16] != corILMethodSectEHTable {
		t.Errorf("section kind = %#x, want %#x (small EH table, no fat flag)", out[16], corILMethodSectEHTable)
	}
}
