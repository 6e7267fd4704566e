// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import "github.com/dotnetmd/clrmeta/errs"

// Exception clause kinds, ECMA §II.25.4.6.
const (
	corILExceptionClauseNone    = 0x0000
	corILExceptionClauseFilter  = 0x0001
	corILExceptionClauseFinally = 0x0002
	corILExceptionClauseFault   = 0x0004
)

const (
	corILMethodTinyFormat = 0x02
	corILMethodFatFormat  = 0x03
	corILMethodMoreSects  = 0x08
	corILMethodInitLocals = 0x10
	corILMethodSectEHTable = 0x01
	corILMethodSectFatFormat = 0x40
	corILMethodSectMoreSects = 0x80
)

// methodBodyCodec resolves the StandAloneSig token a method body's locals
// blob was interned at, and applies Code's token fixups, before emitting
// the final tiny/fat method body.
type methodBodyCodec struct {
	resolver TokenResolver
}

// newMethodBodyCodec binds a TokenResolver for fixup resolution.
func newMethodBodyCodec(resolver TokenResolver) *methodBodyCodec {
	return &methodBodyCodec{resolver: resolver}
}

// applyFixups returns a copy of code with every TokenFixup's 4-byte operand
// overwritten with its object's resolved token.
func (c *methodBodyCodec) applyFixups(code []byte, fixups []TokenFixup) ([]byte, error) {
	out := append([]byte(nil), code...)
	for _, fx := range fixups {
		if fx.Offset+4 > uint32(len(out)) {
			return nil, errs.New(errs.InvalidCil, fx.Object, "fixup offset out of range")
		}
		tok, err := c.resolver.ResolveToken(fx.Object)
		if err != nil {
			return nil, err
		}
		v := uint32(tok)
		out[fx.Offset] = byte(v)
		out[fx.Offset+1] = byte(v >> 8)
		out[fx.Offset+2] = byte(v >> 16)
		out[fx.Offset+3] = byte(v >> 24)
	}
	return out, nil
}

// needsFatHeader reports whether body must use the fat method header
// format: tiny headers only cover code under 64 bytes, no locals, default
// max stack (8), and no exception handlers (ECMA §II.25.4.2).
func needsFatHeader(body *MethodBody, codeLen int) bool {
	return codeLen >= 64 || body.MaxStack > 8 || len(body.LocalsSignature) > 0 || len(body.ExceptionClauses) > 0
}

// Serialize produces the method body stream: header, code, and (if present)
// an exception-clause section, small or fat depending on the clause
// offsets and lengths, 4-byte aligned as ECMA §II.25.4 requires between
// sections.
func (c *methodBodyCodec) Serialize(body *MethodBody) ([]byte, error) {
	code, err := c.applyFixups(body.Code, body.Fixups)
	if err != nil {
		return nil, err
	}

	if !needsFatHeader(body, len(code)) {
		buf := make([]byte, 0, 1+len(code))
		buf = WriteUint8(buf, uint8(len(code)<<2)|corILMethodTinyFormat)
		buf = append(buf, code...)
		return buf, nil
	}

	var localVarSigTok uint32
	if len(body.LocalsSignature) > 0 {
		tok, err := c.resolver.ResolveToken(localsSignatureKey(body))
		if err != nil {
			return nil, err
		}
		localVarSigTok = uint32(tok)
	}

	flags := uint16(corILMethodFatFormat)
	if body.InitLocals {
		flags |= corILMethodInitLocals
	}
	hasClauses := len(body.ExceptionClauses) > 0
	if hasClauses {
		flags |= corILMethodMoreSects
	}

	buf := make([]byte, 0, 12+len(code))
	buf = WriteUint16(buf, flags|(3<<12)) // header size in dwords (3) packed into top nibble
	buf = WriteUint16(buf, body.MaxStack)
	buf = WriteUint32(buf, uint32(len(code)))
	buf = WriteUint32(buf, localVarSigTok)
	buf = append(buf, code...)

	if hasClauses {
		buf = pad4(buf)
		buf = c.serializeExceptionSection(buf, body.ExceptionClauses)
	}
	return buf, nil
}

// localsSignatureKey is the identity a directory.Builder memoizes a method
// body's local-variable StandAloneSig row under; each MethodBody gets its
// own signature row, so the body pointer itself is a stable, unique key.
func localsSignatureKey(body *MethodBody) any { return body }

func (c *methodBodyCodec) serializeExceptionSection(buf []byte, clauses []ExceptionClause) []byte {
	fat := false
	for _, cl := range clauses {
		if cl.TryOffset > 0xffff || cl.TryLength > 0xff || cl.HandlerOffset > 0xffff || cl.HandlerLength > 0xff {
			fat = true
			break
		}
	}

	kind := uint8(corILMethodSectEHTable)
	if fat {
		kind |= corILMethodSectFatFormat
	}

	if fat {
		dataLen := 4 + len(clauses)*24
		buf = WriteUint8(buf, kind)
		buf = append(buf, byte(dataLen), byte(dataLen>>8), byte(dataLen>>16))
		for _, cl := range clauses {
			buf = WriteUint32(buf, cl.Flags)
			buf = WriteUint32(buf, cl.TryOffset)
			buf = WriteUint32(buf, cl.TryLength)
			buf = WriteUint32(buf, cl.HandlerOffset)
			buf = WriteUint32(buf, cl.HandlerLength)
			buf = WriteUint32(buf, classTokenOrFilter(cl))
		}
		return buf
	}

	dataLen := 4 + len(clauses)*12
	buf = WriteUint8(buf, kind)
	buf = append(buf, byte(dataLen), 0, 0)
	for _, cl := range clauses {
		buf = WriteUint16(buf, uint16(cl.Flags))
		buf = WriteUint16(buf, uint16(cl.TryOffset))
		buf = WriteUint8(buf, uint8(cl.TryLength))
		buf = WriteUint16(buf, uint16(cl.HandlerOffset))
		buf = WriteUint8(buf, uint8(cl.HandlerLength))
		buf = WriteUint32(buf, classTokenOrFilter(cl))
	}
	return buf
}

func classTokenOrFilter(cl ExceptionClause) uint32 {
	if cl.Flags == corILExceptionClauseFilter {
		return cl.FilterOffset
	}
	return cl.ClassToken
}
