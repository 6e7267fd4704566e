// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import (
	"bytes"

	"github.com/klauspost/compress/gzip"

	"github.com/dotnetmd/clrmeta/errs"
)

// ResourceCompressedFlag marks a ManifestResource row whose data was
// written through AddManagedResourceCompressed: not an ECMA-335 flag bit,
// but a builder-level convention so a reader that recognizes it can gunzip
// the entry before handing it to a consumer. A reader that doesn't
// recognize it still gets back a structurally valid, merely compressed,
// resource blob.
const ResourceCompressedFlag = 0x00000100

// ResourceBuffer is the managed-resource data section every ManifestResource
// row with a nil Implementation points into: a flat sequence of [4-byte
// little-endian length][data] entries, addressed by byte offset from the
// start of the section.
type ResourceBuffer struct {
	buf []byte
}

// NewResourceBuffer returns an empty ResourceBuffer.
func NewResourceBuffer() *ResourceBuffer { return &ResourceBuffer{} }

// Add appends data as a new entry and returns its byte offset.
func (r *ResourceBuffer) Add(data []byte) uint32 {
	offset := uint32(len(r.buf))
	r.buf = WriteUint32(r.buf, uint32(len(data)))
	r.buf = append(r.buf, data...)
	return offset
}

// AddCompressed gzip-compresses data and appends it as a new entry,
// returning its byte offset. Callers should OR ResourceCompressedFlag into
// the owning ManifestResourceTableRow.Flags.
func (r *ResourceBuffer) AddCompressed(data []byte) (uint32, error) {
	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(data); err != nil {
		return 0, errs.Wrap(err, errs.InvalidSignature, "compressing managed resource")
	}
	if err := zw.Close(); err != nil {
		return 0, errs.Wrap(err, errs.InvalidSignature, "closing gzip resource writer")
	}
	return r.Add(out.Bytes()), nil
}

// Size returns the current byte length of the resource section.
func (r *ResourceBuffer) Size() uint32 { return uint32(len(r.buf)) }

// Flush returns the section's bytes, padded to a 4-byte boundary.
func (r *ResourceBuffer) Flush() []byte { return pad4(r.buf) }
