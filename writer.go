// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import (
	"io"

	"github.com/orcaman/writerseeker"
)

// metadataVersionString is the runtime version banner every CLI metadata
// root carries (ECMA §II.24.2.1); real assemblies built against distinct
// CLR versions use different strings here, but this builder targets the
// widest-compatibility value the way a from-scratch emitter would.
const metadataVersionString = "v4.0.30319"

const (
	metadataSignature = 0x424a5342 // "BSJB"
	streamNameTables  = "#~"
	streamNameStrings = "#Strings"
	streamNameUS      = "#US"
	streamNameGUID    = "#GUID"
	streamNameBlob    = "#Blob"
)

// Directory is the finished, self-contained CLI metadata directory: the
// MetadataHeader plus its five streams, serialized and ready to place into
// a PE file's .text section or write out standalone.
type Directory struct {
	Bytes           []byte
	Flags           uint32
	EntryPointToken Token
	ResourcesData   []byte
	MethodBodies    map[Token][]byte
}

// WriteTo implements io.WriterTo, writing the serialized directory bytes.
func (d *Directory) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.Bytes)
	return int64(n), err
}

// BufferedWriter returns a seekable in-memory sink pre-loaded with the
// directory bytes, for callers that want to append a PE section or patch
// RVAs with io.Seeker semantics instead of a plain io.Writer.
func (d *Directory) BufferedWriter() (*writerseeker.WriterSeeker, error) {
	ws := &writerseeker.WriterSeeker{}
	if _, err := ws.Write(d.Bytes); err != nil {
		return nil, err
	}
	return ws, nil
}

// streamEntry is one #~/#Strings/#US/#GUID/#Blob record: an offset/size
// header followed by a NUL-padded name, ECMA §II.24.2.2.
type streamEntry struct {
	name string
	data []byte
}

// buildMetadataBlob assembles the BSJB MetadataHeader and stream headers
// around the already-serialized stream payloads (ECMA §II.24.2.1).
func buildMetadataBlob(tablesStream, stringsStream, usStream, guidStream, blobStream []byte) []byte {
	streams := []streamEntry{
		{streamNameTables, tablesStream},
	}
	if len(stringsStream) > 0 {
		streams = append(streams, streamEntry{streamNameStrings, stringsStream})
	}
	if len(usStream) > 0 {
		streams = append(streams, streamEntry{streamNameUS, usStream})
	}
	if len(guidStream) > 0 {
		streams = append(streams, streamEntry{streamNameGUID, guidStream})
	}
	if len(blobStream) > 0 {
		streams = append(streams, streamEntry{streamNameBlob, blobStream})
	}

	var header []byte
	header = WriteUint32(header, metadataSignature)
	header = WriteUint16(header, 1) // MajorVersion
	header = WriteUint16(header, 1) // MinorVersion
	header = WriteUint32(header, 0) // Reserved
	verBytes := pad4(append([]byte(metadataVersionString), 0))
	header = WriteUint32(header, uint32(len(verBytes)))
	header = append(header, verBytes...)
	header = WriteUint16(header, 0) // Flags
	header = WriteUint16(header, uint16(len(streams)))

	// Stream headers reference payload offsets relative to the start of
	// this MetadataHeader, so the header section's own final length must
	// be known before any offset can be written.
	headerLen := len(header)
	for _, s := range streams {
		nameBytes := pad4(append([]byte(s.name), 0))
		headerLen += 8 + len(nameBytes)
	}

	out := append([]byte(nil), header...)
	offset := uint32(headerLen)
	for _, s := range streams {
		out = WriteUint32(out, offset)
		out = WriteUint32(out, uint32(len(s.data)))
		nameBytes := pad4(append([]byte(s.name), 0))
		out = append(out, nameBytes...)
		offset += uint32(len(s.data))
	}
	for _, s := range streams {
		out = append(out, s.data...)
	}
	return out
}
