// Copyright 2024 The bootverify authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package image

import (
	"encoding/binary"
	"fmt"
)

const (
	// TrailerMagic is the sentinel opening the TLV trailer.
	TrailerMagic = 0x6907

	// trailerInfoSize is the encoded size of the trailer info structure:
	// magic u32, reserved u16, total length u16.
	trailerInfoSize = 8

	// recordHeaderSize is the encoded size of a TLV record header:
	// type u16, length u16.
	recordHeaderSize = 4
)

// TLV record types.
const (
	// TypeKeyHash records the SHA-256 (possibly truncated) of the DER
	// encoding of the public key a following signature was made with.
	TypeKeyHash uint16 = 0x01

	// TypeSHA256 records the image digest.
	TypeSHA256 uint16 = 0x10

	// Signature record types, one per supported algorithm.
	TypeRSA2048PSS uint16 = 0x20
	TypeECDSAP256  uint16 = 0x22
	TypeEd25519    uint16 = 0x24
)

// Record is one TLV record in the trailer. It locates the payload but
// does not hold it; payload bytes are read on demand via Payload.
type Record struct {
	Type uint16
	Len  uint16
	// Off is the image-relative offset of the record's payload.
	Off uint32
}

// Payload reads the record's payload bytes from src.
func (r Record) Payload(src Source) ([]byte, error) {
	return src.ReadAt(r.Off, uint32(r.Len))
}

// Trailer iterates over the TLV records appended after an image body.
// It is forward-only and reads one record header at a time.
type Trailer struct {
	src  Source
	next uint32
	end  uint32
}

// OpenTrailer reads and validates the trailer info structure at start,
// which must be the offset immediately after the image extent, and
// returns an iterator over the trailer's records.
func OpenTrailer(src Source, start uint32) (*Trailer, error) {
	buf, err := src.ReadAt(start, trailerInfoSize)
	if err != nil {
		return nil, err
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != TrailerMagic {
		return nil, &FormatError{What: fmt.Sprintf("bad trailer magic %#08x", magic)}
	}
	totalLen := binary.LittleEndian.Uint16(buf[6:8])
	if totalLen < trailerInfoSize {
		return nil, &FormatError{What: fmt.Sprintf("trailer length %d below info size", totalLen)}
	}
	end := uint64(start) + uint64(totalLen)
	if end > 0xffffffff {
		return nil, &FormatError{What: fmt.Sprintf("trailer end %#x overflows", end)}
	}

	return &Trailer{
		src:  src,
		next: start + uint32(trailerInfoSize),
		end:  uint32(end),
	}, nil
}

// End returns the image-relative offset one past the last trailer byte.
func (t *Trailer) End() uint32 {
	return t.end
}

// Next returns the next record, or ErrEnd once the trailer is exhausted.
// A record header or payload extending past the declared trailer end is a
// *FormatError; offset arithmetic that would wrap is rejected rather than
// wrapped.
func (t *Trailer) Next() (Record, error) {
	if t.next >= t.end {
		return Record{}, ErrEnd
	}
	if uint64(t.next)+recordHeaderSize > uint64(t.end) {
		return Record{}, &FormatError{What: fmt.Sprintf("record header at %#x extends past trailer end %#x", t.next, t.end)}
	}

	buf, err := t.src.ReadAt(t.next, recordHeaderSize)
	if err != nil {
		return Record{}, err
	}

	r := Record{
		Type: binary.LittleEndian.Uint16(buf[0:2]),
		Len:  binary.LittleEndian.Uint16(buf[2:4]),
		Off:  t.next + recordHeaderSize,
	}
	if uint64(r.Off)+uint64(r.Len) > uint64(t.end) {
		return Record{}, &FormatError{What: fmt.Sprintf("record payload [%#x, %#x) extends past trailer end %#x", r.Off, uint64(r.Off)+uint64(r.Len), t.end)}
	}

	t.next = r.Off + uint32(r.Len)
	return r, nil
}
