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

// Package image implements the on-flash firmware image format: the fixed
// header at the image base, the TLV trailer appended after the image body,
// and the digest computed over both header and body.
//
// All multi-byte fields are little-endian.
package image

import (
	"encoding/binary"
	"fmt"

	"github.com/coreos/go-semver/semver"
)

const (
	// HeaderMagic is the sentinel at offset 0 of every image.
	HeaderMagic = 0x96f3b83d

	// HeaderSize is the size of the fixed header structure. Images may
	// declare a larger header (the gap is padding, still hashed).
	HeaderSize = 32
)

// Image header flags. Informational; none of them alter validation.
const (
	FlagPIC         = 0x00000001
	FlagNonBootable = 0x00000002
	FlagEncrypted   = 0x00000004
)

// Version is the build version carried in the image header.
type Version struct {
	Major    uint8
	Minor    uint8
	Revision uint16
	Build    uint32
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d+%d", v.Major, v.Minor, v.Revision, v.Build)
}

// Semver returns the header version as a semantic version, with the build
// number in the metadata position.
func (v Version) Semver() semver.Version {
	return semver.Version{
		Major:    int64(v.Major),
		Minor:    int64(v.Minor),
		Patch:    int64(v.Revision),
		Metadata: fmt.Sprintf("%d", v.Build),
	}
}

// Header is the fixed structure at the base of an image. It defines the
// byte extent covered by the image digest: HdrSize+ImgSize bytes from the
// image base.
type Header struct {
	Magic    uint32
	LoadAddr uint32
	HdrSize  uint16
	ImgSize  uint32
	Flags    uint32
	Version  Version
}

// ImageExtent returns the number of bytes covered by the image digest,
// i.e. the offset at which the TLV trailer begins.
func (h Header) ImageExtent() uint32 {
	return uint32(h.HdrSize) + h.ImgSize
}

// NonBootable reports whether the image is marked as non-bootable.
func (h Header) NonBootable() bool {
	return h.Flags&FlagNonBootable != 0
}

// Encrypted reports whether the image body is marked as encrypted.
func (h Header) Encrypted() bool {
	return h.Flags&FlagEncrypted != 0
}

// ParseHeader decodes and sanity-checks an image header from buf.
func ParseHeader(buf []byte) (Header, error) {
	var h Header

	if len(buf) < HeaderSize {
		return h, &FormatError{What: fmt.Sprintf("header truncated: %d bytes", len(buf))}
	}

	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	if h.Magic != HeaderMagic {
		return h, &FormatError{What: fmt.Sprintf("bad header magic %#08x", h.Magic)}
	}

	h.LoadAddr = binary.LittleEndian.Uint32(buf[4:8])
	h.HdrSize = binary.LittleEndian.Uint16(buf[8:10])
	// buf[10:12] is reserved padding
	h.ImgSize = binary.LittleEndian.Uint32(buf[12:16])
	h.Flags = binary.LittleEndian.Uint32(buf[16:20])
	h.Version.Major = buf[20]
	h.Version.Minor = buf[21]
	h.Version.Revision = binary.LittleEndian.Uint16(buf[22:24])
	h.Version.Build = binary.LittleEndian.Uint32(buf[24:28])
	// buf[28:32] is reserved padding

	if h.HdrSize < HeaderSize {
		return h, &FormatError{What: fmt.Sprintf("header size %d below structure size %d", h.HdrSize, HeaderSize)}
	}
	// The trailer offset must be representable.
	if uint64(h.HdrSize)+uint64(h.ImgSize) > 0xffffffff {
		return h, &FormatError{What: fmt.Sprintf("image extent %d+%d overflows", h.HdrSize, h.ImgSize)}
	}

	return h, nil
}

// ReadHeader reads and decodes the image header from the start of src.
func ReadHeader(src Source) (Header, error) {
	buf, err := src.ReadAt(0, HeaderSize)
	if err != nil {
		return Header{}, err
	}
	return ParseHeader(buf)
}
