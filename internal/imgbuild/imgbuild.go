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

// Package imgbuild assembles firmware images in the on-flash format, for
// use by tests. It can emit well-formed signed images as well as images
// with deliberate defects.
package imgbuild

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/armoredboot/bootverify/image"
)

// Builder accumulates an image and its trailer records. The zero value
// plus a Body is usable; defect knobs are plain fields.
type Builder struct {
	Body    []byte
	Version image.Version
	Flags   uint32
	// Seed, when non-empty, is hashed ahead of the image bytes, as a
	// loader image would do for a dependent image.
	Seed []byte

	// HeaderMagic and TrailerMagic override the format sentinels when
	// non-zero, to build corrupt images.
	HeaderMagic  uint32
	TrailerMagic uint32
	// TrailerLenDelta is added to the declared trailer total length.
	TrailerLenDelta int

	records []byte
}

// New returns a Builder over the given image body.
func New(body []byte) *Builder {
	return &Builder{
		Body:    body,
		Version: image.Version{Major: 1},
	}
}

// Header returns the encoded image header.
func (b *Builder) Header() []byte {
	magic := uint32(image.HeaderMagic)
	if b.HeaderMagic != 0 {
		magic = b.HeaderMagic
	}
	hdr := make([]byte, image.HeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	// load address left zero
	binary.LittleEndian.PutUint16(hdr[8:10], image.HeaderSize)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(b.Body)))
	binary.LittleEndian.PutUint32(hdr[16:20], b.Flags)
	hdr[20] = b.Version.Major
	hdr[21] = b.Version.Minor
	binary.LittleEndian.PutUint16(hdr[22:24], b.Version.Revision)
	binary.LittleEndian.PutUint32(hdr[24:28], b.Version.Build)
	return hdr
}

// Digest returns the image digest a correct validator would compute.
func (b *Builder) Digest() [sha256.Size]byte {
	h := sha256.New()
	if len(b.Seed) > 0 {
		h.Write(b.Seed)
	}
	h.Write(b.Header())
	h.Write(b.Body)
	var d [sha256.Size]byte
	copy(d[:], h.Sum(nil))
	return d
}

// AddRecord appends a TLV record with the given type and payload.
func (b *Builder) AddRecord(typ uint16, payload []byte) {
	var rh [4]byte
	binary.LittleEndian.PutUint16(rh[0:2], typ)
	binary.LittleEndian.PutUint16(rh[2:4], uint16(len(payload)))
	b.records = append(b.records, rh[:]...)
	b.records = append(b.records, payload...)
}

// AddDigest appends the digest record.
func (b *Builder) AddDigest() {
	d := b.Digest()
	b.AddRecord(image.TypeSHA256, d[:])
}

// AddKeyHash appends a keyhash record for the given DER-encoded public
// key.
func (b *Builder) AddKeyHash(keyDER []byte) {
	h := sha256.Sum256(keyDER)
	b.AddRecord(image.TypeKeyHash, h[:])
}

// AddSignature signs the image digest with the given signer and appends
// the signature record matching the signer's key type.
func (b *Builder) AddSignature(t *testing.T, signer crypto.Signer) {
	t.Helper()
	d := b.Digest()

	var (
		typ uint16
		sig []byte
		err error
	)
	switch signer.Public().(type) {
	case *rsa.PublicKey:
		typ = image.TypeRSA2048PSS
		opts := &rsa.PSSOptions{SaltLength: sha256.Size, Hash: crypto.SHA256}
		sig, err = signer.Sign(rand.Reader, d[:], opts)
	case *ecdsa.PublicKey:
		typ = image.TypeECDSAP256
		sig, err = signer.Sign(rand.Reader, d[:], crypto.SHA256)
	case ed25519.PublicKey:
		typ = image.TypeEd25519
		sig, err = signer.Sign(rand.Reader, d[:], crypto.Hash(0))
	default:
		t.Fatalf("unsupported signer type %T", signer.Public())
	}
	if err != nil {
		t.Fatalf("failed to sign digest: %v", err)
	}
	b.AddRecord(typ, sig)
}

// Bytes assembles the full image: header, body, trailer info, records.
func (b *Builder) Bytes() []byte {
	magic := uint32(image.TrailerMagic)
	if b.TrailerMagic != 0 {
		magic = b.TrailerMagic
	}
	totalLen := 8 + len(b.records) + b.TrailerLenDelta

	info := make([]byte, 8)
	binary.LittleEndian.PutUint32(info[0:4], magic)
	binary.LittleEndian.PutUint16(info[6:8], uint16(totalLen))

	img := b.Header()
	img = append(img, b.Body...)
	img = append(img, info...)
	img = append(img, b.records...)
	return img
}

// Signer generates a throwaway signing key of the kind named by the TLV
// signature record type, returning the signer and the DER encoding of
// its public key.
func Signer(t *testing.T, sigType uint16) (crypto.Signer, []byte) {
	t.Helper()

	var (
		signer crypto.Signer
		err    error
	)
	switch sigType {
	case image.TypeRSA2048PSS:
		signer, err = rsa.GenerateKey(rand.Reader, 2048)
	case image.TypeECDSAP256:
		signer, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case image.TypeEd25519:
		_, signer, err = ed25519.GenerateKey(rand.Reader)
	default:
		t.Fatalf("unsupported signature record type %#x", sigType)
	}
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	der, err := x509.MarshalPKIXPublicKey(signer.Public())
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	return signer, der
}

// String renders builder state for test logs.
func (b *Builder) String() string {
	return fmt.Sprintf("image body=%d records=%d seed=%d", len(b.Body), len(b.records), len(b.Seed))
}
