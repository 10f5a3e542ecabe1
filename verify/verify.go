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

// Package verify decides whether a firmware image may be executed: it
// computes the image digest, walks the TLV trailer, and accepts the image
// only if the embedded digest matches and at least one signature verifies
// against a trusted key.
package verify

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/armoredboot/bootverify/image"
	"github.com/armoredboot/bootverify/keys"
)

// Result is the outcome of validating one image.
type Result struct {
	// Accepted reports whether the image may be executed.
	Accepted bool
	// Digest is the computed image digest. It is populated whenever the
	// digest computation succeeded, including on rejection, so callers
	// can log or report it.
	Digest [image.DigestSize]byte
}

// Verifier validates firmware images against a table of trusted keys.
// A Verifier is immutable and safe for concurrent use; each Validate
// call carries its own state.
type Verifier struct {
	table      *keys.Table
	alg        Alg
	requireSig bool
	blockSize  uint32
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithAlg selects the signature algorithm. Default is AlgRSA2048PSS.
func WithAlg(a Alg) Option {
	return func(v *Verifier) { v.alg = a }
}

// WithSignatureRequired controls whether a verified signature is needed
// for acceptance. When false, a matching digest record alone accepts the
// image. Default is true.
func WithSignatureRequired(required bool) Option {
	return func(v *Verifier) { v.requireSig = required }
}

// WithBlockSize overrides the read granularity of the digest computation.
func WithBlockSize(n uint32) Option {
	return func(v *Verifier) { v.blockSize = n }
}

// New returns a Verifier trusting the keys in table.
func New(table *keys.Table, opts ...Option) *Verifier {
	v := &Verifier{
		table:      table,
		alg:        AlgRSA2048PSS,
		requireSig: true,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// pending tracks the key candidate selected by the most recent keyhash
// record. The zero value is "no candidate".
type pending struct {
	idx int
	ok  bool
}

// Validate checks the integrity and authenticity of the image described
// by hdr. seed, when non-empty, is hashed before the image bytes.
//
// The returned error distinguishes failed reads (*image.IoError) and
// malformed images (*image.FormatError) for the caller's logging; in
// every error case Result.Accepted is false. A plain rejection (digest
// mismatch, no verifying signature) returns a nil error.
func (v *Verifier) Validate(src image.Source, hdr image.Header, seed []byte) (Result, error) {
	var res Result

	digest, err := image.ComputeDigest(src, hdr, seed, v.blockSize)
	if err != nil {
		return res, err
	}
	res.Digest = digest

	tr, err := image.OpenTrailer(src, hdr.ImageExtent())
	if err != nil {
		return res, err
	}

	var (
		digestOK bool
		sigOK    bool
		key      pending
	)
	sigType := v.alg.recordType()

	for {
		rec, err := tr.Next()
		if errors.Is(err, image.ErrEnd) {
			break
		}
		if err != nil {
			return res, err
		}

		switch rec.Type {
		case image.TypeSHA256:
			if rec.Len != image.DigestSize {
				return res, &image.FormatError{What: fmt.Sprintf("digest record has %d bytes, want %d", rec.Len, image.DigestSize)}
			}
			want, err := rec.Payload(src)
			if err != nil {
				return res, err
			}
			if subtle.ConstantTimeCompare(want, digest[:]) != 1 {
				klog.V(2).Infof("digest record mismatch, rejecting image")
				return res, nil
			}
			digestOK = true
			klog.V(2).Infof("digest record matches")

		case image.TypeKeyHash:
			if rec.Len > keys.HashSize {
				return res, &image.FormatError{What: fmt.Sprintf("keyhash record has %d bytes, max %d", rec.Len, keys.HashSize)}
			}
			keyhash, err := rec.Payload(src)
			if err != nil {
				return res, err
			}
			// An unknown key is acceptable: there can be multiple
			// signatures, each preceded by a keyhash.
			key.idx, key.ok = v.table.Match(keyhash)
			klog.V(2).Infof("keyhash record: matched=%t", key.ok)

		case sigType:
			if !key.ok {
				klog.V(2).Infof("signature record without matched key, skipping")
				continue
			}
			idx := key.idx
			// A signature record always consumes the candidate.
			key = pending{}

			if !v.alg.sigLenOK(int(rec.Len)) {
				return res, &image.FormatError{What: fmt.Sprintf("%s signature record has %d bytes", v.alg, rec.Len)}
			}
			sig, err := rec.Payload(src)
			if err != nil {
				return res, err
			}
			ok, err := sigVerify(v.alg, digest[:], sig, v.table.Key(idx))
			if err != nil {
				return res, err
			}
			if ok {
				sigOK = true
			}
			klog.V(2).Infof("signature record with key %d: verified=%t", idx, ok)

		default:
			klog.V(2).Infof("skipping record type %#x (%d bytes)", rec.Type, rec.Len)
		}
	}

	res.Accepted = digestOK && (sigOK || !v.requireSig)
	return res, nil
}

// ValidateMem validates an image that has already been relocated into
// memory, header first. The header is parsed from the buffer itself.
func (v *Verifier) ValidateMem(img []byte, seed []byte) (Result, error) {
	src := image.MemSource(img)
	hdr, err := image.ReadHeader(src)
	if err != nil {
		return Result{}, err
	}
	return v.Validate(src, hdr, seed)
}
