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

package verify

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/armoredboot/bootverify/image"
)

// Alg selects the signature algorithm a Verifier accepts. Exactly one
// algorithm is active per Verifier; signature records of any other type
// are passed over like unknown records.
type Alg int

const (
	AlgRSA2048PSS Alg = iota
	AlgECDSAP256
	AlgEd25519
)

// maxSigLen bounds the signature payloads we are willing to read,
// independent of per-algorithm expectations.
const maxSigLen = 512

const (
	rsa2048SigLen = 256
	ed25519SigLen = ed25519.SignatureSize

	// DER ECDSA-Sig-Value over P-256: SEQUENCE of two INTEGERs, at most
	// 33 bytes each.
	ecdsaP256SigMin = 8
	ecdsaP256SigMax = 72
)

func (a Alg) String() string {
	switch a {
	case AlgRSA2048PSS:
		return "rsa2048-pss"
	case AlgECDSAP256:
		return "ecdsa-p256"
	case AlgEd25519:
		return "ed25519"
	}
	return fmt.Sprintf("unknown alg %d", int(a))
}

// ParseAlg maps an algorithm name, as used by the CLI, to an Alg.
func ParseAlg(s string) (Alg, error) {
	switch s {
	case "rsa2048-pss":
		return AlgRSA2048PSS, nil
	case "ecdsa-p256":
		return AlgECDSAP256, nil
	case "ed25519":
		return AlgEd25519, nil
	}
	return 0, fmt.Errorf("unknown signature algorithm %q", s)
}

// recordType returns the TLV record type carrying signatures made with
// this algorithm.
func (a Alg) recordType() uint16 {
	switch a {
	case AlgRSA2048PSS:
		return image.TypeRSA2048PSS
	case AlgECDSAP256:
		return image.TypeECDSAP256
	case AlgEd25519:
		return image.TypeEd25519
	}
	return 0
}

// sigLenOK is the pre-verification length gate: a signature record whose
// payload length cannot be valid for the algorithm is malformed and must
// be rejected without touching key material.
func (a Alg) sigLenOK(n int) bool {
	if n > maxSigLen {
		return false
	}
	switch a {
	case AlgRSA2048PSS:
		return n == rsa2048SigLen
	case AlgECDSAP256:
		return n >= ecdsaP256SigMin && n <= ecdsaP256SigMax
	case AlgEd25519:
		return n == ed25519SigLen
	}
	return false
}

// sigVerify is a seam so tests can observe signature primitive
// invocations.
var sigVerify = verifySig

// verifySig checks sig over digest with the DER-encoded public key. A bad
// signature returns (false, nil); an error is only returned when the
// trusted key itself cannot be used with the configured algorithm.
func verifySig(alg Alg, digest []byte, sig []byte, keyDER []byte) (bool, error) {
	pub, err := x509.ParsePKIXPublicKey(keyDER)
	if err != nil {
		return false, fmt.Errorf("unparseable trusted key: %v", err)
	}

	switch alg {
	case AlgRSA2048PSS:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return false, fmt.Errorf("trusted key is %T, want RSA", pub)
		}
		if rsaPub.Size() != rsa2048SigLen {
			return false, fmt.Errorf("trusted RSA key has %d byte modulus, want %d", rsaPub.Size(), rsa2048SigLen)
		}
		opts := &rsa.PSSOptions{SaltLength: len(digest), Hash: crypto.SHA256}
		return rsa.VerifyPSS(rsaPub, crypto.SHA256, digest, sig, opts) == nil, nil

	case AlgECDSAP256:
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return false, fmt.Errorf("trusted key is %T, want ECDSA", pub)
		}
		r, s, ok := parseECDSASig(sig)
		if !ok {
			return false, nil
		}
		return ecdsa.Verify(ecPub, digest, r, s), nil

	case AlgEd25519:
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return false, fmt.Errorf("trusted key is %T, want Ed25519", pub)
		}
		return ed25519.Verify(edPub, digest, sig), nil
	}

	return false, fmt.Errorf("unknown signature algorithm %d", int(alg))
}

// parseECDSASig decodes a DER ECDSA-Sig-Value. Strict parsing: trailing
// bytes or non-minimal encodings fail, they never reach the curve math.
func parseECDSASig(sig []byte) (r, s *big.Int, ok bool) {
	r, s = new(big.Int), new(big.Int)
	input := cryptobyte.String(sig)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, cryptobyte_asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, nil, false
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return nil, nil, false
	}
	return r, s, true
}
