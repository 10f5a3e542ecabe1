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

// Package keys holds the table of trusted firmware signing keys and the
// keyhash lookup used to select one during image validation.
//
// Keys are stored as DER-encoded PKIX SubjectPublicKeyInfo structures,
// which is also the encoding covered by the keyhash records embedded in
// image trailers.
package keys

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

// HashSize is the size of a full keyhash.
const HashSize = sha256.Size

// Table is an immutable set of trusted public keys, indexed by position.
// It is safe for concurrent use once constructed.
type Table struct {
	keys   [][]byte
	hashes [][HashSize]byte
}

// NewTable builds a key table from DER-encoded public keys. The keyhash
// of each entry is computed once, up front.
func NewTable(der [][]byte) (*Table, error) {
	t := &Table{}
	for i, k := range der {
		if len(k) == 0 {
			return nil, fmt.Errorf("key %d is empty", i)
		}
		t.keys = append(t.keys, append([]byte(nil), k...))
		t.hashes = append(t.hashes, sha256.Sum256(k))
	}
	return t, nil
}

// Len returns the number of keys in the table.
func (t *Table) Len() int {
	return len(t.keys)
}

// Key returns the DER encoding of the key at index i.
func (t *Table) Key(i int) []byte {
	return t.keys[i]
}

// Match scans the table for a key whose hash starts with keyhash and
// returns its index. A missing key is expected, not an error: trailers
// may carry keyhash records for keys this verifier does not trust.
//
// keyhash must not be longer than HashSize; the caller bounds it.
func (t *Table) Match(keyhash []byte) (int, bool) {
	for i := range t.hashes {
		if bytes.Equal(t.hashes[i][:len(keyhash)], keyhash) {
			return i, true
		}
	}
	return 0, false
}
