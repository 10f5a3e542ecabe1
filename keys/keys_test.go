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

package keys_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armoredboot/bootverify/image"
	"github.com/armoredboot/bootverify/internal/imgbuild"
	"github.com/armoredboot/bootverify/keys"
)

func TestMatch(t *testing.T) {
	_, derA := imgbuild.Signer(t, image.TypeEd25519)
	_, derB := imgbuild.Signer(t, image.TypeEd25519)
	_, derOther := imgbuild.Signer(t, image.TypeEd25519)

	table, err := keys.NewTable([][]byte{derA, derB})
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	hashA := sha256.Sum256(derA)
	hashB := sha256.Sum256(derB)
	hashOther := sha256.Sum256(derOther)

	idx, ok := table.Match(hashA[:])
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = table.Match(hashB[:])
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	// Unknown keys are "no match", not an error.
	_, ok = table.Match(hashOther[:])
	assert.False(t, ok)

	// Truncated keyhashes compare over their given length.
	idx, ok = table.Match(hashB[:8])
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	// A zero-length keyhash matches the first key; the caller bounds
	// lengths, the table just compares.
	idx, ok = table.Match(nil)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestNewTableRejectsEmptyKey(t *testing.T) {
	_, err := keys.NewTable([][]byte{{}})
	assert.Error(t, err)
}

func TestTableKeyIsCopied(t *testing.T) {
	der := []byte{1, 2, 3}
	table, err := keys.NewTable([][]byte{der})
	require.NoError(t, err)

	der[0] = 99
	assert.Equal(t, []byte{1, 2, 3}, table.Key(0))
}
