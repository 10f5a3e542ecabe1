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

package storage_test

import (
	"testing"

	"github.com/armoredboot/bootverify/storage"
	"github.com/armoredboot/bootverify/storage/testonly"
)

func TestAreaValidate(t *testing.T) {
	dev := testonly.NewMemDev(t, 64, 16)

	for _, test := range []struct {
		name    string
		area    storage.Area
		wantErr bool
	}{
		{
			name: "fits",
			area: storage.Area{Start: 0, Blocks: 16},
		}, {
			name: "inner window",
			area: storage.Area{Start: 4, Blocks: 8},
		}, {
			name:    "zero length",
			area:    storage.Area{Start: 4, Blocks: 0},
			wantErr: true,
		}, {
			name:    "past device end",
			area:    storage.Area{Start: 8, Blocks: 9},
			wantErr: true,
		}, {
			name:    "block range wraps",
			area:    storage.Area{Start: ^uint(0), Blocks: 2},
			wantErr: true,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := test.area.Validate(dev)
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("Got %v, wantErr %t", err, test.wantErr)
			}
		})
	}
}

func TestAreaBytes(t *testing.T) {
	dev := testonly.NewMemDev(t, 64, 16)
	a := storage.Area{Start: 2, Blocks: 4}
	if got, want := a.Bytes(dev), uint64(256); got != want {
		t.Fatalf("Bytes() = %d, want %d", got, want)
	}
}
