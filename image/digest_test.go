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

package image_test

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	"github.com/armoredboot/bootverify/image"
	"github.com/armoredboot/bootverify/internal/imgbuild"
)

func TestComputeDigest(t *testing.T) {
	// Sizes chosen to exercise aligned, partial-final-block and
	// sub-block extents.
	for _, bodyLen := range []int{0, 1, 100, 4064, 4065, 10000} {
		t.Run(fmt.Sprintf("body %d", bodyLen), func(t *testing.T) {
			b := imgbuild.New(make([]byte, bodyLen))
			for i := range b.Body {
				b.Body[i] = byte(i)
			}
			src := image.MemSource(append(b.Header(), b.Body...))
			hdr, err := image.ReadHeader(src)
			if err != nil {
				t.Fatalf("ReadHeader: %v", err)
			}

			got, err := image.ComputeDigest(src, hdr, nil, 0)
			if err != nil {
				t.Fatalf("ComputeDigest: %v", err)
			}
			want := sha256.Sum256(src)
			if got != want {
				t.Fatalf("ComputeDigest = %x, want %x", got, want)
			}
		})
	}
}

func TestComputeDigestSeed(t *testing.T) {
	b := imgbuild.New([]byte("shared body"))
	src := image.MemSource(append(b.Header(), b.Body...))
	hdr, err := image.ReadHeader(src)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	plain, err := image.ComputeDigest(src, hdr, nil, 0)
	if err != nil {
		t.Fatalf("ComputeDigest: %v", err)
	}
	seeded, err := image.ComputeDigest(src, hdr, []byte("loader content"), 0)
	if err != nil {
		t.Fatalf("ComputeDigest with seed: %v", err)
	}
	if plain == seeded {
		t.Fatal("seeded digest equals unseeded digest")
	}

	want := sha256.New()
	want.Write([]byte("loader content"))
	want.Write(src)
	if fmt.Sprintf("%x", seeded) != fmt.Sprintf("%x", want.Sum(nil)) {
		t.Fatal("seeded digest does not bind seed ahead of image bytes")
	}
}

func TestComputeDigestBlockSizeIrrelevant(t *testing.T) {
	b := imgbuild.New(make([]byte, 5000))
	src := image.MemSource(append(b.Header(), b.Body...))
	hdr, err := image.ReadHeader(src)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	base, err := image.ComputeDigest(src, hdr, nil, 0)
	if err != nil {
		t.Fatalf("ComputeDigest: %v", err)
	}
	for _, bs := range []uint32{1, 7, 512, 1 << 20} {
		got, err := image.ComputeDigest(src, hdr, nil, bs)
		if err != nil {
			t.Fatalf("ComputeDigest(block size %d): %v", bs, err)
		}
		if got != base {
			t.Fatalf("ComputeDigest(block size %d) = %x, want %x", bs, got, base)
		}
	}
}

// orderedSource fails the test if reads are not strictly increasing and
// contiguous.
type orderedSource struct {
	t    *testing.T
	src  image.Source
	next uint32
}

func (o *orderedSource) ReadAt(off, n uint32) ([]byte, error) {
	o.t.Helper()
	if off != o.next {
		o.t.Fatalf("read at %d, want %d", off, o.next)
	}
	o.next = off + n
	return o.src.ReadAt(off, n)
}

func TestComputeDigestReadOrder(t *testing.T) {
	b := imgbuild.New(make([]byte, 9000))
	mem := image.MemSource(append(b.Header(), b.Body...))
	hdr, err := image.ReadHeader(mem)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	if _, err := image.ComputeDigest(&orderedSource{t: t, src: mem}, hdr, nil, 0); err != nil {
		t.Fatalf("ComputeDigest: %v", err)
	}
}

func TestComputeDigestReadFailure(t *testing.T) {
	b := imgbuild.New(make([]byte, 100))
	// Source shorter than the declared extent.
	src := image.MemSource(b.Header())
	hdr, err := image.ReadHeader(src)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	_, err = image.ComputeDigest(src, hdr, nil, 0)
	var ioErr *image.IoError
	if !errors.As(err, &ioErr) {
		t.Fatalf("ComputeDigest: %T (%v), want IoError", err, err)
	}
}
