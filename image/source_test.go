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
	"bytes"
	"errors"
	"testing"

	"github.com/armoredboot/bootverify/image"
	"github.com/armoredboot/bootverify/storage"
	"github.com/armoredboot/bootverify/storage/testonly"
)

func TestMemSource(t *testing.T) {
	src := image.MemSource([]byte("0123456789"))

	got, err := src.ReadAt(3, 4)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "3456" {
		t.Fatalf("ReadAt = %q, want %q", got, "3456")
	}

	for _, test := range []struct{ off, n uint32 }{
		{10, 1},
		{0, 11},
		{0xffffffff, 0xffffffff}, // offset arithmetic must not wrap
	} {
		_, err := src.ReadAt(test.off, test.n)
		var ioErr *image.IoError
		if !errors.As(err, &ioErr) {
			t.Fatalf("ReadAt(%d, %d): %T (%v), want IoError", test.off, test.n, err, err)
		}
	}
}

func TestReaderAtSource(t *testing.T) {
	data := []byte("0123456789")
	src := image.NewReaderAtSource(bytes.NewReader(data), uint32(len(data)))

	got, err := src.ReadAt(8, 2)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "89" {
		t.Fatalf("ReadAt = %q, want %q", got, "89")
	}

	_, err = src.ReadAt(8, 3)
	var ioErr *image.IoError
	if !errors.As(err, &ioErr) {
		t.Fatalf("ReadAt past end: %T (%v), want IoError", err, err)
	}
}

func TestBlockSource(t *testing.T) {
	const blockSize = 16
	dev := testonly.NewMemDev(t, blockSize, 8)

	// Fill the area (blocks [2,6)) with a recognizable pattern.
	pattern := make([]byte, 4*blockSize)
	for i := range pattern {
		pattern[i] = byte(i)
	}
	if err := dev.Write(2*blockSize, pattern); err != nil {
		t.Fatalf("Write: %v", err)
	}

	src, err := image.NewBlockSource(dev, storage.Area{Start: 2, Blocks: 4})
	if err != nil {
		t.Fatalf("NewBlockSource: %v", err)
	}

	for _, test := range []struct{ off, n uint32 }{
		{0, blockSize},     // aligned single block
		{0, 4 * blockSize}, // whole area
		{3, 7},             // inside one block
		{blockSize - 2, 5}, // straddles a block boundary
		{4*blockSize - 1, 1},
	} {
		got, err := src.ReadAt(test.off, test.n)
		if err != nil {
			t.Fatalf("ReadAt(%d, %d): %v", test.off, test.n, err)
		}
		if want := pattern[test.off : test.off+test.n]; !bytes.Equal(got, want) {
			t.Fatalf("ReadAt(%d, %d) = %x, want %x", test.off, test.n, got, want)
		}
	}

	if _, err := src.ReadAt(4*blockSize-1, 2); err == nil {
		t.Fatal("ReadAt past area end succeeded")
	}
}

func TestBlockSourceDeviceFailure(t *testing.T) {
	dev := testonly.NewMemDev(t, 16, 8)
	dev.ReadErr = errors.New("device gone")

	src, err := image.NewBlockSource(dev, storage.Area{Start: 0, Blocks: 8})
	if err != nil {
		t.Fatalf("NewBlockSource: %v", err)
	}

	_, err = src.ReadAt(0, 16)
	var ioErr *image.IoError
	if !errors.As(err, &ioErr) {
		t.Fatalf("ReadAt: %T (%v), want IoError", err, err)
	}
}

func TestBlockSourceBadArea(t *testing.T) {
	dev := testonly.NewMemDev(t, 16, 8)

	if _, err := image.NewBlockSource(dev, storage.Area{Start: 4, Blocks: 5}); err == nil {
		t.Fatal("NewBlockSource with oversize area succeeded")
	}
	if _, err := image.NewBlockSource(dev, storage.Area{Start: 0, Blocks: 0}); err == nil {
		t.Fatal("NewBlockSource with empty area succeeded")
	}
}
