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

// Package testonly provides support for storage tests.
package testonly

import (
	"fmt"
	"testing"
)

// MemDev is a simple in-memory block device.
type MemDev struct {
	blockSize uint
	storage   []byte

	// ReadErr, when non-nil, is returned by every ReadBlocks call.
	// It simulates a failing device.
	ReadErr error

	// OnBlockRead, if set, is called before each block is read.
	OnBlockRead func(lba uint)
}

// NewMemDev creates a new in-memory block device.
func NewMemDev(t *testing.T, blockSize, numBlocks uint) *MemDev {
	t.Helper()
	return &MemDev{
		blockSize: blockSize,
		storage:   make([]byte, blockSize*numBlocks),
	}
}

// BlockSize returns the block size of the underlying storage system.
func (md *MemDev) BlockSize() uint {
	return md.blockSize
}

// Blocks returns the number of blocks the device holds.
func (md *MemDev) Blocks() uint {
	return uint(len(md.storage)) / md.blockSize
}

// ReadBlocks reads len(b) bytes into b from contiguous storage blocks
// starting at the given block address.
func (md *MemDev) ReadBlocks(lba uint, b []byte) error {
	if md.ReadErr != nil {
		return md.ReadErr
	}
	if len(b)%int(md.blockSize) != 0 {
		return fmt.Errorf("read of %d bytes is not a multiple of block size %d", len(b), md.blockSize)
	}
	off := lba * md.blockSize
	if off+uint(len(b)) > uint(len(md.storage)) {
		return fmt.Errorf("read of %d bytes at lba %d exceeds device size", len(b), lba)
	}
	if md.OnBlockRead != nil {
		for i := uint(0); i < uint(len(b))/md.blockSize; i++ {
			md.OnBlockRead(lba + i)
		}
	}
	copy(b, md.storage[off:])
	return nil
}

// Write fills the device with the given bytes starting at byte offset off,
// for test setup.
func (md *MemDev) Write(off uint, b []byte) error {
	if off+uint(len(b)) > uint(len(md.storage)) {
		return fmt.Errorf("write of %d bytes at offset %d exceeds device size", len(b), off)
	}
	copy(md.storage[off:], b)
	return nil
}
