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

// Package storage abstracts the block devices firmware images are read
// from during validation.
package storage

import "fmt"

// BlockReader is the device-specific read functionality. Implementations
// are expected to be MMC/flash drivers or test doubles.
type BlockReader interface {
	// BlockSize returns the block size of the underlying storage system.
	BlockSize() uint

	// ReadBlocks reads len(b) bytes into b from contiguous storage blocks
	// starting at the given block address. len(b) must be an integer
	// multiple of the device's block size.
	ReadBlocks(lba uint, b []byte) error
}

// Area describes a single contiguous region of underlying block storage
// holding one firmware image and its trailer.
type Area struct {
	// Start identifies the address of the first block of the area.
	Start uint
	// Blocks is the number of blocks covered by this area, i.e.
	// [Start, Start+Blocks) is the range of blocks covered.
	Blocks uint
}

// Validate checks the area against the extent of the given device, when
// the device reports one via the optional Blocks method.
func (a Area) Validate(dev BlockReader) error {
	if a.Blocks == 0 {
		return fmt.Errorf("invalid area: zero length")
	}
	if a.Start+a.Blocks < a.Start {
		return fmt.Errorf("invalid area: block range [%d, %d) wraps", a.Start, a.Start+a.Blocks)
	}
	if sized, ok := dev.(interface{ Blocks() uint }); ok {
		if end := a.Start + a.Blocks; end > sized.Blocks() {
			return fmt.Errorf("invalid area: end block %d exceeds device blocks %d", end, sized.Blocks())
		}
	}
	return nil
}

// Bytes returns the area length in bytes on the given device.
func (a Area) Bytes(dev BlockReader) uint64 {
	return uint64(a.Blocks) * uint64(dev.BlockSize())
}
