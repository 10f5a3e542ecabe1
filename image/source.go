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

package image

import (
	"errors"
	"fmt"
	"io"

	"github.com/armoredboot/bootverify/storage"
)

// Source provides random access reads over a candidate image. Offsets are
// relative to the image base (the first header byte). Reads past the end
// of the image region fail with an *IoError; a Source never returns short
// data without an error.
type Source interface {
	ReadAt(off, n uint32) ([]byte, error)
}

// MemSource reads an image that already resides in addressable memory,
// e.g. after relocation of a RAM-loaded image.
type MemSource []byte

// ReadAt returns n bytes at offset off. The returned slice aliases the
// underlying memory and must not be modified.
func (m MemSource) ReadAt(off, n uint32) ([]byte, error) {
	end := uint64(off) + uint64(n)
	if end > uint64(len(m)) {
		return nil, &IoError{Off: off, N: n, Err: fmt.Errorf("beyond image end %d", len(m))}
	}
	return m[off:end], nil
}

// ReaderAtSource adapts an io.ReaderAt (typically an *os.File) of known
// size to the Source interface.
type ReaderAtSource struct {
	r    io.ReaderAt
	size uint32
}

// NewReaderAtSource returns a Source reading the first size bytes of r.
func NewReaderAtSource(r io.ReaderAt, size uint32) *ReaderAtSource {
	return &ReaderAtSource{r: r, size: size}
}

func (s *ReaderAtSource) ReadAt(off, n uint32) ([]byte, error) {
	if uint64(off)+uint64(n) > uint64(s.size) {
		return nil, &IoError{Off: off, N: n, Err: fmt.Errorf("beyond image end %d", s.size)}
	}
	buf := make([]byte, n)
	if _, err := s.r.ReadAt(buf, int64(off)); err != nil && !errors.Is(err, io.EOF) {
		return nil, &IoError{Off: off, N: n, Err: err}
	}
	return buf, nil
}

// BlockSource reads an image stored in an area of a block device,
// translating byte-addressed reads into whole-block device reads.
type BlockSource struct {
	dev  storage.BlockReader
	area storage.Area
}

// NewBlockSource returns a Source over the given device area. The image
// base is the first byte of the area's first block.
func NewBlockSource(dev storage.BlockReader, area storage.Area) (*BlockSource, error) {
	if err := area.Validate(dev); err != nil {
		return nil, err
	}
	return &BlockSource{dev: dev, area: area}, nil
}

func (s *BlockSource) ReadAt(off, n uint32) ([]byte, error) {
	bs := uint64(s.dev.BlockSize())
	end := uint64(off) + uint64(n)
	if end > s.area.Bytes(s.dev) {
		return nil, &IoError{Off: off, N: n, Err: fmt.Errorf("beyond area end %d", s.area.Bytes(s.dev))}
	}
	if n == 0 {
		return nil, nil
	}

	// Widen the read to block boundaries.
	first := uint64(off) / bs
	last := (end - 1) / bs
	buf := make([]byte, (last-first+1)*bs)
	if err := s.dev.ReadBlocks(s.area.Start+uint(first), buf); err != nil {
		return nil, &IoError{Off: off, N: n, Err: err}
	}
	skip := uint64(off) - first*bs
	return buf[skip : skip+uint64(n)], nil
}
