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

import "crypto/sha256"

// DigestSize is the size of the image digest in bytes.
const DigestSize = sha256.Size

// DefaultBlockSize is the read granularity used when streaming an image
// through the digest. It is a buffer capacity, not a format parameter.
const DefaultBlockSize = 4096

// ComputeDigest computes the SHA-256 digest over the image header and
// body, i.e. the first HdrSize+ImgSize bytes of src, reading blockSize
// bytes at a time (DefaultBlockSize when zero).
//
// If seed is non-empty it is hashed before the image bytes. This binds
// the digest of a dependent image to content contributed by its loader.
func ComputeDigest(src Source, hdr Header, seed []byte, blockSize uint32) ([DigestSize]byte, error) {
	var digest [DigestSize]byte

	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}

	h := sha256.New()
	if len(seed) > 0 {
		h.Write(seed)
	}

	size := hdr.ImageExtent()
	for off := uint32(0); off < size; {
		n := size - off
		if n > blockSize {
			n = blockSize
		}
		buf, err := src.ReadAt(off, n)
		if err != nil {
			return digest, err
		}
		h.Write(buf)
		off += n
	}

	copy(digest[:], h.Sum(nil))
	return digest, nil
}
