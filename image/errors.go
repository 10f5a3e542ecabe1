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
)

// ErrEnd terminates trailer record iteration. It is not a failure.
var ErrEnd = errors.New("no more records")

// IoError reports a failed read from an image source. It is always fatal
// to validation and is kept distinct from format problems so callers can
// tell a broken device from a malformed image.
type IoError struct {
	Off uint32
	N   uint32
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("image read of %d bytes at offset %#x failed: %v", e.N, e.Off, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// FormatError reports a malformed image: bad magic, inconsistent lengths,
// or a record that does not fit its declared envelope. A FormatError
// always means the image must be rejected.
type FormatError struct {
	What string
}

func (e *FormatError) Error() string {
	return "malformed image: " + e.What
}
