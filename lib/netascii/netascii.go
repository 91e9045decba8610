// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package netascii turns text received in the netascii line discipline
// (CR LF line endings, CR NUL for a bare carriage return) into local text
// with plain LF line endings.
package netascii

import (
	"bytes"
	"io"

	"pack.ag/tftp/netascii"
)

// Decode returns the local form of b. A lone CR at the very end of b is
// incomplete netascii and is dropped.
func Decode(b []byte) ([]byte, error) {
	return io.ReadAll(netascii.NewReader(bytes.NewReader(b)))
}
