// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package slogutil

import (
	"log/slog"
	"net"
)

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

func Address(addr net.Addr) slog.Attr {
	if addr == nil {
		return slog.String("address", "<nil>")
	}
	return slog.String("address", addr.String())
}

func FilePath(path string) slog.Attr {
	return slog.String("path", path)
}

// Expensive wraps a value that is costly to compute, such as a hex dump.
// The function is only called when the record is actually formatted.
func Expensive(fn func() any) slog.LogValuer {
	return expensive(fn)
}

type expensive func() any

func (e expensive) LogValue() slog.Value {
	return slog.AnyValue(e())
}
