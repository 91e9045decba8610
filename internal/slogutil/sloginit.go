// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package slogutil installs the process wide slog handler used by sttftp
// and provides a few attribute helpers.
package slogutil

import (
	"io"
	"log/slog"
	"os"
)

var (
	globalLevels = &levelTracker{
		defLevel: slog.LevelInfo,
		levels:   make(map[string]slog.Level),
	}
	globalFormatter = &formattingOptions{
		LineFormat: DefaultLineFormat,
		out:        logWriter(),
	}
)

func logWriter() io.Writer {
	if os.Getenv("LOGGER_DISCARD") != "" {
		// Used by benchmarks and tests that don't want the noise.
		return io.Discard
	}
	return os.Stdout
}

func init() {
	slog.SetDefault(slog.New(&formattingHandler{opts: globalFormatter}))
	SetLevelOverrides(os.Getenv("STTRACE"))
}
