// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package slogutil

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// A Line is a fully formatted log record, minus the timestamp and level
// prefix which depend on the LineFormat in use.
type Line struct {
	When    time.Time
	Message string
	Level   slog.Level
}

var DefaultLineFormat = LineFormat{
	TimestampFormat: "2006-01-02 15:04:05",
	LevelString:     true,
}

func (l Line) WriteTo(w io.Writer, f LineFormat) (int64, error) {
	var prefix string
	if f.LevelSyslog {
		prefix = fmt.Sprintf("<%d>", syslogPriority(l.Level))
	}
	if f.TimestampFormat != "" {
		prefix += l.When.Format(f.TimestampFormat) + " "
	}
	if f.LevelString {
		prefix += levelString(l.Level) + " "
	}
	n, err := fmt.Fprintf(w, "%s%s\n", prefix, l.Message)
	return int64(n), err
}

func levelString(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DBG"
	case l < slog.LevelWarn:
		return "INF"
	case l < slog.LevelError:
		return "WRN"
	default:
		return "ERR"
	}
}

// syslogPriority maps to the kernel style priorities understood by
// journald when reading stdout.
func syslogPriority(l slog.Level) int {
	switch {
	case l < slog.LevelInfo:
		return 7
	case l < slog.LevelWarn:
		return 6
	case l < slog.LevelError:
		return 4
	default:
		return 3
	}
}
