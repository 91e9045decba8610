// Copyright (C) 2019 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package build carries the version information stamped in by the build
// script with -ldflags "-X github.com/syncthing/sttftp/lib/build.Version=...".
package build

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"time"
)

var (
	// Injected by build script
	Version = "unknown-dev"
	Host    = "unknown"
	User    = "unknown"
	Stamp   = "0"

	// Set by init()
	Date time.Time

	AllowedVersionExp = regexp.MustCompile(`^v\d+\.\d+\.\d+(-[a-z0-9]+)*(\.\d+)*(\+\d+-g[0-9a-f]+)?(-[^\s]+)?$`)
)

func init() {
	setBuildData()
}

func setBuildData() {
	stamp, _ := strconv.Atoi(Stamp)
	Date = time.Unix(int64(stamp), 0)
}

// CheckVersion returns an error if the injected version string is not one
// a release build would produce.
func CheckVersion() error {
	if Version == "unknown-dev" || AllowedVersionExp.MatchString(Version) {
		return nil
	}
	return fmt.Errorf("invalid version string %q; does not match %v", Version, AllowedVersionExp)
}

// LongVersionFor returns the long version string for the given program
// name, e.g. `sttftp v1.0.0 (go1.24.0 linux-amd64) jb@build 2025-01-01 00:00:00 UTC`.
func LongVersionFor(program string) string {
	date := Date.UTC().Format("2006-01-02 15:04:05 MST")
	return fmt.Sprintf(`%s %s (%s %s-%s) %s@%s %s`, program, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH, User, Host, date)
}
