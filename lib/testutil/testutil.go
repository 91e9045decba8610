// Copyright (C) 2019 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package testutil holds small assertion helpers shared by package tests.
package testutil

import (
	"cmp"
	"errors"
	"testing"
)

func AssertTrue(testFailFunc func(string, ...any), a bool, sprintfArgs ...any) {
	if !a {
		if len(sprintfArgs) == 0 {
			testFailFunc("Assertion failed")
		} else {
			testFailFunc("Assertion failed: "+sprintfArgs[0].(string), sprintfArgs[1:]...)
		}
	}
}

func AssertEqual[T comparable](testFailFunc func(string, ...any), a T, b T, sprintfArgs ...any) {
	if a != b {
		if len(sprintfArgs) == 0 {
			testFailFunc("Assertion failed: %v == %v", a, b)
		} else {
			testFailFunc("Assertion failed: %v == %v: "+sprintfArgs[0].(string), append([]any{a, b}, sprintfArgs[1:]...)...)
		}
	}
}

func AssertNotEqual[T comparable](testFailFunc func(string, ...any), a T, b T, sprintfArgs ...any) {
	if a == b {
		if len(sprintfArgs) == 0 {
			testFailFunc("Assertion failed: %v != %v", a, b)
		} else {
			testFailFunc("Assertion failed: %v != %v: "+sprintfArgs[0].(string), append([]any{a, b}, sprintfArgs[1:]...)...)
		}
	}
}

func AssertGreater[T cmp.Ordered](testFailFunc func(string, ...any), a T, b T, sprintfArgs ...any) {
	if a <= b {
		if len(sprintfArgs) == 0 {
			testFailFunc("Assertion failed: %v > %v", a, b)
		} else {
			testFailFunc("Assertion failed: %v > %v: "+sprintfArgs[0].(string), append([]any{a, b}, sprintfArgs[1:]...)...)
		}
	}
}

// AssertErrorIs fails unless errors.Is(err, target).
func AssertErrorIs(testFailFunc func(string, ...any), err, target error) {
	if !errors.Is(err, target) {
		testFailFunc("Assertion failed: error %v is not %v", err, target)
	}
}

func FatalErr(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
