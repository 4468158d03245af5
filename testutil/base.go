// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2024 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package testutil

import (
	"reflect"

	"gopkg.in/check.v1"
)

// BaseTest is a structure used as a base test suite for many of the tests.
type BaseTest struct {
	cleanupHandlers []func()
}

// SetUpTest prepares the cleanup
func (s *BaseTest) SetUpTest(c *check.C) {
	s.cleanupHandlers = nil
}

// TearDownTest runs the cleanup handlers
func (s *BaseTest) TearDownTest(c *check.C) {
	// run cleanup handlers in reverse order and clear the list
	for i := len(s.cleanupHandlers) - 1; i >= 0; i-- {
		s.cleanupHandlers[i]()
	}
	s.cleanupHandlers = nil
}

// AddCleanup adds a new cleanup function to the test
func (s *BaseTest) AddCleanup(f func()) {
	s.cleanupHandlers = append(s.cleanupHandlers, f)
}

// Backup saves the values of the given pointers and returns a function
// restoring them. It is meant to be used with variables mocked in tests:
//
//	restore := testutil.Backup(&osReadFile)
//	defer restore()
//	osReadFile = ...
func Backup(mockablesByPtr ...interface{}) (restore func()) {
	backup := make([]reflect.Value, len(mockablesByPtr))
	for i, p := range mockablesByPtr {
		v := reflect.ValueOf(p)
		if v.Kind() != reflect.Ptr {
			panic("Backup: expected pointer")
		}
		backup[i] = reflect.New(v.Elem().Type()).Elem()
		backup[i].Set(v.Elem())
	}
	return func() {
		for i, p := range mockablesByPtr {
			reflect.ValueOf(p).Elem().Set(backup[i])
		}
	}
}
