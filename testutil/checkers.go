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
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"gopkg.in/check.v1"
)

type containsChecker struct {
	*check.CheckerInfo
}

// Contains is a Checker that looks for a needle in a haystack.
// The needle can be any object. The haystack can be an array, slice or string.
var Contains check.Checker = &containsChecker{
	&check.CheckerInfo{Name: "Contains", Params: []string{"haystack", "needle"}},
}

func (c *containsChecker) Check(params []interface{}, names []string) (result bool, error string) {
	defer func() {
		if v := recover(); v != nil {
			result = false
			error = fmt.Sprint(v)
		}
	}()
	haystack, needle := params[0], params[1]
	switch haystackV := reflect.ValueOf(haystack); haystackV.Kind() {
	case reflect.Slice, reflect.Array:
		if needleV := reflect.ValueOf(needle); haystackV.Type().Elem() != needleV.Type() {
			panic(fmt.Sprintf("haystack contains items of type %s but needle is a %s",
				haystackV.Type().Elem(), needleV.Type()))
		}
		for i := 0; i < haystackV.Len(); i++ {
			if reflect.DeepEqual(haystackV.Index(i).Interface(), needle) {
				return true, ""
			}
		}
		return false, ""
	case reflect.String:
		return strings.Contains(haystack.(string), needle.(string)), ""
	default:
		panic(fmt.Sprintf("haystack is of unsupported type %T", params[0]))
	}
}

type fileContentChecker struct {
	*check.CheckerInfo
}

// FileEquals verifies that the given file's content is equal to the
// string (or []byte) provided.
var FileEquals check.Checker = &fileContentChecker{
	&check.CheckerInfo{Name: "FileEquals", Params: []string{"filename", "contents"}},
}

func (c *fileContentChecker) Check(params []interface{}, names []string) (result bool, error string) {
	filename, ok := params[0].(string)
	if !ok {
		return false, "Filename must be a string"
	}
	var expected []byte
	switch v := params[1].(type) {
	case string:
		expected = []byte(v)
	case []byte:
		expected = v
	default:
		return false, fmt.Sprintf("Cannot compare file contents with something of type %T", params[1])
	}
	buf, err := os.ReadFile(filename)
	if err != nil {
		return false, fmt.Sprintf("Cannot read file %q: %v", filename, err)
	}
	if !bytes.Equal(buf, expected) {
		return false, fmt.Sprintf("Failed to match with file contents:\n%d bytes, expected %d", len(buf), len(expected))
	}
	return true, ""
}

type errorIsChecker struct {
	*check.CheckerInfo
}

// ErrorIs verifies that errors.Is(error, target) holds. On mismatch the
// types along the unwrap chain of error are reported.
var ErrorIs check.Checker = &errorIsChecker{
	&check.CheckerInfo{Name: "ErrorIs", Params: []string{"error", "target"}},
}

func (c *errorIsChecker) Check(params []interface{}, names []string) (result bool, errMsg string) {
	if params[0] == nil {
		return params[1] == nil, ""
	}
	err, ok := params[0].(error)
	if !ok {
		return false, "first argument must be an error"
	}
	target, ok := params[1].(error)
	if !ok {
		return false, "second argument must be an error"
	}
	if errors.Is(err, target) {
		return true, ""
	}
	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	return false, fmt.Sprintf("no error in chain [%s] matches %T", strings.Join(chain, " "), target)
}
