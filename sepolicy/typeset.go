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

package sepolicy

import (
	"github.com/bits-and-blooms/bitset"
)

// TypeSet is a set of type IDs, the equivalent of a kernel ebitmap.
// The zero value is an empty set ready to use.
type TypeSet struct {
	bits bitset.BitSet
}

// NewTypeSet returns a set holding the given IDs.
func NewTypeSet(ids ...TypeID) *TypeSet {
	s := &TypeSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was not present before.
func (s *TypeSet) Add(id TypeID) bool {
	if s.bits.Test(uint(id)) {
		return false
	}
	s.bits.Set(uint(id))
	return true
}

func (s *TypeSet) Remove(id TypeID) {
	s.bits.Clear(uint(id))
}

func (s *TypeSet) Has(id TypeID) bool {
	if s == nil {
		return false
	}
	return s.bits.Test(uint(id))
}

func (s *TypeSet) Len() int {
	if s == nil {
		return 0
	}
	return int(s.bits.Count())
}

// IDs returns the members in ascending order.
func (s *TypeSet) IDs() []TypeID {
	if s == nil {
		return nil
	}
	ids := make([]TypeID, 0, s.bits.Count())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		ids = append(ids, TypeID(i))
	}
	return ids
}

func (s *TypeSet) Clone() *TypeSet {
	c := &TypeSet{}
	if s != nil {
		s.bits.CopyFull(&c.bits)
	}
	return c
}

func (s *TypeSet) Equal(other *TypeSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, id := range s.IDs() {
		if !other.Has(id) {
			return false
		}
	}
	return true
}
