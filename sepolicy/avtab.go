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
	"sort"
)

// AVKey identifies an access vector table entry. There is at most one
// entry per key.
type AVKey struct {
	Source TypeID
	Target TypeID
	Class  ClassID
	Action RuleAction
}

func (k AVKey) less(o AVKey) bool {
	if k.Source != o.Source {
		return k.Source < o.Source
	}
	if k.Target != o.Target {
		return k.Target < o.Target
	}
	if k.Class != o.Class {
		return k.Class < o.Class
	}
	return k.Action < o.Action
}

// XPerms specifies values for XPermBlock.Specified.
const (
	XPermsIoctlFunction uint8 = 1
	XPermsIoctlDriver   uint8 = 2
)

// XPermBlock is one extended permission bitmap of an xperm rule. For
// XPermsIoctlFunction the bitmap holds ioctl function numbers of Driver;
// for XPermsIoctlDriver it holds driver numbers and Driver is unused.
type XPermBlock struct {
	Specified uint8
	Driver    uint8
	Perms     [8]uint32
}

// AVDatum is the value of an access vector table entry. Perms is used by
// access rules, XPerms by xperm rules and NewType by type rules.
type AVDatum struct {
	Perms   uint32
	XPerms  []XPermBlock
	NewType TypeID
}

func (d *AVDatum) clone() *AVDatum {
	c := *d
	c.XPerms = append([]XPermBlock(nil), d.XPerms...)
	return &c
}

// merge folds o into d. It reports false if the two data cannot be merged
// because they name different resulting types, in which case d is kept.
func (d *AVDatum) merge(o *AVDatum) bool {
	d.Perms |= o.Perms
	for _, ob := range o.XPerms {
		found := false
		for i := range d.XPerms {
			b := &d.XPerms[i]
			if b.Specified == ob.Specified && b.Driver == ob.Driver {
				for j := range b.Perms {
					b.Perms[j] |= ob.Perms[j]
				}
				found = true
				break
			}
		}
		if !found {
			d.XPerms = append(d.XPerms, ob)
		}
	}
	if o.NewType != 0 && d.NewType != o.NewType {
		if d.NewType == 0 {
			d.NewType = o.NewType
			return true
		}
		return false
	}
	return true
}

// Rule is a snapshot of one access vector table entry.
type Rule struct {
	AVKey
	AVDatum
}

// Rule returns a copy of the entry for key.
func (p *Policy) Rule(key AVKey) (AVDatum, bool) {
	d, ok := p.avtab[key]
	if !ok {
		return AVDatum{}, false
	}
	return *d.clone(), true
}

// NumRules returns the number of access vector table entries.
func (p *Policy) NumRules() int {
	return len(p.avtab)
}

func (p *Policy) sortedKeys() []AVKey {
	keys := make([]AVKey, 0, len(p.avtab))
	for k := range p.avtab {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Rules returns a copy of every entry, sorted by key.
func (p *Policy) Rules() []Rule {
	keys := p.sortedKeys()
	rules := make([]Rule, 0, len(keys))
	for _, k := range keys {
		rules = append(rules, Rule{AVKey: k, AVDatum: *p.avtab[k].clone()})
	}
	return rules
}

func (p *Policy) validKey(key AVKey) error {
	if err := p.validType(key.Source); err != nil {
		return err
	}
	if err := p.validType(key.Target); err != nil {
		return err
	}
	if err := p.validClass(key.Class); err != nil {
		return err
	}
	if !key.Action.Valid() {
		return Errorf(ErrKindFormat, "invalid rule action %#x", uint16(key.Action))
	}
	return nil
}

// insertRule adds datum under key, merging into an existing entry. It
// reports false if an existing type rule names a different result.
func (p *Policy) insertRule(key AVKey, datum *AVDatum) bool {
	if cur, ok := p.avtab[key]; ok {
		return cur.merge(datum)
	}
	p.avtab[key] = datum.clone()
	return true
}

// AddRule inserts an entry, merging it into an existing entry with the same
// key.
func (p *Policy) AddRule(key AVKey, datum AVDatum) error {
	if err := p.validKey(key); err != nil {
		return err
	}
	if datum.NewType != 0 {
		if err := p.validType(datum.NewType); err != nil {
			return err
		}
	}
	if !p.insertRule(key, &datum) {
		return Errorf(ErrKindFormat, "conflicting %s rules for %s", key.Action, p.describe(key))
	}
	return nil
}
