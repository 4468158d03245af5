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
	"fmt"
)

// Triple is the part of an access vector key that a rewrite may change.
type Triple struct {
	Source TypeID
	Target TypeID
	Class  ClassID
}

// RewriteFunc maps the triple of an existing rule to the triple of a new
// rule. Returning false leaves the rule without a counterpart.
type RewriteFunc func(Triple) (Triple, bool)

// MapTypes returns a rewrite that replaces each side of a rule independently
// through m. A rule is rewritten when at least one side is a key of m, so a
// rule from an original type to itself maps to a rule from its clone to the
// clone.
func MapTypes(m map[TypeID]TypeID) RewriteFunc {
	return func(t Triple) (Triple, bool) {
		src, srcOK := m[t.Source]
		tgt, tgtOK := m[t.Target]
		if !srcOK && !tgtOK {
			return Triple{}, false
		}
		if srcOK {
			t.Source = src
		}
		if tgtOK {
			t.Target = tgt
		}
		return t, true
	}
}

// CopyRoles adds dst to every role src is a member of.
func (p *Policy) CopyRoles(src, dst TypeID) error {
	if err := p.validType(src); err != nil {
		return err
	}
	if err := p.validType(dst); err != nil {
		return err
	}
	for _, r := range p.roles {
		if r.Types.Has(src) {
			r.Types.Add(dst)
		}
	}
	return nil
}

// CopyAttributes adds dst to every attribute src is a member of.
func (p *Policy) CopyAttributes(src, dst TypeID) error {
	if err := p.validType(src); err != nil {
		return err
	}
	if err := p.validType(dst); err != nil {
		return err
	}
	for attr, members := range p.attrMembers {
		if attr == dst {
			continue
		}
		if members.Has(src) {
			members.Add(dst)
		}
	}
	return nil
}

// CopyConstraints adds dst to every type set literal in a constraint
// expression that contains src.
func (p *Policy) CopyConstraints(src, dst TypeID) {
	for _, cls := range p.classes {
		for _, cons := range cls.Constraints {
			cons.Expr.Walk(func(e *ConstraintExpr) {
				if e.Kind == ExprNames && e.Operand.IsType() && e.Names.Has(src) {
					e.Names.Add(dst)
				}
			})
		}
	}
}

// CopyAVTabRules calls rewrite on every rule present when it is called and
// inserts a copy of the rule under each returned triple. Existing rules are
// never modified except for merging into a key that already exists. If any
// returned triple is invalid nothing is inserted. It returns the number of
// rules that produced a copy.
func (p *Policy) CopyAVTabRules(rewrite RewriteFunc) (int, error) {
	added := make(map[AVKey]*AVDatum)
	var order []AVKey
	n := 0
	for _, key := range p.sortedKeys() {
		t, ok := rewrite(Triple{Source: key.Source, Target: key.Target, Class: key.Class})
		if !ok {
			continue
		}
		newKey := AVKey{Source: t.Source, Target: t.Target, Class: t.Class, Action: key.Action}
		if err := p.validKey(newKey); err != nil {
			return 0, WithContext(err, "cannot copy %s rule %s", key.Action, p.describe(key))
		}
		n++
		datum := p.avtab[key]
		if cur, ok := added[newKey]; ok {
			if !cur.merge(datum) {
				return 0, Errorf(ErrKindFormat, "conflicting %s rules for %s", newKey.Action, p.describe(newKey))
			}
			continue
		}
		added[newKey] = datum.clone()
		order = append(order, newKey)
	}
	for _, key := range order {
		if cur, ok := p.avtab[key]; ok && !cur.clone().merge(added[key]) {
			return 0, Errorf(ErrKindFormat, "conflicting %s rules for %s", key.Action, p.describe(key))
		}
	}
	for _, key := range order {
		p.insertRule(key, added[key])
	}
	return n, nil
}

func (p *Policy) describe(k AVKey) string {
	return fmt.Sprintf("%s %s:%s", p.TypeName(k.Source), p.TypeName(k.Target), p.ClassName(k.Class))
}
