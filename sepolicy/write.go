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
	"bytes"
	"encoding/binary"
	"fmt"
)

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) u8(v uint8) {
	e.buf.WriteByte(v)
}

func (e *encoder) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) typeSet(s *TypeSet) {
	ids := s.IDs()
	e.u32(uint32(len(ids)))
	for _, id := range ids {
		e.u32(uint32(id))
	}
}

func (e *encoder) expr(x *ConstraintExpr) error {
	if x == nil {
		return fmt.Errorf("missing constraint expression operand")
	}
	e.u8(uint8(x.Kind))
	switch x.Kind {
	case ExprNot:
		return e.expr(x.Left)
	case ExprAnd, ExprOr:
		if err := e.expr(x.Left); err != nil {
			return err
		}
		return e.expr(x.Right)
	case ExprAttr:
		e.u32(uint32(x.Operand))
		e.u32(uint32(x.Op))
	case ExprNames:
		e.u32(uint32(x.Operand))
		e.u32(uint32(x.Op))
		e.typeSet(x.Names)
	default:
		return fmt.Errorf("unknown constraint expression kind %d", x.Kind)
	}
	return nil
}

// Serialize encodes the policy. Problems that do not prevent a faithful
// encoding are returned as warnings.
func (p *Policy) Serialize() ([]byte, []string, error) {
	var warnings []string
	e := &encoder{}

	e.u32(PolicyMagic)
	e.str(PolicyString)
	e.u32(PolicyVersion)

	e.u32(uint32(len(p.types)))
	for _, t := range p.types {
		e.str(t.Name)
		var flags uint32
		if t.Attribute {
			flags |= typeFlagAttribute
		}
		e.u32(flags)
	}

	e.u32(uint32(len(p.classes)))
	for _, cls := range p.classes {
		e.str(cls.Name)
		e.u32(uint32(len(cls.Perms)))
		for _, perm := range cls.Perms {
			e.str(perm)
		}
		e.u32(uint32(len(cls.Constraints)))
		for i, cons := range cls.Constraints {
			if cons.Expr.Depth() > maxExprDepth {
				return nil, nil, Errorf(ErrKindFormat, "cannot serialize constraint %d of class %q: nested deeper than %d", i, cls.Name, maxExprDepth)
			}
			e.u32(cons.Perms)
			if err := e.expr(cons.Expr); err != nil {
				return nil, nil, formatError(err, "cannot serialize constraint %d of class %q", i, cls.Name)
			}
		}
	}

	e.u32(uint32(len(p.attrMembers)))
	for _, t := range p.types {
		if members, ok := p.attrMembers[t.ID]; ok {
			e.u32(uint32(t.ID))
			e.typeSet(members)
		}
	}

	inRole := &TypeSet{}
	e.u32(uint32(len(p.roles)))
	for _, r := range p.roles {
		e.str(r.Name)
		e.typeSet(r.Types)
		for _, t := range r.Types.IDs() {
			inRole.Add(t)
		}
	}
	for _, t := range p.types {
		if !t.Attribute && !inRole.Has(t.ID) {
			warnings = append(warnings, fmt.Sprintf("type %s is not associated with any role", t.Name))
		}
	}

	keys := p.sortedKeys()
	e.u32(uint32(len(keys)))
	for _, key := range keys {
		if err := p.validKey(key); err != nil {
			return nil, nil, formatError(err, "cannot serialize %s rule %d %d:%d",
				key.Action, key.Source, key.Target, key.Class)
		}
		e.u32(uint32(key.Source))
		e.u32(uint32(key.Target))
		e.u32(uint32(key.Class))
		e.u16(uint16(key.Action))

		datum := p.avtab[key]
		switch {
		case key.Action.IsTypeRule():
			if err := p.validType(datum.NewType); err != nil {
				return nil, nil, formatError(err, "cannot serialize %s rule for %s", key.Action, p.describe(key))
			}
			e.u32(uint32(datum.NewType))
		case key.Action.IsXPerm():
			e.u32(uint32(len(datum.XPerms)))
			for _, b := range datum.XPerms {
				e.u8(b.Specified)
				e.u8(b.Driver)
				for _, w := range b.Perms {
					e.u32(w)
				}
			}
		default:
			e.u32(datum.Perms)
		}
	}

	return e.buf.Bytes(), warnings, nil
}
