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
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

const (
	// PolicyMagic starts every serialized policy.
	PolicyMagic uint32 = 0x5e1f0c1d
	// PolicyString follows the magic number.
	PolicyString = "sepatch policydb"
	// PolicyVersion is the only format version understood.
	PolicyVersion uint32 = 1

	maxExprDepth = 256
	maxNameLen   = 1 << 12

	typeFlagAttribute uint32 = 1
)

var errTruncated = errors.New("unexpected end of data")

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, errTruncated
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) u8() (uint8, error) {
	b, err := d.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// count reads an element count and checks that at least minSize bytes per
// element remain, so that a corrupt count cannot cause a huge allocation.
func (d *decoder) count(minSize int) (int, error) {
	n, err := d.u32()
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize) > uint64(d.remaining()) {
		return 0, fmt.Errorf("count %d exceeds remaining data", n)
	}
	return int(n), nil
}

func (d *decoder) str() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	if n > maxNameLen {
		return "", fmt.Errorf("string length %d too long", n)
	}
	b, err := d.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) typeSet(p *Policy) (*TypeSet, error) {
	n, err := d.count(4)
	if err != nil {
		return nil, err
	}
	s := &TypeSet{}
	for i := 0; i < n; i++ {
		id, err := d.u32()
		if err != nil {
			return nil, err
		}
		if err := p.validType(TypeID(id)); err != nil {
			return nil, err
		}
		s.Add(TypeID(id))
	}
	return s, nil
}

func (d *decoder) expr(p *Policy, depth int) (*ConstraintExpr, error) {
	if depth > maxExprDepth {
		return nil, fmt.Errorf("constraint expression nested deeper than %d", maxExprDepth)
	}
	kind, err := d.u8()
	if err != nil {
		return nil, err
	}
	e := &ConstraintExpr{Kind: ExprKind(kind)}
	switch e.Kind {
	case ExprNot:
		if e.Left, err = d.expr(p, depth+1); err != nil {
			return nil, err
		}
	case ExprAnd, ExprOr:
		if e.Left, err = d.expr(p, depth+1); err != nil {
			return nil, err
		}
		if e.Right, err = d.expr(p, depth+1); err != nil {
			return nil, err
		}
	case ExprAttr, ExprNames:
		operand, err := d.u32()
		if err != nil {
			return nil, err
		}
		op, err := d.u32()
		if err != nil {
			return nil, err
		}
		e.Operand, e.Op = Operand(operand), ExprOp(op)
		if e.Kind == ExprNames {
			if e.Names, err = d.typeSet(p); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown constraint expression kind %d", kind)
	}
	return e, nil
}

// Parse decodes a serialized policy. Problems that do not prevent a
// faithful load are returned as warnings.
func Parse(data []byte) (*Policy, []string, error) {
	d := &decoder{buf: data}
	p := New()
	var warnings []string

	if err := d.header(); err != nil {
		return nil, nil, formatError(err, "cannot parse policy header")
	}
	if err := d.types(p); err != nil {
		return nil, nil, formatError(err, "cannot parse types")
	}
	if err := d.classes(p); err != nil {
		return nil, nil, formatError(err, "cannot parse classes")
	}
	if err := d.attributes(p); err != nil {
		return nil, nil, formatError(err, "cannot parse attributes")
	}
	if err := d.roles(p); err != nil {
		return nil, nil, formatError(err, "cannot parse roles")
	}
	w, err := d.avtab(p)
	if err != nil {
		return nil, nil, formatError(err, "cannot parse access vector table")
	}
	warnings = append(warnings, w...)
	if d.remaining() != 0 {
		return nil, nil, Errorf(ErrKindFormat, "cannot parse policy: %d bytes of trailing data", d.remaining())
	}
	return p, warnings, nil
}

// formatError classifies every decoding failure as a format error, even
// when it stems from a graph primitive reporting e.g. a name collision.
func formatError(err error, format string, args ...interface{}) error {
	return &Error{Kind: ErrKindFormat, Context: []string{fmt.Sprintf(format, args...)}, Err: err}
}

func (d *decoder) header() error {
	magic, err := d.u32()
	if err != nil {
		return err
	}
	if magic != PolicyMagic {
		return fmt.Errorf("invalid magic %#08x", magic)
	}
	ident, err := d.str()
	if err != nil {
		return err
	}
	if ident != PolicyString {
		return fmt.Errorf("invalid identification string %q", ident)
	}
	version, err := d.u32()
	if err != nil {
		return err
	}
	if version != PolicyVersion {
		return fmt.Errorf("unsupported version %d", version)
	}
	return nil
}

func (d *decoder) types(p *Policy) error {
	n, err := d.count(8)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		name, err := d.str()
		if err != nil {
			return err
		}
		flags, err := d.u32()
		if err != nil {
			return err
		}
		if _, err := p.CreateType(name, flags&typeFlagAttribute != 0); err != nil {
			return xerrors.Errorf("type %d: %w", i+1, err)
		}
	}
	return nil
}

func (d *decoder) classes(p *Policy) error {
	n, err := d.count(12)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		name, err := d.str()
		if err != nil {
			return err
		}
		nperms, err := d.count(4)
		if err != nil {
			return err
		}
		perms := make([]string, 0, nperms)
		for j := 0; j < nperms; j++ {
			perm, err := d.str()
			if err != nil {
				return err
			}
			perms = append(perms, perm)
		}
		id, err := p.AddClass(name, perms...)
		if err != nil {
			return err
		}
		ncons, err := d.count(5)
		if err != nil {
			return err
		}
		for j := 0; j < ncons; j++ {
			mask, err := d.u32()
			if err != nil {
				return err
			}
			expr, err := d.expr(p, 1)
			if err != nil {
				return xerrors.Errorf("constraint %d of class %q: %w", j, name, err)
			}
			if err := p.AddConstraint(id, mask, expr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) attributes(p *Policy) error {
	n, err := d.count(8)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		attr, err := d.u32()
		if err != nil {
			return err
		}
		if _, ok := p.attrMembers[TypeID(attr)]; !ok {
			return fmt.Errorf("type ID %d is not an attribute", attr)
		}
		members, err := d.typeSet(p)
		if err != nil {
			return err
		}
		for _, t := range members.IDs() {
			if err := p.AddAttributeMember(TypeID(attr), t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) roles(p *Policy) error {
	n, err := d.count(8)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		name, err := d.str()
		if err != nil {
			return err
		}
		members, err := d.typeSet(p)
		if err != nil {
			return err
		}
		if _, err := p.AddRole(name, members.IDs()...); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) avtab(p *Policy) ([]string, error) {
	var warnings []string
	n, err := d.count(18)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		var key AVKey
		var v [3]uint32
		for j := range v {
			if v[j], err = d.u32(); err != nil {
				return nil, err
			}
		}
		action, err := d.u16()
		if err != nil {
			return nil, err
		}
		key = AVKey{Source: TypeID(v[0]), Target: TypeID(v[1]), Class: ClassID(v[2]), Action: RuleAction(action)}
		if err := p.validKey(key); err != nil {
			return nil, xerrors.Errorf("rule %d: %w", i, err)
		}
		datum, err := d.avDatum(p, key.Action)
		if err != nil {
			return nil, xerrors.Errorf("rule %d: %w", i, err)
		}
		if datum.NewType != 0 {
			if t, _ := p.Type(datum.NewType); t.Attribute {
				warnings = append(warnings, fmt.Sprintf("%s rule for %s results in attribute %s",
					key.Action, p.describe(key), t.Name))
			}
		}
		if _, dup := p.avtab[key]; dup {
			warnings = append(warnings, fmt.Sprintf("merged duplicate %s rule for %s", key.Action, p.describe(key)))
		}
		if !p.insertRule(key, datum) {
			return nil, fmt.Errorf("conflicting %s rules for %s", key.Action, p.describe(key))
		}
	}
	return warnings, nil
}

func (d *decoder) avDatum(p *Policy, action RuleAction) (*AVDatum, error) {
	datum := &AVDatum{}
	switch {
	case action.IsTypeRule():
		t, err := d.u32()
		if err != nil {
			return nil, err
		}
		if err := p.validType(TypeID(t)); err != nil {
			return nil, err
		}
		datum.NewType = TypeID(t)
	case action.IsXPerm():
		n, err := d.count(34)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			var b XPermBlock
			if b.Specified, err = d.u8(); err != nil {
				return nil, err
			}
			if b.Specified != XPermsIoctlFunction && b.Specified != XPermsIoctlDriver {
				return nil, fmt.Errorf("unknown extended permission kind %d", b.Specified)
			}
			if b.Driver, err = d.u8(); err != nil {
				return nil, err
			}
			for j := range b.Perms {
				if b.Perms[j], err = d.u32(); err != nil {
					return nil, err
				}
			}
			datum.merge(&AVDatum{XPerms: []XPermBlock{b}})
		}
	default:
		perms, err := d.u32()
		if err != nil {
			return nil, err
		}
		datum.Perms = perms
	}
	return datum, nil
}
