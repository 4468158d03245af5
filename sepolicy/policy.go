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

// Package sepolicy holds an in-memory SELinux policy graph and the
// primitives needed to derive new domains from existing ones.
package sepolicy

import (
	"sort"
)

// MaxClassPerms is the number of permissions an access vector can hold.
const MaxClassPerms = 32

// Type is a type or, when Attribute is set, an attribute grouping types.
type Type struct {
	ID        TypeID
	Name      string
	Attribute bool
}

// Role is a named set of types.
type Role struct {
	ID    RoleID
	Name  string
	Types *TypeSet
}

// Class is an object class. Perms[i] is the permission with PermID i+1.
type Class struct {
	ID          ClassID
	Name        string
	Perms       []string
	Constraints []*Constraint
}

// Policy is a fully materialized policy graph. It is not safe for
// concurrent use.
type Policy struct {
	types     []*Type
	typeNames map[string]TypeID

	roles     []*Role
	roleNames map[string]RoleID

	classes    []*Class
	classNames map[string]ClassID

	// attribute -> member types
	attrMembers map[TypeID]*TypeSet

	avtab map[AVKey]*AVDatum
}

// New returns an empty policy.
func New() *Policy {
	return &Policy{
		typeNames:   make(map[string]TypeID),
		roleNames:   make(map[string]RoleID),
		classNames:  make(map[string]ClassID),
		attrMembers: make(map[TypeID]*TypeSet),
		avtab:       make(map[AVKey]*AVDatum),
	}
}

// TypeID looks up a type or attribute by name.
func (p *Policy) TypeID(name string) (TypeID, bool) {
	id, ok := p.typeNames[name]
	return id, ok
}

// ClassID looks up a class by name.
func (p *Policy) ClassID(name string) (ClassID, bool) {
	id, ok := p.classNames[name]
	return id, ok
}

// PermID looks up a permission of the given class by name.
func (p *Policy) PermID(class ClassID, name string) (PermID, bool) {
	cls := p.class(class)
	if cls == nil {
		return 0, false
	}
	for i, perm := range cls.Perms {
		if perm == name {
			return PermID(i + 1), true
		}
	}
	return 0, false
}

// RoleID looks up a role by name.
func (p *Policy) RoleID(name string) (RoleID, bool) {
	id, ok := p.roleNames[name]
	return id, ok
}

func (p *Policy) typ(id TypeID) *Type {
	if id == 0 || int(id) > len(p.types) {
		return nil
	}
	return p.types[id-1]
}

func (p *Policy) class(id ClassID) *Class {
	if id == 0 || int(id) > len(p.classes) {
		return nil
	}
	return p.classes[id-1]
}

func (p *Policy) role(id RoleID) *Role {
	if id == 0 || int(id) > len(p.roles) {
		return nil
	}
	return p.roles[id-1]
}

// Type returns a copy of the type with the given ID.
func (p *Policy) Type(id TypeID) (Type, bool) {
	t := p.typ(id)
	if t == nil {
		return Type{}, false
	}
	return *t, true
}

// TypeName returns the name of the type, or "" if id is invalid.
func (p *Policy) TypeName(id TypeID) string {
	if t := p.typ(id); t != nil {
		return t.Name
	}
	return ""
}

// ClassName returns the name of the class, or "" if id is invalid.
func (p *Policy) ClassName(id ClassID) string {
	if c := p.class(id); c != nil {
		return c.Name
	}
	return ""
}

// NumTypes, NumRoles and NumClasses return the number of entries; IDs run
// from 1 to that number.
func (p *Policy) NumTypes() int   { return len(p.types) }
func (p *Policy) NumRoles() int   { return len(p.roles) }
func (p *Policy) NumClasses() int { return len(p.classes) }

func (p *Policy) validType(id TypeID) error {
	if p.typ(id) == nil {
		return Errorf(ErrKindLookup, "invalid type ID %d", id)
	}
	return nil
}

func (p *Policy) validClass(id ClassID) error {
	if p.class(id) == nil {
		return Errorf(ErrKindLookup, "invalid class ID %d", id)
	}
	return nil
}

// CreateType adds a new type or attribute. It fails without modifying the
// policy if the name is already taken.
func (p *Policy) CreateType(name string, attribute bool) (TypeID, error) {
	if name == "" {
		return 0, Errorf(ErrKindFormat, "cannot create type with empty name")
	}
	if _, ok := p.typeNames[name]; ok {
		return 0, Errorf(ErrKindNameCollision, "type %q already exists", name)
	}
	id := TypeID(len(p.types) + 1)
	p.types = append(p.types, &Type{ID: id, Name: name, Attribute: attribute})
	p.typeNames[name] = id
	if attribute {
		p.attrMembers[id] = &TypeSet{}
	}
	return id, nil
}

// AddRole adds a new role with the given member types.
func (p *Policy) AddRole(name string, types ...TypeID) (RoleID, error) {
	if name == "" {
		return 0, Errorf(ErrKindFormat, "cannot create role with empty name")
	}
	if _, ok := p.roleNames[name]; ok {
		return 0, Errorf(ErrKindNameCollision, "role %q already exists", name)
	}
	for _, t := range types {
		if err := p.validType(t); err != nil {
			return 0, err
		}
	}
	id := RoleID(len(p.roles) + 1)
	p.roles = append(p.roles, &Role{ID: id, Name: name, Types: NewTypeSet(types...)})
	p.roleNames[name] = id
	return id, nil
}

// AddClass adds a new class owning the given permissions, in bit order.
func (p *Policy) AddClass(name string, perms ...string) (ClassID, error) {
	if name == "" {
		return 0, Errorf(ErrKindFormat, "cannot create class with empty name")
	}
	if _, ok := p.classNames[name]; ok {
		return 0, Errorf(ErrKindNameCollision, "class %q already exists", name)
	}
	if len(perms) > MaxClassPerms {
		return 0, Errorf(ErrKindFormat, "class %q has %d permissions, at most %d are supported", name, len(perms), MaxClassPerms)
	}
	seen := make(map[string]bool, len(perms))
	for _, perm := range perms {
		if perm == "" || seen[perm] {
			return 0, Errorf(ErrKindFormat, "class %q has an empty or duplicate permission %q", name, perm)
		}
		seen[perm] = true
	}
	id := ClassID(len(p.classes) + 1)
	p.classes = append(p.classes, &Class{ID: id, Name: name, Perms: append([]string(nil), perms...)})
	p.classNames[name] = id
	return id, nil
}

// AddConstraint attaches a constraint to a class.
func (p *Policy) AddConstraint(class ClassID, perms uint32, expr *ConstraintExpr) error {
	cls := p.class(class)
	if cls == nil {
		return Errorf(ErrKindLookup, "invalid class ID %d", class)
	}
	if expr == nil {
		return Errorf(ErrKindFormat, "cannot add empty constraint to class %q", cls.Name)
	}
	cls.Constraints = append(cls.Constraints, &Constraint{Perms: perms, Expr: expr})
	return nil
}

// Constraints returns the constraints of a class. The expressions are
// shared with the policy.
func (p *Policy) Constraints(class ClassID) []*Constraint {
	if cls := p.class(class); cls != nil {
		return cls.Constraints
	}
	return nil
}

// AddAttributeMember makes t a member of the attribute attr.
func (p *Policy) AddAttributeMember(attr, t TypeID) error {
	members, ok := p.attrMembers[attr]
	if !ok {
		return Errorf(ErrKindLookup, "type ID %d is not an attribute", attr)
	}
	if err := p.validType(t); err != nil {
		return err
	}
	members.Add(t)
	return nil
}

// AttributesOf returns the attributes t is a member of, in ID order.
func (p *Policy) AttributesOf(t TypeID) []TypeID {
	var attrs []TypeID
	for attr, members := range p.attrMembers {
		if members.Has(t) {
			attrs = append(attrs, attr)
		}
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i] < attrs[j] })
	return attrs
}

// RolesOf returns the roles t is a member of, in ID order.
func (p *Policy) RolesOf(t TypeID) []RoleID {
	var roles []RoleID
	for _, r := range p.roles {
		if r.Types.Has(t) {
			roles = append(roles, r.ID)
		}
	}
	return roles
}
