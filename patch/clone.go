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

package patch

import (
	"github.com/snapcore/chargelimit-selinux/logger"
	"github.com/snapcore/chargelimit-selinux/sepolicy"
)

type clonePlan struct {
	src  sepolicy.TypeID
	name string
}

// typeRef is a resolved type, or the name of a type that will only exist
// once the clones are created.
type typeRef struct {
	id   sepolicy.TypeID
	name string
}

type rulePlan struct {
	spec           *RuleSpec
	source, target typeRef
	class          sepolicy.ClassID
	perms          []sepolicy.PermID
}

type plan struct {
	clones []clonePlan
	rules  []rulePlan
}

func lookupType(pol *sepolicy.Policy, name string) (sepolicy.TypeID, error) {
	id, ok := pol.TypeID(name)
	if !ok {
		return 0, sepolicy.Errorf(sepolicy.ErrKindLookup, "type not found: %s", name)
	}
	return id, nil
}

// resolve looks up every name of prof without modifying pol.
func resolve(pol *sepolicy.Policy, prof *Profile) (*plan, error) {
	pl := &plan{}
	pending := make(map[string]bool, len(prof.Clones))
	for _, cl := range prof.Clones {
		src, err := lookupType(pol, cl.Source)
		if err != nil {
			return nil, err
		}
		if t, _ := pol.Type(src); t.Attribute {
			return nil, sepolicy.Errorf(sepolicy.ErrKindConfig, "cannot clone attribute %s", cl.Source)
		}
		if _, ok := pol.TypeID(cl.Target); ok {
			return nil, sepolicy.Errorf(sepolicy.ErrKindNameCollision, "type %q already exists", cl.Target)
		}
		pending[cl.Target] = true
		pl.clones = append(pl.clones, clonePlan{src: src, name: cl.Target})
	}

	ref := func(name string) (typeRef, error) {
		if pending[name] {
			return typeRef{name: name}, nil
		}
		id, err := lookupType(pol, name)
		return typeRef{id: id, name: name}, err
	}
	for i := range prof.Rules {
		r := &prof.Rules[i]
		rp := rulePlan{spec: r}
		var err error
		if rp.source, err = ref(r.Source); err != nil {
			return nil, err
		}
		if rp.target, err = ref(r.Target); err != nil {
			return nil, err
		}
		class, ok := pol.ClassID(r.Class)
		if !ok {
			return nil, sepolicy.Errorf(sepolicy.ErrKindLookup, "class not found: %s", r.Class)
		}
		rp.class = class
		for _, name := range r.Perms {
			perm, ok := pol.PermID(class, name)
			if !ok {
				return nil, sepolicy.Errorf(sepolicy.ErrKindLookup, "permission not found in class %s: %s", r.Class, name)
			}
			rp.perms = append(rp.perms, perm)
		}
		pl.rules = append(pl.rules, rp)
	}
	return pl, nil
}

// cloneTypes creates every clone and makes it equivalent to its source.
// All rules are copied in one pass so that a rule between two cloned
// domains is copied to a rule between the two clones.
func cloneTypes(pol *sepolicy.Policy, clones []clonePlan) error {
	if len(clones) == 0 {
		return nil
	}
	mapping := make(map[sepolicy.TypeID]sepolicy.TypeID, len(clones))
	for _, cl := range clones {
		dst, err := pol.CreateType(cl.name, false)
		if err != nil {
			return sepolicy.WithContext(err, "cannot create type %s", cl.name)
		}
		srcName := pol.TypeName(cl.src)
		if err := pol.CopyRoles(cl.src, dst); err != nil {
			return sepolicy.WithContext(err, "cannot copy roles from %s to %s", srcName, cl.name)
		}
		if err := pol.CopyAttributes(cl.src, dst); err != nil {
			return sepolicy.WithContext(err, "cannot copy attributes from %s to %s", srcName, cl.name)
		}
		pol.CopyConstraints(cl.src, dst)
		mapping[cl.src] = dst
		logger.Debugf("cloned %s into %s", srcName, cl.name)
	}
	n, err := pol.CopyAVTabRules(sepolicy.MapTypes(mapping))
	if err != nil {
		return sepolicy.WithContext(err, "cannot copy rules")
	}
	logger.Debugf("copied %d rules", n)
	return nil
}

func (r typeRef) resolve(pol *sepolicy.Policy) (sepolicy.TypeID, error) {
	if r.id != 0 {
		return r.id, nil
	}
	return lookupType(pol, r.name)
}

// graft adds the rules of the plan, merging into existing rules.
func graft(pol *sepolicy.Policy, rules []rulePlan) error {
	for _, rp := range rules {
		src, err := rp.source.resolve(pol)
		if err != nil {
			return err
		}
		tgt, err := rp.target.resolve(pol)
		if err != nil {
			return err
		}
		for _, perm := range rp.perms {
			pol.SetRule(src, tgt, rp.class, perm, rp.spec.Action)
		}
		logger.Debugf("granted %s", rp.spec)
	}
	return nil
}
