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

// SetRule grants perm on target of class to source for the given action.
// An existing rule with the same key gets the permission bit merged in.
// A perm that does not map to a bit of the access vector is ignored.
func (p *Policy) SetRule(source, target TypeID, class ClassID, perm PermID, action RuleAction) {
	if perm.Bit() == 0 {
		return
	}
	key := AVKey{Source: source, Target: target, Class: class, Action: action}
	if cur, ok := p.avtab[key]; ok {
		cur.Perms |= perm.Bit()
		return
	}
	p.avtab[key] = &AVDatum{Perms: perm.Bit()}
}

// StripNoAudit removes every dontaudit and dontauditxperm rule and returns
// how many were removed.
func (p *Policy) StripNoAudit() int {
	n := 0
	for key := range p.avtab {
		if key.Action.IsNoAudit() {
			delete(p.avtab, key)
			n++
		}
	}
	return n
}
