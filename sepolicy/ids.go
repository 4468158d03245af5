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

// TypeID identifies a type or attribute. Valid IDs start at 1.
type TypeID uint32

// RoleID identifies a role. Valid IDs start at 1.
type RoleID uint32

// ClassID identifies an object class. Valid IDs start at 1.
type ClassID uint32

// PermID identifies a permission within its class. Permission N is bit
// N-1 of an access vector.
type PermID uint32

// Bit returns the access vector bit for the permission.
func (p PermID) Bit() uint32 {
	if p == 0 || p > 32 {
		return 0
	}
	return 1 << (p - 1)
}

// RuleAction is the kind of an access vector table entry.
type RuleAction uint16

// The values match the specified field of kernel avtab keys.
const (
	RuleAllow           RuleAction = 0x0001
	RuleAuditAllow      RuleAction = 0x0002
	RuleDontAudit       RuleAction = 0x0004
	RuleNeverAllow      RuleAction = 0x0080
	RuleTypeTransition  RuleAction = 0x0010
	RuleTypeMember      RuleAction = 0x0020
	RuleTypeChange      RuleAction = 0x0040
	RuleAllowXPerm      RuleAction = 0x0100
	RuleAuditAllowXPerm RuleAction = 0x0200
	RuleDontAuditXPerm  RuleAction = 0x0400
	RuleNeverAllowXPerm RuleAction = 0x0800
)

var ruleActionNames = map[RuleAction]string{
	RuleAllow:           "allow",
	RuleAuditAllow:      "auditallow",
	RuleDontAudit:       "dontaudit",
	RuleNeverAllow:      "neverallow",
	RuleTypeTransition:  "type_transition",
	RuleTypeMember:      "type_member",
	RuleTypeChange:      "type_change",
	RuleAllowXPerm:      "allowxperm",
	RuleAuditAllowXPerm: "auditallowxperm",
	RuleDontAuditXPerm:  "dontauditxperm",
	RuleNeverAllowXPerm: "neverallowxperm",
}

func (a RuleAction) String() string {
	if name, ok := ruleActionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("RuleAction(%#x)", uint16(a))
}

// Valid reports whether a is a known action.
func (a RuleAction) Valid() bool {
	_, ok := ruleActionNames[a]
	return ok
}

// IsXPerm reports whether rules of this action carry extended permissions.
func (a RuleAction) IsXPerm() bool {
	return a&(RuleAllowXPerm|RuleAuditAllowXPerm|RuleDontAuditXPerm|RuleNeverAllowXPerm) != 0
}

// IsTypeRule reports whether rules of this action name a resulting type
// rather than a permission vector.
func (a RuleAction) IsTypeRule() bool {
	return a&(RuleTypeTransition|RuleTypeMember|RuleTypeChange) != 0
}

// IsNoAudit reports whether rules of this action suppress auditing.
func (a RuleAction) IsNoAudit() bool {
	return a == RuleDontAudit || a == RuleDontAuditXPerm
}

// ParseRuleAction returns the action with the given policy language name.
func ParseRuleAction(name string) (RuleAction, error) {
	for a, n := range ruleActionNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown rule action %q", name)
}

func (a RuleAction) MarshalYAML() (interface{}, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid rule action %#x", uint16(a))
	}
	return a.String(), nil
}

func (a *RuleAction) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	parsed, err := ParseRuleAction(name)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
