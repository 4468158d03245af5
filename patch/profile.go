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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/snapcore/chargelimit-selinux/sepolicy"
)

// CloneSpec asks for Target to be created as a copy of the Source domain.
type CloneSpec struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// RuleSpec grants Perms of Class on Target to Source. Source and Target
// may name types created by a CloneSpec of the same profile.
type RuleSpec struct {
	Source string              `yaml:"source"`
	Target string              `yaml:"target"`
	Class  string              `yaml:"class"`
	Perms  []string            `yaml:"perms"`
	Action sepolicy.RuleAction `yaml:"action,omitempty"`
}

func (r *RuleSpec) String() string {
	return fmt.Sprintf("%s %s %s:%s %v", r.Action, r.Source, r.Target, r.Class, r.Perms)
}

// Profile describes the domains to derive and the rules to graft onto them.
type Profile struct {
	Clones []CloneSpec `yaml:"clones"`
	Rules  []RuleSpec  `yaml:"rules"`
}

// DefaultProfile returns the profile used when none is given: a copy of
// the untrusted app domain that may talk to the Google battery HAL.
func DefaultProfile() *Profile {
	return &Profile{
		Clones: []CloneSpec{
			{Source: "untrusted_app", Target: "chargelimit_app"},
			{Source: "untrusted_app_userfaultfd", Target: "chargelimit_app_userfaultfd"},
		},
		Rules: []RuleSpec{
			// see that the HAL service exists
			{
				Source: "chargelimit_app",
				Target: "hal_googlebattery_service",
				Class:  "service_manager",
				Perms:  []string{"find"},
				Action: sepolicy.RuleAllow,
			},
			// invoke methods on the HAL service
			{
				Source: "chargelimit_app",
				Target: "hal_googlebattery",
				Class:  "binder",
				Perms:  []string{"call"},
				Action: sepolicy.RuleAllow,
			},
		},
	}
}

// ParseProfile decodes a YAML profile. Unknown keys are rejected and rules
// without an action default to allow.
func ParseProfile(data []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var prof Profile
	if err := dec.Decode(&prof); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, sepolicy.Errorf(sepolicy.ErrKindConfig, "cannot parse profile: empty document")
		}
		return nil, sepolicy.Wrap(sepolicy.ErrKindConfig, err, "cannot parse profile")
	}
	for i := range prof.Rules {
		if prof.Rules[i].Action == 0 {
			prof.Rules[i].Action = sepolicy.RuleAllow
		}
	}
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	return &prof, nil
}

// LoadProfile reads and parses the profile at path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sepolicy.Wrap(sepolicy.ErrKindIO, err, "cannot read profile")
	}
	prof, err := ParseProfile(data)
	if err != nil {
		return nil, sepolicy.WithContext(err, "invalid profile %q", path)
	}
	return prof, nil
}

// Validate checks the profile for structural problems. Names are resolved
// against a policy only when the profile is applied.
func (prof *Profile) Validate() error {
	if len(prof.Clones) == 0 && len(prof.Rules) == 0 {
		return sepolicy.Errorf(sepolicy.ErrKindConfig, "profile has neither clones nor rules")
	}
	targets := make(map[string]bool, len(prof.Clones))
	sources := make(map[string]bool, len(prof.Clones))
	for i, cl := range prof.Clones {
		if cl.Source == "" || cl.Target == "" {
			return sepolicy.Errorf(sepolicy.ErrKindConfig, "clone %d: source and target must be set", i)
		}
		if cl.Source == cl.Target {
			return sepolicy.Errorf(sepolicy.ErrKindConfig, "clone %d: cannot clone %q onto itself", i, cl.Source)
		}
		if targets[cl.Target] {
			return sepolicy.Errorf(sepolicy.ErrKindConfig, "clone %d: target %q is cloned more than once", i, cl.Target)
		}
		// one rewrite maps each source to a single clone
		if sources[cl.Source] {
			return sepolicy.Errorf(sepolicy.ErrKindConfig, "clone %d: source %q is cloned more than once", i, cl.Source)
		}
		targets[cl.Target] = true
		sources[cl.Source] = true
	}
	for _, cl := range prof.Clones {
		if targets[cl.Source] {
			return sepolicy.Errorf(sepolicy.ErrKindConfig, "cannot clone %q: it is itself the target of a clone", cl.Source)
		}
	}
	for i, r := range prof.Rules {
		if r.Source == "" || r.Target == "" || r.Class == "" {
			return sepolicy.Errorf(sepolicy.ErrKindConfig, "rule %d: source, target and class must be set", i)
		}
		if len(r.Perms) == 0 {
			return sepolicy.Errorf(sepolicy.ErrKindConfig, "rule %d: no permissions given", i)
		}
		if !r.Action.Valid() || r.Action.IsXPerm() || r.Action.IsTypeRule() {
			return sepolicy.Errorf(sepolicy.ErrKindConfig, "rule %d: unsupported action %s", i, r.Action)
		}
	}
	return nil
}
