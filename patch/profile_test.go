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

package patch_test

import (
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/snapcore/chargelimit-selinux/patch"
	"github.com/snapcore/chargelimit-selinux/sepolicy"
	"github.com/snapcore/chargelimit-selinux/testutil"
)

type profileSuite struct{}

var _ = Suite(&profileSuite{})

func (s *profileSuite) TestDefaultProfileValid(c *C) {
	prof := patch.DefaultProfile()
	c.Assert(prof.Validate(), IsNil)
	c.Check(prof.Clones, DeepEquals, []patch.CloneSpec{
		{Source: "untrusted_app", Target: "chargelimit_app"},
		{Source: "untrusted_app_userfaultfd", Target: "chargelimit_app_userfaultfd"},
	})
	c.Check(prof.Rules, HasLen, 2)
}

func (s *profileSuite) TestParseProfile(c *C) {
	prof, err := patch.ParseProfile([]byte(`
clones:
  - source: untrusted_app
    target: my_app
rules:
  - source: my_app
    target: hal_foo
    class: binder
    perms: [call, transfer]
  - source: my_app
    target: hal_foo
    class: binder
    perms: [call]
    action: auditallow
`))
	c.Assert(err, IsNil)
	c.Check(prof, DeepEquals, &patch.Profile{
		Clones: []patch.CloneSpec{{Source: "untrusted_app", Target: "my_app"}},
		Rules: []patch.RuleSpec{
			{Source: "my_app", Target: "hal_foo", Class: "binder", Perms: []string{"call", "transfer"}, Action: sepolicy.RuleAllow},
			{Source: "my_app", Target: "hal_foo", Class: "binder", Perms: []string{"call"}, Action: sepolicy.RuleAuditAllow},
		},
	})
}

func (s *profileSuite) TestParseProfileErrors(c *C) {
	for _, t := range []struct {
		in  string
		err string
	}{
		{"", `cannot parse profile: empty document`},
		{"clones: [}", `cannot parse profile: yaml: .*`},
		{"bogus: 1", `cannot parse profile: yaml: unmarshal errors:\n.*field bogus not found.*`},
		{"clones: []", `profile has neither clones nor rules`},
		{"clones: [{source: a}]", `clone 0: source and target must be set`},
		{"clones: [{source: a, target: a}]", `clone 0: cannot clone "a" onto itself`},
		{"clones: [{source: a, target: b}, {source: c, target: b}]", `clone 1: target "b" is cloned more than once`},
		{"clones: [{source: a, target: b}, {source: a, target: c}]", `clone 1: source "a" is cloned more than once`},
		{"clones: [{source: a, target: b}, {source: b, target: c}]", `cannot clone "b": it is itself the target of a clone`},
		{"rules: [{source: a, target: b, perms: [x]}]", `rule 0: source, target and class must be set`},
		{"rules: [{source: a, target: b, class: c}]", `rule 0: no permissions given`},
		{"rules: [{source: a, target: b, class: c, perms: [x], action: permit}]", `(?s)cannot parse profile: unknown rule action "permit"`},
		{"rules: [{source: a, target: b, class: c, perms: [x], action: type_transition}]", `rule 0: unsupported action type_transition`},
		{"rules: [{source: a, target: b, class: c, perms: [x], action: allowxperm}]", `rule 0: unsupported action allowxperm`},
	} {
		_, err := patch.ParseProfile([]byte(t.in))
		c.Check(err, ErrorMatches, t.err, Commentf("%q", t.in))
		c.Check(err, testutil.ErrorIs, sepolicy.ErrConfig, Commentf("%q", t.in))
	}
}

func (s *profileSuite) TestLoadProfile(c *C) {
	p := filepath.Join(c.MkDir(), "profile.yaml")
	c.Assert(os.WriteFile(p, []byte("rules: [{source: a, target: b, class: c, perms: [d]}]\n"), 0644), IsNil)
	prof, err := patch.LoadProfile(p)
	c.Assert(err, IsNil)
	c.Check(prof.Rules[0].Action, Equals, sepolicy.RuleAllow)

	c.Assert(os.WriteFile(p, []byte("rules: []\n"), 0644), IsNil)
	_, err = patch.LoadProfile(p)
	c.Check(err, ErrorMatches, `invalid profile ".*/profile.yaml": profile has neither clones nor rules`)

	_, err = patch.LoadProfile(filepath.Join(c.MkDir(), "missing.yaml"))
	c.Check(err, ErrorMatches, `cannot read profile: open .*/missing.yaml: no such file or directory`)
	c.Check(err, testutil.ErrorIs, sepolicy.ErrIO)
}
