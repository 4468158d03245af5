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

package sepolicy_test

import (
	. "gopkg.in/check.v1"

	"github.com/snapcore/chargelimit-selinux/sepolicy"
	"github.com/snapcore/chargelimit-selinux/testutil"
)

type cloneSuite struct {
	testutil.BaseTest
	f     *fixture
	clone sepolicy.TypeID
}

var _ = Suite(&cloneSuite{})

func (s *cloneSuite) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)
	s.f = newFixture(c)
	s.clone = mustType(c, s.f.p, "chargelimit_app", false)
}

func (s *cloneSuite) TestCopyRoles(c *C) {
	p := s.f.p
	c.Assert(p.CopyRoles(s.f.app, s.clone), IsNil)
	c.Check(p.RolesOf(s.clone), DeepEquals, p.RolesOf(s.f.app))
	// roles the source is not part of stay untouched
	other, _ := p.RoleID("unrelated_r")
	c.Check(p.RolesOf(s.clone), Not(testutil.Contains), other)
}

func (s *cloneSuite) TestCopyRolesInvalid(c *C) {
	err := s.f.p.CopyRoles(sepolicy.TypeID(99), s.clone)
	c.Check(err, ErrorMatches, `invalid type ID 99`)
	c.Check(err, testutil.ErrorIs, sepolicy.ErrLookup)
	err = s.f.p.CopyRoles(s.f.app, sepolicy.TypeID(0))
	c.Check(err, ErrorMatches, `invalid type ID 0`)
}

func (s *cloneSuite) TestCopyAttributes(c *C) {
	p := s.f.p
	c.Assert(p.CopyAttributes(s.f.app, s.clone), IsNil)
	c.Check(p.AttributesOf(s.clone), DeepEquals, []sepolicy.TypeID{s.f.domain, s.f.appdomain})
	c.Check(p.AttributesOf(s.clone), DeepEquals, p.AttributesOf(s.f.app))

	c.Check(p.CopyAttributes(sepolicy.TypeID(99), s.clone), ErrorMatches, `invalid type ID 99`)
}

func (s *cloneSuite) TestCopyAttributesNone(c *C) {
	p := s.f.p
	c.Assert(p.CopyAttributes(s.f.appUffd, s.clone), IsNil)
	c.Check(p.AttributesOf(s.clone), HasLen, 0)
}

func (s *cloneSuite) TestCopyConstraints(c *C) {
	p := s.f.p
	leafT1 := sepolicy.Names(sepolicy.OperandType, sepolicy.OpEq, s.f.app, s.f.other)
	leafT2 := sepolicy.Names(sepolicy.OperandType|sepolicy.OperandTarget, sepolicy.OpNeq, s.f.app)
	unrelated := sepolicy.Names(sepolicy.OperandType, sepolicy.OpEq, s.f.other)
	// a user operand leaf holds user IDs, not types
	userLeaf := sepolicy.Names(sepolicy.OperandUser, sepolicy.OpEq, s.f.app)
	expr := sepolicy.Or(
		sepolicy.And(leafT1, sepolicy.Not(leafT2)),
		sepolicy.And(sepolicy.Attr(sepolicy.OperandUser, sepolicy.OpEq), sepolicy.Or(unrelated, userLeaf)),
	)
	c.Assert(p.AddConstraint(s.f.binder, s.f.call.Bit(), expr), IsNil)

	p.CopyConstraints(s.f.app, s.clone)

	c.Check(leafT1.Names.IDs(), DeepEquals, []sepolicy.TypeID{s.f.app, s.f.other, s.clone})
	c.Check(leafT2.Names.IDs(), DeepEquals, []sepolicy.TypeID{s.f.app, s.clone})
	c.Check(unrelated.Names.IDs(), DeepEquals, []sepolicy.TypeID{s.f.other})
	c.Check(userLeaf.Names.IDs(), DeepEquals, []sepolicy.TypeID{s.f.app})

	// every type leaf holding the source now holds the clone as well
	p.Constraints(s.f.binder)[0].Expr.Walk(func(e *sepolicy.ConstraintExpr) {
		if e.Kind == sepolicy.ExprNames && e.Operand.IsType() {
			c.Check(e.Names.Has(s.clone), Equals, e.Names.Has(s.f.app))
		}
	})
}

func (s *cloneSuite) TestCopyAVTabRulesBothSides(c *C) {
	f := s.f
	p := f.p
	outgoing := f.allow(c, f.app, f.other, f.binder, f.call.Bit())
	incoming := f.allow(c, f.other, f.app, f.binder, f.call.Bit()|f.transfer.Bit())
	self := f.allow(c, f.app, f.app, f.binder, f.call.Bit())
	f.allow(c, f.other, f.other, f.file, f.read.Bit())
	before := p.Rules()

	n, err := p.CopyAVTabRules(sepolicy.MapTypes(map[sepolicy.TypeID]sepolicy.TypeID{f.app: s.clone}))
	c.Assert(err, IsNil)
	c.Check(n, Equals, 3)
	c.Check(p.NumRules(), Equals, 7)

	check := func(orig sepolicy.AVKey, src, tgt sepolicy.TypeID) {
		want, ok := p.Rule(orig)
		c.Assert(ok, Equals, true)
		got, ok := p.Rule(sepolicy.AVKey{Source: src, Target: tgt, Class: orig.Class, Action: orig.Action})
		c.Assert(ok, Equals, true, Commentf("missing copy of %+v", orig))
		c.Check(got, DeepEquals, want)
	}
	check(outgoing, s.clone, f.other)
	check(incoming, f.other, s.clone)
	check(self, s.clone, s.clone)

	// a self rule maps to a self rule only
	for _, k := range []sepolicy.AVKey{
		{Source: s.clone, Target: f.app, Class: f.binder, Action: sepolicy.RuleAllow},
		{Source: f.app, Target: s.clone, Class: f.binder, Action: sepolicy.RuleAllow},
	} {
		_, ok := p.Rule(k)
		c.Check(ok, Equals, false)
	}
	_, ok := p.Rule(sepolicy.AVKey{Source: s.clone, Target: s.clone, Class: f.file, Action: sepolicy.RuleAllow})
	c.Check(ok, Equals, false)

	// original rules are all still there, untouched
	for _, r := range before {
		d, ok := p.Rule(r.AVKey)
		c.Assert(ok, Equals, true)
		c.Check(d, DeepEquals, r.AVDatum)
	}
}

func (s *cloneSuite) TestCopyAVTabRulesKeepsDatum(c *C) {
	f := s.f
	p := f.p
	xperm := sepolicy.AVKey{Source: f.app, Target: f.other, Class: f.file, Action: sepolicy.RuleAllowXPerm}
	block := sepolicy.XPermBlock{Specified: sepolicy.XPermsIoctlFunction, Driver: 0x89, Perms: [8]uint32{0: 0xff}}
	c.Assert(p.AddRule(xperm, sepolicy.AVDatum{XPerms: []sepolicy.XPermBlock{block}}), IsNil)
	trans := sepolicy.AVKey{Source: f.app, Target: f.other, Class: f.file, Action: sepolicy.RuleTypeTransition}
	c.Assert(p.AddRule(trans, sepolicy.AVDatum{NewType: f.appUffd}), IsNil)
	noaudit := sepolicy.AVKey{Source: f.other, Target: f.app, Class: f.file, Action: sepolicy.RuleDontAudit}
	c.Assert(p.AddRule(noaudit, sepolicy.AVDatum{Perms: f.write.Bit()}), IsNil)

	_, err := p.CopyAVTabRules(sepolicy.MapTypes(map[sepolicy.TypeID]sepolicy.TypeID{f.app: s.clone}))
	c.Assert(err, IsNil)

	d, ok := p.Rule(sepolicy.AVKey{Source: s.clone, Target: f.other, Class: f.file, Action: sepolicy.RuleAllowXPerm})
	c.Assert(ok, Equals, true)
	c.Check(d.XPerms, DeepEquals, []sepolicy.XPermBlock{block})
	d, ok = p.Rule(sepolicy.AVKey{Source: s.clone, Target: f.other, Class: f.file, Action: sepolicy.RuleTypeTransition})
	c.Assert(ok, Equals, true)
	c.Check(d.NewType, Equals, f.appUffd)
	d, ok = p.Rule(sepolicy.AVKey{Source: f.other, Target: s.clone, Class: f.file, Action: sepolicy.RuleDontAudit})
	c.Assert(ok, Equals, true)
	c.Check(d.Perms, Equals, f.write.Bit())
}

func (s *cloneSuite) TestCopyAVTabRulesPairs(c *C) {
	f := s.f
	p := f.p
	cloneUffd := mustType(c, p, "chargelimit_app_userfaultfd", false)
	f.allow(c, f.app, f.appUffd, f.file, f.read.Bit())

	n, err := p.CopyAVTabRules(sepolicy.MapTypes(map[sepolicy.TypeID]sepolicy.TypeID{
		f.app:     s.clone,
		f.appUffd: cloneUffd,
	}))
	c.Assert(err, IsNil)
	c.Check(n, Equals, 1)
	c.Check(p.NumRules(), Equals, 2)
	_, ok := p.Rule(sepolicy.AVKey{Source: s.clone, Target: cloneUffd, Class: f.file, Action: sepolicy.RuleAllow})
	c.Check(ok, Equals, true)
}

func (s *cloneSuite) TestCopyAVTabRulesInvalidInsertsNothing(c *C) {
	f := s.f
	p := f.p
	f.allow(c, f.app, f.other, f.binder, f.call.Bit())
	f.allow(c, f.other, f.app, f.binder, f.call.Bit())

	calls := 0
	_, err := p.CopyAVTabRules(func(t sepolicy.Triple) (sepolicy.Triple, bool) {
		calls++
		if t.Source == f.other {
			t.Source = sepolicy.TypeID(99)
		} else {
			t.Source = s.clone
		}
		return t, true
	})
	c.Check(err, ErrorMatches, `cannot copy allow rule system_server untrusted_app:binder: invalid type ID 99`)
	c.Check(err, testutil.ErrorIs, sepolicy.ErrLookup)
	c.Check(calls, Equals, 2)
	c.Check(p.NumRules(), Equals, 2)
}

func (s *cloneSuite) TestCopyAVTabRulesNoMatch(c *C) {
	f := s.f
	f.allow(c, f.other, f.other, f.binder, f.call.Bit())
	n, err := f.p.CopyAVTabRules(sepolicy.MapTypes(map[sepolicy.TypeID]sepolicy.TypeID{f.app: s.clone}))
	c.Assert(err, IsNil)
	c.Check(n, Equals, 0)
	c.Check(f.p.NumRules(), Equals, 1)
}

func (s *cloneSuite) TestMapTypes(c *C) {
	rewrite := sepolicy.MapTypes(map[sepolicy.TypeID]sepolicy.TypeID{1: 10, 2: 20})
	for _, t := range []struct {
		in, out sepolicy.Triple
		ok      bool
	}{
		{sepolicy.Triple{1, 3, 7}, sepolicy.Triple{10, 3, 7}, true},
		{sepolicy.Triple{3, 1, 7}, sepolicy.Triple{3, 10, 7}, true},
		{sepolicy.Triple{1, 1, 7}, sepolicy.Triple{10, 10, 7}, true},
		{sepolicy.Triple{1, 2, 7}, sepolicy.Triple{10, 20, 7}, true},
		{sepolicy.Triple{3, 4, 7}, sepolicy.Triple{}, false},
	} {
		out, ok := rewrite(t.in)
		c.Check(ok, Equals, t.ok, Commentf("%+v", t.in))
		c.Check(out, Equals, t.out, Commentf("%+v", t.in))
	}
}
