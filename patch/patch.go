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

// Package patch derives confined app domains from existing ones in a
// binary SELinux policy and grafts extra rules onto them.
package patch

import (
	"errors"
	"os"

	"golang.org/x/crypto/sha3"

	"github.com/snapcore/chargelimit-selinux/logger"
	"github.com/snapcore/chargelimit-selinux/osutil"
	"github.com/snapcore/chargelimit-selinux/sepolicy"
)

var writeFileOnce = osutil.WriteFileOnce

// Options control a patch run.
type Options struct {
	// Source is the policy to read.
	Source string
	// Target is where the patched policy is written, possibly the kernel
	// load node.
	Target string
	// StripNoAudit removes every dontaudit and dontauditxperm rule.
	StripNoAudit bool
	// Profile defaults to DefaultProfile.
	Profile *Profile
}

// Run reads the source policy, applies the profile and writes the result.
// Nothing is written unless every step before it succeeded.
func Run(opts *Options) error {
	prof := opts.Profile
	if prof == nil {
		prof = DefaultProfile()
	}
	pol, err := ReadPolicy(opts.Source)
	if err != nil {
		return err
	}
	if err := Apply(pol, prof, opts.StripNoAudit); err != nil {
		return err
	}
	return WritePolicy(opts.Target, pol)
}

func logWarnings(header string, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	logger.Noticef("%s", header)
	for _, w := range warnings {
		logger.Noticef("- %s", w)
	}
}

// ReadPolicy loads and parses the policy at path.
func ReadPolicy(path string) (*sepolicy.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sepolicy.Wrap(sepolicy.ErrKindIO, err, "cannot open for reading: %q", path)
	}
	pol, warnings, err := sepolicy.Parse(data)
	if err != nil {
		return nil, sepolicy.WithContext(err, "cannot parse sepolicy %q", path)
	}
	logWarnings("warnings when loading sepolicy:", warnings)
	logger.Debugf("loaded %d types, %d classes and %d rules from %s",
		pol.NumTypes(), pol.NumClasses(), pol.NumRules(), path)
	return pol, nil
}

// WritePolicy serializes pol and writes it to path with a single write.
func WritePolicy(path string, pol *sepolicy.Policy) error {
	data, warnings, err := pol.Serialize()
	if err != nil {
		return sepolicy.WithContext(err, "cannot build sepolicy")
	}
	logWarnings("warnings when saving sepolicy:", warnings)

	if err := writeFileOnce(path, data, 0644); err != nil {
		kind := sepolicy.ErrKindIO
		if errors.Is(err, osutil.ErrShortWrite) {
			kind = sepolicy.ErrKindShortWrite
		}
		return sepolicy.Wrap(kind, err, "cannot write sepolicy %q", path)
	}
	logger.Debugf("wrote %d bytes to %s (sha3-384 %x)", len(data), path, sha3.Sum384(data))
	return nil
}

// Apply clones the domains named by prof, grafts its rules and optionally
// strips audit suppression rules. Every name is resolved before the policy
// is touched, so a missing name leaves pol unmodified.
func Apply(pol *sepolicy.Policy, prof *Profile, stripNoAudit bool) error {
	if err := prof.Validate(); err != nil {
		return err
	}
	pl, err := resolve(pol, prof)
	if err != nil {
		return err
	}
	if err := cloneTypes(pol, pl.clones); err != nil {
		return err
	}
	if err := graft(pol, pl.rules); err != nil {
		return err
	}
	if stripNoAudit {
		n := pol.StripNoAudit()
		logger.Debugf("stripped %d dontaudit rules", n)
	}
	return nil
}
