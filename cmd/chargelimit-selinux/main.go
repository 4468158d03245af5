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

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/snapcore/chargelimit-selinux/dirs"
	"github.com/snapcore/chargelimit-selinux/logger"
	"github.com/snapcore/chargelimit-selinux/patch"
	"github.com/snapcore/chargelimit-selinux/sepolicy"
)

var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr

	patchRun = patch.Run
)

const (
	shortHelp = "Patch SELinux policy file"
	longHelp  = `
chargelimit-selinux derives the chargelimit_app domain from untrusted_app in
a binary SELinux policy and allows it to talk to the Google battery HAL.

Exactly one of --source/--source-kernel and exactly one of
--target/--target-kernel must be given.
`
)

type options struct {
	Source       string `short:"s" long:"source" value-name:"FILE" description:"Source policy file"`
	SourceKernel bool   `short:"S" long:"source-kernel" description:"Use currently loaded policy as source"`
	Target       string `short:"t" long:"target" value-name:"FILE" description:"Target policy file"`
	TargetKernel bool   `short:"T" long:"target-kernel" description:"Load patched policy into kernel"`
	StripNoAudit bool   `short:"d" long:"strip-no-audit" description:"Remove dontaudit/dontauditxperm rules"`
	Profile      string `short:"p" long:"profile" value-name:"FILE" description:"YAML profile listing domains to clone and rules to add"`
}

func init() {
	err := logger.SimpleSetup()
	if err != nil {
		fmt.Fprintf(Stderr, "WARNING: failed to activate logging: %v\n", err)
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// pick returns the file selected by exactly one of a path flag or a
// kernel flag.
func pick(path string, kernel bool, kernelPath, pathFlag, kernelFlag string) (string, error) {
	switch {
	case path != "" && kernel:
		return "", sepolicy.Errorf(sepolicy.ErrKindConfig, "cannot use --%s and --%s together", pathFlag, kernelFlag)
	case path != "":
		return path, nil
	case kernel:
		return kernelPath, nil
	}
	return "", sepolicy.Errorf(sepolicy.ErrKindConfig, "one of --%s or --%s is required", pathFlag, kernelFlag)
}

func (o *options) patchOptions() (*patch.Options, error) {
	source, err := pick(o.Source, o.SourceKernel, dirs.SELinuxPolicyFile, "source", "source-kernel")
	if err != nil {
		return nil, err
	}
	target, err := pick(o.Target, o.TargetKernel, dirs.SELinuxLoadFile, "target", "target-kernel")
	if err != nil {
		return nil, err
	}
	popts := &patch.Options{
		Source:       source,
		Target:       target,
		StripNoAudit: o.StripNoAudit,
	}
	if o.Profile != "" {
		if popts.Profile, err = patch.LoadProfile(o.Profile); err != nil {
			return nil, err
		}
	}
	return popts, nil
}

func run(args []string) error {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.ShortDescription = shortHelp
	parser.LongDescription = longHelp

	rest, err := parser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(Stdout, e.Message)
			return nil
		}
		return sepolicy.Wrap(sepolicy.ErrKindConfig, err, "cannot parse arguments")
	}
	if len(rest) > 0 {
		return sepolicy.Errorf(sepolicy.ErrKindConfig, "too many arguments: %q", rest)
	}

	popts, err := opts.patchOptions()
	if err != nil {
		return err
	}
	logger.Debugf("patching %s into %s", popts.Source, popts.Target)
	return patchRun(popts)
}
