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

package dirs

import (
	"path/filepath"
)

// the various file paths
var (
	GlobalRootDir string

	SELinuxFSDir      string
	SELinuxPolicyFile string
	SELinuxLoadFile   string
)

func init() {
	// init the global directories at startup
	SetRootDir("/")
}

// SetRootDir allows settings a new global root directory, this is useful
// for e.g. chroot operations
func SetRootDir(rootdir string) {
	if rootdir == "" {
		rootdir = "/"
	}
	GlobalRootDir = rootdir

	SELinuxFSDir = filepath.Join(rootdir, "/sys/fs/selinux")
	// the policy currently loaded into the kernel
	SELinuxPolicyFile = filepath.Join(SELinuxFSDir, "policy")
	// writing a policy here makes the kernel load it
	SELinuxLoadFile = filepath.Join(SELinuxFSDir, "load")
}
