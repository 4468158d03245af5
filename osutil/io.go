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

package osutil

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var (
	unixWrite     = unix.Write
	unixFtruncate = unix.Ftruncate
)

// ErrShortWrite is returned by WriteFileOnce when the kernel accepted
// fewer bytes than were given.
var ErrShortWrite = errors.New("cannot write data in a single write call")

// WriteFileOnce writes data to the named file using exactly one write(2)
// call, creating the file with perm if needed.
//
// This is meant for kernel interfaces such as /sys/fs/selinux/load which
// consume the buffer of a single write and cannot be replaced through a
// rename, so AtomicWriteFile-style helpers are not usable. A short write is
// an error and is never retried.
//
// The file is not opened with O_TRUNC. If it is not empty it is truncated
// with ftruncate(2) before writing, which updates its modification time;
// an empty file is left alone. Observers watching the mtime of the load
// node rely on this, and utimensat(2) does not work on selinuxfs.
func WriteFileOnce(path string, data []byte, perm os.FileMode) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, perm)
	if err != nil {
		return fmt.Errorf("cannot open for writing: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("cannot close %q: %w", path, cerr)
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat file: %w", err)
	}

	fd := int(f.Fd())
	if fi.Size() > 0 {
		if err := unixFtruncate(fd, 0); err != nil {
			return fmt.Errorf("cannot truncate %q: %w", path, err)
		}
	}

	n, err := unixWrite(fd, data)
	if err != nil {
		return fmt.Errorf("cannot write %q: %w", path, err)
	}
	if n < len(data) {
		return fmt.Errorf("%w: wrote %d of %d bytes to %q", ErrShortWrite, n, len(data), path)
	}
	return nil
}
