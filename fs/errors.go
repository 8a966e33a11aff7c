// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import "errors"

// User/semantic errors (spec §7): surfaced as plain errors from the
// owning operation, the equivalent of a syscall returning -1.
var (
	ErrNotExist    = errors.New("fs: no such file or directory")
	ErrExist       = errors.New("fs: file exists")
	ErrIsDir       = errors.New("fs: is a directory")
	ErrNotDir      = errors.New("fs: not a directory")
	ErrNotEmpty    = errors.New("fs: directory not empty")
	ErrSymlinkLoop = errors.New("fs: too many levels of symbolic links")
	ErrNoSpace     = errors.New("fs: no space left on device")
	ErrNoInodes    = errors.New("fs: no free inodes")
	ErrTooLarge    = errors.New("fs: file too large")
	ErrCrossDevice = errors.New("fs: cross-device link")
	ErrBadDevice   = errors.New("fs: no such device")
	ErrInvalid     = errors.New("fs: invalid argument")
)
