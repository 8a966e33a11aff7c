// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import "log"

// Bootstrap creates the root directory on a freshly formatted image:
// it must be called exactly once, immediately after Mount on an image
// whose inode region is entirely zeroed, before any other operation.
// Grounded on original_source/mkfs.c's construction of the root
// directory's "." and ".." entries.
func (f *FS) Bootstrap() error {
	f.Begin()
	defer f.End()

	root := f.ialloc(TypeDir)
	if root == nil {
		return ErrNoInodes
	}
	if root.inum != RootIno {
		log.Panicf("fs: bootstrap: root landed on inode %d, want %d", root.inum, RootIno)
	}
	root.Lock()
	root.Nlink = 1
	f.iupdate(root)
	if err := f.Dirlink(root, ".", root.inum); err != nil {
		root.Unlock()
		f.put(root)
		return err
	}
	if err := f.Dirlink(root, "..", root.inum); err != nil {
		root.Unlock()
		f.put(root)
		return err
	}
	root.Nlink++
	f.iupdate(root)
	root.Unlock()
	f.put(root)
	return nil
}
