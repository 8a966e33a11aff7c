// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import "log"

// Dirlookup scans directory dp for an entry named name. It returns the
// child inode (referenced but not locked, via iget) and, per the
// spec's supplemented Dir.Lookup, the byte offset of the dirent within
// dp so callers (e.g. unlink) can rewrite it in place.
//
// Caller must hold dp's sleep-lock and dp must be a directory.
func (f *FS) Dirlookup(dp *Inode, name string) (*Inode, uint32, error) {
	if dp.typ != TypeDir {
		panic("fs: dirlookup: not a directory")
	}

	var e dirent
	buf := make([]byte, direntSize)
	for off := uint32(0); off < dp.Size; off += direntSize {
		n, err := f.Readi(dp, buf, off)
		if err != nil {
			return nil, 0, err
		}
		if n != direntSize {
			log.Panicf("fs: dirlookup: short read of directory")
		}
		e.decode(buf)
		if e.inum == 0 {
			continue
		}
		if e.nameString() == name {
			return f.iget(dp.dev, uint32(e.inum)), off, nil
		}
	}
	return nil, 0, ErrNotExist
}

// Dirlink writes a new (name -> inum) entry into directory dp,
// reusing the first free slot if one exists, else appending. Caller
// must hold dp's sleep-lock and a transaction.
func (f *FS) Dirlink(dp *Inode, name string, inum uint32) error {
	if existing, _, err := f.Dirlookup(dp, name); err == nil {
		f.put(existing)
		return ErrExist
	}

	var e dirent
	buf := make([]byte, direntSize)
	var off uint32
	for off = 0; off < dp.Size; off += direntSize {
		n, err := f.Readi(dp, buf, off)
		if err != nil {
			return err
		}
		if n != direntSize {
			log.Panicf("fs: dirlink: short read of directory")
		}
		e.decode(buf)
		if e.inum == 0 {
			break
		}
	}

	e = dirent{inum: uint16(inum)}
	e.setName(name)
	e.encode(buf)
	if _, err := f.Writei(dp, buf, off); err != nil {
		return err
	}
	return nil
}

// dirempty reports whether directory dp contains only "." and "..".
func (f *FS) dirempty(dp *Inode) bool {
	var e dirent
	buf := make([]byte, direntSize)
	for off := uint32(2 * direntSize); off < dp.Size; off += direntSize {
		n, err := f.Readi(dp, buf, off)
		if err != nil || n != direntSize {
			log.Panicf("fs: dirempty: short read of directory")
		}
		e.decode(buf)
		if e.inum != 0 {
			return false
		}
	}
	return true
}
