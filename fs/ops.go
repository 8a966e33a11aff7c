// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

// OpenFlags mirror the subset of open(2) flags the spec's Open
// operation cares about.
type OpenFlags uint32

const (
	OCreate OpenFlags = 1 << iota
	OTrunc
	ONoFollow
	ODirectory
)

// create is the shared implementation behind Create/Mkdir/Mknod/
// Symlink: it resolves path's parent, allocates a new inode of typ,
// links it into the parent under its final name, and (for
// directories) wires up "." and "..". Returns the new inode locked.
//
// Caller must be inside a transaction.
func (f *FS) create(cwd *Inode, path string, typ Type, major, minor uint16) (*Inode, error) {
	dp, name, err := f.NameiParent(cwd, path)
	if err != nil {
		return nil, err
	}
	dp.Lock()

	if existing, _, err := f.Dirlookup(dp, name); err == nil {
		dp.Unlock()
		f.put(dp)
		existing.Lock()
		if typ == TypeFile && existing.typ == TypeFile {
			return existing, nil
		}
		existing.Unlock()
		f.put(existing)
		return nil, ErrExist
	}

	ip := f.ialloc(typ)
	if ip == nil {
		dp.Unlock()
		f.put(dp)
		return nil, ErrNoInodes
	}
	ip.Lock()
	ip.major = major
	ip.minor = minor
	ip.Nlink = 1
	f.iupdate(ip)

	if typ == TypeDir {
		dp.Nlink++
		f.iupdate(dp)
		if err := f.Dirlink(ip, ".", ip.inum); err != nil {
			panic("fs: create: dirlink . failed: " + err.Error())
		}
		if err := f.Dirlink(ip, "..", dp.inum); err != nil {
			panic("fs: create: dirlink .. failed: " + err.Error())
		}
	}

	if err := f.Dirlink(dp, name, ip.inum); err != nil {
		panic("fs: create: dirlink failed: " + err.Error())
	}

	dp.Unlock()
	f.put(dp)
	return ip, nil
}

// Create creates and opens a regular file at path, returning the
// existing inode unmodified if it already exists as a regular file
// (the bare open(O_CREAT) idiom). Truncation is gated on O_TRUNC, not
// implied by O_CREAT; see Open.
func (f *FS) Create(cwd *Inode, path string) (*Inode, error) {
	return f.createFile(cwd, path, false)
}

// createFile is Create's implementation, with trunc controlling
// whether a reused existing file is truncated to size 0 (the
// open(O_CREAT|O_TRUNC) idiom, gated by Open on the caller's flags).
func (f *FS) createFile(cwd *Inode, path string, trunc bool) (*Inode, error) {
	f.Begin()
	defer f.End()

	ip, err := f.create(cwd, path, TypeFile, 0, 0)
	if err != nil {
		return nil, err
	}
	if trunc && ip.Size != 0 {
		f.itrunc(ip)
	}
	ip.Unlock()
	return ip, nil
}

// Mkdir creates a new, empty directory at path.
func (f *FS) Mkdir(cwd *Inode, path string) error {
	f.Begin()
	defer f.End()

	ip, err := f.create(cwd, path, TypeDir, 0, 0)
	if err != nil {
		return err
	}
	ip.Unlock()
	f.put(ip)
	return nil
}

// Mknod creates a device special file at path with the given major,
// minor numbers.
func (f *FS) Mknod(cwd *Inode, path string, major, minor uint16) error {
	f.Begin()
	defer f.End()

	ip, err := f.create(cwd, path, TypeDevice, major, minor)
	if err != nil {
		return err
	}
	ip.Unlock()
	f.put(ip)
	return nil
}

// Symlink creates a symbolic link at linkpath whose content is target
// (not resolved or validated at creation time, per spec §4.5).
func (f *FS) Symlink(cwd *Inode, target, linkpath string) error {
	f.Begin()
	defer f.End()

	ip, err := f.create(cwd, linkpath, TypeSymlink, 0, 0)
	if err != nil {
		return err
	}
	if _, err := f.Writei(ip, []byte(target), 0); err != nil {
		ip.Unlock()
		f.put(ip)
		return err
	}
	ip.Unlock()
	f.put(ip)
	return nil
}

// Link creates a new hard link newpath for the existing file oldpath.
// Directories cannot be hard-linked; newpath must not already exist.
func (f *FS) Link(cwd *Inode, oldpath, newpath string) error {
	f.Begin()
	defer f.End()

	ip, err := f.NameiNoFollow(cwd, oldpath)
	if err != nil {
		return err
	}
	ip.Lock()
	if ip.typ == TypeDir {
		ip.Unlock()
		f.put(ip)
		return ErrIsDir
	}
	ip.Nlink++
	f.iupdate(ip)
	ip.Unlock()

	dp, name, err := f.NameiParent(cwd, newpath)
	if err != nil {
		f.relink(ip)
		f.put(ip)
		return err
	}
	if dp.Dev() != ip.Dev() {
		f.put(dp)
		f.relink(ip)
		f.put(ip)
		return ErrCrossDevice
	}
	dp.Lock()
	if err := f.Dirlink(dp, name, ip.inum); err != nil {
		dp.Unlock()
		f.put(dp)
		f.relink(ip)
		f.put(ip)
		return err
	}
	dp.Unlock()
	f.put(dp)
	f.put(ip)
	return nil
}

// relink undoes the speculative Nlink++ in Link after a failure. It
// takes ip's lock itself and runs inside Link's transaction.
func (f *FS) relink(ip *Inode) {
	ip.Lock()
	ip.Nlink--
	f.iupdate(ip)
	ip.Unlock()
}

// Unlink removes the directory entry named by path. If that was the
// last link (and the last open reference, tracked by the caller's
// File layer), the inode's content is freed when its final Put
// happens.
func (f *FS) Unlink(cwd *Inode, path string) error {
	f.Begin()
	defer f.End()

	dp, name, err := f.NameiParent(cwd, path)
	if err != nil {
		return err
	}
	dp.Lock()

	if name == "." || name == ".." {
		dp.Unlock()
		f.put(dp)
		return ErrInvalid
	}

	ip, off, err := f.Dirlookup(dp, name)
	if err != nil {
		dp.Unlock()
		f.put(dp)
		return ErrNotExist
	}
	ip.Lock()

	if ip.Nlink < 1 {
		panic("fs: unlink: nlink < 1")
	}
	if ip.typ == TypeDir && !f.dirempty(ip) {
		ip.Unlock()
		f.put(ip)
		dp.Unlock()
		f.put(dp)
		return ErrNotEmpty
	}

	var zero dirent
	buf := make([]byte, direntSize)
	zero.encode(buf)
	if _, err := f.Writei(dp, buf, off); err != nil {
		ip.Unlock()
		f.put(ip)
		dp.Unlock()
		f.put(dp)
		return err
	}

	if ip.typ == TypeDir {
		dp.Nlink--
		f.iupdate(dp)
	}
	dp.Unlock()
	f.put(dp)

	ip.Nlink--
	f.iupdate(ip)
	ip.Unlock()
	f.put(ip)
	return nil
}

// Open resolves path per flags and returns a referenced, unlocked
// inode ready to be wrapped in a File. OCreate allocates a new file
// if path doesn't exist; ODirectory requires the result be a
// directory; ONoFollow stops short of following a final symlink.
func (f *FS) Open(cwd *Inode, path string, flags OpenFlags) (*Inode, error) {
	var ip *Inode
	var err error

	if flags&OCreate != 0 {
		return f.createFile(cwd, path, flags&OTrunc != 0)
	}

	if flags&ONoFollow != 0 {
		ip, err = f.NameiNoFollow(cwd, path)
	} else {
		ip, err = f.Namei(cwd, path)
	}
	if err != nil {
		return nil, err
	}

	ip.Lock()

	if flags&ODirectory != 0 && ip.typ != TypeDir {
		f.unlockPut(ip)
		return nil, ErrNotDir
	}
	if ip.typ == TypeDevice {
		if _, ok := f.devs.Lookup(ip.major, ip.minor); !ok {
			f.unlockPut(ip)
			return nil, ErrBadDevice
		}
	}
	if flags&OTrunc != 0 && ip.typ == TypeFile {
		f.Begin()
		f.itrunc(ip)
		f.End()
	}
	ip.Unlock()
	return ip, nil
}
