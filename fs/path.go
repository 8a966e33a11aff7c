// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import "strings"

// skipelem splits the next path element off the front of path,
// skipping leading slashes, and returns it along with the remainder.
// Mirrors xv6's skipelem; ("", "") once path is exhausted.
func skipelem(path string) (elem, rest string) {
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	if path == "" {
		return "", ""
	}
	i := strings.IndexByte(path, '/')
	if i < 0 {
		return path, ""
	}
	elem = path[:i]
	rest = path[i:]
	for len(rest) > 0 && rest[0] == '/' {
		rest = rest[1:]
	}
	return elem, rest
}

// namex walks path to its target inode, starting from root (if path
// is absolute or cwd is nil) or cwd. If nameiparent is true, it stops
// one component short and returns the parent directory plus the final
// element's name. Symlinks are followed for every non-final component
// (and for the final component too, unless noFollowFinal), up to
// MaxSymlinkDepth, matching the open-syscall semantics layered on top.
//
// The returned inode is referenced (iget) but not locked.
func (f *FS) namex(cwd *Inode, path string, parent bool, noFollowFinal bool) (*Inode, string, error) {
	var ip *Inode
	if path != "" && path[0] == '/' {
		ip = f.iget(f.dev, RootIno)
	} else if cwd != nil {
		ip = f.idup(cwd)
	} else {
		ip = f.iget(f.dev, RootIno)
	}

	elem, rest := skipelem(path)
	depth := 0
	for elem != "" {
		ip.Lock()
		if ip.typ != TypeDir {
			ip.Unlock()
			f.put(ip)
			return nil, "", ErrNotDir
		}
		if parent && rest == "" {
			// Stop one component short: caller wants (dp, name).
			ip.Unlock()
			return ip, elem, nil
		}
		next, _, err := f.Dirlookup(ip, elem)
		if err != nil {
			ip.Unlock()
			f.put(ip)
			return nil, "", ErrNotExist
		}
		ip.Unlock()

		next.Lock()
		isLastFollow := rest == "" && noFollowFinal
		if next.typ == TypeSymlink && !isLastFollow {
			depth++
			if depth > MaxSymlinkDepth {
				next.Unlock()
				f.put(next)
				f.put(ip)
				return nil, "", ErrSymlinkLoop
			}
			target, err := f.readlink(next)
			next.Unlock()
			f.put(next)
			f.put(ip)
			if err != nil {
				return nil, "", err
			}
			// This layer has no per-process cwd, only the cwd passed in
			// by the caller of Namei/Open; a relative symlink target is
			// resolved against the root directory rather than that
			// caller-supplied cwd (see DESIGN.md Open Questions).
			ip = f.iget(f.dev, RootIno)
			rest = target + "/" + rest
			elem, rest = skipelem(rest)
			continue
		}
		next.Unlock()
		f.put(ip)
		ip = next

		elem, rest = skipelem(rest)
	}

	if parent {
		// Path had no final component (e.g. "/" or ""): no parent of a
		// name to report.
		f.put(ip)
		return nil, "", ErrInvalid
	}
	return ip, "", nil
}

// readlink returns the textual target of a symlink inode. Caller must
// hold ip's sleep-lock.
func (f *FS) readlink(ip *Inode) (string, error) {
	buf := make([]byte, ip.Size)
	n, err := f.Readi(ip, buf, 0)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// Namei resolves path to its target inode (following a final
// symlink), referenced but not locked.
func (f *FS) Namei(cwd *Inode, path string) (*Inode, error) {
	ip, _, err := f.namex(cwd, path, false, false)
	return ip, err
}

// NameiNoFollow resolves path to its target inode without following a
// symlink in the final position, for callers like Link and Open with
// ONoFollow that must observe the link itself.
func (f *FS) NameiNoFollow(cwd *Inode, path string) (*Inode, error) {
	ip, _, err := f.namex(cwd, path, false, true)
	return ip, err
}

// NameiParent resolves all but the last element of path, returning the
// parent directory (referenced, not locked) and the final element's
// name.
func (f *FS) NameiParent(cwd *Inode, path string) (*Inode, string, error) {
	return f.namex(cwd, path, true, false)
}
