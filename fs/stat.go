// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

// Stat is the metadata returned about an inode, the supplemented
// counterpart of xv6's struct stat.
type Stat struct {
	Dev   uint32
	Ino   uint32
	Type  Type
	Nlink uint16
	Size  uint32
	Major uint16
	Minor uint16
}

// Stat locks, reads, and unlocks ip, returning its metadata.
func (f *FS) Stat(ip *Inode) Stat {
	ip.Lock()
	defer ip.Unlock()
	return Stat{
		Dev:   ip.dev,
		Ino:   ip.inum,
		Type:  ip.typ,
		Nlink: ip.Nlink,
		Size:  ip.Size,
		Major: ip.major,
		Minor: ip.minor,
	}
}
