// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"log"
	"sync"
)

// Inode is the in-memory representation of one on-disk inode: the
// decoded dinode fields plus the bookkeeping (ref count, validity,
// sleep-lock) the spec's §3 "Inode (in-memory)" calls for.
//
// ref is protected by FS.itable.mu (the table spinlock); every other
// field is protected by mu (the sleep-lock), following the same split
// xv6 documents for itable.lock vs. ip->lock.
type Inode struct {
	fs *FS

	mu sync.Mutex // sleep-lock

	dev  uint32
	inum uint32

	ref   int // protected by fs.itable.mu
	valid bool

	Nlink uint16
	Size  uint32

	typ   Type
	major uint16
	minor uint16
	addrs [NDirect + 2]uint32
}

// Ino is the inode number.
func (ip *Inode) Ino() uint32 { return ip.inum }

// Dev is the owning device.
func (ip *Inode) Dev() uint32 { return ip.dev }

// Type returns the inode's file type. Valid only while locked (or
// immediately after ialloc/create, which set it before unlocking).
func (ip *Inode) Type() Type { return ip.typ }

// Major/Minor are valid for T_DEVICE inodes.
func (ip *Inode) Major() uint16 { return ip.major }
func (ip *Inode) Minor() uint16 { return ip.minor }

// iget finds (or creates) the in-memory table entry for (dev, inum)
// and increments its reference count. It does not lock the inode or
// load its fields from disk.
func (f *FS) iget(dev, inum uint32) *Inode {
	f.itable.mu.Lock()
	defer f.itable.mu.Unlock()

	var empty *Inode
	for _, ip := range f.itable.inodes {
		if ip.ref > 0 && ip.dev == dev && ip.inum == inum {
			ip.ref++
			return ip
		}
		if empty == nil && ip.ref == 0 {
			empty = ip
		}
	}
	if empty == nil {
		panic("fs: iget: inode table exhausted")
	}
	empty.dev = dev
	empty.inum = inum
	empty.ref = 1
	empty.valid = false
	return empty
}

// idup increments ip's reference count and returns ip, for the
// `ip = idup(ip1)` idiom.
func (f *FS) idup(ip *Inode) *Inode {
	f.itable.mu.Lock()
	ip.ref++
	f.itable.mu.Unlock()
	return ip
}

// Lock acquires ip's sleep-lock, loading its fields from disk on
// first use. Panics if the on-disk type is free (corruption: a live
// reference to a freed inode).
func (ip *Inode) Lock() {
	ip.mu.Lock()
	if ip.valid {
		return
	}
	f := ip.fs
	bp, err := f.cache.Read(f.dev, f.sb.IBlock(ip.inum))
	if err != nil {
		log.Panicf("fs: ilock: read inode block: %v", err)
	}
	var d dinode
	d.decode(bp.Data[dinodeOffset(ip.inum):])
	f.cache.Release(bp)

	ip.typ = d.typ
	ip.major = d.major
	ip.minor = d.minor
	ip.Nlink = d.nlink
	ip.Size = d.size
	ip.addrs = d.addrs
	ip.valid = true
	if ip.typ == TypeFree {
		log.Panicf("fs: ilock: inode %d has no type", ip.inum)
	}
}

// Unlock releases ip's sleep-lock.
func (ip *Inode) Unlock() {
	ip.mu.Unlock()
}

// Put drops a reference to ip. If it was the last reference and the
// inode has no links, the inode's content and disk slot are freed.
// Must be called inside a transaction, since it may free blocks.
func (f *FS) put(ip *Inode) {
	f.itable.mu.Lock()

	if ip.ref == 1 && ip.valid && ip.Nlink == 0 {
		// ref==1 means no other caller can have ip locked, so this
		// cannot block.
		ip.mu.Lock()
		f.itable.mu.Unlock()

		f.itrunc(ip)
		ip.typ = TypeFree
		f.iupdate(ip)
		ip.valid = false

		ip.mu.Unlock()
		f.itable.mu.Lock()
	} else if ip.ref == 0 {
		f.itable.mu.Unlock()
		panic("fs: put: ref already 0")
	}

	ip.ref--
	f.itable.mu.Unlock()
}

// UnlockPut is the common idiom: unlock, then put.
func (f *FS) unlockPut(ip *Inode) {
	ip.Unlock()
	f.put(ip)
}

// Put is the exported form of put, for callers holding a reference
// returned by Open/Create/etc. outside of dirlookup-style internal
// helpers.
func (f *FS) Put(ip *Inode) { f.put(ip) }

// iupdate copies ip's in-memory fields back to its on-disk inode via
// the log. Caller must hold ip's sleep-lock.
func (f *FS) iupdate(ip *Inode) {
	bp, err := f.cache.Read(ip.dev, f.sb.IBlock(ip.inum))
	if err != nil {
		log.Panicf("fs: iupdate: read inode block: %v", err)
	}
	d := dinode{
		typ:   ip.typ,
		major: ip.major,
		minor: ip.minor,
		nlink: ip.Nlink,
		size:  ip.Size,
		addrs: ip.addrs,
	}
	d.encode(bp.Data[dinodeOffset(ip.inum):])
	f.log.Write(bp)
	f.cache.Release(bp)
}

// ialloc scans the inode region for a free (type 0) slot, marks it
// allocated with the given type, and returns an in-memory handle via
// iget. Returns nil if there are no free inodes.
func (f *FS) ialloc(typ Type) *Inode {
	for inum := uint32(1); inum < f.sb.NInodes; inum++ {
		bp, err := f.cache.Read(f.dev, f.sb.IBlock(inum))
		if err != nil {
			log.Panicf("fs: ialloc: read inode block: %v", err)
		}
		off := dinodeOffset(inum)
		var d dinode
		d.decode(bp.Data[off:])
		if d.typ == TypeFree {
			d = dinode{typ: typ}
			d.encode(bp.Data[off:])
			f.log.Write(bp)
			f.cache.Release(bp)
			return f.iget(f.dev, inum)
		}
		f.cache.Release(bp)
	}
	return nil
}
