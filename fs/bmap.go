// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"encoding/binary"
	"log"
)

// bmap returns the disk block number holding the bn'th block of ip's
// content, allocating it (and any indirect blocks on the path to it)
// if necessary. Caller must hold ip's sleep-lock and a transaction.
func (f *FS) bmap(ip *Inode, bn uint32) uint32 {
	if bn < NDirect {
		if ip.addrs[bn] == 0 {
			ip.addrs[bn] = f.balloc()
		}
		return ip.addrs[bn]
	}
	bn -= NDirect

	if bn < NIndirect {
		return f.bmapIndirect(ip, NDirect, bn)
	}
	bn -= NIndirect

	if bn < NIndirect*NIndirect {
		if ip.addrs[NDirect+1] == 0 {
			ip.addrs[NDirect+1] = f.balloc()
			if ip.addrs[NDirect+1] == 0 {
				return 0 // out of space (spec §4.3): propagate, don't read block 0
			}
		}
		dind := f.indirectEntry(ip.addrs[NDirect+1], bn/NIndirect, true)
		if dind == 0 {
			return 0
		}
		return f.indirectEntry(dind, bn%NIndirect, true)
	}

	log.Panicf("fs: bmap: out of range %d", bn)
	return 0
}

// bmapIndirect resolves the bn'th entry of ip's single-indirect block,
// allocating the indirect block itself if absent. idx is the addrs[]
// slot (NDirect) holding the indirect block pointer.
func (f *FS) bmapIndirect(ip *Inode, idx int, bn uint32) uint32 {
	if ip.addrs[idx] == 0 {
		ip.addrs[idx] = f.balloc()
		if ip.addrs[idx] == 0 {
			return 0 // out of space (spec §4.3): propagate, don't read block 0
		}
	}
	return f.indirectEntry(ip.addrs[idx], bn, true)
}

// indirectEntry reads the i'th uint32 entry out of the indirect block
// at bno, allocating it (and writing it back through the log) if
// alloc is true and the entry is zero. bno must be a valid block
// number (never 0: callers check balloc's result before calling in).
func (f *FS) indirectEntry(bno uint32, i uint32, alloc bool) uint32 {
	bp, err := f.cache.Read(f.dev, bno)
	if err != nil {
		log.Panicf("fs: indirectEntry: read: %v", err)
	}
	off := 4 * i
	v := binary.LittleEndian.Uint32(bp.Data[off : off+4])
	if v == 0 && alloc {
		v = f.balloc()
		binary.LittleEndian.PutUint32(bp.Data[off:off+4], v)
		f.log.Write(bp)
	}
	f.cache.Release(bp)
	return v
}

// itrunc frees all of ip's content blocks (direct, single-indirect,
// double-indirect) and sets its size to 0. Caller must hold ip's
// sleep-lock and a transaction.
func (f *FS) itrunc(ip *Inode) {
	for i := 0; i < NDirect; i++ {
		if ip.addrs[i] != 0 {
			f.bfree(ip.addrs[i])
			ip.addrs[i] = 0
		}
	}

	if ip.addrs[NDirect] != 0 {
		f.freeIndirect(ip.addrs[NDirect])
		ip.addrs[NDirect] = 0
	}

	if ip.addrs[NDirect+1] != 0 {
		bp, err := f.cache.Read(f.dev, ip.addrs[NDirect+1])
		if err != nil {
			log.Panicf("fs: itrunc: read double-indirect: %v", err)
		}
		for i := 0; i < NIndirect; i++ {
			off := 4 * i
			dind := binary.LittleEndian.Uint32(bp.Data[off : off+4])
			if dind != 0 {
				f.freeIndirect(dind)
			}
		}
		f.cache.Release(bp)
		f.bfree(ip.addrs[NDirect+1])
		ip.addrs[NDirect+1] = 0
	}

	ip.Size = 0
	f.iupdate(ip)
}

// freeIndirect frees every non-zero entry in the indirect block at
// bno, then frees bno itself.
func (f *FS) freeIndirect(bno uint32) {
	bp, err := f.cache.Read(f.dev, bno)
	if err != nil {
		log.Panicf("fs: freeIndirect: read: %v", err)
	}
	for i := 0; i < NIndirect; i++ {
		off := 4 * i
		v := binary.LittleEndian.Uint32(bp.Data[off : off+4])
		if v != 0 {
			f.bfree(v)
		}
	}
	f.cache.Release(bp)
	f.bfree(bno)
}
