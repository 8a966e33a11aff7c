// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import "log"

// Readi reads up to len(dst) bytes from ip starting at off, copying
// into dst, and returns the number of bytes read. Caller must hold
// ip's sleep-lock. A read at or past ip.Size returns (0, nil).
func (f *FS) Readi(ip *Inode, dst []byte, off uint32) (int, error) {
	if off > ip.Size {
		return 0, nil
	}
	n := uint32(len(dst))
	if off+n > ip.Size {
		n = ip.Size - off
	}

	var total uint32
	for total < n {
		bno := f.bmap(ip, off/BSize)
		if bno == 0 {
			break // out of space (bmap allocates holes, so 0 means balloc failed): truncate the read early
		}
		bp, err := f.cache.Read(ip.dev, bno)
		if err != nil {
			log.Panicf("fs: readi: read block: %v", err)
		}
		m := min(n-total, BSize-off%BSize)
		copy(dst[total:total+m], bp.Data[off%BSize:off%BSize+m])
		f.cache.Release(bp)

		total += m
		off += m
	}
	return int(total), nil
}

// Writei writes src into ip starting at off, extending ip.Size (and
// allocating blocks) as needed, and returns the number of bytes
// written. Caller must hold ip's sleep-lock and a transaction.
//
// Per spec §4.3, a write that would grow a file past MaxFile is
// rejected in its entirety rather than partially applied.
func (f *FS) Writei(ip *Inode, src []byte, off uint32) (int, error) {
	n := uint32(len(src))
	if off+n < off {
		return 0, ErrTooLarge
	}
	if uint64(off)+uint64(n) > uint64(MaxFile)*BSize {
		return 0, ErrTooLarge
	}

	var total uint32
	for total < n {
		bno := f.bmap(ip, off/BSize)
		if bno == 0 {
			break // out of space (spec §4.3): truncate the write at this point
		}
		bp, err := f.cache.Read(ip.dev, bno)
		if err != nil {
			log.Panicf("fs: writei: read block: %v", err)
		}
		m := min(n-total, BSize-off%BSize)
		copy(bp.Data[off%BSize:off%BSize+m], src[total:total+m])
		f.log.Write(bp)
		f.cache.Release(bp)

		total += m
		off += m
	}

	if total > 0 && off > ip.Size {
		ip.Size = off
	}
	f.iupdate(ip)
	if total < n {
		return int(total), ErrNoSpace
	}
	return int(total), nil
}
