// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import "log"

// balloc scans the bitmap region linearly for the first zero bit,
// sets it, zeros the newly allocated data block, and returns its
// absolute block number (bit i of the bitmap stands for data block
// sb.DataStart+i, the first block after the boot/super/log/inode/
// bitmap regions). Returns 0 if the device is out of space (spec: a
// resource-exhaustion condition, not a programmer error).
func (f *FS) balloc() uint32 {
	for b := uint32(0); b < f.sb.NBlocks; b += BSize * 8 {
		bp, err := f.cache.Read(f.dev, f.sb.BBlock(b))
		if err != nil {
			log.Panicf("fs: balloc: read bitmap block: %v", err)
		}
		limit := uint32(BSize * 8)
		if b+limit > f.sb.NBlocks {
			limit = f.sb.NBlocks - b
		}
		for bi := uint32(0); bi < limit; bi++ {
			m := byte(1) << (bi % 8)
			if bp.Data[bi/8]&m == 0 {
				bp.Data[bi/8] |= m
				f.log.Write(bp)
				f.cache.Release(bp)
				abs := f.sb.DataStart + b + bi
				f.bzero(abs)
				return abs
			}
		}
		f.cache.Release(bp)
	}
	return 0
}

// bfree clears the bitmap bit for absolute data block b (as returned
// by balloc). Freeing an already-free block is corruption and panics.
func (f *FS) bfree(b uint32) {
	rel := b - f.sb.DataStart
	bp, err := f.cache.Read(f.dev, f.sb.BBlock(rel))
	if err != nil {
		log.Panicf("fs: bfree: read bitmap block: %v", err)
	}
	bi := rel % (BSize * 8)
	m := byte(1) << (bi % 8)
	if bp.Data[bi/8]&m == 0 {
		log.Panicf("fs: bfree: freeing already-free block %d", b)
	}
	bp.Data[bi/8] &^= m
	f.log.Write(bp)
	f.cache.Release(bp)
}

// bzero zeros data block bno via the log, so the zeroing is part of
// the current transaction.
func (f *FS) bzero(bno uint32) {
	bp, err := f.cache.Read(f.dev, bno)
	if err != nil {
		log.Panicf("fs: bzero: read block: %v", err)
	}
	bp.Data = [BSize]byte{}
	f.log.Write(bp)
	f.cache.Release(bp)
}
