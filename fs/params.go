// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs is the block/inode file system layered on top of bcache
// and txlog: superblock, block and inode allocators, the in-memory
// inode cache, the direct/single-/double-indirect block map,
// directories, pathname resolution, and hard and symbolic links.
package fs

import "github.com/kikyousam/tinyos-storage/bdev"

// Fixed layout constants from spec §6. These are not configurable:
// changing them changes the on-disk format.
const (
	BSize             = bdev.BlockSize
	NDirect           = 11
	NIndirect         = BSize / 4 // 256 uint32 pointers per indirect block
	MaxFile           = NDirect + NIndirect + NIndirect*NIndirect
	DirSiz            = 14
	RootIno           = 1
	RootDev           = 1
	MaxSymlinkDepth   = 10
	NOFile            = 16
	dinodeSize        = 64
	IPB               = BSize / dinodeSize // inodes per block
	direntSize        = 16
	superblockWords   = 9
	superblockEncSize = superblockWords * 4
)

// Params bundles the tunables spec §6 lists as environment/config
// constants that a deployment may want to size differently (but that
// do not affect on-disk format): pool sizes for the in-memory caches.
// The log region's own capacity (LOGSIZE) and per-op reservation
// (MAXOPBLOCKS) are txlog package constants, not configurable here,
// since they are baked into the on-disk log region size computed by
// mkfs.
type Params struct {
	NBuf   int // buffer cache pool size (spec: NBUF, default 30)
	NInode int // in-memory inode table size (spec: NINODE, default 50)
}

// DefaultParams returns the tunables spec §6 specifies.
func DefaultParams() Params {
	return Params{
		NBuf:   30,
		NInode: 50,
	}
}
