// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"encoding/binary"
	"fmt"

	"github.com/kikyousam/tinyos-storage/txlog"
)

// FSMagic identifies a formatted image.
const FSMagic = 0x10203040

// Superblock describes the on-disk layout, per spec §3/§6: boot block
// (bno 0), super block (bno 1), log region, inode region, free-block
// bitmap region, data region.
type Superblock struct {
	Magic      uint32
	Size       uint32 // total image size, in blocks
	NBlocks    uint32 // data blocks
	NInodes    uint32
	NLog       uint32 // blocks in the log region, including its header
	LogStart   uint32
	InodeStart uint32
	BmapStart  uint32
	DataStart  uint32 // first block balloc may hand out: BmapStart + bitmap blocks
}

// Encode writes sb's fields to buf in the on-disk little-endian
// layout.
func (sb *Superblock) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], sb.Size)
	binary.LittleEndian.PutUint32(buf[8:12], sb.NBlocks)
	binary.LittleEndian.PutUint32(buf[12:16], sb.NInodes)
	binary.LittleEndian.PutUint32(buf[16:20], sb.NLog)
	binary.LittleEndian.PutUint32(buf[20:24], sb.LogStart)
	binary.LittleEndian.PutUint32(buf[24:28], sb.InodeStart)
	binary.LittleEndian.PutUint32(buf[28:32], sb.BmapStart)
	binary.LittleEndian.PutUint32(buf[32:36], sb.DataStart)
}

// Decode reads sb's fields out of buf.
func (sb *Superblock) Decode(buf []byte) {
	sb.Magic = binary.LittleEndian.Uint32(buf[0:4])
	sb.Size = binary.LittleEndian.Uint32(buf[4:8])
	sb.NBlocks = binary.LittleEndian.Uint32(buf[8:12])
	sb.NInodes = binary.LittleEndian.Uint32(buf[12:16])
	sb.NLog = binary.LittleEndian.Uint32(buf[16:20])
	sb.LogStart = binary.LittleEndian.Uint32(buf[20:24])
	sb.InodeStart = binary.LittleEndian.Uint32(buf[24:28])
	sb.BmapStart = binary.LittleEndian.Uint32(buf[28:32])
	sb.DataStart = binary.LittleEndian.Uint32(buf[32:36])
}

// IBlock returns the block number of the block containing inode inum.
func (sb *Superblock) IBlock(inum uint32) uint32 {
	return inum/IPB + sb.InodeStart
}

// BBlock returns the block number of the bitmap block containing the
// bit for data block b, where b is relative to DataStart (bit 0 is
// DataStart itself, not absolute block 0).
func (sb *Superblock) BBlock(b uint32) uint32 {
	const bitsPerBlock = BSize * 8
	return b/bitsPerBlock + sb.BmapStart
}

// Layout computes a Superblock for an image of size blocks, carrying
// ninodes inodes, given the disk has already been sized to fit. It is
// the structural counterpart of xv6's mkfs.c layout computation.
func Layout(size, ninodes uint32) (Superblock, error) {
	nlog := uint32(LogRegionBlocks())
	ninodeblocks := (ninodes + IPB - 1) / IPB
	logStart := uint32(2) // after boot block (0) and super block (1)
	inodeStart := logStart + nlog
	bmapStart := inodeStart + ninodeblocks

	if bmapStart >= size {
		return Superblock{}, fmt.Errorf("fs: image of %d blocks too small for %d inodes", size, ninodes)
	}
	remaining := size - bmapStart
	// nbitmap covers up to `remaining` data+bitmap blocks; a few
	// trailing bits go unused, same slack xv6's mkfs accepts.
	nbitmap := (remaining + BSize*8 - 1) / (BSize * 8)
	if remaining < nbitmap {
		return Superblock{}, fmt.Errorf("fs: image of %d blocks too small for %d inodes", size, ninodes)
	}
	nblocks := remaining - nbitmap
	dataStart := bmapStart + nbitmap

	sb := Superblock{
		Magic:      FSMagic,
		Size:       size,
		NBlocks:    nblocks,
		NInodes:    ninodes,
		NLog:       nlog,
		LogStart:   logStart,
		InodeStart: inodeStart,
		BmapStart:  bmapStart,
		DataStart:  dataStart,
	}
	return sb, nil
}

// LogRegionBlocks is the fixed size of the log region: one header
// block plus LogSize data-copy slots.
func LogRegionBlocks() int { return txlog.LogSize + 1 }
