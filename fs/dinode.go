// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import "encoding/binary"

// Type is an inode's file type.
type Type uint16

const (
	TypeFree Type = iota
	TypeFile
	TypeDir
	TypeDevice
	TypeSymlink
)

// dinode is the 64-byte on-disk inode layout (spec §6): type, major,
// minor, nlink as u16, size as u32, then NDirect+2 u32 block
// pointers.
type dinode struct {
	typ    Type
	major  uint16
	minor  uint16
	nlink  uint16
	size   uint32
	addrs  [NDirect + 2]uint32
}

func (d *dinode) encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], uint16(d.typ))
	binary.LittleEndian.PutUint16(buf[2:4], d.major)
	binary.LittleEndian.PutUint16(buf[4:6], d.minor)
	binary.LittleEndian.PutUint16(buf[6:8], d.nlink)
	binary.LittleEndian.PutUint32(buf[8:12], d.size)
	for i, a := range d.addrs {
		off := 12 + 4*i
		binary.LittleEndian.PutUint32(buf[off:off+4], a)
	}
}

func (d *dinode) decode(buf []byte) {
	d.typ = Type(binary.LittleEndian.Uint16(buf[0:2]))
	d.major = binary.LittleEndian.Uint16(buf[2:4])
	d.minor = binary.LittleEndian.Uint16(buf[4:6])
	d.nlink = binary.LittleEndian.Uint16(buf[6:8])
	d.size = binary.LittleEndian.Uint32(buf[8:12])
	for i := range d.addrs {
		off := 12 + 4*i
		d.addrs[i] = binary.LittleEndian.Uint32(buf[off : off+4])
	}
}

// dinodeOffset returns this inode's byte offset within its block.
func dinodeOffset(inum uint32) int {
	return int(inum%IPB) * dinodeSize
}

// dirent is the fixed 16-byte directory entry: a 2-byte inode number
// (0 = free slot) and a 14-byte NUL-terminated-if-shorter name.
type dirent struct {
	inum uint16
	name [DirSiz]byte
}

func (e *dirent) encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], e.inum)
	copy(buf[2:2+DirSiz], e.name[:])
}

func (e *dirent) decode(buf []byte) {
	e.inum = binary.LittleEndian.Uint16(buf[0:2])
	copy(e.name[:], buf[2:2+DirSiz])
}

func (e *dirent) setName(name string) {
	var b [DirSiz]byte
	copy(b[:], name)
	e.name = b
}

func (e *dirent) nameString() string {
	n := 0
	for n < DirSiz && e.name[n] != 0 {
		n++
	}
	return string(e.name[:n])
}
