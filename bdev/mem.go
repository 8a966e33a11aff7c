// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bdev

import "fmt"

// MemDevice is an in-memory Device, standing in for a disk in unit
// tests that want to exercise bcache/txlog/fs without touching the
// filesystem.
type MemDevice struct {
	blocks [][BlockSize]byte
}

// NewMemDevice allocates a zeroed in-memory device of nblock blocks.
func NewMemDevice(nblock uint32) *MemDevice {
	return &MemDevice{blocks: make([][BlockSize]byte, nblock)}
}

func (d *MemDevice) Size() uint32 { return uint32(len(d.blocks)) }

func (d *MemDevice) ReadBlock(bno uint32, payload []byte) error {
	if len(payload) != BlockSize {
		panic("bdev: payload must be BlockSize bytes")
	}
	if int(bno) >= len(d.blocks) {
		panic(fmt.Sprintf("bdev: read_block: bno %d out of range (size %d)", bno, len(d.blocks)))
	}
	copy(payload, d.blocks[bno][:])
	return nil
}

func (d *MemDevice) WriteBlock(bno uint32, payload []byte) error {
	if len(payload) != BlockSize {
		panic("bdev: payload must be BlockSize bytes")
	}
	if int(bno) >= len(d.blocks) {
		panic(fmt.Sprintf("bdev: write_block: bno %d out of range (size %d)", bno, len(d.blocks)))
	}
	copy(d.blocks[bno][:], payload)
	return nil
}
