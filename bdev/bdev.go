// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bdev is the thin, synchronous block-device collaborator that
// the buffer cache and redo log read and write through. It knows
// nothing about file systems; it only moves fixed-size blocks to and
// from a backing store.
package bdev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// BlockSize is the fixed payload size of every block moved through a
// Device. The whole storage stack above bdev assumes this constant.
const BlockSize = 1024

// Device is a blocking block device: read_block(dev, bno) and
// write_block(dev, bno, payload) from the spec, kept as a narrow
// interface so tests can swap in an in-memory fake.
type Device interface {
	// ReadBlock fills payload (len(payload) must be BlockSize) with
	// the contents of block bno.
	ReadBlock(bno uint32, payload []byte) error

	// WriteBlock writes payload (len(payload) must be BlockSize) to
	// block bno, synchronously.
	WriteBlock(bno uint32, payload []byte) error

	// Size returns the device's capacity in blocks.
	Size() uint32
}

// FileDevice backs a Device with a regular file, standing in for the
// "physical disk driver" the spec abstracts away. Every write is
// followed by an fsync so that "write_block" is synchronous in the
// sense §4.2's commit algorithm requires.
type FileDevice struct {
	f      *os.File
	nblock uint32
}

// OpenFile opens (or creates) path as the backing store for a Device
// with the given block count. If the file is smaller than nblock
// blocks, it is extended (sparse) to the right size.
func OpenFile(path string, nblock uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("bdev: open %s: %w", path, err)
	}
	want := int64(nblock) * BlockSize
	if err := f.Truncate(want); err != nil {
		f.Close()
		return nil, fmt.Errorf("bdev: truncate %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("bdev: lock %s: %w", path, err)
	}
	return &FileDevice{f: f, nblock: nblock}, nil
}

func (d *FileDevice) Size() uint32 { return d.nblock }

func (d *FileDevice) ReadBlock(bno uint32, payload []byte) error {
	if len(payload) != BlockSize {
		panic("bdev: payload must be BlockSize bytes")
	}
	if bno >= d.nblock {
		panic(fmt.Sprintf("bdev: read_block: bno %d out of range (size %d)", bno, d.nblock))
	}
	_, err := d.f.ReadAt(payload, int64(bno)*BlockSize)
	return err
}

func (d *FileDevice) WriteBlock(bno uint32, payload []byte) error {
	if len(payload) != BlockSize {
		panic("bdev: payload must be BlockSize bytes")
	}
	if bno >= d.nblock {
		panic(fmt.Sprintf("bdev: write_block: bno %d out of range (size %d)", bno, d.nblock))
	}
	if _, err := d.f.WriteAt(payload, int64(bno)*BlockSize); err != nil {
		return err
	}
	return unix.Fsync(int(d.f.Fd()))
}

// Close releases the backing file and its advisory lock.
func (d *FileDevice) Close() error {
	return d.f.Close()
}
