// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"fmt"
	"sync"

	"github.com/kikyousam/tinyos-storage/bcache"
	"github.com/kikyousam/tinyos-storage/bdev"
	"github.com/kikyousam/tinyos-storage/txlog"
)

// FS is a mounted file system: a superblock, a buffer cache, a redo
// log, and the in-memory inode table built on top of them.
type FS struct {
	dev    uint32
	cache  *bcache.Cache
	log    *txlog.Log
	sb     Superblock
	params Params
	devs   *DeviceTable

	itable struct {
		mu     sync.Mutex
		inodes []*Inode
	}
}

// Mount reads the superblock from block 1 of dev, validates its
// magic, runs log recovery, and returns a ready-to-use FS.
func Mount(device bdev.Device, dev uint32, params Params) (*FS, error) {
	cache := bcache.New(device, params.NBuf)

	sbBuf, err := cache.Read(dev, 1)
	if err != nil {
		return nil, fmt.Errorf("fs: read superblock: %w", err)
	}
	var sb Superblock
	sb.Decode(sbBuf.Data[:])
	cache.Release(sbBuf)

	if sb.Magic != FSMagic {
		panic("fs: invalid file system: bad magic")
	}

	l := txlog.Open(cache, dev, sb.LogStart, sb.NLog)

	f := &FS{
		dev:    dev,
		cache:  cache,
		log:    l,
		sb:     sb,
		params: params,
		devs:   NewDeviceTable(),
	}
	f.itable.inodes = make([]*Inode, params.NInode)
	for i := range f.itable.inodes {
		f.itable.inodes[i] = &Inode{fs: f}
	}
	return f, nil
}

// Devices returns the device table device nodes dispatch through.
func (f *FS) Devices() *DeviceTable { return f.devs }

// Superblock returns a copy of the mounted superblock.
func (f *FS) Superblock() Superblock { return f.sb }

// Begin opens a transaction; every FS-mutating operation must run
// inside a Begin/End bracket (spec §5 lock ordering rule 4).
func (f *FS) Begin() { f.log.Begin() }

// End closes a transaction opened with Begin.
func (f *FS) End() { f.log.End() }
