// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import "sync"

// Device is a character/block device backing a T_DEVICE inode,
// dispatched to by (major, minor) per the spec's supplemented device
// table. It is independent of bdev.Device, which backs the file
// system image itself.
type Device interface {
	Read(dst []byte) (int, error)
	Write(src []byte) (int, error)
}

// DeviceTable maps (major, minor) pairs to Devices. Major 0 is
// reserved for the null device, always present.
type DeviceTable struct {
	mu      sync.Mutex
	devices map[uint32]Device
}

const nullMajor = 0

// NewDeviceTable returns a table pre-populated with the null device at
// major 0.
func NewDeviceTable() *DeviceTable {
	t := &DeviceTable{devices: make(map[uint32]Device)}
	t.Register(nullMajor, 0, nullDevice{})
	return t
}

func key(major, minor uint16) uint32 {
	return uint32(major)<<16 | uint32(minor)
}

// Register installs dev at (major, minor), replacing any prior
// registration.
func (t *DeviceTable) Register(major, minor uint16, dev Device) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devices[key(major, minor)] = dev
}

// Lookup returns the device at (major, minor), or (nil, false) if
// nothing is registered there. Per spec, opening an unregistered
// device is ErrBadDevice.
func (t *DeviceTable) Lookup(major, minor uint16) (Device, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, ok := t.devices[key(major, minor)]
	return dev, ok
}

// nullDevice discards writes and reads as EOF, the traditional
// /dev/null.
type nullDevice struct{}

func (nullDevice) Read(dst []byte) (int, error)  { return 0, nil }
func (nullDevice) Write(src []byte) (int, error) { return len(src), nil }
