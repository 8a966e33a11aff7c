// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"io"
	"sync"
)

// File is an open-file handle: an inode (or device) plus a cursor and
// the readable/writable permissions it was opened with. Several Files
// may reference the same Inode; each tracks its own offset.
type File struct {
	fs       *FS
	ip       *Inode
	dev      Device // non-nil iff ip.Type() == TypeDevice
	readable bool
	writable bool

	mu  sync.Mutex
	off uint32
}

// OpenFile wraps an already-resolved inode (from FS.Open) in a File
// handle with the given access mode, resolving its device backend if
// it is a device special file. It takes ownership of ip's reference:
// closing the File (or an error here) is what eventually Puts it.
func (f *FS) OpenFile(ip *Inode, readable, writable bool) (*File, error) {
	file := &File{fs: f, ip: ip, readable: readable, writable: writable}
	if ip.Type() == TypeDevice {
		dev, ok := f.devs.Lookup(ip.Major(), ip.Minor())
		if !ok {
			f.Put(ip)
			return nil, ErrBadDevice
		}
		file.dev = dev
	}
	return file, nil
}

// Read reads into p at the file's current offset, advancing it.
func (fh *File) Read(p []byte) (int, error) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if !fh.readable {
		return 0, ErrInvalid
	}
	if fh.dev != nil {
		return fh.dev.Read(p)
	}

	fh.ip.Lock()
	n, err := fh.fs.Readi(fh.ip, p, fh.off)
	fh.ip.Unlock()
	if err != nil {
		return n, err
	}
	fh.off += uint32(n)
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes p at the file's current offset, advancing it and the
// file's size as needed. The data is written in chunks of at most
// MaxOpBlocksPerWrite blocks, each chunk in its own transaction.
func (fh *File) Write(p []byte) (int, error) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if !fh.writable {
		return 0, ErrInvalid
	}
	if fh.dev != nil {
		return fh.dev.Write(p)
	}

	// Split across multiple small transactions the same way xv6's
	// filewrite chunks writes to stay within MaxOpBlocks, so one huge
	// write can't overflow the log.
	const chunk = (MaxOpBlocksPerWrite) * BSize
	var total int
	for total < len(p) {
		n := len(p) - total
		if n > chunk {
			n = chunk
		}
		fh.fs.Begin()
		fh.ip.Lock()
		written, err := fh.fs.Writei(fh.ip, p[total:total+n], fh.off)
		fh.ip.Unlock()
		fh.fs.End()
		fh.off += uint32(written)
		total += written
		if err != nil {
			return total, err
		}
		if written != n {
			break
		}
	}
	return total, nil
}

// Seek repositions the file's cursor per io.Seeker semantics, with
// whence relative to the file's current size for io.SeekEnd.
func (fh *File) Seek(offset int64, whence int) (int64, error) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(fh.off)
	case io.SeekEnd:
		base = int64(fh.fs.Stat(fh.ip).Size)
	default:
		return 0, ErrInvalid
	}
	pos := base + offset
	if pos < 0 {
		return 0, ErrInvalid
	}
	fh.off = uint32(pos)
	return pos, nil
}

// Stat returns the metadata of the file's underlying inode.
func (fh *File) Stat() Stat { return fh.fs.Stat(fh.ip) }

// Close releases the handle's reference to its inode.
func (fh *File) Close() error {
	fh.fs.Put(fh.ip)
	return nil
}

// MaxOpBlocksPerWrite caps the amount of file data written per
// transaction opened by File.Write, leaving headroom in a transaction
// for the inode and bitmap blocks the same write also dirties.
const MaxOpBlocksPerWrite = 4
