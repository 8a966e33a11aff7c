// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package txlog

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/kikyousam/tinyos-storage/bcache"
	"github.com/kikyousam/tinyos-storage/bdev"
)

const testDev = 1

func newTestLog(t *testing.T, nblock uint32) (*bcache.Cache, *Log, bdev.Device) {
	t.Helper()
	dev := bdev.NewMemDevice(nblock)
	cache := bcache.New(dev, 32)
	l := Open(cache, testDev, 1, LogSize+1)
	return cache, l, dev
}

func TestCommitInstallsToHomeLocation(t *testing.T) {
	cache, l, dev := newTestLog(t, 64)

	const home = 40
	l.Begin()
	b := cache.Get(testDev, home)
	for i := range b.Data {
		b.Data[i] = 0xAB
	}
	l.Write(b)
	cache.Release(b)
	l.End()

	var got [bdev.BlockSize]byte
	if err := dev.ReadBlock(home, got[:]); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != 0xAB {
			t.Fatalf("byte %d = %x, want 0xAB", i, v)
		}
	}
}

func TestLogAbsorptionKeepsLastWrite(t *testing.T) {
	cache, l, dev := newTestLog(t, 64)

	const home = 40
	l.Begin()
	for pass := byte(0); pass < 5; pass++ {
		b := cache.Get(testDev, home)
		for i := range b.Data {
			b.Data[i] = pass
		}
		l.Write(b)
		cache.Release(b)
	}
	l.End()

	var got [bdev.BlockSize]byte
	if err := dev.ReadBlock(home, got[:]); err != nil {
		t.Fatal(err)
	}
	if got[0] != 4 {
		t.Fatalf("home block = %d, want 4 (last write)", got[0])
	}
}

func TestRecoveryInstallsCommittedTransaction(t *testing.T) {
	dev := bdev.NewMemDevice(64)
	cache := bcache.New(dev, 32)
	l := Open(cache, testDev, 1, LogSize+1)

	const home = 40
	l.Begin()
	b := cache.Get(testDev, home)
	for i := range b.Data {
		b.Data[i] = 0xCD
	}
	l.Write(b)
	cache.Release(b)

	// Simulate a crash right after the header commit point: run the
	// commit manually but stop before installing and clearing the header.
	l.writeLog()
	l.writeHead()
	// do NOT installTrans / re-clear — pretend the process died here.

	// Remount: a fresh cache and log over the same backing device.
	cache2 := bcache.New(dev, 32)
	Open(cache2, testDev, 1, LogSize+1)

	var got [bdev.BlockSize]byte
	if err := dev.ReadBlock(home, got[:]); err != nil {
		t.Fatal(err)
	}
	if got[0] != 0xCD {
		t.Fatalf("home block after recovery = %x, want 0xCD", got[0])
	}
}

func TestBeginEndConcurrentGroupCommit(t *testing.T) {
	cache, l, dev := newTestLog(t, 128)

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		home := uint32(50 + i)
		val := byte(i + 1)
		g.Go(func() error {
			l.Begin()
			b := cache.Get(testDev, home)
			for j := range b.Data {
				b.Data[j] = val
			}
			l.Write(b)
			cache.Release(b)
			l.End()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		var got [bdev.BlockSize]byte
		if err := dev.ReadBlock(uint32(50+i), got[:]); err != nil {
			t.Fatal(err)
		}
		if got[0] != byte(i+1) {
			t.Fatalf("block %d = %d, want %d", 50+i, got[0], i+1)
		}
	}
}

func TestWriteOutsideTransactionPanics(t *testing.T) {
	cache, l, _ := newTestLog(t, 64)
	b := cache.Get(testDev, 40)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic writing outside a transaction")
		}
		cache.Release(b)
	}()
	l.Write(b)
}
