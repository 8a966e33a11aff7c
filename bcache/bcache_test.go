// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcache

import (
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/kikyousam/tinyos-storage/bdev"
)

func TestGetReturnsSameBufferForSameBlock(t *testing.T) {
	c := New(bdev.NewMemDevice(64), 8)

	b1 := c.Get(1, 5)
	c.Release(b1)

	b2 := c.Get(1, 5)
	if b2 != b1 {
		t.Fatalf("got a different buffer for block %d dev %d", b2.blockno, b2.dev)
	}
	c.Release(b2)
}

func TestReadLoadsFromDiskOnce(t *testing.T) {
	dev := bdev.NewMemDevice(64)
	var payload [bdev.BlockSize]byte
	payload[0] = 0xAB
	if err := dev.WriteBlock(3, payload[:]); err != nil {
		t.Fatal(err)
	}

	c := New(dev, 8)
	b, err := c.Read(1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if b.Data[0] != 0xAB {
		t.Fatalf("got %x, want 0xAB", b.Data[0])
	}
	c.Release(b)

	// A second Read of the still-cached block must not reload it.
	payload[0] = 0xCD
	if err := dev.WriteBlock(3, payload[:]); err != nil {
		t.Fatal(err)
	}
	b, err = c.Read(1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if b.Data[0] != 0xAB {
		t.Fatalf("got %x after second Read, want cached 0xAB", b.Data[0])
	}
	c.Release(b)
}

func TestAtMostOneHolder(t *testing.T) {
	c := New(bdev.NewMemDevice(64), 8)

	var mu sync.Mutex
	held := false

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			b := c.Get(1, 2)
			mu.Lock()
			if held {
				mu.Unlock()
				t.Error("two goroutines held the same buffer's sleep-lock")
				return nil
			}
			held = true
			mu.Unlock()

			mu.Lock()
			held = false
			mu.Unlock()
			c.Release(b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(bdev.NewMemDevice(64), 2)

	b0 := c.Get(1, 0)
	c.Release(b0)
	b1 := c.Get(1, 1)
	c.Release(b1)

	// block 0 was released first, so it has the smaller lastUse and
	// must be the one recycled for block 2.
	b2 := c.Get(1, 2)
	if b2.blockno != 2 {
		t.Fatalf("got block %d", b2.blockno)
	}
	c.Release(b2)

	stillThere := c.Get(1, 1)
	if stillThere != b1 {
		t.Fatalf("block 1 should have survived eviction in its original buffer")
	}
	c.Release(stillThere)
}

func TestPinPreventsEviction(t *testing.T) {
	c := New(bdev.NewMemDevice(64), 2)

	b0 := c.Get(1, 0)
	c.Pin(b0)
	c.Release(b0)

	b1 := c.Get(1, 1)
	c.Release(b1)

	// Block 0 is pinned (refcnt 1) and block 1 was just released
	// (refcnt 0, the only candidate), so block 1 must be the one
	// recycled, not block 0.
	b2 := c.Get(1, 2)
	if b2.blockno != 2 {
		t.Fatalf("got block %d", b2.blockno)
	}
	if b0.blockno != 0 {
		t.Fatalf("pinned block 0 was recycled for block %d", b0.blockno)
	}
	c.Release(b2)
	c.Unpin(b0)
}

func TestPoolExhaustionPanics(t *testing.T) {
	c := New(bdev.NewMemDevice(64), 1)

	b := c.Get(1, 0)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on pool exhaustion")
		}
		c.Release(b)
	}()
	c.Get(1, 1)
}

func TestIdentityUniqueness(t *testing.T) {
	c := New(bdev.NewMemDevice(64), 8)

	bufs := make([]*Buf, 4)
	for i := range bufs {
		bufs[i] = c.Get(1, uint32(i))
	}

	ids := c.residentIdentities()
	seen := map[uint64]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate identity %x in resident set", id)
		}
		seen[id] = true
	}

	for _, b := range bufs {
		c.Release(b)
	}
}
