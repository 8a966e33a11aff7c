// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bcache implements the buffer cache: a fixed pool of
// in-memory block buffers mapped by (dev, blockno) through a
// hash-partitioned set of buckets, with LRU eviction among buffers
// that currently have no holder.
//
// Two lock flavours are used, matching the convention the rest of
// this module follows (see nodefs.Inode.mu in the teacher package for
// the same split): bucket.mu is the non-sleeping spinlock analogue —
// it is only ever held across short, non-blocking critical sections —
// and Buf.mu is the sleep-lock, held by exactly one caller while it
// examines or mutates a buffer's payload, and which may be held across
// disk I/O.
package bcache

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/kikyousam/tinyos-storage/bdev"
)

// NBucket is the number of buckets the (dev, blockno) index is
// partitioned into. It is prime so that sequential block numbers
// spread evenly across buckets.
const NBucket = 13

// Buf is the in-memory representation of one cached block.
type Buf struct {
	// mu is the sleep-lock: at most one holder may examine or
	// mutate Data at any time. Acquired by Get/Read, released by
	// Release.
	mu sync.Mutex

	dev     uint32
	blockno uint32
	valid   bool
	refcnt  int
	lastUse uint64

	// Data is the block's payload. Callers must hold the
	// sleep-lock (i.e. be between Get/Read and Release) to touch it.
	Data [bdev.BlockSize]byte

	bucket int
	next   *Buf
}

func (b *Buf) Dev() uint32     { return b.dev }
func (b *Buf) Blockno() uint32 { return b.blockno }

type bucket struct {
	mu   sync.Mutex
	head *Buf
}

// Cache is a fixed pool of NBuf buffers, shared by every caller of
// Get/Read/Write/Release/Pin/Unpin.
type Cache struct {
	dev     bdev.Device
	buckets [NBucket]*bucket
	bufs    []*Buf
	tick    atomic.Uint64
}

// New creates a cache of nbuf buffers over dev. All buffers start
// out resident in bucket 0, as in the teacher's binit: they migrate
// to their owning bucket the first time they are claimed for a block.
func New(dev bdev.Device, nbuf int) *Cache {
	c := &Cache{dev: dev}
	for i := range c.buckets {
		c.buckets[i] = &bucket{}
	}
	c.bufs = make([]*Buf, nbuf)
	for i := range c.bufs {
		b := &Buf{bucket: 0}
		c.bufs[i] = b
		b.next = c.buckets[0].head
		c.buckets[0].head = b
	}
	return c
}

func bucketOf(blockno uint32) int {
	return int(blockno % NBucket)
}

// removeLocked unlinks b from its current bucket's list. Caller must
// hold that bucket's lock.
func removeLocked(bk *bucket, b *Buf) {
	if bk.head == b {
		bk.head = b.next
		b.next = nil
		return
	}
	for p := bk.head; p != nil; p = p.next {
		if p.next == b {
			p.next = b.next
			b.next = nil
			return
		}
	}
	log.Panicf("bcache: buffer %p not found in its own bucket", b)
}

func insertLocked(bk *bucket, idx int, b *Buf) {
	b.bucket = idx
	b.next = bk.head
	bk.head = b
}

// Get returns a buffer for (dev, blockno), sleep-locked for the
// caller. The payload may or may not be resident yet; use Read if you
// need it loaded from disk.
func (c *Cache) Get(dev, blockno uint32) *Buf {
	idx := bucketOf(blockno)
	bk := c.buckets[idx]

	bk.mu.Lock()
	for b := bk.head; b != nil; b = b.next {
		if b.dev == dev && b.blockno == blockno {
			b.refcnt++
			bk.mu.Unlock()
			b.mu.Lock()
			return b
		}
	}
	bk.mu.Unlock()

	// Miss: acquire every bucket lock in ascending order, deadlock-free,
	// and re-scan in case another caller inserted the block while we
	// were not holding any lock.
	for i := 0; i < NBucket; i++ {
		c.buckets[i].mu.Lock()
	}
	if b := c.rescanLocked(idx, dev, blockno); b != nil {
		b.refcnt++
		c.unlockAllDescending()
		b.mu.Lock()
		return b
	}

	victim := c.findLRULocked()
	if victim == nil {
		c.unlockAllDescending()
		panic("bcache: no free buffers")
	}
	if victim.bucket != idx {
		removeLocked(c.buckets[victim.bucket], victim)
		insertLocked(bk, idx, victim)
	}
	victim.dev = dev
	victim.blockno = blockno
	victim.valid = false
	victim.refcnt = 1
	c.unlockAllDescending()

	victim.mu.Lock()
	return victim
}

func (c *Cache) rescanLocked(idx int, dev, blockno uint32) *Buf {
	for b := c.buckets[idx].head; b != nil; b = b.next {
		if b.dev == dev && b.blockno == blockno {
			return b
		}
	}
	return nil
}

// findLRULocked scans every bucket for the buffer with refcnt == 0
// and the smallest lastUse. Caller must hold every bucket lock.
func (c *Cache) findLRULocked() *Buf {
	var victim *Buf
	for i := 0; i < NBucket; i++ {
		for b := c.buckets[i].head; b != nil; b = b.next {
			if b.refcnt != 0 {
				continue
			}
			if victim == nil || b.lastUse < victim.lastUse {
				victim = b
			}
		}
	}
	return victim
}

func (c *Cache) unlockAllDescending() {
	for i := NBucket - 1; i >= 0; i-- {
		c.buckets[i].mu.Unlock()
	}
}

// Read is Get, plus a guarantee that Data holds the block's contents
// as last written to (or read from) disk.
func (c *Cache) Read(dev, blockno uint32) (*Buf, error) {
	b := c.Get(dev, blockno)
	if !b.valid {
		if err := c.dev.ReadBlock(blockno, b.Data[:]); err != nil {
			return nil, fmt.Errorf("bcache: read block %d: %w", blockno, err)
		}
		b.valid = true
	}
	return b, nil
}

// Write synchronously writes b's payload to its home location. b must
// be sleep-locked by the caller. Ordinary FS code should call
// txlog.Log.Write instead; Write is for the log machinery (and
// recovery) only.
func (c *Cache) Write(b *Buf) error {
	return c.dev.WriteBlock(b.blockno, b.Data[:])
}

// Release releases the sleep-lock and decrements refcnt. When refcnt
// falls to zero, lastUse is stamped with the next tick so LRU
// eviction can find it. b must not be touched by the caller
// afterwards.
func (c *Cache) Release(b *Buf) {
	b.mu.Unlock()

	bk := c.buckets[bucketOf(b.blockno)]
	bk.mu.Lock()
	b.refcnt--
	if b.refcnt < 0 {
		log.Panicf("bcache: release: refcnt underflow on block %d", b.blockno)
	}
	if b.refcnt == 0 {
		b.lastUse = c.tick.Add(1)
	}
	bk.mu.Unlock()
}

// Pin increments refcnt without touching the sleep-lock, used by
// txlog to keep dirty buffers resident across commit.
func (c *Cache) Pin(b *Buf) {
	bk := c.buckets[bucketOf(b.blockno)]
	bk.mu.Lock()
	b.refcnt++
	bk.mu.Unlock()
}

// Unpin is the inverse of Pin.
func (c *Cache) Unpin(b *Buf) {
	bk := c.buckets[bucketOf(b.blockno)]
	bk.mu.Lock()
	b.refcnt--
	if b.refcnt < 0 {
		log.Panicf("bcache: unpin: refcnt underflow on block %d", b.blockno)
	}
	bk.mu.Unlock()
}

// residentIdentities returns the (dev, blockno) of every buffer with
// refcnt > 0, sorted, for use by tests asserting identity-uniqueness
// (spec §8 property 2).
func (c *Cache) residentIdentities() []uint64 {
	var out []uint64
	for i := range c.buckets {
		c.buckets[i].mu.Lock()
		for b := c.buckets[i].head; b != nil; b = b.next {
			if b.refcnt > 0 {
				out = append(out, uint64(b.dev)<<32|uint64(b.blockno))
			}
		}
		c.buckets[i].mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
