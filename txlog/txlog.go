// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package txlog implements the write-ahead redo log that groups
// multiple file-system syscalls into a single on-disk transaction,
// pins their dirty buffers until commit, and recovers the installed
// (or not-yet-installed) state after a crash.
package txlog

import (
	"encoding/binary"
	"log"
	"sync"

	"github.com/kikyousam/tinyos-storage/bcache"
	"github.com/kikyousam/tinyos-storage/bdev"
)

// LogSize is the maximum number of distinct blocks a single
// transaction may touch.
const LogSize = 30

// MaxOpBlocks is the per-op reservation used by admission control in
// Begin: an op may dirty at most this many distinct blocks.
const MaxOpBlocks = 10

// header is the on-disk and in-memory log header: the first block of
// the log region, recording which destination blocks the current
// transaction covers.
type header struct {
	n     int
	block [LogSize]uint32
}

func (h *header) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.n))
	for i := 0; i < LogSize; i++ {
		binary.LittleEndian.PutUint32(buf[4+4*i:8+4*i], h.block[i])
	}
}

func (h *header) decode(buf []byte) {
	h.n = int(binary.LittleEndian.Uint32(buf[0:4]))
	for i := 0; i < LogSize; i++ {
		h.block[i] = binary.LittleEndian.Uint32(buf[4+4*i : 8+4*i])
	}
}

// Log is the redo log for one device. Many concurrent callers may be
// inside a transaction (Begin..End bracket) at once; their writes are
// merged into a single group transaction that commits only when the
// last of them calls End.
type Log struct {
	mu   sync.Mutex
	cond *sync.Cond

	cache *bcache.Cache
	dev   uint32
	start uint32 // first block of the log region
	size  uint32 // blocks in the log region, including the header

	outstanding int
	committing  bool
	lh          header
}

// Open mounts the log at [start, start+size) on dev, running recovery
// (replaying a committed-but-not-installed transaction, if any) before
// returning.
func Open(cache *bcache.Cache, dev, start, size uint32) *Log {
	if headerSize() >= bdev.BlockSize {
		panic("txlog: log header does not fit in one block")
	}
	l := &Log{cache: cache, dev: dev, start: start, size: size}
	l.cond = sync.NewCond(&l.mu)
	l.recover()
	return l
}

func headerSize() int { return 4 + 4*LogSize }

func (l *Log) readHead() {
	b, err := l.cache.Read(l.dev, l.start)
	if err != nil {
		log.Panicf("txlog: read header: %v", err)
	}
	l.lh.decode(b.Data[:])
	l.cache.Release(b)
}

// writeHead writes the in-memory header to disk. This is the atomic
// commit point: once it returns, the transaction it describes is
// durable.
func (l *Log) writeHead() {
	b, err := l.cache.Read(l.dev, l.start)
	if err != nil {
		log.Panicf("txlog: read header for write: %v", err)
	}
	l.lh.encode(b.Data[:])
	if err := l.cache.Write(b); err != nil {
		log.Panicf("txlog: write header: %v", err)
	}
	l.cache.Release(b)
}

// installTrans copies committed log blocks to their home location.
// During recovery buffers are not pinned, so they must not be
// unpinned either.
func (l *Log) installTrans(recovering bool) {
	for tail := 0; tail < l.lh.n; tail++ {
		lbuf, err := l.cache.Read(l.dev, l.start+1+uint32(tail))
		if err != nil {
			log.Panicf("txlog: read log block: %v", err)
		}
		dbuf, err := l.cache.Read(l.dev, l.lh.block[tail])
		if err != nil {
			log.Panicf("txlog: read destination block: %v", err)
		}
		dbuf.Data = lbuf.Data
		if err := l.cache.Write(dbuf); err != nil {
			log.Panicf("txlog: install block %d: %v", l.lh.block[tail], err)
		}
		if !recovering {
			l.cache.Unpin(dbuf)
		}
		l.cache.Release(lbuf)
		l.cache.Release(dbuf)
	}
}

func (l *Log) recover() {
	l.readHead()
	l.installTrans(true)
	l.lh.n = 0
	l.writeHead()
}

// Begin admits a new op into the current (or a fresh) group
// transaction, blocking while a commit is in progress or while
// admitting this op could exhaust the log's reserved space.
func (l *Log) Begin() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		if l.committing {
			l.cond.Wait()
			continue
		}
		if l.lh.n+(l.outstanding+1)*MaxOpBlocks > LogSize {
			l.cond.Wait()
			continue
		}
		l.outstanding++
		return
	}
}

// Write registers b's block number with the current transaction's
// header. If the block is already registered (log absorption), no
// duplicate entry is made; otherwise the entry is appended and b is
// pinned so it cannot be evicted before commit. b must be
// sleep-locked by the caller, who has already mutated its payload,
// and Write must be called inside a Begin/End bracket.
func (l *Log) Write(b *bcache.Buf) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lh.n >= LogSize || int(l.lh.n) >= int(l.size)-1 {
		panic("txlog: too big a transaction")
	}
	if l.outstanding < 1 {
		panic("txlog: write outside of transaction")
	}

	i := 0
	for ; i < l.lh.n; i++ {
		if l.lh.block[i] == b.Blockno() {
			break
		}
	}
	l.lh.block[i] = b.Blockno()
	if i == l.lh.n {
		l.cache.Pin(b)
		l.lh.n++
	}
}

// End decrements the outstanding-op count. If this was the last
// outstanding op, it commits the group transaction.
func (l *Log) End() {
	l.mu.Lock()
	l.outstanding--
	if l.committing {
		l.mu.Unlock()
		panic("txlog: end during commit")
	}

	doCommit := false
	if l.outstanding == 0 {
		doCommit = true
		l.committing = true
	} else {
		// Begin may be waiting for log space; fewer outstanding ops
		// means more of it is now available.
		l.cond.Broadcast()
	}
	l.mu.Unlock()

	if doCommit {
		l.commit()
		l.mu.Lock()
		l.committing = false
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

// writeLog copies every dirty cache block into its log-area slot.
func (l *Log) writeLog() {
	for tail := 0; tail < l.lh.n; tail++ {
		to, err := l.cache.Read(l.dev, l.start+1+uint32(tail))
		if err != nil {
			log.Panicf("txlog: read log slot: %v", err)
		}
		// The block is pinned, so Get returns the resident dirty buffer
		// without reloading it from disk.
		from := l.cache.Get(l.dev, l.lh.block[tail])
		to.Data = from.Data
		if err := l.cache.Write(to); err != nil {
			log.Panicf("txlog: write log slot: %v", err)
		}
		l.cache.Release(from)
		l.cache.Release(to)
	}
}

// commit runs the four-step algorithm from spec §4.2, with the log
// spinlock not held: copy dirty buffers into the log, commit the
// header (the durability point), install to home locations, then
// clear the header so recovery will not replay a completed
// transaction.
func (l *Log) commit() {
	if l.lh.n == 0 {
		return
	}
	l.writeLog()
	l.writeHead()
	l.installTrans(false)
	l.lh.n = 0
	l.writeHead()
}
