// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"golang.org/x/sync/errgroup"

	"github.com/kikyousam/tinyos-storage/bdev"
)

// newTestFS formats and mounts a fresh in-memory image with nblocks
// blocks and ninodes inodes.
func newTestFS(t *testing.T, nblocks, ninodes uint32) *FS {
	t.Helper()
	sb, err := Layout(nblocks, ninodes)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}

	dev := bdev.NewMemDevice(nblocks)
	var buf [BSize]byte
	sb.Encode(buf[:])
	if err := dev.WriteBlock(1, buf[:]); err != nil {
		t.Fatalf("write superblock: %v", err)
	}

	f, err := Mount(dev, RootDev, DefaultParams())
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := f.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return f
}

func (f *FS) rootInode(t *testing.T) *Inode {
	t.Helper()
	ip, err := f.Namei(nil, "/")
	if err != nil {
		t.Fatalf("Namei(/): %v", err)
	}
	return ip
}

func TestBootstrapCreatesRootDirectory(t *testing.T) {
	f := newTestFS(t, 2000, 200)
	root := f.rootInode(t)
	defer f.Put(root)

	st := f.Stat(root)
	if st.Type != TypeDir {
		t.Fatalf("root type = %v, want TypeDir", st.Type)
	}
	if st.Ino != RootIno {
		t.Fatalf("root ino = %d, want %d", st.Ino, RootIno)
	}

	dot, _, err := func() (*Inode, uint32, error) {
		root.Lock()
		defer root.Unlock()
		return f.Dirlookup(root, ".")
	}()
	if err != nil {
		t.Fatalf("dirlookup .: %v", err)
	}
	defer f.Put(dot)
	if dot.Ino() != RootIno {
		t.Fatalf(". resolves to inode %d, want %d", dot.Ino(), RootIno)
	}
}

func TestCreateAndOpenRoundTrip(t *testing.T) {
	f := newTestFS(t, 2000, 200)

	ip, err := f.Create(nil, "/hello.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fh, err := f.OpenFile(ip, true, true)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	want := []byte("hello, file system")
	if _, err := fh.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := fh.Seek(0, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got := make([]byte, len(want))
	n, err := fh.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(want) || string(got) != string(want) {
		t.Fatalf("read back %q, want %q", got[:n], want)
	}
	fh.Close()
}

func TestLargeFileSpansIndirectBlocks(t *testing.T) {
	f := newTestFS(t, 20000, 300)

	ip, err := f.Create(nil, "/big")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fh, err := f.OpenFile(ip, true, true)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer fh.Close()

	// Spans direct blocks, the single-indirect block, and into the
	// double-indirect region.
	size := (NDirect + NIndirect + 5) * BSize
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	n, err := fh.Write(data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(data) {
		t.Fatalf("wrote %d bytes, want %d", n, len(data))
	}

	if _, err := fh.Seek(0, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got := make([]byte, len(data))
	if _, err := fh.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], data[i])
		}
	}
}

func TestLinkIncrementsNlinkAndUnlinkFreesOnLastRef(t *testing.T) {
	f := newTestFS(t, 2000, 200)

	ip, err := f.Create(nil, "/a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Put(ip)

	if err := f.Link(nil, "/a", "/b"); err != nil {
		t.Fatalf("Link: %v", err)
	}

	aIno, err := f.Namei(nil, "/a")
	if err != nil {
		t.Fatalf("Namei(/a): %v", err)
	}
	st := f.Stat(aIno)
	if st.Nlink != 2 {
		t.Fatalf("nlink = %d, want 2", st.Nlink)
	}
	f.Put(aIno)

	if err := f.Unlink(nil, "/a"); err != nil {
		t.Fatalf("Unlink(/a): %v", err)
	}
	bIno, err := f.Namei(nil, "/b")
	if err != nil {
		t.Fatalf("Namei(/b): %v", err)
	}
	st = f.Stat(bIno)
	if st.Nlink != 1 {
		t.Fatalf("nlink after unlinking /a = %d, want 1", st.Nlink)
	}
	f.Put(bIno)

	if err := f.Unlink(nil, "/b"); err != nil {
		t.Fatalf("Unlink(/b): %v", err)
	}
	if _, err := f.Namei(nil, "/b"); err != ErrNotExist {
		t.Fatalf("Namei(/b) after unlink = %v, want ErrNotExist", err)
	}
}

func TestStatSurvivesCloseAndReopen(t *testing.T) {
	f := newTestFS(t, 2000, 200)
	ip, err := f.Create(nil, "/stat-me")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fh, _ := f.OpenFile(ip, true, true)
	fh.Write([]byte("abcdefgh"))
	before := fh.Stat()
	fh.Close()

	reopened, err := f.Namei(nil, "/stat-me")
	if err != nil {
		t.Fatalf("Namei: %v", err)
	}
	defer f.Put(reopened)
	after := f.Stat(reopened)

	if diff := pretty.Compare(before, after); diff != "" {
		t.Fatalf("stat changed across close/reopen (-before +after):\n%s", diff)
	}
}

func TestUnlinkRejectsNonEmptyDirectory(t *testing.T) {
	f := newTestFS(t, 2000, 200)
	if err := f.Mkdir(nil, "/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	ip, err := f.Create(nil, "/d/child")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Put(ip)

	if err := f.Unlink(nil, "/d"); err != ErrNotEmpty {
		t.Fatalf("Unlink(/d) = %v, want ErrNotEmpty", err)
	}
	if err := f.Unlink(nil, "/d/child"); err != nil {
		t.Fatalf("Unlink(/d/child): %v", err)
	}
	if err := f.Unlink(nil, "/d"); err != nil {
		t.Fatalf("Unlink(/d) after emptying: %v", err)
	}
}

func TestSymlinkResolvesToTarget(t *testing.T) {
	f := newTestFS(t, 2000, 200)
	ip, err := f.Create(nil, "/target")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fh, _ := f.OpenFile(ip, true, true)
	fh.Write([]byte("payload"))
	fh.Close()

	if err := f.Symlink(nil, "/target", "/link"); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	resolved, err := f.Namei(nil, "/link")
	if err != nil {
		t.Fatalf("Namei(/link): %v", err)
	}
	defer f.Put(resolved)
	st := f.Stat(resolved)
	if st.Type != TypeFile {
		t.Fatalf("resolved type = %v, want TypeFile", st.Type)
	}

	lnk, err := f.NameiNoFollow(nil, "/link")
	if err != nil {
		t.Fatalf("NameiNoFollow(/link): %v", err)
	}
	defer f.Put(lnk)
	if f.Stat(lnk).Type != TypeSymlink {
		t.Fatalf("NameiNoFollow type = %v, want TypeSymlink", f.Stat(lnk).Type)
	}
}

func TestSymlinkLoopIsRejected(t *testing.T) {
	f := newTestFS(t, 2000, 200)
	if err := f.Symlink(nil, "/b", "/a"); err != nil {
		t.Fatalf("Symlink a->b: %v", err)
	}
	if err := f.Symlink(nil, "/a", "/b"); err != nil {
		t.Fatalf("Symlink b->a: %v", err)
	}

	if _, err := f.Namei(nil, "/a"); err != ErrSymlinkLoop {
		t.Fatalf("Namei(/a) = %v, want ErrSymlinkLoop", err)
	}
}

func TestConcurrentCreateOfDistinctFilesAllSucceed(t *testing.T) {
	f := newTestFS(t, 4000, 300)

	var g errgroup.Group
	names := []string{"/c0", "/c1", "/c2", "/c3", "/c4", "/c5", "/c6", "/c7"}
	for _, name := range names {
		name := name
		g.Go(func() error {
			ip, err := f.Create(nil, name)
			if err != nil {
				return err
			}
			f.Put(ip)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Create: %v", err)
	}

	for _, name := range names {
		ip, err := f.Namei(nil, name)
		if err != nil {
			t.Fatalf("Namei(%s): %v", name, err)
		}
		f.Put(ip)
	}
}

func TestOpenCreateWithoutTruncPreservesExistingContent(t *testing.T) {
	f := newTestFS(t, 2000, 200)

	ip, err := f.Create(nil, "/existing")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fh, _ := f.OpenFile(ip, true, true)
	if _, err := fh.Write([]byte("original content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fh.Close()

	reopened, err := f.Open(nil, "/existing", OCreate)
	if err != nil {
		t.Fatalf("Open(OCreate): %v", err)
	}

	fh2, err := f.OpenFile(reopened, true, false)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer fh2.Close()
	got := make([]byte, len("original content"))
	n, err := fh2.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got[:n]) != "original content" {
		t.Fatalf("Open(OCreate) without OTrunc erased content: got %q", got[:n])
	}
}

func TestOpenCreateWithTruncErasesExistingContent(t *testing.T) {
	f := newTestFS(t, 2000, 200)

	ip, err := f.Create(nil, "/existing")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fh, _ := f.OpenFile(ip, true, true)
	if _, err := fh.Write([]byte("original content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fh.Close()

	reopened, err := f.Open(nil, "/existing", OCreate|OTrunc)
	if err != nil {
		t.Fatalf("Open(OCreate|OTrunc): %v", err)
	}
	defer f.Put(reopened)

	if f.Stat(reopened).Size != 0 {
		t.Fatalf("size after Open(OCreate|OTrunc) = %d, want 0", f.Stat(reopened).Size)
	}
}

func TestDataBlocksDoNotOverlapReservedRegions(t *testing.T) {
	nblocks, ninodes := uint32(2000), uint32(200)
	sb, err := Layout(nblocks, ninodes)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	dev := bdev.NewMemDevice(nblocks)
	var sbBuf [BSize]byte
	sb.Encode(sbBuf[:])
	if err := dev.WriteBlock(1, sbBuf[:]); err != nil {
		t.Fatalf("write superblock: %v", err)
	}

	f, err := Mount(dev, RootDev, DefaultParams())
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := f.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	ip, err := f.Create(nil, "/hello.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fh, err := f.OpenFile(ip, true, true)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := fh.Write([]byte("hello, file system")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fh.Close()

	// Read the on-disk superblock straight off the underlying device
	// (bypassing the cache, in case a stale hit would mask the bug): if
	// balloc ever hands out a block number inside the boot/super/log/
	// inode/bitmap regions, the file's payload will have clobbered it.
	var raw [BSize]byte
	if err := dev.ReadBlock(1, raw[:]); err != nil {
		t.Fatalf("read superblock: %v", err)
	}
	var got Superblock
	got.Decode(raw[:])
	if got.Magic != FSMagic {
		t.Fatalf("superblock magic corrupted after one file write: got %#x, want %#x", got.Magic, FSMagic)
	}

	if _, err := Mount(dev, RootDev, DefaultParams()); err != nil {
		t.Fatalf("remount after write: %v", err)
	}
}

func TestNameiParentSplitsFinalElement(t *testing.T) {
	// This storage layer mounts a single device per FS; NameiParent and
	// Link both operate within that one device, so Link's ErrCrossDevice
	// branch cannot be reached here. This checks the parent/name split
	// that Link relies on for its new path.
	f := newTestFS(t, 2000, 200)
	ip, err := f.Create(nil, "/a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Put(ip)

	dp, name, err := f.NameiParent(nil, "/b")
	if err != nil {
		t.Fatalf("NameiParent: %v", err)
	}
	if name != "b" {
		t.Fatalf("name = %q, want %q", name, "b")
	}
	f.Put(dp)
}
