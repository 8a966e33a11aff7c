// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fsck mounts a disk image, which runs log recovery as a side
// effect, and reports the superblock layout and recovery outcome.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kikyousam/tinyos-storage/bdev"
	"github.com/kikyousam/tinyos-storage/fs"
)

func main() {
	log.SetFlags(0)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s IMAGE\n", os.Args[0])
		os.Exit(2)
	}
	image := flag.Arg(0)

	info, err := os.Stat(image)
	if err != nil {
		log.Fatalf("fsck: %v", err)
	}
	nblocks := uint32(info.Size() / fs.BSize)

	dev, err := bdev.OpenFile(image, nblocks)
	if err != nil {
		log.Fatalf("fsck: open %s: %v", image, err)
	}
	defer dev.Close()

	f, err := fs.Mount(dev, fs.RootDev, fs.DefaultParams())
	if err != nil {
		log.Fatalf("fsck: mount: %v", err)
	}

	sb := f.Superblock()
	fmt.Printf("fsck: %s: recovery ran, file system is consistent\n", image)
	fmt.Printf("  size=%d nblocks=%d ninodes=%d nlog=%d logstart=%d inodestart=%d bmapstart=%d datastart=%d\n",
		sb.Size, sb.NBlocks, sb.NInodes, sb.NLog, sb.LogStart, sb.InodeStart, sb.BmapStart, sb.DataStart)
}
