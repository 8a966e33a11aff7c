// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mkfs formats a fresh disk image: a superblock, a zeroed log
// region, a zeroed inode region, a zeroed free-block bitmap, and a
// root directory inode with "." and ".." entries.
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

	nblocks := flag.Uint64("blocks", 1000, "size of the image, in blocks")
	ninodes := flag.Uint64("inodes", 200, "number of inodes")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] IMAGE\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	image := flag.Arg(0)

	sb, err := fs.Layout(uint32(*nblocks), uint32(*ninodes))
	if err != nil {
		log.Fatalf("mkfs: %v", err)
	}

	dev, err := bdev.OpenFile(image, uint32(*nblocks))
	if err != nil {
		log.Fatalf("mkfs: open %s: %v", image, err)
	}
	defer dev.Close()

	if err := format(dev, sb); err != nil {
		log.Fatalf("mkfs: %v", err)
	}
	fmt.Printf("mkfs: %s: %d blocks, %d inodes, %d data blocks\n",
		image, sb.Size, sb.NInodes, sb.NBlocks)
}

// format writes sb to block 1, zeroes the log/inode/bitmap/data
// regions directly (there is no committed transaction to recover yet:
// this is the image's very first write), then mounts the image and
// bootstraps its root directory.
func format(dev *bdev.FileDevice, sb fs.Superblock) error {
	var zero [fs.BSize]byte

	var buf [fs.BSize]byte
	sb.Encode(buf[:])
	if err := dev.WriteBlock(1, buf[:]); err != nil {
		return err
	}

	for b := sb.LogStart; b < sb.Size; b++ {
		if err := dev.WriteBlock(b, zero[:]); err != nil {
			return err
		}
	}

	f, err := fs.Mount(dev, fs.RootDev, fs.DefaultParams())
	if err != nil {
		return err
	}
	return f.Bootstrap()
}
