// Package fsck implements the offline, read-only image consistency checker:
// it loads a raw image, decodes the superblock and both bitmaps, walks the
// live tree by breadth-first search from the root inode, and reports
// allocation bookkeeping plus any inconsistency it finds along the way.
// It never writes to the image.
package fsck

import (
	"fmt"

	"github.com/blockimg/blockfs/bitmapalloc"
	"github.com/blockimg/blockfs/blockdev"
	"github.com/blockimg/blockfs/layout"
	"github.com/hashicorp/go-multierror"
)

// Report is the structured result of a check: the allocation bookkeeping
// read straight off the bitmaps, the reachable sets built by traversal, and
// every diagnostic line the traversal produced.
type Report struct {
	Superblock       layout.Superblock
	AllocatedInodes  []uint32
	AllocatedBlocks  []uint32
	Entries          []TreeEntry
	Diagnostics      []string
	UnreachableInode []uint32
	UnreachableBlock []uint32
}

// TreeEntry describes one inode visited during traversal, in visit order.
type TreeEntry struct {
	Inode     uint32
	IsDir     bool
	DirBlock  uint32 // valid only when IsDir
	Mode      uint32
	UID, GID  uint32
	Size      uint32
	DataBlocks []uint32 // direct + indirect + double-indirect payloads, in order (files only)
}

type queueEntry struct {
	inum  uint32
	isDir bool
}

// Check loads the image on dev and produces a Report. Errors returned are
// fatal I/O failures; inconsistencies found during a successful traversal
// are reported as Diagnostics, not as an error.
func Check(dev blockdev.Device) (*Report, error) {
	sbBuf := make([]byte, layout.BlockSize)
	if err := dev.ReadBlocks(0, 1, sbBuf); err != nil {
		return nil, err
	}
	sb := layout.DecodeSuperblock(sbBuf)

	inodeBitmapBuf := make([]byte, int(sb.InodeMapSz)*layout.BlockSize)
	if err := dev.ReadBlocks(sb.FirstMetadataBlock(), sb.InodeMapSz, inodeBitmapBuf); err != nil {
		return nil, err
	}
	blockBitmapBuf := make([]byte, int(sb.BlockMapSz)*layout.BlockSize)
	if err := dev.ReadBlocks(sb.BlockMapBase(), sb.BlockMapSz, blockBitmapBuf); err != nil {
		return nil, err
	}
	inodeTableBuf := make([]byte, int(sb.InodeRegionSz)*layout.BlockSize)
	if err := dev.ReadBlocks(sb.InodeTableBase(), sb.InodeRegionSz, inodeTableBuf); err != nil {
		return nil, err
	}

	totalInodes := sb.TotalInodeSlots()
	inodeBitmap := bitmapalloc.Wrap(inodeBitmapBuf, int(totalInodes), 1)
	blockBitmap := bitmapalloc.Wrap(blockBitmapBuf, int(sb.NumBlocks), int(sb.FirstDataBlock()))

	inodes := make([]layout.Inode, totalInodes)
	for i := uint32(0); i < totalInodes; i++ {
		off := i * layout.InodeSize
		inodes[i] = layout.DecodeInode(inodeTableBuf[off : off+layout.InodeSize])
	}

	c := &checker{dev: dev, sb: sb, inodeBitmap: inodeBitmap, blockBitmap: blockBitmap, inodes: inodes}
	return c.run()
}

type checker struct {
	dev         blockdev.Device
	sb          layout.Superblock
	inodeBitmap *bitmapalloc.Allocator
	blockBitmap *bitmapalloc.Allocator
	inodes      []layout.Inode

	visitedInodes map[uint32]bool
	visitedBlocks map[uint32]bool
	diagnostics   []string
	entries       []TreeEntry
}

func (c *checker) diagf(format string, args ...interface{}) {
	c.diagnostics = append(c.diagnostics, fmt.Sprintf(format, args...))
}

func (c *checker) run() (*Report, error) {
	c.visitedInodes = map[uint32]bool{}
	c.visitedBlocks = map[uint32]bool{}

	queue := []queueEntry{{inum: c.sb.RootInode, isDir: true}}
	c.visitedInodes[c.sb.RootInode] = true

	var err error
	var merr error

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		in := &c.inodes[e.inum]
		if e.isDir {
			queue, err = c.visitDirectory(e.inum, in, queue)
		} else {
			err = c.visitFile(e.inum, in)
		}
		if err != nil {
			merr = multierror.Append(merr, err)
			return c.finish(), merr
		}
	}

	return c.finish(), nil
}

func (c *checker) visitDirectory(inum uint32, in *layout.Inode, queue []queueEntry) ([]queueEntry, error) {
	if !in.IsDir() {
		c.diagf("inode %d not a directory", inum)
		return queue, nil
	}

	dirBlock := in.Direct[0]
	c.reportBlockUsage(dirBlock)

	raw, err := c.readBlock(dirBlock)
	if err != nil {
		return queue, err
	}
	entries := layout.DecodeDirBlock(raw)

	c.entries = append(c.entries, TreeEntry{
		Inode: inum, IsDir: true, DirBlock: dirBlock,
		Mode: in.Mode, UID: in.UID, GID: in.GID,
	})

	for _, ent := range entries {
		if !ent.Valid {
			continue
		}
		child := ent.Inode
		if child >= c.sb.TotalInodeSlots() {
			c.diagf("invalid inode %d", child)
			continue
		}
		if c.visitedInodes[child] {
			c.diagf("loop found (inode %d)", inum)
			continue
		}
		c.visitedInodes[child] = true
		if !c.inodeBitmap.IsSet(int(child)) {
			c.diagf("inode %d marked free", child)
		}
		if ent.IsDir && !c.inodes[child].IsDir() {
			c.diagf("inode %d not a directory", child)
		}
		queue = append(queue, queueEntry{inum: child, isDir: ent.IsDir})
	}
	return queue, nil
}

func (c *checker) visitFile(inum uint32, in *layout.Inode) error {
	var dataBlocks []uint32

	for _, b := range in.Direct {
		if b == 0 {
			continue
		}
		c.reportBlockUsage(b)
		dataBlocks = append(dataBlocks, b)
	}

	if in.IndirSingle != 0 {
		payload, err := c.visitIndirectBlock(in.IndirSingle)
		if err != nil {
			return err
		}
		dataBlocks = append(dataBlocks, payload...)
	}

	if in.IndirDouble != 0 {
		raw, err := c.readBlock(in.IndirDouble)
		if err != nil {
			return err
		}
		for _, ib := range layout.DecodeBlockPtrs(raw) {
			if ib == 0 {
				continue
			}
			payload, err := c.visitIndirectBlock(ib)
			if err != nil {
				return err
			}
			dataBlocks = append(dataBlocks, payload...)
		}
	}

	c.entries = append(c.entries, TreeEntry{
		Inode: inum, IsDir: false, Mode: in.Mode,
		UID: in.UID, GID: in.GID, Size: in.Size, DataBlocks: dataBlocks,
	})
	return nil
}

func (c *checker) visitIndirectBlock(indirBlk uint32) ([]uint32, error) {
	raw, err := c.readBlock(indirBlk)
	if err != nil {
		return nil, err
	}
	var out []uint32
	for _, b := range layout.DecodeBlockPtrs(raw) {
		if b == 0 {
			continue
		}
		c.reportBlockUsage(b)
		out = append(out, b)
	}
	return out, nil
}

func (c *checker) reportBlockUsage(blk uint32) {
	c.visitedBlocks[blk] = true
	if !c.blockBitmap.IsSet(int(blk)) {
		c.diagf("block %d marked free", blk)
	}
}

func (c *checker) readBlock(blk uint32) ([]byte, error) {
	buf := make([]byte, layout.BlockSize)
	if err := c.dev.ReadBlocks(blk, 1, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *checker) finish() *Report {
	var allocInodes, allocBlocks, unreachInodes, unreachBlocks []uint32

	for i := uint32(0); i < c.sb.TotalInodeSlots(); i++ {
		if c.inodeBitmap.IsSet(int(i)) {
			allocInodes = append(allocInodes, i)
			if !c.visitedInodes[i] {
				unreachInodes = append(unreachInodes, i)
			}
		}
	}

	for i := uint32(0); i < c.sb.NumBlocks; i++ {
		if c.blockBitmap.IsSet(int(i)) {
			allocBlocks = append(allocBlocks, i)
		}
	}

	for blk := range c.visitedBlocks {
		if blk >= c.sb.FirstDataBlock() && !c.blockBitmap.IsSet(int(blk)) {
			unreachBlocks = append(unreachBlocks, blk)
		}
	}

	return &Report{
		Superblock:       c.sb,
		AllocatedInodes:  allocInodes,
		AllocatedBlocks:  allocBlocks,
		Entries:          c.entries,
		Diagnostics:      c.diagnostics,
		UnreachableInode: unreachInodes,
		UnreachableBlock: unreachBlocks,
	}
}
