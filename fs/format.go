package fs

import (
	"fmt"
	"time"

	"github.com/blockimg/blockfs/bitmapalloc"
	"github.com/blockimg/blockfs/blockdev"
	"github.com/blockimg/blockfs/fserrors"
	"github.com/blockimg/blockfs/layout"
	"github.com/noxer/bytewriter"
)

// FormatOptions parameterizes Format; only the size of the inode table is a
// free choice, everything else follows from the device's block count.
type FormatOptions struct {
	// InodeRegionBlocks is the number of blocks reserved for the inode
	// table. Defaults to 1 block (InodesPerBlock inodes) if zero.
	InodeRegionBlocks uint32
}

// blocksForBits returns how many BlockSize blocks are needed to hold a
// packed bitmap of the given number of bits.
func blocksForBits(bits uint32) uint32 {
	bytes := (bits + 7) / 8
	return (bytes + layout.BlockSize - 1) / layout.BlockSize
}

// Format lays down a fresh, empty image on dev: the superblock, both
// bitmaps (the root inode and every metadata/root block pre-marked
// allocated; inode 0 is never handed out, and its bit stays clear), a
// zeroed inode table save for the root directory inode, and the root
// directory's single, empty data block.
func Format(dev blockdev.Device, opts FormatOptions) error {
	inodeRegionSz := opts.InodeRegionBlocks
	if inodeRegionSz == 0 {
		inodeRegionSz = 1
	}

	total := dev.TotalBlocks()
	totalInodeSlots := inodeRegionSz * layout.InodesPerBlock
	inodeMapSz := blocksForBits(totalInodeSlots)
	blockMapSz := blocksForBits(total)

	firstMeta := uint32(1)
	blockMapBase := firstMeta + inodeMapSz
	inodeTableBase := blockMapBase + blockMapSz
	firstDataBlock := inodeTableBase + inodeRegionSz

	if firstDataBlock >= total {
		return fserrors.ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"image of %d blocks has no room for a data region after %d metadata blocks",
			total, firstDataBlock,
		))
	}

	rootInum := uint32(1)
	sb := layout.Superblock{
		Magic:         layout.Magic,
		InodeMapSz:    inodeMapSz,
		BlockMapSz:    blockMapSz,
		InodeRegionSz: inodeRegionSz,
		NumBlocks:     total,
		RootInode:     rootInum,
	}

	inodeBitmapBuf := make([]byte, inodeMapSz*layout.BlockSize)
	inodeBitmap := bitmapalloc.Wrap(inodeBitmapBuf, int(totalInodeSlots), int(rootInum))
	inodeBitmap.MarkReserved(int(rootInum))

	blockBitmapBuf := make([]byte, blockMapSz*layout.BlockSize)
	blockBitmap := bitmapalloc.Wrap(blockBitmapBuf, int(total), int(firstDataBlock))
	for i := uint32(0); i < firstDataBlock; i++ {
		blockBitmap.MarkReserved(int(i))
	}
	blockBitmap.MarkReserved(int(firstDataBlock))

	now := uint32(time.Now().Unix())
	inodeTableBuf := make([]byte, inodeRegionSz*layout.BlockSize)
	writer := bytewriter.New(inodeTableBuf)
	for i := uint32(0); i < totalInodeSlots; i++ {
		var in layout.Inode
		if i == rootInum {
			in = layout.Inode{
				Mode:  layout.ModeDir | 0o755,
				Ctime: now,
				Mtime: now,
				Direct: [layout.NDirect]uint32{firstDataBlock},
			}
		}
		if _, err := writer.Write(in.Encode()); err != nil {
			return fserrors.ErrIOFailed.Wrap(err)
		}
	}

	if err := dev.WriteBlocks(0, 1, sb.Encode()); err != nil {
		return err
	}
	if err := dev.WriteBlocks(firstMeta, inodeMapSz, inodeBitmap.Bytes()); err != nil {
		return err
	}
	if err := dev.WriteBlocks(blockMapBase, blockMapSz, blockBitmap.Bytes()); err != nil {
		return err
	}
	if err := dev.WriteBlocks(inodeTableBase, inodeRegionSz, inodeTableBuf); err != nil {
		return err
	}
	if err := dev.WriteBlocks(firstDataBlock, 1, make([]byte, layout.BlockSize)); err != nil {
		return err
	}
	return nil
}
