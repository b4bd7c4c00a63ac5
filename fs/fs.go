// Package fs implements the on-disk layout engine and metadata manager:
// mount/flush, the path resolver, the block indexer, directory maintenance,
// and the public file operations (spec §4). It is single-threaded and
// holds no internal lock; callers (a FUSE bridge, a test) must serialize
// calls to a *FileSystem themselves (spec §5).
package fs

import (
	"fmt"

	"github.com/blockimg/blockfs/bitmapalloc"
	"github.com/blockimg/blockfs/blockdev"
	"github.com/blockimg/blockfs/fserrors"
	"github.com/blockimg/blockfs/layout"
)

// FileSystem is the in-memory mirror of one mounted image: the superblock,
// both bitmaps, the full inode table, and the set of inode-table blocks
// that have been modified since the last flush.
type FileSystem struct {
	dev blockdev.Device
	sb  layout.Superblock

	inodeBitmap *bitmapalloc.Allocator
	blockBitmap *bitmapalloc.Allocator

	inodes           []layout.Inode
	dirtyInodeBlocks []bool
}

// Mount reads the superblock, both bitmaps, and the entire inode table from
// dev into memory.
func Mount(dev blockdev.Device) (*FileSystem, error) {
	sbBuf := make([]byte, layout.BlockSize)
	if err := dev.ReadBlocks(0, 1, sbBuf); err != nil {
		return nil, err
	}
	sb := layout.DecodeSuperblock(sbBuf)
	if sb.Magic != layout.Magic {
		return nil, fserrors.ErrIOFailed.WithMessage(fmt.Sprintf(
			"bad superblock magic: got %#08x, want %#08x", sb.Magic, layout.Magic,
		))
	}

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
	inodes := make([]layout.Inode, totalInodes)
	for i := uint32(0); i < totalInodes; i++ {
		off := i * layout.InodeSize
		inodes[i] = layout.DecodeInode(inodeTableBuf[off : off+layout.InodeSize])
	}

	return &FileSystem{
		dev:              dev,
		sb:               sb,
		inodeBitmap:      bitmapalloc.Wrap(inodeBitmapBuf, int(totalInodes), int(sb.RootInode)),
		blockBitmap:      bitmapalloc.Wrap(blockBitmapBuf, int(sb.NumBlocks), int(sb.FirstDataBlock())),
		inodes:           inodes,
		dirtyInodeBlocks: make([]bool, sb.InodeRegionSz),
	}, nil
}

// Superblock returns a copy of the mounted image's superblock.
func (fsys *FileSystem) Superblock() layout.Superblock { return fsys.sb }

// markInodeDirty records that the inode-table block containing inum needs
// to be rewritten on the next flush, mirroring the source's mark_inode.
func (fsys *FileSystem) markInodeDirty(inum uint32) {
	fsys.dirtyInodeBlocks[inum/layout.InodesPerBlock] = true
}

// flush writes every dirty inode-table block back to the device, and
// unconditionally rewrites both bitmaps in full — the metadata persistence
// discipline of spec §4.6, generalized from the source's single-block
// bitmap assumption to bitmaps of arbitrary size.
func (fsys *FileSystem) flush() error {
	if err := fsys.dev.WriteBlocks(fsys.sb.FirstMetadataBlock(), fsys.sb.InodeMapSz, fsys.inodeBitmap.Bytes()); err != nil {
		return err
	}
	if err := fsys.dev.WriteBlocks(fsys.sb.BlockMapBase(), fsys.sb.BlockMapSz, fsys.blockBitmap.Bytes()); err != nil {
		return err
	}

	for relIdx, dirty := range fsys.dirtyInodeBlocks {
		if !dirty {
			continue
		}
		block := make([]byte, layout.BlockSize)
		base := uint32(relIdx) * layout.InodesPerBlock
		for j := uint32(0); j < layout.InodesPerBlock; j++ {
			copy(block[j*layout.InodeSize:], fsys.inodes[base+j].Encode())
		}
		if err := fsys.dev.WriteBlocks(fsys.sb.InodeTableBase()+uint32(relIdx), 1, block); err != nil {
			return err
		}
		fsys.dirtyInodeBlocks[relIdx] = false
	}
	return nil
}

func (fsys *FileSystem) readDataBlock(blk uint32) ([]byte, error) {
	buf := make([]byte, layout.BlockSize)
	if err := fsys.dev.ReadBlocks(blk, 1, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (fsys *FileSystem) writeDataBlock(blk uint32, data []byte) error {
	return fsys.dev.WriteBlocks(blk, 1, data)
}

func (fsys *FileSystem) readDirBlock(blk uint32) ([layout.DirentsPerBlock]layout.Dirent, error) {
	var entries [layout.DirentsPerBlock]layout.Dirent
	buf, err := fsys.readDataBlock(blk)
	if err != nil {
		return entries, err
	}
	return layout.DecodeDirBlock(buf), nil
}

func (fsys *FileSystem) writeDirBlock(blk uint32, entries *[layout.DirentsPerBlock]layout.Dirent) error {
	return fsys.writeDataBlock(blk, layout.EncodeDirBlock(entries))
}

func blocksForSize(size uint32) uint32 {
	return (size + layout.BlockSize - 1) / layout.BlockSize
}
