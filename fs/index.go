package fs

import (
	"github.com/blockimg/blockfs/fserrors"
	"github.com/blockimg/blockfs/layout"
)

// blockOf resolves the absolute block number holding the file-relative block
// index blockIdx of the inode at inum. It is lookup-only: a missing slot
// (a direct pointer, or a slot inside an indirection block that hasn't been
// allocated yet) returns 0 rather than allocating. Callers that need to
// extend a file must go through allocateThrough first.
func (fsys *FileSystem) blockOf(inum uint32, blockIdx uint32) (uint32, error) {
	if blockIdx < layout.NDirect {
		return fsys.inodes[inum].Direct[blockIdx], nil
	}
	blockIdx -= layout.NDirect

	if blockIdx < layout.PtrsPerBlock {
		in := &fsys.inodes[inum]
		if in.IndirSingle == 0 {
			return 0, nil
		}
		return fsys.lookupInIndirBlock(in.IndirSingle, blockIdx)
	}
	blockIdx -= layout.PtrsPerBlock

	if blockIdx < layout.PtrsPerBlock*layout.PtrsPerBlock {
		in := &fsys.inodes[inum]
		if in.IndirDouble == 0 {
			return 0, nil
		}
		outerIdx := blockIdx / layout.PtrsPerBlock
		innerIdx := blockIdx % layout.PtrsPerBlock
		outerBlk, err := fsys.lookupInIndirBlock(in.IndirDouble, outerIdx)
		if err != nil || outerBlk == 0 {
			return 0, err
		}
		return fsys.lookupInIndirBlock(outerBlk, innerIdx)
	}
	return 0, fserrors.ErrFileTooLarge
}

func (fsys *FileSystem) lookupInIndirBlock(indirBlk, idx uint32) (uint32, error) {
	raw, err := fsys.readDataBlock(indirBlk)
	if err != nil {
		return 0, err
	}
	ptrs := layout.DecodeBlockPtrs(raw)
	return ptrs[idx], nil
}

// indirBlockCache holds the decoded contents of one indirection block
// across a run of allocateThrough, so the block is written back at most
// once per run instead of once per newly filled slot.
type indirBlockCache struct {
	blk    uint32
	ptrs   [layout.PtrsPerBlock]uint32
	loaded bool
	dirty  bool
}

func (c *indirBlockCache) ensure(fsys *FileSystem, blk uint32) error {
	if c.loaded && c.blk == blk {
		return nil
	}
	raw, err := fsys.readDataBlock(blk)
	if err != nil {
		return err
	}
	c.blk = blk
	c.ptrs = layout.DecodeBlockPtrs(raw)
	c.loaded = true
	c.dirty = false
	return nil
}

func (c *indirBlockCache) flush(fsys *FileSystem) error {
	if !c.dirty {
		return nil
	}
	if err := fsys.writeDataBlock(c.blk, layout.EncodeBlockPtrs(&c.ptrs)); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// allocateThrough ensures every logical block in [blocksForSize(size), n] is
// allocated, in order. An indirection block is written to disk only once it
// is "finished" for this call — either its last inner slot (255) has just
// been filled, or the walk has reached the target index n — so a single
// call allocates at most one write per indirection block touched,
// regardless of how many new slots within it were filled.
func (fsys *FileSystem) allocateThrough(inum uint32, n uint32) error {
	in := &fsys.inodes[inum]
	cur := blocksForSize(in.Size)
	if n < cur {
		return nil
	}

	var single, outer, inner indirBlockCache

	for i := cur; i <= n; i++ {
		switch {
		case i < layout.NDirect:
			if in.Direct[i] == 0 {
				blk, err := fsys.allocBlock()
				if err != nil {
					return err
				}
				in.Direct[i] = blk
				fsys.markInodeDirty(inum)
			}

		case i < layout.NDirect+layout.PtrsPerBlock:
			if in.IndirSingle == 0 {
				ib, err := fsys.allocBlock()
				if err != nil {
					return err
				}
				in.IndirSingle = ib
				fsys.markInodeDirty(inum)
			}
			if err := single.ensure(fsys, in.IndirSingle); err != nil {
				return err
			}
			slot := i - layout.NDirect
			if single.ptrs[slot] == 0 {
				blk, err := fsys.allocBlock()
				if err != nil {
					return err
				}
				single.ptrs[slot] = blk
				single.dirty = true
			}
			if slot == layout.PtrsPerBlock-1 || i == n {
				if err := single.flush(fsys); err != nil {
					return err
				}
			}

		default:
			if in.IndirDouble == 0 {
				ib, err := fsys.allocBlock()
				if err != nil {
					return err
				}
				in.IndirDouble = ib
				fsys.markInodeDirty(inum)
			}
			if err := outer.ensure(fsys, in.IndirDouble); err != nil {
				return err
			}

			k := i - layout.NDirect - layout.PtrsPerBlock
			outerIdx := k / layout.PtrsPerBlock
			innerIdx := k % layout.PtrsPerBlock

			if outer.ptrs[outerIdx] == 0 {
				ib, err := fsys.allocBlock()
				if err != nil {
					return err
				}
				outer.ptrs[outerIdx] = ib
				outer.dirty = true
			}
			if err := inner.ensure(fsys, outer.ptrs[outerIdx]); err != nil {
				return err
			}

			if inner.ptrs[innerIdx] == 0 {
				blk, err := fsys.allocBlock()
				if err != nil {
					return err
				}
				inner.ptrs[innerIdx] = blk
				inner.dirty = true
			}
			if innerIdx == layout.PtrsPerBlock-1 || i == n {
				if err := inner.flush(fsys); err != nil {
					return err
				}
			}
			if i == n {
				if err := outer.flush(fsys); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// allocBlock grabs a free data block and zero-fills it before handing it
// back, so readers never see stale data left over from a previous tenant.
func (fsys *FileSystem) allocBlock() (uint32, error) {
	idx := fsys.blockBitmap.Alloc()
	if idx < 0 {
		return 0, fserrors.ErrNoSpaceOnDevice
	}
	blk := uint32(idx)
	if err := fsys.writeDataBlock(blk, make([]byte, layout.BlockSize)); err != nil {
		fsys.blockBitmap.Free(idx)
		return 0, err
	}
	return blk, nil
}

func (fsys *FileSystem) freeBlock(blk uint32) {
	if blk == 0 {
		return
	}
	fsys.blockBitmap.Free(int(blk))
}
