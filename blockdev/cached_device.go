package blockdev

import (
	"fmt"

	bitmap "github.com/boljen/go-bitmap"
	"github.com/blockimg/blockfs/fserrors"
	"github.com/blockimg/blockfs/layout"
)

// CachedDevice wraps a backing Device with a whole-image in-memory buffer
// and dirty-block tracking, so repeated small reads/writes against a slow
// backing device (e.g. one block at a time against a file over a network
// mount) don't each round-trip individually. Blocks are loaded from the
// backing device on first touch and only written back on Flush.
type CachedDevice struct {
	backing Device

	loaded bitmap.Bitmap
	dirty  bitmap.Bitmap
	data   []byte
}

// NewCachedDevice wraps backing in a CachedDevice. The whole image is
// buffered in memory; this is only appropriate for images that comfortably
// fit in RAM.
func NewCachedDevice(backing Device) *CachedDevice {
	total := int(backing.TotalBlocks())
	return &CachedDevice{
		backing: backing,
		loaded:  bitmap.NewSlice(total),
		dirty:   bitmap.NewSlice(total),
		data:    make([]byte, total*layout.BlockSize),
	}
}

func (d *CachedDevice) TotalBlocks() uint32 { return d.backing.TotalBlocks() }

func (d *CachedDevice) ReadBlocks(first, count uint32, buf []byte) error {
	if err := checkRange(first, count, d.backing.TotalBlocks(), buf); err != nil {
		return err
	}
	if err := d.loadRange(first, count); err != nil {
		return err
	}
	off := int(first) * layout.BlockSize
	copy(buf, d.data[off:off+int(count)*layout.BlockSize])
	return nil
}

func (d *CachedDevice) WriteBlocks(first, count uint32, buf []byte) error {
	if err := checkRange(first, count, d.backing.TotalBlocks(), buf); err != nil {
		return err
	}
	off := int(first) * layout.BlockSize
	copy(d.data[off:off+int(count)*layout.BlockSize], buf)
	for i := first; i < first+count; i++ {
		d.loaded.Set(int(i), true)
		d.dirty.Set(int(i), true)
	}
	return nil
}

// loadRange ensures every block in [first, first+count) is present in the
// in-memory buffer, fetching any missing one from the backing device.
func (d *CachedDevice) loadRange(first, count uint32) error {
	for i := first; i < first+count; i++ {
		if d.loaded.Get(int(i)) {
			continue
		}
		off := int(i) * layout.BlockSize
		if err := d.backing.ReadBlocks(i, 1, d.data[off:off+layout.BlockSize]); err != nil {
			return fserrors.ErrIOFailed.Wrap(fmt.Errorf("loading block %d into cache: %w", i, err))
		}
		d.loaded.Set(int(i), true)
	}
	return nil
}

// Flush writes every dirty block back to the backing device and marks the
// cache clean.
func (d *CachedDevice) Flush() error {
	total := d.backing.TotalBlocks()
	for i := uint32(0); i < total; i++ {
		if !d.dirty.Get(int(i)) {
			continue
		}
		off := int(i) * layout.BlockSize
		if err := d.backing.WriteBlocks(i, 1, d.data[off:off+layout.BlockSize]); err != nil {
			return err
		}
		d.dirty.Set(int(i), false)
	}
	return nil
}
