// Package bitmapalloc implements the lowest-free-index inode and data block
// allocators over packed bit arrays (spec §4.1), backed by
// github.com/boljen/go-bitmap the same way the teacher's block cache tracks
// loaded/dirty blocks.
package bitmapalloc

import bitmap "github.com/boljen/go-bitmap"

// Allocator is a lowest-index-first bit allocator over a fixed-size range
// [reservedFrom, size). Bits below reservedFrom are permanently treated
// as allocated (they cover the superblock, bitmaps, and inode table, or
// inode 0) and are never handed out or cleared.
type Allocator struct {
	bits         bitmap.Bitmap
	size         int
	reservedFrom int
}

// New creates an allocator over size bits, with [0, reservedFrom) excluded
// from allocation and counted as perpetually in-use.
func New(size, reservedFrom int) *Allocator {
	return &Allocator{
		bits:         bitmap.New(size),
		size:         size,
		reservedFrom: reservedFrom,
	}
}

// Wrap adapts an existing packed bit array (as read from disk) into an
// Allocator without copying it.
func Wrap(data []byte, size, reservedFrom int) *Allocator {
	return &Allocator{
		bits:         bitmap.Bitmap(data),
		size:         size,
		reservedFrom: reservedFrom,
	}
}

// Bytes returns the packed bit array backing this allocator, suitable for
// writing straight to a block device.
func (a *Allocator) Bytes() []byte {
	return a.bits.Data(false)
}

// IsSet reports whether bit i is currently allocated.
func (a *Allocator) IsSet(i int) bool {
	return a.bits.Get(i)
}

// Alloc returns the lowest-index clear bit at or above reservedFrom, sets
// it, and returns its index. It returns -1 when the range is exhausted.
func (a *Allocator) Alloc() int {
	for i := a.reservedFrom; i < a.size; i++ {
		if !a.bits.Get(i) {
			a.bits.Set(i, true)
			return i
		}
	}
	return -1
}

// Free clears bit i. Freeing an index below reservedFrom or outside the
// allocator's range is a no-op; such bits are permanently reserved.
func (a *Allocator) Free(i int) {
	if i < a.reservedFrom || i >= a.size {
		return
	}
	a.bits.Set(i, false)
}

// CountFree returns the number of clear bits at or above reservedFrom.
func (a *Allocator) CountFree() int {
	count := 0
	for i := a.reservedFrom; i < a.size; i++ {
		if !a.bits.Get(i) {
			count++
		}
	}
	return count
}

// MarkReserved forcibly sets bit i, used by the formatter to pre-allocate
// the metadata blocks, the root directory's block, and the root inode before
// any Alloc call is made.
func (a *Allocator) MarkReserved(i int) {
	a.bits.Set(i, true)
}
