// Package blockdev provides the block device abstraction the core consumes
// (spec §6): synchronous read/write of fixed-size blocks, indexed by block
// number, over a backing image. The interface is the contract; how it is
// realized is explicitly free per the specification, so this package
// supplies two concrete adapters (a file-backed device and an in-memory
// one) rather than mandating either, plus a caching wrapper over any Device.
package blockdev

import (
	"fmt"

	"github.com/blockimg/blockfs/fserrors"
	"github.com/blockimg/blockfs/layout"
)

// Device is the raw block device interface the file system core reads and
// writes metadata and file data through. Block index 0 is always the
// superblock.
type Device interface {
	// ReadBlocks fills buf (which must be exactly count*layout.BlockSize
	// bytes) with the contents of count consecutive blocks starting at
	// first.
	ReadBlocks(first, count uint32, buf []byte) error

	// WriteBlocks writes buf (exactly count*layout.BlockSize bytes) to
	// count consecutive blocks starting at first.
	WriteBlocks(first, count uint32, buf []byte) error

	// TotalBlocks returns the total number of blocks available on the
	// device.
	TotalBlocks() uint32
}

// checkRange validates that [first, first+count) lies within [0, total)
// and that buf is exactly count blocks long, returning an
// fserrors.ErrIOFailed error describing the mismatch otherwise.
func checkRange(first, count, total uint32, buf []byte) error {
	if count == 0 {
		return nil
	}
	if first >= total || uint64(first)+uint64(count) > uint64(total) {
		return fserrors.ErrIOFailed.WithMessage(fmt.Sprintf(
			"block range [%d, %d) out of bounds for device of %d blocks",
			first, uint64(first)+uint64(count), total,
		))
	}
	want := int(count) * layout.BlockSize
	if len(buf) != want {
		return fserrors.ErrIOFailed.WithMessage(fmt.Sprintf(
			"buffer is %d bytes, expected %d for %d block(s)", len(buf), want, count,
		))
	}
	return nil
}
