package blockdev

import (
	"io"

	"github.com/blockimg/blockfs/fserrors"
	"github.com/blockimg/blockfs/layout"
	"github.com/xaionaro-go/bytesextra"
)

// MemDevice is a Device backed entirely by an in-memory byte slice, useful
// for tests and for small images that comfortably fit in RAM. It wraps the
// backing slice in a bytesextra.ReadWriteSeeker the same way the teacher's
// block cache does for its in-memory test fixtures.
type MemDevice struct {
	storage     []byte
	stream      io.ReadWriteSeeker
	totalBlocks uint32
}

// NewMemDevice creates a zero-filled in-memory device of totalBlocks
// blocks.
func NewMemDevice(totalBlocks uint32) *MemDevice {
	storage := make([]byte, int(totalBlocks)*layout.BlockSize)
	return &MemDevice{
		storage:     storage,
		stream:      bytesextra.NewReadWriteSeeker(storage),
		totalBlocks: totalBlocks,
	}
}

// WrapMemDevice adapts an existing byte slice (e.g. loaded from disk) as a
// device. len(storage) must be a multiple of layout.BlockSize.
func WrapMemDevice(storage []byte) *MemDevice {
	totalBlocks := uint32(len(storage) / layout.BlockSize)
	return &MemDevice{
		storage:     storage,
		stream:      bytesextra.NewReadWriteSeeker(storage),
		totalBlocks: totalBlocks,
	}
}

func (d *MemDevice) TotalBlocks() uint32 { return d.totalBlocks }

// Bytes returns the raw backing storage, primarily so tests and the
// formatter can save the image out to a file.
func (d *MemDevice) Bytes() []byte { return d.storage }

func (d *MemDevice) ReadBlocks(first, count uint32, buf []byte) error {
	if err := checkRange(first, count, d.totalBlocks, buf); err != nil {
		return err
	}
	if _, err := d.stream.Seek(int64(first)*layout.BlockSize, io.SeekStart); err != nil {
		return fserrors.ErrIOFailed.Wrap(err)
	}
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return fserrors.ErrIOFailed.Wrap(err)
	}
	return nil
}

func (d *MemDevice) WriteBlocks(first, count uint32, buf []byte) error {
	if err := checkRange(first, count, d.totalBlocks, buf); err != nil {
		return err
	}
	if _, err := d.stream.Seek(int64(first)*layout.BlockSize, io.SeekStart); err != nil {
		return fserrors.ErrIOFailed.Wrap(err)
	}
	if _, err := d.stream.Write(buf); err != nil {
		return fserrors.ErrIOFailed.Wrap(err)
	}
	return nil
}
