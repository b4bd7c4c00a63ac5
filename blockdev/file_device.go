package blockdev

import (
	"os"

	"github.com/blockimg/blockfs/fserrors"
	"github.com/blockimg/blockfs/layout"
)

// FileDevice is a Device backed by pread/pwrite (via os.File's ReadAt and
// WriteAt) against a fixed-size image file on disk.
type FileDevice struct {
	file        *os.File
	totalBlocks uint32
}

// OpenFileDevice opens an existing image file and treats it as a device of
// totalBlocks blocks. The caller is responsible for calling Close.
func OpenFileDevice(path string, totalBlocks uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fserrors.ErrIOFailed.Wrap(err)
	}
	return &FileDevice{file: f, totalBlocks: totalBlocks}, nil
}

// CreateFileDevice creates (or truncates) an image file of exactly
// totalBlocks*layout.BlockSize bytes, zero-filled, and opens it as a
// device.
func CreateFileDevice(path string, totalBlocks uint32) (*FileDevice, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fserrors.ErrIOFailed.Wrap(err)
	}
	size := int64(totalBlocks) * layout.BlockSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fserrors.ErrIOFailed.Wrap(err)
	}
	return &FileDevice{file: f, totalBlocks: totalBlocks}, nil
}

func (d *FileDevice) TotalBlocks() uint32 { return d.totalBlocks }

func (d *FileDevice) ReadBlocks(first, count uint32, buf []byte) error {
	if err := checkRange(first, count, d.totalBlocks, buf); err != nil {
		return err
	}
	_, err := d.file.ReadAt(buf, int64(first)*layout.BlockSize)
	if err != nil {
		return fserrors.ErrIOFailed.Wrap(err)
	}
	return nil
}

func (d *FileDevice) WriteBlocks(first, count uint32, buf []byte) error {
	if err := checkRange(first, count, d.totalBlocks, buf); err != nil {
		return err
	}
	_, err := d.file.WriteAt(buf, int64(first)*layout.BlockSize)
	if err != nil {
		return fserrors.ErrIOFailed.Wrap(err)
	}
	return nil
}

// Close closes the backing file.
func (d *FileDevice) Close() error {
	return d.file.Close()
}
