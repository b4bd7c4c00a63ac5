package blockdev_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/blockimg/blockfs/blockdev"
	"github.com/blockimg/blockfs/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDeviceReadWriteRoundTrip(t *testing.T) {
	dev := blockdev.NewMemDevice(4)
	payload := bytes.Repeat([]byte{0xAB}, layout.BlockSize)

	require.NoError(t, dev.WriteBlocks(1, 1, payload))

	out := make([]byte, layout.BlockSize)
	require.NoError(t, dev.ReadBlocks(1, 1, out))
	assert.Equal(t, payload, out)
}

func TestMemDeviceOutOfRange(t *testing.T) {
	dev := blockdev.NewMemDevice(2)
	buf := make([]byte, layout.BlockSize)
	err := dev.ReadBlocks(5, 1, buf)
	assert.Error(t, err)
}

func TestMemDeviceWrongBufferSize(t *testing.T) {
	dev := blockdev.NewMemDevice(2)
	buf := make([]byte, layout.BlockSize-1)
	err := dev.WriteBlocks(0, 1, buf)
	assert.Error(t, err)
}

func TestCachedDeviceBuffersWritesUntilFlush(t *testing.T) {
	backing := blockdev.NewMemDevice(4)
	cached := blockdev.NewCachedDevice(backing)

	payload := bytes.Repeat([]byte{0x77}, layout.BlockSize)
	require.NoError(t, cached.WriteBlocks(1, 1, payload))

	// Not yet flushed: the backing device still sees zeros.
	out := make([]byte, layout.BlockSize)
	require.NoError(t, backing.ReadBlocks(1, 1, out))
	assert.NotEqual(t, payload, out)

	require.NoError(t, cached.Flush())
	require.NoError(t, backing.ReadBlocks(1, 1, out))
	assert.Equal(t, payload, out)
}

func TestCachedDeviceReadsThroughOnMiss(t *testing.T) {
	backing := blockdev.NewMemDevice(4)
	payload := bytes.Repeat([]byte{0x99}, layout.BlockSize)
	require.NoError(t, backing.WriteBlocks(2, 1, payload))

	cached := blockdev.NewCachedDevice(backing)
	out := make([]byte, layout.BlockSize)
	require.NoError(t, cached.ReadBlocks(2, 1, out))
	assert.Equal(t, payload, out)
}

func TestFileDeviceCreateAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")

	dev, err := blockdev.CreateFileDevice(path, 4)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0x42}, layout.BlockSize)
	require.NoError(t, dev.WriteBlocks(2, 1, payload))
	require.NoError(t, dev.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 4*layout.BlockSize, info.Size())

	reopened, err := blockdev.OpenFileDevice(path, 4)
	require.NoError(t, err)
	defer reopened.Close()

	out := make([]byte, layout.BlockSize)
	require.NoError(t, reopened.ReadBlocks(2, 1, out))
	assert.Equal(t, payload, out)
}
