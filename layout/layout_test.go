package layout_test

import (
	"testing"

	"github.com/blockimg/blockfs/layout"
	"github.com/stretchr/testify/assert"
)

func TestSuperblockRoundTrip(t *testing.T) {
	sb := layout.Superblock{
		Magic:         layout.Magic,
		InodeMapSz:    1,
		BlockMapSz:    1,
		InodeRegionSz: 4,
		NumBlocks:     1024,
		RootInode:     1,
	}
	encoded := sb.Encode()
	assert.Len(t, encoded, layout.BlockSize)

	decoded := layout.DecodeSuperblock(encoded)
	assert.Equal(t, sb, decoded)
}

func TestSuperblockRegionOffsets(t *testing.T) {
	sb := layout.Superblock{InodeMapSz: 2, BlockMapSz: 3, InodeRegionSz: 5}
	assert.EqualValues(t, 1, sb.FirstMetadataBlock())
	assert.EqualValues(t, 3, sb.BlockMapBase())
	assert.EqualValues(t, 6, sb.InodeTableBase())
	assert.EqualValues(t, 11, sb.FirstDataBlock())
}

func TestInodeRoundTrip(t *testing.T) {
	in := layout.Inode{
		UID: 1, GID: 2, Mode: layout.ModeDir | 0o755,
		Ctime: 1000, Mtime: 2000, Size: 1024,
		Direct:      [layout.NDirect]uint32{10, 11, 0, 0, 0, 0},
		IndirSingle: 20,
		IndirDouble: 30,
	}
	encoded := in.Encode()
	assert.Len(t, encoded, layout.InodeSize)

	decoded := layout.DecodeInode(encoded)
	assert.Equal(t, in, decoded)
	assert.True(t, decoded.IsDir())
}

func TestBlockPtrsRoundTrip(t *testing.T) {
	var ptrs [layout.PtrsPerBlock]uint32
	ptrs[0] = 5
	ptrs[255] = 99

	encoded := layout.EncodeBlockPtrs(&ptrs)
	assert.Len(t, encoded, layout.BlockSize)

	decoded := layout.DecodeBlockPtrs(encoded)
	assert.Equal(t, ptrs, decoded)
}

func TestDirentRoundTrip(t *testing.T) {
	d := layout.Dirent{Valid: true, IsDir: true, Inode: 7, Name: "subdir"}
	encoded := d.Encode()
	assert.Len(t, encoded, layout.DirentSize)

	decoded := layout.DecodeDirent(encoded)
	assert.Equal(t, d, decoded)
}

func TestDirentNameTruncated(t *testing.T) {
	longName := "this-name-is-far-too-long-to-fit-in-one-slot"
	d := layout.Dirent{Valid: true, Name: longName}
	decoded := layout.DecodeDirent(d.Encode())
	assert.Less(t, len(decoded.Name), layout.FilenameSize)
	assert.True(t, len(decoded.Name) < len(longName))
}

func TestDirBlockRoundTrip(t *testing.T) {
	var entries [layout.DirentsPerBlock]layout.Dirent
	entries[0] = layout.Dirent{Valid: true, Inode: 1, Name: "."}
	entries[1] = layout.Dirent{Valid: true, IsDir: true, Inode: 5, Name: "etc"}

	block := layout.EncodeDirBlock(&entries)
	assert.Len(t, block, layout.BlockSize)

	decoded := layout.DecodeDirBlock(block)
	assert.Equal(t, entries, decoded)
}
