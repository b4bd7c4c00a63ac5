// Package layout defines the on-disk data model of a blockfs image: the
// superblock, the fixed-size inode record, and the directory entry record,
// along with their binary encodings. Nothing in this package touches a
// block device directly; it only knows how to marshal and unmarshal the
// fixed-size structures that package fs reads and writes through
// package blockdev.
package layout

// BlockSize is the fixed size, in bytes, of every block in the image.
const BlockSize = 1024

// Magic is the little-endian superblock sentinel, the ASCII bytes "5600".
const Magic = 0x30303635

// NDirect is the number of direct block pointers stored in an inode.
const NDirect = 6

// PtrsPerBlock is the number of 32-bit block numbers that fit in one
// indirection block.
const PtrsPerBlock = BlockSize / 4

// DirentSize is the fixed size, in bytes, of one directory entry record.
const DirentSize = 32

// FilenameSize is the size, in bytes, of the name field in a directory
// entry record; the maximum usable name length is FilenameSize-1 bytes
// plus a trailing NUL.
const FilenameSize = DirentSize - 2 /* valid+isDir */ - 4 /* inode */

// DirentsPerBlock is the number of fixed-position directory entry slots in
// a single directory data block.
const DirentsPerBlock = BlockSize / DirentSize

// MaxPathTokens and MaxPathTokenSize bound the path syntax accepted by the
// resolver.
const (
	MaxPathTokens    = 100
	MaxPathTokenSize = 40
)

// ModeDir marks an inode as a directory in its permission/type bits.
const ModeDir = 0o040000

// superblockPayloadSize is the number of encoded bytes in the superblock
// record; block 0 is padded with zero bytes out to BlockSize.
const superblockPayloadSize = 6 * 4

// Superblock is the in-memory mirror of block 0. It carries the region
// sizes needed to locate every other region of the image.
type Superblock struct {
	Magic         uint32
	InodeMapSz    uint32 // blocks occupied by the inode bitmap
	BlockMapSz    uint32 // blocks occupied by the block bitmap
	InodeRegionSz uint32 // blocks occupied by the inode table
	NumBlocks     uint32 // total blocks in the image
	RootInode     uint32 // inode number of "/"
}

// FirstMetadataBlock returns the block index of the inode bitmap, the first
// region after the superblock.
func (sb *Superblock) FirstMetadataBlock() uint32 { return 1 }

// BlockMapBase returns the block index of the first block bitmap block.
func (sb *Superblock) BlockMapBase() uint32 {
	return sb.FirstMetadataBlock() + sb.InodeMapSz
}

// InodeTableBase returns the block index of the first inode table block.
func (sb *Superblock) InodeTableBase() uint32 {
	return sb.BlockMapBase() + sb.BlockMapSz
}

// FirstDataBlock returns the block index of the first block in the data
// region, i.e. the number of reserved metadata blocks.
func (sb *Superblock) FirstDataBlock() uint32 {
	return sb.InodeTableBase() + sb.InodeRegionSz
}

// InodesPerBlock is how many fixed-size Inode records fit in one block.
const InodesPerBlock = BlockSize / InodeSize

// TotalInodeSlots returns the number of inode slots the image has room for.
func (sb *Superblock) TotalInodeSlots() uint32 {
	return sb.InodeRegionSz * InodesPerBlock
}

// Encode serializes the superblock into exactly BlockSize bytes.
func (sb *Superblock) Encode() []byte {
	buf := make([]byte, BlockSize)
	putU32(buf[0:4], sb.Magic)
	putU32(buf[4:8], sb.InodeMapSz)
	putU32(buf[8:12], sb.BlockMapSz)
	putU32(buf[12:16], sb.InodeRegionSz)
	putU32(buf[16:20], sb.NumBlocks)
	putU32(buf[20:24], sb.RootInode)
	return buf
}

// DecodeSuperblock reads a superblock out of a BlockSize-byte block buffer.
func DecodeSuperblock(block []byte) Superblock {
	return Superblock{
		Magic:         getU32(block[0:4]),
		InodeMapSz:    getU32(block[4:8]),
		BlockMapSz:    getU32(block[8:12]),
		InodeRegionSz: getU32(block[12:16]),
		NumBlocks:     getU32(block[16:20]),
		RootInode:     getU32(block[20:24]),
	}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
