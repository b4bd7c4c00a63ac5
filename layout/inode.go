package layout

// InodeSize is the fixed on-disk size of one inode record, in bytes.
const InodeSize = 64

// Inode is the in-memory mirror of one fixed-size inode record. BlockNum 0
// in Direct, IndirSingle, or IndirDouble means "unused".
type Inode struct {
	UID   uint32
	GID   uint32
	Mode  uint32
	Ctime uint32
	Mtime uint32
	Size  uint32

	Direct      [NDirect]uint32
	IndirSingle uint32
	IndirDouble uint32
}

// IsDir reports whether the inode's mode marks it as a directory.
func (in *Inode) IsDir() bool {
	return in.Mode&ModeDir != 0
}

// Encode serializes the inode into exactly InodeSize bytes.
func (in *Inode) Encode() []byte {
	buf := make([]byte, InodeSize)
	putU32(buf[0:4], in.UID)
	putU32(buf[4:8], in.GID)
	putU32(buf[8:12], in.Mode)
	putU32(buf[12:16], in.Ctime)
	putU32(buf[16:20], in.Mtime)
	putU32(buf[20:24], in.Size)
	off := 24
	for i := 0; i < NDirect; i++ {
		putU32(buf[off:off+4], in.Direct[i])
		off += 4
	}
	putU32(buf[off:off+4], in.IndirSingle)
	off += 4
	putU32(buf[off:off+4], in.IndirDouble)
	return buf
}

// DecodeInode reads one inode out of an InodeSize-byte record buffer.
func DecodeInode(data []byte) Inode {
	var in Inode
	in.UID = getU32(data[0:4])
	in.GID = getU32(data[4:8])
	in.Mode = getU32(data[8:12])
	in.Ctime = getU32(data[12:16])
	in.Mtime = getU32(data[16:20])
	in.Size = getU32(data[20:24])
	off := 24
	for i := 0; i < NDirect; i++ {
		in.Direct[i] = getU32(data[off : off+4])
		off += 4
	}
	in.IndirSingle = getU32(data[off : off+4])
	off += 4
	in.IndirDouble = getU32(data[off : off+4])
	return in
}

// EncodeBlockPtrs serializes a slice of exactly PtrsPerBlock block numbers
// (an indirection block) into BlockSize bytes.
func EncodeBlockPtrs(ptrs *[PtrsPerBlock]uint32) []byte {
	buf := make([]byte, BlockSize)
	off := 0
	for _, p := range ptrs {
		putU32(buf[off:off+4], p)
		off += 4
	}
	return buf
}

// DecodeBlockPtrs deserializes one indirection block into PtrsPerBlock
// block numbers.
func DecodeBlockPtrs(block []byte) [PtrsPerBlock]uint32 {
	var ptrs [PtrsPerBlock]uint32
	off := 0
	for i := range ptrs {
		ptrs[i] = getU32(block[off : off+4])
		off += 4
	}
	return ptrs
}
