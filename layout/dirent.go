package layout

import "bytes"

// Dirent is a single fixed-position directory entry slot.
type Dirent struct {
	Valid bool
	IsDir bool
	Inode uint32
	Name  string
}

// Encode serializes a directory entry into exactly DirentSize bytes. Name
// longer than FilenameSize-1 bytes is truncated.
func (d *Dirent) Encode() []byte {
	buf := make([]byte, DirentSize)
	if d.Valid {
		buf[0] = 1
	}
	if d.IsDir {
		buf[1] = 1
	}
	putU32(buf[2:6], d.Inode)
	name := d.Name
	if len(name) > FilenameSize-1 {
		name = name[:FilenameSize-1]
	}
	copy(buf[6:], name)
	// Remainder of the name field stays NUL, terminating the string.
	return buf
}

// DecodeDirent reads one directory entry out of a DirentSize-byte slot.
func DecodeDirent(data []byte) Dirent {
	nameBytes := data[6:DirentSize]
	if idx := bytes.IndexByte(nameBytes, 0); idx >= 0 {
		nameBytes = nameBytes[:idx]
	}
	return Dirent{
		Valid: data[0] != 0,
		IsDir: data[1] != 0,
		Inode: getU32(data[2:6]),
		Name:  string(nameBytes),
	}
}

// DecodeDirBlock splits one BlockSize directory data block into its
// DirentsPerBlock fixed-position slots.
func DecodeDirBlock(block []byte) [DirentsPerBlock]Dirent {
	var entries [DirentsPerBlock]Dirent
	for i := range entries {
		start := i * DirentSize
		entries[i] = DecodeDirent(block[start : start+DirentSize])
	}
	return entries
}

// EncodeDirBlock packs DirentsPerBlock entries back into one BlockSize data
// block.
func EncodeDirBlock(entries *[DirentsPerBlock]Dirent) []byte {
	buf := make([]byte, BlockSize)
	for i, e := range entries {
		copy(buf[i*DirentSize:(i+1)*DirentSize], e.Encode())
	}
	return buf
}
