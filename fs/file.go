package fs

import (
	"errors"

	"github.com/blockimg/blockfs/fserrors"
	"github.com/blockimg/blockfs/layout"
)

// Stat mirrors the attribute set returned by getattr.
type Stat struct {
	Ino   uint32
	Mode  uint32
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  uint32
	Mtime uint32
	Ctime uint32
	Atime uint32
}

// DirEntry is one child reported by Readdir, carrying its own attributes so
// the caller doesn't have to resolve the child path a second time.
type DirEntry struct {
	Name string
	Stat Stat
}

// StatFS mirrors the summary counters returned by Statfs.
type StatFS struct {
	BlockSize uint32
	Total     uint32
	Free      uint32
	Avail     uint32
	NameMax   uint32
}

func statOf(inum uint32, in *layout.Inode) Stat {
	return Stat{
		Ino:   inum,
		Mode:  in.Mode,
		Nlink: 1,
		UID:   in.UID,
		GID:   in.GID,
		Size:  in.Size,
		Mtime: in.Mtime,
		Ctime: in.Ctime,
		Atime: in.Ctime,
	}
}

// Getattr resolves path and returns its attributes.
func (fsys *FileSystem) Getattr(path string) (Stat, error) {
	inum, _, err := fsys.resolve(path)
	if err != nil {
		return Stat{}, err
	}
	return statOf(inum, &fsys.inodes[inum]), nil
}

// Opendir resolves path, requires it to be a directory, and returns its
// inode number as an opaque directory handle.
func (fsys *FileSystem) Opendir(path string) (uint32, error) {
	inum, isDir, err := fsys.resolve(path)
	if err != nil {
		return 0, err
	}
	if !isDir {
		return 0, fserrors.ErrNotADirectory
	}
	return inum, nil
}

// Releasedir and Release are no-ops: a handle is nothing but an inode
// number, so there is nothing to release beyond letting the caller drop it.
func (fsys *FileSystem) Releasedir(handle uint32) error { return nil }
func (fsys *FileSystem) Release(handle uint32) error    { return nil }

// Readdir resolves path to a directory and reports every valid child entry
// along with its attributes.
func (fsys *FileSystem) Readdir(path string) ([]DirEntry, error) {
	inum, isDir, err := fsys.resolve(path)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, fserrors.ErrNotADirectory
	}
	entries, err := fsys.readDirBlock(fsys.inodes[inum].Direct[0])
	if err != nil {
		return nil, err
	}
	var out []DirEntry
	for _, e := range entries {
		if !e.Valid {
			continue
		}
		out = append(out, DirEntry{Name: e.Name, Stat: statOf(e.Inode, &fsys.inodes[e.Inode])})
	}
	return out, nil
}

// Mknod creates a new regular file at path with the given permission/type
// bits (caller supplies S_IFDIR separately via Mkdir; Mknod always creates a
// plain file).
func (fsys *FileSystem) Mknod(path string, mode uint32, now uint32) error {
	inum, err := fsys.createEntry(path, mode, now, false)
	if err != nil {
		return err
	}
	_ = inum
	return fsys.flush()
}

// Mkdir creates a new directory at path, allocating and zeroing its single
// data block.
func (fsys *FileSystem) Mkdir(path string, mode uint32, now uint32) error {
	inum, err := fsys.createEntry(path, mode|layout.ModeDir, now, true)
	if err != nil {
		return err
	}
	_ = inum
	return fsys.flush()
}

// createEntry implements the shared shape of Mknod/Mkdir: resolve must fail
// with NotFound, the parent must be a directory with a free slot, a fresh
// inode is allocated and initialized, and a new entry is inserted into the
// parent's directory block.
func (fsys *FileSystem) createEntry(path string, mode uint32, now uint32, asDir bool) (uint32, error) {
	if _, _, err := fsys.resolve(path); err == nil {
		return 0, fserrors.ErrExists
	} else if !errors.Is(err, fserrors.ErrNotFound) {
		return 0, err
	}

	parentPath := parentOf(path)
	leaf := leafOf(path)

	parentInum, isDir, err := fsys.resolve(parentPath)
	if err != nil {
		return 0, err
	}
	if !isDir {
		return 0, fserrors.ErrNotADirectory
	}

	parentEntries, err := fsys.readDirBlock(fsys.inodes[parentInum].Direct[0])
	if err != nil {
		return 0, err
	}
	slot := findFreeSlot(&parentEntries)
	if slot < 0 {
		return 0, fserrors.ErrNoSpaceOnDevice
	}

	inodeIdx := fsys.inodeBitmap.Alloc()
	if inodeIdx < 0 {
		return 0, fserrors.ErrNoSpaceOnDevice
	}
	inum := uint32(inodeIdx)

	newInode := layout.Inode{Mode: mode, Ctime: now, Mtime: now}
	if asDir {
		blk, err := fsys.allocBlock()
		if err != nil {
			fsys.inodeBitmap.Free(inodeIdx)
			return 0, err
		}
		newInode.Direct[0] = blk
	}
	fsys.inodes[inum] = newInode
	fsys.markInodeDirty(inum)

	parentEntries[slot] = layout.Dirent{Valid: true, IsDir: asDir, Inode: inum, Name: leaf}
	if err := fsys.writeDirBlock(fsys.inodes[parentInum].Direct[0], &parentEntries); err != nil {
		return 0, err
	}

	return inum, nil
}

// Unlink removes a regular file: frees its blocks and inode, and clears its
// parent's directory entry.
func (fsys *FileSystem) Unlink(path string) error {
	inum, isDir, err := fsys.resolve(path)
	if err != nil {
		return err
	}
	if isDir {
		return fserrors.ErrIsADirectory
	}

	if err := fsys.freeFileBlocks(inum); err != nil {
		return err
	}
	fsys.inodeBitmap.Free(int(inum))

	if err := fsys.removeParentEntry(path); err != nil {
		return err
	}
	return fsys.flush()
}

// Rmdir removes an empty directory.
func (fsys *FileSystem) Rmdir(path string) error {
	inum, isDir, err := fsys.resolve(path)
	if err != nil {
		return err
	}
	if !isDir {
		return fserrors.ErrNotADirectory
	}

	entries, err := fsys.readDirBlock(fsys.inodes[inum].Direct[0])
	if err != nil {
		return err
	}
	if !isEmptyDir(&entries) {
		return fserrors.ErrDirectoryNotEmpty
	}

	fsys.freeBlock(fsys.inodes[inum].Direct[0])
	fsys.inodeBitmap.Free(int(inum))

	if err := fsys.removeParentEntry(path); err != nil {
		return err
	}
	return fsys.flush()
}

// removeParentEntry clears the directory slot in parentOf(path) naming
// leafOf(path).
func (fsys *FileSystem) removeParentEntry(path string) error {
	parentInum, _, err := fsys.resolve(parentOf(path))
	if err != nil {
		return err
	}
	leaf := leafOf(path)

	entries, err := fsys.readDirBlock(fsys.inodes[parentInum].Direct[0])
	if err != nil {
		return err
	}
	slot := findInDir(&entries, leaf)
	if slot < 0 {
		return fserrors.ErrNotFound
	}
	entries[slot].Valid = false
	return fsys.writeDirBlock(fsys.inodes[parentInum].Direct[0], &entries)
}

// Rename moves src to dst within the same parent directory.
func (fsys *FileSystem) Rename(src, dst string) error {
	if parentOf(src) != parentOf(dst) {
		return fserrors.ErrInvalidArgument
	}
	if _, _, err := fsys.resolve(dst); err == nil {
		return fserrors.ErrExists
	}

	parentInum, _, err := fsys.resolve(parentOf(src))
	if err != nil {
		return err
	}
	srcLeaf := leafOf(src)
	dstLeaf := leafOf(dst)

	entries, err := fsys.readDirBlock(fsys.inodes[parentInum].Direct[0])
	if err != nil {
		return err
	}
	slot := findInDir(&entries, srcLeaf)
	if slot < 0 {
		return fserrors.ErrNotFound
	}
	entries[slot].Name = dstLeaf
	if err := fsys.writeDirBlock(fsys.inodes[parentInum].Direct[0], &entries); err != nil {
		return err
	}
	return fsys.flush()
}

// Chmod replaces the mode bits of the inode at path.
func (fsys *FileSystem) Chmod(path string, mode uint32) error {
	inum, _, err := fsys.resolve(path)
	if err != nil {
		return err
	}
	fsys.inodes[inum].Mode = mode
	fsys.markInodeDirty(inum)
	return fsys.flush()
}

// Utime assigns a new mtime to the inode at path.
func (fsys *FileSystem) Utime(path string, mtime uint32) error {
	inum, _, err := fsys.resolve(path)
	if err != nil {
		return err
	}
	fsys.inodes[inum].Mtime = mtime
	fsys.markInodeDirty(inum)
	return fsys.flush()
}

// Truncate resets a regular file to zero length, freeing every block it
// referenced.
func (fsys *FileSystem) Truncate(path string, length uint32) error {
	if length != 0 {
		return fserrors.ErrInvalidArgument
	}
	inum, isDir, err := fsys.resolve(path)
	if err != nil {
		return err
	}
	if isDir {
		return fserrors.ErrIsADirectory
	}
	if err := fsys.freeFileBlocks(inum); err != nil {
		return err
	}
	in := &fsys.inodes[inum]
	in.Size = 0
	in.Direct = [layout.NDirect]uint32{}
	in.IndirSingle = 0
	in.IndirDouble = 0
	fsys.markInodeDirty(inum)
	return fsys.flush()
}

// freeFileBlocks releases every direct, single-indirect, and
// double-indirect block an inode references, and both indirection blocks
// themselves, without touching the inode record itself.
func (fsys *FileSystem) freeFileBlocks(inum uint32) error {
	in := &fsys.inodes[inum]

	for _, b := range in.Direct {
		fsys.freeBlock(b)
	}

	if in.IndirSingle != 0 {
		if err := fsys.freeIndirectPayloads(in.IndirSingle); err != nil {
			return err
		}
		fsys.freeBlock(in.IndirSingle)
	}

	if in.IndirDouble != 0 {
		outer, err := fsys.readDataBlock(in.IndirDouble)
		if err != nil {
			return err
		}
		outerPtrs := layout.DecodeBlockPtrs(outer)
		for _, ib := range outerPtrs {
			if ib == 0 {
				continue
			}
			if err := fsys.freeIndirectPayloads(ib); err != nil {
				return err
			}
			fsys.freeBlock(ib)
		}
		fsys.freeBlock(in.IndirDouble)
	}
	return nil
}

func (fsys *FileSystem) freeIndirectPayloads(indirBlk uint32) error {
	raw, err := fsys.readDataBlock(indirBlk)
	if err != nil {
		return err
	}
	for _, b := range layout.DecodeBlockPtrs(raw) {
		fsys.freeBlock(b)
	}
	return nil
}

// Read copies up to len(buf) bytes starting at offset into buf, returning
// the number of bytes actually copied.
func (fsys *FileSystem) Read(path string, buf []byte, offset uint32) (int, error) {
	inum, isDir, err := fsys.resolve(path)
	if err != nil {
		return 0, err
	}
	if isDir {
		return 0, fserrors.ErrIsADirectory
	}

	size := fsys.inodes[inum].Size
	if offset >= size {
		return 0, nil
	}
	n := size - offset
	if uint32(len(buf)) < n {
		n = uint32(len(buf))
	}

	remaining := int(n)
	written := 0
	blockIdx := offset / layout.BlockSize
	inBlockOff := offset % layout.BlockSize

	for remaining > 0 {
		blk, err := fsys.blockOf(inum, blockIdx)
		if err != nil {
			return written, err
		}
		chunk := layout.BlockSize - int(inBlockOff)
		if chunk > remaining {
			chunk = remaining
		}
		if blk != 0 {
			data, err := fsys.readDataBlock(blk)
			if err != nil {
				return written, err
			}
			copy(buf[written:written+chunk], data[inBlockOff:int(inBlockOff)+chunk])
		}
		written += chunk
		remaining -= chunk
		blockIdx++
		inBlockOff = 0
	}
	return written, nil
}

// Write copies buf into path starting at offset, extending the file and
// allocating new blocks as needed.
func (fsys *FileSystem) Write(path string, buf []byte, offset uint32, now uint32) (int, error) {
	inum, isDir, err := fsys.resolve(path)
	if err != nil {
		return 0, err
	}
	if isDir {
		return 0, fserrors.ErrIsADirectory
	}

	in := &fsys.inodes[inum]
	if offset > in.Size {
		return 0, fserrors.ErrInvalidArgument
	}

	end := offset + uint32(len(buf))
	if blocksForSize(end) > blocksForSize(in.Size) {
		lastBlockIdx := blocksForSize(end) - 1
		if err := fsys.allocateThrough(inum, lastBlockIdx); err != nil {
			return 0, err
		}
	}

	remaining := len(buf)
	written := 0
	blockIdx := offset / layout.BlockSize
	inBlockOff := offset % layout.BlockSize

	for remaining > 0 {
		blk, err := fsys.blockOf(inum, blockIdx)
		if err != nil {
			return written, err
		}
		data, err := fsys.readDataBlock(blk)
		if err != nil {
			return written, err
		}
		chunk := layout.BlockSize - int(inBlockOff)
		if chunk > remaining {
			chunk = remaining
		}
		copy(data[inBlockOff:int(inBlockOff)+chunk], buf[written:written+chunk])
		if err := fsys.writeDataBlock(blk, data); err != nil {
			return written, err
		}
		written += chunk
		remaining -= chunk
		blockIdx++
		inBlockOff = 0
	}

	if end > in.Size {
		in.Size = end
	}
	in.Mtime = now
	fsys.markInodeDirty(inum)
	if err := fsys.flush(); err != nil {
		return written, err
	}
	return written, nil
}

// Statfs reports aggregate allocation counters for the mounted image.
func (fsys *FileSystem) Statfs() StatFS {
	return StatFS{
		BlockSize: layout.BlockSize,
		Total:     fsys.sb.NumBlocks - fsys.sb.FirstDataBlock(),
		Free:      uint32(fsys.blockBitmap.CountFree()),
		Avail:     uint32(fsys.blockBitmap.CountFree()),
		NameMax:   layout.FilenameSize - 1,
	}
}
