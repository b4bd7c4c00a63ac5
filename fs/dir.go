package fs

import "github.com/blockimg/blockfs/layout"

// findInDir returns the slot index of the valid entry named name, or -1.
func findInDir(entries *[layout.DirentsPerBlock]layout.Dirent, name string) int {
	for i := range entries {
		if entries[i].Valid && entries[i].Name == name {
			return i
		}
	}
	return -1
}

// findFreeSlot returns the index of the first slot with Valid == false, or
// -1 if the directory block is full.
func findFreeSlot(entries *[layout.DirentsPerBlock]layout.Dirent) int {
	for i := range entries {
		if !entries[i].Valid {
			return i
		}
	}
	return -1
}

// isEmptyDir reports whether no slot in entries is valid.
func isEmptyDir(entries *[layout.DirentsPerBlock]layout.Dirent) bool {
	for i := range entries {
		if entries[i].Valid {
			return false
		}
	}
	return true
}
