package fs

import (
	"strings"

	"github.com/blockimg/blockfs/fserrors"
	"github.com/blockimg/blockfs/layout"
)

// tokenize splits an absolute path into its non-empty segments. A trailing
// slash is normalized away here rather than carried into each segment, and
// reported back separately as trailingSlash — a segment's "must be a
// directory" requirement only ever applies to the last one.
func tokenize(path string) (segments []string, trailingSlash bool, err error) {
	if !strings.HasPrefix(path, "/") {
		return nil, false, fserrors.ErrInvalidArgument.WithMessage("path must be absolute: " + path)
	}
	trimmed := path
	if len(trimmed) > 1 && strings.HasSuffix(trimmed, "/") {
		trailingSlash = true
		trimmed = strings.TrimRight(trimmed, "/")
	}
	for _, part := range strings.Split(trimmed, "/") {
		if part == "" {
			continue
		}
		if len(part) > layout.MaxPathTokenSize {
			return nil, false, fserrors.ErrInvalidArgument.WithMessage("path component too long: " + part)
		}
		segments = append(segments, part)
	}
	if len(segments) > layout.MaxPathTokens {
		return nil, false, fserrors.ErrInvalidArgument.WithMessage("path has too many components: " + path)
	}
	return segments, trailingSlash, nil
}

// resolve walks path from the root inode, returning the target inode number
// and whether it is a directory.
func (fsys *FileSystem) resolve(path string) (uint32, bool, error) {
	segments, trailingSlash, err := tokenize(path)
	if err != nil {
		return 0, false, err
	}

	current := fsys.sb.RootInode
	isDir := true

	for i, name := range segments {
		in := &fsys.inodes[current]
		if !in.IsDir() {
			return 0, false, fserrors.ErrNotADirectory
		}
		entries, err := fsys.readDirBlock(in.Direct[0])
		if err != nil {
			return 0, false, err
		}
		slot := findInDir(&entries, name)
		if slot < 0 {
			return 0, false, fserrors.ErrNotFound
		}
		entry := entries[slot]
		if i == len(segments)-1 && trailingSlash && !entry.IsDir {
			return 0, false, fserrors.ErrNotADirectory
		}
		current = entry.Inode
		isDir = entry.IsDir
	}
	return current, isDir, nil
}

// parentOf returns the path of the containing directory of path.
func parentOf(path string) string {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		return "/"
	}
	return trimmed[:idx]
}

// leafOf returns the final path component, without any trailing slash.
func leafOf(path string) string {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	return trimmed[idx+1:]
}
