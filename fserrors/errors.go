// Package fserrors defines the error values returned by the core file
// system operations. Every public operation in package fs returns one of
// these (or nil) instead of a bare negative error code.
package fserrors

import (
	"fmt"
	"syscall"
)

// DriverError wraps a POSIX errno with an optional, more specific message
// and an optional wrapped cause, so callers can both match on the errno via
// [errors.Is] and get a human-readable description.
type DriverError struct {
	Errno   syscall.Errno
	message string
	cause   error
}

func (e *DriverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.Errno.Error()
}

// Unwrap lets errors.Is/As see through to the wrapped cause (for an error
// built by WithMessage, the DriverError it was built from), or to the bare
// syscall.Errno if there is no cause.
func (e *DriverError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return e.Errno
}

// Is reports whether target is the same errno, so that e.g.
// errors.Is(err, fserrors.ErrNotFound) works regardless of the message
// attached to err.
func (e *DriverError) Is(target error) bool {
	other, ok := target.(*DriverError)
	if !ok {
		return false
	}
	return e.Errno == other.Errno
}

// WithMessage returns a copy of e with message appended to the description.
func (e *DriverError) WithMessage(message string) *DriverError {
	return &DriverError{
		Errno:   e.Errno,
		message: fmt.Sprintf("%s: %s", e.Error(), message),
		cause:   e,
	}
}

// Wrap returns a copy of e that also reports cause in its Error() string and
// Unwrap()s to it.
func (e *DriverError) Wrap(cause error) *DriverError {
	return &DriverError{
		Errno:   e.Errno,
		message: fmt.Sprintf("%s: %s", e.Error(), cause.Error()),
		cause:   cause,
	}
}

func newSentinel(errno syscall.Errno) *DriverError {
	return &DriverError{Errno: errno, message: errno.Error()}
}

// Sentinels matching the POSIX-like codes named in the error handling
// design: path resolution, directory maintenance, allocation exhaustion,
// and argument validation each produce exactly one of these.
var (
	// ErrNotFound: a path component does not exist.
	ErrNotFound = newSentinel(syscall.ENOENT)
	// ErrNotADirectory: an intermediate path component, a trailing-slash
	// leaf, or a directory-only operation's target is not a directory.
	ErrNotADirectory = newSentinel(syscall.ENOTDIR)
	// ErrIsADirectory: a file-only operation was invoked on a directory.
	ErrIsADirectory = newSentinel(syscall.EISDIR)
	// ErrExists: the target of a creation already exists.
	ErrExists = newSentinel(syscall.EEXIST)
	// ErrDirectoryNotEmpty: rmdir on a directory with live entries.
	ErrDirectoryNotEmpty = newSentinel(syscall.ENOTEMPTY)
	// ErrNoSpaceOnDevice: no free inode, no free block, or a directory
	// block has no free slot left.
	ErrNoSpaceOnDevice = newSentinel(syscall.ENOSPC)
	// ErrInvalidArgument: truncate with nonzero length, rename across
	// parents, or write with an offset past the current end of file.
	ErrInvalidArgument = newSentinel(syscall.EINVAL)
	// ErrIOFailed: the block device reported a failure.
	ErrIOFailed = newSentinel(syscall.EIO)
	// ErrFileTooLarge: an offset falls beyond the last block reachable
	// through the double-indirection block.
	ErrFileTooLarge = newSentinel(syscall.EFBIG)
)
