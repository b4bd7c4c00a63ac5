package fserrors_test

import (
	"errors"
	"testing"

	"github.com/blockimg/blockfs/fserrors"
	"github.com/stretchr/testify/assert"
)

func TestWithMessage(t *testing.T) {
	err := fserrors.ErrNotFound.WithMessage("/a/b/c")
	assert.Equal(t, "no such file or directory: /a/b/c", err.Error())
	assert.ErrorIs(t, err, fserrors.ErrNotFound)
}

func TestWrap(t *testing.T) {
	cause := errors.New("short read")
	err := fserrors.ErrIOFailed.Wrap(cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, fserrors.ErrIOFailed)
}

func TestIsDistinguishesSentinels(t *testing.T) {
	err := fserrors.ErrExists.WithMessage("/a/f")
	assert.True(t, errors.Is(err, fserrors.ErrExists))
	assert.False(t, errors.Is(err, fserrors.ErrNotFound))
}
