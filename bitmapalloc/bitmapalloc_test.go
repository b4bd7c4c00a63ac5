package bitmapalloc_test

import (
	"testing"

	"github.com/blockimg/blockfs/bitmapalloc"
	"github.com/stretchr/testify/assert"
)

func TestAllocLowestFreeIndex(t *testing.T) {
	a := bitmapalloc.New(16, 2)

	first := a.Alloc()
	assert.Equal(t, 2, first)

	second := a.Alloc()
	assert.Equal(t, 3, second)

	a.Free(first)
	third := a.Alloc()
	assert.Equal(t, 2, third, "freed index should be reused before advancing")
}

func TestAllocExhaustion(t *testing.T) {
	a := bitmapalloc.New(4, 2)
	assert.Equal(t, 2, a.Alloc())
	assert.Equal(t, 3, a.Alloc())
	assert.Equal(t, -1, a.Alloc(), "allocator should report exhaustion, not panic")
}

func TestReservedRangeNeverAllocated(t *testing.T) {
	a := bitmapalloc.New(8, 4)
	for i := 0; i < 20; i++ {
		idx := a.Alloc()
		if idx == -1 {
			break
		}
		assert.GreaterOrEqual(t, idx, 4)
	}
}

func TestCountFree(t *testing.T) {
	a := bitmapalloc.New(10, 0)
	assert.Equal(t, 10, a.CountFree())
	a.Alloc()
	a.Alloc()
	assert.Equal(t, 8, a.CountFree())
}

func TestFreeBelowReservedIsNoOp(t *testing.T) {
	a := bitmapalloc.New(10, 4)
	a.MarkReserved(1)
	a.Free(1)
	assert.True(t, a.IsSet(1), "reserved bit must survive Free")
}

func TestWrapPreservesExistingBits(t *testing.T) {
	raw := make([]byte, 2)
	raw[0] = 0b0000_0101 // bits 0 and 2 set
	a := bitmapalloc.Wrap(raw, 16, 0)
	assert.True(t, a.IsSet(0))
	assert.True(t, a.IsSet(2))
	assert.False(t, a.IsSet(1))
}
