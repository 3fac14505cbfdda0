package hsamem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateReturnsAlignedBuffer(t *testing.T) {
	h := NewHeap(4096)
	defer h.Close()

	buf, err := h.Allocate(37)
	require.NoError(t, err)
	assert.Equal(t, 0, int(buf.Addr())%MinAlign)
	assert.Equal(t, 0, buf.Size()%MinAlign)
	assert.GreaterOrEqual(t, buf.Size(), 37)
	assert.Len(t, buf.Bytes(), 37)
}

func TestAllocateZeroSizeIsNoop(t *testing.T) {
	h := NewHeap(4096)
	defer h.Close()

	buf, err := h.Allocate(0)
	require.NoError(t, err)
	assert.Nil(t, buf.Bytes())
	require.NoError(t, h.Free(buf))
}

func TestAllocateRejectsOversizedRequest(t *testing.T) {
	h := NewHeap(64)
	defer h.Close()

	_, err := h.Allocate(128)
	assert.Error(t, err)
}

func TestFreeRecyclesBlockFromSameBucket(t *testing.T) {
	h := NewHeap(4096)
	defer h.Close()

	first, err := h.Allocate(48)
	require.NoError(t, err)
	addr := first.Addr()
	require.NoError(t, h.Free(first))

	second, err := h.Allocate(48)
	require.NoError(t, err)
	assert.Equal(t, addr, second.Addr())
}

func TestDoubleFreeIsRejected(t *testing.T) {
	h := NewHeap(4096)
	defer h.Close()

	buf, err := h.Allocate(32)
	require.NoError(t, err)
	require.NoError(t, h.Free(buf))

	err = h.Free(buf)
	assert.Error(t, err)
}

func TestDistinctSizesUseDistinctBuckets(t *testing.T) {
	h := NewHeap(4096)
	defer h.Close()

	small, err := h.Allocate(8)
	require.NoError(t, err)
	large, err := h.Allocate(100)
	require.NoError(t, err)

	assert.NotEqual(t, small.Size(), large.Size())
}

func TestAllocateGrowsBucketAcrossSlabBoundary(t *testing.T) {
	h := NewHeap(64) // tiny slab forces repeated growth
	defer h.Close()

	var bufs []*Buffer
	for i := 0; i < 20; i++ {
		buf, err := h.Allocate(16)
		require.NoError(t, err)
		bufs = append(bufs, buf)
	}
	for _, b := range bufs {
		assert.Equal(t, 0, int(b.Addr())%MinAlign)
	}
}
