// Package hsamem provides the kernel-argument heap and device-memory
// allocator backing kernel launches. Both are coarse wrappers over
// driver-backed (here: anonymous mmap'd) regions: the heap carves slabs
// into fixed-size 16-byte-aligned buckets, while the device allocator
// maps one page-rounded region per allocation.
package hsamem

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MinAlign is the minimum alignment the driver requires of any
// kernel-argument buffer.
const MinAlign = 16

// Buffer is one allocation returned by the kernel-argument Heap. Its
// address is always a multiple of MinAlign and its size is always a
// multiple of MinAlign.
type Buffer struct {
	data       []byte
	bucketSize int
}

// Bytes returns the buffer's backing storage, sized exactly to the
// caller's request (the allocation itself may be larger, rounded up to
// the owning bucket's size).
func (b *Buffer) Bytes() []byte { return b.data }

// Addr returns the buffer's starting address for alignment checks.
func (b *Buffer) Addr() uintptr { return addrOf(b.data) }

// Size returns the bucket-rounded allocation size (always a multiple of
// MinAlign).
func (b *Buffer) Size() int { return b.bucketSize }

type bucket struct {
	blockSize int
	free      [][]byte
	slabs     [][]byte
}

// Heap is a bucketed allocator over kernarg-visible memory. Requests
// carve fixed slabs into equal-sized blocks, one bucket per distinct
// rounded size; a free-list per bucket services allocation/deallocation
// in O(1). Slabs are only released at heap teardown.
type Heap struct {
	mu        sync.Mutex
	slabSize  int
	buckets   map[int]*bucket
	allSlabs  [][]byte
	allocated map[*Buffer]struct{}
}

// NewHeap creates an empty kernarg heap that requests slabSize bytes at a
// time from the simulated driver.
func NewHeap(slabSize int) *Heap {
	return &Heap{
		slabSize:  slabSize,
		buckets:   make(map[int]*bucket),
		allocated: make(map[*Buffer]struct{}),
	}
}

// Allocate returns a block of at least size bytes, rounded up to the
// nearest multiple of MinAlign. If the owning bucket's free list is
// empty, a new slab is requested from the driver and carved into blocks;
// a failure there is retried once.
func (h *Heap) Allocate(size int) (*Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("hsamem: negative allocation size %d", size)
	}
	if size == 0 {
		return &Buffer{data: nil, bucketSize: 0}, nil
	}

	bucketSize := roundUp(size, MinAlign)
	if bucketSize > h.slabSize {
		return nil, fmt.Errorf("hsamem: requested size %d exceeds slab size %d", size, h.slabSize)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.bucketFor(bucketSize)
	if len(b.free) == 0 {
		if err := h.growBucket(b); err != nil {
			if err2 := h.growBucket(b); err2 != nil {
				return nil, fmt.Errorf("hsamem: slab allocation failed after retry: %w", err2)
			}
		}
	}

	block := b.free[len(b.free)-1]
	b.free = b.free[:len(b.free)-1]
	buf := &Buffer{data: block[:size:bucketSize], bucketSize: bucketSize}
	h.allocated[buf] = struct{}{}
	return buf, nil
}

// Free returns a block to its bucket's free list. Freeing a buffer twice,
// or one not owned by this heap, is a contract violation.
func (h *Heap) Free(b *Buffer) error {
	if b == nil || b.data == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allocated[b]; !ok {
		return fmt.Errorf("hsamem: double free or foreign buffer")
	}
	delete(h.allocated, b)

	bucket := h.buckets[b.bucketSize]
	bucket.free = append(bucket.free, b.data[:b.bucketSize])
	return nil
}

// Close releases every slab held by the heap back to the driver.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for _, slab := range h.allSlabs {
		if err := unix.Munmap(slab); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.allSlabs = nil
	h.buckets = make(map[int]*bucket)
	h.allocated = make(map[*Buffer]struct{})
	return firstErr
}

func (h *Heap) bucketFor(size int) *bucket {
	b, ok := h.buckets[size]
	if !ok {
		b = &bucket{blockSize: size}
		h.buckets[size] = b
	}
	return b
}

func (h *Heap) growBucket(b *bucket) error {
	slab, err := unix.Mmap(-1, 0, h.slabSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return fmt.Errorf("hsamem: mmap kernarg slab: %w", err)
	}
	h.allSlabs = append(h.allSlabs, slab)
	b.slabs = append(b.slabs, slab)

	for off := 0; off+b.blockSize <= len(slab); off += b.blockSize {
		b.free = append(b.free, slab[off:off+b.blockSize])
	}
	return nil
}

func roundUp(size, align int) int {
	rem := size % align
	if rem == 0 {
		return size
	}
	return size + (align - rem)
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
