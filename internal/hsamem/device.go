package hsamem

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// pageSize is the allocation granularity for coarse-grain device memory.
// Device allocations are not pooled the way kernarg buffers are: each
// call maps its own region and the region is handed back to the driver
// whole on Free.
const pageSize = 4096

// DeviceAllocator hands out coarse-grain device-memory regions, one mmap
// per allocation. It tracks every live region so a dropped engine can
// release everything at once.
type DeviceAllocator struct {
	mu   sync.Mutex
	live map[uintptr][]byte
}

// NewDeviceAllocator returns an empty device allocator.
func NewDeviceAllocator() *DeviceAllocator {
	return &DeviceAllocator{live: make(map[uintptr][]byte)}
}

// Allocate reserves size bytes of device-visible memory, rounded up to
// the next page, and returns its address.
func (d *DeviceAllocator) Allocate(size int64) (uintptr, error) {
	if size <= 0 {
		return 0, fmt.Errorf("hsamem: device allocation size must be positive, got %d", size)
	}
	rounded := int(roundUp(int(size), pageSize))

	region, err := unix.Mmap(-1, 0, rounded, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, fmt.Errorf("hsamem: mmap device region of %d bytes: %w", rounded, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	addr := addrOf(region)
	d.live[addr] = region
	return addr, nil
}

// Free releases the device region starting at addr. Freeing an address
// this allocator did not hand out is a contract violation.
func (d *DeviceAllocator) Free(addr uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	region, ok := d.live[addr]
	if !ok {
		return fmt.Errorf("hsamem: free of unknown device address %#x", addr)
	}
	delete(d.live, addr)
	return unix.Munmap(region)
}

// FreeAll releases every region this allocator currently has outstanding.
// Used on engine teardown.
func (d *DeviceAllocator) FreeAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for addr, region := range d.live {
		if err := unix.Munmap(region); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.live, addr)
	}
	return firstErr
}

// Outstanding reports how many device regions are currently live.
func (d *DeviceAllocator) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}
