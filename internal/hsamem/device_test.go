package hsamem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceAllocateReturnsDistinctAddresses(t *testing.T) {
	d := NewDeviceAllocator()
	defer d.FreeAll()

	a, err := d.Allocate(1024)
	require.NoError(t, err)
	b, err := d.Allocate(1024)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, d.Outstanding())
}

func TestDeviceAllocateRejectsNonPositiveSize(t *testing.T) {
	d := NewDeviceAllocator()
	defer d.FreeAll()

	_, err := d.Allocate(0)
	assert.Error(t, err)
	_, err = d.Allocate(-5)
	assert.Error(t, err)
}

func TestDeviceFreeRemovesFromLiveSet(t *testing.T) {
	d := NewDeviceAllocator()
	defer d.FreeAll()

	addr, err := d.Allocate(4096)
	require.NoError(t, err)
	require.NoError(t, d.Free(addr))
	assert.Equal(t, 0, d.Outstanding())
}

func TestDeviceFreeUnknownAddressIsContractViolation(t *testing.T) {
	d := NewDeviceAllocator()
	defer d.FreeAll()

	err := d.Free(0xdeadbeef)
	assert.Error(t, err)
}

func TestDeviceFreeAllClearsEverything(t *testing.T) {
	d := NewDeviceAllocator()

	for i := 0; i < 5; i++ {
		_, err := d.Allocate(4096)
		require.NoError(t, err)
	}
	require.NoError(t, d.FreeAll())
	assert.Equal(t, 0, d.Outstanding())
}
