package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackPlacesValuesAtComputedOffsets(t *testing.T) {
	r := New(nil)
	info, err := r.RegisterByName("vecAdd.kd", 0x1000, []ArgDescriptor{
		{Size: 1, Align: 1},
		{Size: 8, Align: 8},
	})
	require.NoError(t, err)

	p := NewPacker(info)
	values := [][]byte{{0xff}, nil}
	values[1] = make([]byte, 8)
	values[1][0] = 0x42

	buf, err := p.Pack(values)
	require.NoError(t, err)
	assert.Len(t, buf, 16)
	assert.Equal(t, byte(0xff), buf[0])
	assert.Equal(t, byte(0x42), buf[8])
}

func TestPackRejectsWrongArgCount(t *testing.T) {
	r := New(nil)
	info, err := r.RegisterByName("k.kd", 0x1, []ArgDescriptor{{Size: 4, Align: 4}})
	require.NoError(t, err)

	p := NewPacker(info)
	_, err = p.Pack(nil)
	assert.Error(t, err)
}

func TestPackU8U64F32PointerLayout(t *testing.T) {
	r := New(nil)
	info, err := r.RegisterByName("layout.kd", 0x1, []ArgDescriptor{
		{Size: 1, Align: 1}, // u8 at offset 0
		{Size: 8, Align: 8}, // u64 rounds up to offset 8
		{Size: 4, Align: 4}, // f32 at offset 16
		{Size: 8, Align: 8}, // pointer rounds up to offset 24
	})
	require.NoError(t, err)
	require.Equal(t, 32, info.ArgBufSize)

	p := NewPacker(info)
	values := [][]byte{
		{0xaa},
		{1, 2, 3, 4, 5, 6, 7, 8},
		{9, 10, 11, 12},
		{13, 14, 15, 16, 17, 18, 19, 20},
	}
	buf, err := p.Pack(values)
	require.NoError(t, err)

	assert.Equal(t, byte(0xaa), buf[0])
	assert.Equal(t, values[1], buf[8:16])
	assert.Equal(t, values[2], buf[16:20])
	assert.Equal(t, values[3], buf[24:32])

	// Replaying the same pack recovers identical bytes.
	again, err := p.Pack(values)
	require.NoError(t, err)
	assert.Equal(t, buf, again)
}

func TestPackIsDeterministic(t *testing.T) {
	r := New(nil)
	info, err := r.RegisterByName("k.kd", 0x1, []ArgDescriptor{
		{Size: 4, Align: 4}, {Size: 8, Align: 8},
	})
	require.NoError(t, err)
	p := NewPacker(info)

	values := PackUint32(nil, 7)
	values = PackUint64(values, 0xdeadbeef)

	first, err := p.Pack(values)
	require.NoError(t, err)
	second, err := p.Pack(values)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
