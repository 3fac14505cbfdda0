package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramsGroupsKernelsByName(t *testing.T) {
	r := New(nil)
	vecAdd, err := r.RegisterByName("vecAdd.kd", 0x1000, nil)
	require.NoError(t, err)
	vecMul, err := r.RegisterByName("vecMul.kd", 0x2000, nil)
	require.NoError(t, err)

	progs := NewPrograms()
	require.NoError(t, progs.Add("matmul.hsaco", vecAdd))
	require.NoError(t, progs.Add("matmul.hsaco", vecMul))

	prog, ok := progs.Lookup("matmul.hsaco")
	require.True(t, ok)
	assert.ElementsMatch(t, []*KernelInfo{vecAdd, vecMul}, prog.Kernels())
}

func TestProgramsRejectsDuplicateKernel(t *testing.T) {
	r := New(nil)
	info, err := r.RegisterByName("k.kd", 0x1, nil)
	require.NoError(t, err)

	progs := NewPrograms()
	require.NoError(t, progs.Add("prog.hsaco", info))
	err = progs.Add("prog.hsaco", info)
	assert.Error(t, err)
}

func TestProgramsLookupMissingReportsNotFound(t *testing.T) {
	progs := NewPrograms()
	_, ok := progs.Lookup("nope.hsaco")
	assert.False(t, ok)
}
