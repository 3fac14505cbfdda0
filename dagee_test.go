package dagee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagee-go/dagee/dag"
	"github.com/dagee-go/dagee/dagtest"
	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/registry"
)

func newTestEngine(t *testing.T) (*Engine, *dagtest.Driver) {
	t.Helper()
	drv := dagtest.NewDriver()
	e, err := New(EngineParams{Config: DefaultEngineParams().Config, Driver: drv})
	require.NoError(t, err)
	return e, drv
}

func TestNewRejectsNilDriver(t *testing.T) {
	_, err := New(EngineParams{})
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryConfiguration))
}

func TestRegisterKernelAndMakeTaskRoundTrips(t *testing.T) {
	e, _ := newTestEngine(t)

	kinfo, err := e.RegisterKernel("vector_add.kd", 0x1000, []registry.ArgDescriptor{
		{Size: 8, Align: 8},
		{Size: 8, Align: 8},
		{Size: 4, Align: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 20, kinfo.ArgBufSize)

	var values [][]byte
	values = registry.PackUint64(values, 0xdead)
	values = registry.PackUint64(values, 0xbeef)
	values = registry.PackUint32(values, 64)

	task, err := e.MakeTask(kinfo, [3]uint32{1, 1, 1}, [3]uint32{64, 1, 1}, values)
	require.NoError(t, err)
	assert.Len(t, task.Args, 20)
	assert.Equal(t, kinfo, task.Kernel)
}

func TestMakeTaskWithNoArgumentsYieldsNilBuffer(t *testing.T) {
	e, _ := newTestEngine(t)
	kinfo, err := e.RegisterKernel("noargs.kd", 0x7000, nil)
	require.NoError(t, err)

	task, err := e.MakeTask(kinfo, [3]uint32{1, 1, 1}, [3]uint32{1, 1, 1}, nil)
	require.NoError(t, err)
	assert.Nil(t, task.Args)
}

func TestMakeTaskRejectsArgumentSizeMismatch(t *testing.T) {
	e, _ := newTestEngine(t)
	kinfo, err := e.RegisterKernel("bad.kd", 0x2000, []registry.ArgDescriptor{{Size: 8, Align: 8}})
	require.NoError(t, err)

	_, err = e.MakeTask(kinfo, [3]uint32{1, 1, 1}, [3]uint32{1, 1, 1}, [][]byte{{1, 2, 3}})
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryContractViolation))
}

func TestSerialOrderedLaunchTaskCompletesThroughFakeDriver(t *testing.T) {
	e, drv := newTestEngine(t)
	kinfo, err := e.RegisterKernel("noop.kd", 0x3000, nil)
	require.NoError(t, err)

	var invoked bool
	drv.RegisterCallback(0x3000, func([]byte) { invoked = true })

	ex := e.NewSerialOrdered(hsasync.FlavorUser)
	task, err := e.MakeTask(kinfo, [3]uint32{1, 1, 1}, [3]uint32{1, 1, 1}, nil)
	require.NoError(t, err)

	handle, err := ex.LaunchTask(task)
	require.NoError(t, err)
	assert.True(t, handle.Signal.Reached())
	assert.True(t, invoked)
}

func TestSerialUnorderedBatchJoinsAcrossQueues(t *testing.T) {
	e, drv := newTestEngine(t)
	kinfo, err := e.RegisterKernel("batched.kd", 0x4000, nil)
	require.NoError(t, err)

	var count int
	drv.RegisterCallback(0x4000, func([]byte) { count++ })

	ex, err := e.NewSerialUnordered(4, hsasync.FlavorUser)
	require.NoError(t, err)

	batch := ex.NewBatch()
	for i := 0; i < 16; i++ {
		task, err := e.MakeTask(kinfo, [3]uint32{1, 1, 1}, [3]uint32{1, 1, 1}, nil)
		require.NoError(t, err)
		require.NoError(t, ex.AddTask(batch, task))
	}

	handle, err := ex.LaunchBatch(batch)
	require.NoError(t, err)
	assert.True(t, handle.Signal.Reached())
	assert.Equal(t, 16, count)
}

func TestNewDAGBuildsAndExecutesThroughEngineQueues(t *testing.T) {
	e, drv := newTestEngine(t)
	kinfo, err := e.RegisterKernel("stage.kd", 0x5000, nil)
	require.NoError(t, err)

	var order []int
	drv.RegisterCallback(0x5000, func(args []byte) {
		order = append(order, len(order))
	})

	q := e.CheckoutQueue()
	d := e.NewDAG()

	top := d.AddNode(&dag.CPUTask{Queue: q, Signals: e.Signals().Pool(hsasync.FlavorUser), CodeAddr: kinfo.CodeAddr})
	bottom := d.AddNode(&dag.CPUTask{Queue: q, Signals: e.Signals().Pool(hsasync.FlavorUser), CodeAddr: kinfo.CodeAddr})
	require.NoError(t, d.AddEdge(top, bottom))

	require.NoError(t, e.ExecuteDAG(d))
	assert.Len(t, order, 2)
}

func TestDeviceMemoryRoundTripsThroughEngine(t *testing.T) {
	e, _ := newTestEngine(t)

	addr, err := e.AllocateDevice(1 << 20)
	require.NoError(t, err)
	require.NotZero(t, addr)
	require.NoError(t, e.FreeDevice(addr))

	err = e.FreeDevice(addr)
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryContractViolation))
}

func TestCloseReleasesHeapAndDeviceRegions(t *testing.T) {
	e, _ := newTestEngine(t)
	kinfo, err := e.RegisterKernel("closer.kd", 0x6000, []registry.ArgDescriptor{{Size: 8, Align: 8}})
	require.NoError(t, err)

	_, err = e.MakeTask(kinfo, [3]uint32{1, 1, 1}, [3]uint32{1, 1, 1}, registry.PackUint64(nil, 1))
	require.NoError(t, err)

	assert.NoError(t, e.Close())
}
