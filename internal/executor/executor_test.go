package executor

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/hwqueue"
	"github.com/dagee-go/dagee/internal/registry"
)

type fakeDriver struct {
	reads map[int]*atomic.Uint64
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{reads: make(map[int]*atomic.Uint64)}
}

func (d *fakeDriver) RingDoorbell(qid int, writeIndex uint64) error {
	r, ok := d.reads[qid]
	if !ok {
		r = &atomic.Uint64{}
		d.reads[qid] = r
	}
	r.Store(writeIndex)
	return nil
}

func (d *fakeDriver) ReadIndex(qid int) uint64 {
	r, ok := d.reads[qid]
	if !ok {
		return 0
	}
	return r.Load()
}

func noopKernel(t *testing.T) *registry.KernelInfo {
	t.Helper()
	r := registry.New(nil)
	info, err := r.RegisterByName("noop.kd", 0x1, nil)
	require.NoError(t, err)
	return info
}

func TestSerialOrderedLaunchTaskReturnsSystemScopedHandle(t *testing.T) {
	driver := newFakeDriver()
	q := hwqueue.NewQueue(0, 4, driver)
	signals := hsasync.NewPool(hsasync.FlavorUser)
	e := NewSerialOrdered(q, signals)

	handle, err := e.LaunchTask(TaskInstance{Kernel: noopKernel(t)})
	require.NoError(t, err)
	assert.NotNil(t, handle.Signal)

	got := q.SlotAt(0)
	require.NotNil(t, got.Dispatch)
	assert.True(t, got.Dispatch.Header().BarrierBit)
	assert.Equal(t, hwqueue.FenceSystem, got.Dispatch.Header().ReleaseScope)
}

func TestSerialOrderedLaunchBatchOnlyLastPacketIsTerminal(t *testing.T) {
	driver := newFakeDriver()
	q := hwqueue.NewQueue(0, 8, driver)
	signals := hsasync.NewPool(hsasync.FlavorUser)
	e := NewSerialOrdered(q, signals)

	kernel := noopKernel(t)
	tasks := []TaskInstance{{Kernel: kernel}, {Kernel: kernel}, {Kernel: kernel}}
	handle, err := e.LaunchBatch(tasks)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		pkt := q.SlotAt(uint64(i)).Dispatch
		assert.Nil(t, pkt.Completion)
		assert.Equal(t, hwqueue.FenceAgent, pkt.Header().ReleaseScope)
	}
	last := q.SlotAt(2).Dispatch
	assert.Same(t, handle.Signal, last.Completion)
	assert.Equal(t, hwqueue.FenceSystem, last.Header().ReleaseScope)
}

func TestSerialOrderedEmptyKernelBatchThroughput(t *testing.T) {
	driver := newFakeDriver()
	q := hwqueue.NewQueue(0, 2048, driver)
	signals := hsasync.NewPool(hsasync.FlavorUser)
	e := NewSerialOrdered(q, signals)

	kernel := noopKernel(t)
	tasks := make([]TaskInstance, 1024)
	for i := range tasks {
		tasks[i] = TaskInstance{Kernel: kernel}
	}

	handle, err := e.LaunchBatch(tasks)
	require.NoError(t, err)
	require.NotNil(t, handle.Signal)

	// Every packet lands on the one queue; only the last carries the
	// batch's terminal signal.
	assert.Equal(t, uint64(1024), driver.ReadIndex(0))
	for i := 0; i < 1023; i++ {
		assert.Nil(t, q.SlotAt(uint64(i)).Dispatch.Completion)
	}
	assert.Same(t, handle.Signal, q.SlotAt(1023).Dispatch.Completion)
}

func TestSerialUnorderedBatchAcrossQueues(t *testing.T) {
	driver := newFakeDriver()
	pool := hwqueue.NewPool(4, 1024, driver)
	signals := hsasync.NewPool(hsasync.FlavorUser)
	e, err := NewSerialUnordered(pool, 4, signals)
	require.NoError(t, err)

	kernel := noopKernel(t)
	b := e.NewBatch()
	for i := 0; i < 1024; i++ {
		require.NoError(t, e.AddTask(b, TaskInstance{Kernel: kernel}))
	}

	var sum int64
	for _, sig := range b.perQueue {
		sum += sig.Load()
	}
	assert.Equal(t, int64(1024), sum)
	assert.Len(t, b.perQueue, 4)

	handle, err := e.LaunchBatch(b)
	require.NoError(t, err)
	require.NotNil(t, handle.Signal)

	// Exactly one Barrier-AND packet on queue 0, depending on the four
	// per-queue counting signals and completing into the terminal signal.
	q0 := e.queues.Queues()[0]
	barrier := q0.SlotAt(256).BarrierAnd // 1024 tasks / 4 queues = 256 dispatches first
	require.NotNil(t, barrier)
	deps := 0
	for _, d := range barrier.Deps {
		if d != nil {
			deps++
		}
	}
	assert.Equal(t, 4, deps)
	assert.Same(t, handle.Signal, barrier.Completion)
}

func TestLaunchTaskAfterQueuesGateBeforeDispatch(t *testing.T) {
	driver := newFakeDriver()
	q := hwqueue.NewQueue(0, 8, driver)
	signals := hsasync.NewPool(hsasync.FlavorUser)
	e := NewSerialOrdered(q, signals)

	dep := signals.Get()
	handle, err := e.LaunchTaskAfter(TaskInstance{Kernel: noopKernel(t)}, []*hsasync.Signal{dep})
	require.NoError(t, err)
	require.NotNil(t, handle.Signal)

	gate := q.SlotAt(0).BarrierAnd
	require.NotNil(t, gate)
	assert.Same(t, dep, gate.Deps[0])
	require.NotNil(t, q.SlotAt(1).Dispatch)
}

func TestMemCopyEncodesAndDecodesRoundTrip(t *testing.T) {
	driver := newFakeDriver()
	q := hwqueue.NewQueue(0, 4, driver)
	signals := hsasync.NewPool(hsasync.FlavorUser)
	e := NewMemCopy(q, signals)

	task := CopyTask{Direction: CopyHostToDevice, Src: 0x1000, Dst: 0x2000, Length: 4096}
	_, err := e.LaunchCopy(task)
	require.NoError(t, err)

	pkt := q.SlotAt(0).Dispatch
	decoded := DecodeCopyTask(pkt.ArgBuffer)
	assert.Equal(t, task, decoded)
}

func TestCPUTrampolineInvokesRegisteredCallback(t *testing.T) {
	driver := newFakeDriver()
	q := hwqueue.NewQueue(0, 4, driver)
	signals := hsasync.NewPool(hsasync.FlavorUser)
	e := NewCPU(q, signals)

	var got []byte
	e.RegisterCallback(0x42, func(args []byte) { got = args })

	kernel := &registry.KernelInfo{Name: "hostFn", CodeAddr: 0x42}
	_, err := e.LaunchTask(TaskInstance{Kernel: kernel, Args: []byte{1, 2, 3}})
	require.NoError(t, err)

	pkt := q.SlotAt(0).Dispatch
	e.Trampoline(pkt)
	assert.Equal(t, []byte{1, 2, 3}, got)
}
