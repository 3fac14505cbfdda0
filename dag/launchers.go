package dag

import (
	"github.com/dagee-go/dagee/internal/executor"
	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/hwqueue"
	"github.com/dagee-go/dagee/internal/registry"
)

// gated wraps a real packet-producing build with the Barrier-AND gate a
// node with more than zero predecessors needs: since only Barrier-AND
// packets carry an explicit dependency-signal array, any node with
// predecessors first gets one (possibly tree-reduced) gating packet
// submitted ahead of it on the same queue. The node's own packet carries
// the barrier bit, so the queue does not start it until the gate packets
// ahead of it have completed.
func gated(queue *hwqueue.Queue, signals *hsasync.Pool, deps []*hsasync.Signal, body func() error) func() error {
	if len(deps) == 0 {
		return body
	}
	gate := signals.Get()
	pkts := hwqueue.BuildBarrierAndPackets(deps, gate, func() *hsasync.Signal { return signals.Get() })
	return func() error {
		for _, p := range pkts {
			if err := queue.SubmitBarrierAnd(p); err != nil {
				return err
			}
		}
		return body()
	}
}

// GPUTask launches a registered kernel on queue.
type GPUTask struct {
	Queue     *hwqueue.Queue
	Signals   *hsasync.Pool
	Kernel    *registry.KernelInfo
	Args      []byte
	Grid      [3]uint32
	Workgroup [3]uint32
	Scope     hwqueue.FenceScope
}

// Build implements Launcher.
func (t *GPUTask) Build(deps []*hsasync.Signal) (func() error, *hsasync.Signal) {
	sig := t.Signals.Get()
	pkt := hwqueue.BuildDispatchPacket(hwqueue.DispatchSpec{
		CodeAddr:   t.Kernel.CodeAddr,
		GridX:      t.Grid[0],
		GridY:      t.Grid[1],
		GridZ:      t.Grid[2],
		Workgroup:  t.Workgroup,
		ArgBuffer:  t.Args,
		Completion: sig,
		Scope:      t.Scope,
		Barrier:    true,
	})
	submit := gated(t.Queue, t.Signals, deps, func() error { return t.Queue.SubmitDispatch(pkt) })
	return submit, sig
}

// CPUTask launches a host callback through the same packet flow, keyed by
// a synthetic code address the simulated driver routes back to a
// registered Go function.
type CPUTask struct {
	Queue    *hwqueue.Queue
	Signals  *hsasync.Pool
	CodeAddr uint64
	Args     []byte
	Scope    hwqueue.FenceScope
}

// Build implements Launcher.
func (t *CPUTask) Build(deps []*hsasync.Signal) (func() error, *hsasync.Signal) {
	sig := t.Signals.Get()
	pkt := hwqueue.BuildDispatchPacket(hwqueue.DispatchSpec{
		CodeAddr:   t.CodeAddr,
		Workgroup:  [3]uint32{1, 1, 1},
		GridX:      1,
		ArgBuffer:  t.Args,
		Completion: sig,
		Scope:      t.Scope,
		Barrier:    true,
	})
	submit := gated(t.Queue, t.Signals, deps, func() error { return t.Queue.SubmitDispatch(pkt) })
	return submit, sig
}

// CopyTask launches a host<->device memory copy through the same packet
// flow as a kernel dispatch, encoding the copy description into the
// dispatch packet's argument buffer the way executor.MemCopy does.
type CopyTask struct {
	Queue     *hwqueue.Queue
	Signals   *hsasync.Pool
	Direction executor.CopyDirection
	Src       uintptr
	Dst       uintptr
	Length    int64
	Scope     hwqueue.FenceScope
}

// Build implements Launcher.
func (t *CopyTask) Build(deps []*hsasync.Signal) (func() error, *hsasync.Signal) {
	sig := t.Signals.Get()
	pkt := hwqueue.BuildDispatchPacket(hwqueue.DispatchSpec{
		CodeAddr:   executor.MemCopyCodeAddr,
		Workgroup:  [3]uint32{1, 1, 1},
		GridX:      1,
		ArgBuffer:  executor.EncodeCopyTask(executor.CopyTask{Direction: t.Direction, Src: t.Src, Dst: t.Dst, Length: t.Length}),
		Completion: sig,
		Scope:      t.Scope,
		Barrier:    true,
	})
	submit := gated(t.Queue, t.Signals, deps, func() error { return t.Queue.SubmitDispatch(pkt) })
	return submit, sig
}

// NullTask is a no-op node used as the gate or sink of a partition's
// inner DAG, or anywhere the algorithm needs a vertex with no hardware
// work of its own.
type NullTask struct {
	Queue   *hwqueue.Queue
	Signals *hsasync.Pool
	Scope   hwqueue.FenceScope
}

// Build implements Launcher. A source null task (no predecessors) has
// nothing to gate on: its signal is satisfied immediately and no packet
// is ever submitted for it.
func (t *NullTask) Build(deps []*hsasync.Signal) (func() error, *hsasync.Signal) {
	sig := t.Signals.Get()
	if len(deps) == 0 {
		sig.Store(0)
		return func() error { return nil }, sig
	}

	pkts := hwqueue.BuildBarrierAndPackets(deps, sig, func() *hsasync.Signal { return t.Signals.Get() })
	return func() error {
		for _, p := range pkts {
			if err := t.Queue.SubmitBarrierAnd(p); err != nil {
				return err
			}
		}
		return nil
	}, sig
}
