package executor

import (
	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/hwqueue"
)

// SerialUnordered owns up to hwqueue.MaxUnorderedQueues serial queues and
// round-robins tasks across them. A batch allocates one counting signal
// per queue plus a single terminal signal, and joins them with a single
// Barrier-AND packet on queue 0.
type SerialUnordered struct {
	queues  *hwqueue.RoundRobin
	signals *hsasync.Pool
}

// NewSerialUnordered claims k queues from pool for exclusive use.
func NewSerialUnordered(pool *hwqueue.Pool, k int, signals *hsasync.Pool) (*SerialUnordered, error) {
	rr, err := hwqueue.NewRoundRobin(pool, k)
	if err != nil {
		return nil, err
	}
	return &SerialUnordered{queues: rr, signals: signals}, nil
}

// batchState tracks the per-queue counting signals accumulated by AddTask
// calls before LaunchBatch fires the joining barrier.
type batchState struct {
	perQueue map[int]*hsasync.Signal
}

// NewBatch starts a fresh batch.
func (e *SerialUnordered) NewBatch() *batchState {
	return &batchState{perQueue: make(map[int]*hsasync.Signal)}
}

// AddTask assigns task to the next queue in rotation, incrementing that
// queue's counting signal (allocating one on first use) and using it as
// the task's own completion signal.
func (e *SerialUnordered) AddTask(b *batchState, task TaskInstance) error {
	q := e.queues.Next()
	sig, ok := b.perQueue[q.ID()]
	if !ok {
		sig = e.signals.Get()
		sig.Store(0)
		b.perQueue[q.ID()] = sig
	}
	sig.Add(1)

	spec := buildDispatchSpec(task, sig, hwqueue.FenceAgent, false)
	pkt := hwqueue.BuildDispatchPacket(spec)
	return q.SubmitDispatch(pkt)
}

// LaunchBatch emits the Barrier-AND packet(s) on queue 0 depending on
// every per-queue signal accumulated in b, completing into a fresh
// terminal signal. A batch spanning more than hwqueue.BarrierAndMaxDeps
// queues is joined through a barrier tree.
func (e *SerialUnordered) LaunchBatch(b *batchState) (TaskHandle, error) {
	var deps []*hsasync.Signal
	for _, q := range e.queues.Queues() {
		if sig, ok := b.perQueue[q.ID()]; ok {
			deps = append(deps, sig)
		}
	}

	terminal := e.signals.Get()
	pkts := hwqueue.BuildBarrierAndPackets(deps, terminal, func() *hsasync.Signal { return e.signals.Get() })

	q0 := e.queues.Queues()[0]
	for _, p := range pkts {
		if err := q0.SubmitBarrierAnd(p); err != nil {
			return TaskHandle{}, err
		}
	}
	return TaskHandle{Signal: terminal}, nil
}

// StartBatchWithDep inserts a barrier packet depending on sig into every
// owned queue before any task is added, establishing a cross-queue
// happens-after edge.
func (e *SerialUnordered) StartBatchWithDep(sig *hsasync.Signal) error {
	for _, q := range e.queues.Queues() {
		dummy := e.signals.Get()
		dummy.Store(0)
		pkt := hwqueue.BuildBarrierAndPackets([]*hsasync.Signal{sig}, dummy, func() *hsasync.Signal { return e.signals.Get() })
		for _, p := range pkt {
			if err := q.SubmitBarrierAnd(p); err != nil {
				return err
			}
		}
	}
	return nil
}
