package executor

import (
	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/hwqueue"
)

// SerialOrdered owns one serial hardware queue. Every dispatch it submits
// carries the barrier bit, so the driver sequences them strictly in
// submission order regardless of dependency signals.
type SerialOrdered struct {
	queue   *hwqueue.Queue
	signals *hsasync.Pool
}

// NewSerialOrdered binds a serial ordered executor to queue, drawing
// completion signals from signals.
func NewSerialOrdered(queue *hwqueue.Queue, signals *hsasync.Pool) *SerialOrdered {
	return &SerialOrdered{queue: queue, signals: signals}
}

// LaunchTask submits a single task and returns a handle wrapping a fresh
// completion signal, using system-wide fence scope since a lone task is
// always terminal.
func (e *SerialOrdered) LaunchTask(task TaskInstance) (TaskHandle, error) {
	sig := e.signals.Get()
	spec := buildDispatchSpec(task, sig, hwqueue.FenceSystem, true)
	pkt := hwqueue.BuildDispatchPacket(spec)
	if err := e.queue.SubmitDispatch(pkt); err != nil {
		return TaskHandle{}, err
	}
	return TaskHandle{Signal: sig}, nil
}

// LaunchTaskAfter submits task gated on deps: a Barrier-AND packet (or
// tree, when deps exceed the direct fan-in) is queued ahead of the
// dispatch on the owned queue, so the dispatch cannot begin until every
// dependency signal has reached 0.
func (e *SerialOrdered) LaunchTaskAfter(task TaskInstance, deps []*hsasync.Signal) (TaskHandle, error) {
	if len(deps) > 0 {
		gate := e.signals.Get()
		pkts := hwqueue.BuildBarrierAndPackets(deps, gate, func() *hsasync.Signal { return e.signals.Get() })
		for _, p := range pkts {
			if err := e.queue.SubmitBarrierAnd(p); err != nil {
				return TaskHandle{}, err
			}
		}
	}
	return e.LaunchTask(task)
}

// LaunchBatch submits every task in tasks on the owned queue with the
// barrier bit set, reusing one terminal completion signal: every packet
// but the last uses no signal and agent-scope fences; the last uses the
// batch's terminal signal and system-wide fences so the result is
// host-visible.
func (e *SerialOrdered) LaunchBatch(tasks []TaskInstance) (TaskHandle, error) {
	terminal := e.signals.Get()
	for i, task := range tasks {
		last := i == len(tasks)-1
		var sig *hsasync.Signal
		scope := hwqueue.FenceAgent
		if last {
			sig = terminal
			scope = hwqueue.FenceSystem
		}
		spec := buildDispatchSpec(task, sig, scope, true)
		pkt := hwqueue.BuildDispatchPacket(spec)
		if err := e.queue.SubmitDispatch(pkt); err != nil {
			return TaskHandle{}, err
		}
	}
	return TaskHandle{Signal: terminal}, nil
}
