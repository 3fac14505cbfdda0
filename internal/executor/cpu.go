package executor

import (
	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/hwqueue"
)

// CPUCallback is a user-supplied host function invoked with the kernel's
// packed argument buffer.
type CPUCallback func(args []byte)

// CPU wraps host callbacks in a driver-compatible trampoline so they flow
// through the same packet-submission path as GPU kernels: each packet's
// "kernel" is the trampoline, which dereferences the argument buffer and
// forwards it to the registered callback.
type CPU struct {
	queue     *hwqueue.Queue
	signals   *hsasync.Pool
	callbacks map[uint64]CPUCallback
}

// NewCPU binds a CPU executor to queue, drawing completion signals from
// signals.
func NewCPU(queue *hwqueue.Queue, signals *hsasync.Pool) *CPU {
	return &CPU{queue: queue, signals: signals, callbacks: make(map[uint64]CPUCallback)}
}

// RegisterCallback associates a host function with a synthetic code
// address so it can be addressed by a TaskInstance the same way a GPU
// kernel is.
func (e *CPU) RegisterCallback(codeAddr uint64, fn CPUCallback) {
	e.callbacks[codeAddr] = fn
}

// trampoline looks up and invokes the callback registered for a packet's
// code address, dereferencing its argument buffer first.
func (e *CPU) trampoline(pkt *hwqueue.DispatchPacket) {
	if fn, ok := e.callbacks[pkt.CodeAddr]; ok {
		fn(pkt.ArgBuffer)
	}
}

// LaunchTask submits a single CPU task through the normal packet flow.
// The driver is expected to invoke Trampoline (exposed for the
// simulated driver to call back into) once the packet is processed.
func (e *CPU) LaunchTask(task TaskInstance) (TaskHandle, error) {
	sig := e.signals.Get()
	spec := buildDispatchSpec(task, sig, hwqueue.FenceSystem, true)
	pkt := hwqueue.BuildDispatchPacket(spec)
	if err := e.queue.SubmitDispatch(pkt); err != nil {
		return TaskHandle{}, err
	}
	return TaskHandle{Signal: sig}, nil
}

// Trampoline exposes the callback dispatch for a simulated driver to
// invoke once it has "processed" a dispatch packet whose code address
// belongs to this executor.
func (e *CPU) Trampoline(pkt *hwqueue.DispatchPacket) { e.trampoline(pkt) }
