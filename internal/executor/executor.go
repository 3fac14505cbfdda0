// Package executor implements the launch strategies that turn a task
// instance into submitted packets: serial ordered, serial unordered
// (round-robin), CPU callback, and memory-copy. Every executor shares the
// same packet-submission flow from internal/hwqueue; what differs is how
// each picks queues and wires dependency/completion signals.
package executor

import (
	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/hwqueue"
	"github.com/dagee-go/dagee/internal/registry"
)

// TaskInstance is a value-typed description of one kernel invocation: its
// registered kernel, packed argument buffer, and grid geometry. It does
// not yet hold a signal — that is assigned at launch.
type TaskInstance struct {
	Kernel    *registry.KernelInfo
	Args      []byte
	GridX     int
	GridY     int
	GridZ     int
	Workgroup [3]uint32
}

// TaskHandle is returned by a single-task launch: the completion signal
// the caller can join on.
type TaskHandle struct {
	Signal *hsasync.Signal
}

// Wait blocks until the handle's completion signal reaches 0. The wait
// is unbounded; callers wanting timeouts must wrap at a higher layer. A
// handle that is never waited on keeps its signal out of the pool.
func (h TaskHandle) Wait() {
	for !h.Signal.Reached() {
		// Spin; the simulated driver resolves signals synchronously
		// within RingDoorbell. A real driver-backed join would park on
		// an interrupt-capable signal instead.
	}
}

func buildDispatchSpec(task TaskInstance, completion *hsasync.Signal, scope hwqueue.FenceScope, barrier bool) hwqueue.DispatchSpec {
	return hwqueue.DispatchSpec{
		CodeAddr:   task.Kernel.CodeAddr,
		GridX:      uint32(task.GridX),
		GridY:      uint32(task.GridY),
		GridZ:      uint32(task.GridZ),
		Workgroup:  task.Workgroup,
		ArgBuffer:  task.Args,
		Completion: completion,
		Scope:      scope,
		Barrier:    barrier,
	}
}
