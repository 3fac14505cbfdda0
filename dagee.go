// Package dagee is a heterogeneous task-graph execution engine: it
// registers kernels discovered in a pre-compiled binary image, packs
// per-invocation arguments into driver-compatible buffers, submits
// packets to hardware command queues with dependency signals, and joins
// on terminal signals to report completion. The Engine type composes the
// kernel registry, memory pools, signal pools, and queue pool into one
// entry point.
package dagee

import (
	"time"

	"github.com/dagee-go/dagee/dag"
	"github.com/dagee-go/dagee/internal/engineconfig"
	"github.com/dagee-go/dagee/internal/executor"
	"github.com/dagee-go/dagee/internal/hsamem"
	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/hwqueue"
	"github.com/dagee-go/dagee/internal/logging"
	"github.com/dagee-go/dagee/internal/registry"
	"github.com/dagee-go/dagee/internal/telemetry"
)

// EngineParams configures an Engine at construction. Zero-value fields
// fall back to engineconfig.Default().
type EngineParams struct {
	Config engineconfig.Config
	Driver hwqueue.Driver
	Logger *logging.Logger
	// Resolve maps a code-stub address to its deployed kernel name, as
	// produced by internal/codeimage's binary-image parse. A caller that
	// has no binary image to parse (e.g. registering synthetic CPU or
	// copy kernels only) may pass nil; RegisterKernelByPointer then
	// always fails with a configuration error.
	Resolve func(addr uint64) (string, bool)
	// Selector picks the agent the engine targets from those the driver
	// enumerates. Nil means DefaultAgentSelector.
	Selector AgentSelector
}

// DefaultEngineParams returns params with engineconfig defaults and a nil
// driver; the caller must still supply a Driver before constructing an
// Engine, since there is no meaningful simulated default for production
// use (tests use dagtest.NewDriver).
func DefaultEngineParams() EngineParams {
	return EngineParams{Config: engineconfig.Default(), Logger: logging.Default()}
}

// Engine is the top-level handle a user program holds: it owns the
// kernel registry, the kernel-argument heap, the signal pools, and the
// queue pool every executor draws from.
type Engine struct {
	params  EngineParams
	agent   Agent
	log     *logging.Logger
	kernarg *hsamem.Heap
	device  *hsamem.DeviceAllocator
	signals *hsasync.Manager
	queues  *hwqueue.Pool
	kernels *registry.Registry
}

// New constructs an Engine. params.Driver must be non-nil.
func New(params EngineParams) (*Engine, error) {
	if params.Driver == nil {
		return nil, NewError("dagee.New", CategoryConfiguration, "engine requires a non-nil driver")
	}
	if params.Config == (engineconfig.Config{}) {
		params.Config = engineconfig.Default()
	}
	if params.Logger == nil {
		params.Logger = logging.Default()
	}

	resolve := params.Resolve
	if resolve == nil {
		resolve = func(uint64) (string, bool) { return "", false }
	}
	selector := params.Selector
	if selector == nil {
		selector = DefaultAgentSelector
	}
	agent, err := selector(enumerateAgents(params))
	if err != nil {
		return nil, err
	}

	capacity := uint64(params.Config.QueueCapacity)
	if agent.MaxQueueSize > 0 && agent.MaxQueueSize < capacity {
		capacity = agent.MaxQueueSize
	}
	queues := hwqueue.NewPool(1, capacity, params.Driver)
	queues.SetObserver(telemetry.PrometheusObserver{})

	return &Engine{
		params:  params,
		agent:   agent,
		log:     params.Logger,
		kernarg: hsamem.NewHeap(params.Config.KernargSlabSize),
		device:  hsamem.NewDeviceAllocator(),
		signals: hsasync.NewManager(),
		queues:  queues,
		kernels: registry.New(resolve),
	}, nil
}

// RegisterKernel registers a kernel by its mangled name and static
// argument layout, returning a handle for later launches.
func (e *Engine) RegisterKernel(name string, codeAddr uint64, args []registry.ArgDescriptor) (*registry.KernelInfo, error) {
	info, err := e.kernels.RegisterByName(name, codeAddr, args)
	if err != nil {
		return nil, WrapDriverError("dagee.RegisterKernel", err)
	}
	e.log.WithKernel(info.Name).Debugf("registered at %#x, %d-byte args", info.CodeAddr, info.ArgBufSize)
	return info, nil
}

// RegisterKernelByPointer resolves fnPtr through the Resolve function
// supplied at construction time and registers the result.
func (e *Engine) RegisterKernelByPointer(fnPtr uintptr, codeAddr uint64, args []registry.ArgDescriptor) (*registry.KernelInfo, error) {
	info, err := e.kernels.RegisterByPointer(fnPtr, codeAddr, args)
	if err != nil {
		return nil, NewError("dagee.RegisterKernelByPointer", CategoryConfiguration, err.Error())
	}
	return info, nil
}

// MakeTask packs values into kinfo's argument buffer, allocating the
// buffer from the kernarg heap, and returns a ready-to-launch task
// instance.
func (e *Engine) MakeTask(kinfo *registry.KernelInfo, grid, workgroup [3]uint32, values [][]byte) (executor.TaskInstance, error) {
	packer := registry.NewPacker(kinfo)
	packed, err := packer.Pack(values)
	if err != nil {
		return executor.TaskInstance{}, NewError("dagee.MakeTask", CategoryContractViolation, err.Error())
	}

	buf, err := e.kernarg.Allocate(len(packed))
	if err != nil {
		return executor.TaskInstance{}, NewError("dagee.MakeTask", CategoryResourceExhaustion, err.Error())
	}
	copy(buf.Bytes(), packed)

	return executor.TaskInstance{
		Kernel:    kinfo,
		Args:      buf.Bytes(),
		GridX:     int(grid[0]),
		GridY:     int(grid[1]),
		GridZ:     int(grid[2]),
		Workgroup: workgroup,
	}, nil
}

// AllocateDevice reserves coarse-grain device memory, e.g. as the
// target of a host-to-device copy task.
func (e *Engine) AllocateDevice(size int64) (uintptr, error) {
	addr, err := e.device.Allocate(size)
	if err != nil {
		return 0, NewError("dagee.AllocateDevice", CategoryResourceExhaustion, err.Error())
	}
	return addr, nil
}

// FreeDevice releases one device region previously returned by
// AllocateDevice.
func (e *Engine) FreeDevice(addr uintptr) error {
	if err := e.device.Free(addr); err != nil {
		return NewError("dagee.FreeDevice", CategoryContractViolation, err.Error())
	}
	return nil
}

// NewSerialOrdered checks out one queue from the pool for a serial
// ordered executor.
func (e *Engine) NewSerialOrdered(flavor hsasync.Flavor) *executor.SerialOrdered {
	q := e.queues.Checkout()
	return executor.NewSerialOrdered(q, e.signals.Pool(flavor))
}

// NewSerialUnordered claims k queues from the pool for a round-robin
// unordered executor.
func (e *Engine) NewSerialUnordered(k int, flavor hsasync.Flavor) (*executor.SerialUnordered, error) {
	ex, err := executor.NewSerialUnordered(e.queues, k, e.signals.Pool(flavor))
	if err != nil {
		return nil, NewError("dagee.NewSerialUnordered", CategoryContractViolation, err.Error())
	}
	return ex, nil
}

// NewDAG returns an empty task graph. Node payloads are built with the
// dag package's Launcher implementations (dag.GPUTask, dag.CPUTask,
// dag.NullTask), each bound to a queue checked out from this engine.
func (e *Engine) NewDAG() *dag.DAG { return dag.New() }

// ExecuteDAG runs d's lazy topological launch and joins on its sinks,
// recording the execute duration.
func (e *Engine) ExecuteDAG(d *dag.DAG) error {
	start := time.Now()
	err := dag.Execute(d)
	telemetry.PrometheusObserver{}.ObserveDAGExecute(d.Len(), uint64(time.Since(start).Nanoseconds()), err == nil)
	if err != nil {
		e.log.Errorf("dag execute failed: %v", err)
		return WrapDriverError("dagee.ExecuteDAG", err)
	}
	return nil
}

// CheckoutQueue hands out one queue for a caller assembling its own DAG
// node Launcher implementations.
func (e *Engine) CheckoutQueue() *hwqueue.Queue { return e.queues.Checkout() }

// Signals returns the signal-pool manager, for callers building Launcher
// implementations directly.
func (e *Engine) Signals() *hsasync.Manager { return e.signals }

// Agent reports which device this engine dispatches to.
func (e *Engine) Agent() Agent { return e.agent }

// Close releases every slab and device region the engine holds.
func (e *Engine) Close() error {
	if err := e.kernarg.Close(); err != nil {
		return WrapDriverError("dagee.Close", err)
	}
	if err := e.device.FreeAll(); err != nil {
		return WrapDriverError("dagee.Close", err)
	}
	return nil
}
