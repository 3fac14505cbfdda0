package executor

import (
	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/hwqueue"
)

// CopyDirection distinguishes the two directions a memory-copy task can
// move data relative to the device.
type CopyDirection int

const (
	CopyHostToDevice CopyDirection = iota
	CopyDeviceToHost
)

// CopyTask describes one memory-copy invocation: source and destination
// addresses plus length, wrapped the same way a kernel dispatch wraps its
// arguments.
type CopyTask struct {
	Direction CopyDirection
	Src       uintptr
	Dst       uintptr
	Length    int64
}

// MemCopy emits driver memory-copy tasks with the same dependency-array
// wiring as kernel dispatches, encoding the copy description into a
// dispatch packet's argument buffer rather than a real kernel's.
type MemCopy struct {
	queue   *hwqueue.Queue
	signals *hsasync.Pool
}

// NewMemCopy binds a memory-copy executor to queue.
func NewMemCopy(queue *hwqueue.Queue, signals *hsasync.Pool) *MemCopy {
	return &MemCopy{queue: queue, signals: signals}
}

// MemCopyCodeAddr is the sentinel code address the simulated driver
// recognizes as "interpret the argument buffer as a CopyTask" rather than
// dispatching to a real kernel.
const MemCopyCodeAddr = ^uint64(0)

// LaunchCopy submits a copy task, completing into a fresh signal.
func (e *MemCopy) LaunchCopy(copy CopyTask) (TaskHandle, error) {
	sig := e.signals.Get()
	pkt := hwqueue.BuildDispatchPacket(hwqueue.DispatchSpec{
		CodeAddr:   MemCopyCodeAddr,
		Workgroup:  [3]uint32{1, 1, 1},
		GridX:      1,
		ArgBuffer:  EncodeCopyTask(copy),
		Completion: sig,
		Scope:      hwqueue.FenceSystem,
		Barrier:    true,
	})
	if err := e.queue.SubmitDispatch(pkt); err != nil {
		return TaskHandle{}, err
	}
	return TaskHandle{Signal: sig}, nil
}

// EncodeCopyTask packs c into a dispatch packet's argument buffer.
func EncodeCopyTask(c CopyTask) []byte {
	buf := make([]byte, 1+8+8+8)
	buf[0] = byte(c.Direction)
	putUintptr(buf[1:9], c.Src)
	putUintptr(buf[9:17], c.Dst)
	putInt64(buf[17:25], c.Length)
	return buf
}

// DecodeCopyTask reverses EncodeCopyTask, used by the simulated driver to
// recover the copy description from a packet's argument buffer.
func DecodeCopyTask(buf []byte) CopyTask {
	return CopyTask{
		Direction: CopyDirection(buf[0]),
		Src:       getUintptr(buf[1:9]),
		Dst:       getUintptr(buf[9:17]),
		Length:    getInt64(buf[17:25]),
	}
}

func putUintptr(b []byte, v uintptr) {
	putInt64(b, int64(v))
}

func getUintptr(b []byte) uintptr {
	return uintptr(getInt64(b))
}

func putInt64(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getInt64(b []byte) int64 {
	var v int64
	for i := 0; i < 8; i++ {
		v |= int64(b[i]) << (8 * i)
	}
	return v
}
