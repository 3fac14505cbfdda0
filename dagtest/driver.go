// Package dagtest provides a synchronous fake accelerator driver for
// tests: every doorbell ring is processed immediately and in order, so
// dependency wiring can be asserted without a real device or a
// background consumer goroutine: a drop-in collaborator that satisfies
// the production interface with the simplest behavior that still
// exercises real call paths.
package dagtest

import (
	"sync"

	"github.com/dagee-go/dagee/internal/hwqueue"
)

// Driver is a hwqueue.Driver that, on every RingDoorbell call, walks the
// newly written slots of the named queue and resolves their packets
// immediately: a dispatch packet's completion signal is set to 0 (and,
// if a callback was registered for its code address, the callback is
// invoked first with its argument buffer); a Barrier-AND packet's
// completion signal is set to 0 unconditionally, since by the time this
// driver processes it every dependency packet submitted before it has
// already completed.
type Driver struct {
	mu        sync.Mutex
	queues    map[int]*hwqueue.Queue
	processed map[int]uint64
	callbacks map[uint64]func([]byte)
}

// NewDriver returns an empty fake driver with no attached queues.
func NewDriver() *Driver {
	return &Driver{
		queues:    make(map[int]*hwqueue.Queue),
		processed: make(map[int]uint64),
		callbacks: make(map[uint64]func([]byte)),
	}
}

// Attach registers q so the driver can read its slots when its doorbell
// rings. Queues must be constructed with this driver already, then
// attached — NewQueue needs a Driver before one exists to attach.
func (d *Driver) Attach(q *hwqueue.Queue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queues[q.ID()] = q
}

// RegisterCallback associates a host function with a code address, for
// CPU-callback nodes whose trampoline this driver should invoke directly.
func (d *Driver) RegisterCallback(codeAddr uint64, fn func([]byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[codeAddr] = fn
}

// RingDoorbell implements hwqueue.Driver.
func (d *Driver) RingDoorbell(qid int, writeIndex uint64) error {
	d.mu.Lock()
	q := d.queues[qid]
	start := d.processed[qid]
	d.mu.Unlock()

	if q != nil {
		for i := start; i < writeIndex; i++ {
			d.process(q.SlotAt(i))
		}
	}

	d.mu.Lock()
	d.processed[qid] = writeIndex
	d.mu.Unlock()
	return nil
}

// ReadIndex implements hwqueue.Driver.
func (d *Driver) ReadIndex(qid int) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processed[qid]
}

func (d *Driver) process(pkt hwqueue.Packet) {
	switch {
	case pkt.Dispatch != nil:
		dp := pkt.Dispatch
		d.mu.Lock()
		fn := d.callbacks[dp.CodeAddr]
		d.mu.Unlock()
		if fn != nil {
			fn(dp.ArgBuffer)
		}
		if dp.Completion != nil {
			dp.Completion.Store(0)
		}
	case pkt.BarrierAnd != nil:
		bp := pkt.BarrierAnd
		if bp.Completion != nil {
			bp.Completion.Store(0)
		}
	}
}
