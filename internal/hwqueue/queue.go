package hwqueue

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dagee-go/dagee/internal/interfaces"
)

// Driver is the narrow contract a simulated or real accelerator driver
// must satisfy for packets to actually execute. The hwqueue package never
// talks to hardware directly; it only drives this interface.
type Driver interface {
	// RingDoorbell notifies the driver that writeIndex packets are ready
	// for queue qid, starting at the queue's previous doorbell value.
	RingDoorbell(qid int, writeIndex uint64) error
	// ReadIndex returns how many packets the driver has consumed from
	// queue qid so far.
	ReadIndex(qid int) uint64
}

// Queue is one hardware command queue: a ring buffer of packet slots with
// a dispatcher-local write index and the driver's lagging read index.
// Capacity must be a power of two.
type Queue struct {
	id       int
	capacity uint64
	slots    []Packet
	write    atomic.Uint64
	driver   Driver
	observer interfaces.Observer
	mu       sync.Mutex // guards slot writes against concurrent producers
}

// NewQueue creates a queue of the given capacity (must be a power of two)
// bound to driver and identified to it as id.
func NewQueue(id int, capacity uint64, driver Driver) *Queue {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("hwqueue: capacity must be a power of two")
	}
	return &Queue{
		id:       id,
		capacity: capacity,
		slots:    make([]Packet, capacity),
		driver:   driver,
	}
}

// ID returns the queue's driver-facing identifier.
func (q *Queue) ID() int { return q.id }

// SetObserver attaches an activity observer. Pass nil to detach.
func (q *Queue) SetObserver(o interfaces.Observer) { q.observer = o }

// giveOneSlot spins until the driver has caught up enough to leave room,
// then atomically advances the write index and returns the claimed slot
// index.
func (q *Queue) giveOneSlot() uint64 {
	for {
		w := q.write.Load()
		if w-q.driver.ReadIndex(q.id) < q.capacity {
			if q.write.CompareAndSwap(w, w+1) {
				return w & (q.capacity - 1)
			}
			continue
		}
		// Queue full: the driver has not yet caught up. Spin — this
		// mirrors the producer-side busy-wait the driver's own queue
		// push path uses.
	}
}

// SubmitDispatch places p into the next available slot and rings the
// doorbell, publishing the new write index with a release store. Packet
// body production always happens before this call returns.
func (q *Queue) SubmitDispatch(p *DispatchPacket) error {
	idx := q.giveOneSlot()
	q.mu.Lock()
	q.slots[idx] = Packet{Dispatch: p}
	q.mu.Unlock()
	err := q.ring()
	if q.observer != nil {
		q.observer.ObserveDispatch(p.CodeAddr, 0, err == nil)
		q.observer.ObserveQueueDepth(q.id, q.write.Load()-q.driver.ReadIndex(q.id))
	}
	return err
}

// SubmitBarrierAnd places p into the next available slot and rings the
// doorbell.
func (q *Queue) SubmitBarrierAnd(p *BarrierAndPacket) error {
	idx := q.giveOneSlot()
	q.mu.Lock()
	q.slots[idx] = Packet{BarrierAnd: p}
	q.mu.Unlock()
	err := q.ring()
	if q.observer != nil {
		deps := 0
		for _, d := range p.Deps {
			if d != nil {
				deps++
			}
		}
		q.observer.ObserveBarrier(deps, err == nil)
		q.observer.ObserveQueueDepth(q.id, q.write.Load()-q.driver.ReadIndex(q.id))
	}
	return err
}

func (q *Queue) ring() error {
	w := q.write.Load()
	if err := q.driver.RingDoorbell(q.id, w); err != nil {
		return fmt.Errorf("hwqueue: ring doorbell for queue %d: %w", q.id, err)
	}
	return nil
}

// SlotAt returns the packet currently occupying slot idx, for driver
// simulation and tests.
func (q *Queue) SlotAt(idx uint64) Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.slots[idx&(q.capacity-1)]
}
