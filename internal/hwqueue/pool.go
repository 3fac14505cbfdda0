package hwqueue

import (
	"fmt"
	"sync"

	"github.com/dagee-go/dagee/internal/interfaces"
)

// Pool hands out serial or concurrent queues sized to the agent's maximum
// queue length. A dispatcher checks out a queue, submits its packets, and
// checks it back in; the pool never shrinks below the watermark it was
// created with.
type Pool struct {
	mu        sync.Mutex
	capacity  uint64
	driver    Driver
	observer  interfaces.Observer
	watermark int
	free      []*Queue
	nextID    int
}

// NewPool creates a pool pre-populated with watermark queues of the given
// per-queue capacity, all bound to driver.
func NewPool(watermark int, capacity uint64, driver Driver) *Pool {
	p := &Pool{capacity: capacity, driver: driver, watermark: watermark}
	for i := 0; i < watermark; i++ {
		p.free = append(p.free, p.newQueueLocked())
	}
	return p
}

// Checkout removes a queue from the free list, growing the pool past its
// watermark if every queue is currently checked out.
func (p *Pool) Checkout() *Queue {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return p.newQueueLocked()
	}
	q := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return q
}

// SetObserver attaches an activity observer to every queue on the free
// list and every queue the pool creates from now on. Call before any
// queue is checked out.
func (p *Pool) SetObserver(o interfaces.Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = o
	for _, q := range p.free {
		q.SetObserver(o)
	}
}

// Checkin returns q to the free list.
func (p *Pool) Checkin(q *Queue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, q)
}

// Size reports how many queues, checked out or free, this pool has ever
// created.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextID
}

// Attacher is implemented by drivers that need to track which queues
// exist before any doorbell rings, such as an in-memory fake that walks
// a queue's slots directly rather than reading real device memory. A
// pool attaches every queue it creates to its driver when the driver
// satisfies this interface.
type Attacher interface {
	Attach(q *Queue)
}

func (p *Pool) newQueueLocked() *Queue {
	q := NewQueue(p.nextID, p.capacity, p.driver)
	q.SetObserver(p.observer)
	p.nextID++
	if a, ok := p.driver.(Attacher); ok {
		a.Attach(q)
	}
	return q
}

// RoundRobin is a fixed-size ring of K queues that load-balances submitted
// work across them, as the serial unordered executor requires. K must not
// exceed MaxUnorderedQueues.
type RoundRobin struct {
	mu     sync.Mutex
	queues []*Queue
	next   int
}

// MaxUnorderedQueues bounds how many queues a single round-robin group may
// contain.
const MaxUnorderedQueues = 64

// NewRoundRobin claims k queues from pool, in order, for exclusive use by
// one unordered executor.
func NewRoundRobin(pool *Pool, k int) (*RoundRobin, error) {
	if k <= 0 || k > MaxUnorderedQueues {
		return nil, fmt.Errorf("hwqueue: round-robin queue count %d out of range (1..%d)", k, MaxUnorderedQueues)
	}
	rr := &RoundRobin{}
	for i := 0; i < k; i++ {
		rr.queues = append(rr.queues, pool.Checkout())
	}
	return rr, nil
}

// Next returns the next queue in rotation.
func (rr *RoundRobin) Next() *Queue {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	q := rr.queues[rr.next]
	rr.next = (rr.next + 1) % len(rr.queues)
	return q
}

// Queues returns every queue owned by this group, in fixed order (queue 0
// is where cross-queue barrier packets are emitted).
func (rr *RoundRobin) Queues() []*Queue {
	return rr.queues
}

// Release returns every queue in the group back to pool.
func (rr *RoundRobin) Release(pool *Pool) {
	for _, q := range rr.queues {
		pool.Checkin(q)
	}
}
