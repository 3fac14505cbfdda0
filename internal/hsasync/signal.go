// Package hsasync manages completion signals: the counting tokens that
// dispatch and barrier packets use to publish and observe finish state.
// Signals are drawn from per-flavor pools and recycled after use; pools
// are batch-filled rather than grown one object at a time.
package hsasync

import (
	"sync"
	"sync/atomic"

	"github.com/dagee-go/dagee/internal/engineconfig"
)

// Flavor distinguishes the three kinds of completion signal the driver can
// create. Each flavor has a distinct batch-allocation size and a distinct
// cost/visibility tradeoff; the pool never mixes flavors.
type Flavor int

const (
	// FlavorInterrupt signals can wake a blocked host thread.
	FlavorInterrupt Flavor = iota
	// FlavorUser signals are GPU-only and cheaper, but cannot interrupt
	// a waiting host thread; only an executor that never blocks on them
	// may use this flavor.
	FlavorUser
	// FlavorIPC signals are shared across process boundaries.
	FlavorIPC
)

func (f Flavor) String() string {
	switch f {
	case FlavorInterrupt:
		return "interrupt"
	case FlavorUser:
		return "user"
	case FlavorIPC:
		return "ipc"
	default:
		return "unknown"
	}
}

func (f Flavor) batchSize() int {
	switch f {
	case FlavorUser:
		return engineconfig.SignalBatchUser
	default:
		return engineconfig.SignalBatchInterrupt
	}
}

// Signal is a counting completion token. A freshly created or recycled
// signal always carries value 1; it reaches 0 when the packet holding it
// as a completion signal finishes.
type Signal struct {
	value  atomic.Int64
	flavor Flavor
}

// Flavor reports which pool this signal belongs to.
func (s *Signal) Flavor() Flavor { return s.flavor }

// Load returns the signal's current value.
func (s *Signal) Load() int64 { return s.value.Load() }

// Reached reports whether the signal has reached 0.
func (s *Signal) Reached() bool { return s.value.Load() == 0 }

// Store sets the signal's value directly. Used by the simulated driver to
// model packet completion.
func (s *Signal) Store(v int64) { s.value.Store(v) }

// Add atomically adds delta to the signal's value and returns the result,
// mirroring the driver's AND-barrier decrement-on-dependency-completion
// behavior.
func (s *Signal) Add(delta int64) int64 { return s.value.Add(delta) }

// Pool issues and recycles signals of a single flavor. On allocation, if
// the free list is empty, a fresh batch is created; on deallocation the
// caller must have already reset the signal's value to 1.
type Pool struct {
	mu     sync.Mutex
	flavor Flavor
	free   []*Signal
	issued int
}

// NewPool creates an empty pool for the given flavor.
func NewPool(flavor Flavor) *Pool {
	return &Pool{flavor: flavor}
}

// Get returns a signal with value 1, allocating a fresh batch if the pool
// is empty.
func (p *Pool) Get() *Signal {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		p.growLocked()
	}
	sig := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	sig.value.Store(1)
	return sig
}

// GetMany returns n freshly valued signals from the pool.
func (p *Pool) GetMany(n int) []*Signal {
	out := make([]*Signal, n)
	for i := range out {
		out[i] = p.Get()
	}
	return out
}

// Put returns sig to its pool. The caller must have reset sig's value to 1
// (or it must already be 0 from natural completion — the pool does not
// validate this, matching the driver's own recycle contract).
func (p *Pool) Put(sig *Signal) {
	if sig.flavor != p.flavor {
		panic("hsasync: signal returned to wrong-flavor pool")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, sig)
}

// PutMany returns a batch of signals to the pool at once, e.g. after a
// DAG executor has joined on every node's completion signal.
func (p *Pool) PutMany(sigs []*Signal) {
	for _, s := range sigs {
		p.Put(s)
	}
}

// Outstanding reports how many signals are not currently on the free list,
// for leak-tracking tests; callers that drop a task handle without
// joining leave their signal outstanding forever, which this pool does
// not attempt to reclaim.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issued - len(p.free)
}

func (p *Pool) growLocked() {
	n := p.flavor.batchSize()
	for i := 0; i < n; i++ {
		p.free = append(p.free, &Signal{flavor: p.flavor})
	}
	p.issued += n
}
