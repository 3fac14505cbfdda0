// Package hwqueue assembles dispatch and barrier packets and submits them
// to simulated hardware command queues. The submission protocol uses a
// dispatcher-local write index, a spin-wait against the driver's read
// index, and a release-ordered doorbell ring; the packet formats follow
// the driver's AQL-style queue packets.
package hwqueue

import (
	"sync/atomic"

	"github.com/dagee-go/dagee/internal/hsasync"
)

// Kind identifies what a packet's body should be interpreted as.
type Kind uint16

const (
	KindInvalid Kind = iota
	KindDispatch
	KindBarrierAND
)

// FenceScope controls how aggressively a packet's memory effects are made
// visible. Non-terminal tasks use Agent scope; the terminal task of a
// batch or DAG uses System scope to flush out to host-visible memory.
type FenceScope uint8

const (
	FenceNone FenceScope = iota
	FenceAgent
	FenceSystem
)

// Header is the packet control word. It is always the last field written
// when assembling a packet, published with a release store so that a
// consumer observing a non-zero kind is guaranteed to see a fully formed
// body.
type Header struct {
	Kind         Kind
	AcquireScope FenceScope
	ReleaseScope FenceScope
	BarrierBit   bool
}

// BarrierAndMaxDeps is the number of dependency signals a single
// Barrier-AND packet can directly hold.
const BarrierAndMaxDeps = 5

// DispatchPacket carries one kernel invocation: its code-object address,
// grid geometry, argument buffer, and completion signal.
type DispatchPacket struct {
	header     atomic.Pointer[Header]
	CodeAddr   uint64
	GridX      uint32
	GridY      uint32
	GridZ      uint32
	WorkgroupX uint32
	WorkgroupY uint32
	WorkgroupZ uint32
	ArgBuffer  []byte
	Completion *hsasync.Signal
}

// PublishHeader writes the packet's control word with release-store
// semantics. It must be called only after every other field is set; the
// queue consumer treats a non-nil header as a signal the body is stable.
func (p *DispatchPacket) PublishHeader(h Header) {
	p.header.Store(&h)
}

// Header returns the packet's published header, or nil if not yet
// published.
func (p *DispatchPacket) Header() *Header {
	return p.header.Load()
}

// BarrierAndPacket fires its own completion signal once every dependency
// signal in Deps has reached 0. At most BarrierAndMaxDeps entries are
// valid; unused trailing slots must be nil.
type BarrierAndPacket struct {
	header     atomic.Pointer[Header]
	Deps       [BarrierAndMaxDeps]*hsasync.Signal
	Completion *hsasync.Signal
}

// PublishHeader writes the packet's control word with release-store
// semantics, matching DispatchPacket's publication contract.
func (p *BarrierAndPacket) PublishHeader(h Header) {
	p.header.Store(&h)
}

// Header returns the packet's published header, or nil if not yet
// published.
func (p *BarrierAndPacket) Header() *Header {
	return p.header.Load()
}

// Packet is the sum type a queue actually transports: exactly one of
// Dispatch or BarrierAnd is non-nil.
type Packet struct {
	Dispatch   *DispatchPacket
	BarrierAnd *BarrierAndPacket
}
