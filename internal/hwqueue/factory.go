package hwqueue

import (
	"github.com/dagee-go/dagee/internal/hsasync"
)

// DispatchSpec describes one kernel invocation's geometry and resources,
// independent of any queue it will be submitted on.
type DispatchSpec struct {
	CodeAddr   uint64
	GridX      uint32
	GridY      uint32
	GridZ      uint32
	Workgroup  [3]uint32
	ArgBuffer  []byte
	Completion *hsasync.Signal
	Scope      FenceScope
	Barrier    bool
}

// BuildDispatchPacket zeroes a fresh packet, fills its body from spec (grid
// dimensions are workgroup times block counts, componentwise), and
// publishes the header last with a release store. Never call this with a
// partially filled spec — the header is published unconditionally once the
// body fields are set.
func BuildDispatchPacket(spec DispatchSpec) *DispatchPacket {
	p := &DispatchPacket{
		CodeAddr:   spec.CodeAddr,
		GridX:      spec.Workgroup[0] * spec.GridX,
		GridY:      spec.Workgroup[1] * spec.GridY,
		GridZ:      spec.Workgroup[2] * spec.GridZ,
		WorkgroupX: spec.Workgroup[0],
		WorkgroupY: spec.Workgroup[1],
		WorkgroupZ: spec.Workgroup[2],
		ArgBuffer:  spec.ArgBuffer,
		Completion: spec.Completion,
	}
	p.PublishHeader(Header{
		Kind:         KindDispatch,
		AcquireScope: FenceAgent,
		ReleaseScope: spec.Scope,
		BarrierBit:   spec.Barrier,
	})
	return p
}

// BuildBarrierAndPackets assembles the packet(s) needed to join on deps and
// fire completion. When len(deps) <= BarrierAndMaxDeps a single packet is
// returned. Otherwise deps are reduced in chunks of BarrierAndMaxDeps, each
// chunk producing one intermediate barrier packet signaling a freshly
// allocated intermediate signal; the intermediates are recursively reduced
// until one packet remains, which carries completion. alloc supplies fresh
// intermediate signals (drawn from the caller's preferred pool flavor).
func BuildBarrierAndPackets(deps []*hsasync.Signal, completion *hsasync.Signal, alloc func() *hsasync.Signal) []*BarrierAndPacket {
	if len(deps) <= BarrierAndMaxDeps {
		return []*BarrierAndPacket{buildOneBarrierAnd(deps, completion)}
	}

	var all []*BarrierAndPacket
	var nextLevel []*hsasync.Signal

	for i := 0; i < len(deps); i += BarrierAndMaxDeps {
		end := i + BarrierAndMaxDeps
		if end > len(deps) {
			end = len(deps)
		}
		chunk := deps[i:end]

		sig := alloc()
		all = append(all, buildOneBarrierAnd(chunk, sig))
		nextLevel = append(nextLevel, sig)
	}

	rest := BuildBarrierAndPackets(nextLevel, completion, alloc)
	return append(all, rest...)
}

func buildOneBarrierAnd(deps []*hsasync.Signal, completion *hsasync.Signal) *BarrierAndPacket {
	p := &BarrierAndPacket{Completion: completion}
	for i, d := range deps {
		p.Deps[i] = d
	}
	p.PublishHeader(Header{Kind: KindBarrierAND, ReleaseScope: FenceSystem})
	return p
}

// BarrierTreePacketCount returns how many Barrier-AND packets a tree
// reduction over n predecessors requires: Sum(ceil(n / 5^k)) for
// k=1,2,... until the term is 1.
func BarrierTreePacketCount(n int) int {
	if n <= 0 {
		return 0
	}
	if n <= BarrierAndMaxDeps {
		return 1
	}
	total := 0
	term := n
	for term > 1 {
		term = ceilDiv(term, BarrierAndMaxDeps)
		total += term
	}
	return total
}

func ceilDiv(a, b int) int {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}
