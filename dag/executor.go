package dag

import (
	"fmt"

	"github.com/dagee-go/dagee/internal/hsasync"
)

// Execute performs the lazy topological launch: every node's packet is
// built (but not activated) once its predecessors' packets exist, in
// topological order; only after every node's packet has been built are
// the source packets activated together; finally the host joins on every
// sink's completion signal. Any driver error during activation is fatal
// and aborts the remaining activations.
func Execute(d *DAG) error {
	order, err := buildTopological(d)
	if err != nil {
		return err
	}

	var sourceSubmits []func() error
	var deferredSubmits []func() error
	for _, n := range order {
		deps := predecessorSignals(d, n)
		submit, sig := n.task.Build(deps)
		n.signal = sig
		if n.IsSource() {
			sourceSubmits = append(sourceSubmits, submit)
		} else {
			deferredSubmits = append(deferredSubmits, submit)
		}
	}

	// Lazy activation: sources fire first (together), then every other
	// node's already-built packet is submitted. Submission order among
	// non-source nodes still follows the topological order computed
	// above, so a node's gating barrier packet is never queued before
	// its predecessor's dispatch packet.
	for _, submit := range sourceSubmits {
		if err := submit(); err != nil {
			return err
		}
	}
	for _, submit := range deferredSubmits {
		if err := submit(); err != nil {
			return err
		}
	}

	return joinSinks(d)
}

// ExecuteBFSLevels launches nodes in frontier order: all currently-ready
// nodes are built and activated as one level, then the next frontier is
// computed from their successors. Unlike Execute, there is no separate
// deferred-activation pass — each level is fully activated before the
// next level's packets are built, which is what makes this variant
// distinct from the lazy default.
func ExecuteBFSLevels(d *DAG) error {
	depCount := make([]int, d.Len())
	for i, n := range d.nodes {
		depCount[i] = n.predCount
	}

	current := d.Sources()
	for len(current) > 0 {
		var submits []func() error
		for _, n := range current {
			deps := predecessorSignals(d, n)
			submit, sig := n.task.Build(deps)
			n.signal = sig
			submits = append(submits, submit)
		}
		for _, submit := range submits {
			if err := submit(); err != nil {
				return err
			}
		}

		next := map[int]*Node{}
		for _, n := range current {
			for _, sid := range n.succs {
				depCount[sid]--
				if depCount[sid] == 0 {
					next[sid] = d.nodes[sid]
				}
			}
		}
		current = current[:0]
		for _, n := range next {
			current = append(current, n)
		}
	}

	return joinSinks(d)
}

// buildTopological returns every node in an order where each node follows
// all of its predecessors, using the same counter-decrement algorithm as
// ExecuteBFSLevels but flattened into a single ordering rather than
// discrete levels.
func buildTopological(d *DAG) ([]*Node, error) {
	depCount := make([]int, d.Len())
	for i, n := range d.nodes {
		depCount[i] = n.predCount
	}

	var queue []*Node
	queue = append(queue, d.Sources()...)

	var order []*Node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		for _, sid := range n.succs {
			depCount[sid]--
			if depCount[sid] == 0 {
				queue = append(queue, d.nodes[sid])
			}
		}
	}

	if len(order) != d.Len() {
		return nil, fmt.Errorf("dag: graph is not a DAG (cycle detected), reached %d of %d nodes", len(order), d.Len())
	}
	return order, nil
}

func predecessorSignals(d *DAG, n *Node) []*hsasync.Signal {
	if len(n.preds) == 0 {
		return nil
	}
	out := make([]*hsasync.Signal, len(n.preds))
	for i, pid := range n.preds {
		out[i] = d.nodes[pid].signal
	}
	return out
}

// joinSinks blocks until every sink's completion signal has reached 0.
// The join is unbounded; a caller wanting a timeout must wrap this call.
func joinSinks(d *DAG) error {
	for _, n := range d.Sinks() {
		if n.signal == nil {
			return fmt.Errorf("dag: sink node %d has no completion signal after execute", n.id)
		}
		for !n.signal.Reached() {
			// Spin; the simulated driver resolves signals synchronously
			// within RingDoorbell, so in practice this never iterates more
			// than once. A real driver-backed join would park on a futex
			// or interrupt instead.
		}
	}
	return nil
}
