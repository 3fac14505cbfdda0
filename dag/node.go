// Package dag implements the task-graph data structure and its
// topological launch algorithm: a scheduler over an arbitrary
// dependency graph of heterogeneous launch targets.
package dag

import "github.com/dagee-go/dagee/internal/hsasync"

// Launcher is the sum type a DAG node's payload satisfies: one
// implementation per launch target (GPU dispatch, CPU callback, memory
// copy, or a no-op gate). Interface dispatch covers mixed-type
// DAGs without stashing a variant tag in a pointer's low bits.
//
// Build constructs the node's packet(s) against its predecessors'
// already-assigned completion signals and returns the node's own
// completion signal plus a submit closure. Packet construction and
// submission are split so the DAG executor can defer activation: every
// node's Build runs in topological order before any submit closure runs.
type Launcher interface {
	Build(deps []*hsasync.Signal) (submit func() error, completion *hsasync.Signal)
}

// Node is one vertex of the task graph: its launch payload plus
// adjacency. predCount is the static in-degree; each Execute call copies
// it into a per-run dependency counter and decrements that as
// predecessors are launched, so the same static DAG can be re-executed.
type Node struct {
	id        int
	task      Launcher
	preds     []int
	succs     []int
	predCount int
	signal    *hsasync.Signal
}

// ID returns the node's identifier within its owning DAG.
func (n *Node) ID() int { return n.id }

// Signal returns the node's completion signal once it has been launched,
// or nil before that.
func (n *Node) Signal() *hsasync.Signal { return n.signal }

// IsSource reports whether the node has no predecessors.
func (n *Node) IsSource() bool { return n.predCount == 0 }

// IsSink reports whether the node has no successors.
func (n *Node) IsSink() bool { return len(n.succs) == 0 }
