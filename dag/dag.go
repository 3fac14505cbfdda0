package dag

import "fmt"

// DAG is an index-based adjacency structure: nodes are addressed by a
// dense NodeID assigned in AddNode order.
type DAG struct {
	nodes []*Node
}

// New returns an empty DAG.
func New() *DAG {
	return &DAG{}
}

// AddNode appends a node wrapping task and returns its NodeID.
func (d *DAG) AddNode(task Launcher) int {
	id := len(d.nodes)
	d.nodes = append(d.nodes, &Node{id: id, task: task})
	return id
}

// AddEdge records a happens-before edge from a to b. Self-edges and
// duplicate edges are rejected; both endpoints must already exist.
func (d *DAG) AddEdge(a, b int) error {
	if a == b {
		return fmt.Errorf("dag: self-edge on node %d", a)
	}
	if err := d.checkID(a); err != nil {
		return err
	}
	if err := d.checkID(b); err != nil {
		return err
	}

	na := d.nodes[a]
	for _, s := range na.succs {
		if s == b {
			return fmt.Errorf("dag: duplicate edge %d -> %d", a, b)
		}
	}

	na.succs = append(na.succs, b)
	nb := d.nodes[b]
	nb.preds = append(nb.preds, a)
	nb.predCount++
	return nil
}

// Node returns the node with the given ID.
func (d *DAG) Node(id int) *Node { return d.nodes[id] }

// Len returns the number of nodes in the DAG.
func (d *DAG) Len() int { return len(d.nodes) }

// Sources returns every node with no predecessors.
func (d *DAG) Sources() []*Node {
	var out []*Node
	for _, n := range d.nodes {
		if n.IsSource() {
			out = append(out, n)
		}
	}
	return out
}

// Sinks returns every node with no successors.
func (d *DAG) Sinks() []*Node {
	var out []*Node
	for _, n := range d.nodes {
		if n.IsSink() {
			out = append(out, n)
		}
	}
	return out
}

func (d *DAG) checkID(id int) error {
	if id < 0 || id >= len(d.nodes) {
		return fmt.Errorf("dag: node id %d out of range", id)
	}
	return nil
}
