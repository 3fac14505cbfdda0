// Package partition implements the out-of-core executor: a DAG of
// partitions sitting above the task DAG, each owning a host data block
// and a slot in a rotating pool of device buffers. Partitions run
// concurrently as gated goroutines, ordered only by explicit edges and
// device-buffer-slot reuse; the host-to-device and device-to-host
// copies within one partition fan out via golang.org/x/sync/errgroup.
package partition

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dagee-go/dagee/dag"
	"github.com/dagee-go/dagee/internal/executor"
)

// Block names one named host data block a partition moves to and from
// the device.
type Block struct {
	Name string
	Host []byte
	// DeviceAddr is filled in once a device buffer slot has been
	// assigned to this partition.
	DeviceAddr uintptr
}

// Partition is a DAG paired with a logical host data block and a slot in
// a rotating pool of device data buffers.
type Partition struct {
	ID     uuid.UUID
	Blocks []Block
	Inner  *dag.DAG
	// BufferSlot is this partition's assigned index into the rotating
	// device-buffer pool; a partition's gate also waits for the slot's
	// previous tenant (in AddPartition order), so partitions sharing a
	// slot run one after another.
	BufferSlot int

	preds []uuid.UUID
}

// Graph is the higher-level DAG of partitions. Edges between partitions
// imply both a logical happens-before relationship and, when two
// partitions share a device-buffer slot, a data-reuse ordering.
type Graph struct {
	partitions  map[uuid.UUID]*Partition
	order       []uuid.UUID
	bufferSlots int
}

// NewGraph creates an empty partition graph that rotates across
// bufferSlots device buffers.
func NewGraph(bufferSlots int) *Graph {
	if bufferSlots <= 0 {
		bufferSlots = 1
	}
	return &Graph{partitions: make(map[uuid.UUID]*Partition), bufferSlots: bufferSlots}
}

// AddPartition registers p, assigning it the next round-robin buffer
// slot, and returns its ID.
func (g *Graph) AddPartition(p *Partition) uuid.UUID {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.BufferSlot = len(g.order) % g.bufferSlots
	g.partitions[p.ID] = p
	g.order = append(g.order, p.ID)
	return p.ID
}

// AddEdge records a happens-before edge between two partitions.
func (g *Graph) AddEdge(a, b uuid.UUID) error {
	if _, ok := g.partitions[a]; !ok {
		return fmt.Errorf("partition: unknown partition %s", a)
	}
	pb, ok := g.partitions[b]
	if !ok {
		return fmt.Errorf("partition: unknown partition %s", b)
	}
	pb.preds = append(pb.preds, a)
	return nil
}

// CopyFunc performs one named block's host<->device transfer. Supplied by
// the caller so this package stays independent of any particular memory
// allocator.
type CopyFunc func(ctx context.Context, p *Partition, block Block, dir executor.CopyDirection) error

// Execute runs every partition concurrently. Each partition performs
// the five-step sequence: (i) a gate waiting on predecessor partitions'
// sinks — including the implicit predecessor that last held this
// partition's device-buffer slot, since reusing a slot means the
// previous tenant's data must have been copied back out first; (ii) a
// concurrent fan-out of host-to-device copies for every named block;
// (iii) the partition's own inner task DAG; (iv) a concurrent fan-out
// of device-to-host copies; (v) a sink other partitions' gates observe.
// Source partitions have empty gates and are activated together;
// Execute joins once every sink has fired. The first error cancels the
// remaining partitions.
func Execute(ctx context.Context, g *Graph, copy CopyFunc) error {
	preds := g.gatePredecessors()
	if err := g.checkAcyclic(preds); err != nil {
		return err
	}

	sinks := make(map[uuid.UUID]chan struct{}, len(g.partitions))
	for _, id := range g.order {
		sinks[id] = make(chan struct{})
	}

	eg, gctx := errgroup.WithContext(ctx)
	for _, id := range g.order {
		p := g.partitions[id]
		eg.Go(func() error {
			for _, pred := range preds[p.ID] {
				select {
				case <-sinks[pred]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			if err := fanOutCopies(gctx, p, copy, executor.CopyHostToDevice); err != nil {
				return fmt.Errorf("partition %s: host-to-device copy: %w", p.ID, err)
			}

			if p.Inner != nil {
				if err := dag.Execute(p.Inner); err != nil {
					return fmt.Errorf("partition %s: inner DAG: %w", p.ID, err)
				}
			}

			if err := fanOutCopies(gctx, p, copy, executor.CopyDeviceToHost); err != nil {
				return fmt.Errorf("partition %s: device-to-host copy: %w", p.ID, err)
			}

			close(sinks[p.ID])
			return nil
		})
	}
	return eg.Wait()
}

// gatePredecessors returns, per partition, the partitions its gate must
// wait on: its explicit predecessors plus, when its device-buffer slot
// has an earlier tenant, that tenant.
func (g *Graph) gatePredecessors() map[uuid.UUID][]uuid.UUID {
	lastTenant := make(map[int]uuid.UUID, g.bufferSlots)
	out := make(map[uuid.UUID][]uuid.UUID, len(g.partitions))
	for _, id := range g.order {
		p := g.partitions[id]
		deps := append([]uuid.UUID(nil), p.preds...)
		if prev, ok := lastTenant[p.BufferSlot]; ok && !contains(deps, prev) {
			deps = append(deps, prev)
		}
		out[id] = deps
		lastTenant[p.BufferSlot] = id
	}
	return out
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func fanOutCopies(ctx context.Context, p *Partition, copy CopyFunc, dir executor.CopyDirection) error {
	if copy == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, block := range p.Blocks {
		block := block
		g.Go(func() error { return copy(gctx, p, block, dir) })
	}
	return g.Wait()
}

// checkAcyclic rejects a partition graph whose combined edge set
// (explicit edges plus implicit slot-reuse edges) contains a cycle,
// which would deadlock the gates in Execute.
func (g *Graph) checkAcyclic(preds map[uuid.UUID][]uuid.UUID) error {
	depCount := make(map[uuid.UUID]int, len(g.partitions))
	succs := make(map[uuid.UUID][]uuid.UUID, len(g.partitions))
	for id, deps := range preds {
		depCount[id] = len(deps)
		for _, d := range deps {
			succs[d] = append(succs[d], id)
		}
	}

	var queue []uuid.UUID
	for _, id := range g.order {
		if depCount[id] == 0 {
			queue = append(queue, id)
		}
	}

	reached := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		reached++

		for _, succ := range succs[id] {
			depCount[succ]--
			if depCount[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if reached != len(g.partitions) {
		return fmt.Errorf("partition: graph is not a DAG (cycle detected)")
	}
	return nil
}
