// Command dagee-run is a small demo CLI, not part of the engine's core
// surface: it loads one of a few canned DAG shapes and runs it against
// the in-memory fake driver from dagtest, printing a CSV timing line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dagee-go/dagee/dag"
	"github.com/dagee-go/dagee/dagtest"
	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/hwqueue"
	"github.com/dagee-go/dagee/internal/logging"
	"github.com/dagee-go/dagee/internal/telemetry"
)

func main() {
	cmd := &cli.Command{
		Name:  "dagee-run",
		Usage: "run a canned task-graph shape against the in-process fake driver",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "shape",
				Value: "kite",
				Usage: "DAG shape to run: kite, tree, mixed",
			},
			&cli.IntFlag{
				Name:  "n",
				Value: 16384,
				Usage: "element count for the kite shape's buffers",
			},
			&cli.IntFlag{
				Name:  "depth",
				Value: 10,
				Usage: "tree depth for the tree shape",
			},
			&cli.IntFlag{
				Name:  "degree",
				Value: 2,
				Usage: "branching factor for the tree shape",
			},
			&cli.IntFlag{
				Name:  "l",
				Value: 1,
				Usage: "number of repetitions to time",
			},
			&cli.BoolFlag{
				Name:  "v",
				Usage: "verbose (debug-level) logging",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: dagee-run failed at cmd/dagee-run/main.go: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logConfig := logging.DefaultConfig()
	if cmd.Bool("v") {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	shape := cmd.String("shape")
	reps := cmd.Int("l")
	if reps < 1 {
		reps = 1
	}

	var build func() (*dag.DAG, func() bool)
	switch shape {
	case "kite":
		build = func() (*dag.DAG, func() bool) { return buildKite(int(cmd.Int("n"))) }
	case "tree":
		build = func() (*dag.DAG, func() bool) { return buildTree(int(cmd.Int("depth")), int(cmd.Int("degree"))) }
	case "mixed":
		build = buildMixed
	default:
		return fmt.Errorf("unknown shape %q (want kite, tree, or mixed)", shape)
	}

	var series telemetry.Series
	var nodeCount int
	for i := int64(0); i < reps; i++ {
		timer := telemetry.NewTimer("dagee-run", shape)
		timer.Start()

		graph, check := build()
		nodeCount = graph.Len()
		if err := dag.Execute(graph); err != nil {
			return fmt.Errorf("execute %s DAG: %w", shape, err)
		}
		if !check() {
			return fmt.Errorf("%s DAG produced an incorrect result", shape)
		}

		series.Push(float64(timer.Stop().Microseconds()))
	}

	fmt.Printf("shape,nodes,reps,min_us,max_us,avg_us,stddev_us\n")
	fmt.Printf("%s,%d,%d,%.2f,%.2f,%.2f,%.2f\n",
		shape, nodeCount, reps, series.Min(), series.Max(), series.Avg(), series.StdDev())
	logger.Info("run complete", "shape", shape, "nodes", nodeCount, "reps", reps)
	return nil
}

func newQueue(driver *dagtest.Driver, id int) *hwqueue.Queue {
	q := hwqueue.NewQueue(id, 1024, driver)
	driver.Attach(q)
	return q
}

// buildKite constructs the Top/Left/Right/Bottom diamond from the
// engine's testable-properties scenario 1: Top seeds A, Left and Right
// each derive from A into B and C, Bottom combines all three. Expects
// A[i] == 6 for every i after execution.
func buildKite(n int) (*dag.DAG, func() bool) {
	a := make([]int, n)
	b := make([]int, n)
	c := make([]int, n)

	driver := dagtest.NewDriver()
	q := newQueue(driver, 0)
	signals := hsasync.NewPool(hsasync.FlavorUser)

	driver.RegisterCallback(1, func([]byte) {
		for i := range a {
			a[i] = 1
		}
	})
	driver.RegisterCallback(2, func([]byte) {
		for i := range b {
			b[i] = a[i] + 2
		}
	})
	driver.RegisterCallback(3, func([]byte) {
		for i := range c {
			c[i] = a[i] + 3
		}
	})
	driver.RegisterCallback(4, func([]byte) {
		for i := range a {
			a[i] = a[i] + b[i] + c[i]
		}
	})

	graph := dag.New()
	top := graph.AddNode(&dag.CPUTask{Queue: q, Signals: signals, CodeAddr: 1})
	left := graph.AddNode(&dag.CPUTask{Queue: q, Signals: signals, CodeAddr: 2})
	right := graph.AddNode(&dag.CPUTask{Queue: q, Signals: signals, CodeAddr: 3})
	bottom := graph.AddNode(&dag.CPUTask{Queue: q, Signals: signals, CodeAddr: 4, Scope: hwqueue.FenceSystem})
	graph.AddEdge(top, left)
	graph.AddEdge(top, right)
	graph.AddEdge(left, bottom)
	graph.AddEdge(right, bottom)

	return graph, func() bool {
		for i := range a {
			if a[i] != 6 {
				return false
			}
		}
		return true
	}
}

// buildTree constructs an expanding tree of the given depth and degree
// followed by a symmetric contracting tree, per scenario 4: every node is
// a no-op gate, so the only property checked is that execution completes
// without deadlock and the resulting DAG has exactly one sink.
func buildTree(depth, degree int) (*dag.DAG, func() bool) {
	driver := dagtest.NewDriver()
	q := newQueue(driver, 0)
	signals := hsasync.NewPool(hsasync.FlavorUser)

	graph := dag.New()
	level := []int{graph.AddNode(&dag.NullTask{Queue: q, Signals: signals})}
	for l := 0; l < depth; l++ {
		var next []int
		for _, parent := range level {
			for k := 0; k < degree; k++ {
				child := graph.AddNode(&dag.NullTask{Queue: q, Signals: signals})
				graph.AddEdge(parent, child)
				next = append(next, child)
			}
		}
		level = next
	}
	for len(level) > 1 {
		var next []int
		for i := 0; i < len(level); i += degree {
			parent := graph.AddNode(&dag.NullTask{Queue: q, Signals: signals})
			for k := 0; k < degree && i+k < len(level); k++ {
				graph.AddEdge(level[i+k], parent)
			}
			next = append(next, parent)
		}
		level = next
	}

	return graph, func() bool { return len(graph.Sinks()) == 1 }
}

// buildMixed constructs the CPU/GPU/copy round-trip from scenario 5:
// top_cpu -> h2d_copy -> (left_gpu, right_gpu) -> d2h_copy -> bottom_cpu,
// expecting (1+1)*4 == 8.
func buildMixed() (*dag.DAG, func() bool) {
	driver := dagtest.NewDriver()
	q := newQueue(driver, 0)
	signals := hsasync.NewPool(hsasync.FlavorUser)

	value := []int{0, 0}
	const (
		topCPU    = 1
		leftGPU   = 2
		rightGPU  = 3
		bottomCPU = 4
	)
	driver.RegisterCallback(topCPU, func([]byte) { value[0], value[1] = 1, 1 })
	driver.RegisterCallback(leftGPU, func([]byte) { value[0]++ })
	driver.RegisterCallback(rightGPU, func([]byte) { value[1]++ })
	driver.RegisterCallback(bottomCPU, func([]byte) { value[0] *= 4; value[1] *= 4 })

	graph := dag.New()
	top := graph.AddNode(&dag.CPUTask{Queue: q, Signals: signals, CodeAddr: topCPU})
	h2d := graph.AddNode(&dag.CopyTask{Queue: q, Signals: signals})
	left := graph.AddNode(&dag.CPUTask{Queue: q, Signals: signals, CodeAddr: leftGPU})
	right := graph.AddNode(&dag.CPUTask{Queue: q, Signals: signals, CodeAddr: rightGPU})
	d2h := graph.AddNode(&dag.CopyTask{Queue: q, Signals: signals})
	bottom := graph.AddNode(&dag.CPUTask{Queue: q, Signals: signals, CodeAddr: bottomCPU, Scope: hwqueue.FenceSystem})
	graph.AddEdge(top, h2d)
	graph.AddEdge(h2d, left)
	graph.AddEdge(h2d, right)
	graph.AddEdge(left, d2h)
	graph.AddEdge(right, d2h)
	graph.AddEdge(d2h, bottom)

	return graph, func() bool { return value[0] == 8 && value[1] == 8 }
}
