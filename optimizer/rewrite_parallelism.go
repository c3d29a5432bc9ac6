package optimizer

import (
	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/errors"
	"github.com/go-sif/parfor/logging"
	"github.com/go-sif/parfor/plan"
)

// rewriteSetDegreeOfParallelism assigns the degree of parallelism of the root loop within
// the budget of its placement, and distributes the remaining parallelism over nested loops
func (o *Optimizer) rewriteSetDegreeOfParallelism(s scope, m float64, nested bool) {
	if s.root.ExecType() != parfor.ExecRemote {
		kMax := s.budget.LocalMaxParallelismMix
		if s.root.IsLocalOnly() {
			kMax = s.budget.LocalMaxParallelism
		}
		kMax = maxParallelismFor(kMax, s.budget.LocalMemory, m)
		k := int(minInt64(s.n, int64(kMax)))
		if k < 1 {
			k = 1
		}
		setDegreeOfParallelism(s.root, k)
		assignRemainingParallelism(s.root, ceilDiv(kMax-k+1, k))
		commitRoot(s, k)
		return
	}

	// one outer iteration per node, fewer if the split left fewer outer iterations
	k := int(minInt64(s.n, int64(s.budget.RemoteNodes)))
	if !nested {
		k = int(minInt64(minInt64(s.n, int64(s.budget.RemoteSlots)), int64(s.budget.RemoteMaxParallelism)))
	}
	if k < 1 {
		k = 1
	}
	setDegreeOfParallelism(s.root, k)
	kMax := maxParallelismFor(s.budget.RemoteMaxParallelism/k, s.budget.RemoteMemory, m)
	assignRemainingParallelism(s.root, kMax)
	commitRoot(s, k)
}

// commitRoot restores the decisions of the root loop, which may reappear below a recursive
// call and be serialized there
func commitRoot(s scope, k int) {
	setDegreeOfParallelism(s.root, k)
	s.loop.Config.ExecMode = s.root.ExecType()
}

// assignRemainingParallelism distributes par workers over the parfor loops below n. Each
// loop takes as many as it has iterations, and passes on what is left per worker.
func assignRemainingParallelism(n *plan.Node, par int) {
	for _, c := range n.Children() {
		switch {
		case par == 1:
			c.SetSerial()
		case c.Kind() == parfor.ParForNode:
			k := int(minInt64(c.NumIterations(), int64(par)))
			if k < 1 {
				k = 1
			}
			setDegreeOfParallelism(c, k)
			assignRemainingParallelism(c, ceilDiv(par-k+1, k))
		default:
			assignRemainingParallelism(c, par)
		}
	}
}

func setDegreeOfParallelism(n *plan.Node, k int) {
	n.SetK(k)
	if pf, ok := n.ParFor(); ok {
		pf.Config.DegreeOfParallelism = k
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// rewriteSetTaskPartitioner selects how the iterations of the root loop are sliced into tasks
func (o *Optimizer) rewriteSetTaskPartitioner(s scope, nested, flagLIX bool) string {
	var tp parfor.TaskPartitionerKind
	switch {
	case nested:
		tp = parfor.TaskStatic
		setTaskPartitioner(s.root.Children()[0], parfor.TaskFactoring)
	case flagLIX:
		tp = parfor.TaskFactoringMaxChunk
		maxc := s.root.MaxTaskSize(s.n)
		s.loop.Config.TaskSize = maxc
		s.root.Loop.TaskSize = maxc
		s.loop.Config.WorkerReuse = false
	case s.n/4 >= int64(s.root.K()):
		// avoids imbalance from rounding up small tasks
		tp = parfor.TaskFactoring
	default:
		tp = parfor.TaskNaive
	}
	setTaskPartitioner(s.root, tp)
	return string(tp)
}

func setTaskPartitioner(n *plan.Node, tp parfor.TaskPartitionerKind) {
	pf, ok := n.ParFor()
	if !ok {
		logging.Warnf("RULEBASED OPT: %v", errors.UnsupportedNodeError{
			NodeID: n.ID(), Kind: string(n.Kind()), Operation: "task partitioner " + string(tp)})
		return
	}
	pf.Config.TaskPartitioner = tp
	n.Loop.TaskPartitioner = tp
}

// rewriteSetRecompileMemoryBudget splits the local memory budget evenly between all
// concurrent workers of a local loop, so runtime recompilation never exceeds it
func (o *Optimizer) rewriteSetRecompileMemoryBudget(s scope) float64 {
	if s.root.ExecType() == parfor.ExecRemote {
		return 0
	}
	mem := s.budget.LocalMemory / float64(s.root.TotalK())
	s.loop.Config.RecompileMemoryBudget = mem
	return mem
}
