package optimizer

import (
	"math"

	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/logging"
	"github.com/go-sif/parfor/plan"
)

// rewriteSetExecutionStrategy places the loop LOCAL or REMOTE, given its memory estimate as
// compiled (m) and as if every operator were forced local (m2). It returns true iff the body
// must be recompiled with local operators to run remotely.
func (o *Optimizer) rewriteSetExecutionStrategy(s scope, m, m2 float64, flagLIX bool) bool {
	lk, lm := s.budget.LocalParallelism, s.budget.LocalMemory
	rk, rm := s.budget.RemoteSlots, s.budget.RemoteMemory
	localOnly := s.root.IsLocalOnly()
	cpOnlyPossible := o.isCPOnlyPossible(s.root, rm)

	et := parfor.ExecLocal
	if s.budget.ClusterActive() && ((localOnly && m <= rm) || (cpOnlyPossible && m2 <= rm)) {
		cpk := lk
		if m > 0 && math.Floor(lm/m) < float64(cpk) {
			cpk = int(math.Floor(lm / m))
		}
		large := s.n >= ProblemSizeThresholdRemote || s.nmax >= 10*ProblemSizeThresholdRemote
		switch {
		case cpk < lk && int64(cpk) < s.n && cpk < rk:
			// local parallelism is memory-starved
			et = parfor.ExecRemote
		case lk < rk && int64(lk) < s.n && large:
			et = parfor.ExecRemote
		case !localOnly && cpOnlyPossible:
			// fewer distributed jobs once every operator runs inside a remote worker
			et = parfor.ExecRemote
		case flagLIX:
			et = parfor.ExecRemote
		case s.loop.Config.DataPartitioner == parfor.PartitionerDistributed:
			et = parfor.ExecRemote
		}
	}
	s.root.SetExecType(et)
	s.loop.Config.ExecMode = et
	o.opts.Metrics.LoopPlaced(string(et))
	logging.Debugf("RULEBASED OPT: exec strategy local_only=%t cp_only_possible=%t placement=%s",
		localOnly, cpOnlyPossible, et)
	return et == parfor.ExecRemote && !localOnly
}

// isCPOnlyPossible determines whether every operator within the subtree of n could be placed
// locally inside a worker with memory mem. Remote operators qualify unless their remote
// placement was forced.
func (o *Optimizer) isCPOnlyPossible(n *plan.Node, mem float64) bool {
	ok := n.ExecType() == parfor.ExecLocal
	if n.IsLeaf() && n.ExecType() == parfor.ExecRemote && n.Hop() != nil &&
		n.Hop().ForcedExecType != parfor.ExecRemote {
		ok = o.estimator.LeafEstimate(parfor.MemoryUsage, n, parfor.ExecLocal) <= mem
	}
	for _, c := range n.Children() {
		if !ok {
			break
		}
		ok = o.isCPOnlyPossible(c, mem)
	}
	return ok
}

// rewriteSetOperationsExecType forces every operator of the loop body to local placement and
// recompiles the whole body, returning the number of operators which changed placement
func (o *Optimizer) rewriteSetOperationsExecType(s scope) (int, error) {
	count := 0
	s.root.Walk(func(n *plan.Node) bool {
		if n.Kind() == parfor.OperatorNode && n.ExecType() != parfor.ExecLocal {
			n.SetExecType(parfor.ExecLocal)
			count++
		}
		return true
	})
	if count <= 0 {
		logging.Warnf("RULEBASED OPT: forced local placement of operations, but no operation required it")
	}
	if err := s.rec.RecompileForced(s.loop.Body, parfor.ExecLocal); err != nil {
		return count, err
	}
	return count, nil
}
