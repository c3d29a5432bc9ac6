package optimizer

import (
	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/logging"
	"github.com/go-sif/parfor/program"
)

// rewriteNestedParallelism splits a remote loop into an outer loop with one chunk of
// iterations per cluster node and a local inner loop over each chunk, so every node runs
// its chunk with full local parallelism. The split is computed completely before either the
// program or the plan tree is modified.
func (o *Optimizer) rewriteNestedParallelism(s scope, m float64, flagLIX bool) (bool, error) {
	rnk := int64(s.budget.RemoteNodes)
	if !o.opts.NestedParallelism || flagLIX || rnk < 1 || s.n < rnk ||
		s.root.HasNestedParallelism() ||
		m*float64(s.budget.LocalMaxParallelism) > s.budget.RemoteMemory {
		return false, nil
	}
	pred := s.loop.Predicate
	incr, ok := pred.Incr.Resolve(s.vars)
	if !ok {
		logging.Debugf("RULEBASED OPT: nested parallelism skipped, unknown increment of %s", pred.Var)
		return false, nil
	}
	if incr == 0 {
		incr = 1
	}

	// prepare
	outIncr := (s.n + rnk - 1) / rnk
	limit := pred.To
	inner := program.NewParForBlock(program.IterablePredicate{
		Var:   pred.Var,
		From:  program.Ref(NestedIndexVar),
		To:    program.Operand{Var: NestedIndexVar, Value: (outIncr - 1) * incr},
		Incr:  pred.Incr,
		Limit: &limit,
	}, append([]string(nil), s.loop.ResultVars...), s.loop.Body...)
	inner.Config = s.loop.Config
	inner.Config.ExecMode = parfor.ExecLocal
	outer := program.IterablePredicate{
		Var:  NestedIndexVar,
		From: pred.From,
		To:   pred.To,
		Incr: program.Lit(outIncr * incr),
	}
	nest := s.tree.NewLoopNode(inner, outIncr)

	// commit
	s.loop.Predicate = outer
	s.loop.Body = []program.Block{inner}
	s.loop.Config.ExecMode = parfor.ExecRemote
	nest.SetChildren(s.root.Children())
	s.root.SetChildren(nil)
	s.root.AddChild(nest)
	s.root.Loop.NumIterations = (s.n + outIncr - 1) / outIncr
	logging.Debugf("RULEBASED OPT: nested parallelism with %d outer and %d inner iterations",
		s.root.Loop.NumIterations, outIncr)
	return true, nil
}
