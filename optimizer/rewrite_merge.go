package optimizer

import (
	"math"

	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/plan"
	"github.com/go-sif/parfor/program"
)

// rewriteSetResultMerge selects how the partial results of the parfor loop n are merged, and
// recurses into the parfor loops below it. inLocal is true iff no enclosing loop runs remotely.
func (o *Optimizer) rewriteSetResultMerge(s scope, n *plan.Node, inLocal bool) parfor.ResultMergeKind {
	pf, ok := n.ParFor()
	if !ok {
		return ""
	}
	flagRemote := n.ExecType() == parfor.ExecRemote
	flagLarge := flagRemote && o.hasLargeTotalResults(s, n, pf)
	flagRemoteLIX := o.hasRemoteResultWrite(s, n, pf)
	flagCellWoCompare := isCellFormatWithoutCompare(s.vars, pf.ResultVars)
	flagOnlyInMem := o.hasOnlyInMemoryResults(s, n, pf, inLocal)

	var kind parfor.ResultMergeKind
	switch {
	case flagRemote && flagLarge:
		kind = parfor.MergeRemote
	case flagOnlyInMem:
		kind = parfor.MergeLocalInMemory
	case (flagRemote || flagRemoteLIX) && !(flagCellWoCompare && o.opts.AllowCopyCellFiles):
		kind = parfor.MergeRemote
	default:
		kind = parfor.MergeLocalAutomatic
	}
	pf.Config.ResultMerge = kind
	n.Loop.ResultMerge = kind

	o.setNestedResultMerge(s, n.Children(), inLocal && !flagRemote)
	return kind
}

// setNestedResultMerge sets the result merge of the outermost parfor loops among nodes. The
// root loop reappearing below a recursive call keeps its own decision.
func (o *Optimizer) setNestedResultMerge(s scope, nodes []*plan.Node, inLocal bool) {
	for _, c := range nodes {
		if c.Block() == s.root.Block() {
			continue
		}
		if c.Kind() == parfor.ParForNode {
			o.rewriteSetResultMerge(s, c, inLocal)
			if c.ExecType() == parfor.ExecRemote {
				inLocal = false
			}
			continue
		}
		o.setNestedResultMerge(s, c.Children(), inLocal)
	}
}

// hasLargeTotalResults estimates the size of all partial results of n, which is one full
// result per task if results have to be compared against existing content
func (o *Optimizer) hasLargeTotalResults(s scope, n *plan.Node, pf *program.ParForBlock) bool {
	tasks := float64(estimateNumTasks(pf.Config.TaskPartitioner, n.NumIterations(), n.K()))
	total := 0.0
	for _, name := range pf.ResultVars {
		mo, ok := s.vars.Matrix(name)
		if !ok {
			continue
		}
		size := parfor.EstimateDenseSize(mo.Rows, mo.Cols)
		if mo.NonZeros > 0 {
			total += tasks * size
		} else {
			total += size
		}
	}
	return total >= s.budget.LocalMemory
}

// estimateNumTasks estimates the number of tasks a task partitioner creates for n iterations
// and k workers
func estimateNumTasks(tp parfor.TaskPartitionerKind, n int64, k int) int64 {
	if k < 1 {
		k = 1
	}
	var res int64
	switch tp {
	case parfor.TaskStatic:
		res = n / int64(k)
	case parfor.TaskFactoring, parfor.TaskFactoringMaxChunk:
		if n > 0 {
			res = int64(k) * int64(math.Log2(float64(n)/float64(k)))
		}
	default:
		res = n
	}
	if res < 1 {
		res = 1
	}
	return res
}

// resultWrites returns the left-indexing operators below n which write into a result
// variable of pf
func resultWrites(n *plan.Node, pf *program.ParForBlock) []*plan.Node {
	res := make([]*plan.Node, 0)
	n.Walk(func(c *plan.Node) bool {
		if c.IsOperator(string(program.OpLeftIndexing)) && c.Hop().Matrix() != nil &&
			pf.IsResultVar(c.Hop().Matrix().Name) {
			res = append(res, c)
		}
		return true
	})
	return res
}

// hasRemoteResultWrite returns true iff a remote left-indexing operator writes into a result
// variable which does not fit into a remote worker
func (o *Optimizer) hasRemoteResultWrite(s scope, n *plan.Node, pf *program.ParForBlock) bool {
	for _, w := range resultWrites(n, pf) {
		if w.ExecType() != parfor.ExecRemote {
			continue
		}
		mo, ok := s.vars.Matrix(w.Hop().Matrix().Name)
		if !ok || !o.isInMemoryResultMerge(mo.Rows, mo.Cols, s.budget.RemoteMemory) {
			return true
		}
	}
	return false
}

// hasOnlyInMemoryResults returns true iff every bound result variable written below n can
// be merged in memory
func (o *Optimizer) hasOnlyInMemoryResults(s scope, n *plan.Node, pf *program.ParForBlock, inLocal bool) bool {
	mem := s.budget.MemoryFor(inLocal)
	for _, w := range resultWrites(n, pf) {
		mo, ok := s.vars.Matrix(w.Hop().Matrix().Name)
		if !ok {
			continue
		}
		if !o.isInMemoryResultMerge(mo.Rows, mo.Cols, mem) {
			return false
		}
	}
	return true
}

// isInMemoryResultMerge determines whether a rows x cols result can be merged within mem.
// A serial merge holds two outputs, one input and one compare block at a time.
func (o *Optimizer) isInMemoryResultMerge(rows, cols int64, mem float64) bool {
	if rows < 0 || cols < 0 {
		return false
	}
	if o.opts.ParallelResultMerge {
		return float64(rows)*float64(cols) < float64(o.opts.CPThreshold)*float64(o.opts.CPThreshold)
	}
	return parfor.EstimateDenseSize(rows, cols) < mem/4
}

// isCellFormatWithoutCompare returns true iff every result variable is an empty matrix
// stored in a cell format, so partial results can be merged by copying their files
func isCellFormatWithoutCompare(vars parfor.Variables, resultVars []string) bool {
	for _, name := range resultVars {
		mo, ok := vars.Matrix(name)
		if !ok || mo.Format == parfor.BinaryBlockFormat || mo.NonZeros != 0 {
			return false
		}
	}
	return true
}
