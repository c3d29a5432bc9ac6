package optimizer

import (
	"math"
	"strconv"

	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/plan"
	"github.com/go-sif/parfor/program"
)

func boolResult(b bool) string {
	return strconv.FormatBool(b)
}

func intResult(i int) string {
	return strconv.Itoa(i)
}

// rewriteSetDataPartitioner enables data partitioning if a read-only input of the loop is
// read by remote indexing operators, one row, column or cell per iteration. Those operators
// are forced local and sized for a single partition.
func (o *Optimizer) rewriteSetDataPartitioner(s scope) (parfor.PartitionerKind, error) {
	apply := false
	if o.opts.DistributedPlatform &&
		(s.n >= ProblemSizeThresholdPartitioning || s.nmax >= ProblemSizeThresholdPartitioning) {
		cand := make(map[string]parfor.PartitionFormat)
		for _, name := range program.ReadOnlyParentVars(s.loop, s.vars) {
			dpf := program.AnalyzePartitionFormat(s.loop, name)
			if dpf != parfor.FormatNone && dpf != parfor.FormatBlockWise {
				cand[name] = dpf
			}
		}
		if len(cand) > 0 {
			var err error
			apply, err = o.partitionReads(s, cand)
			if err != nil {
				return parfor.PartitionerNone, err
			}
		}
	}
	kind := parfor.PartitionerNone
	if apply {
		kind = parfor.PartitionerDistributed
	}
	s.loop.Config.DataPartitioner = kind
	s.root.Loop.DataPartitioner = kind
	return kind, nil
}

// partitionReads forces every matching remote indexing operator outside of function calls to
// local placement, returning true iff there was at least one such read
func (o *Optimizer) partitionReads(s scope, cand map[string]parfor.PartitionFormat) (bool, error) {
	reads := make([]*plan.Node, 0)
	s.root.Walk(func(n *plan.Node) bool {
		if n.Kind() == parfor.FuncCallNode {
			return false
		}
		if !n.IsOperator(string(program.OpIndexing)) || n.Hop().Matrix() == nil {
			return true
		}
		// reads partitioned by an earlier pass are kept
		if dpf, ok := cand[n.Hop().Matrix().Name]; ok &&
			(n.ExecType() == parfor.ExecRemote || n.Operator.DataPartitionFormat == dpf) {
			reads = append(reads, n)
		}
		return true
	})
	hosts := make([]*program.BasicBlock, 0)
	seen := make(map[*program.BasicBlock]bool)
	for _, n := range reads {
		name := n.Hop().Matrix().Name
		dpf := cand[name]
		n.SetExecType(parfor.ExecLocal)
		n.Operator.DataPartitionFormat = dpf
		n.Hop().ForcedExecType = parfor.ExecLocal
		n.Hop().MemEstimate = partitionMemEstimate(s.vars, name, dpf)
		if !seen[n.Host()] {
			seen[n.Host()] = true
			hosts = append(hosts, n.Host())
		}
	}
	for _, host := range hosts {
		if err := s.rec.Recompile(host, s.vars); err != nil {
			return false, err
		}
	}
	return len(reads) > 0, nil
}

// partitionMemEstimate is the worst-case (dense) size of a single partition of a matrix
func partitionMemEstimate(vars parfor.Variables, name string, dpf parfor.PartitionFormat) float64 {
	m, ok := vars.Matrix(name)
	if !ok {
		return math.MaxFloat64
	}
	switch dpf {
	case parfor.FormatRowWise:
		return float64(m.Cols) * 8
	case parfor.FormatColumnWise:
		return float64(m.Rows) * 8
	case parfor.FormatCellWise:
		return 8
	default:
		return math.MaxFloat64
	}
}

// resultWrite is a left-indexing operator which qualifies for result partitioning
type resultWrite struct {
	node     *plan.Node
	taskSize int64
}

// rewriteSetResultPartitioning forces remote writes into result variables local, if every
// remote operator of the loop is such a write, each write is aligned with the iteration
// variable, and the loop fits into a remote worker. Each write records the largest task size
// whose partial result still fits into a remote worker.
func (o *Optimizer) rewriteSetResultPartitioning(s scope, m float64) (bool, error) {
	cand := s.root.Operators(parfor.ExecRemote)
	if m >= s.budget.RemoteMemory || len(cand) == 0 {
		return false, nil
	}
	writes := make([]resultWrite, 0, len(cand))
	for _, n := range cand {
		taskSize, ok := o.resultPartitionable(s, n)
		if !ok {
			return false, nil
		}
		writes = append(writes, resultWrite{node: n, taskSize: taskSize})
	}
	for _, w := range writes {
		h := w.node.Hop()
		w.node.Operator.TaskSize = w.taskSize
		w.node.SetExecType(parfor.ExecLocal)
		h.ForcedExecType = parfor.ExecLocal
		if err := s.rec.Recompile(w.node.Host(), s.vars); err != nil {
			return false, err
		}
		h.MemEstimate = s.budget.RemoteMemory - 1
	}
	return true, nil
}

// resultPartitionable determines whether n is a left-indexing write into a result variable
// which can be partitioned across tasks, and the maximum task size for it
func (o *Optimizer) resultPartitionable(s scope, n *plan.Node) (int64, bool) {
	if !n.IsOperator(string(program.OpLeftIndexing)) {
		return 0, false
	}
	h := n.Hop()
	base := h.Matrix()
	if base == nil || !s.loop.IsResultVar(base.Name) {
		return 0, false
	}
	dpf := h.KeyedOn(s.loop.Predicate.Var)
	if dpf == parfor.FormatNone {
		return 0, false
	}
	mo, ok := s.vars.Matrix(base.Name)
	if !ok || mo.NonZeros > 0 {
		return 0, false
	}
	rows, cols := base.Rows, base.Cols
	if rows < 0 || cols < 0 {
		if !mo.DimsKnown() {
			return 0, false
		}
		rows, cols = mo.Rows, mo.Cols
	}
	rm := s.budget.RemoteMemory
	var memTask1, memTaskN float64
	switch dpf {
	case parfor.FormatRowWise:
		memTask1 = float64(cols) * 8
		memTaskN = memTask1
	case parfor.FormatColumnWise:
		memTask1 = float64(rows) * float64(minInt64(sparseRowCapacity, cols)) * 8
		memTaskN = float64(rows) * 8
	default:
		memTask1 = float64(minInt64(sparseRowCapacity, cols)) * 8
		memTaskN = memTask1
	}
	if memTask1 > rm {
		return 0, false
	}
	taskSize := s.n
	if memTaskN > 0 {
		taskSize = int64(rm / memTaskN)
	}
	return taskSize, true
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
