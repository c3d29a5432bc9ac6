package optimizer

import (
	"sort"

	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/plan"
	"github.com/go-sif/parfor/program"
)

// rewriteDataColocation picks the partitioned input which is read row- or column-wise by the
// iteration variable and has the most nonzeros, so that tasks are scheduled on the node
// holding their partition. It returns the name of that input, or "none".
func (o *Optimizer) rewriteDataColocation(s scope) string {
	if s.loop.Config.DataPartitioner != parfor.PartitionerDistributed || s.root.ExecType() != parfor.ExecRemote {
		return "none"
	}
	cand := colocationCandidates(s.root, s.loop.Predicate.Var)
	names := make([]string, 0, len(cand))
	for name := range cand {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	var maxNNZ int64 = -1
	for _, name := range names {
		mo, ok := s.vars.Matrix(name)
		if !ok {
			continue
		}
		if mo.NonZeros > maxNNZ {
			maxNNZ = mo.NonZeros
			best = name
		}
	}
	s.loop.Config.ColocatedMatrix = best
	if best == "" {
		return "none"
	}
	return best
}

// colocationCandidates collects the matrices read by local, partitioned indexing operators
// whose first row (row-wise) or first column (column-wise) is the iteration variable
func colocationCandidates(root *plan.Node, iterVar string) map[string]bool {
	res := make(map[string]bool)
	root.Walk(func(n *plan.Node) bool {
		if !n.IsOperator(string(program.OpIndexing)) || n.ExecType() != parfor.ExecLocal {
			return true
		}
		h := n.Hop()
		if h.Matrix() == nil {
			return true
		}
		rl, _, cl, _ := h.IndexBounds()
		var access *program.Hop
		switch n.Operator.DataPartitionFormat {
		case parfor.FormatRowWise:
			access = rl
		case parfor.FormatColumnWise:
			access = cl
		}
		if access.RefersTo(iterVar) {
			res[h.Matrix().Name] = true
		}
		return true
	})
	return res
}

// rewriteSetPartitionReplicationFactor raises the replication of partitioned inputs if they
// are reread by nested parallel loops
func (o *Optimizer) rewriteSetPartitionReplicationFactor(s scope) int {
	replication := parfor.DefaultReplicationFactor
	if s.root.ExecType() == parfor.ExecRemote &&
		s.loop.Config.DataPartitioner == parfor.PartitionerDistributed &&
		s.root.HasNestedParallelism() && s.root.HasNestedPartitionReads() {
		replication = s.budget.RemoteNodes
		if replication > MaxReplicationFactorPartitioning {
			replication = MaxReplicationFactorPartitioning
		}
		if replication < parfor.DefaultReplicationFactor {
			replication = parfor.DefaultReplicationFactor
		}
	}
	s.loop.Config.PartitionReplication = replication
	return replication
}

// rewriteSetExportReplicationFactor raises the replication of exported inputs of a remote
// loop, since every worker reads them once
func (o *Optimizer) rewriteSetExportReplicationFactor(s scope) int {
	replication := parfor.DefaultReplicationFactor
	if s.root.ExecType() == parfor.ExecRemote {
		r := minInt64(minInt64(s.n, int64(s.budget.RemoteNodes)), MaxReplicationFactorExport)
		if r > int64(replication) {
			replication = int(r)
		}
	}
	s.loop.Config.ExportReplication = replication
	return replication
}
