// Package optimizer implements a rule-based optimizer for parallel-for loops. It decides the
// placement, data partitioning, degree of parallelism, task partitioning and result merge of a
// loop by applying a fixed sequence of heuristic rewrites to its plan tree, and commits every
// decision into the executable loops of the program.
package optimizer

import (
	"time"

	"github.com/go-sif/parfor"
	errors "github.com/go-sif/parfor/errors"
	"github.com/go-sif/parfor/internal/stats"
	"github.com/go-sif/parfor/internal/util"
	"github.com/go-sif/parfor/logging"
	"github.com/go-sif/parfor/plan"
	"github.com/go-sif/parfor/program"
	pkgerrors "github.com/pkg/errors"
)

// CostEstimator estimates the cost of plan subtrees. Estimates must be pure and deterministic
// for fixed variable bindings.
type CostEstimator interface {
	// Estimate computes the cost of the subtree rooted at n, assuming every operator is placed
	// at forced unless forced is parfor.ExecUnset
	Estimate(measure parfor.Measure, n *plan.Node, forced parfor.ExecType) float64
	// LeafEstimate computes the cost of the single leaf n
	LeafEstimate(measure parfor.Measure, n *plan.Node, forced parfor.ExecType) float64
}

// Recompiler regenerates the instructions of executable blocks
type Recompiler interface {
	// Recompile regenerates the instructions of b under the current bindings
	Recompile(b *program.BasicBlock, vars parfor.Variables) error
	// RecompileForced forces every operator within blocks to et and regenerates their instructions
	RecompileForced(blocks []program.Block, et parfor.ExecType) error
}

// RecompilerFactory creates the Recompiler for a Program
type RecompilerFactory func(prog *program.Program) Recompiler

// Optimizer is a rule-based parfor optimizer. An Optimizer holds no per-pass state and may be
// reused for any number of sequential passes.
type Optimizer struct {
	infra      parfor.Infrastructure
	estimator  CostEstimator
	recompiler RecompilerFactory
	opts       *Options
}

// New creates an Optimizer
func New(infra parfor.Infrastructure, estimator CostEstimator, recompiler RecompilerFactory, opts ...Option) *Optimizer {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	ensureDefaultOptionsValues(o)
	if recompiler == nil {
		recompiler = func(prog *program.Program) Recompiler {
			return program.NewRecompiler(prog)
		}
	}
	return &Optimizer{infra: infra, estimator: estimator, recompiler: recompiler, opts: o}
}

// Options returns a copy of the Options of this Optimizer
func (o *Optimizer) Options() Options {
	return *o.opts
}

// scope is the read-only context of one optimization pass, handed to every rewrite
type scope struct {
	budget Budget
	tree   *plan.Tree
	root   *plan.Node
	loop   *program.ParForBlock
	vars   parfor.Variables
	rec    Recompiler
	n      int64 // iterations of the root loop
	nmax   int64 // largest number of nested iterations below the root loop
}

// RewriteOutcome describes the evaluation of a single rewrite
type RewriteOutcome struct {
	Name     string
	Result   string
	Duration time.Duration
}

// Report describes the result of one optimization pass
type Report struct {
	RunID             string
	Budget            Budget
	Rewrites          []RewriteOutcome
	FingerprintBefore uint64
	FingerprintAfter  uint64
	Stats             parfor.OptimizerStatistics
}

// NumEvaluatedPlans returns the number of rewrites evaluated during the pass
func (r *Report) NumEvaluatedPlans() int {
	return len(r.Rewrites)
}

// Changed returns true iff the pass modified any decision of the plan tree
func (r *Report) Changed() bool {
	return r.FingerprintBefore != r.FingerprintAfter
}

type step struct {
	name  string
	apply func() (string, error)
}

// Optimize applies every rewrite, in order and exactly once, to the tree of a parfor loop and
// commits the resulting configuration into its executable loops. A fatal error aborts the
// pass; rewrites committed before the failing one are not rolled back.
func (o *Optimizer) Optimize(tree *plan.Tree, vars parfor.Variables) (*Report, error) {
	rs, err := stats.CreateRunStatistics()
	if err != nil {
		return nil, err
	}
	rs.Start()
	defer rs.Finish()
	report := &Report{RunID: rs.GetRunID(), Stats: rs, FingerprintBefore: tree.Fingerprint()}
	report.FingerprintAfter = report.FingerprintBefore

	root := tree.Root()
	pf, ok := root.ParFor()
	if !ok {
		logging.Warnf("RULEBASED OPT: %v", errors.UnsupportedNodeError{NodeID: root.ID(), Kind: string(root.Kind()), Operation: "optimize"})
		return report, nil
	}
	if root.IsLeaf() {
		logging.Debugf("RULEBASED OPT: empty parfor body, nothing to optimize")
		return report, nil
	}

	s := scope{
		budget: NewBudget(o.infra, o.opts),
		tree:   tree,
		root:   root,
		loop:   pf,
		vars:   vars,
		rec:    o.recompiler(tree.Program()),
		n:      root.NumIterations(),
		nmax:   root.MaxProblemSize(),
	}
	if s.vars == nil {
		s.vars = parfor.VariableMap{}
	}
	report.Budget = s.budget
	logging.Debugf("RULEBASED OPT: optimize with local_max_mem=%s and remote_max_mem=%s",
		util.FormatBytes(s.budget.LocalMemory), util.FormatBytes(s.budget.RemoteMemory))
	if !s.budget.ClusterActive() {
		logging.Warnf("RULEBASED OPT: optimize for inactive cluster (num_nodes=%d, num_slots=%d)",
			s.budget.RemoteNodes, s.budget.RemoteSlots)
	}

	// memory estimates: as compiled (m) and as if every operator were local (m2)
	root.SetSerial()
	m := o.memory(root)
	logging.Debugf("RULEBASED OPT: estimated mem (serial exec) M=%s", util.FormatBytes(m))
	var m2 float64
	var flagLIX, recompile, nested bool

	// rewrites 4 to 8 only apply to remote loops
	remoteOnly := func(f func() (string, error)) func() (string, error) {
		return func() (string, error) {
			if root.ExecType() != parfor.ExecRemote {
				return "skipped (" + string(root.ExecType()) + ")", nil
			}
			return f()
		}
	}
	steps := []step{
		{"set data partitioner", func() (string, error) {
			kind, err := o.rewriteSetDataPartitioner(s)
			m = o.memory(root)
			return string(kind), err
		}},
		{"set result partitioning", func() (string, error) {
			var err error
			flagLIX, err = o.rewriteSetResultPartitioning(s, m)
			m = o.memory(root)
			m2 = o.estimator.Estimate(parfor.MemoryUsage, root, parfor.ExecLocal)
			logging.Debugf("RULEBASED OPT: estimated new mem (serial exec) M=%s, (serial exec, all local) M2=%s",
				util.FormatBytes(m), util.FormatBytes(m2))
			return boolResult(flagLIX), err
		}},
		{"set execution strategy", func() (string, error) {
			recompile = o.rewriteSetExecutionStrategy(s, m, m2, flagLIX)
			return string(pf.Config.ExecMode) + " (recompile=" + boolResult(recompile) + ")", nil
		}},
		{"set operations exec type", remoteOnly(func() (string, error) {
			if !recompile {
				return "skipped (no recompile)", nil
			}
			count, err := o.rewriteSetOperationsExecType(s)
			m = o.memory(root)
			return intResult(count), err
		})},
		{"enable data colocation", remoteOnly(func() (string, error) {
			return o.rewriteDataColocation(s), nil
		})},
		{"set partition replication factor", remoteOnly(func() (string, error) {
			return intResult(o.rewriteSetPartitionReplicationFactor(s)), nil
		})},
		{"set export replication factor", remoteOnly(func() (string, error) {
			return intResult(o.rewriteSetExportReplicationFactor(s)), nil
		})},
		{"enable nested parallelism", remoteOnly(func() (string, error) {
			var err error
			nested, err = o.rewriteNestedParallelism(s, m, flagLIX)
			if nested {
				s.n = root.NumIterations()
			}
			return boolResult(nested), err
		})},
		{"set degree of parallelism", func() (string, error) {
			o.rewriteSetDegreeOfParallelism(s, m, nested)
			return intResult(root.K()), nil
		}},
		{"set task partitioner", func() (string, error) {
			// result partitioning only applies to remote loops
			return o.rewriteSetTaskPartitioner(s, nested, flagLIX && root.ExecType() == parfor.ExecRemote), nil
		}},
		{"set result merge", func() (string, error) {
			return string(o.rewriteSetResultMerge(s, root, true)), nil
		}},
		{"set recompile memory budget", func() (string, error) {
			return util.FormatBytes(o.rewriteSetRecompileMemoryBudget(s)), nil
		}},
		{"remove recursive parfor", func() (string, error) {
			return o.rewriteRemoveRecursiveParFor(s)
		}},
		{"remove unnecessary parfor", func() (string, error) {
			count, err := o.rewriteRemoveUnnecessaryParFor(s)
			return intResult(count), err
		}},
	}

	for _, st := range steps {
		rs.StartRewrite()
		var result string
		err := util.SafeRewrite(st.name, func() error {
			var err error
			result, err = st.apply()
			return err
		})()
		d := rs.EndRewrite(st.name)
		o.opts.Metrics.RewriteEvaluated(st.name)
		report.Rewrites = append(report.Rewrites, RewriteOutcome{Name: st.name, Result: result, Duration: d})
		if err != nil {
			report.FingerprintAfter = tree.Fingerprint()
			return report, pkgerrors.Wrapf(err, "rewrite %q", st.name)
		}
		logging.Debugf("RULEBASED OPT: rewrite '%s' - result=%s", st.name, result)
	}
	report.FingerprintAfter = tree.Fingerprint()
	if logging.Enabled(logging.TraceLevel) {
		logging.Tracef("RULEBASED OPT: optimized plan\n%s", tree.Explain())
	}
	return report, nil
}

// memory estimates the memory of the subtree rooted at n, as compiled
func (o *Optimizer) memory(n *plan.Node) float64 {
	return o.estimator.Estimate(parfor.MemoryUsage, n, parfor.ExecUnset)
}
