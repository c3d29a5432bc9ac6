package optimizer_test

import (
	"testing"

	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/cluster"
	"github.com/go-sif/parfor/cost"
	"github.com/go-sif/parfor/internal/metrics"
	"github.com/go-sif/parfor/optimizer"
	"github.com/go-sif/parfor/plan"
	"github.com/go-sif/parfor/program"
	parfortest "github.com/go-sif/parfor/testing"
	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// flatLoop creates parfor(i in 1:n) { R[i,] = sum(A[i,]) }
func flatLoop(n int64) (*program.Program, *program.ParForBlock, parfor.VariableMap) {
	sum := program.NewOperator("sum", parfortest.RowRead("A", "i", 1000)).Sized(1, 1, 8000)
	write := parfortest.RowWrite("R", "i", 1000, sum).Sized(1000, 1000, 8e6)
	root := program.NewParForBlock(parfortest.Loop("i", n), []string{"R"}, program.NewBasicBlock(write))
	vars := parfor.VariableMap{
		"A": &parfor.Matrix{Rows: 1000, Cols: 1000, NonZeros: 1e6, Format: parfor.BinaryBlockFormat},
		"R": &parfor.Matrix{Rows: 1000, Cols: 1000, NonZeros: 0, Format: parfor.BinaryBlockFormat},
	}
	return program.NewProgram(root), root, vars
}

// partitionedLoop creates parfor(i in 1:n) { s = sum(A[i,]) } over a matrix with 10^9 rows,
// whose row reads are compiled remote
func partitionedLoop(n int64) (*program.Program, *program.ParForBlock, parfor.VariableMap) {
	read := parfortest.RowRead("A", "i", 1000).Placed(parfor.ExecRemote)
	sum := program.NewOperator("sum", read).Sized(1, 1, 1000).AssignedTo("s")
	root := program.NewParForBlock(parfortest.Loop("i", n), nil, program.NewBasicBlock(sum))
	vars := parfor.VariableMap{
		"A": &parfor.Matrix{Rows: 1e9, Cols: 1000, NonZeros: 1e12, Format: parfor.BinaryBlockFormat},
	}
	return program.NewProgram(root), root, vars
}

// 16 local threads, 4 nodes with 8 worker slots in total
func testCluster() *cluster.Options {
	return parfortest.Cluster(16, 4*parfortest.GiB, 4, 8, 2*parfortest.GiB)
}

func optimize(t *testing.T, prog *program.Program, root *program.ParForBlock, vars parfor.Variables, opts ...optimizer.Option) (*plan.Tree, *optimizer.Report) {
	tree, report, err := parfortest.LocalOptimize(prog, prog, root, vars, testCluster(), opts...)
	require.NoError(t, err)
	return tree, report
}

func TestFlatLocalLoop(t *testing.T) {
	prog, root, vars := flatLoop(1000)
	tree, report := optimize(t, prog, root, vars)

	require.Equal(t, 14, report.NumEvaluatedPlans())
	require.Equal(t, 14, report.Stats.GetNumEvaluatedPlans())
	require.NotEmpty(t, report.RunID)
	require.True(t, report.Changed())
	require.Equal(t, "skipped (LOCAL)", report.Rewrites[3].Result)

	want := parfor.DefaultLoopConfig()
	want.ExecMode = parfor.ExecLocal
	want.DegreeOfParallelism = 16
	want.TaskPartitioner = parfor.TaskFactoring
	want.ResultMerge = parfor.MergeLocalInMemory
	want.RecompileMemoryBudget = report.Budget.LocalMemory / 16
	if diff := cmp.Diff(want, root.Config); diff != "" {
		t.Errorf("unexpected loop config (-want +got):\n%s", diff)
	}

	rn := tree.Root()
	require.Equal(t, parfor.ParForNode, rn.Kind())
	require.Equal(t, 16, rn.K())
	require.Equal(t, parfor.TaskFactoring, rn.Loop.TaskPartitioner)
	require.Equal(t, parfor.MergeLocalInMemory, rn.Loop.ResultMerge)
	require.Equal(t, program.Block(root), prog.Children()[0])
	require.NoError(t, tree.Validate())
}

func TestFlatLocalLoopIdempotent(t *testing.T) {
	prog, root, vars := flatLoop(1000)
	tree, _ := optimize(t, prog, root, vars)
	first := root.Config
	fingerprint := tree.Fingerprint()

	o := optimizer.New(testCluster(), cost.NewEstimator(), nil)
	report, err := o.Optimize(tree, vars)
	require.NoError(t, err)
	require.False(t, report.Changed())
	require.Equal(t, fingerprint, tree.Fingerprint())
	if diff := cmp.Diff(first, root.Config); diff != "" {
		t.Errorf("second pass changed the loop config (-first +second):\n%s", diff)
	}
}

func TestFewIterationsUseNaiveTasks(t *testing.T) {
	prog, root, vars := flatLoop(40)
	_, _ = optimize(t, prog, root, vars)
	// 40/4 < 16 workers
	require.Equal(t, 16, root.Config.DegreeOfParallelism)
	require.Equal(t, parfor.TaskNaive, root.Config.TaskPartitioner)
}

func TestPartitionedRemoteLoop(t *testing.T) {
	prog, root, vars := partitionedLoop(1000)
	tree, report := optimize(t, prog, root, vars)

	want := parfor.DefaultLoopConfig()
	want.DataPartitioner = parfor.PartitionerDistributed
	want.ExecMode = parfor.ExecRemote
	want.DegreeOfParallelism = 8
	want.TaskPartitioner = parfor.TaskFactoring
	want.ResultMerge = parfor.MergeLocalInMemory
	want.ExportReplication = 4
	want.ColocatedMatrix = "A"
	if diff := cmp.Diff(want, root.Config); diff != "" {
		t.Errorf("unexpected loop config (-want +got):\n%s", diff)
	}
	require.Equal(t, "skipped (no recompile)", report.Rewrites[3].Result)
	require.Equal(t, "A", report.Rewrites[4].Result)

	rn := tree.Root()
	require.Equal(t, parfor.PartitionerDistributed, rn.Loop.DataPartitioner)
	read := rn.Children()[0]
	require.True(t, read.IsOperator("rix"))
	require.Equal(t, parfor.ExecLocal, read.ExecType())
	require.Equal(t, parfor.FormatRowWise, read.Operator.DataPartitionFormat)
	require.Equal(t, parfor.ExecLocal, read.Hop().ForcedExecType)
	// one row of 1000 columns
	require.Equal(t, 8000.0, read.Hop().MemEstimate)

	bb := root.Body[0].(*program.BasicBlock)
	require.NotEmpty(t, bb.Instructions)
	for _, inst := range bb.Instructions {
		require.Equal(t, parfor.ExecLocal, inst.ExecType)
	}

	o := optimizer.New(testCluster(), cost.NewEstimator(), nil)
	second, err := o.Optimize(tree, vars)
	require.NoError(t, err)
	require.False(t, second.Changed())
	require.Equal(t, parfor.PartitionerDistributed, root.Config.DataPartitioner)
}

func TestNoPartitioningWithoutDistributedPlatform(t *testing.T) {
	prog, root, vars := partitionedLoop(1000)
	tree, report := optimize(t, prog, root, vars, optimizer.WithDistributedPlatform(false))
	require.Equal(t, parfor.PartitionerNone, root.Config.DataPartitioner)
	read := tree.Root().Children()[0]
	require.Equal(t, parfor.FormatNone, read.Operator.DataPartitionFormat)

	// the remote read fits into a remote worker, so the whole body runs there
	require.Equal(t, parfor.ExecRemote, root.Config.ExecMode)
	require.Equal(t, "1", report.Rewrites[3].Result)
	require.Equal(t, parfor.ExecLocal, read.ExecType())
	require.Equal(t, parfor.ExecLocal, read.Hop().ForcedExecType)
	require.Equal(t, "none", report.Rewrites[4].Result)
}

func TestUnnecessaryParForIsDowngraded(t *testing.T) {
	prog, root, vars := flatLoop(1)
	m := metrics.New()
	tree, report := optimize(t, prog, root, vars, optimizer.WithMetrics(m))

	require.Equal(t, "1", report.Rewrites[13].Result)
	fb, ok := prog.Children()[0].(*program.ForBlock)
	require.True(t, ok)
	require.Equal(t, root.Predicate, fb.Predicate)
	require.Equal(t, root.Body, fb.Body)
	require.Same(t, root.Source(), fb.Source())

	rn := tree.Root()
	require.Equal(t, parfor.ForNode, rn.Kind())
	require.Equal(t, program.Block(fb), rn.Block())
	require.Equal(t, 1, rn.K())
	require.NoError(t, tree.Validate())

	require.Equal(t, 1.0, testutil.ToFloat64(m.Downgrades.WithLabelValues("unnecessary")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Placements.WithLabelValues("LOCAL")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Rewrites.WithLabelValues("remove unnecessary parfor")))

	// a downgraded loop is no longer optimized
	fingerprint := tree.Fingerprint()
	o := optimizer.New(testCluster(), cost.NewEstimator(), nil,
		optimizer.WithMetrics(m))
	second, err := o.Optimize(tree, vars)
	require.NoError(t, err)
	require.Equal(t, 0, second.NumEvaluatedPlans())
	require.False(t, second.Changed())
	require.Equal(t, fingerprint, tree.Fingerprint())
	require.Equal(t, 1.0, testutil.ToFloat64(m.Downgrades.WithLabelValues("unnecessary")))
}

func TestEmptyLoopIsNotOptimized(t *testing.T) {
	root := program.NewParForBlock(parfortest.Loop("i", 100), nil)
	prog := program.NewProgram(root)
	_, report := optimize(t, prog, root, nil)
	require.Equal(t, 0, report.NumEvaluatedPlans())
	require.Equal(t, parfor.DefaultLoopConfig(), root.Config)
}

func TestNestedParallelism(t *testing.T) {
	prog, root, vars := partitionedLoop(1000)
	tree, report := optimize(t, prog, root, vars, optimizer.WithNestedParallelism(true))
	require.Equal(t, "true", report.Rewrites[7].Result)

	// outer loop: one chunk of 250 iterations per node
	require.Equal(t, optimizer.NestedIndexVar, root.Predicate.Var)
	require.Equal(t, program.Lit(250), root.Predicate.Incr)
	require.Equal(t, parfor.ExecRemote, root.Config.ExecMode)
	require.Equal(t, 4, root.Config.DegreeOfParallelism)
	require.Equal(t, parfor.TaskStatic, root.Config.TaskPartitioner)
	require.Len(t, root.Body, 1)

	inner, ok := root.Body[0].(*program.ParForBlock)
	require.True(t, ok)
	require.Equal(t, "i", inner.Predicate.Var)
	require.Equal(t, parfor.ExecLocal, inner.Config.ExecMode)
	require.Equal(t, 2, inner.Config.DegreeOfParallelism)
	require.Equal(t, parfor.TaskFactoring, inner.Config.TaskPartitioner)
	for _, first := range []int64{1, 251, 751} {
		n, ok := inner.Predicate.NumIterations(parfor.VariableMap{optimizer.NestedIndexVar: first})
		require.True(t, ok)
		require.Equal(t, int64(250), n)
	}

	rn := tree.Root()
	require.Equal(t, int64(4), rn.NumIterations())
	require.Len(t, rn.Children(), 1)
	nest := rn.Children()[0]
	require.Equal(t, program.Block(inner), nest.Block())
	require.Equal(t, int64(250), nest.NumIterations())
	require.Equal(t, 8, rn.TotalK())
	require.NoError(t, tree.Validate())
}

func TestNestedParallelismRequiresEnoughIterations(t *testing.T) {
	prog, root, vars := partitionedLoop(3)
	_, report := optimize(t, prog, root, vars, optimizer.WithNestedParallelism(true))
	require.Equal(t, "false", report.Rewrites[7].Result)
	require.Equal(t, "i", root.Predicate.Var)
}

func TestNestedParallelismFewOuterIterations(t *testing.T) {
	prog, root, vars := partitionedLoop(5)
	tree, report := optimize(t, prog, root, vars, optimizer.WithNestedParallelism(true))
	require.Equal(t, "true", report.Rewrites[7].Result)

	// chunks of 2 iterations leave 3 outer iterations for 4 nodes
	require.Equal(t, program.Lit(2), root.Predicate.Incr)
	require.Equal(t, int64(3), tree.Root().NumIterations())
	require.Equal(t, "3", report.Rewrites[8].Result)
	require.Equal(t, 3, root.Config.DegreeOfParallelism)
	require.LessOrEqual(t, int64(tree.Root().K()), tree.Root().NumIterations())
	require.NoError(t, tree.Validate())
}

// recursiveProgram creates
//
//	f() { parfor(i in 1:100) { x = 1 + 1; f() } }
//
// called once from the top level, and returns the program, f and its parfor loop
func recursiveProgram() (*program.Program, *program.FunctionBlock, *program.ParForBlock, *program.Hop) {
	call := program.NewFunctionCall(program.Func("f"))
	pf := program.NewParForBlock(parfortest.Loop("i", 100), nil,
		program.NewBasicBlock(program.NewOperator("+").Sized(1, 1, 8).AssignedTo("x"), call))
	f := program.NewFunctionBlock(program.Func("f"), pf)
	top := program.NewFunctionCall(program.Func("f"))
	prog := program.NewProgram(program.NewBasicBlock(top))
	prog.AddFunction(f)
	return prog, f, pf, call
}

func TestRecursiveRootIsUnfolded(t *testing.T) {
	prog, f, pf, call := recursiveProgram()
	top := prog.Children()[0].(*program.BasicBlock).Hops()[0]
	m := metrics.New()
	tree, report, err := parfortest.LocalOptimize(prog, f, pf, nil,
		testCluster(), optimizer.WithMetrics(m))
	require.NoError(t, err)
	require.Equal(t, "1", report.Rewrites[12].Result)

	// the root loop stays parallel
	require.Equal(t, program.Block(pf), f.Body[0])
	require.Equal(t, 16, pf.Config.DegreeOfParallelism)
	require.Equal(t, parfor.ExecLocal, pf.Config.ExecMode)
	require.Equal(t, parfor.ParForNode, tree.Root().Kind())

	// only the recursive edge leads to the unfolded copy, whose loop is sequential
	unfolded := program.FunctionKey{Namespace: program.DefaultNamespace, Name: optimizer.FunctionUnfoldPrefix + "f"}
	require.Equal(t, unfolded, call.Function)
	require.Equal(t, program.Func("f"), top.Function)
	clone, ok := prog.Function(unfolded)
	require.True(t, ok)
	_, ok = clone.Body[0].(*program.ForBlock)
	require.True(t, ok)
	require.True(t, prog.IsRecursive(unfolded))
	require.False(t, prog.IsRecursive(program.Func("f")))

	callNode := tree.Root().Children()[1]
	require.Equal(t, parfor.FuncCallNode, callNode.Kind())
	require.Equal(t, unfolded, callNode.Call.Function)
	require.Equal(t, parfor.ForNode, callNode.Children()[0].Kind())
	require.NoError(t, tree.Validate())
	require.Equal(t, 1.0, testutil.ToFloat64(m.Downgrades.WithLabelValues("recursive")))
}

func TestSharedFunctionOnlyRecursivePathDowngraded(t *testing.T) {
	// g() { parfor(j in 1:8) { g() } } and h() { parfor(k in 1:8) { y = 1 + 1 } }
	pg := program.NewParForBlock(parfortest.Loop("j", 8), nil,
		program.NewBasicBlock(program.NewOperator("+").Sized(1, 1, 8), program.NewFunctionCall(program.Func("g"))))
	ph := program.NewParForBlock(parfortest.Loop("k", 8), nil,
		program.NewBasicBlock(program.NewOperator("+").Sized(1, 1, 8).AssignedTo("y")))
	root := program.NewParForBlock(parfortest.Loop("i", 4), nil,
		program.NewBasicBlock(program.NewFunctionCall(program.Func("g")), program.NewFunctionCall(program.Func("h"))))
	prog := program.NewProgram(root)
	prog.AddFunction(program.NewFunctionBlock(program.Func("g"), pg))
	prog.AddFunction(program.NewFunctionBlock(program.Func("h"), ph))

	tree, report := optimize(t, prog, root, nil)
	require.Equal(t, "1", report.Rewrites[12].Result)
	require.Equal(t, "0", report.Rewrites[13].Result)

	g, _ := prog.Function(program.Func("g"))
	_, ok := g.Body[0].(*program.ForBlock)
	require.True(t, ok)
	h, _ := prog.Function(program.Func("h"))
	require.Equal(t, program.Block(ph), h.Body[0])
	require.Equal(t, 4, root.Config.DegreeOfParallelism)
	// ceil((16-4+1)/4) workers remain per root worker
	require.Equal(t, 4, ph.Config.DegreeOfParallelism)
	require.LessOrEqual(t, tree.Root().TotalK(), 16)
	require.NoError(t, tree.Validate())
}

func TestSharedFunctionKeepsLoopOutsideRecursion(t *testing.T) {
	// h() { parfor(k in 1:8) { y = 1 + 1 } } is called by the root loop and by r() { h(); r() }
	ph := program.NewParForBlock(parfortest.Loop("k", 8), nil,
		program.NewBasicBlock(program.NewOperator("+").Sized(1, 1, 8).AssignedTo("y")))
	rootCall := program.NewFunctionCall(program.Func("h"))
	recursiveCall := program.NewFunctionCall(program.Func("h"))
	root := program.NewParForBlock(parfortest.Loop("i", 4), nil,
		program.NewBasicBlock(rootCall, program.NewFunctionCall(program.Func("r"))))
	prog := program.NewProgram(root)
	prog.AddFunction(program.NewFunctionBlock(program.Func("r"),
		program.NewBasicBlock(recursiveCall, program.NewFunctionCall(program.Func("r")))))
	prog.AddFunction(program.NewFunctionBlock(program.Func("h"), ph))
	m := metrics.New()

	tree, report := optimize(t, prog, root, nil, optimizer.WithMetrics(m))
	require.Equal(t, "1", report.Rewrites[12].Result)
	require.Equal(t, "0", report.Rewrites[13].Result)

	// the root loop still calls the parallel loop of h
	h, _ := prog.Function(program.Func("h"))
	require.Equal(t, program.Block(ph), h.Body[0])
	require.Equal(t, program.Func("h"), rootCall.Function)
	require.Equal(t, 4, ph.Config.DegreeOfParallelism)

	// r calls a copy of h, whose loop is sequential
	unfolded := program.FunctionKey{Namespace: program.DefaultNamespace, Name: optimizer.FunctionUnfoldPrefix + "h"}
	require.Equal(t, unfolded, recursiveCall.Function)
	clone, ok := prog.Function(unfolded)
	require.True(t, ok)
	_, ok = clone.Body[0].(*program.ForBlock)
	require.True(t, ok)
	require.False(t, prog.IsRecursive(unfolded))

	var kinds []parfor.NodeKind
	tree.Root().Walk(func(n *plan.Node) bool {
		if n.Kind() == parfor.ParForNode || n.Kind() == parfor.ForNode {
			kinds = append(kinds, n.Kind())
		}
		return true
	})
	require.ElementsMatch(t, []parfor.NodeKind{parfor.ParForNode, parfor.ParForNode, parfor.ForNode}, kinds)
	require.NoError(t, tree.Validate())
	require.Equal(t, 1.0, testutil.ToFloat64(m.Downgrades.WithLabelValues("recursive")))
}

func TestNonParForRootIsIgnored(t *testing.T) {
	prog, root, vars := flatLoop(1)
	tree, _ := optimize(t, prog, root, vars)
	require.Equal(t, parfor.ForNode, tree.Root().Kind())

	o := optimizer.New(testCluster(), cost.NewEstimator(), nil)
	report, err := o.Optimize(tree, vars)
	require.NoError(t, err)
	require.Empty(t, report.Rewrites)
}

func TestOptimizerOptions(t *testing.T) {
	o := optimizer.New(parfortest.Cluster(1, parfortest.GiB, 0, 0, 0), cost.NewEstimator(), nil,
		optimizer.WithParallelismFactor(-1), optimizer.WithMemoryUtilization(2), optimizer.WithCPThreshold(0),
		optimizer.WithParallelResultMerge(true), optimizer.WithAllowCopyCellFiles(false))
	opts := o.Options()
	defaults := optimizer.DefaultOptions()
	require.Equal(t, defaults.ParallelismFactor, opts.ParallelismFactor)
	require.Equal(t, defaults.MemoryUtilization, opts.MemoryUtilization)
	require.Equal(t, defaults.CPThreshold, opts.CPThreshold)
	require.True(t, opts.ParallelResultMerge)
	require.False(t, opts.AllowCopyCellFiles)
}

func TestPlacementProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("local-only loops within the local budget stay local", prop.ForAll(
		func(n int64, threads, slots int) bool {
			prog, root, vars := flatLoop(n)
			infra := parfortest.Cluster(threads, 4*parfortest.GiB, 4, slots%(threads+1), 2*parfortest.GiB)
			_, _, err := parfortest.LocalOptimize(prog, prog, root, vars, infra)
			return err == nil && root.Config.ExecMode == parfor.ExecLocal
		},
		gen.Int64Range(1, 5000),
		gen.IntRange(1, 64),
		gen.IntRange(0, 64),
	))

	properties.Property("remote degree is bounded by iterations and remote parallelism", prop.ForAll(
		func(n int64, nodes, slots int) bool {
			prog, root, vars := partitionedLoop(n)
			infra := parfortest.Cluster(16, 4*parfortest.GiB, nodes, slots, 2*parfortest.GiB)
			tree, report, err := parfortest.LocalOptimize(prog, prog, root, vars, infra)
			if err != nil || root.Config.ExecMode != parfor.ExecRemote {
				return false
			}
			k := int64(root.Config.DegreeOfParallelism)
			return k >= 1 && k <= n && k <= int64(report.Budget.RemoteMaxParallelism) &&
				int64(tree.Root().K()) == k
		},
		gen.Int64Range(2, 5000),
		gen.IntRange(1, 16),
		gen.IntRange(1, 128),
	))

	properties.TestingRun(t)
}

func TestResultPartitioning(t *testing.T) {
	// parfor(i in 1:1000) { R[i,] = sum(A[i,]) } with a remote write into an empty result
	// with 10^6 columns
	sum := program.NewOperator("sum", parfortest.RowRead("A", "i", 1e6)).Sized(1, 1, 8000)
	write := parfortest.RowWrite("R", "i", 1e6, sum).Placed(parfor.ExecRemote)
	root := program.NewParForBlock(parfortest.Loop("i", 1000), []string{"R"}, program.NewBasicBlock(write))
	prog := program.NewProgram(root)
	vars := parfor.VariableMap{
		"A": &parfor.Matrix{Rows: 1000, Cols: 1e6, NonZeros: 1e6, Format: parfor.BinaryBlockFormat},
		"R": &parfor.Matrix{Rows: 1000, Cols: 1e6, NonZeros: 0, Format: parfor.BinaryBlockFormat},
	}
	tree, report := optimize(t, prog, root, vars)
	require.Equal(t, "true", report.Rewrites[1].Result)

	var lix *plan.Node
	tree.Root().Walk(func(n *plan.Node) bool {
		if n.IsOperator("lix") {
			lix = n
		}
		return lix == nil
	})
	require.NotNil(t, lix)
	require.Equal(t, parfor.ExecLocal, lix.ExecType())
	require.Equal(t, parfor.ExecLocal, write.ForcedExecType)
	// one row of 10^6 columns per iteration
	maxTask := int64(report.Budget.RemoteMemory / 8e6)
	require.Equal(t, maxTask, lix.Operator.TaskSize)
	require.Equal(t, report.Budget.RemoteMemory-1, write.MemEstimate)

	// a local worker holds only two such writes at once
	require.Equal(t, parfor.ExecRemote, root.Config.ExecMode)
	require.Equal(t, "skipped (no recompile)", report.Rewrites[3].Result)
	require.Equal(t, "1", report.Rewrites[5].Result)
	require.Equal(t, "false", report.Rewrites[7].Result)
	require.Equal(t, 8, root.Config.DegreeOfParallelism)
	require.Equal(t, parfor.TaskFactoringMaxChunk, root.Config.TaskPartitioner)
	require.Equal(t, maxTask, root.Config.TaskSize)
	require.False(t, root.Config.WorkerReuse)
	// the dense result exceeds the local memory budget
	require.Equal(t, parfor.MergeRemote, root.Config.ResultMerge)
	require.NoError(t, tree.Validate())
}

func TestResultPartitioningRequiresEmptyResult(t *testing.T) {
	sum := program.NewOperator("sum", parfortest.RowRead("A", "i", 1000)).Sized(1, 1, 8000)
	write := parfortest.RowWrite("R", "i", 1000, sum).Placed(parfor.ExecRemote)
	root := program.NewParForBlock(parfortest.Loop("i", 1000), []string{"R"}, program.NewBasicBlock(write))
	prog := program.NewProgram(root)
	vars := parfor.VariableMap{
		"A": &parfor.Matrix{Rows: 1000, Cols: 1000, NonZeros: 1e6, Format: parfor.BinaryBlockFormat},
		"R": &parfor.Matrix{Rows: 1000, Cols: 1000, NonZeros: 10, Format: parfor.BinaryBlockFormat},
	}
	_, report := optimize(t, prog, root, vars)
	require.Equal(t, "false", report.Rewrites[1].Result)
	require.Equal(t, parfor.TaskFactoring, root.Config.TaskPartitioner)
	require.Equal(t, int64(0), root.Config.TaskSize)
}

func TestPartitionReplication(t *testing.T) {
	// parfor(i in 1:1000) { parfor(j in 1:10) { s = sum(A[i,]) } }
	read := parfortest.RowRead("A", "i", 1000).Placed(parfor.ExecRemote)
	sum := program.NewOperator("sum", read).Sized(1, 1, 1000).AssignedTo("s")
	inner := program.NewParForBlock(parfortest.Loop("j", 10), nil, program.NewBasicBlock(sum))
	root := program.NewParForBlock(parfortest.Loop("i", 1000), nil, inner)
	prog := program.NewProgram(root)
	vars := parfor.VariableMap{
		"A": &parfor.Matrix{Rows: 1e9, Cols: 1000, NonZeros: 1e12, Format: parfor.BinaryBlockFormat},
	}
	tree, report := optimize(t, prog, root, vars)

	require.Equal(t, parfor.PartitionerDistributed, root.Config.DataPartitioner)
	require.Equal(t, parfor.ExecRemote, root.Config.ExecMode)
	// one replica per node
	require.Equal(t, "4", report.Rewrites[5].Result)
	require.Equal(t, 4, root.Config.PartitionReplication)
	require.True(t, tree.Root().HasNestedPartitionReads())
	require.NoError(t, tree.Validate())
}

func TestColumnPartitioning(t *testing.T) {
	// parfor(i in 1:1000) { s = sum(A[,i]) } over a matrix with 10^9 columns
	read := parfortest.ColumnRead("A", "i", 1000).Placed(parfor.ExecRemote)
	sum := program.NewOperator("sum", read).Sized(1, 1, 1000).AssignedTo("s")
	root := program.NewParForBlock(parfortest.Loop("i", 1000), nil, program.NewBasicBlock(sum))
	prog := program.NewProgram(root)
	vars := parfor.VariableMap{
		"A": &parfor.Matrix{Rows: 1000, Cols: 1e9, NonZeros: 1e12, Format: parfor.BinaryBlockFormat},
	}
	_, report := optimize(t, prog, root, vars)
	require.Equal(t, string(parfor.PartitionerDistributed), report.Rewrites[0].Result)
	require.Equal(t, parfor.ExecLocal, read.ForcedExecType)
	// one column of 1000 rows
	require.Equal(t, 8000.0, read.MemEstimate)
	require.Equal(t, parfor.ExecRemote, root.Config.ExecMode)
}
