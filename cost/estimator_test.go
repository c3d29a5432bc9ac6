package cost

import (
	"testing"

	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/plan"
	"github.com/go-sif/parfor/program"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) *plan.Tree {
	remote := program.NewOperator("ba+*").Sized(1000, 1000, 8e6).Placed(parfor.ExecRemote)
	local := program.NewOperator("+").Sized(10, 10, 1024)
	inner := program.NewParForBlock(program.IterablePredicate{Var: "j", From: program.Lit(1), To: program.Lit(4)}, nil,
		program.NewBasicBlock(local))
	root := program.NewParForBlock(program.IterablePredicate{Var: "i", From: program.Lit(1), To: program.Lit(10)}, nil,
		program.NewBasicBlock(remote), inner)
	prog := program.NewProgram(root)
	tree, err := plan.Build(prog, prog, root, nil)
	require.NoError(t, err)
	return tree
}

func TestMemoryEstimate(t *testing.T) {
	tree := buildTree(t)
	est := NewEstimator()
	root := tree.Root()

	require.Equal(t, float64(DefaultRemoteFootprint), est.Estimate(parfor.MemoryUsage, root, parfor.ExecUnset))
	require.Equal(t, 8e6, est.Estimate(parfor.MemoryUsage, root, parfor.ExecLocal))

	root.SetK(3)
	require.Equal(t, float64(3*DefaultRemoteFootprint), est.Estimate(parfor.MemoryUsage, root, parfor.ExecUnset))
	root.SetExecType(parfor.ExecRemote)
	require.Equal(t, float64(DefaultRemoteFootprint), est.Estimate(parfor.MemoryUsage, root, parfor.ExecUnset))

	inner := root.Children()[1]
	inner.SetK(4)
	require.Equal(t, float64(4*1024), est.Estimate(parfor.MemoryUsage, inner, parfor.ExecUnset))
}

func TestLeafEstimate(t *testing.T) {
	tree := buildTree(t)
	est := NewEstimator()
	op := tree.Root().Children()[0]
	require.Equal(t, float64(DefaultRemoteFootprint), est.LeafEstimate(parfor.MemoryUsage, op, parfor.ExecUnset))
	require.Equal(t, 8e6, est.LeafEstimate(parfor.MemoryUsage, op, parfor.ExecLocal))
	require.Equal(t, float64(DefaultRemoteLatency), est.LeafEstimate(parfor.ExecTime, op, parfor.ExecUnset))
	require.Equal(t, 0.0, est.LeafEstimate(parfor.MemoryUsage, tree.Root(), parfor.ExecUnset))
}

func TestExecTimeEstimate(t *testing.T) {
	tree := buildTree(t)
	est := NewEstimator()
	root := tree.Root()
	// 10 * (20 + 4*1)
	require.Equal(t, 240.0, est.Estimate(parfor.ExecTime, root, parfor.ExecUnset))
	root.SetK(5)
	require.Equal(t, 48.0, est.Estimate(parfor.ExecTime, root, parfor.ExecUnset))
	require.Equal(t, 10.0, est.Estimate(parfor.ExecTime, root, parfor.ExecLocal))
}
