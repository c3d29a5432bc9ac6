package scenario

import (
	"testing"

	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/program"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func TestLoadPartitioned(t *testing.T) {
	s, err := Load("testdata/partitioned.yaml")
	require.NoError(t, err)
	require.Equal(t, "partitioned-rows", s.Name)
	require.Equal(t, "testdata/partitioned.yaml", s.Path)

	require.Equal(t, 16, s.Cluster.LocalThreads)
	require.Equal(t, float64(4*1024*1024*1024), s.Cluster.LocalMemory)
	require.Equal(t, 4, s.Cluster.RemoteNodes)
	require.Equal(t, 8, s.Cluster.RemoteSlots)
	require.Equal(t, float64(2*1024*1024*1024), s.Cluster.RemoteMemory)

	n, ok := s.Variables.Scalar("n")
	require.True(t, ok)
	require.Equal(t, int64(1000), n)
	a, ok := s.Variables.Matrix("A")
	require.True(t, ok)
	require.Equal(t, &parfor.Matrix{Rows: 1e9, Cols: 1000, NonZeros: 1e12, Format: parfor.BinaryBlockFormat}, a)

	roots := s.Roots()
	require.Len(t, roots, 1)
	require.Equal(t, s.Program, roots[0].Host)
	pf := roots[0].Loop
	require.Equal(t, "i", pf.Predicate.Var)
	require.Equal(t, program.Lit(1), pf.Predicate.From)
	require.Equal(t, program.Ref("n"), pf.Predicate.To)
	iters, ok := pf.Predicate.NumIterations(s.Variables)
	require.True(t, ok)
	require.Equal(t, int64(1000), iters)

	bb, ok := pf.Body[0].(*program.BasicBlock)
	require.True(t, ok)
	// the read is consumed by the sum
	require.Len(t, bb.Hops(), 1)
	sum := bb.Hops()[0]
	require.Equal(t, "sum", sum.Opcode())
	require.Equal(t, "s", sum.Output)
	require.Equal(t, 1000.0, sum.MemEstimate)
	read := sum.Inputs[0]
	require.Equal(t, program.OpIndexing, read.Kind)
	require.Equal(t, parfor.ExecRemote, read.ExecType)
	require.Equal(t, parfor.FormatRowWise, read.KeyedOn("i"))
}

func TestLoadRecursive(t *testing.T) {
	s, err := Load("testdata/recursive.yaml")
	require.NoError(t, err)
	require.Equal(t, []program.FunctionKey{program.Func("f")}, s.Program.Functions())
	require.True(t, s.Program.IsRecursive(program.Func("f")))
	fb, ok := s.Program.Function(program.Func("f"))
	require.True(t, ok)
	require.Equal(t, []string{"A"}, fb.Inputs)
	require.Equal(t, []string{"B"}, fb.Outputs)
	// the parfor loop within f is not a root
	require.Len(t, s.Roots(), 1)
}

func TestRootsWithinBlocks(t *testing.T) {
	s, err := Parse([]byte(`
program:
  - if:
      then:
        - parfor: {var: i, to: 10}
      else:
        - while:
            - parfor:
                var: j
                to: 10
                body:
                  - parfor: {var: k, to: 10}
  - parfor: {var: l, to: 10}
`))
	require.NoError(t, err)
	roots := s.Roots()
	require.Len(t, roots, 3)
	require.Equal(t, "i", roots[0].Loop.Predicate.Var)
	require.IsType(t, &program.IfBlock{}, roots[0].Host)
	require.Equal(t, "j", roots[1].Loop.Predicate.Var)
	require.IsType(t, &program.WhileBlock{}, roots[1].Host)
	require.Equal(t, "l", roots[2].Loop.Predicate.Var)
	require.Equal(t, s.Program, roots[2].Host)
}

func TestParseReportsEveryError(t *testing.T) {
	_, err := Parse([]byte(`
program:
  - basic:
      - op: sum
        exec: GPU
    parfor: {var: i, to: 10}
  - parfor:
      var: i
      to: 10
      body:
        - basic:
            - op: fcall
              function: g
`))
	require.Error(t, err)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	require.Len(t, merr.Errors, 3)
	require.Contains(t, err.Error(), `unknown placement "GPU"`)
	require.Contains(t, err.Error(), "exactly one of")
	require.Contains(t, err.Error(), "undeclared function .defaultNS::g")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
program:
  - parfor: {var: i, to: 10, step: 2}
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "step")
}

func TestParseRequiresParFor(t *testing.T) {
	_, err := Parse([]byte(`
program:
  - for: {var: i, to: 10}
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no parfor loop")
}

func TestParseMemorySizes(t *testing.T) {
	_, err := Parse([]byte(`
cluster:
  localMemory: lots
program:
  - parfor: {var: i, to: 10}
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid local memory")
}

func TestTermOperand(t *testing.T) {
	cases := []struct {
		term Term
		want program.Operand
	}{
		{"", program.Operand{}},
		{"42", program.Lit(42)},
		{"-3", program.Lit(-3)},
		{"n", program.Ref("n")},
		{"n+1", program.Operand{Var: "n", Value: 1}},
		{"n - 2", program.Operand{Var: "n", Value: -2}},
	}
	for _, c := range cases {
		got, err := c.term.Operand()
		require.NoError(t, err, string(c.term))
		require.Equal(t, c.want, got, string(c.term))
	}
	_, err := Term("n+x").Operand()
	require.Error(t, err)
}
