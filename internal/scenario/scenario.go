// Package scenario loads optimization scenarios: a program, the runtime bindings visible to
// it and the capacity of the cluster it runs on, described in YAML
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/cluster"
	"github.com/go-sif/parfor/program"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the YAML form of a scenario
type File struct {
	Name      string                  `yaml:"name"`
	Cluster   ClusterSpec             `yaml:"cluster"`
	Variables map[string]VariableSpec `yaml:"variables"`
	Functions []FunctionSpec          `yaml:"functions"`
	Program   []BlockSpec             `yaml:"program"`
}

// ClusterSpec describes the capacity of the cluster. Memory sizes are human-readable
// ("4GiB", "512MB" or a plain number of bytes); omitted values are taken from the host.
type ClusterSpec struct {
	LocalThreads int    `yaml:"localThreads"`
	LocalMemory  string `yaml:"localMemory"`
	RemoteNodes  int    `yaml:"remoteNodes"`
	RemoteSlots  int    `yaml:"remoteSlots"`
	RemoteMemory string `yaml:"remoteMemory"`
}

// VariableSpec binds either an integer scalar (Value) or a matrix
type VariableSpec struct {
	Value    *int64 `yaml:"value"`
	Rows     int64  `yaml:"rows"`
	Cols     int64  `yaml:"cols"`
	NonZeros int64  `yaml:"nonZeros"`
	Format   string `yaml:"format"`
}

// FunctionSpec declares a user-defined function
type FunctionSpec struct {
	Name    string      `yaml:"name"`
	Inputs  []string    `yaml:"inputs"`
	Outputs []string    `yaml:"outputs"`
	Body    []BlockSpec `yaml:"body"`
}

// BlockSpec is exactly one of a basic block, a conditional, a while loop, or a (par)for loop
type BlockSpec struct {
	Basic  []HopSpec   `yaml:"basic"`
	If     *IfSpec     `yaml:"if"`
	While  []BlockSpec `yaml:"while"`
	For    *LoopSpec   `yaml:"for"`
	ParFor *LoopSpec   `yaml:"parfor"`
}

// IfSpec is a conditional block
type IfSpec struct {
	Then []BlockSpec `yaml:"then"`
	Else []BlockSpec `yaml:"else"`
}

// LoopSpec is a for or parfor loop over Var from From to To
type LoopSpec struct {
	Var     string      `yaml:"var"`
	From    Term        `yaml:"from"`
	To      Term        `yaml:"to"`
	Incr    Term        `yaml:"incr"`
	Results []string    `yaml:"results"`
	Body    []BlockSpec `yaml:"body"`
}

// HopSpec is a single operator of a basic block. Operands refer to earlier operators of the
// same block by ID, to integer literals, or to variables.
type HopSpec struct {
	ID       string   `yaml:"id"`
	Op       string   `yaml:"op"`
	Matrix   string   `yaml:"matrix"` // matrix read by rix, target of lix
	Source   Term     `yaml:"source"` // value written by lix
	Rows     []Term   `yaml:"rows"`   // lower and upper row bound of rix and lix
	Cols     []Term   `yaml:"cols"`   // lower and upper column bound of rix and lix
	Inputs   []Term   `yaml:"inputs"`
	Function string   `yaml:"function"`
	Outputs  []string `yaml:"outputs"`
	Assign   string   `yaml:"assign"`
	Exec     string   `yaml:"exec"`
	Dims     []int64  `yaml:"dims"`
	Mem      string   `yaml:"mem"`
}

// Term is a scalar YAML value kept in its textual form
type Term string

// UnmarshalYAML implements yaml.Unmarshaler
func (t *Term) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar, got %s", value.Line, value.Tag)
	}
	*t = Term(value.Value)
	return nil
}

// Operand parses a loop bound: an integer, a variable, or a variable plus or minus an integer
func (t Term) Operand() (program.Operand, error) {
	s := strings.TrimSpace(string(t))
	if s == "" {
		return program.Operand{}, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return program.Lit(v), nil
	}
	if idx := strings.LastIndexAny(s, "+-"); idx > 0 {
		v, err := strconv.ParseInt(strings.TrimSpace(s[idx+1:]), 10, 64)
		if err != nil {
			return program.Operand{}, fmt.Errorf("invalid loop bound %q", s)
		}
		if s[idx] == '-' {
			v = -v
		}
		return program.Operand{Var: strings.TrimSpace(s[:idx]), Value: v}, nil
	}
	return program.Ref(s), nil
}

// Root is an outermost parfor loop of a scenario program, and the block holding it
type Root struct {
	Host program.Container
	Loop *program.ParForBlock
}

// Scenario is a loaded scenario, ready to be optimized
type Scenario struct {
	Name      string
	Path      string
	Program   *program.Program
	Variables parfor.VariableMap
	Cluster   *cluster.Options
}

// Roots returns the outermost parfor loops of the scenario's main program, in program order.
// Loops within function bodies are reached through the calls to them.
func (s *Scenario) Roots() []Root {
	return findRoots(s.Program, make([]Root, 0))
}

func findRoots(c program.Container, res []Root) []Root {
	for _, b := range c.Children() {
		switch tb := b.(type) {
		case *program.ParForBlock:
			res = append(res, Root{Host: c, Loop: tb})
		case program.Container:
			res = findRoots(tb, res)
		}
	}
	return res
}

// Load reads and builds the scenario at path
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read scenario %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid scenario %s", path)
	}
	s.Path = path
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

// Parse builds a scenario from its YAML form. Unknown fields are rejected, and every
// problem found in the program is reported at once.
func Parse(data []byte) (*Scenario, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return f.Build()
}

// Build converts this File into a Scenario
func (f *File) Build() (*Scenario, error) {
	b := &builder{}
	s := &Scenario{
		Name:      f.Name,
		Cluster:   b.cluster(f.Cluster),
		Variables: b.variables(f.Variables),
	}
	s.Program = program.NewProgram(b.blocks("program", f.Program)...)
	for _, fs := range f.Functions {
		if fs.Name == "" {
			b.fail("function without a name")
			continue
		}
		key := program.ParseFunctionKey(fs.Name)
		if _, ok := s.Program.Function(key); ok {
			b.fail("duplicate function %s", key)
			continue
		}
		fb := program.NewFunctionBlock(key, b.blocks(key.String(), fs.Body)...)
		fb.Inputs = fs.Inputs
		fb.Outputs = fs.Outputs
		s.Program.AddFunction(fb)
	}
	for _, key := range b.calls {
		if _, ok := s.Program.Function(key); !ok {
			b.fail("call to undeclared function %s", key)
		}
	}
	if len(findRoots(s.Program, nil)) == 0 {
		b.fail("program contains no parfor loop")
	}
	if b.errs != nil {
		return nil, b.errs.ErrorOrNil()
	}
	return s, nil
}

// builder accumulates every error found while building a scenario
type builder struct {
	errs  *multierror.Error
	calls []program.FunctionKey
}

func (b *builder) fail(format string, args ...interface{}) {
	b.errs = multierror.Append(b.errs, fmt.Errorf(format, args...))
}

func (b *builder) bytes(what, s string) float64 {
	if s == "" {
		return 0
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		b.fail("invalid %s %q: %v", what, s, err)
		return 0
	}
	return float64(v)
}

func (b *builder) cluster(cs ClusterSpec) *cluster.Options {
	return &cluster.Options{
		LocalThreads: cs.LocalThreads,
		LocalMemory:  b.bytes("local memory", cs.LocalMemory),
		RemoteNodes:  cs.RemoteNodes,
		RemoteSlots:  cs.RemoteSlots,
		RemoteMemory: b.bytes("remote memory", cs.RemoteMemory),
	}
}

func (b *builder) variables(specs map[string]VariableSpec) parfor.VariableMap {
	vars := make(parfor.VariableMap, len(specs))
	for name, vs := range specs {
		if vs.Value != nil {
			vars[name] = *vs.Value
			continue
		}
		format := parfor.BinaryBlockFormat
		switch parfor.OutputFormat(strings.ToLower(vs.Format)) {
		case "", parfor.BinaryBlockFormat:
		case parfor.BinaryCellFormat:
			format = parfor.BinaryCellFormat
		case parfor.TextCellFormat:
			format = parfor.TextCellFormat
		default:
			b.fail("variable %s: unknown format %q", name, vs.Format)
		}
		vars[name] = &parfor.Matrix{Rows: vs.Rows, Cols: vs.Cols, NonZeros: vs.NonZeros, Format: format}
	}
	return vars
}

func (b *builder) blocks(where string, specs []BlockSpec) []program.Block {
	res := make([]program.Block, 0, len(specs))
	for i, bs := range specs {
		at := fmt.Sprintf("%s[%d]", where, i)
		set := 0
		var block program.Block
		if bs.Basic != nil {
			set++
			block = b.basic(at, bs.Basic)
		}
		if bs.If != nil {
			set++
			block = program.NewIfBlock(b.blocks(at+".then", bs.If.Then), b.blocks(at+".else", bs.If.Else))
		}
		if bs.While != nil {
			set++
			block = program.NewWhileBlock(b.blocks(at+".while", bs.While)...)
		}
		if bs.For != nil {
			set++
			block = program.NewForBlock(b.predicate(at, bs.For), b.blocks(at+".for", bs.For.Body)...)
		}
		if bs.ParFor != nil {
			set++
			block = program.NewParForBlock(b.predicate(at, bs.ParFor), bs.ParFor.Results,
				b.blocks(at+".parfor", bs.ParFor.Body)...)
		}
		if set != 1 {
			b.fail("%s: a block must be exactly one of basic, if, while, for or parfor", at)
			continue
		}
		res = append(res, block)
	}
	return res
}

func (b *builder) predicate(at string, ls *LoopSpec) program.IterablePredicate {
	if ls.Var == "" {
		b.fail("%s: loop without an iteration variable", at)
	}
	pred := program.IterablePredicate{Var: ls.Var}
	for _, bound := range []struct {
		term Term
		out  *program.Operand
	}{{ls.From, &pred.From}, {ls.To, &pred.To}, {ls.Incr, &pred.Incr}} {
		op, err := bound.term.Operand()
		if err != nil {
			b.fail("%s: %v", at, err)
		}
		*bound.out = op
	}
	if ls.From == "" {
		pred.From = program.Lit(1)
	}
	if ls.To == "" {
		b.fail("%s: loop without an upper bound", at)
	}
	return pred
}

// basic builds a basic block from its operators. The block's hops are the operators no other
// operator of the block consumes.
func (b *builder) basic(at string, specs []HopSpec) *program.BasicBlock {
	ids := make(map[string]*program.Hop)
	consumed := make(map[*program.Hop]bool)
	hops := make([]*program.Hop, 0, len(specs))
	term := func(t Term) *program.Hop {
		if h, ok := ids[string(t)]; ok {
			consumed[h] = true
			return h
		}
		if v, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return program.NewLiteral(v)
		}
		return program.NewData(string(t))
	}
	bounds := func(what string, terms []Term) (*program.Hop, *program.Hop) {
		if len(terms) != 2 {
			b.fail("%s: %s needs a lower and an upper bound", at, what)
			return program.NewLiteral(1), program.NewLiteral(1)
		}
		return term(terms[0]), term(terms[1])
	}

	for i, hs := range specs {
		var h *program.Hop
		switch program.OpKind(hs.Op) {
		case "":
			b.fail("%s[%d]: operator without op", at, i)
			continue
		case program.OpIndexing, program.OpLeftIndexing:
			if hs.Matrix == "" {
				b.fail("%s[%d]: %s without matrix", at, i, hs.Op)
				continue
			}
		}
		switch program.OpKind(hs.Op) {
		case program.OpIndexing:
			rl, ru := bounds("rows", hs.Rows)
			cl, cu := bounds("cols", hs.Cols)
			h = program.NewIndexing(term(Term(hs.Matrix)), rl, ru, cl, cu)
		case program.OpLeftIndexing:
			rl, ru := bounds("rows", hs.Rows)
			cl, cu := bounds("cols", hs.Cols)
			h = program.NewLeftIndexing(term(Term(hs.Matrix)), term(hs.Source), rl, ru, cl, cu)
		case program.OpFunctionCall:
			key := program.ParseFunctionKey(hs.Function)
			b.calls = append(b.calls, key)
			h = program.NewFunctionCall(key)
			h.Outputs = hs.Outputs
		default:
			h = program.NewOperator(hs.Op)
		}
		for _, in := range hs.Inputs {
			h.Inputs = append(h.Inputs, term(in))
		}
		if hs.Assign != "" {
			h.AssignedTo(hs.Assign)
		}
		switch strings.ToUpper(hs.Exec) {
		case "":
		case string(parfor.ExecLocal):
			h.Placed(parfor.ExecLocal)
		case string(parfor.ExecRemote):
			h.Placed(parfor.ExecRemote)
		default:
			b.fail("%s[%d]: unknown placement %q", at, i, hs.Exec)
		}
		if len(hs.Dims) > 0 {
			if len(hs.Dims) != 2 {
				b.fail("%s[%d]: dims must be [rows, cols]", at, i)
			} else {
				h.Sized(hs.Dims[0], hs.Dims[1], b.bytes("memory estimate", hs.Mem))
			}
		} else if hs.Mem != "" {
			h.MemEstimate = b.bytes("memory estimate", hs.Mem)
		}
		if hs.ID != "" {
			if _, ok := ids[hs.ID]; ok {
				b.fail("%s[%d]: duplicate operator id %s", at, i, hs.ID)
			}
			ids[hs.ID] = h
		}
		hops = append(hops, h)
	}

	roots := make([]*program.Hop, 0, len(hops))
	for _, h := range hops {
		if !consumed[h] {
			roots = append(roots, h)
		}
	}
	return program.NewBasicBlock(roots...)
}
