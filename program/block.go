package program

import (
	"github.com/go-sif/parfor"
)

// A StatementBlock is the source-side counterpart of an executable Block: its location in the
// source program and the dataflow DAG compiled from it
type StatementBlock struct {
	BeginLine int
	EndLine   int
	Hops      []*Hop // operator hops, in evaluation order
}

// Instruction is a low-level instruction generated from a Hop
type Instruction struct {
	Opcode   string
	ExecType parfor.ExecType
	HopID    int64
	Function FunctionKey // callee of function call instructions
}

// A Block is a node of an executable program
type Block interface {
	// Source returns the StatementBlock this Block was compiled from
	Source() *StatementBlock
}

// A Container is a Block (or Program) holding child Blocks
type Container interface {
	// Children returns all child Blocks, in program order
	Children() []Block
	// ReplaceChild swaps a direct child for another Block, returning false if old is not a direct child
	ReplaceChild(old, replacement Block) bool
}

func replaceIn(blocks []Block, old, replacement Block) bool {
	for i, b := range blocks {
		if b == old {
			blocks[i] = replacement
			return true
		}
	}
	return false
}

// BasicBlock is a straight-line sequence of instructions
type BasicBlock struct {
	source       *StatementBlock
	Instructions []Instruction
}

// NewBasicBlock creates a BasicBlock compiled from the given operator hops
func NewBasicBlock(hops ...*Hop) *BasicBlock {
	b := &BasicBlock{source: &StatementBlock{Hops: hops}}
	b.Instructions = generateInstructions(b.source)
	return b
}

// Source implements Block
func (b *BasicBlock) Source() *StatementBlock {
	return b.source
}

// Hops returns the operator hops of this BasicBlock
func (b *BasicBlock) Hops() []*Hop {
	return b.source.Hops
}

// IfBlock is a conditional
type IfBlock struct {
	source *StatementBlock
	Then   []Block
	Else   []Block
}

// NewIfBlock creates an IfBlock
func NewIfBlock(then []Block, els []Block) *IfBlock {
	return &IfBlock{source: &StatementBlock{}, Then: then, Else: els}
}

// Source implements Block
func (b *IfBlock) Source() *StatementBlock {
	return b.source
}

// Children implements Container
func (b *IfBlock) Children() []Block {
	res := make([]Block, 0, len(b.Then)+len(b.Else))
	res = append(res, b.Then...)
	return append(res, b.Else...)
}

// ReplaceChild implements Container
func (b *IfBlock) ReplaceChild(old, replacement Block) bool {
	return replaceIn(b.Then, old, replacement) || replaceIn(b.Else, old, replacement)
}

// WhileBlock is a while loop
type WhileBlock struct {
	source *StatementBlock
	Body   []Block
}

// NewWhileBlock creates a WhileBlock
func NewWhileBlock(body ...Block) *WhileBlock {
	return &WhileBlock{source: &StatementBlock{}, Body: body}
}

// Source implements Block
func (b *WhileBlock) Source() *StatementBlock {
	return b.source
}

// Children implements Container
func (b *WhileBlock) Children() []Block {
	return b.Body
}

// ReplaceChild implements Container
func (b *WhileBlock) ReplaceChild(old, replacement Block) bool {
	return replaceIn(b.Body, old, replacement)
}

// Operand is a loop bound: the literal Value if Var is empty, otherwise Var + Value
type Operand struct {
	Var   string
	Value int64
}

// Lit creates a literal Operand
func Lit(v int64) Operand {
	return Operand{Value: v}
}

// Ref creates an Operand reading the scalar variable name
func Ref(name string) Operand {
	return Operand{Var: name}
}

// Resolve evaluates this Operand against scalar bindings
func (o Operand) Resolve(vars parfor.Variables) (int64, bool) {
	if o.Var == "" {
		return o.Value, true
	}
	if vars == nil {
		return 0, false
	}
	v, ok := vars.Scalar(o.Var)
	if !ok {
		return 0, false
	}
	return v + o.Value, true
}

// IterablePredicate describes the iteration space of a for or parfor loop
type IterablePredicate struct {
	Var   string   // the iteration variable
	From  Operand  // first value (inclusive)
	To    Operand  // last value (inclusive)
	Incr  Operand  // increment, 1 if zero
	Limit *Operand // optional additional upper bound on To
}

// NumIterations resolves the number of iterations of this predicate, if all bounds are known
func (p IterablePredicate) NumIterations(vars parfor.Variables) (int64, bool) {
	from, ok1 := p.From.Resolve(vars)
	to, ok2 := p.To.Resolve(vars)
	incr, ok3 := p.Incr.Resolve(vars)
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	if p.Limit != nil {
		limit, ok := p.Limit.Resolve(vars)
		if !ok {
			return 0, false
		}
		if limit < to {
			to = limit
		}
	}
	if incr == 0 {
		incr = 1
	}
	if to < from {
		return 0, true
	}
	return (to-from)/incr + 1, true
}

// Loop holds the fields shared by for and parfor loops
type Loop struct {
	source    *StatementBlock
	Predicate IterablePredicate
	Body      []Block
}

// Source implements Block
func (l *Loop) Source() *StatementBlock {
	return l.source
}

// Children implements Container
func (l *Loop) Children() []Block {
	return l.Body
}

// ReplaceChild implements Container
func (l *Loop) ReplaceChild(old, replacement Block) bool {
	return replaceIn(l.Body, old, replacement)
}

// ForBlock is a sequential for loop
type ForBlock struct {
	Loop
}

// NewForBlock creates a ForBlock
func NewForBlock(pred IterablePredicate, body ...Block) *ForBlock {
	return &ForBlock{Loop: Loop{source: &StatementBlock{}, Predicate: pred, Body: body}}
}

// ParForBlock is a parallel-for loop. Its Config is written by the optimizer.
type ParForBlock struct {
	Loop
	Config     parfor.LoopConfig
	ResultVars []string // variables written by the loop which are visible after it
}

// NewParForBlock creates a ParForBlock with a default configuration
func NewParForBlock(pred IterablePredicate, resultVars []string, body ...Block) *ParForBlock {
	return &ParForBlock{
		Loop:       Loop{source: &StatementBlock{}, Predicate: pred, Body: body},
		Config:     parfor.DefaultLoopConfig(),
		ResultVars: resultVars,
	}
}

// IsResultVar returns true iff name is one of the result variables of this loop
func (b *ParForBlock) IsResultVar(name string) bool {
	for _, v := range b.ResultVars {
		if v == name {
			return true
		}
	}
	return false
}

// NewForFromParFor creates a sequential loop which takes over the predicate, body and source
// StatementBlock of a parfor loop
func NewForFromParFor(pf *ParForBlock) *ForBlock {
	return &ForBlock{Loop: pf.Loop}
}

// FunctionBlock is the body of a user-defined function
type FunctionBlock struct {
	Key     FunctionKey
	source  *StatementBlock
	Inputs  []string
	Outputs []string
	Body    []Block
}

// NewFunctionBlock creates a FunctionBlock
func NewFunctionBlock(key FunctionKey, body ...Block) *FunctionBlock {
	return &FunctionBlock{Key: key, source: &StatementBlock{}, Body: body}
}

// Source implements Block
func (b *FunctionBlock) Source() *StatementBlock {
	return b.source
}

// Children implements Container
func (b *FunctionBlock) Children() []Block {
	return b.Body
}

// ReplaceChild implements Container
func (b *FunctionBlock) ReplaceChild(old, replacement Block) bool {
	return replaceIn(b.Body, old, replacement)
}

// ForEachHop visits every operator hop within blocks, in program order, including operators
// nested as inputs of other hops. Function bodies are not entered.
func ForEachHop(blocks []Block, fn func(host *BasicBlock, h *Hop)) {
	for _, b := range blocks {
		switch tb := b.(type) {
		case *BasicBlock:
			for _, h := range tb.Operators() {
				fn(tb, h)
			}
		case Container:
			ForEachHop(tb.Children(), fn)
		}
	}
}

// Operators returns every operator hop of this BasicBlock's DAG, including those only reachable
// as inputs of other hops, in evaluation order and once each
func (b *BasicBlock) Operators() []*Hop {
	res := make([]*Hop, 0, len(b.source.Hops))
	visited := make(map[*Hop]bool)
	for _, h := range b.source.Hops {
		h.walk(visited, func(in *Hop) {
			if in.IsOperator() {
				res = append(res, in)
			}
		})
	}
	return res
}
