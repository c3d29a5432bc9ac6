package program

import (
	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/errors"
)

// generateInstructions creates one instruction per operator hop of a StatementBlock's DAG
func generateInstructions(sb *StatementBlock) []Instruction {
	res := make([]Instruction, 0, len(sb.Hops))
	visited := make(map[*Hop]bool)
	for _, root := range sb.Hops {
		root.walk(visited, func(h *Hop) {
			if !h.IsOperator() {
				return
			}
			res = append(res, Instruction{
				Opcode:   h.Opcode(),
				ExecType: h.EffectiveExecType(),
				HopID:    h.ID,
				Function: h.Function,
			})
		})
	}
	return res
}

// Recompiler regenerates the instructions of executable blocks from their StatementBlocks
type Recompiler struct {
	prog *Program
}

// NewRecompiler creates a Recompiler for blocks of prog
func NewRecompiler(prog *Program) *Recompiler {
	return &Recompiler{prog: prog}
}

// Recompile regenerates the instructions of b, refreshing the dimensions of data hops from
// the current bindings
func (r *Recompiler) Recompile(b *BasicBlock, vars parfor.Variables) error {
	if vars != nil {
		visited := make(map[*Hop]bool)
		for _, h := range b.Hops() {
			h.walk(visited, func(in *Hop) {
				if in.Kind != OpData {
					return
				}
				if m, ok := vars.Matrix(in.Name); ok {
					in.Rows, in.Cols = m.Rows, m.Cols
				}
			})
		}
	}
	b.Instructions = generateInstructions(b.source)
	return nil
}

// RecompileForced forces every operator within blocks (and within all functions they call)
// to the placement et, and regenerates their instructions
func (r *Recompiler) RecompileForced(blocks []Block, et parfor.ExecType) error {
	return r.recompileForced(blocks, et, make(map[FunctionKey]bool))
}

func (r *Recompiler) recompileForced(blocks []Block, et parfor.ExecType, fnStack map[FunctionKey]bool) error {
	for _, b := range blocks {
		switch tb := b.(type) {
		case *BasicBlock:
			for _, h := range tb.Operators() {
				h.ForcedExecType = et
				if h.Kind != OpFunctionCall || fnStack[h.Function] {
					continue
				}
				fb, ok := r.prog.Function(h.Function)
				if !ok {
					return errors.MissingFunctionError{Key: h.Function.String()}
				}
				fnStack[h.Function] = true
				if err := r.recompileForced(fb.Body, et, fnStack); err != nil {
					return err
				}
			}
			tb.Instructions = generateInstructions(tb.source)
		case Container:
			if err := r.recompileForced(tb.Children(), et, fnStack); err != nil {
				return err
			}
		}
	}
	return nil
}
