package program

import (
	"sync/atomic"

	"github.com/go-sif/parfor"
)

// OpKind is the kind of a Hop
type OpKind string

const (
	// OpData reads a bound variable
	OpData OpKind = "data"
	// OpLiteral is an integer literal
	OpLiteral OpKind = "literal"
	// OpIndexing reads a slice of a matrix: inputs are matrix, row lower, row upper, col lower, col upper
	OpIndexing OpKind = "rix"
	// OpLeftIndexing writes into a slice of a matrix: inputs are target, source, row lower, row upper, col lower, col upper
	OpLeftIndexing OpKind = "lix"
	// OpFunctionCall calls a user-defined function
	OpFunctionCall OpKind = "fcall"
	// OpGeneric is any other dataflow operator
	OpGeneric OpKind = "op"
)

var hopIDSeq int64

func nextHopID() int64 {
	return atomic.AddInt64(&hopIDSeq, 1)
}

// A Hop is an operator of a statement block's dataflow DAG
type Hop struct {
	ID             int64
	Kind           OpKind
	Name           string      // variable name of data hops, opcode of generic hops
	Value          int64       // value of literal hops
	Function       FunctionKey // callee of function call hops
	Inputs         []*Hop
	Output         string   // variable the result is assigned to, if any
	Outputs        []string // variables bound by a function call
	Rows           int64
	Cols           int64
	MemEstimate    float64         // in-memory estimate for local execution, in bytes
	ExecType       parfor.ExecType // placement as compiled
	ForcedExecType parfor.ExecType // placement forced by the optimizer, if any
}

func newHop(kind OpKind, inputs ...*Hop) *Hop {
	return &Hop{
		ID:       nextHopID(),
		Kind:     kind,
		Inputs:   inputs,
		Rows:     -1,
		Cols:     -1,
		ExecType: parfor.ExecLocal,
	}
}

// NewData creates a Hop reading the variable name
func NewData(name string) *Hop {
	h := newHop(OpData)
	h.Name = name
	return h
}

// NewLiteral creates an integer literal Hop
func NewLiteral(v int64) *Hop {
	h := newHop(OpLiteral)
	h.Value = v
	return h
}

// NewIndexing creates a right-indexing Hop reading matrix[rl:ru, cl:cu]
func NewIndexing(matrix, rl, ru, cl, cu *Hop) *Hop {
	return newHop(OpIndexing, matrix, rl, ru, cl, cu)
}

// NewLeftIndexing creates a left-indexing Hop writing source into target[rl:ru, cl:cu]
func NewLeftIndexing(target, source, rl, ru, cl, cu *Hop) *Hop {
	h := newHop(OpLeftIndexing, target, source, rl, ru, cl, cu)
	if target != nil {
		h.Output = target.Name
	}
	return h
}

// NewFunctionCall creates a Hop calling fn
func NewFunctionCall(fn FunctionKey, inputs ...*Hop) *Hop {
	h := newHop(OpFunctionCall, inputs...)
	h.Function = fn
	return h
}

// NewOperator creates a generic operator Hop
func NewOperator(opcode string, inputs ...*Hop) *Hop {
	h := newHop(OpGeneric, inputs...)
	h.Name = opcode
	return h
}

// Placed sets the compiled placement of this Hop
func (h *Hop) Placed(et parfor.ExecType) *Hop {
	h.ExecType = et
	return h
}

// Sized sets the dimensions and in-memory estimate of this Hop
func (h *Hop) Sized(rows, cols int64, mem float64) *Hop {
	h.Rows = rows
	h.Cols = cols
	h.MemEstimate = mem
	return h
}

// AssignedTo sets the variable the result of this Hop is assigned to
func (h *Hop) AssignedTo(name string) *Hop {
	h.Output = name
	return h
}

// IsOperator returns true iff this Hop is an operator, rather than a data read or literal
func (h *Hop) IsOperator() bool {
	return h.Kind != OpData && h.Kind != OpLiteral
}

// Opcode returns the name of this Hop's operation
func (h *Hop) Opcode() string {
	switch h.Kind {
	case OpGeneric:
		return h.Name
	case OpFunctionCall:
		return string(h.Kind) + ":" + h.Function.String()
	default:
		return string(h.Kind)
	}
}

// EffectiveExecType returns the forced placement if there is one, else the compiled placement
func (h *Hop) EffectiveExecType() parfor.ExecType {
	if h.ForcedExecType != parfor.ExecUnset {
		return h.ForcedExecType
	}
	return h.ExecType
}

// RefersTo returns true iff this Hop reads the variable name
func (h *Hop) RefersTo(name string) bool {
	return h != nil && h.Kind == OpData && h.Name == name
}

// Matrix returns the indexed matrix of an indexing or left-indexing Hop
func (h *Hop) Matrix() *Hop {
	if (h.Kind == OpIndexing || h.Kind == OpLeftIndexing) && len(h.Inputs) > 0 {
		return h.Inputs[0]
	}
	return nil
}

// IndexBounds returns the row and column bounds of an indexing or left-indexing Hop
func (h *Hop) IndexBounds() (rl, ru, cl, cu *Hop) {
	offset := 1
	if h.Kind == OpLeftIndexing {
		offset = 2
	} else if h.Kind != OpIndexing {
		return nil, nil, nil, nil
	}
	if len(h.Inputs) < offset+4 {
		return nil, nil, nil, nil
	}
	in := h.Inputs[offset:]
	return in[0], in[1], in[2], in[3]
}

// KeyedOn determines the access pattern of an indexing Hop relative to the variable iterVar
func (h *Hop) KeyedOn(iterVar string) parfor.PartitionFormat {
	rl, ru, cl, cu := h.IndexBounds()
	rows := rl.RefersTo(iterVar) && ru.RefersTo(iterVar)
	cols := cl.RefersTo(iterVar) && cu.RefersTo(iterVar)
	switch {
	case rows && cols:
		return parfor.FormatCellWise
	case rows:
		return parfor.FormatRowWise
	case cols:
		return parfor.FormatColumnWise
	default:
		return parfor.FormatNone
	}
}

// walk visits h and all of its transitive inputs once each
func (h *Hop) walk(visited map[*Hop]bool, fn func(*Hop)) {
	if h == nil || visited[h] {
		return
	}
	visited[h] = true
	for _, in := range h.Inputs {
		in.walk(visited, fn)
	}
	fn(h)
}
