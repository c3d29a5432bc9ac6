package program

import (
	"sort"
	"strings"
)

// keyDelimiter separates namespace and name in the textual form of a FunctionKey
const keyDelimiter = "::"

// DefaultNamespace is the namespace of functions declared without one
const DefaultNamespace = ".defaultNS"

// FunctionKey identifies a user-defined function
type FunctionKey struct {
	Namespace string
	Name      string
}

// Func creates a FunctionKey in the default namespace
func Func(name string) FunctionKey {
	return FunctionKey{Namespace: DefaultNamespace, Name: name}
}

// String returns the textual form namespace::name of this FunctionKey
func (k FunctionKey) String() string {
	return k.Namespace + keyDelimiter + k.Name
}

// ParseFunctionKey parses the textual form of a FunctionKey. Names without a namespace are
// placed in the default namespace.
func ParseFunctionKey(s string) FunctionKey {
	if idx := strings.Index(s, keyDelimiter); idx >= 0 {
		return FunctionKey{Namespace: s[:idx], Name: s[idx+len(keyDelimiter):]}
	}
	return Func(s)
}

// Program is an executable program: a sequence of top-level Blocks and a function table
type Program struct {
	Blocks    []Block
	functions map[FunctionKey]*FunctionBlock
}

// NewProgram creates a Program
func NewProgram(blocks ...Block) *Program {
	return &Program{
		Blocks:    blocks,
		functions: make(map[FunctionKey]*FunctionBlock),
	}
}

// Children implements Container
func (p *Program) Children() []Block {
	return p.Blocks
}

// ReplaceChild implements Container
func (p *Program) ReplaceChild(old, replacement Block) bool {
	return replaceIn(p.Blocks, old, replacement)
}

// AddFunction adds (or replaces) a function in this Program
func (p *Program) AddFunction(fb *FunctionBlock) {
	p.functions[fb.Key] = fb
}

// Function looks up a function by key
func (p *Program) Function(key FunctionKey) (*FunctionBlock, bool) {
	fb, ok := p.functions[key]
	return fb, ok
}

// Functions returns the keys of all functions in this Program, sorted
func (p *Program) Functions() []FunctionKey {
	keys := make([]FunctionKey, 0, len(p.functions))
	for k := range p.functions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Callees returns the functions called directly from blocks, in program order and without duplicates
func Callees(blocks []Block) []FunctionKey {
	seen := make(map[FunctionKey]bool)
	res := make([]FunctionKey, 0)
	ForEachHop(blocks, func(_ *BasicBlock, h *Hop) {
		if h.Kind == OpFunctionCall && !seen[h.Function] {
			seen[h.Function] = true
			res = append(res, h.Function)
		}
	})
	return res
}

// IsRecursive returns true iff the function key calls itself, directly or transitively
func (p *Program) IsRecursive(key FunctionKey) bool {
	fb, ok := p.functions[key]
	if !ok {
		return false
	}
	visited := make(map[FunctionKey]bool)
	stack := Callees(fb.Body)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if next == key {
			return true
		}
		if visited[next] {
			continue
		}
		visited[next] = true
		if callee, ok := p.functions[next]; ok {
			stack = append(stack, Callees(callee.Body)...)
		}
	}
	return false
}
