package parfor

// ExecType describes where a loop or an operator is placed for execution
type ExecType string

const (
	// ExecUnset indicates that no placement has been decided (or forced)
	ExecUnset ExecType = ""
	// ExecLocal indicates in-process, multi-threaded execution on the coordinating machine
	ExecLocal ExecType = "LOCAL"
	// ExecRemote indicates execution on the distributed cluster
	ExecRemote ExecType = "REMOTE"
)

// NodeKind describes the kind of a plan node, mirroring the block nesting of a program
type NodeKind string

const (
	// ParForNode is a parallel-for loop
	ParForNode NodeKind = "PARFOR"
	// ForNode is a sequential for loop
	ForNode NodeKind = "FOR"
	// WhileNode is a while loop
	WhileNode NodeKind = "WHILE"
	// IfNode is a conditional block
	IfNode NodeKind = "IF"
	// FuncCallNode is a call to a user-defined function
	FuncCallNode NodeKind = "FUNCCALL"
	// OperatorNode is a single dataflow operator, always a leaf
	OperatorNode NodeKind = "OPERATOR"
)

// IsLoop returns true iff nodes of this kind iterate
func (k NodeKind) IsLoop() bool {
	return k == ParForNode || k == ForNode || k == WhileNode
}

// Measure selects which quantity a CostEstimator produces
type Measure int

const (
	// MemoryUsage is the estimated peak memory, in bytes
	MemoryUsage Measure = iota
	// ExecTime is an estimated, unit-less execution cost
	ExecTime
)

// String returns a textual representation of this Measure
func (m Measure) String() string {
	switch m {
	case MemoryUsage:
		return "MEMORY_USAGE"
	case ExecTime:
		return "EXEC_TIME"
	default:
		return "UNKNOWN"
	}
}
