package parfor

import "math"

// OutputFormat is the on-disk format of a matrix
type OutputFormat string

const (
	// BinaryBlockFormat stores a matrix as binary blocks
	BinaryBlockFormat OutputFormat = "binaryblock"
	// BinaryCellFormat stores a matrix as binary cells
	BinaryCellFormat OutputFormat = "binarycell"
	// TextCellFormat stores a matrix as text cells
	TextCellFormat OutputFormat = "textcell"
)

// Matrix is the size and sparsity metadata of a bound matrix. Negative
// values indicate unknown dimensions or nonzero counts.
type Matrix struct {
	Rows     int64
	Cols     int64
	NonZeros int64
	Format   OutputFormat
}

// DimsKnown returns true iff both dimensions of this Matrix are known
func (m *Matrix) DimsKnown() bool {
	return m.Rows >= 0 && m.Cols >= 0
}

// Variables are the read-only runtime bindings visible to a loop
type Variables interface {
	// Matrix returns the metadata of a bound matrix, if name is bound to one
	Matrix(name string) (*Matrix, bool)
	// Scalar returns the value of a bound integer scalar, if name is bound to one
	Scalar(name string) (int64, bool)
	// Has returns true iff name is bound to anything
	Has(name string) bool
}

// VariableMap is a simple Variables implementation. Values must be *Matrix or int64.
type VariableMap map[string]interface{}

// Matrix implements Variables
func (vm VariableMap) Matrix(name string) (*Matrix, bool) {
	m, ok := vm[name].(*Matrix)
	return m, ok
}

// Scalar implements Variables
func (vm VariableMap) Scalar(name string) (int64, bool) {
	switch v := vm[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// Has implements Variables
func (vm VariableMap) Has(name string) bool {
	_, ok := vm[name]
	return ok
}

// denseBlockOverhead is the fixed header size of an in-memory matrix block
const denseBlockOverhead = 44

// EstimateDenseSize returns the in-memory size in bytes of a dense rows x cols matrix
// of doubles. Unknown dimensions produce the maximum representable size.
func EstimateDenseSize(rows, cols int64) float64 {
	if rows < 0 || cols < 0 {
		return math.MaxFloat64
	}
	return denseBlockOverhead + 8*float64(rows)*float64(cols)
}
