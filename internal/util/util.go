package util

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	humanize "github.com/dustin/go-humanize"
)

// GetTrace produces the string representation of a stack trace
func GetTrace() string {
	var name, file string
	var line int
	var pc [16]uintptr
	var res strings.Builder
	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			fmt.Fprintf(&res, "%s\n\t%s:%d\n", name, file, line)
		}
	}
	return res.String()
}

// FormatMultiError formats multierrors for logging
func FormatMultiError(merrs []error) string {
	var msg strings.Builder
	for _, err := range merrs {
		fmt.Fprintf(&msg, "%+v\n", err)
	}
	return msg.String()
}

// FormatBytes renders a memory size in bytes for humans. Negative sizes and sizes beyond the
// range of uint64 are rendered as "unknown".
func FormatBytes(b float64) string {
	if b < 0 || b >= math.MaxUint64 || math.IsNaN(b) {
		return "unknown"
	}
	return humanize.IBytes(uint64(b))
}
