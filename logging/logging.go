package logging

import (
	"fmt"

	"k8s.io/klog/v2"
)

const (
	// TraceLevel indicates a log message's level of criticality
	TraceLevel = iota
	// DebugLevel indicates a log message's level of criticality
	DebugLevel
	// InfoLevel indicates a log message's level of criticality
	InfoLevel
	// WarnLevel indicates a log message's level of criticality
	WarnLevel
	// ErrorLevel indicates a log message's level of criticality
	ErrorLevel
	// FatalLevel indicates a log message's level of criticality
	FatalLevel
)

// klog verbosity used for each of the low levels
const (
	traceVerbosity klog.Level = 4
	debugVerbosity klog.Level = 2
)

// LogLevelToString translates a log level enum to a string representation
func LogLevelToString(level int) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "TRACE"
	}
}

// Logf logs a message at the given level
func Logf(level int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case TraceLevel:
		klog.V(traceVerbosity).InfoDepth(2, msg)
	case DebugLevel:
		klog.V(debugVerbosity).InfoDepth(2, msg)
	case InfoLevel:
		klog.InfoDepth(2, msg)
	case WarnLevel:
		klog.WarningDepth(2, msg)
	default:
		klog.ErrorDepth(2, msg)
	}
}

// Enabled returns true iff messages at the given level are currently written
func Enabled(level int) bool {
	switch level {
	case TraceLevel:
		return klog.V(traceVerbosity).Enabled()
	case DebugLevel:
		return klog.V(debugVerbosity).Enabled()
	default:
		return true
	}
}

// Tracef logs a message at TraceLevel
func Tracef(format string, args ...interface{}) {
	Logf(TraceLevel, format, args...)
}

// Debugf logs a message at DebugLevel
func Debugf(format string, args ...interface{}) {
	Logf(DebugLevel, format, args...)
}

// Infof logs a message at InfoLevel
func Infof(format string, args ...interface{}) {
	Logf(InfoLevel, format, args...)
}

// Warnf logs a message at WarnLevel
func Warnf(format string, args ...interface{}) {
	Logf(WarnLevel, format, args...)
}

// Errorf logs a message at ErrorLevel
func Errorf(format string, args ...interface{}) {
	Logf(ErrorLevel, format, args...)
}
