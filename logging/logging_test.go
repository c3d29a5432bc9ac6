package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogLevelToString(t *testing.T) {
	require.Equal(t, "TRACE", LogLevelToString(TraceLevel))
	require.Equal(t, "DEBUG", LogLevelToString(DebugLevel))
	require.Equal(t, "WARN", LogLevelToString(WarnLevel))
	require.Equal(t, "FATAL", LogLevelToString(FatalLevel))
	require.Equal(t, "TRACE", LogLevelToString(42))
}

func TestEnabled(t *testing.T) {
	require.True(t, Enabled(InfoLevel))
	require.True(t, Enabled(ErrorLevel))
	// writing at any level must never panic, whether or not it is enabled
	Debugf("debug %d", 1)
	Warnf("warn %s", "x")
}
