package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

var (
	// debugPrintln is the global debug print function (set by host code)
	debugPrintln DebugWriter = func(string) {} // No-op by default

	// debugEnabled controls whether debug output is active.
	// Disabled by default so tight transfer loops pay nothing for it.
	debugEnabled bool
)

// SetDebugWriter sets the host-specific debug output function.
// This allows hosts to redirect debug output to stderr, UART, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled.
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the host-specific writer.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}
