package log

// Logger is the structured logger used across hwbridge.
// All output must go to stderr or a file: stdout carries protocol responses.
type Logger interface {
	// Debug logs low-level details useful while developing a connector.
	Debug(msg string, keysAndValues ...any)
	// Info logs routine progress, including prompts for the device holder.
	Info(msg string, keysAndValues ...any)
	// Warn logs unexpected situations the processor can continue from.
	Warn(msg string, keysAndValues ...any)
	// Error logs failures of a single command or of a supporting service.
	Error(msg string, keysAndValues ...any)
	// Fatal logs an unrecoverable failure and terminates the process.
	Fatal(msg string, keysAndValues ...any)
	// WithKV returns a logger that adds the pair to every entry.
	WithKV(key string, value any) Logger
	// GetAllKV returns the pairs added with WithKV.
	GetAllKV() []any
	// WithName returns a logger whose name is extended with name.
	WithName(name string) Logger
	// Name returns the dotted logger name.
	Name() string
	// AddCallerSkip returns a logger that skips extra frames when reporting the caller.
	AddCallerSkip(skip int) Logger
}

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// SpanEventRecorder records log entries as events of a trace span.
type SpanEventRecorder interface {
	TraceID() string
	SpanID() string

	// RecordEvent records an event; keysAndValues are alternating keys and values.
	RecordEvent(name string, keysAndValues ...any)
	// RecordError records an event and marks the span as failed.
	RecordError(name string, keysAndValues ...any)
}
