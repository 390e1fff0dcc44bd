package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

func TestSpanLogger(t *testing.T) {
	t.Parallel()

	inner := &recordingLogger{name: "bridge"}
	ser := &mockSpanEventRecorder{traceID: "trace-1", spanID: "span-1"}
	logger := log.NewSpanLogger(inner, ser)
	assert.Equal(t, 1, inner.callerSkip)

	logger.Info("Waiting for address from device", "path", "m/44'/1'/0'/0/0")
	require.NotNil(t, inner.last)
	assert.Equal(t, log.LevelInfo, inner.last.level)
	assert.Equal(t, []any{"traceId", "trace-1", "spanId", "span-1", "path", "m/44'/1'/0'/0/0"}, inner.last.keysAndValues)
	assert.False(t, ser.hasErr)
	assert.Equal(t, []any{"msg", "Waiting for address from device", "level", "info", "component", "bridge",
		"path", "m/44'/1'/0'/0/0"}, ser.lastEventMetadata)

	logger.WithKV("command", "getaddr").Error("device rejected")
	assert.True(t, ser.hasErr)
	assert.Equal(t, []any{"msg", "device rejected", "level", "error", "component", "bridge",
		"command", "getaddr"}, ser.lastEventMetadata)
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, isNoop := log.FromContext(ctx).(log.NoopLogger)
	assert.True(t, isNoop)

	zl := log.NewZapLogger(log.Config{}, &testWriteSyncer{})
	ctx = log.SetContextLogger(ctx, zl)
	_, isZap := log.FromContext(ctx).(*log.ZapLogger)
	assert.True(t, isZap)

	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: [16]byte{1},
		SpanID:  [8]byte{1},
	}))
	ctx = log.SetContextLogger(ctx, zl)
	_, isSpan := log.FromContext(ctx).(log.SpanLogger)
	assert.True(t, isSpan)

	ctx = log.SetContextLogger(context.Background(), nil)
	_, isNoop = log.FromContext(ctx).(log.NoopLogger)
	assert.True(t, isNoop)
}

type loggedEntry struct {
	level         log.Level
	msg           string
	keysAndValues []any
}

type recordingLogger struct {
	name       string
	kv         []any
	callerSkip int
	last       *loggedEntry
}

func (l *recordingLogger) record(level log.Level, msg string, kv []any) {
	l.last = &loggedEntry{level: level, msg: msg, keysAndValues: kv}
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.record(log.LevelDebug, msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.record(log.LevelInfo, msg, kv) }
func (l *recordingLogger) Warn(msg string, kv ...any)  { l.record(log.LevelWarn, msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.record(log.LevelError, msg, kv) }
func (l *recordingLogger) Fatal(msg string, kv ...any) { l.record(log.LevelFatal, msg, kv) }
func (l *recordingLogger) GetAllKV() []any             { return l.kv }
func (l *recordingLogger) Name() string                { return l.name }

func (l *recordingLogger) WithKV(key string, value any) log.Logger {
	cp := *l
	cp.kv = append(append([]any{}, l.kv...), key, value)
	return &cp
}

func (l *recordingLogger) WithName(name string) log.Logger {
	cp := *l
	cp.name = l.name + "." + name
	return &cp
}

func (l *recordingLogger) AddCallerSkip(skip int) log.Logger {
	l.callerSkip += skip
	return l
}

type mockSpanEventRecorder struct {
	traceID           string
	spanID            string
	hasErr            bool
	lastEventMetadata []any
}

func (ser *mockSpanEventRecorder) TraceID() string { return ser.traceID }
func (ser *mockSpanEventRecorder) SpanID() string  { return ser.spanID }

func (ser *mockSpanEventRecorder) RecordEvent(name string, keysAndValues ...any) {
	ser.lastEventMetadata = append([]any{"msg", name}, keysAndValues...)
}

func (ser *mockSpanEventRecorder) RecordError(name string, keysAndValues ...any) {
	ser.hasErr = true
	ser.lastEventMetadata = append([]any{"msg", name}, keysAndValues...)
}
