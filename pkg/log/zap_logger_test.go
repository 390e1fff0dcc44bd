package log_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

func TestZapLogger(t *testing.T) {
	t.Parallel()

	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug, Output: log.OutputStderr}, tws)
	logger = logger.WithName("processor")

	logger.Debug("command received", "command", "init")
	tws.AssertEntry(t, log.LevelDebug, "processor", "command received", "command", "init")

	logger.Info("Waiting for you to confirm on the device")
	tws.AssertEntry(t, log.LevelInfo, "processor", "Waiting for you to confirm on the device")

	logger.Warn("slow device", "seconds", 12.5)
	tws.AssertEntry(t, log.LevelWarn, "processor", "slow device", "seconds", 12.5)

	logger.Error("command failed", "error", "device rejected")
	tws.AssertEntry(t, log.LevelError, "processor", "command failed", "error", "device rejected")

	logger = logger.WithName("getpk").WithKV("requestId", "r-1")
	assert.Equal(t, "processor.getpk", logger.Name())
	assert.Equal(t, []any{"requestId", "r-1"}, logger.GetAllKV())

	logger.Info("done", "success", true)
	tws.AssertEntry(t, log.LevelInfo, "processor.getpk", "done", "requestId", "r-1", "success", true)
}

func TestZapLogger_LevelFilter(t *testing.T) {
	t.Parallel()

	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelWarn}, tws)

	logger.Info("hidden")
	assert.Empty(t, tws.lastEntry)

	logger.Warn("shown")
	tws.AssertEntry(t, log.LevelWarn, "", "shown")
}

func TestZapLogger_WithKVDoesNotAlias(t *testing.T) {
	t.Parallel()

	base := log.NewZapLogger(log.Config{Format: "json"}, &testWriteSyncer{}).WithKV("a", 1)
	left := base.WithKV("b", 2)
	right := base.WithKV("c", 3)

	assert.Equal(t, []any{"a", 1, "b", 2}, left.GetAllKV())
	assert.Equal(t, []any{"a", 1, "c", 3}, right.GetAllKV())
}

func TestZapLogger_StdoutRefused(t *testing.T) {
	t.Parallel()

	tws := &testWriteSyncer{}
	log.NewZapLogger(log.Config{Format: "json", Output: log.OutputStdout}, tws)

	tws.AssertEntry(t, log.LevelWarn, "", "log output redirected to stderr",
		"requested", "stdout", "reason", "stdout is reserved for protocol responses")
}

func TestZapLogger_FileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "hwbridge.log")
	logger := log.NewZapLogger(log.Config{Format: "logfmt", Output: path})
	logger.Info("written to file", "command", "getaddr")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))
	assert.True(t, strings.Contains(string(data), "command=getaddr"))
}

type testWriteSyncer struct {
	lastEntry []byte
}

func (tws *testWriteSyncer) Write(p []byte) (n int, err error) {
	tws.lastEntry = append([]byte(nil), p...)
	return len(p), nil
}

func (tws *testWriteSyncer) Sync() error {
	return nil
}

// AssertEntry checks level, name, message, caller file and every pair of the last entry.
func (tws *testWriteSyncer) AssertEntry(t *testing.T, level log.Level, name, message string, keysAndValues ...any) {
	t.Helper()

	entryMap := make(map[string]any)
	require.NoError(t, json.Unmarshal(tws.lastEntry, &entryMap), "entry: %s", string(tws.lastEntry))

	assert.Contains(t, entryMap, "ts")
	assert.Equal(t, string(level), entryMap["level"])
	assert.Equal(t, message, entryMap["msg"])
	assert.Contains(t, entryMap, "caller")

	expectedFields := 4 // ts, level, msg, caller
	if name != "" {
		assert.Equal(t, name, entryMap["logger"])
		expectedFields++
	}

	for i := 0; i < len(keysAndValues); i += 2 {
		assert.Equal(t, keysAndValues[i+1], entryMap[keysAndValues[i].(string)])
	}
	assert.Len(t, entryMap, expectedFields+len(keysAndValues)/2)
}
