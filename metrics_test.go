package main

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/erc7824/nitrolite/hwbridge/pkg/bridge"
)

func TestMetrics_RecordCommand(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	metrics := NewMetricsWithRegistry(registry, protocolCommandNames())

	metrics.RecordCommand(bridge.CommandEvent{Command: CommandInit, Success: true, Duration: 3 * time.Second})
	metrics.RecordCommand(bridge.CommandEvent{Command: CommandGetPK, Success: false, Duration: time.Millisecond})
	metrics.RecordCommand(bridge.CommandEvent{Command: "sign", Success: false})
	metrics.RecordCommand(bridge.CommandEvent{Command: "", Success: false})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Commands.WithLabelValues(CommandInit, resultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Commands.WithLabelValues(CommandGetPK, resultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Commands.WithLabelValues(commandLabelUnknown, resultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Commands.WithLabelValues(commandLabelInvalid, resultFailure)))
	assert.Equal(t, 4, testutil.CollectAndCount(metrics.Commands))
	assert.Equal(t, 4, testutil.CollectAndCount(metrics.CommandDuration))
}

func TestMetrics_SessionReady(t *testing.T) {
	t.Parallel()

	metrics := NewMetricsWithRegistry(prometheus.NewRegistry(), nil)
	session := NewDeviceSession(metrics.RecordSessionState)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SessionReady))

	session.MarkInitialized()
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionReady))

	session.MarkUninitialized()
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SessionReady))
}
