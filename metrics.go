package main

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/erc7824/nitrolite/hwbridge/pkg/bridge"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"

	// Label values for lines that name no registered command.
	commandLabelInvalid = "invalid"
	commandLabelUnknown = "unknown"
)

// Metrics contains all Prometheus metrics for the application
type Metrics struct {
	// Commands counts processed command lines by command and result.
	Commands *prometheus.CounterVec
	// CommandDuration observes how long commands took, device confirmations included.
	CommandDuration *prometheus.HistogramVec
	// SessionReady is 1 while the device session is READY.
	SessionReady prometheus.Gauge

	commands []string
}

// NewMetrics initializes and registers Prometheus metrics
func NewMetrics(commands []string) *Metrics {
	return NewMetricsWithRegistry(nil, commands)
}

// NewMetricsWithRegistry initializes and registers Prometheus metrics with a
// custom registry. commands lists the names used as label values; any other
// name is counted as "unknown" to bound label cardinality.
func NewMetricsWithRegistry(registry prometheus.Registerer, commands []string) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hwbridge_commands_total",
			Help: "The total number of processed command lines",
		}, []string{"command", "result"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "hwbridge_command_duration_seconds",
			Help: "Time spent processing a command, including waits for the device holder",
			// Device confirmations take seconds to minutes.
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"command"}),
		SessionReady: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hwbridge_session_ready",
			Help: "1 while the device session is initialized, 0 otherwise",
		}),
		commands: commands,
	}
}

// RecordCommand records a processed command line.
func (m *Metrics) RecordCommand(event bridge.CommandEvent) {
	command := m.commandLabel(event.Command)
	result := resultSuccess
	if !event.Success {
		result = resultFailure
	}

	m.Commands.WithLabelValues(command, result).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(event.Duration.Seconds())
}

// RecordSessionState tracks session transitions.
func (m *Metrics) RecordSessionState(state SessionState) {
	if state == SessionReady {
		m.SessionReady.Set(1)
		return
	}
	m.SessionReady.Set(0)
}

func (m *Metrics) commandLabel(command string) string {
	switch {
	case command == "":
		return commandLabelInvalid
	case slices.Contains(m.commands, command):
		return command
	default:
		return commandLabelUnknown
	}
}
