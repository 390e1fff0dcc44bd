package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/erc7824/nitrolite/hwbridge/pkg/bridge"
	"github.com/erc7824/nitrolite/hwbridge/pkg/device"
	"github.com/erc7824/nitrolite/hwbridge/pkg/device/ethusb"
	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

const defaultAuditTimeout = 2 * time.Second

func main() {
	dotEnvPath, dotEnvErr := LoadDotEnv()

	config, err := LoadConfig()
	if err != nil {
		log.NewZapLogger(log.Config{}).Fatal("failed to load configuration", "error", err)
	}

	logger := log.NewZapLogger(config.Log).WithName("hwbridge")
	if dotEnvErr != nil {
		logger.Debug(".env file not loaded", "path", dotEnvPath, "error", dotEnvErr)
	}

	if len(os.Args) > 1 {
		// If a CLI command is provided, run it and exit
		runCli(logger, config, os.Args[1:])
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connector, closeConnector, err := newConnector(ctx, config.Connector, logger)
	if err != nil {
		logger.Fatal("failed to initialise device connector", "kind", config.Connector.Kind, "error", err)
	}
	logger.Info("device connector ready", "kind", config.Connector.Kind)

	metrics := NewMetrics(protocolCommandNames())

	var store *CommandLogStore
	if config.Database.Enabled() {
		store, err = openCommandLogStore(config, logger)
		if err != nil {
			logger.Fatal("failed to setup audit database", "error", err)
		}
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	processor, err := newProcessor(config, logger, metrics, store, interactive)
	if err != nil {
		logger.Fatal("failed to create command processor", "error", err)
	}
	session := NewDeviceSession(metrics.RecordSessionState)
	NewDeviceRouter(processor, connector, session, logger)

	metricsServer := startMetricsServer(config.MetricsAddr, logger)

	if interactive {
		fmt.Fprintln(os.Stderr, "Starting persistent Trezor connection. Send JSON commands:")
		renderCommands(os.Stderr)
		io.WriteString(os.Stderr, bridge.Prompt)
	}

	err = processor.Run(ctx, os.Stdin, os.Stdout)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down metrics server", "error", err)
		}
	}
	closeConnector()

	switch {
	case err == nil:
		logger.Debug("command loop finished", "session", session.State())
	case errors.Is(err, context.Canceled):
		logger.Info("shutting down")
	default:
		logger.Fatal("command loop failed", "error", err)
	}
}

func newProcessor(config *Config, logger log.Logger, metrics *Metrics, store *CommandLogStore, interactive bool) (*bridge.Processor, error) {
	auditTimeout := config.AuditTimeout
	if auditTimeout <= 0 {
		auditTimeout = defaultAuditTimeout
	}

	cfg := bridge.ProcessorConfig{
		Logger:         logger.WithName("processor"),
		CommandTimeout: config.CommandTimeout,
		OnCommandProcessed: func(event bridge.CommandEvent) {
			metrics.RecordCommand(event)
			if store == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
			defer cancel()
			if err := store.Store(ctx, event); err != nil {
				logger.Warn("failed to store command record", "requestID", event.RequestID, "error", err)
			}
		},
	}
	if interactive {
		cfg.Prompt = os.Stderr
	}
	return bridge.NewProcessor(cfg)
}

// newConnector builds the configured connector. The returned close function
// releases process resources only; it does not disconnect the device.
func newConnector(ctx context.Context, cfg ConnectorConfig, logger log.Logger) (device.Connector, func(), error) {
	noop := func() {}

	switch cfg.Kind {
	case ConnectorMock:
		logger.Warn("using the mock connector, no hardware device is involved", "label", cfg.MockLabel)
		return device.NewMockConnector(cfg.MockLabel), noop, nil
	case ConnectorUSB:
		coins, err := ethusb.LoadCoins(cfg.ConfigDirPath)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to load coins: %w", err)
		}
		return ethusb.NewConnector(&ethusb.TrezorHub{}, coins, logger), noop, nil
	case ConnectorProcess:
		client, err := bridge.StartProcess(ctx, bridge.ProcessConfig{
			Command: cfg.Command,
			Args:    cfg.Args,
		}, logger.WithName("connector-process"))
		if err != nil {
			return nil, noop, err
		}
		cc := bridge.NewClientConnector(client)
		closeProcess := func() {
			if err := cc.Close(); err != nil {
				logger.Debug("connector process exited", "error", err)
			}
		}
		return cc, closeProcess, nil
	default:
		return nil, noop, fmt.Errorf("invalid connector kind: %q", cfg.Kind)
	}
}

func startMetricsServer(addr string, logger log.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	metricsEndpoint := "/metrics"
	metricsMux := http.NewServeMux()
	metricsMux.Handle(metricsEndpoint, promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    addr,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("Prometheus metrics available", "listenAddr", addr, "endpoint", metricsEndpoint)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failure", "error", err)
		}
	}()
	return metricsServer
}
