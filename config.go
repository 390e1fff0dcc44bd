package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

type ConnectorKind string

const (
	ConnectorMock    ConnectorKind = "mock"
	ConnectorProcess ConnectorKind = "process"
	ConnectorUSB     ConnectorKind = "usb"
)

const (
	configDirPathEnv     = "HWBRIDGE_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
)

// ConnectorConfig selects and configures the device connector.
type ConnectorConfig struct {
	// Kind defaults to usb, which cannot send a host-entered PIN. PIN-protected
	// devices that ask the host for the PIN need the process connector.
	Kind ConnectorKind `env:"HWBRIDGE_CONNECTOR" env-default:"usb"`
	// Command and Args start a Trezor Connect helper speaking the same line protocol.
	Command string   `env:"HWBRIDGE_CONNECTOR_COMMAND"`
	Args    []string `env:"HWBRIDGE_CONNECTOR_ARGS" env-separator:" "`
	// ConfigDirPath holds coins.yaml for the usb connector.
	ConfigDirPath string `env:"HWBRIDGE_CONFIG_DIR_PATH" env-default:"."`
	// MockLabel names the simulated device of the mock connector.
	MockLabel string `env:"HWBRIDGE_MOCK_LABEL" env-default:"hwbridge mock"`
}

// Config represents the overall application configuration
type Config struct {
	Log       log.Config
	Connector ConnectorConfig
	Database  DatabaseConfig

	// CommandTimeout bounds every command when positive. Device confirmations
	// wait forever by default.
	CommandTimeout time.Duration `env:"HWBRIDGE_COMMAND_TIMEOUT" env-default:"0s"`
	// AuditTimeout bounds each audit write so a slow database cannot hold back
	// protocol responses.
	AuditTimeout time.Duration `env:"HWBRIDGE_AUDIT_TIMEOUT" env-default:"2s"`
	// MetricsAddr enables the Prometheus listener, e.g. ":4242".
	MetricsAddr string `env:"HWBRIDGE_METRICS_ADDR"`
}

// LoadDotEnv loads the .env file of the config directory into the process
// environment. Variables already set in the environment win.
func LoadDotEnv() (string, error) {
	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	path := filepath.Join(configDirPath, ".env")
	return path, godotenv.Load(path)
}

// LoadConfig builds configuration from environment variables
func LoadConfig() (*Config, error) {
	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if config.Database.URL != "" {
		dbConf, err := ParseConnectionString(config.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connection string: %w", err)
		}
		config.Database = dbConf
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Connector.Kind {
	case ConnectorMock, ConnectorUSB:
	case ConnectorProcess:
		if c.Connector.Command == "" {
			return fmt.Errorf("HWBRIDGE_CONNECTOR_COMMAND is required for the %s connector", ConnectorProcess)
		}
	default:
		return fmt.Errorf("invalid HWBRIDGE_CONNECTOR value: %q", c.Connector.Kind)
	}

	if c.CommandTimeout < 0 {
		return fmt.Errorf("HWBRIDGE_COMMAND_TIMEOUT cannot be negative: %s", c.CommandTimeout)
	}
	if c.AuditTimeout < 0 {
		return fmt.Errorf("HWBRIDGE_AUDIT_TIMEOUT cannot be negative: %s", c.AuditTimeout)
	}
	return nil
}
