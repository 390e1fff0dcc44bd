package main

import (
	"embed"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

//go:embed config/migrations/*/*.sql
var embedMigrations embed.FS

// DatabaseConfig configures the command audit database. The audit trail is
// disabled while Driver is empty.
//
// To connect to Postgresql you need to fill out all the connection fields.
// To connect to sqlite, specify the "sqlite" driver and the file in
// HWBRIDGE_DATABASE_NAME; an empty name uses an in-memory database.
type DatabaseConfig struct {
	URL      string `env:"HWBRIDGE_DATABASE_URL" env-default:""`
	Name     string `env:"HWBRIDGE_DATABASE_NAME" env-default:""`
	Schema   string `env:"HWBRIDGE_DATABASE_SCHEMA" env-default:""`
	Driver   string `env:"HWBRIDGE_DATABASE_DRIVER" env-default:""`
	Username string `env:"HWBRIDGE_DATABASE_USERNAME" env-default:"postgres"`
	Password string `env:"HWBRIDGE_DATABASE_PASSWORD" env-default:""`
	Host     string `env:"HWBRIDGE_DATABASE_HOST" env-default:"localhost"`
	Port     string `env:"HWBRIDGE_DATABASE_PORT" env-default:"5432"`
}

// Enabled reports whether an audit database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Driver != ""
}

// ParseConnectionString parses a "file:" sqlite path or a PostgreSQL URI.
func ParseConnectionString(connStr string) (DatabaseConfig, error) {
	if strings.HasPrefix(connStr, "file:") {
		name, _, _ := strings.Cut(connStr[len("file:"):], "?")
		return DatabaseConfig{
			Name:   name,
			Driver: "sqlite",
		}, nil
	}

	parsedURL, err := url.Parse(connStr)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid connection string: %w", err)
	}
	if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}

	var username, password string
	if user := parsedURL.User; user != nil {
		username = user.Username()
		password, _ = user.Password()
	}

	port := parsedURL.Port()
	if port == "" {
		port = "5432"
	} else if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid port: %s", port)
	}

	return DatabaseConfig{
		Name:     strings.TrimPrefix(parsedURL.Path, "/"),
		Schema:   parsedURL.Query().Get("search_path"),
		Driver:   "postgres",
		Username: username,
		Password: password,
		Host:     parsedURL.Hostname(),
		Port:     port,
	}, nil
}

// ConnectToDB opens the audit database and brings its schema up to date.
func ConnectToDB(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	lg = lg.WithName("database")

	switch cnf.Driver {
	case "postgres":
		return connectToPostgresql(cnf, lg)
	case "sqlite", "":
		return connectToSqlite(cnf, lg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}
}

func connectToPostgresql(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	lg.Info("connecting to Postgresql", "host", cnf.Host, "name", cnf.Name, "schema", cnf.Schema)

	db, err := gorm.Open(postgres.Open(postgresqlDSN(cnf)), gormConfig(cnf))
	if err != nil {
		return nil, err
	}

	if cnf.Schema != "" {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", cnf.Schema)).Error; err != nil {
			return nil, fmt.Errorf("failed to ensure Postgresql schema: %w", err)
		}
	}

	if err := migratePostgres(db, lg); err != nil {
		return nil, fmt.Errorf("failed to apply Postgresql migrations: %w", err)
	}
	return db, nil
}

func connectToSqlite(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	var dsn string
	if cnf.Name != "" {
		lg.Info("connecting to sqlite", "name", cnf.Name)
		dsn = fmt.Sprintf("file:%s?cache=shared", cnf.Name)
	} else {
		lg.Info("connecting to in-memory sqlite")
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cnf))
	if err != nil {
		return nil, err
	}

	if err := migrateSqlite(db); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	lg.Debug("sqlite auto-migrated")
	return db, nil
}

func gormConfig(cnf DatabaseConfig) *gorm.Config {
	conf := &gorm.Config{
		// gorm's default logger prints to stdout, which carries protocol lines.
		Logger: logger.Discard,
	}
	if cnf.Schema != "" {
		conf.NamingStrategy = schema.NamingStrategy{
			TablePrefix: cnf.Schema + ".",
		}
	}
	return conf
}

func postgresqlDSN(cnf DatabaseConfig) string {
	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cnf.Username, cnf.Password, cnf.Host, cnf.Port, cnf.Name,
	)
	if cnf.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, cnf.Schema)
	}
	return dsn
}

func migratePostgres(db *gorm.DB, lg log.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{lg})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	lg.Info("applying database migrations")
	if err := goose.Up(sqlDB, "config/migrations/postgres"); err != nil {
		return err
	}
	return nil
}

func migrateSqlite(db *gorm.DB) error {
	return db.AutoMigrate(&CommandRecord{})
}

// gooseLogger routes goose output to the application logger, keeping stdout
// free for protocol lines.
type gooseLogger struct {
	lg log.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.lg.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.lg.Fatal(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
