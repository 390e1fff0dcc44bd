package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

// CommandInfo documents a protocol command for the startup banner and the
// commands subcommand.
type CommandInfo struct {
	Name        string
	Properties  string
	Description string
	Example     string
}

var protocolCommands = []CommandInfo{
	{CommandInit, "", "Initialize connection", `{"command": "init"}`},
	{CommandGetFeatures, "", "Get device features", `{"command": "getFeatures"}`},
	{CommandGetPK, "path, coin", "Get public key", `{"command": "getpk", "path": "m/44'/1'/0'/0", "coin": "Testnet"}`},
	{CommandGetAddr, "path, coin, showOnTrezor", "Get address", `{"command": "getaddr", "path": "m/44'/1'/0'/0/0", "coin": "Testnet", "showOnTrezor": true}`},
	{CommandClose, "", "Close connection", `{"command": "close"}`},
	{CommandExit, "", "Exit the program", `{"command": "exit"}`},
}

func protocolCommandNames() []string {
	names := make([]string, 0, len(protocolCommands))
	for _, c := range protocolCommands {
		names = append(names, c.Name)
	}
	return names
}

func renderCommands(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Command", "Properties", "Description", "Example"})
	t.AppendSeparator()
	for _, c := range protocolCommands {
		t.AppendRow(table.Row{c.Name, c.Properties, c.Description, c.Example})
	}
	t.Render()
}

func renderHistory(w io.Writer, records []CommandRecord, total int64) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Time", "Command", "Result", "Duration", "Error / Message"})
	t.AppendSeparator()

	for _, r := range records {
		command := r.Command
		if command == "" {
			command = "-"
		}
		result := "ok"
		detail := r.Message
		if !r.Success {
			result = "failed"
			detail = r.Error
		}
		duration := (time.Duration(r.DurationMs) * time.Millisecond).String()
		t.AppendRow(table.Row{r.ID, r.CreatedAt.UTC().Format(time.RFC3339), command, result, duration, detail})
	}
	t.AppendFooter(table.Row{"", "", "", "", "SHOWN", fmt.Sprintf("%d of %d", len(records), total)})
	t.Render()
}

// HistoryExporter writes the command audit trail as CSV.
type HistoryExporter struct {
	store *CommandLogStore
}

func NewHistoryExporter(store *CommandLogStore) *HistoryExporter {
	return &HistoryExporter{store: store}
}

// ExportToCSV writes every record matching command, oldest first.
func (e *HistoryExporter) ExportToCSV(ctx context.Context, writer io.Writer, command *string) error {
	csvWriter := csv.NewWriter(writer)

	header := []string{"ID", "RequestID", "Command", "Success", "Error", "Message", "Params", "DurationMs", "CreatedAt"}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write header to CSV: %w", err)
	}

	asc := SortTypeAscending
	options := &ListOptions{Limit: MaxLimit, Sort: &asc}
	for {
		records, err := e.store.List(ctx, command, options)
		if err != nil {
			return fmt.Errorf("failed to get command history: %w", err)
		}

		for _, r := range records {
			row := []string{
				strconv.FormatUint(uint64(r.ID), 10),
				r.RequestID,
				r.Command,
				strconv.FormatBool(r.Success),
				r.Error,
				r.Message,
				string(r.Params),
				strconv.FormatInt(r.DurationMs, 10),
				r.CreatedAt.UTC().Format(time.RFC3339Nano),
			}
			if err := csvWriter.Write(row); err != nil {
				return fmt.Errorf("failed to write row to CSV: %w", err)
			}
		}

		if len(records) < MaxLimit {
			break
		}
		options.Offset += MaxLimit
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ExportToFile writes the CSV export into outputDir and returns the file name.
func (e *HistoryExporter) ExportToFile(ctx context.Context, outputDir string, command *string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", outputDir, err)
	}

	suffix := "all"
	if command != nil {
		suffix = *command
	}
	fileName := filepath.Join(outputDir, fmt.Sprintf("command_history_%s.csv", suffix))
	file, err := os.Create(fileName)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file %s: %w", fileName, err)
	}
	defer file.Close()

	if err := e.ExportToCSV(ctx, file, command); err != nil {
		return "", fmt.Errorf("failed to export to CSV: %w", err)
	}
	return fileName, nil
}

// parseHistoryArgs reads "[command] [limit]" in either order: a numeric
// argument is the limit, anything else the command filter.
func parseHistoryArgs(args []string) (*string, *ListOptions, error) {
	if len(args) > 2 {
		return nil, nil, fmt.Errorf("too many arguments")
	}

	var command *string
	options := &ListOptions{}
	for _, arg := range args {
		if limit, err := strconv.ParseUint(arg, 10, 32); err == nil {
			options.Limit = uint32(limit)
			continue
		}
		if command != nil {
			return nil, nil, fmt.Errorf("more than one command filter given")
		}
		command = &arg
	}
	return command, options, nil
}

func openCommandLogStore(config *Config, logger log.Logger) (*CommandLogStore, error) {
	if !config.Database.Enabled() {
		return nil, fmt.Errorf("audit database is not configured, set HWBRIDGE_DATABASE_DRIVER or HWBRIDGE_DATABASE_URL")
	}

	db, err := ConnectToDB(config.Database, logger)
	if err != nil {
		return nil, err
	}
	return NewCommandLogStore(db), nil
}

func runCli(logger log.Logger, config *Config, args []string) {
	switch args[0] {
	case "commands":
		renderCommands(os.Stdout)
	case "history":
		runHistoryCli(logger.WithName("history"), config, args[1:])
	case "export-history":
		runExportHistoryCli(logger.WithName("export-history"), config, args[1:])
	default:
		logger.Fatal("Unknown CLI command", "name", args[0])
	}
}

func runHistoryCli(logger log.Logger, config *Config, args []string) {
	command, options, err := parseHistoryArgs(args)
	if err != nil {
		logger.Fatal("Usage: hwbridge history [command] [limit]", "error", err)
	}

	store, err := openCommandLogStore(config, logger)
	if err != nil {
		logger.Fatal("Failed to open command history", "error", err)
	}

	ctx := context.Background()
	records, err := store.List(ctx, command, options)
	if err != nil {
		logger.Fatal("Failed to list command history", "error", err)
	}
	total, err := store.Count(ctx, command)
	if err != nil {
		logger.Fatal("Failed to count command history", "error", err)
	}

	renderHistory(os.Stdout, records, total)
}

func runExportHistoryCli(logger log.Logger, config *Config, args []string) {
	if len(args) < 1 || len(args) > 2 {
		logger.Fatal("Usage: hwbridge export-history <outputDir> [command]")
	}

	var command *string
	if len(args) > 1 {
		command = &args[1]
	}

	store, err := openCommandLogStore(config, logger)
	if err != nil {
		logger.Fatal("Failed to open command history", "error", err)
	}

	fileName, err := NewHistoryExporter(store).ExportToFile(context.Background(), args[0], command)
	if err != nil {
		logger.Fatal("Failed to export command history", "error", err)
	}
	logger.Info("Command history exported", "file", fileName)
}
