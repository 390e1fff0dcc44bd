package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/nitrolite/hwbridge/pkg/device"
)

func TestProtocolCommandsMatchRoutes(t *testing.T) {
	t.Parallel()

	p, _ := setupTestRouter(t, device.NewMockConnector("alice"))

	names := protocolCommandNames()
	sort.Strings(names)
	assert.Equal(t, p.Commands(), names)
}

func TestRenderCommands(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderCommands(&out)

	for _, c := range protocolCommands {
		assert.Contains(t, out.String(), c.Example)
	}
}

func TestParseHistoryArgs(t *testing.T) {
	t.Parallel()

	command, options, err := parseHistoryArgs(nil)
	require.NoError(t, err)
	assert.Nil(t, command)
	assert.Equal(t, uint32(0), options.Limit)

	command, options, err = parseHistoryArgs([]string{"getaddr", "50"})
	require.NoError(t, err)
	require.NotNil(t, command)
	assert.Equal(t, "getaddr", *command)
	assert.Equal(t, uint32(50), options.Limit)

	command, options, err = parseHistoryArgs([]string{"5"})
	require.NoError(t, err)
	assert.Nil(t, command)
	assert.Equal(t, uint32(5), options.Limit)

	_, _, err = parseHistoryArgs([]string{"init", "close"})
	assert.Error(t, err)

	_, _, err = parseHistoryArgs([]string{"init", "1", "2"})
	assert.Error(t, err)
}

func TestRenderHistory(t *testing.T) {
	t.Parallel()

	records := []CommandRecord{
		{ID: 2, Command: CommandGetFeatures, Success: false, Error: "Not initialized. Run 'init' first.", CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)},
		{ID: 1, Command: "", Success: false, Error: "Invalid JSON: unexpected end of JSON input", DurationMs: 1},
	}

	var out bytes.Buffer
	renderHistory(&out, records, 7)

	assert.Contains(t, out.String(), "2026-10-01T12:00:00Z")
	assert.Contains(t, out.String(), "Not initialized. Run 'init' first.")
	assert.Contains(t, out.String(), "2 of 7")
}

func TestHistoryExporter(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCommandLogStore(db)
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Store(ctx, testEvent(CommandInit, true, base)))
	require.NoError(t, store.Store(ctx, testEvent(CommandGetAddr, false, base.Add(time.Minute))))

	exporter := NewHistoryExporter(store)

	var out bytes.Buffer
	require.NoError(t, exporter.ExportToCSV(ctx, &out, nil))
	rows, err := csv.NewReader(strings.NewReader(out.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "RequestID", rows[0][1])
	assert.Equal(t, CommandInit, rows[1][2])
	assert.Equal(t, "true", rows[1][3])
	assert.Equal(t, CommandGetAddr, rows[2][2])
	assert.Equal(t, "{}", rows[2][6])
	assert.Equal(t, "1500", rows[2][7])

	dir := filepath.Join(t.TempDir(), "exports")
	getaddr := CommandGetAddr
	fileName, err := exporter.ExportToFile(ctx, dir, &getaddr)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "command_history_getaddr.csv"), fileName)

	data, err := os.ReadFile(fileName)
	require.NoError(t, err)
	rows, err = csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestOpenCommandLogStore_NotConfigured(t *testing.T) {
	t.Parallel()

	_, err := openCommandLogStore(&Config{}, nil)
	assert.ErrorContains(t, err, "audit database is not configured")
}
