package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/eventlog"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestNewClient_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "events.log")

	client, err := NewClient(&configtypes.EventFileConfig{Enabled: true, Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close(context.Background())

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewClient_EmptyPath(t *testing.T) {
	_, err := NewClient(&configtypes.EventFileConfig{Enabled: true}, zap.NewNop())
	require.Error(t, err)
}

func TestBulkWrite_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	client, err := NewClient(&configtypes.EventFileConfig{Enabled: true, Path: path}, zap.NewNop())
	require.NoError(t, err)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	ctx := context.Background()
	require.NoError(t, client.BulkWrite(ctx, "user_events", []eventlog.Event{
		{"action": "view", "seq": 1},
		{"action": "click", "seq": 2},
	}))
	require.NoError(t, client.BulkWrite(ctx, "audit", []eventlog.Event{{"action": "login"}}))
	require.NoError(t, client.Close(ctx))

	records := readRecords(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, "user_events", records[0].Collection)
	assert.Equal(t, fixed, records[0].CreatedAt)
	assert.Equal(t, "view", records[0].Event["action"])
	assert.Equal(t, 2.0, records[1].Event["seq"])
	assert.Equal(t, "audit", records[2].Collection)
}

func TestBulkWrite_RejectsBadCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	client, err := NewClient(&configtypes.EventFileConfig{Enabled: true, Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close(context.Background())

	err = client.BulkWrite(context.Background(), "drop table;", []eventlog.Event{{"a": 1}})
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBulkWrite_UnencodableEventWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	client, err := NewClient(&configtypes.EventFileConfig{Enabled: true, Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close(context.Background())

	err = client.BulkWrite(context.Background(), "user_events", []eventlog.Event{
		{"ok": true},
		{"bad": make(chan int)},
	})
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
