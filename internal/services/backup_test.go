package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupRunWritesEveryCollection(t *testing.T) {
	store := newMemStore()
	store.tables["rooms"] = []map[string]interface{}{{"room_number": "101", "capacity": 2}}
	dir := t.TempDir()
	exporter := NewBackupExporter(store, dir, WithBackupClock(fixedClock))

	target, err := exporter.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-03-04T09-30-00Z"), target)

	for _, collection := range BackupCollections {
		_, err := os.Stat(filepath.Join(target, collection+".json"))
		assert.NoError(t, err, collection)
	}

	raw, err := os.ReadFile(filepath.Join(target, "rooms.json"))
	require.NoError(t, err)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "101", rows[0]["room_number"])

	raw, err = os.ReadFile(filepath.Join(target, "payments.json"))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestBackupRunReportsFailedCollection(t *testing.T) {
	store := newMemStore()
	store.failTable = "tasks"
	exporter := NewBackupExporter(store, t.TempDir(), WithBackupClock(fixedClock))

	_, err := exporter.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump tasks")
}

func TestBackupPurgeRemovesExpiredRuns(t *testing.T) {
	dir := t.TempDir()
	exporter := NewBackupExporter(newMemStore(), dir, WithBackupRetention(24*time.Hour))
	old := filepath.Join(dir, "old-run")
	fresh := filepath.Join(dir, "fresh-run")
	require.NoError(t, os.MkdirAll(old, 0o755))
	require.NoError(t, os.MkdirAll(fresh, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644))

	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))

	removed, err := exporter.Purge(now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestBackupScheduleRejectsBadSpec(t *testing.T) {
	exporter := NewBackupExporter(newMemStore(), t.TempDir())
	_, err := exporter.Schedule(context.Background(), "not a cron spec")
	assert.Error(t, err)

	scheduler, err := exporter.Schedule(context.Background(), "")
	require.NoError(t, err)
	<-scheduler.Stop().Done()
}
