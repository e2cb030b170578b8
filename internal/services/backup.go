package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBackupSchedule  = "*/10 * * * *"
	DefaultBackupRetention = 7 * 24 * time.Hour
	backupStampLayout      = "2006-01-02T15-04-05Z"
)

// BackupCollections are exported on every run, one file each.
var BackupCollections = []string{
	"accounts",
	"payments",
	"tasks",
	"attendance_logs",
	"rooms",
	"announcements",
	"notifications",
	"audit_logs",
	"media_assets",
}

// BackupSource reads every row of a table as column/value maps.
type BackupSource interface {
	DumpTable(ctx context.Context, table string) ([]map[string]interface{}, error)
}

type BackupExporter struct {
	source      BackupSource
	dir         string
	retention   time.Duration
	collections []string
	now         func() time.Time
}

type BackupOption func(*BackupExporter)

func WithBackupClock(clock func() time.Time) BackupOption {
	return func(e *BackupExporter) {
		if clock != nil {
			e.now = clock
		}
	}
}

func WithBackupRetention(retention time.Duration) BackupOption {
	return func(e *BackupExporter) {
		if retention > 0 {
			e.retention = retention
		}
	}
}

func NewBackupExporter(source BackupSource, dir string, opts ...BackupOption) *BackupExporter {
	e := &BackupExporter{
		source:      source,
		dir:         dir,
		retention:   DefaultBackupRetention,
		collections: BackupCollections,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run writes one timestamped directory and then purges expired runs.
func (e *BackupExporter) Run(ctx context.Context) (string, error) {
	started := e.now().UTC()
	target := filepath.Join(e.dir, started.Format(backupStampLayout))
	if err := os.MkdirAll(target, 0o755); err != nil {
		backupRuns.WithLabelValues("failure").Inc()
		return "", WrapError(err, "create backup dir")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for _, collection := range e.collections {
		collection := collection
		g.Go(func() error {
			return e.exportCollection(gctx, target, collection)
		})
	}
	if err := g.Wait(); err != nil {
		backupRuns.WithLabelValues("failure").Inc()
		return target, err
	}
	backupRuns.WithLabelValues("success").Inc()

	removed, err := e.Purge(started)
	if err != nil {
		log.Printf("backup purge: %v", err)
	}
	log.Printf("backup written to %s in %s (%d old runs removed)", target, e.now().UTC().Sub(started).Round(time.Millisecond), removed)
	return target, nil
}

func (e *BackupExporter) exportCollection(ctx context.Context, target, collection string) error {
	rows, err := e.source.DumpTable(ctx, collection)
	if err != nil {
		return WrapError(err, "dump "+collection)
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return WrapError(err, "encode "+collection)
	}
	path := filepath.Join(target, collection+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return WrapError(err, "write "+collection)
	}
	return nil
}

// Purge removes run directories whose modification time is older than the
// retention window.
func (e *BackupExporter) Purge(now time.Time) (int, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := now.Add(-e.retention)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(e.dir, entry.Name())); err != nil {
				return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
			}
			removed++
		}
	}
	return removed, nil
}

// Schedule runs the exporter on a cron spec until the returned scheduler is
// stopped.
func (e *BackupExporter) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultBackupSchedule
	}
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if _, err := e.Run(runCtx); err != nil {
			log.Printf("backup run failed: %v", err)
		}
	})
	if err != nil {
		return nil, WrapError(err, "backup schedule")
	}
	scheduler.Start()
	return scheduler, nil
}
