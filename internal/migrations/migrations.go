package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed sql/*.sql
var embedded embed.FS

// Files holds the bundled schema migrations.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

type migration struct {
	Name    string
	Version string
}

// Apply runs every migration in fsys that is not recorded in
// schema_migrations, ordered by its V<n>__ prefix.
func Apply(ctx context.Context, db *sqlx.DB, fsys fs.FS) error {
	if err := ensureTable(ctx, db); err != nil {
		return err
	}
	migs, err := listMigrations(fsys)
	if err != nil {
		return err
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	for _, mig := range migs {
		if applied[mig.Name] || (mig.Version != "" && applied["V"+mig.Version]) {
			continue
		}
		if err := applyMigration(ctx, db, fsys, mig); err != nil {
			return err
		}
		log.Printf("applied migration %s", mig.Name)
	}
	return nil
}

func ensureTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  id SERIAL PRIMARY KEY,
  version TEXT NULL,
  name TEXT NOT NULL UNIQUE,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	return err
}

func listMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	migs := make([]migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		migs = append(migs, migration{Name: entry.Name(), Version: parseVersion(entry.Name())})
	}
	sort.Slice(migs, func(i, j int) bool {
		iVersion, iOk := parseVersionNumber(migs[i].Name)
		jVersion, jOk := parseVersionNumber(migs[j].Name)
		switch {
		case iOk && jOk && iVersion != jVersion:
			return iVersion < jVersion
		case iOk != jOk:
			return iOk
		default:
			return migs[i].Name < migs[j].Name
		}
	})
	return migs, nil
}

// appliedVersions keys recorded rows by name and by "V<version>".
func appliedVersions(ctx context.Context, db *sqlx.DB) (map[string]bool, error) {
	rows := []struct {
		Name    string  `db:"name"`
		Version *string `db:"version"`
	}{}
	if err := db.SelectContext(ctx, &rows, `SELECT name, version FROM schema_migrations`); err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(rows)*2)
	for _, row := range rows {
		applied[row.Name] = true
		if row.Version != nil {
			applied["V"+*row.Version] = true
		}
	}
	return applied, nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, fsys fs.FS, mig migration) error {
	content, err := fs.ReadFile(fsys, path.Clean(mig.Name))
	if err != nil {
		return err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("apply %s: %w", mig.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, nullIfEmpty(mig.Version), mig.Name); err != nil {
		return fmt.Errorf("record %s: %w", mig.Name, err)
	}
	return tx.Commit()
}

func parseVersion(name string) string {
	if !strings.HasPrefix(name, "V") {
		return ""
	}
	parts := strings.SplitN(name[1:], "__", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[0])
}

func parseVersionNumber(name string) (int, bool) {
	raw := parseVersion(name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

func nullIfEmpty(value string) interface{} {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
