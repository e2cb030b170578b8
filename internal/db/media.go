package db

import (
	"context"
	"encoding/json"
	"fmt"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"
)

func (s *Store) InsertMediaAsset(ctx context.Context, asset models.MediaAsset) error {
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO media_assets (id, owner_id, bucket, storage_key, filename, content_type, size_bytes, sha256, created_at)
VALUES (:id, :owner_id, :bucket, :storage_key, :filename, :content_type, :size_bytes, :sha256, :created_at)`, asset)
	return mapError(err)
}

func (s *Store) FindMediaAsset(ctx context.Context, id string) (models.MediaAsset, error) {
	var asset models.MediaAsset
	err := s.db.GetContext(ctx, &asset, `
SELECT id, owner_id, bucket, storage_key, filename, content_type, size_bytes, sha256, created_at
FROM media_assets WHERE id = $1`, id)
	return asset, err
}

func (s *Store) DeleteMediaAsset(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM media_assets WHERE id = $1`, id)
	return err
}

// DumpTable reads a whole backup collection. Only names from
// services.BackupCollections are accepted.
func (s *Store) DumpTable(ctx context.Context, table string) ([]map[string]interface{}, error) {
	if !allowedTable(table) {
		return nil, fmt.Errorf("dump: unknown table %q", table)
	}
	rows, err := s.db.QueryxContext(ctx, `SELECT * FROM `+table+` ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]interface{}{}
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		for key, value := range row {
			if raw, ok := value.([]byte); ok {
				if json.Valid(raw) {
					row[key] = json.RawMessage(raw)
				} else {
					row[key] = string(raw)
				}
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func allowedTable(table string) bool {
	for _, name := range services.BackupCollections {
		if name == table {
			return true
		}
	}
	return false
}
