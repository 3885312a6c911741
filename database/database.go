// Package database implements the persistent asset store on SQLite. The
// store is the sole owner of record identity: ids are assigned on insert
// and GetAll preserves insertion order, which the ranker relies on for
// stable tie-breaks.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"imagedex/logging"
	"imagedex/types"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS assets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_name TEXT NOT NULL,
	file_path TEXT,
	file_size INTEGER NOT NULL,
	modified_at TEXT,
	width INTEGER,
	height INTEGER,
	thumbnail BLOB,
	fingerprint INTEGER
);
CREATE INDEX IF NOT EXISTS idx_assets_name_size ON assets(file_name, file_size);
CREATE TABLE IF NOT EXISTS asset_tags (
	asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
	tag TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_asset_tags_tag ON asset_tags(tag);
CREATE INDEX IF NOT EXISTS idx_asset_tags_asset ON asset_tags(asset_id);`

// SQLiteStore persists asset records and their tag index in a single
// SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the store at dbPath.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("cannot open database %s: %v", dbPath, err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize schema: %v", err)
	}

	logging.DebugLog("Opened asset store at %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Add inserts a record and its tags in one transaction, assigning and
// returning the new id. The record's ID field is updated in place.
func (s *SQLiteStore) Add(rec *types.AssetRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("cannot begin transaction: %v", err)
	}
	defer tx.Rollback()

	var fp interface{}
	if rec.Fingerprint != nil {
		fp = int64(uint64(*rec.Fingerprint))
	}

	res, err := tx.Exec(`
		INSERT INTO assets (file_name, file_path, file_size, modified_at, width, height, thumbnail, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FileName, rec.FilePath, rec.FileSize, rec.ModifiedAt.Format(time.RFC3339),
		rec.Width, rec.Height, rec.Thumbnail, fp,
	)
	if err != nil {
		return 0, fmt.Errorf("cannot insert asset %s: %v", rec.FileName, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("cannot read new asset id: %v", err)
	}

	for _, tag := range rec.Tags {
		if _, err := tx.Exec(`INSERT INTO asset_tags (asset_id, tag) VALUES (?, ?)`, id, tag); err != nil {
			return 0, fmt.Errorf("cannot index tag %q for asset %d: %v", tag, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cannot commit asset %s: %v", rec.FileName, err)
	}

	rec.ID = id
	return id, nil
}

// GetAll returns every record in insertion order, tags included.
func (s *SQLiteStore) GetAll() ([]*types.AssetRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, file_name, file_path, file_size, modified_at, width, height, thumbnail, fingerprint
		FROM assets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("cannot query assets: %v", err)
	}
	defer rows.Close()

	var records []*types.AssetRecord
	byID := make(map[int64]*types.AssetRecord)
	for rows.Next() {
		rec, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		byID[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot iterate assets: %v", err)
	}

	tagRows, err := s.db.Query(`SELECT asset_id, tag FROM asset_tags ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("cannot query tags: %v", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var id int64
		var tag string
		if err := tagRows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("cannot scan tag row: %v", err)
		}
		if rec, ok := byID[id]; ok {
			rec.Tags = append(rec.Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("cannot iterate tags: %v", err)
	}

	return records, nil
}

// FindByNameAndSize returns the first record matching (fileName, fileSize),
// or nil when none exists. The match is advisory: it skips re-processing of
// identical-looking files, it does not guarantee uniqueness.
func (s *SQLiteStore) FindByNameAndSize(fileName string, fileSize int64) (*types.AssetRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, file_name, file_path, file_size, modified_at, width, height, thumbnail, fingerprint
		FROM assets WHERE file_name = ? AND file_size = ? ORDER BY id LIMIT 1`,
		fileName, fileSize)

	rec, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tags, err := s.tagsFor(rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Tags = tags
	return rec, nil
}

// FindByTag returns the ids of all assets carrying the exact tag, in
// insertion order.
func (s *SQLiteStore) FindByTag(tag string) ([]int64, error) {
	rows, err := s.db.Query(`SELECT asset_id FROM asset_tags WHERE tag = ? ORDER BY asset_id`, tag)
	if err != nil {
		return nil, fmt.Errorf("cannot query tag %q: %v", tag, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("cannot scan tag match: %v", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a record; its tag rows cascade.
func (s *SQLiteStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("cannot delete asset %d: %v", id, err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM assets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cannot count assets: %v", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*types.AssetRecord, error) {
	var rec types.AssetRecord
	var modifiedAt string
	var fp sql.NullInt64

	err := row.Scan(&rec.ID, &rec.FileName, &rec.FilePath, &rec.FileSize,
		&modifiedAt, &rec.Width, &rec.Height, &rec.Thumbnail, &fp)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("cannot scan asset row: %v", err)
	}

	if t, err := time.Parse(time.RFC3339, modifiedAt); err == nil {
		rec.ModifiedAt = t
	}
	if fp.Valid {
		v := types.Fingerprint(uint64(fp.Int64))
		rec.Fingerprint = &v
	}
	return &rec, nil
}

func (s *SQLiteStore) tagsFor(id int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM asset_tags WHERE asset_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("cannot query tags for asset %d: %v", id, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("cannot scan tag: %v", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
