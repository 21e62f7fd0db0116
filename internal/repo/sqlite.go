package repo

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dbPath string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite serialises writers itself; a single connection keeps :memory: dbs shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteRepo{db: db}
	if err := repo.init(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepo) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversions (
		source_path TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		mod_time INTEGER NOT NULL,
		output_path TEXT NOT NULL,
		converter TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create conversions table: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) SaveConversion(c *Conversion) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	query := `INSERT INTO conversions (source_path, size, mod_time, output_path, converter, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_path) DO UPDATE SET
			size = excluded.size,
			mod_time = excluded.mod_time,
			output_path = excluded.output_path,
			converter = excluded.converter,
			created_at = excluded.created_at`
	_, err := r.db.Exec(query, c.SourcePath, c.Size, c.ModTime.UnixNano(), c.OutputPath, c.Converter, c.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save conversion: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) GetConversion(sourcePath string) (*Conversion, error) {
	query := `SELECT size, mod_time, output_path, converter, created_at FROM conversions WHERE source_path = ?`
	row := r.db.QueryRow(query, sourcePath)

	c := &Conversion{SourcePath: sourcePath}
	var modTime, createdAt int64
	err := row.Scan(&c.Size, &modTime, &c.OutputPath, &c.Converter, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion: %w", err)
	}
	c.ModTime = time.Unix(0, modTime)
	c.CreatedAt = time.Unix(0, createdAt)
	return c, nil
}

func (r *SQLiteRepo) DeleteConversion(sourcePath string) error {
	if _, err := r.db.Exec(`DELETE FROM conversions WHERE source_path = ?`, sourcePath); err != nil {
		return fmt.Errorf("failed to delete conversion: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) ListConversions() ([]*Conversion, error) {
	rows, err := r.db.Query(`SELECT source_path, size, mod_time, output_path, converter, created_at FROM conversions ORDER BY source_path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	defer rows.Close()

	var out []*Conversion
	for rows.Next() {
		c := &Conversion{}
		var modTime, createdAt int64
		if err := rows.Scan(&c.SourcePath, &c.Size, &modTime, &c.OutputPath, &c.Converter, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		c.ModTime = time.Unix(0, modTime)
		c.CreatedAt = time.Unix(0, createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}
