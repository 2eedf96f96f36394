package symbols

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Symbol is one extracted declaration (function, type, class, ...).
type Symbol struct {
	Name      string
	Kind      string
	FilePath  string
	Line      int
	Signature string
}

// db wraps the SQLite store backing the symbol and dependency tables.
type db struct {
	conn *sql.DB
}

func openDB(ctx context.Context, path string) (*db, error) {
	// WAL allows the watcher goroutine to read while a tool call writes.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol database: %w", err)
	}

	// SQLite tolerates a single writer; keep one connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping symbol database: %w", err)
	}

	d := &db{conn: conn}
	if err := d.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize symbol schema: %w", err)
	}
	return d, nil
}

func (d *db) Close() error {
	return d.conn.Close()
}

func (d *db) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		path       TEXT PRIMARY KEY,
		lang       TEXT NOT NULL,
		hash       TEXT NOT NULL,
		mtime_unix INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS symbols (
		file_path TEXT NOT NULL,
		name      TEXT NOT NULL,
		kind      TEXT NOT NULL,
		line      INTEGER NOT NULL,
		signature TEXT NOT NULL,
		FOREIGN KEY (file_path) REFERENCES files(path) ON DELETE CASCADE
	);

	-- One row per (importer, imported) file edge.
	CREATE TABLE IF NOT EXISTS deps (
		file_path TEXT NOT NULL,
		dep_path  TEXT NOT NULL,
		UNIQUE (file_path, dep_path)
	);

	CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path);
	CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
	CREATE INDEX IF NOT EXISTS idx_deps_file ON deps(file_path);
	CREATE INDEX IF NOT EXISTS idx_deps_dep ON deps(dep_path);
	`
	_, err := d.conn.ExecContext(ctx, schema)
	return err
}

// upsertFile replaces the file row and all derived rows in one transaction,
// which makes re-indexing the same content a no-op in effect.
func (d *db) upsertFile(ctx context.Context, path, lang, hash string, mtime int64, syms []Symbol, deps []string) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO files (path, lang, hash, mtime_unix) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET lang = excluded.lang, hash = excluded.hash, mtime_unix = excluded.mtime_unix
	`, path, lang, hash, mtime); err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_path = ?`, path); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM deps WHERE file_path = ?`, path); err != nil {
		return err
	}

	for _, s := range syms {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO symbols (file_path, name, kind, line, signature) VALUES (?, ?, ?, ?, ?)
		`, path, s.Name, s.Kind, s.Line, s.Signature); err != nil {
			return fmt.Errorf("failed to insert symbol %s: %w", s.Name, err)
		}
	}
	for _, dep := range deps {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO deps (file_path, dep_path) VALUES (?, ?)
		`, path, dep); err != nil {
			return fmt.Errorf("failed to insert dep edge: %w", err)
		}
	}

	return tx.Commit()
}

func (d *db) removeFile(ctx context.Context, path string) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM symbols WHERE file_path = ?`,
		`DELETE FROM deps WHERE file_path = ?`,
		`DELETE FROM files WHERE path = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, path); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *db) fileHash(ctx context.Context, path string) (string, bool) {
	var hash string
	err := d.conn.QueryRowContext(ctx, `SELECT hash FROM files WHERE path = ?`, path).Scan(&hash)
	if err != nil {
		return "", false
	}
	return hash, true
}

// dependents returns the paths of files whose recorded deps include path.
func (d *db) dependents(ctx context.Context, path string) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT DISTINCT file_path FROM deps WHERE dep_path = ? ORDER BY file_path
	`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// dependencies returns the paths path imports.
func (d *db) dependencies(ctx context.Context, path string) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT dep_path FROM deps WHERE file_path = ? ORDER BY dep_path
	`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// lookup finds symbols by exact name or substring match.
func (d *db) lookup(ctx context.Context, name string, limit int) ([]Symbol, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT file_path, name, kind, line, signature FROM symbols
		WHERE name = ? OR name LIKE ?
		ORDER BY CASE WHEN name = ? THEN 0 ELSE 1 END, file_path, line
		LIMIT ?
	`, name, "%"+name+"%", name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var s Symbol
		if err := rows.Scan(&s.FilePath, &s.Name, &s.Kind, &s.Line, &s.Signature); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// symbolsForFile returns all symbols declared in one file.
func (d *db) symbolsForFile(ctx context.Context, path string) ([]Symbol, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT file_path, name, kind, line, signature FROM symbols
		WHERE file_path = ? ORDER BY line
	`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var s Symbol
		if err := rows.Scan(&s.FilePath, &s.Name, &s.Kind, &s.Line, &s.Signature); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// allPaths returns every indexed file path.
func (d *db) allPaths(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT path FROM files ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
