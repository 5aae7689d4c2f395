// Package catalog keeps a local SQLite ledger of archive products: every
// product seen by a search and every download made from it. The ledger
// lets tools answer "what do we have, and where" without going back to
// the archive.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/swxlab/swxkit/internal/dataaccess"
)

// Record is one product row in the ledger. LocalPath and FetchedAt stay
// zero until the product has been downloaded.
type Record struct {
	Key        string
	Bucket     string
	Instrument string
	Level      string
	Version    string
	StartTime  time.Time
	Size       int64
	ETag       string
	LocalPath  string
	FetchedAt  time.Time
}

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS products (
		key        TEXT NOT NULL,
		bucket     TEXT NOT NULL,
		instrument TEXT NOT NULL,
		level      TEXT NOT NULL,
		version    TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		size       INTEGER NOT NULL,
		etag       TEXT NOT NULL,
		local_path TEXT,
		fetched_at INTEGER,
		PRIMARY KEY (bucket, key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_lookup
		ON products (instrument, level, start_time)`,
}

// Catalog is a SQLite-backed product ledger. Writes go through a single
// connection; reads use a concurrent read-only pool.
type Catalog struct {
	db     *sql.DB
	readDB *sql.DB
	mu     sync.Mutex

	upsertStmt *sql.Stmt
	log        zerolog.Logger
}

// Open opens or creates the ledger at dbPath.
func Open(dbPath string, log zerolog.Logger) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	c := &Catalog{
		db:     db,
		readDB: readDB,
		log:    log.With().Str("component", "catalog").Logger(),
	}

	for _, stmt := range schemaSQL {
		if _, err := db.Exec(stmt); err != nil {
			c.Close()
			return nil, fmt.Errorf("catalog: initialize schema: %w", err)
		}
	}

	c.upsertStmt, err = db.Prepare(`
		INSERT INTO products (
			key, bucket, instrument, level, version,
			start_time, size, etag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bucket, key) DO UPDATE SET
			size = excluded.size,
			etag = excluded.etag`)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("catalog: prepare upsert: %w", err)
	}

	return c, nil
}

// RecordSearch upserts every parsed search result. Size and etag refresh
// on conflict; download state is preserved. Results whose keys did not
// parse are skipped.
func (c *Catalog) RecordSearch(ctx context.Context, results []dataaccess.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin transaction: %w", err)
	}
	defer tx.Rollback()

	recorded := 0
	stmt := tx.StmtContext(ctx, c.upsertStmt)
	for _, r := range results {
		if !r.Parsed {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			r.Key, r.Bucket, r.Fields.Instrument, r.Fields.Level, r.Fields.Version,
			r.Fields.Time.Unix(), r.Size, r.ETag,
		)
		if err != nil {
			return fmt.Errorf("catalog: upsert product %s: %w", r.Key, err)
		}
		recorded++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit search results: %w", err)
	}

	c.log.Debug().Int("recorded", recorded).Msg("recorded search results")
	return nil
}

// RecordDownload marks a product as downloaded to localPath.
func (c *Catalog) RecordDownload(ctx context.Context, bucket, key, localPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.ExecContext(ctx,
		`UPDATE products SET local_path = ?, fetched_at = ? WHERE bucket = ? AND key = ?`,
		localPath, time.Now().Unix(), bucket, key,
	)
	if err != nil {
		return fmt.Errorf("catalog: record download of %s: %w", key, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("catalog: product %s in bucket %s not in ledger", key, bucket)
	}
	return nil
}

// Find returns products matching the instrument, level, and time window,
// ordered by start time. Empty instrument or level matches everything;
// zero times leave that side of the window open.
func (c *Catalog) Find(ctx context.Context, instrument, level string, start, end time.Time) ([]Record, error) {
	query := `
		SELECT key, bucket, instrument, level, version,
			start_time, size, etag, local_path, fetched_at
		FROM products
		WHERE 1=1`
	var args []interface{}

	if instrument != "" {
		query += " AND instrument = ?"
		args = append(args, instrument)
	}
	if level != "" {
		query += " AND level = ?"
		args = append(args, level)
	}
	if !start.IsZero() {
		query += " AND start_time >= ?"
		args = append(args, start.Unix())
	}
	if !end.IsZero() {
		query += " AND start_time <= ?"
		args = append(args, end.Unix())
	}
	query += " ORDER BY start_time ASC"

	rows, err := c.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query products: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate products: %w", err)
	}
	return records, nil
}

// Downloaded returns every product that has a local copy.
func (c *Catalog) Downloaded(ctx context.Context) ([]Record, error) {
	rows, err := c.readDB.QueryContext(ctx, `
		SELECT key, bucket, instrument, level, version,
			start_time, size, etag, local_path, fetched_at
		FROM products
		WHERE local_path IS NOT NULL
		ORDER BY fetched_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: query downloads: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate downloads: %w", err)
	}
	return records, nil
}

// Count returns the number of products in the ledger.
func (c *Catalog) Count(ctx context.Context) (int64, error) {
	var count int64
	err := c.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("catalog: count products: %w", err)
	}
	return count, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var startUnix int64
	var localPath sql.NullString
	var fetchedUnix sql.NullInt64

	err := rows.Scan(
		&rec.Key, &rec.Bucket, &rec.Instrument, &rec.Level, &rec.Version,
		&startUnix, &rec.Size, &rec.ETag, &localPath, &fetchedUnix,
	)
	if err != nil {
		return Record{}, fmt.Errorf("catalog: scan product: %w", err)
	}

	rec.StartTime = time.Unix(startUnix, 0).UTC()
	if localPath.Valid {
		rec.LocalPath = localPath.String
	}
	if fetchedUnix.Valid {
		rec.FetchedAt = time.Unix(fetchedUnix.Int64, 0).UTC()
	}
	return rec, nil
}

// Close closes the ledger connections.
func (c *Catalog) Close() error {
	if c.upsertStmt != nil {
		c.upsertStmt.Close()
	}
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}
