package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nao1215/onionharvest/internal/model"
)

// dbFileName is the SQLite database file created inside the data directory.
const dbFileName = "onionharvest.db"

// timestampFormats lists the layouts SQLite may hand back for datetime
// columns, depending on how the value was written.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// HarvestDB wraps the SQLite database holding collected pages and run history.
type HarvestDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures how the database is opened.
type Options struct {
	// CreateIfNotExists creates the database file and schema when missing.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging. WAL is faster
	// for our insert-heavy workload and safe with a single writer.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens (and if requested, creates) the harvest database under dbDir.
//
// Design decision: modernc.org/sqlite is a pure-Go translation of SQLite,
// so we avoid CGo entirely. SQLite only supports one writer at a time, so
// the pool is pinned to a single connection; our workers funnel results
// through the main goroutine anyway.
func Open(dbDir string, opts Options) (*HarvestDB, error) {
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dbPath := filepath.Join(dbDir, dbFileName)

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.EnableWAL {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	h := &HarvestDB{db: db, dbPath: dbPath}
	if opts.CreateIfNotExists {
		if err := h.createTables(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return h, nil
}

// Close closes the underlying database handle.
func (h *HarvestDB) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Path returns the filesystem path of the database file.
func (h *HarvestDB) Path() string {
	return h.dbPath
}

// createTables creates the schema when it does not exist yet.
func (h *HarvestDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL UNIQUE,
		site TEXT NOT NULL,
		title TEXT NOT NULL,
		text TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		depth INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		links_found INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_pages_site ON pages(site);
	CREATE INDEX IF NOT EXISTS idx_pages_fingerprint ON pages(fingerprint);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		stats_json TEXT NOT NULL
	);
	`

	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// InsertResults stores collected pages, skipping addresses that are already
// present from an earlier run. It returns the number of rows actually
// inserted.
func (h *HarvestDB) InsertResults(ctx context.Context, results []*model.CrawlResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO pages
		(address, site, title, text, fingerprint, depth, elapsed_ms, links_found)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, r := range results {
		res, err := stmt.ExecContext(ctx,
			r.Address, r.Site, r.Title, r.Text, r.Fingerprint,
			r.Depth, r.Elapsed.Milliseconds(), r.LinksFound)
		if err != nil {
			return 0, fmt.Errorf("failed to insert page %s: %w", r.Address, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// KnownAddresses returns every page address stored so far. Resumed crawls
// seed the engine's visited set with this so past pages are not refetched.
func (h *HarvestDB) KnownAddresses(ctx context.Context) (map[string]struct{}, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT address FROM pages")
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	known := make(map[string]struct{})
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		known[addr] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate addresses: %w", err)
	}
	return known, nil
}

// KnownFingerprints returns every stored content fingerprint so a resumed
// crawl also deduplicates against pages collected in earlier runs.
func (h *HarvestDB) KnownFingerprints(ctx context.Context) (map[string]struct{}, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT DISTINCT fingerprint FROM pages")
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	known := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		known[fp] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fingerprints: %w", err)
	}
	return known, nil
}

// ResultsBySite loads all stored pages for one hidden service, newest first.
func (h *HarvestDB) ResultsBySite(ctx context.Context, site string) ([]*model.CrawlResult, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT address, site, title, text, fingerprint, depth, elapsed_ms, links_found
		FROM pages WHERE site = ? ORDER BY id DESC
	`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResults(rows)
}

// AllResults loads every stored page in insertion order.
func (h *HarvestDB) AllResults(ctx context.Context) ([]*model.CrawlResult, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT address, site, title, text, fingerprint, depth, elapsed_ms, links_found
		FROM pages ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResults(rows)
}

// scanResults reads page rows into crawl results.
func scanResults(rows *sql.Rows) ([]*model.CrawlResult, error) {
	var results []*model.CrawlResult
	for rows.Next() {
		var r model.CrawlResult
		var elapsedMS int64
		if err := rows.Scan(&r.Address, &r.Site, &r.Title, &r.Text,
			&r.Fingerprint, &r.Depth, &elapsedMS, &r.LinksFound); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pages: %w", err)
	}
	return results, nil
}

// SaveRunStats records the final counters of a crawl run.
func (h *HarvestDB) SaveRunStats(ctx context.Context, stats model.CrawlStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	_, err = h.db.ExecContext(ctx,
		"INSERT INTO runs (started_at, stats_json) VALUES (?, ?)",
		stats.StartedAt.UTC().Format("2006-01-02 15:04:05"), string(data))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RunRecord is one row of the crawl run history.
type RunRecord struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      model.CrawlStats
}

// LatestRun returns the most recently recorded run, or nil when the run
// history is empty.
func (h *HarvestDB) LatestRun(ctx context.Context) (*RunRecord, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, stats_json
		FROM runs ORDER BY id DESC LIMIT 1
	`)

	var rec RunRecord
	var started, finished, statsJSON string
	err := row.Scan(&rec.ID, &started, &finished, &statsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	if rec.StartedAt, err = parseTimestamp(started); err != nil {
		return nil, err
	}
	if rec.FinishedAt, err = parseTimestamp(finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(statsJSON), &rec.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run stats: %w", err)
	}
	return &rec, nil
}

// CountPages returns the number of stored pages.
func (h *HarvestDB) CountPages(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// parseTimestamp tries each layout SQLite is known to produce.
func parseTimestamp(s string) (time.Time, error) {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", s)
}
