package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/spider/internal/model"
)

// DBFileName is the name of the history database inside the data directory.
const DBFileName = "spider.db"

// CrawlDB stores crawl history in SQLite: every page seen, every download
// attempted and the complete report of each run.
//
// Design decision: one database file for all seeds, so history across
// seeds of the same host can be queried together.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	// Read-only commands such as history leave it false.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging, which lets batch crawls write
	// while a history command reads.
	EnableWAL bool
}

// DefaultOptions returns the options used by the crawl command.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	dsn := dbPath + "?mode=rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, ErrNoHistory)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Pages keep the latest fetch of each URL per seed
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		seed TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		hash TEXT,
		UNIQUE(url, seed)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_seed ON pages(seed);

	-- Downloads keep every attempt, successful or not
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id INTEGER NOT NULL,
		seed TEXT NOT NULL,
		url TEXT NOT NULL,
		source TEXT,
		path TEXT,
		size INTEGER,
		error TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_seed ON downloads(seed);

	-- Crawl reports store complete runs as JSON
	CREATE TABLE IF NOT EXISTS crawl_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		host TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL,
		summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reports_seed ON crawl_reports(seed);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON crawl_reports(timestamp);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// PageRecord is the stored state of one crawled URL.
type PageRecord struct {
	ID          int64
	URL         string
	Seed        string
	Timestamp   time.Time
	StatusCode  int
	ContentType string
	Title       string
	Hash        string
}

// DownloadRecord is one stored download attempt.
type DownloadRecord struct {
	ID        int64
	ReportID  int64
	Seed      string
	URL       string
	Source    string
	Path      string
	Size      int64
	Error     string
	Timestamp time.Time
}

// Saved reports whether the attempt wrote a file.
func (r DownloadRecord) Saved() bool {
	return r.Error == ""
}

// Summary holds the counts shown in the crawl history.
type Summary struct {
	Pages      int  `json:"pages"`
	Resources  int  `json:"resources"`
	Downloaded int  `json:"downloaded"`
	Failed     int  `json:"failed"`
	Errors     int  `json:"errors"`
	TimedOut   bool `json:"timed_out,omitempty"`
}

// SummaryOf computes the history summary of report.
func SummaryOf(report *model.CrawlReport) Summary {
	return Summary{
		Pages:      report.PagesFound(),
		Resources:  report.ResourcesFound(),
		Downloaded: report.Downloaded(),
		Failed:     report.FailedDownloads(),
		Errors:     report.ErrorCount(),
		TimedOut:   report.TimedOut,
	}
}

// CrawlReportMetadata describes a stored report without loading it.
type CrawlReportMetadata struct {
	ID        int64
	Seed      string
	Timestamp time.Time
	Summary   Summary
}

// SaveCrawlReport stores report together with its pages and downloads in
// one transaction and returns the report ID.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, _ := json.Marshal(SummaryOf(report)) //nolint:errcheck,errchkjson // plain struct; Marshal won't fail

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seed := report.Seed()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO crawl_reports (seed, host, report_json, summary) VALUES (?, ?, ?, ?)`,
		seed, report.Scope.Base.Host, string(reportJSON), string(summaryJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to save crawl report: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read report id: %w", err)
	}

	for _, p := range report.Pages {
		if err := upsertPage(ctx, tx, seed, p); err != nil {
			return 0, err
		}
	}
	for _, d := range report.Downloads {
		if err := insertDownload(ctx, tx, id, seed, d); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl report: %w", err)
	}
	return id, nil
}

func upsertPage(ctx context.Context, tx *sql.Tx, seed string, p *model.Page) error {
	query := `
	INSERT INTO pages (url, seed, status_code, content_type, title, hash)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(url, seed) DO UPDATE SET
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		title = excluded.title,
		hash = excluded.hash,
		timestamp = CURRENT_TIMESTAMP
	`
	if _, err := tx.ExecContext(ctx, query, p.URL.String(), seed, p.StatusCode, p.ContentType, p.Title, p.Hash); err != nil {
		return fmt.Errorf("failed to save page %s: %w", p.URL, err)
	}
	return nil
}

func insertDownload(ctx context.Context, tx *sql.Tx, reportID int64, seed string, d model.DownloadResult) error {
	var errMsg string
	if d.Err != nil {
		errMsg = d.Err.Error()
	}
	query := `
	INSERT INTO downloads (report_id, seed, url, source, path, size, error)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, reportID, seed,
		d.Resource.URL.String(), d.Resource.Source.String(), d.Path, d.Size, errMsg); err != nil {
		return fmt.Errorf("failed to save download %s: %w", d.Resource.URL, err)
	}
	return nil
}

// ListPages returns the stored pages of seed ordered by URL.
func (cdb *CrawlDB) ListPages(ctx context.Context, seed string) ([]PageRecord, error) {
	query := `
	SELECT id, url, seed, timestamp, status_code, content_type, title, hash
	FROM pages
	WHERE seed = ?
	ORDER BY url
	`
	rows, err := cdb.db.QueryContext(ctx, query, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var records []PageRecord
	for rows.Next() {
		var r PageRecord
		var timestamp string
		if err := rows.Scan(&r.ID, &r.URL, &r.Seed, &timestamp, &r.StatusCode, &r.ContentType, &r.Title, &r.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		r.Timestamp = parseTimestamp(timestamp)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListDownloads returns the download attempts of the report with reportID.
func (cdb *CrawlDB) ListDownloads(ctx context.Context, reportID int64) ([]DownloadRecord, error) {
	query := `
	SELECT id, report_id, seed, url, source, path, size, error, timestamp
	FROM downloads
	WHERE report_id = ?
	ORDER BY id
	`
	rows, err := cdb.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	var records []DownloadRecord
	for rows.Next() {
		var r DownloadRecord
		var timestamp string
		if err := rows.Scan(&r.ID, &r.ReportID, &r.Seed, &r.URL, &r.Source, &r.Path, &r.Size, &r.Error, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		r.Timestamp = parseTimestamp(timestamp)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListCrawledSites returns every seed with at least one stored report.
func (cdb *CrawlDB) ListCrawledSites(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM crawl_reports ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

// GetCrawlHistory returns report metadata for seed, newest first.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, seed string) ([]CrawlReportMetadata, error) {
	query := `
	SELECT id, seed, timestamp, summary
	FROM crawl_reports
	WHERE seed = ?
	ORDER BY timestamp DESC, id DESC
	`
	rows, err := cdb.db.QueryContext(ctx, query, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlReportMetadata
	for rows.Next() {
		var meta CrawlReportMetadata
		var timestamp string
		var summaryJSON sql.NullString
		if err := rows.Scan(&meta.ID, &meta.Seed, &timestamp, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		if summaryJSON.Valid && summaryJSON.String != "" {
			// A malformed summary leaves zero counts; the report itself is intact.
			_ = json.Unmarshal([]byte(summaryJSON.String), &meta.Summary) //nolint:errcheck
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetLatestCrawlReport returns the newest report for seed, or nil.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, seed string) (*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM crawl_reports
	WHERE seed = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`
	return cdb.queryReport(ctx, query, seed)
}

// GetCrawlReportByID returns the report with id, or nil.
func (cdb *CrawlDB) GetCrawlReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	return cdb.queryReport(ctx, `SELECT report_json FROM crawl_reports WHERE id = ?`, id)
}

func (cdb *CrawlDB) queryReport(ctx context.Context, query string, arg any) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error for history lookups
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	report := &model.CrawlReport{}
	if err := json.Unmarshal([]byte(reportJSON), report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if report.ErrorMessage != "" {
		report.Error = errors.New(report.ErrorMessage)
	}
	return report, nil
}

// timestampFormats are the layouts SQLite may return, most specific first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time when no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
