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

	"github.com/nao1215/tineye/internal/model"
)

// FileName is the name of the history database file inside the data directory.
const FileName = "tineye.db"

// storedTimeFormat has a fixed width so stored timestamps sort lexically.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryDB provides SQLite-based storage for search reports and usage
// snapshots, so repeated searches for the same image can be compared.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Search reports store complete results as JSON
	CREATE TABLE IF NOT EXISTS searches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		history_key TEXT NOT NULL,
		query TEXT NOT NULL,
		kind TEXT NOT NULL,
		digest TEXT,
		profile TEXT,
		searched_at TEXT NOT NULL,
		total_results INTEGER DEFAULT 0,
		match_count INTEGER DEFAULT 0,
		error TEXT,
		risk_summary TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_searches_key ON searches(history_key);
	CREATE INDEX IF NOT EXISTS idx_searches_query ON searches(query);
	CREATE INDEX IF NOT EXISTS idx_searches_time ON searches(searched_at);

	-- Usage snapshots record the remaining quota over time
	CREATE TABLE IF NOT EXISTS usage_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile TEXT,
		checked_at TEXT NOT NULL,
		remaining_searches INTEGER NOT NULL,
		start_date TEXT,
		expire_date TEXT,
		bundles_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_usage_profile ON usage_snapshots(profile);
	CREATE INDEX IF NOT EXISTS idx_usage_time ON usage_snapshots(checked_at);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveSearch stores a search report and sets its ID.
func (hdb *HistoryDB) SaveSearch(ctx context.Context, report *model.SearchReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	riskJSON, err := json.Marshal(report.Counts())
	if err != nil {
		return 0, fmt.Errorf("failed to serialize risk summary: %w", err)
	}

	query := `
	INSERT INTO searches (history_key, query, kind, digest, profile, searched_at,
		total_results, match_count, error, risk_summary, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		report.HistoryKey(),
		report.Query,
		string(report.Kind),
		report.Digest,
		report.Profile,
		formatTimestamp(report.SearchedAt),
		report.TotalResults,
		len(report.Matches),
		report.Error,
		string(riskJSON),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save search report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get search report id: %w", err)
	}
	report.ID = id
	return id, nil
}

// GetSearch retrieves a search report by its database ID.
// It returns (nil, nil) when no such report exists.
func (hdb *HistoryDB) GetSearch(ctx context.Context, id int64) (*model.SearchReport, error) {
	query := `SELECT id, report_json FROM searches WHERE id = ?`

	var reportJSON string
	var storedID int64
	err := hdb.db.QueryRowContext(ctx, query, id).Scan(&storedID, &reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search report: %w", err)
	}
	return decodeReport(storedID, reportJSON)
}

// LatestSearches returns up to n successful searches for an image, newest
// first. key matches either the history key or the query as typed.
func (hdb *HistoryDB) LatestSearches(ctx context.Context, key string, n int) ([]*model.SearchReport, error) {
	query := `
	SELECT id, report_json FROM searches
	WHERE (history_key = ? OR query = ?) AND (error IS NULL OR error = '')
	ORDER BY searched_at DESC, id DESC
	LIMIT ?
	`

	rows, err := hdb.db.QueryContext(ctx, query, key, key, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get search history: %w", err)
	}
	defer rows.Close()

	var reports []*model.SearchReport
	for rows.Next() {
		var id int64
		var reportJSON string
		if err := rows.Scan(&id, &reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(id, reportJSON)
		if err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// SearchMetadata contains summary information about a stored search.
// It is used to list the history without loading full reports.
type SearchMetadata struct {
	ID           int64
	HistoryKey   string
	Query        string
	Kind         model.QueryKind
	Profile      string
	SearchedAt   time.Time
	TotalResults int64
	MatchCount   int
	Error        string
	RiskSummary  model.SeverityCounts
}

// ListSearches returns metadata of stored searches, newest first. An empty
// key lists every search; otherwise key matches the history key or the query.
func (hdb *HistoryDB) ListSearches(ctx context.Context, key string) ([]SearchMetadata, error) {
	query := `
	SELECT id, history_key, query, kind, profile, searched_at, total_results, match_count, error, risk_summary
	FROM searches
	`
	args := make([]any, 0, 2)
	if key != "" {
		query += " WHERE history_key = ? OR query = ?"
		args = append(args, key, key)
	}
	query += " ORDER BY searched_at DESC, id DESC"

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	var results []SearchMetadata
	for rows.Next() {
		var meta SearchMetadata
		var kind, timestamp string
		var profile, errText, riskJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.HistoryKey, &meta.Query, &kind, &profile,
			&timestamp, &meta.TotalResults, &meta.MatchCount, &errText, &riskJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Kind = model.QueryKind(kind)
		meta.Profile = profile.String
		meta.Error = errText.String
		meta.SearchedAt = parseTimestamp(timestamp)
		if riskJSON.Valid && riskJSON.String != "" {
			if err := json.Unmarshal([]byte(riskJSON.String), &meta.RiskSummary); err != nil {
				meta.RiskSummary = model.SeverityCounts{}
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListQueries returns the distinct history keys, sorted.
func (hdb *HistoryDB) ListQueries(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT history_key FROM searches ORDER BY history_key`

	rows, err := hdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// SaveUsage stores a usage snapshot and sets its ID.
func (hdb *HistoryDB) SaveUsage(ctx context.Context, usage *model.UsageReport) (int64, error) {
	bundlesJSON, err := json.Marshal(usage.Bundles)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize bundles: %w", err)
	}

	query := `
	INSERT INTO usage_snapshots (profile, checked_at, remaining_searches, start_date, expire_date, bundles_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		usage.Profile,
		formatTimestamp(usage.CheckedAt),
		usage.RemainingSearches,
		formatOptionalTimestamp(usage.StartDate),
		formatOptionalTimestamp(usage.ExpireDate),
		string(bundlesJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save usage snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get usage snapshot id: %w", err)
	}
	usage.ID = id
	return id, nil
}

// ListUsage returns up to limit usage snapshots for a profile, newest first.
func (hdb *HistoryDB) ListUsage(ctx context.Context, profile string, limit int) ([]*model.UsageReport, error) {
	query := `
	SELECT id, profile, checked_at, remaining_searches, start_date, expire_date, bundles_json
	FROM usage_snapshots
	WHERE profile = ?
	ORDER BY checked_at DESC, id DESC
	LIMIT ?
	`

	rows, err := hdb.db.QueryContext(ctx, query, profile, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage snapshots: %w", err)
	}
	defer rows.Close()

	var results []*model.UsageReport
	for rows.Next() {
		var u model.UsageReport
		var checkedAt string
		var storedProfile, startDate, expireDate, bundlesJSON sql.NullString

		if err := rows.Scan(&u.ID, &storedProfile, &checkedAt, &u.RemainingSearches,
			&startDate, &expireDate, &bundlesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan usage snapshot: %w", err)
		}

		u.Profile = storedProfile.String
		u.CheckedAt = parseTimestamp(checkedAt)
		u.StartDate = parseTimestamp(startDate.String)
		u.ExpireDate = parseTimestamp(expireDate.String)
		if bundlesJSON.Valid && bundlesJSON.String != "" && bundlesJSON.String != "null" {
			if err := json.Unmarshal([]byte(bundlesJSON.String), &u.Bundles); err != nil {
				return nil, fmt.Errorf("failed to parse bundles: %w", err)
			}
		}

		results = append(results, &u)
	}

	return results, rows.Err()
}

// LatestUsage returns the newest usage snapshot for a profile, or (nil, nil).
func (hdb *HistoryDB) LatestUsage(ctx context.Context, profile string) (*model.UsageReport, error) {
	snapshots, err := hdb.ListUsage(ctx, profile, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return snapshots[0], nil
}

func decodeReport(id int64, reportJSON string) (*model.SearchReport, error) {
	var report model.SearchReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	report.ID = id
	return &report, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimeFormat)
}

func formatOptionalTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTimestamp(t)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	storedTimeFormat,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
