package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/tineye"
	"github.com/nao1215/tineye/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func newReport(query string, at time.Time, urls ...string) *model.SearchReport {
	resp := &tineye.SearchResponse{}
	for i, u := range urls {
		resp.Matches = append(resp.Matches, tineye.Match{
			ImageURL: u,
			Score:    float64(90 - i),
			Backlinks: []tineye.Backlink{{
				URL:       u,
				Backlink:  u + ".html",
				CrawlDate: time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC),
			}},
		})
	}
	resp.TotalResults = int64(len(urls))
	return model.NewSearchReport(query, model.QueryURL, resp, at)
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Fatalf("expected ErrDatabaseNotFound, got %v", err)
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created when CreateIfNotExists=false")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		ctx := context.Background()
		id, err := db1.SaveSearch(ctx, newReport("https://x.example/a.jpg", time.Now(), "https://m.example/1.jpg"))
		if err != nil {
			t.Fatalf("failed to save search: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		got, err := db2.GetSearch(ctx, id)
		if err != nil || got == nil {
			t.Fatalf("GetSearch() = %v, %v", got, err)
		}
	})
}

// TestDefaultOptions tests the default database options.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

func TestSaveAndGetSearch(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	at := time.Date(2026, 4, 1, 10, 0, 0, 123, time.UTC)
	report := newReport("https://x.example/a.jpg", at, "https://m.example/1.jpg", "https://n.example/2.jpg")
	report.Profile = "work"

	id, err := db.SaveSearch(ctx, report)
	if err != nil {
		t.Fatalf("SaveSearch() error = %v", err)
	}
	if id == 0 || report.ID != id {
		t.Errorf("id = %d, report.ID = %d", id, report.ID)
	}

	got, err := db.GetSearch(ctx, id)
	if err != nil {
		t.Fatalf("GetSearch() error = %v", err)
	}
	if got.ID != id || got.Query != report.Query || got.Profile != "work" {
		t.Errorf("unexpected report: %+v", got)
	}
	if !got.SearchedAt.Equal(at) {
		t.Errorf("SearchedAt = %v, want %v", got.SearchedAt, at)
	}
	if len(got.Matches) != 2 || got.Matches[1].ImageURL != "https://n.example/2.jpg" {
		t.Errorf("matches = %+v", got.Matches)
	}
	if !got.Matches[0].Backlinks[0].CrawlDate.Equal(time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("crawl date lost: %v", got.Matches[0].Backlinks[0].CrawlDate)
	}
	if len(got.Findings) != len(report.Findings) {
		t.Errorf("findings = %d, want %d", len(got.Findings), len(report.Findings))
	}

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()

		got, err := db.GetSearch(ctx, 9999)
		if err != nil || got != nil {
			t.Errorf("GetSearch(9999) = %v, %v; want nil, nil", got, err)
		}
	})
}

func TestLatestSearches(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	query := "https://x.example/a.jpg"
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, r := range []*model.SearchReport{
		newReport(query, base, "https://m.example/1.jpg"),
		newReport(query, base.Add(48*time.Hour), "https://m.example/1.jpg", "https://m.example/2.jpg"),
		newReport("https://other.example/b.jpg", base.Add(72*time.Hour)),
		newReport(query, base.Add(24*time.Hour)),
		model.NewFailedSearchReport(query, model.QueryURL, errors.New("quota"), base.Add(96*time.Hour)),
	} {
		if _, err := db.SaveSearch(ctx, r); err != nil {
			t.Fatalf("SaveSearch(%d) error = %v", i, err)
		}
	}

	got, err := db.LatestSearches(ctx, query, 2)
	if err != nil {
		t.Fatalf("LatestSearches() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d reports, want 2", len(got))
	}
	if !got[0].SearchedAt.Equal(base.Add(48*time.Hour)) || !got[1].SearchedAt.Equal(base.Add(24*time.Hour)) {
		t.Errorf("unexpected order: %v, %v", got[0].SearchedAt, got[1].SearchedAt)
	}

	all, err := db.ListSearches(ctx, query)
	if err != nil {
		t.Fatalf("ListSearches() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("ListSearches() returned %d, want 4", len(all))
	}
	if all[0].Error != "quota" {
		t.Errorf("newest entry should be the failed search, got %+v", all[0])
	}
	if all[1].MatchCount != 2 || all[1].RiskSummary.Info == 0 {
		t.Errorf("unexpected metadata: %+v", all[1])
	}

	everything, err := db.ListSearches(ctx, "")
	if err != nil || len(everything) != 5 {
		t.Errorf("ListSearches(\"\") = %d entries, err %v", len(everything), err)
	}

	keys, err := db.ListQueries(ctx)
	if err != nil {
		t.Fatalf("ListQueries() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "https://other.example/b.jpg" || keys[1] != query {
		t.Errorf("ListQueries() = %v", keys)
	}
}

func TestUploadHistoryKey(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	first := model.NewSearchReport("/photos/a.jpg", model.QueryUpload, &tineye.SearchResponse{}, time.Now())
	first.Digest = "deadbeef"
	second := model.NewSearchReport("/backup/renamed.jpg", model.QueryUpload, &tineye.SearchResponse{}, time.Now().Add(time.Minute))
	second.Digest = "deadbeef"

	for _, r := range []*model.SearchReport{first, second} {
		if _, err := db.SaveSearch(ctx, r); err != nil {
			t.Fatalf("SaveSearch() error = %v", err)
		}
	}

	byDigest, err := db.LatestSearches(ctx, "deadbeef", 10)
	if err != nil || len(byDigest) != 2 {
		t.Errorf("by digest: %d reports, err %v", len(byDigest), err)
	}
	byPath, err := db.LatestSearches(ctx, "/photos/a.jpg", 10)
	if err != nil || len(byPath) != 1 {
		t.Errorf("by path: %d reports, err %v", len(byPath), err)
	}
}

func TestUsageSnapshots(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	latest, err := db.LatestUsage(ctx, "default")
	if err != nil || latest != nil {
		t.Fatalf("LatestUsage() on empty db = %v, %v", latest, err)
	}

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	older := &model.UsageReport{Profile: "default", CheckedAt: base, RemainingSearches: 600}
	newer := &model.UsageReport{
		Profile:           "default",
		CheckedAt:         base.Add(time.Hour),
		RemainingSearches: 500,
		StartDate:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpireDate:        time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Bundles: []tineye.Bundle{
			{RemainingSearches: 500, ExpireDate: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	other := &model.UsageReport{Profile: "work", CheckedAt: base.Add(2 * time.Hour), RemainingSearches: 10}

	for _, u := range []*model.UsageReport{older, newer, other} {
		if _, err := db.SaveUsage(ctx, u); err != nil {
			t.Fatalf("SaveUsage() error = %v", err)
		}
	}
	if newer.ID == 0 {
		t.Error("SaveUsage should set the ID")
	}

	latest, err = db.LatestUsage(ctx, "default")
	if err != nil {
		t.Fatalf("LatestUsage() error = %v", err)
	}
	if latest.RemainingSearches != 500 || !latest.ExpireDate.Equal(newer.ExpireDate) {
		t.Errorf("unexpected snapshot: %+v", latest)
	}
	if len(latest.Bundles) != 1 || latest.Bundles[0].RemainingSearches != 500 {
		t.Errorf("bundles = %+v", latest.Bundles)
	}

	list, err := db.ListUsage(ctx, "default", 10)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListUsage() = %d entries, err %v", len(list), err)
	}
	if !list[1].StartDate.IsZero() {
		t.Errorf("unknown start date should stay zero, got %v", list[1].StartDate)
	}
}

// TestParseTimestamp tests the parseTimestamp function with various formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"stored format", "2024-01-15T10:30:00.500000000Z", time.Date(2024, 1, 15, 10, 30, 0, 500000000, time.UTC)},
		{"SQLite default", "2024-01-15 10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"ISO 8601 with Z", "2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"empty", "", time.Time{}},
		{"invalid", "not a timestamp", time.Time{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := parseTimestamp(tc.input); !got.Equal(tc.expected) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}
