package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nao1215/tineye"
	"github.com/nao1215/tineye/internal/imagemeta"
	"github.com/nao1215/tineye/internal/model"
)

// fakeSearcher records calls and returns canned responses.
type fakeSearcher struct {
	mu        sync.Mutex
	urls      []string
	filenames []string
	data      [][]byte
	resp      *tineye.SearchResponse
	err       error
	fn        func(target string) (*tineye.SearchResponse, error)
}

func (f *fakeSearcher) SearchURL(_ context.Context, imageURL string, _ ...tineye.SearchOption) (*tineye.SearchResponse, error) {
	f.mu.Lock()
	f.urls = append(f.urls, imageURL)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(imageURL)
	}
	return f.resp, f.err
}

func (f *fakeSearcher) SearchData(_ context.Context, data []byte, filename string, _ ...tineye.SearchOption) (*tineye.SearchResponse, error) {
	f.mu.Lock()
	f.filenames = append(f.filenames, filename)
	f.data = append(f.data, data)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(filename)
	}
	return f.resp, f.err
}

// fakeStore records saved reports.
type fakeStore struct {
	mu      sync.Mutex
	reports []*model.SearchReport
	err     error
}

func (s *fakeStore) SaveSearch(_ context.Context, report *model.SearchReport) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.reports = append(s.reports, report)
	report.ID = int64(len(s.reports))
	return report.ID, nil
}

func oneMatch() *tineye.SearchResponse {
	return &tineye.SearchResponse{
		TotalResults: 1,
		Matches:      []tineye.Match{{ImageURL: "https://m.example/1.jpg", Domain: "m.example", Score: 88}},
	}
}

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

func TestReadFileStep(t *testing.T) {
	t.Parallel()

	t.Run("reads upload and sets digest", func(t *testing.T) {
		t.Parallel()

		path := writeImage(t, "cat.jpg", []byte("jpeg bytes"))
		job := NewJob(path, model.QueryUpload)

		if err := NewReadFileStep(1024).Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(job.Data) != "jpeg bytes" {
			t.Errorf("Data = %q", job.Data)
		}
		if job.Report.Digest != imagemeta.Digest([]byte("jpeg bytes")) {
			t.Errorf("Digest = %q", job.Report.Digest)
		}
	})

	t.Run("rejects files over the limit", func(t *testing.T) {
		t.Parallel()

		path := writeImage(t, "big.jpg", make([]byte, 11))
		err := NewReadFileStep(10).Do(context.Background(), NewJob(path, model.QueryUpload))
		if !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("expected ErrImageTooLarge, got %v", err)
		}
	})

	t.Run("accepts file at the limit", func(t *testing.T) {
		t.Parallel()

		path := writeImage(t, "exact.jpg", make([]byte, 10))
		if err := NewReadFileStep(10).Do(context.Background(), NewJob(path, model.QueryUpload)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		err := NewReadFileStep(0).Do(context.Background(), NewJob(filepath.Join(t.TempDir(), "nope.jpg"), model.QueryUpload))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})

	t.Run("ignores URL jobs", func(t *testing.T) {
		t.Parallel()

		job := NewJob("https://x.example/a.jpg", model.QueryURL)
		if err := NewReadFileStep(0).Do(context.Background(), job); err != nil || job.Data != nil {
			t.Errorf("URL job should be untouched: %v", err)
		}
	})
}

func TestExifCheckStep(t *testing.T) {
	t.Parallel()

	job := NewJob("plain.bin", model.QueryUpload)
	job.Data = []byte("no exif here")
	if err := NewExifCheckStep(discardLogger()).Do(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(job.Report.Findings) != 0 {
		t.Errorf("expected no findings, got %+v", job.Report.Findings)
	}
	if NewExifCheckStep(nil).Name() != "exif_check" {
		t.Error("unexpected step name")
	}
}

func TestSearchStep(t *testing.T) {
	t.Parallel()

	t.Run("searches by URL", func(t *testing.T) {
		t.Parallel()

		s := &fakeSearcher{resp: oneMatch()}
		job := NewJob("https://x.example/a.jpg", model.QueryURL)
		if err := NewSearchStep(s, tineye.WithLimit(5)).Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(s.urls) != 1 || s.urls[0] != "https://x.example/a.jpg" {
			t.Errorf("urls = %v", s.urls)
		}
		if job.Report.TotalResults != 1 || len(job.Report.Matches) != 1 {
			t.Errorf("response not applied: %+v", job.Report)
		}
	})

	t.Run("uploads with base filename and keeps earlier findings", func(t *testing.T) {
		t.Parallel()

		s := &fakeSearcher{resp: oneMatch()}
		job := NewJob("/photos/2026/cat.jpg", model.QueryUpload)
		job.Data = []byte("img")
		job.Report.AddFindings(model.NewFinding(model.FindingExifGPS, "GPS", "", "", ""))

		if err := NewSearchStep(s).Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(s.filenames) != 1 || s.filenames[0] != "cat.jpg" {
			t.Errorf("filenames = %v", s.filenames)
		}
		if job.Report.Findings[0].Type != model.FindingExifGPS {
			t.Errorf("EXIF finding lost: %+v", job.Report.Findings)
		}
	})

	t.Run("returns client error", func(t *testing.T) {
		t.Parallel()

		apiErr := &tineye.APIError{Kind: tineye.KindHTTP, StatusCode: 500}
		s := &fakeSearcher{err: apiErr}
		err := NewSearchStep(s).Do(context.Background(), NewJob("https://x.example/a.jpg", model.QueryURL))
		var got *tineye.APIError
		if !errors.As(err, &got) || got.StatusCode != 500 {
			t.Errorf("expected APIError, got %v", err)
		}
	})

	t.Run("skips failed jobs", func(t *testing.T) {
		t.Parallel()

		s := &fakeSearcher{resp: oneMatch()}
		job := NewJob("a.jpg", model.QueryUpload)
		job.fail(ErrImageTooLarge)
		if err := NewSearchStep(s).Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(s.filenames) != 0 {
			t.Error("search should be skipped")
		}
	})
}

func TestHistoryStep(t *testing.T) {
	t.Parallel()

	t.Run("saves report", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		job := NewJob("q", model.QueryURL)
		if err := NewHistoryStep(store, discardLogger()).Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.reports) != 1 || job.Report.ID != 1 {
			t.Errorf("report not saved: %+v", store.reports)
		}
	})

	t.Run("storage failure does not fail the search", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{err: errors.New("disk full")}
		job := NewJob("q", model.QueryURL)
		if err := NewHistoryStep(store, discardLogger()).Do(context.Background(), job); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})
}

// TestUploadPipeline runs the steps the upload command uses.
func TestUploadPipeline(t *testing.T) {
	t.Parallel()

	path := writeImage(t, "photo.jpg", []byte("photo bytes"))
	searcher := &fakeSearcher{resp: oneMatch()}
	store := &fakeStore{}

	p := New(WithLogger(discardLogger()), WithContinueOnError(true))
	p.AddSteps(
		NewReadFileStep(1<<20),
		NewExifCheckStep(discardLogger()),
		NewSearchStep(searcher),
		NewHistoryStep(store, discardLogger()),
	)

	job := NewJob(path, model.QueryUpload)
	if err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Err != nil {
		t.Fatalf("job failed: %v", job.Err)
	}
	if string(searcher.data[0]) != "photo bytes" {
		t.Errorf("uploaded %q", searcher.data[0])
	}
	if len(store.reports) != 1 || store.reports[0].Digest == "" {
		t.Errorf("expected saved report with digest, got %+v", store.reports)
	}

	t.Run("failed read is still recorded", func(t *testing.T) {
		t.Parallel()

		missing := NewJob(filepath.Join(t.TempDir(), "gone.jpg"), model.QueryUpload)
		store := &fakeStore{}
		p := New(WithLogger(discardLogger()), WithContinueOnError(true))
		p.AddSteps(NewReadFileStep(0), NewSearchStep(&fakeSearcher{resp: oneMatch()}), NewHistoryStep(store, discardLogger()))

		if err := p.Execute(context.Background(), missing); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if missing.Err == nil || len(store.reports) != 1 || !store.reports[0].Failed() {
			t.Errorf("failed search should be saved: err=%v reports=%+v", missing.Err, store.reports)
		}
	})
}
