package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/tineye"
	"github.com/nao1215/tineye/internal/imagemeta"
	"github.com/nao1215/tineye/internal/model"
)

// ErrImageTooLarge is returned when a file exceeds the configured upload limit.
var ErrImageTooLarge = errors.New("image file too large")

// Searcher is the part of tineye.Client the search step needs.
type Searcher interface {
	SearchURL(ctx context.Context, imageURL string, opts ...tineye.SearchOption) (*tineye.SearchResponse, error)
	SearchData(ctx context.Context, data []byte, filename string, opts ...tineye.SearchOption) (*tineye.SearchResponse, error)
}

// HistoryStore saves finished searches.
type HistoryStore interface {
	SaveSearch(ctx context.Context, report *model.SearchReport) (int64, error)
}

// ReadFileStep reads the image of an upload job from disk and computes its digest.
type ReadFileStep struct {
	// maxSize limits the file size in bytes; 0 means no limit.
	maxSize int64
}

// NewReadFileStep creates a step that reads files up to maxSize bytes.
func NewReadFileStep(maxSize int64) *ReadFileStep {
	return &ReadFileStep{maxSize: maxSize}
}

// Name returns the step name.
func (s *ReadFileStep) Name() string {
	return "read_file"
}

// Do reads the file. URL jobs are left untouched.
func (s *ReadFileStep) Do(_ context.Context, job *Job) error {
	if job.Kind != model.QueryUpload {
		return nil
	}

	f, err := os.Open(job.Target)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if s.maxSize > 0 {
		r = io.LimitReader(f, s.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrImageTooLarge, job.Target, s.maxSize)
	}

	job.Data = data
	job.Report.Digest = imagemeta.Digest(data)
	return nil
}

// ExifCheckStep reports identifying EXIF metadata of uploads.
type ExifCheckStep struct {
	logger *slog.Logger
}

// NewExifCheckStep creates the EXIF privacy check step.
func NewExifCheckStep(logger *slog.Logger) *ExifCheckStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExifCheckStep{logger: logger}
}

// Name returns the step name.
func (s *ExifCheckStep) Name() string {
	return "exif_check"
}

// Do adds the EXIF findings to the report.
func (s *ExifCheckStep) Do(_ context.Context, job *Job) error {
	if job.Kind != model.QueryUpload || len(job.Data) == 0 {
		return nil
	}

	findings := imagemeta.Check(job.Data, job.Target)
	if counts := model.CountFindings(findings); counts.Critical+counts.High > 0 {
		s.logger.Warn("image carries identifying metadata",
			"file", job.Target,
			"critical", counts.Critical,
			"high", counts.High,
		)
	}
	job.Report.AddFindings(findings...)
	return nil
}

// SearchStep sends the search request.
type SearchStep struct {
	searcher Searcher
	opts     []tineye.SearchOption
}

// NewSearchStep creates a step that searches with the given options.
func NewSearchStep(searcher Searcher, opts ...tineye.SearchOption) *SearchStep {
	return &SearchStep{searcher: searcher, opts: opts}
}

// Name returns the step name.
func (s *SearchStep) Name() string {
	return "search"
}

// Do searches by URL or by uploading the image. Jobs that already failed are skipped.
func (s *SearchStep) Do(ctx context.Context, job *Job) error {
	if job.Err != nil {
		return nil
	}

	var resp *tineye.SearchResponse
	var err error
	switch job.Kind {
	case model.QueryUpload:
		resp, err = s.searcher.SearchData(ctx, job.Data, filepath.Base(job.Target), s.opts...)
	default:
		resp, err = s.searcher.SearchURL(ctx, job.Target, s.opts...)
	}
	if err != nil {
		return err
	}

	job.Report.ApplyResponse(resp)
	return nil
}

// HistoryStep stores the report, including failed searches.
// A storage failure is logged and does not fail the search.
type HistoryStep struct {
	store  HistoryStore
	logger *slog.Logger
}

// NewHistoryStep creates a step that saves reports to store.
func NewHistoryStep(store HistoryStore, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do saves the report and sets its ID.
func (s *HistoryStep) Do(ctx context.Context, job *Job) error {
	if _, err := s.store.SaveSearch(ctx, job.Report); err != nil {
		s.logger.Warn("failed to save search history",
			"target", job.Target,
			"error", err,
		)
	}
	return nil
}
