package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/tineye/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is stamped into search documents when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion adds the tool version to search documents.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// SearchDocument wraps a search report with output-only fields.
type SearchDocument struct {
	// Version is the tineye version that generated this document.
	Version string `json:"version,omitempty"`

	// Report is the full search report.
	Report *model.SearchReport `json:"report"`

	// Summary counts the findings by severity.
	Summary model.SeverityCounts `json:"summary"`

	// Domains lists the matches per domain, most frequent first.
	Domains []model.DomainCount `json:"domains"`
}

func (w *JSONWriter) newSearchDocument(report *model.SearchReport) *SearchDocument {
	return &SearchDocument{
		Version: w.version,
		Report:  report,
		Summary: report.Counts(),
		Domains: report.DomainCounts(),
	}
}

// WriteSearch outputs the search report in JSON format.
func (w *JSONWriter) WriteSearch(report *model.SearchReport) (int, error) {
	return w.writeJSON(w.newSearchDocument(report))
}

// WriteSearches outputs the reports as one JSON array.
func (w *JSONWriter) WriteSearches(reports []*model.SearchReport) (int, error) {
	docs := make([]*SearchDocument, 0, len(reports))
	for _, r := range reports {
		docs = append(docs, w.newSearchDocument(r))
	}
	return w.writeJSON(docs)
}

// WriteUsage outputs the quota snapshot in JSON format.
func (w *JSONWriter) WriteUsage(report *model.UsageReport) (int, error) {
	return w.writeJSON(report)
}

// WriteComparison outputs the comparison in JSON format.
func (w *JSONWriter) WriteComparison(c *model.Comparison) (int, error) {
	return w.writeJSON(c)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
