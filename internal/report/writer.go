package report

import (
	"io"
	"strings"
	"time"

	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/tineye/internal/model"
)

// Writer defines the interface for report output.
// Implementations render searches, quota snapshots and comparisons in one format.
type Writer interface {
	// WriteSearch outputs a single search report.
	// Returns the number of bytes written and any error encountered.
	WriteSearch(report *model.SearchReport) (int, error)

	// WriteSearches outputs the reports of a batch, in order.
	WriteSearches(reports []*model.SearchReport) (int, error)

	// WriteUsage outputs a quota snapshot.
	WriteUsage(report *model.UsageReport) (int, error)

	// WriteComparison outputs the difference between two searches.
	WriteComparison(c *model.Comparison) (int, error)
}

// MultiWriter writes to multiple Writers, e.g. the terminal and a file.
// Stops on first error encountered.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) each(fn func(w Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSearch outputs the report to all configured Writers.
func (m *MultiWriter) WriteSearch(report *model.SearchReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSearch(report) })
}

// WriteSearches outputs the reports to all configured Writers.
func (m *MultiWriter) WriteSearches(reports []*model.SearchReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSearches(reports) })
}

// WriteUsage outputs the snapshot to all configured Writers.
func (m *MultiWriter) WriteUsage(report *model.UsageReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteUsage(report) })
}

// WriteComparison outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteComparison(c *model.Comparison) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteComparison(c) })
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// title turns "growing" into "Growing" and "CRITICAL" into "Critical".
// A Caser keeps state, so one is created per call.
func title(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

// displayHost converts punycode labels to Unicode for display.
// Hosts that are not valid IDNA are shown as they are.
func displayHost(host string) string {
	if !strings.Contains(host, "xn--") {
		return host
	}
	u, err := idna.Display.ToUnicode(host)
	if err != nil {
		return host
	}
	return u
}

const (
	dateFormat     = "2006-01-02"
	dateTimeFormat = "2006-01-02 15:04:05 MST"
)

// formatDate formats t, or returns "-" when it is unknown.
func formatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(layout)
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// severityOrder lists severities most severe first.
var severityOrder = []model.Severity{
	model.SeverityCritical,
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
	model.SeverityInfo,
}
