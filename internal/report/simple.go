package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/tineye/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no content are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool

	// maxMatches limits the listed matches; 0 lists all.
	maxMatches int

	// now returns the current time for relative dates.
	now func() time.Time
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with backlinks and descriptions.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithMaxMatches limits how many matches are listed per search.
func WithMaxMatches(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.maxMatches = n
	}
}

// WithClock sets the clock used for "days left" in quota reports.
func WithClock(now func() time.Time) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.now = now
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteSearch outputs the search report in human-readable format.
func (w *SimpleWriter) WriteSearch(report *model.SearchReport) (int, error) {
	var sb strings.Builder
	w.writeSearch(&sb, report)
	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

// WriteSearches outputs each report followed by a batch summary.
func (w *SimpleWriter) WriteSearches(reports []*model.SearchReport) (int, error) {
	var sb strings.Builder
	failed := 0
	for _, r := range reports {
		w.writeSearch(&sb, r)
		if r.Failed() {
			failed++
		}
	}
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Searched %d image(s): %d succeeded, %d failed\n",
		len(reports), len(reports)-failed, failed)
	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeSearch(sb *strings.Builder, report *model.SearchReport) {
	w.writeHeader(sb, "TINEYE SEARCH REPORT")

	fmt.Fprintf(sb, "Query:         %s\n", report.Query)
	if report.Digest != "" {
		fmt.Fprintf(sb, "Digest:        %s\n", report.Digest)
	}
	if report.Profile != "" {
		fmt.Fprintf(sb, "Profile:       %s\n", report.Profile)
	}
	fmt.Fprintf(sb, "Search Date:   %s\n", formatDate(report.SearchedAt, dateTimeFormat))
	if report.ID != 0 {
		fmt.Fprintf(sb, "History ID:    %d\n", report.ID)
	}

	if report.Failed() {
		fmt.Fprintf(sb, "Status:        ERROR - %s\n\n", report.Error)
		w.writeFindings(sb, report.Findings)
		return
	}

	fmt.Fprintf(sb, "Total Results: %d\n", report.TotalResults)
	fmt.Fprintf(sb, "Backlinks:     %d\n", report.BacklinkCount())
	for _, msg := range report.Messages {
		fmt.Fprintf(sb, "Message:       %s\n", msg)
	}
	sb.WriteString("\n")

	w.writeMatches(sb, report)
	w.writeDomains(sb, report.DomainCounts())
	w.writeFindings(sb, report.Findings)
}

// writeHeader writes a boxed section title.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, text string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	pad := (70 - len(text)) / 2
	if pad < 0 {
		pad = 0
	}
	sb.WriteString(strings.Repeat(" ", pad))
	sb.WriteString(text)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

// writeSection writes a dashed section title.
func (w *SimpleWriter) writeSection(sb *strings.Builder, text string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(text)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeMatches(sb *strings.Builder, report *model.SearchReport) {
	if len(report.Matches) == 0 {
		if w.showEmpty {
			w.writeSection(sb, "MATCHES")
		}
		sb.WriteString("  No matches found\n\n")
		return
	}

	w.writeSection(sb, "MATCHES")

	matches := report.Matches
	if w.maxMatches > 0 && len(matches) > w.maxMatches {
		matches = matches[:w.maxMatches]
	}
	for i, m := range matches {
		fmt.Fprintf(sb, "  %3d. [%6.2f] %s\n", i+1, m.Score, m.ImageURL)
		fmt.Fprintf(sb, "       %s  %dx%d  %s\n",
			displayHost(model.MatchDomain(m)), m.Width, m.Height, strings.ToUpper(m.Format))
		if !w.verbose {
			continue
		}
		for _, b := range m.Backlinks {
			fmt.Fprintf(sb, "       <- %s (crawled %s)\n", b.Backlink, formatDate(b.CrawlDate, dateFormat))
		}
	}
	if rest := len(report.Matches) - len(matches); rest > 0 {
		fmt.Fprintf(sb, "  ... and %d more\n", rest)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDomains(sb *strings.Builder, domains []model.DomainCount) {
	if len(domains) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "DOMAINS")
	for _, d := range domains {
		fmt.Fprintf(sb, "  %-40s %d\n", displayHost(d.Domain), d.Count)
	}
	sb.WriteString("\n")
}

// writeFindings writes all findings grouped by severity.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, findings []model.Finding) {
	if len(findings) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "FINDINGS")

	for _, severity := range severityOrder {
		group := model.FilterBySeverity(findings, severity)
		if len(group) == 0 && !w.showEmpty {
			continue
		}
		w.writeFindingsForSeverity(sb, severity, group)
	}
}

// writeFindingsForSeverity writes findings of a specific severity level.
func (w *SimpleWriter) writeFindingsForSeverity(sb *strings.Builder, severity model.Severity, findings []model.Finding) {
	fmt.Fprintf(sb, "[%s] %s\n", w.getSeverityIndicator(severity), severity.String())

	if len(findings) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, finding := range findings {
		fmt.Fprintf(sb, "  * %s\n", finding.Title)
		if finding.Value != "" {
			fmt.Fprintf(sb, "    Value: %s\n", finding.Value)
		}
		if finding.Location != "" {
			fmt.Fprintf(sb, "    Location: %s\n", finding.Location)
		}
		if w.verbose && finding.Description != "" {
			fmt.Fprintf(sb, "    Description: %s\n", finding.Description)
		}
		if w.verbose && finding.Recommendation != "" {
			fmt.Fprintf(sb, "    Recommendation: %s\n", finding.Recommendation)
		}
	}
	sb.WriteString("\n")
}

// getSeverityIndicator returns a visual indicator for the severity level.
func (w *SimpleWriter) getSeverityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

// WriteUsage outputs the quota snapshot in human-readable format.
func (w *SimpleWriter) WriteUsage(report *model.UsageReport) (int, error) {
	var sb strings.Builder
	w.writeHeader(&sb, "TINEYE SEARCH QUOTA")

	if report.Profile != "" {
		fmt.Fprintf(&sb, "Profile:            %s\n", report.Profile)
	}
	fmt.Fprintf(&sb, "Checked At:         %s\n", formatDate(report.CheckedAt, dateTimeFormat))
	fmt.Fprintf(&sb, "Remaining Searches: %d\n", report.RemainingSearches)
	fmt.Fprintf(&sb, "Start Date:         %s\n", formatDate(report.StartDate, dateTimeFormat))
	fmt.Fprintf(&sb, "Expire Date:        %s\n", formatDate(report.ExpireDate, dateTimeFormat))

	if c := report.Change; c != nil {
		if c.Used >= 0 {
			fmt.Fprintf(&sb, "Used Since Check:   %d (since %s)\n", c.Used, formatDate(c.PreviousCheckedAt, dateTimeFormat))
		} else {
			fmt.Fprintf(&sb, "Added Since Check:  %d (since %s)\n", -c.Used, formatDate(c.PreviousCheckedAt, dateTimeFormat))
		}
	}

	now := w.now()
	switch days := report.DaysLeft(now); {
	case report.Expired(now):
		sb.WriteString("Status:             EXPIRED\n")
	case days >= 0:
		fmt.Fprintf(&sb, "Days Left:          %d\n", days)
	}

	if len(report.Bundles) > 1 || (w.verbose && len(report.Bundles) > 0) {
		sb.WriteString("\n")
		w.writeSection(&sb, "BUNDLES")
		for _, b := range report.Bundles {
			fmt.Fprintf(&sb, "  %8d searches  %s -> %s\n", b.RemainingSearches,
				formatDate(b.StartDate, dateFormat), formatDate(b.ExpireDate, dateFormat))
		}
	}
	sb.WriteString("\n")
	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

// WriteComparison outputs the comparison in human-readable format.
func (w *SimpleWriter) WriteComparison(c *model.Comparison) (int, error) {
	var sb strings.Builder
	w.writeHeader(&sb, "TINEYE SEARCH COMPARISON")

	fmt.Fprintf(&sb, "Query:    %s\n", c.Query)
	fmt.Fprintf(&sb, "Previous: #%d %s  (%d results, %d domains)\n", c.Previous.ID,
		formatDate(c.Previous.SearchedAt, dateTimeFormat), c.Previous.TotalResults, c.Previous.DomainCount)
	fmt.Fprintf(&sb, "Current:  #%d %s  (%d results, %d domains)\n", c.Current.ID,
		formatDate(c.Current.SearchedAt, dateTimeFormat), c.Current.TotalResults, c.Current.DomainCount)
	fmt.Fprintf(&sb, "Trend:    %s (%+d results)\n\n", title(c.Trend), c.Current.TotalResults-c.Previous.TotalResults)

	w.writeSection(&sb, fmt.Sprintf("NEW MATCHES (%d)", len(c.NewMatches)))
	for _, m := range c.NewMatches {
		fmt.Fprintf(&sb, "  [+] %s (%s)\n", m.ImageURL, displayHost(model.MatchDomain(m)))
	}
	sb.WriteString("\n")

	w.writeSection(&sb, fmt.Sprintf("GONE MATCHES (%d)", len(c.GoneMatches)))
	for _, m := range c.GoneMatches {
		fmt.Fprintf(&sb, "  [-] %s (%s)\n", m.ImageURL, displayHost(model.MatchDomain(m)))
	}
	sb.WriteString("\n")

	if len(c.ScoreChanges) > 0 || w.showEmpty {
		w.writeSection(&sb, fmt.Sprintf("SCORE CHANGES (%d)", len(c.ScoreChanges)))
		for _, s := range c.ScoreChanges {
			fmt.Fprintf(&sb, "  [~] %s %.2f -> %.2f (%+.2f)\n", s.ImageURL, s.Previous, s.Current, s.Delta())
		}
		sb.WriteString("\n")
	}

	if len(c.NewDomains) > 0 || len(c.GoneDomains) > 0 {
		w.writeSection(&sb, "DOMAINS")
		for _, d := range c.NewDomains {
			fmt.Fprintf(&sb, "  [+] %s\n", displayHost(d))
		}
		for _, d := range c.GoneDomains {
			fmt.Fprintf(&sb, "  [-] %s\n", displayHost(d))
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Unchanged matches: %d\n\n", c.UnchangedCount)
	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by tineye\n")
	sb.WriteString("https://github.com/nao1215/tineye\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
