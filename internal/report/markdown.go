package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/tineye"
	"github.com/nao1215/tineye/internal/model"
)

// maxPieSlices caps the domain chart; smaller domains are merged into "others".
const maxPieSlices = 8

// MarkdownWriter outputs reports in Markdown format for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSearch outputs the search report in Markdown format.
func (w *MarkdownWriter) WriteSearch(report *model.SearchReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("TinEye Search Report")
	md.PlainText("")
	w.writeSearch(md, report)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteSearches outputs every report of a batch in one document.
func (w *MarkdownWriter) WriteSearches(reports []*model.SearchReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("TinEye Batch Search Report")
	md.PlainText("")

	rows := make([][]string, 0, len(reports))
	for i, r := range reports {
		status := "✅ " + strconv.FormatInt(r.TotalResults, 10) + " results"
		if r.Failed() {
			status = "❌ " + r.Error
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), "`" + r.Query + "`", status})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Query", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range reports {
		md.HorizontalRule()
		md.PlainText("")
		w.writeSearch(md, r)
	}
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeSearch(md *markdown.Markdown, report *model.SearchReport) {
	md.H2("Search: " + report.Query)
	md.PlainText("")

	rows := [][]string{
		{"Query", "`" + report.Query + "`"},
		{"Kind", string(report.Kind)},
		{"Search Date", formatDate(report.SearchedAt, dateTimeFormat)},
	}
	if report.Digest != "" {
		rows = append(rows, []string{"Digest", "`" + report.Digest + "`"})
	}
	if report.Profile != "" {
		rows = append(rows, []string{"Profile", report.Profile})
	}
	if report.ID != 0 {
		rows = append(rows, []string{"History ID", strconv.FormatInt(report.ID, 10)})
	}
	rows = append(rows, []string{"Status", w.getStatusText(report)})
	if !report.Failed() {
		rows = append(rows,
			[]string{"Total Results", strconv.FormatInt(report.TotalResults, 10)},
			[]string{"Backlinks", strconv.Itoa(report.BacklinkCount())},
		)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(report.Messages) > 0 {
		md.Note(strings.Join(report.Messages, " "))
		md.PlainText("")
	}

	if !report.Failed() {
		w.writeMatches(md, report)
		w.writeDomains(md, report.DomainCounts())
	}
	w.writeFindings(md, report.Findings)
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.SearchReport) string {
	if report.Failed() {
		return "❌ Error - " + report.Error
	}
	if len(report.Matches) == 0 {
		return "⚪ No matches"
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeMatches(md *markdown.Markdown, report *model.SearchReport) {
	md.PlainText("### Matches")
	md.PlainText("")

	if len(report.Matches) == 0 {
		md.PlainText("No matches found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Matches))
	for i, m := range report.Matches {
		earliest := "-"
		for _, b := range m.Backlinks {
			if b.CrawlDate.IsZero() {
				continue
			}
			d := b.CrawlDate.Format(dateFormat)
			if earliest == "-" || d < earliest {
				earliest = d
			}
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.2f", m.Score),
			displayHost(model.MatchDomain(m)),
			truncateString(m.ImageURL, 60),
			fmt.Sprintf("%dx%d", m.Width, m.Height),
			strconv.Itoa(len(m.Backlinks)),
			earliest,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Score", "Domain", "Image", "Size", "Backlinks", "First Crawled"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeDomains(md *markdown.Markdown, domains []model.DomainCount) {
	if len(domains) == 0 {
		return
	}

	md.PlainText("### Domains")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Matches per Domain"),
		piechart.WithShowData(true),
	)
	others := 0
	for i, d := range domains {
		if i >= maxPieSlices {
			others += d.Count
			continue
		}
		chart.LabelAndIntValue(displayHost(d.Domain), uint64(d.Count)) //nolint:gosec // counts are non-negative
	}
	if others > 0 {
		chart.LabelAndIntValue("others", uint64(others)) //nolint:gosec // counts are non-negative
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFindings writes all findings grouped by severity.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, findings []model.Finding) {
	md.PlainText("### Findings")
	md.PlainText("")

	counts := model.CountFindings(findings)
	w.writeAlert(md, counts)

	if len(findings) == 0 {
		return
	}

	headers := map[model.Severity]string{
		model.SeverityCritical: "#### 🔴 Critical",
		model.SeverityHigh:     "#### 🟠 High",
		model.SeverityMedium:   "#### 🟡 Medium",
		model.SeverityLow:      "#### 🔵 Low",
		model.SeverityInfo:     "#### ⚪ Info",
	}

	for _, sev := range severityOrder {
		group := model.FilterBySeverity(findings, sev)
		if len(group) == 0 {
			continue
		}
		md.PlainText(headers[sev])
		md.PlainText("")
		w.writeFindingsTable(md, group)
	}
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, counts model.SeverityCounts) {
	switch {
	case counts.Critical > 0:
		md.Cautionf("%d critical finding(s): the image reveals where it was taken.", counts.Critical)
	case counts.High > 0:
		md.Warningf("%d high severity finding(s): the image identifies a device.", counts.High)
	case counts.Medium > 0:
		md.Importantf("%d medium severity finding(s) may identify the author.", counts.Medium)
	case counts.Low+counts.Info > 0:
		md.Note("Only low severity and informational findings detected.")
	default:
		md.Tip("No findings.")
	}
	md.PlainText("")
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Finding) {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		rows[i] = []string{
			f.Title,
			truncateString(orDash(f.Value), 50),
			truncateString(orDash(f.Location), 40),
			truncateString(orDash(f.Recommendation), 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Value", "Location", "Recommendation"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range findings {
		if f.Description != "" {
			md.Details(f.Title, f.Description)
		}
	}
	md.PlainText("")
}

// WriteUsage outputs the quota snapshot in Markdown format.
func (w *MarkdownWriter) WriteUsage(report *model.UsageReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("TinEye Search Quota")
	md.PlainText("")

	rows := [][]string{
		{"Checked At", formatDate(report.CheckedAt, dateTimeFormat)},
		{"Remaining Searches", strconv.FormatInt(report.RemainingSearches, 10)},
		{"Start Date", formatDate(report.StartDate, dateFormat)},
		{"Expire Date", formatDate(report.ExpireDate, dateFormat)},
	}
	if report.Profile != "" {
		rows = append([][]string{{"Profile", report.Profile}}, rows...)
	}
	if c := report.Change; c != nil {
		label, n := "Used Since Last Check", c.Used
		if n < 0 {
			label, n = "Added Since Last Check", -n
		}
		rows = append(rows, []string{label,
			fmt.Sprintf("%d (since %s)", n, formatDate(c.PreviousCheckedAt, dateTimeFormat))})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Expired(report.CheckedAt) {
		md.Cautionf("The search bundle expired on %s.", report.ExpireDate.Format(dateFormat))
		md.PlainText("")
	} else if report.RemainingSearches == 0 {
		md.Warningf("No searches left.")
		md.PlainText("")
	}

	if len(report.Bundles) > 0 {
		md.H2("Bundles")
		md.PlainText("")
		bundleRows := make([][]string, 0, len(report.Bundles))
		for _, b := range report.Bundles {
			bundleRows = append(bundleRows, []string{
				strconv.FormatInt(b.RemainingSearches, 10),
				formatDate(b.StartDate, dateFormat),
				formatDate(b.ExpireDate, dateFormat),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Remaining", "Start", "Expire"},
			Rows:   bundleRows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteComparison outputs the comparison in Markdown format.
func (w *MarkdownWriter) WriteComparison(c *model.Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("TinEye Search Comparison")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"", "Previous", "Current"},
		Rows: [][]string{
			{"History ID", strconv.FormatInt(c.Previous.ID, 10), strconv.FormatInt(c.Current.ID, 10)},
			{"Search Date", formatDate(c.Previous.SearchedAt, dateTimeFormat), formatDate(c.Current.SearchedAt, dateTimeFormat)},
			{"Total Results", strconv.FormatInt(c.Previous.TotalResults, 10), strconv.FormatInt(c.Current.TotalResults, 10)},
			{"Matches", strconv.Itoa(c.Previous.MatchCount), strconv.Itoa(c.Current.MatchCount)},
			{"Domains", strconv.Itoa(c.Previous.DomainCount), strconv.Itoa(c.Current.DomainCount)},
		},
	})
	md.PlainText("")

	switch c.Trend {
	case model.TrendGrowing:
		md.Warningf("%s: %d new match(es) since the previous search.", title(c.Trend), len(c.NewMatches))
	case model.TrendShrinking:
		md.Note(title(c.Trend) + ": fewer results than the previous search.")
	default:
		md.Tip(title(c.Trend) + ": the number of results did not change.")
	}
	md.PlainText("")

	md.H2("New Matches")
	md.PlainText("")
	w.writeMatchList(md, c.NewMatches)

	md.H2("Gone Matches")
	md.PlainText("")
	w.writeMatchList(md, c.GoneMatches)

	if len(c.ScoreChanges) > 0 {
		md.H2("Score Changes")
		md.PlainText("")
		rows := make([][]string, 0, len(c.ScoreChanges))
		for _, s := range c.ScoreChanges {
			rows = append(rows, []string{
				truncateString(s.ImageURL, 60),
				fmt.Sprintf("%.2f", s.Previous),
				fmt.Sprintf("%.2f", s.Current),
				fmt.Sprintf("%+.2f", s.Delta()),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Image", "Previous", "Current", "Delta"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(c.NewDomains) > 0 || len(c.GoneDomains) > 0 {
		md.H2("Domains")
		md.PlainText("")
		items := make([]string, 0, len(c.NewDomains)+len(c.GoneDomains))
		for _, d := range c.NewDomains {
			items = append(items, "➕ "+displayHost(d))
		}
		for _, d := range c.GoneDomains {
			items = append(items, "➖ "+displayHost(d))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeMatchList(md *markdown.Markdown, matches []tineye.Match) {
	if len(matches) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}
	items := make([]string, 0, len(matches))
	for _, m := range matches {
		items = append(items, fmt.Sprintf("`%s` (%s, score %.2f)", m.ImageURL, displayHost(model.MatchDomain(m)), m.Score))
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [tineye](https://github.com/nao1215/tineye)*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
