package model

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/tineye"
)

// WideExposureThreshold is the number of distinct domains from which an
// image counts as widely spread.
const WideExposureThreshold = 10

// QueryKind tells how a search was started.
type QueryKind string

const (
	// QueryURL is a search by image URL.
	QueryURL QueryKind = "url"
	// QueryUpload is a search by uploaded image bytes.
	QueryUpload QueryKind = "upload"
)

// SearchReport is one search as shown to the user and stored in the history.
// It wraps the API response with the query, local findings and timing.
type SearchReport struct {
	// ID is the history record ID; zero until saved.
	ID int64 `json:"id,omitempty"`

	// Query is the image URL or the local file path.
	Query string `json:"query"`

	// Kind tells whether Query is a URL or an uploaded file.
	Kind QueryKind `json:"kind"`

	// Digest is the BLAKE2b digest of uploaded bytes; empty for URL searches.
	Digest string `json:"digest,omitempty"`

	// Profile is the configuration profile the search ran under.
	Profile string `json:"profile,omitempty"`

	// SearchedAt is when the search was performed.
	SearchedAt time.Time `json:"searched_at"`

	// TotalResults is the server-side total, which may exceed len(Matches).
	TotalResults int64 `json:"total_results"`

	// Matches are in server rank order.
	Matches []tineye.Match `json:"matches"`

	// Stats are the server supplied statistics.
	Stats tineye.Stats `json:"stats,omitempty"`

	// Messages are informational server messages.
	Messages []string `json:"messages,omitempty"`

	// Findings are local observations: EXIF data of uploads and result analysis.
	Findings []Finding `json:"findings,omitempty"`

	// Error is set when the search failed.
	Error string `json:"error,omitempty"`
}

// NewSearchReport builds a report from a successful response and analyzes
// its matches.
func NewSearchReport(query string, kind QueryKind, resp *tineye.SearchResponse, at time.Time) *SearchReport {
	r := &SearchReport{
		Query:      query,
		Kind:       kind,
		SearchedAt: at,
		Matches:    []tineye.Match{},
	}
	r.ApplyResponse(resp)
	return r
}

// ApplyResponse copies the results of a successful search into the report
// and appends the findings derived from them. Existing findings are kept.
func (r *SearchReport) ApplyResponse(resp *tineye.SearchResponse) {
	if resp == nil {
		return
	}
	r.TotalResults = resp.TotalResults
	if r.TotalResults < int64(len(resp.Matches)) {
		r.TotalResults = int64(len(resp.Matches))
	}
	r.Matches = append(make([]tineye.Match, 0, len(resp.Matches)), resp.Matches...)
	r.Stats = resp.Stats
	r.Messages = resp.Messages
	r.analyzeMatches()
}

// NewFailedSearchReport records a search that returned an error.
func NewFailedSearchReport(query string, kind QueryKind, err error, at time.Time) *SearchReport {
	return &SearchReport{
		Query:      query,
		Kind:       kind,
		SearchedAt: at,
		Matches:    []tineye.Match{},
		Error:      err.Error(),
	}
}

// HistoryKey identifies the searched image across runs: the URL for URL
// searches and the digest for uploads, so renamed files still match.
func (r *SearchReport) HistoryKey() string {
	if r.Kind == QueryUpload && r.Digest != "" {
		return r.Digest
	}
	return r.Query
}

// AddFindings appends findings, e.g. from an EXIF check.
func (r *SearchReport) AddFindings(findings ...Finding) {
	r.Findings = append(r.Findings, findings...)
}

// Counts counts the findings by severity.
func (r *SearchReport) Counts() SeverityCounts {
	return CountFindings(r.Findings)
}

// Failed reports whether the search returned an error.
func (r *SearchReport) Failed() bool {
	return r.Error != ""
}

// BacklinkCount returns the number of backlinks over all matches.
func (r *SearchReport) BacklinkCount() int {
	n := 0
	for _, m := range r.Matches {
		n += len(m.Backlinks)
	}
	return n
}

// DomainCount is the number of matches found on one domain.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// DomainCounts returns the matches per domain, most frequent first.
func (r *SearchReport) DomainCounts() []DomainCount {
	counts := make(map[string]int)
	for _, m := range r.Matches {
		if d := MatchDomain(m); d != "" {
			counts[d]++
		}
	}
	result := make([]DomainCount, 0, len(counts))
	for d, c := range counts {
		result = append(result, DomainCount{Domain: d, Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Domain < result[j].Domain
	})
	return result
}

// EarliestBacklink returns the backlink with the oldest known crawl date.
func (r *SearchReport) EarliestBacklink() (tineye.Backlink, bool) {
	var earliest tineye.Backlink
	found := false
	for _, m := range r.Matches {
		for _, b := range m.Backlinks {
			if b.CrawlDate.IsZero() {
				continue
			}
			if !found || b.CrawlDate.Before(earliest.CrawlDate) {
				earliest = b
				found = true
			}
		}
	}
	return earliest, found
}

// MatchDomain returns the domain a match was found on: the server supplied
// domain, else the host of the first backlink page, else the image host.
func MatchDomain(m tineye.Match) string {
	if m.Domain != "" {
		return strings.ToLower(m.Domain)
	}
	for _, b := range m.Backlinks {
		if h := hostOf(b.Backlink); h != "" {
			return h
		}
		if h := hostOf(b.URL); h != "" {
			return h
		}
	}
	return hostOf(m.ImageURL)
}

// MatchKey identifies a match across reports.
func MatchKey(m tineye.Match) string {
	if m.ImageURL != "" {
		return m.ImageURL
	}
	for _, b := range m.Backlinks {
		if b.URL != "" {
			return b.URL
		}
	}
	return ""
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// analyzeMatches derives findings from the search results.
func (r *SearchReport) analyzeMatches() {
	if len(r.Matches) == 0 {
		return
	}

	r.AddFindings(NewFinding(FindingImageFound, "Image Found Online",
		"Copies of the image were found by the search",
		strconv.FormatInt(r.TotalResults, 10), r.Query))

	domains := r.DomainCounts()
	if len(domains) >= WideExposureThreshold {
		r.AddFindings(NewFinding(FindingWideExposure, "Image Widely Spread",
			fmt.Sprintf("Matches were found on %d different domains", len(domains)),
			strconv.Itoa(len(domains)), ""))
	}

	for _, m := range r.Matches {
		if m.Contributor {
			r.AddFindings(NewFinding(FindingContributorMatch, "Contributor Collection Match",
				"The image matches an image from a contributor collection",
				MatchDomain(m), m.ImageURL))
		}
	}

	if b, ok := r.EarliestBacklink(); ok {
		location := b.Backlink
		if location == "" {
			location = b.URL
		}
		r.AddFindings(NewFinding(FindingEarliestSighting, "Earliest Sighting",
			"Oldest crawl date among all backlinks",
			b.CrawlDate.Format(time.DateOnly), location))
	}
}
