package model

import (
	"math"
	"time"

	"github.com/nao1215/tineye"
)

// Trends of a comparison, based on the number of matches.
const (
	TrendGrowing   = "growing"
	TrendShrinking = "shrinking"
	TrendUnchanged = "unchanged"
)

// scoreEpsilon ignores score differences below display precision.
const scoreEpsilon = 0.01

// ReportMeta summarizes one side of a comparison.
type ReportMeta struct {
	ID           int64     `json:"id"`
	SearchedAt   time.Time `json:"searched_at"`
	TotalResults int64     `json:"total_results"`
	MatchCount   int       `json:"match_count"`
	DomainCount  int       `json:"domain_count"`
}

// ScoreChange is a match present in both searches with a different score.
type ScoreChange struct {
	ImageURL string  `json:"image_url"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
}

// Delta returns Current minus Previous.
func (s ScoreChange) Delta() float64 {
	return s.Current - s.Previous
}

// Comparison is the difference between two searches for the same image.
type Comparison struct {
	// Query is the searched image of the current report.
	Query string `json:"query"`

	Previous ReportMeta `json:"previous"`
	Current  ReportMeta `json:"current"`

	// NewMatches are in the current search only, in current rank order.
	NewMatches []tineye.Match `json:"new_matches,omitempty"`

	// GoneMatches are in the previous search only, in previous rank order.
	GoneMatches []tineye.Match `json:"gone_matches,omitempty"`

	// ScoreChanges are matches whose score moved.
	ScoreChanges []ScoreChange `json:"score_changes,omitempty"`

	// UnchangedCount is the number of matches in both searches.
	UnchangedCount int `json:"unchanged_count"`

	// NewDomains and GoneDomains list domains that appeared or disappeared.
	NewDomains  []string `json:"new_domains,omitempty"`
	GoneDomains []string `json:"gone_domains,omitempty"`

	// Trend is TrendGrowing, TrendShrinking or TrendUnchanged.
	Trend string `json:"trend"`
}

func newReportMeta(r *SearchReport) ReportMeta {
	return ReportMeta{
		ID:           r.ID,
		SearchedAt:   r.SearchedAt,
		TotalResults: r.TotalResults,
		MatchCount:   len(r.Matches),
		DomainCount:  len(r.DomainCounts()),
	}
}

// Compare computes the difference from previous to current.
func Compare(previous, current *SearchReport) *Comparison {
	c := &Comparison{
		Query:    current.Query,
		Previous: newReportMeta(previous),
		Current:  newReportMeta(current),
	}

	prevByKey := make(map[string]tineye.Match, len(previous.Matches))
	for _, m := range previous.Matches {
		prevByKey[MatchKey(m)] = m
	}
	curKeys := make(map[string]bool, len(current.Matches))

	for _, m := range current.Matches {
		key := MatchKey(m)
		curKeys[key] = true
		old, ok := prevByKey[key]
		if !ok {
			c.NewMatches = append(c.NewMatches, m)
			continue
		}
		c.UnchangedCount++
		if math.Abs(m.Score-old.Score) >= scoreEpsilon {
			c.ScoreChanges = append(c.ScoreChanges, ScoreChange{
				ImageURL: key,
				Previous: old.Score,
				Current:  m.Score,
			})
		}
	}
	for _, m := range previous.Matches {
		if !curKeys[MatchKey(m)] {
			c.GoneMatches = append(c.GoneMatches, m)
		}
	}

	c.NewDomains, c.GoneDomains = diffDomains(previous.DomainCounts(), current.DomainCounts())

	switch {
	case c.Current.TotalResults > c.Previous.TotalResults:
		c.Trend = TrendGrowing
	case c.Current.TotalResults < c.Previous.TotalResults:
		c.Trend = TrendShrinking
	default:
		c.Trend = TrendUnchanged
	}
	return c
}

func diffDomains(previous, current []DomainCount) (added, removed []string) {
	prev := make(map[string]bool, len(previous))
	for _, d := range previous {
		prev[d.Domain] = true
	}
	cur := make(map[string]bool, len(current))
	for _, d := range current {
		cur[d.Domain] = true
		if !prev[d.Domain] {
			added = append(added, d.Domain)
		}
	}
	for _, d := range previous {
		if !cur[d.Domain] {
			removed = append(removed, d.Domain)
		}
	}
	return added, removed
}
