package model

import (
	"time"

	"github.com/nao1215/tineye"
)

// UsageReport is a snapshot of the account's search quota.
type UsageReport struct {
	// ID is the history record ID; zero until saved.
	ID int64 `json:"id,omitempty"`

	// Profile is the configuration profile the check ran under.
	Profile string `json:"profile,omitempty"`

	// CheckedAt is when the quota was queried.
	CheckedAt time.Time `json:"checked_at"`

	// RemainingSearches is the number of searches left.
	RemainingSearches int64 `json:"remaining_searches"`

	// StartDate and ExpireDate bound the current bundle; zero when unknown.
	StartDate  time.Time `json:"start_date"`
	ExpireDate time.Time `json:"expire_date"`

	// Bundles lists individual bundles when the server reports them.
	Bundles []tineye.Bundle `json:"bundles,omitempty"`

	// Change is the difference to the previous stored snapshot of the same
	// profile. Nil when there is none. Not persisted.
	Change *UsageChange `json:"change,omitempty"`
}

// UsageChange describes quota use between two checks.
type UsageChange struct {
	// PreviousCheckedAt is when the earlier snapshot was taken.
	PreviousCheckedAt time.Time `json:"previous_checked_at"`

	// Used is the number of searches spent since then.
	// Negative when quota was added.
	Used int64 `json:"used"`
}

// NewUsageReport builds a snapshot from a RemainingSearches response.
func NewUsageReport(resp *tineye.UsageResponse, profile string, at time.Time) *UsageReport {
	r := &UsageReport{Profile: profile, CheckedAt: at}
	if resp == nil {
		return r
	}
	r.RemainingSearches = resp.RemainingSearches
	r.StartDate = resp.StartDate
	r.ExpireDate = resp.ExpireDate
	r.Bundles = resp.Bundles
	return r
}

// CompareWith records the change since previous. A nil previous clears it.
func (r *UsageReport) CompareWith(previous *UsageReport) {
	if previous == nil {
		r.Change = nil
		return
	}
	r.Change = &UsageChange{
		PreviousCheckedAt: previous.CheckedAt,
		Used:              previous.RemainingSearches - r.RemainingSearches,
	}
}

// DaysLeft returns the whole days until ExpireDate, or -1 when it is unknown.
// An expired bundle returns 0.
func (r *UsageReport) DaysLeft(now time.Time) int {
	if r.ExpireDate.IsZero() {
		return -1
	}
	d := r.ExpireDate.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Expired reports whether the bundle has expired at now.
func (r *UsageReport) Expired(now time.Time) bool {
	return !r.ExpireDate.IsZero() && !now.Before(r.ExpireDate)
}
