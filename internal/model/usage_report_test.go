package model

import (
	"testing"
	"time"

	"github.com/nao1215/tineye"
)

func TestUsageReport(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	resp := &tineye.UsageResponse{
		RemainingSearches: 500,
		StartDate:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpireDate:        time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC),
	}

	r := NewUsageReport(resp, "work", now)
	if r.RemainingSearches != 500 || r.Profile != "work" || !r.CheckedAt.Equal(now) {
		t.Errorf("unexpected report: %+v", r)
	}

	t.Run("days left", func(t *testing.T) {
		t.Parallel()

		if got := r.DaysLeft(now); got != 10 {
			t.Errorf("DaysLeft() = %d, want 10", got)
		}
		if r.Expired(now) {
			t.Error("bundle should not be expired")
		}
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()

		later := r.ExpireDate.Add(time.Hour)
		if got := r.DaysLeft(later); got != 0 {
			t.Errorf("DaysLeft() = %d, want 0", got)
		}
		if !r.Expired(later) {
			t.Error("bundle should be expired")
		}
	})

	t.Run("unknown expiry", func(t *testing.T) {
		t.Parallel()

		empty := NewUsageReport(nil, "", now)
		if got := empty.DaysLeft(now); got != -1 {
			t.Errorf("DaysLeft() = %d, want -1", got)
		}
		if empty.Expired(now) {
			t.Error("unknown expiry should not count as expired")
		}
	})
}

func TestUsageReportCompareWith(t *testing.T) {
	t.Parallel()

	earlier := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := earlier.Add(3 * time.Hour)

	tests := []struct {
		name     string
		previous *UsageReport
		current  int64
		want     *UsageChange
	}{
		{name: "no previous snapshot", current: 480},
		{
			name:     "searches spent",
			previous: &UsageReport{CheckedAt: earlier, RemainingSearches: 500},
			current:  480,
			want:     &UsageChange{PreviousCheckedAt: earlier, Used: 20},
		},
		{
			name:     "quota added",
			previous: &UsageReport{CheckedAt: earlier, RemainingSearches: 10},
			current:  5010,
			want:     &UsageChange{PreviousCheckedAt: earlier, Used: -5000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &UsageReport{CheckedAt: now, RemainingSearches: tt.current}
			r.CompareWith(tt.previous)
			switch {
			case tt.want == nil && r.Change != nil:
				t.Errorf("expected no change, got %+v", r.Change)
			case tt.want != nil && (r.Change == nil || *r.Change != *tt.want):
				t.Errorf("Change = %+v, want %+v", r.Change, tt.want)
			}
		})
	}
}
