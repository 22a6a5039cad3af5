package model

import "testing"

func TestNewFinding(t *testing.T) {
	t.Parallel()

	f := NewFinding(FindingExifGPS, "GPS Location", "desc", "35.6, 139.7", "photo.jpg")

	if f.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want %v", f.Severity, SeverityCritical)
	}
	if f.SeverityText != "CRITICAL" {
		t.Errorf("SeverityText = %q, want CRITICAL", f.SeverityText)
	}
	if f.Impact == "" || f.Recommendation == "" {
		t.Error("expected impact and recommendation from the finding type")
	}
	if f.Key() != "exif_gps|35.6, 139.7|photo.jpg" {
		t.Errorf("Key() = %q", f.Key())
	}
}

func TestCountFindings(t *testing.T) {
	t.Parallel()

	findings := []Finding{
		NewFinding(FindingExifGPS, "", "", "", ""),
		NewFinding(FindingExifSerialNumber, "", "", "", ""),
		NewFinding(FindingExifOwner, "", "", "", ""),
		NewFinding(FindingWideExposure, "", "", "", ""),
		NewFinding(FindingExifDevice, "", "", "", ""),
		NewFinding(FindingImageFound, "", "", "", ""),
		NewFinding(FindingEarliestSighting, "", "", "", ""),
	}

	got := CountFindings(findings)
	want := SeverityCounts{Critical: 1, High: 1, Medium: 2, Low: 1, Info: 2}
	if got != want {
		t.Errorf("CountFindings() = %+v, want %+v", got, want)
	}

	if score := got.Score(); score != 100+50+20+5+2 {
		t.Errorf("Score() = %d, want %d", score, 177)
	}
}

func TestFilterBySeverity(t *testing.T) {
	t.Parallel()

	findings := []Finding{
		NewFinding(FindingExifDevice, "", "", "Canon", ""),
		NewFinding(FindingExifGPS, "", "", "", ""),
		NewFinding(FindingExifSoftware, "", "", "GIMP", ""),
	}

	low := FilterBySeverity(findings, SeverityLow)
	if len(low) != 2 {
		t.Fatalf("got %d low findings, want 2", len(low))
	}
	if low[0].Value != "Canon" || low[1].Value != "GIMP" {
		t.Errorf("unexpected order: %+v", low)
	}
	if got := FilterBySeverity(findings, SeverityHigh); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}
