package model

// Finding is a single observation about an image or its search results.
type Finding struct {
	// Type is the finding type identifier (see the Finding* constants).
	Type string `json:"type"`

	// Severity is the risk level.
	Severity Severity `json:"severity"`

	// SeverityText is the human-readable severity.
	SeverityText string `json:"severity_text"`

	// Title is a short description of the finding.
	Title string `json:"title"`

	// Description provides more detail about the finding.
	Description string `json:"description,omitempty"`

	// Impact explains why the finding matters.
	Impact string `json:"impact,omitempty"`

	// Recommendation provides guidance on how to address this finding.
	Recommendation string `json:"recommendation,omitempty"`

	// Value is the specific value found (tag value, domain count, date).
	Value string `json:"value,omitempty"`

	// Location is where the finding was discovered (file, tag, URL).
	Location string `json:"location,omitempty"`
}

// NewFinding creates a Finding with severity, impact and recommendation
// filled from the finding type.
func NewFinding(findingType, title, description, value, location string) Finding {
	info := GetFindingInfo(findingType)
	return Finding{
		Type:           findingType,
		Severity:       info.Severity,
		SeverityText:   info.Severity.String(),
		Title:          title,
		Description:    description,
		Impact:         info.Impact,
		Recommendation: info.Recommendation,
		Value:          value,
		Location:       location,
	}
}

// Key identifies a finding across reports.
func (f Finding) Key() string {
	return f.Type + "|" + f.Value + "|" + f.Location
}

// SeverityCounts counts findings per severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// CountFindings counts findings by severity level.
func CountFindings(findings []Finding) SeverityCounts {
	var c SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		case SeverityInfo:
			c.Info++
		}
	}
	return c
}

// Score weights the counts so that one critical finding outweighs many minor ones.
func (c SeverityCounts) Score() int {
	return c.Critical*100 + c.High*50 + c.Medium*10 + c.Low*5 + c.Info
}

// FilterBySeverity returns the findings at the given level.
func FilterBySeverity(findings []Finding, severity Severity) []Finding {
	var result []Finding
	for _, f := range findings {
		if f.Severity == severity {
			result = append(result, f)
		}
	}
	return result
}
