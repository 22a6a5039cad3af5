package model

// Severity represents how much a finding matters to the user's privacy.
type Severity int

const (
	// SeverityInfo indicates informational findings, e.g. where an image was seen first.
	SeverityInfo Severity = iota

	// SeverityLow indicates metadata that narrows down the source of an image,
	// such as the camera model or editing software.
	SeverityLow

	// SeverityMedium indicates data that points to a person or machine,
	// or an image spread over many sites.
	SeverityMedium

	// SeverityHigh indicates identifiers unique to one device.
	SeverityHigh

	// SeverityCritical indicates data that reveals a physical location.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Finding types.
const (
	FindingExifGPS          = "exif_gps"
	FindingExifSerialNumber = "exif_serial_number"
	FindingExifOwner        = "exif_owner"
	FindingExifHostComputer = "exif_host_computer"
	FindingExifDevice       = "exif_device"
	FindingExifSoftware     = "exif_software"
	FindingExifDateTime     = "exif_datetime"
	FindingExifMetadata     = "exif_metadata"
	FindingWideExposure     = "wide_exposure"
	FindingImageFound       = "image_found"
	FindingContributorMatch = "contributor_match"
	FindingEarliestSighting = "earliest_sighting"
)

// FindingInfo contains metadata about a finding type including severity,
// impact description, and remediation recommendation.
type FindingInfo struct {
	Severity       Severity
	Impact         string
	Recommendation string
}

// findingInfoMapping maps finding types to their metadata.
var findingInfoMapping = map[string]FindingInfo{
	FindingExifGPS: {
		Severity:       SeverityCritical,
		Impact:         "GPS coordinates in the image reveal where it was taken, often a home or workplace.",
		Recommendation: "Strip location data before publishing or uploading the image.",
	},
	FindingExifSerialNumber: {
		Severity:       SeverityHigh,
		Impact:         "A camera or lens serial number links every image taken with the same device.",
		Recommendation: "Remove maker notes and serial number tags before sharing.",
	},
	FindingExifOwner: {
		Severity:       SeverityMedium,
		Impact:         "Artist, owner or copyright tags name the person who took or owns the image.",
		Recommendation: "Clear the artist and owner fields unless attribution is intended.",
	},
	FindingExifHostComputer: {
		Severity:       SeverityMedium,
		Impact:         "The host computer name can identify the machine the image was processed on.",
		Recommendation: "Remove the HostComputer tag.",
	},
	FindingExifDevice: {
		Severity:       SeverityLow,
		Impact:         "Camera make and model narrow down who could have taken the image.",
		Recommendation: "Strip device tags if the source should stay anonymous.",
	},
	FindingExifSoftware: {
		Severity:       SeverityLow,
		Impact:         "The editing software and version fingerprint the author's toolchain.",
		Recommendation: "Remove the Software tag.",
	},
	FindingExifDateTime: {
		Severity:       SeverityLow,
		Impact:         "Capture timestamps reveal when the image was taken.",
		Recommendation: "Remove DateTime tags if timing is sensitive.",
	},
	FindingExifMetadata: {
		Severity:       SeverityInfo,
		Impact:         "The image carries EXIF metadata.",
		Recommendation: "Review the metadata before publishing.",
	},
	FindingWideExposure: {
		Severity:       SeverityMedium,
		Impact:         "The image appears on many different sites, so removing it from one place will not take it offline.",
		Recommendation: "Review the listed domains and request removal where needed.",
	},
	FindingImageFound: {
		Severity:       SeverityInfo,
		Impact:         "Copies of the image are indexed on the web.",
		Recommendation: "Check whether the listed pages are authorized to use it.",
	},
	FindingContributorMatch: {
		Severity:       SeverityInfo,
		Impact:         "A match comes from a contributor collection such as a stock photo library.",
		Recommendation: "Check the license of the contributor image.",
	},
	FindingEarliestSighting: {
		Severity:       SeverityInfo,
		Impact:         "The earliest crawl date hints at where the image was first published.",
		Recommendation: "Use the earliest backlink as a starting point for provenance research.",
	},
}

// GetSeverity returns the severity level for a finding type.
// Returns SeverityInfo if the finding type is not in the mapping.
func GetSeverity(findingType string) Severity {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info.Severity
	}
	return SeverityInfo
}

// GetFindingInfo returns the full finding information for a finding type.
// Returns a default FindingInfo with SeverityInfo if the type is not in the mapping.
func GetFindingInfo(findingType string) FindingInfo {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info
	}
	return FindingInfo{
		Severity:       SeverityInfo,
		Impact:         "Unknown finding type. Review manually.",
		Recommendation: "Investigate the finding and assess risk.",
	}
}
