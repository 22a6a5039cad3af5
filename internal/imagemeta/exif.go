package imagemeta

import (
	"encoding/hex"
	"errors"
	"sort"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	"golang.org/x/crypto/blake2b"

	"github.com/nao1215/tineye/internal/model"
)

// tagGroup maps EXIF tag names to the finding they produce.
type tagGroup struct {
	findingType string
	title       string
	description string
	tags        []string
}

// tagGroups lists the tags worth reporting, most sensitive first.
var tagGroups = []tagGroup{
	{
		findingType: model.FindingExifGPS,
		title:       "GPS Coordinates in Image EXIF",
		description: "The image contains GPS coordinates that reveal where it was taken.",
		tags:        []string{"GPSLatitude", "GPSLongitude", "GPSLatitudeRef", "GPSLongitudeRef", "GPSAltitude"},
	},
	{
		findingType: model.FindingExifSerialNumber,
		title:       "Device Serial Number in Image EXIF",
		description: "The image contains a serial number that links it to one physical device.",
		tags:        []string{"SerialNumber", "CameraSerialNumber", "BodySerialNumber", "LensSerialNumber"},
	},
	{
		findingType: model.FindingExifOwner,
		title:       "Owner Information in Image EXIF",
		description: "The image names its author, owner or copyright holder.",
		tags:        []string{"Artist", "Author", "XPAuthor", "Copyright", "CameraOwnerName"},
	},
	{
		findingType: model.FindingExifHostComputer,
		title:       "Host Computer in Image EXIF",
		description: "The image contains the name of the computer used to process it.",
		tags:        []string{"HostComputer"},
	},
	{
		findingType: model.FindingExifDevice,
		title:       "Camera Information in Image EXIF",
		description: "The image contains the camera make or model.",
		tags:        []string{"Make", "Model", "LensMake", "LensModel"},
	},
	{
		findingType: model.FindingExifSoftware,
		title:       "Software Information in Image EXIF",
		description: "The image names the software used to create or edit it.",
		tags:        []string{"Software", "ProcessingSoftware"},
	},
	{
		findingType: model.FindingExifDateTime,
		title:       "Timestamp in Image EXIF",
		description: "The image records when it was taken or modified.",
		tags:        []string{"DateTimeOriginal", "DateTimeDigitized", "DateTime"},
	},
}

// findingForTag is built from tagGroups.
var findingForTag = func() map[string]int {
	m := make(map[string]int)
	for i, g := range tagGroups {
		for _, tag := range g.tags {
			m[tag] = i
		}
	}
	return m
}()

// Tag is one EXIF entry.
type Tag struct {
	Name  string
	Value string
}

// ReadTags extracts the EXIF entries of an image. An image without EXIF data
// returns (nil, nil).
func ReadTags(data []byte) ([]Tag, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return nil, nil
		}
		return nil, err
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(entries))
	for _, entry := range entries {
		tags = append(tags, Tag{Name: entry.TagName, Value: strings.TrimSpace(entry.Formatted)})
	}
	return tags, nil
}

// Check returns the privacy findings for an image. location names the image
// in the findings, usually its file path. Images without EXIF data, or that
// cannot be parsed, yield no findings.
func Check(data []byte, location string) []model.Finding {
	tags, err := ReadTags(data)
	if err != nil || len(tags) == 0 {
		return nil
	}
	return analyzeTags(tags, location)
}

// analyzeTags groups tags into one finding per group, so a photo with four
// GPS tags reports a single GPS finding.
func analyzeTags(tags []Tag, location string) []model.Finding {
	values := make(map[int][]string)
	seen := make(map[string]bool)
	for _, tag := range tags {
		idx, ok := findingForTag[tag.Name]
		if !ok || tag.Value == "" {
			continue
		}
		key := tag.Name + "=" + tag.Value
		if seen[key] {
			continue
		}
		seen[key] = true
		values[idx] = append(values[idx], tag.Name+": "+tag.Value)
	}

	if len(values) == 0 {
		return []model.Finding{model.NewFinding(model.FindingExifMetadata,
			"EXIF Metadata Present",
			"The image carries EXIF metadata without identifying tags.",
			"", location)}
	}

	indexes := make([]int, 0, len(values))
	for idx := range values {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	findings := make([]model.Finding, 0, len(indexes))
	for _, idx := range indexes {
		g := tagGroups[idx]
		findings = append(findings, model.NewFinding(g.findingType, g.title, g.description,
			strings.Join(values[idx], "; "), location))
	}
	return findings
}

// Digest returns the hex BLAKE2b-256 digest of data. It identifies uploaded
// images in the search history independent of their file name.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
