package config

import (
	"fmt"
	"sort"
	"time"
)

// Profile holds the settings of one named credential.
// Several profiles let multiple accounts or sandboxes coexist in one file.
type Profile struct {
	// APIURL overrides the base API URL (e.g. a sandbox endpoint).
	APIURL string `yaml:"apiUrl,omitempty"`

	// APIKey is the credential for this profile.
	APIKey string `yaml:"apiKey,omitempty"`

	// Proxy is a SOCKS5 proxy in "host:port" format.
	Proxy string `yaml:"proxy,omitempty"`

	// Timeout overrides the per-call deadline, e.g. "30s".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Limit is the default number of results per search.
	Limit int `yaml:"limit,omitempty"`

	// BacklinkLimit is the default number of backlinks per match.
	BacklinkLimit int `yaml:"backlinkLimit,omitempty"`

	// Sort and Order are the default result ordering.
	Sort  string `yaml:"sort,omitempty"`
	Order string `yaml:"order,omitempty"`

	// BatchSize is the default number of concurrent searches.
	BatchSize int `yaml:"batchSize,omitempty"`

	// DBDir overrides the history database directory.
	DBDir string `yaml:"dbDir,omitempty"`
}

// File represents the structure of the .tineye configuration file.
type File struct {
	// DefaultProfile names the profile used when --profile is not given.
	DefaultProfile string `yaml:"defaultProfile,omitempty"`

	// Defaults apply to every profile unless overridden.
	Defaults Profile `yaml:"defaults,omitempty"`

	// Profiles maps profile names to their settings.
	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// ProfileNames returns the configured profile names in sorted order.
func (f *File) ProfileNames() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProfile returns the named profile merged over the defaults.
// An empty name selects DefaultProfile; if that is empty too, the defaults
// alone are returned.
func (f *File) GetProfile(name string) (string, Profile, error) {
	if name == "" {
		name = f.DefaultProfile
	}
	result := f.Defaults
	if name == "" {
		return "", result, nil
	}

	p, ok := f.Profiles[name]
	if !ok {
		return "", Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	if p.APIURL != "" {
		result.APIURL = p.APIURL
	}
	if p.APIKey != "" {
		result.APIKey = p.APIKey
	}
	if p.Proxy != "" {
		result.Proxy = p.Proxy
	}
	if p.Timeout > 0 {
		result.Timeout = p.Timeout
	}
	if p.UserAgent != "" {
		result.UserAgent = p.UserAgent
	}
	if p.Limit > 0 {
		result.Limit = p.Limit
	}
	if p.BacklinkLimit > 0 {
		result.BacklinkLimit = p.BacklinkLimit
	}
	if p.Sort != "" {
		result.Sort = p.Sort
	}
	if p.Order != "" {
		result.Order = p.Order
	}
	if p.BatchSize > 0 {
		result.BatchSize = p.BatchSize
	}
	if p.DBDir != "" {
		result.DBDir = p.DBDir
	}
	return name, result, nil
}
