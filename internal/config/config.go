package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/tineye"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "tineye"

	// DefaultTimeout bounds one API call, upload included.
	DefaultTimeout = tineye.DefaultTimeout

	// DefaultConnectTimeout bounds establishing the connection.
	DefaultConnectTimeout = tineye.DefaultConnectTimeout

	// DefaultBatchSize is the number of searches run concurrently.
	// Every search consumes quota, so this stays small.
	DefaultBatchSize = 4

	// DefaultMaxBodySize limits the response body read per call.
	DefaultMaxBodySize = tineye.DefaultMaxBodySize

	// DefaultMaxImageSize limits the local file read by the upload command.
	DefaultMaxImageSize = 20 * 1024 * 1024 // 20MB

	// EnvAPIKey overrides the API key from the configuration file.
	EnvAPIKey = "TINEYE_API_KEY"

	// EnvAPIURL overrides the API URL from the configuration file.
	EnvAPIURL = "TINEYE_API_URL"
)

// Config holds all options of one CLI invocation.
// It is populated from defaults, the configuration file, the environment
// and flags, in that order, and passed down explicitly.
type Config struct {
	// APIURL is the base URL of the REST API.
	APIURL string

	// APIKey is the credential sent with every request.
	APIKey string

	// Profile is the name of the configuration file profile in use.
	Profile string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// Timeout is the per-call deadline.
	Timeout time.Duration

	// ConnectTimeout is the dial timeout.
	ConnectTimeout time.Duration

	// UserAgent overrides the client's User-Agent when set.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// MaxImageSize is the maximum size of a local image to upload.
	MaxImageSize int64

	// Verbose enables debug logging.
	Verbose bool

	// BatchSize is the number of concurrent searches when several targets are given.
	BatchSize int

	// ConfigFilePath is the configuration file given with --config.
	ConfigFilePath string

	// Targets are image URLs or file paths to search.
	Targets []string

	// Offset, Limit and BacklinkLimit are passed to the search endpoint when
	// non-negative (Offset, BacklinkLimit) or positive (Limit). -1 leaves
	// them unset.
	Offset        int
	Limit         int
	BacklinkLimit int

	// Sort, Order and Domain are passed to the search endpoint when non-empty.
	Sort   string
	Order  string
	Domain string

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// TeeReport also prints a text report to stdout when ReportFile is set.
	TeeReport bool

	// DBDir is the directory of the search history database.
	DBDir string

	// SaveToDB records results in the history database.
	SaveToDB bool

	// SkipExifCheck disables the local EXIF check before uploads.
	SkipExifCheck bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		APIURL:         tineye.DefaultAPIURL,
		Timeout:        DefaultTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		MaxBodySize:    DefaultMaxBodySize,
		MaxImageSize:   DefaultMaxImageSize,
		BatchSize:      DefaultBatchSize,
		Offset:         -1,
		Limit:          -1,
		BacklinkLimit:  -1,
		DBDir:          XDGDataDir(),
		SaveToDB:       true,
	}
}

// XDGDataDir returns the data directory, which holds the history database.
// On Linux: ~/.local/share/tineye
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the configuration directory.
// On Linux: ~/.config/tineye
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyProfile copies the non-zero values of p into c.
func (c *Config) ApplyProfile(name string, p Profile) {
	c.Profile = name
	if p.APIURL != "" {
		c.APIURL = p.APIURL
	}
	if p.APIKey != "" {
		c.APIKey = p.APIKey
	}
	if p.Proxy != "" {
		c.ProxyAddress = p.Proxy
	}
	if p.Timeout > 0 {
		c.Timeout = p.Timeout
	}
	if p.UserAgent != "" {
		c.UserAgent = p.UserAgent
	}
	if p.Limit > 0 {
		c.Limit = p.Limit
	}
	if p.BacklinkLimit > 0 {
		c.BacklinkLimit = p.BacklinkLimit
	}
	if p.Sort != "" {
		c.Sort = p.Sort
	}
	if p.Order != "" {
		c.Order = p.Order
	}
	if p.BatchSize > 0 {
		c.BatchSize = p.BatchSize
	}
	if p.DBDir != "" {
		c.DBDir = p.DBDir
	}
}

// ApplyEnv overrides the API URL and key from the environment.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok && strings.TrimSpace(v) != "" {
		c.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAPIURL); ok && strings.TrimSpace(v) != "" {
		c.APIURL = strings.TrimSpace(v)
	}
}

// SearchOptions converts the search settings into client options.
func (c *Config) SearchOptions() []tineye.SearchOption {
	var opts []tineye.SearchOption
	if c.Offset >= 0 {
		opts = append(opts, tineye.WithOffset(c.Offset))
	}
	if c.Limit >= 0 {
		opts = append(opts, tineye.WithLimit(c.Limit))
	}
	if c.BacklinkLimit >= 0 {
		opts = append(opts, tineye.WithBacklinkLimit(c.BacklinkLimit))
	}
	if c.Sort != "" {
		opts = append(opts, tineye.WithSort(c.Sort))
	}
	if c.Order != "" {
		opts = append(opts, tineye.WithOrder(c.Order))
	}
	if c.Domain != "" {
		opts = append(opts, tineye.WithDomain(c.Domain))
	}
	return opts
}

// ClientOptions converts the connection settings into client options.
func (c *Config) ClientOptions() []tineye.Option {
	opts := []tineye.Option{
		tineye.WithTimeout(c.Timeout),
		tineye.WithConnectTimeout(c.ConnectTimeout),
		tineye.WithMaxBodySize(c.MaxBodySize),
	}
	if c.UserAgent != "" {
		opts = append(opts, tineye.WithUserAgent(c.UserAgent))
	}
	if c.ProxyAddress != "" {
		opts = append(opts, tineye.WithSOCKS5Proxy(c.ProxyAddress))
	}
	return opts
}

// Validate checks the settings shared by every command that calls the API.
// It returns the first problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrNoAPIKey
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return ErrNoAPIURL
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.ConnectTimeout < 0 {
		return ErrInvalidConnectTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ValidateSearch checks Validate plus the search-specific settings.
func (c *Config) ValidateSearch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Limit == 0 {
		return ErrInvalidLimit
	}
	return nil
}
