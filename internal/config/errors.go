package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Config.ValidateSearch. Callers match them with errors.Is.
var (
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("no API key: set apiKey in the configuration file or " + EnvAPIKey)

	// ErrNoAPIURL is returned when the API URL is blank.
	ErrNoAPIURL = errors.New("no API URL configured")

	// ErrNoTarget is returned when a search is started without image URLs or files.
	ErrNoTarget = errors.New("no target specified: provide at least one image URL or file")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConnectTimeout is returned when the connect timeout is negative.
	ErrInvalidConnectTimeout = errors.New("invalid connect timeout: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidLimit is returned when the result limit is zero.
	ErrInvalidLimit = errors.New("invalid limit: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown are given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownProfile is returned when the requested profile is not in the configuration file.
	ErrUnknownProfile = errors.New("unknown profile")
)
