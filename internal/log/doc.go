// Package log builds slog loggers that never write the TinEye API key.
//
// The SecureHandler wraps any slog.Handler and masks:
//   - attributes whose key names a credential (x-api-key, api_key, authorization, ...)
//   - values that look like bearer, basic or JWT credentials
//   - credential query parameters inside URL values
//   - every occurrence of the literal secrets it was created with
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose, cfg.APIKey)
//	logger.Debug("request", "url", "https://api.tineye.com/rest/search/?api_key=abc")
//	// url=https://api.tineye.com/rest/search/?api_key=%2A%2A%2AREDACTED%2A%2A%2A
package log
