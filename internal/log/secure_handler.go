package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces redacted values.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	"x-api-key":           true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"private_key":         true,
	"api_sig":             true,
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
}

// sensitiveKeywords mask any key that contains them.
var sensitiveKeywords = []string{"secret", "token", "password", "credential"}

// sensitiveQueryParams are masked inside URL-valued attributes.
var sensitiveQueryParams = []string{"api_key", "api_sig", "private_key", "key"}

// sensitivePatterns flag credential-looking values regardless of key.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
}

// SecureHandler wraps an slog.Handler and masks credentials before records
// reach it. Besides key and pattern based masking it removes every
// occurrence of the registered secret values, so an API key that ends up
// inside an error message or URL is still not written out.
type SecureHandler struct {
	handler slog.Handler
	secrets []string
}

// NewSecureHandler wraps handler. Each non-blank entry of secrets is masked
// wherever it appears in a string value. A nil handler falls back to
// slog.Default().Handler().
func NewSecureHandler(handler slog.Handler, secrets ...string) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	h := &SecureHandler{handler: handler}
	for _, s := range secrets {
		if s = strings.TrimSpace(s); s != "" {
			h.secrets = append(h.secrets, s)
		}
	}
	return h
}

// Enabled reports whether the underlying handler handles level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's message and attributes and forwards it.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, h.scrub(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a handler with the sanitized attrs added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized), secrets: h.secrets}
}

// WithGroup returns a handler that nests attributes under name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), secrets: h.secrets}
}

func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			sanitized[i] = h.sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.sanitizeString(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, h.sanitizeString(err.Error()))
		}
	}
	return a
}

func (h *SecureHandler) sanitizeString(s string) string {
	if isSensitiveValue(s) {
		return MaskValue
	}
	return redactURL(h.scrub(s))
}

// scrub removes registered secrets from s.
func (h *SecureHandler) scrub(s string) string {
	for _, secret := range h.secrets {
		if strings.Contains(s, secret) {
			s = strings.ReplaceAll(s, secret, MaskValue)
		}
	}
	return s
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// redactURL masks credential query parameters when s is an absolute URL.
func redactURL(s string) string {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.RawQuery == "" {
		return s
	}
	q := u.Query()
	changed := false
	for _, p := range sensitiveQueryParams {
		if q.Has(p) {
			q.Set(p, MaskValue)
			changed = true
		}
	}
	if !changed {
		return s
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Options configures NewLogger.
type Options struct {
	// Verbose lowers the level from Warn to Debug.
	Verbose bool
	// JSON selects the JSON handler instead of the text handler.
	JSON bool
	// Secrets are literal values masked wherever they appear.
	Secrets []string
}

// NewLogger returns a logger that writes sanitized records to w.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	ho := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if opts.JSON {
		base = slog.NewJSONHandler(w, ho)
	} else {
		base = slog.NewTextHandler(w, ho)
	}
	return slog.New(NewSecureHandler(base, opts.Secrets...))
}

// NewSecureLogger returns a text logger at Debug level when verbose, else Warn.
func NewSecureLogger(w io.Writer, verbose bool, secrets ...string) *slog.Logger {
	return NewLogger(w, Options{Verbose: verbose, Secrets: secrets})
}
