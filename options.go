package tineye

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default client settings.
const (
	// DefaultAPIURL is the public TinEye REST endpoint.
	DefaultAPIURL = "https://api.tineye.com/rest/"

	// DefaultTimeout bounds a whole call: connect, upload, and reading the reply.
	DefaultTimeout = 60 * time.Second

	// DefaultConnectTimeout bounds establishing the TCP connection.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultMaxBodySize caps the response body that is read into memory.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent identifies this client in server logs.
	DefaultUserAgent = "tineye-go/1.0 (+https://github.com/nao1215/tineye)"

	// DefaultUploadFilename is used when SearchData gets an empty filename.
	DefaultUploadFilename = "image.jpg"
)

type clientConfig struct {
	timeout        time.Duration
	connectTimeout time.Duration
	httpClient     *http.Client
	userAgent      string
	logger         *slog.Logger
	maxBodySize    int64
	proxyAddress   string
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		timeout:        DefaultTimeout,
		connectTimeout: DefaultConnectTimeout,
		userAgent:      DefaultUserAgent,
		maxBodySize:    DefaultMaxBodySize,
	}
}

// Option configures a New(...) call.
type Option func(*clientConfig)

// WithTimeout sets the total per-call deadline (connect + write + read).
// Zero disables the client-level deadline; the caller's context still applies.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithConnectTimeout sets the dial timeout of the underlying transport.
// It is ignored when WithHTTPClient is used.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.connectTimeout = d }
}

// WithHTTPClient makes the client send requests through hc.
// The client never mutates hc; timeouts given by WithTimeout still apply per call via context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) { c.userAgent = ua }
}

// WithLogger sets the logger used for per-request debug records.
// The credential is never passed to the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithMaxBodySize caps how many response bytes are read. Values <= 0 keep the default.
func WithMaxBodySize(n int64) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithSOCKS5Proxy routes all requests through the SOCKS5 proxy at addr ("host:port").
// It is ignored when WithHTTPClient is used.
func WithSOCKS5Proxy(addr string) Option {
	return func(c *clientConfig) { c.proxyAddress = addr }
}

// Sort keys accepted by the search endpoint.
const (
	SortScore     = "score"
	SortSize      = "size"
	SortCrawlDate = "crawl_date"
)

// Sort orders accepted by the search endpoint.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

var (
	errNegative    = errors.New("must be >= 0")
	errNonPositive = errors.New("must be > 0")
	errBadSort     = errors.New("must be one of score, size, crawl_date")
	errBadOrder    = errors.New("must be asc or desc")
	errBlank       = errors.New("must not be blank")
)

// searchParams holds the optional search parameters. Unset values are not sent
// so the server-side defaults apply.
type searchParams struct {
	offset        *int
	limit         *int
	backlinkLimit *int
	sort          string
	order         string
	domain        string
	err           error
}

// SearchOption configures a single search call.
type SearchOption func(*searchParams)

func (p *searchParams) fail(param string, err error) {
	if p.err == nil {
		p.err = &RequestError{Param: param, Err: err}
	}
}

// WithOffset skips the first n results. n must be >= 0.
func WithOffset(n int) SearchOption {
	return func(p *searchParams) {
		if n < 0 {
			p.fail("offset", errNegative)
			return
		}
		p.offset = &n
	}
}

// WithLimit caps the number of results returned. n must be > 0.
func WithLimit(n int) SearchOption {
	return func(p *searchParams) {
		if n <= 0 {
			p.fail("limit", errNonPositive)
			return
		}
		p.limit = &n
	}
}

// WithBacklinkLimit caps the backlinks returned per match. n must be >= 0; 0 means all.
func WithBacklinkLimit(n int) SearchOption {
	return func(p *searchParams) {
		if n < 0 {
			p.fail("backlink_limit", errNegative)
			return
		}
		p.backlinkLimit = &n
	}
}

// WithSort selects the sort key: SortScore, SortSize or SortCrawlDate.
func WithSort(key string) SearchOption {
	return func(p *searchParams) {
		switch key {
		case SortScore, SortSize, SortCrawlDate:
			p.sort = key
		default:
			p.fail("sort", errBadSort)
		}
	}
}

// WithOrder selects the sort order: OrderAsc or OrderDesc.
func WithOrder(order string) SearchOption {
	return func(p *searchParams) {
		switch strings.ToLower(order) {
		case OrderAsc, OrderDesc:
			p.order = strings.ToLower(order)
		default:
			p.fail("order", errBadOrder)
		}
	}
}

// WithDomain restricts results to matches found on the given domain.
func WithDomain(domain string) SearchOption {
	return func(p *searchParams) {
		domain = strings.TrimSpace(domain)
		if domain == "" {
			p.fail("domain", errBlank)
			return
		}
		p.domain = domain
	}
}

func buildSearchParams(opts []SearchOption) (*searchParams, error) {
	p := &searchParams{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(p)
	}
	if p.err != nil {
		return nil, p.err
	}
	return p, nil
}

// values renders the parameters as form/query values in a stable order.
func (p *searchParams) values() url.Values {
	v := url.Values{}
	if p.offset != nil {
		v.Set("offset", strconv.Itoa(*p.offset))
	}
	if p.limit != nil {
		v.Set("limit", strconv.Itoa(*p.limit))
	}
	if p.backlinkLimit != nil {
		v.Set("backlink_limit", strconv.Itoa(*p.backlinkLimit))
	}
	if p.sort != "" {
		v.Set("sort", p.sort)
	}
	if p.order != "" {
		v.Set("order", p.order)
	}
	if p.domain != "" {
		v.Set("domain", p.domain)
	}
	return v
}
