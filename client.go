package tineye

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Paths of the endpoints, relative to the base API URL.
const (
	searchPath            = "search/"
	remainingSearchesPath = "remaining_searches/"
	imageCountPath        = "image_count/"
)

// apiKeyHeader carries the credential on every request.
const apiKeyHeader = "x-api-key"

// Client issues requests against the TinEye REST API.
// A Client holds no per-call state and is safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	apiKey      string
	httpClient  *http.Client
	timeout     time.Duration
	userAgent   string
	logger      *slog.Logger
	maxBodySize int64
}

// New creates a client for the API at apiURL authenticated with apiKey.
// It validates its arguments but never touches the network.
func New(apiURL, apiKey string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, &ConfigurationError{Field: "apiURL", Err: err}
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &ConfigurationError{Field: "apiKey", Err: ErrMissingAPIKey}
	}

	cfg := defaultClientConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	hc := cfg.httpClient
	if hc == nil {
		transport, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		// The per-call deadline is applied through the request context.
		hc = &http.Client{Transport: transport}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:     base,
		apiKey:      apiKey,
		httpClient:  hc,
		timeout:     cfg.timeout,
		userAgent:   cfg.userAgent,
		logger:      logger,
		maxBodySize: cfg.maxBodySize,
	}, nil
}

// parseBaseURL validates apiURL and makes sure its path ends with a slash so
// that endpoint paths resolve below it.
func parseBaseURL(apiURL string) (*url.URL, error) {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		return nil, ErrInvalidAPIURL
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAPIURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidAPIURL
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// BaseURL returns the normalized base API URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SearchURL searches for images similar to the image at imageURL.
func (c *Client) SearchURL(ctx context.Context, imageURL string, opts ...SearchOption) (*SearchResponse, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, &RequestError{Param: "image_url", Err: ErrEmptyImageURL}
	}
	params, err := buildSearchParams(opts)
	if err != nil {
		return nil, err
	}

	query := params.values()
	query.Set("image_url", imageURL)

	r, err := c.do(ctx, http.MethodGet, searchPath, query, nil)
	if err != nil {
		return nil, err
	}
	return decodeReply(r, parseSearchResults)
}

// SearchData searches for images similar to the uploaded image bytes.
// An empty filename is sent as DefaultUploadFilename.
func (c *Client) SearchData(ctx context.Context, data []byte, filename string, opts ...SearchOption) (*SearchResponse, error) {
	if len(data) == 0 {
		return nil, &RequestError{Param: "image_upload", Err: ErrEmptyImage}
	}
	params, err := buildSearchParams(opts)
	if err != nil {
		return nil, err
	}

	body, err := encodeMultipart(params.values(), filename, data)
	if err != nil {
		return nil, &RequestError{Param: "image_upload", Err: err}
	}

	r, err := c.do(ctx, http.MethodPost, searchPath, nil, body)
	if err != nil {
		return nil, err
	}
	return decodeReply(r, parseSearchResults)
}

// RemainingSearches reports the search quota left on the account.
func (c *Client) RemainingSearches(ctx context.Context) (*UsageResponse, error) {
	r, err := c.do(ctx, http.MethodGet, remainingSearchesPath, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeReply(r, parseUsageResults)
}

// ImageCount reports the number of images in the search index.
func (c *Client) ImageCount(ctx context.Context) (*ImageCountResponse, error) {
	r, err := c.do(ctx, http.MethodGet, imageCountPath, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeReply(r, parseImageCountResults)
}

// reply is a successful HTTP exchange whose envelope reported success.
type reply struct {
	statusCode int
	body       []byte
	envelope   *envelope
}

// decodeReply runs a results parser, turning its failures into ProtocolErrors.
func decodeReply[T any](r *reply, parse func(*envelope) (T, error)) (T, error) {
	v, err := parse(r.envelope)
	if err != nil {
		var zero T
		return zero, &ProtocolError{StatusCode: r.statusCode, Body: truncateBody(r.body), Err: err}
	}
	return v, nil
}

// do performs exactly one HTTP exchange and checks, in order, the transport,
// the HTTP status, the JSON envelope and the in-body status.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, upload *multipartBody) (*reply, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	if upload != nil {
		bodyReader = upload.Reader()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), bodyReader)
	if err != nil {
		return nil, &RequestError{Param: "request", Err: err}
	}
	if upload != nil {
		req.ContentLength = upload.Len()
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(upload.Reader()), nil
		}
		req.Header.Set("Content-Type", upload.ContentType())
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "tineye request failed",
			slog.String("method", method),
			slog.String("endpoint", path),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body, c.maxBodySize)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			return nil, &ProtocolError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, classifyTransportError(ctx, err)
	}

	c.logger.DebugContext(ctx, "tineye request",
		slog.String("method", method),
		slog.String("endpoint", path),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)),
	)

	env, err := interpret(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}
	return &reply{statusCode: resp.StatusCode, body: body, envelope: env}, nil
}

// interpret applies the HTTP status first and the in-body status second.
func interpret(statusCode int, body []byte) (*envelope, error) {
	if statusCode < 200 || statusCode >= 300 {
		return nil, httpError(statusCode, body)
	}

	env, err := parseEnvelope(body)
	if err != nil {
		return nil, &ProtocolError{StatusCode: statusCode, Body: truncateBody(body), Err: err}
	}
	if !env.status.OK() {
		apiErr := &APIError{
			Kind:       KindApplication,
			StatusCode: statusCode,
			Code:       env.status.Code,
			Messages:   env.status.Messages,
		}
		if len(apiErr.Messages) == 0 && env.status.Status != "" {
			apiErr.Messages = []string{env.status.Status}
		}
		return nil, apiErr
	}
	return env, nil
}

// httpError builds the error for a non-2xx reply. The message comes from the
// JSON body when it has one, else from the raw body text.
func httpError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{Kind: KindHTTP, StatusCode: statusCode}
	if o, err := decodeObject(body); err == nil {
		if code, err := o.integer("code"); err == nil {
			apiErr.Code = int(code)
		}
		if msgs, err := parseMessages(o); err == nil {
			apiErr.Messages = msgs
		}
	} else if text := truncateBody(body); text != "" {
		apiErr.Messages = []string{text}
	}
	if len(apiErr.Messages) == 0 {
		apiErr.Messages = []string{http.StatusText(statusCode)}
	}
	return apiErr
}

// classifyTransportError maps a failed exchange to an APIError kind.
func classifyTransportError(ctx context.Context, err error) *APIError {
	kind := KindTransport
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		kind = KindCanceled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &APIError{Kind: kind, Err: err}
}

// readBody reads at most limit bytes from r and fails when more are available.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}
