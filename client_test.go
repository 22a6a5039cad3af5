package tineye

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testAPIKey = "test-key-123"

// newTestServer starts a server that answers every request with handler and
// returns a client pointed at it.
func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL+"/rest/", testAPIKey, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client, srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("valid arguments", func(t *testing.T) {
		t.Parallel()
		client, err := New("https://api.tineye.com/rest", "key")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.BaseURL() != "https://api.tineye.com/rest/" {
			t.Errorf("expected trailing slash to be added, got %s", client.BaseURL())
		}
	})

	t.Run("invalid URLs return ConfigurationError", func(t *testing.T) {
		t.Parallel()
		for _, apiURL := range []string{"", "   ", "api.tineye.com/rest/", "ftp://api.tineye.com/", "https://", "://bad"} {
			_, err := New(apiURL, "key")
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("New(%q): expected ConfigurationError, got %v", apiURL, err)
				continue
			}
			if !errors.Is(err, ErrInvalidAPIURL) {
				t.Errorf("New(%q): expected ErrInvalidAPIURL, got %v", apiURL, err)
			}
		}
	})

	t.Run("missing key returns ConfigurationError", func(t *testing.T) {
		t.Parallel()
		_, err := New(DefaultAPIURL, " ")
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "apiKey" {
			t.Fatalf("expected ConfigurationError on apiKey, got %v", err)
		}
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("invalid proxy returns ConfigurationError", func(t *testing.T) {
		t.Parallel()
		_, err := New(DefaultAPIURL, "key", WithSOCKS5Proxy("no-port"))
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("valid proxy is accepted", func(t *testing.T) {
		t.Parallel()
		if _, err := New(DefaultAPIURL, "key", WithSOCKS5Proxy("127.0.0.1:9050")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("construction does not touch the network", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			hits.Add(1)
		}))
		defer srv.Close()

		for range 5 {
			if _, err := New(srv.URL, "key"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if hits.Load() != 0 {
			t.Errorf("expected no requests, got %d", hits.Load())
		}
	})
}

func TestClientSearchURL(t *testing.T) {
	t.Parallel()

	t.Run("sends credential and parameters", func(t *testing.T) {
		t.Parallel()
		var got *http.Request
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			got = r.Clone(context.Background())
			writeJSON(w, http.StatusOK, `{"code":200,"results":[{"score":94.2,"backlinks":[{"url":"https://a.example/x.jpg","crawl_date":"2023-01-01"}]}]}`)
		})

		resp, err := client.SearchURL(context.Background(), "https://example.com/cat.jpg", WithOffset(0), WithLimit(10))
		if err != nil {
			t.Fatalf("SearchURL failed: %v", err)
		}

		if got.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", got.Method)
		}
		if got.URL.Path != "/rest/search/" {
			t.Errorf("expected path /rest/search/, got %s", got.URL.Path)
		}
		if got.Header.Get("x-api-key") != testAPIKey {
			t.Errorf("expected credential header, got %q", got.Header.Get("x-api-key"))
		}
		if got.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("expected default user agent, got %q", got.Header.Get("User-Agent"))
		}
		q := got.URL.Query()
		if q.Get("image_url") != "https://example.com/cat.jpg" {
			t.Errorf("unexpected image_url: %q", q.Get("image_url"))
		}
		if q.Get("offset") != "0" || q.Get("limit") != "10" {
			t.Errorf("unexpected pagination: offset=%q limit=%q", q.Get("offset"), q.Get("limit"))
		}
		if q.Has("api_key") || q.Has("api_sig") {
			t.Error("credential must not be sent as a query parameter")
		}

		if len(resp.Matches) != 1 {
			t.Fatalf("expected 1 match, got %d", len(resp.Matches))
		}
		if resp.Matches[0].Score != 94.2 {
			t.Errorf("expected score 94.2, got %v", resp.Matches[0].Score)
		}
		if len(resp.Matches[0].Backlinks) != 1 || resp.Matches[0].Backlinks[0].URL != "https://a.example/x.jpg" {
			t.Errorf("unexpected backlinks: %+v", resp.Matches[0].Backlinks)
		}
	})

	t.Run("unset options are not sent", func(t *testing.T) {
		t.Parallel()
		var rawQuery string
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			rawQuery = r.URL.RawQuery
			writeJSON(w, http.StatusOK, `{"code":200,"results":[]}`)
		})
		if _, err := client.SearchURL(context.Background(), "https://example.com/a.png"); err != nil {
			t.Fatalf("SearchURL failed: %v", err)
		}
		if strings.Contains(rawQuery, "limit") || strings.Contains(rawQuery, "offset") {
			t.Errorf("expected only image_url, got %q", rawQuery)
		}
	})

	t.Run("empty URL fails before any request", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int32
		client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			writeJSON(w, http.StatusOK, `{"code":200}`)
		})

		_, err := client.SearchURL(context.Background(), "  ")
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			t.Fatalf("expected RequestError, got %v", err)
		}
		if !errors.Is(err, ErrEmptyImageURL) {
			t.Errorf("expected ErrEmptyImageURL, got %v", err)
		}
		if hits.Load() != 0 {
			t.Errorf("expected no request, got %d", hits.Load())
		}
	})

	t.Run("invalid options fail before any request", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int32
		client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			writeJSON(w, http.StatusOK, `{"code":200}`)
		})

		tests := []struct {
			name  string
			opt   SearchOption
			param string
		}{
			{name: "zero limit", opt: WithLimit(0), param: "limit"},
			{name: "negative limit", opt: WithLimit(-1), param: "limit"},
			{name: "negative offset", opt: WithOffset(-5), param: "offset"},
			{name: "unknown sort", opt: WithSort("random"), param: "sort"},
			{name: "unknown order", opt: WithOrder("up"), param: "order"},
			{name: "negative backlink limit", opt: WithBacklinkLimit(-1), param: "backlink_limit"},
			{name: "blank domain", opt: WithDomain(" "), param: "domain"},
		}
		for _, tt := range tests {
			_, err := client.SearchURL(context.Background(), "https://example.com/a.png", tt.opt)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Errorf("%s: expected RequestError, got %v", tt.name, err)
				continue
			}
			if reqErr.Param != tt.param {
				t.Errorf("%s: expected param %s, got %s", tt.name, tt.param, reqErr.Param)
			}
		}
		if hits.Load() != 0 {
			t.Errorf("expected no request, got %d", hits.Load())
		}
	})
}

func TestClientSearchData(t *testing.T) {
	t.Parallel()

	t.Run("uploads multipart body", func(t *testing.T) {
		t.Parallel()
		image := []byte("\x89PNG\r\n\x1a\nfake image bytes")

		type upload struct {
			method   string
			filename string
			data     []byte
			fields   map[string]string
			length   int64
		}
		var got upload
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			got.method = r.Method
			got.length = r.ContentLength
			got.fields = map[string]string{}

			_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, `{"messages":["bad content type"]}`)
				return
			}
			mr := multipart.NewReader(r.Body, params["boundary"])
			for {
				part, err := mr.NextPart()
				if err == io.EOF {
					break
				}
				if err != nil {
					writeJSON(w, http.StatusBadRequest, `{"messages":["bad multipart"]}`)
					return
				}
				b, _ := io.ReadAll(part)
				if part.FormName() == "image_upload" {
					got.filename = part.FileName()
					got.data = b
					continue
				}
				got.fields[part.FormName()] = string(b)
			}
			writeJSON(w, http.StatusOK, `{"code":200,"results":{"matches":[{"score":"87"}],"total_results":12}}`)
		})

		resp, err := client.SearchData(context.Background(), image, "photos/cat.png", WithLimit(5), WithSort(SortScore))
		if err != nil {
			t.Fatalf("SearchData failed: %v", err)
		}

		if got.method != http.MethodPost {
			t.Errorf("expected POST, got %s", got.method)
		}
		if got.length <= int64(len(image)) {
			t.Errorf("expected explicit content length, got %d", got.length)
		}
		if got.filename != "cat.png" {
			t.Errorf("expected filename cat.png, got %q", got.filename)
		}
		if !bytes.Equal(got.data, image) {
			t.Errorf("uploaded bytes differ: %q", got.data)
		}
		if got.fields["limit"] != "5" || got.fields["sort"] != "score" {
			t.Errorf("unexpected form fields: %v", got.fields)
		}
		if resp.TotalResults != 12 {
			t.Errorf("expected total_results 12, got %d", resp.TotalResults)
		}
		if len(resp.Matches) != 1 || resp.Matches[0].Score != 87 {
			t.Errorf("unexpected matches: %+v", resp.Matches)
		}
	})

	t.Run("empty filename falls back to default", func(t *testing.T) {
		t.Parallel()
		var filename, offset, order string
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				if fh := r.MultipartForm.File["image_upload"]; len(fh) == 1 {
					filename = fh[0].Filename
				}
				offset = r.FormValue("offset")
				order = r.FormValue("order")
			}
			writeJSON(w, http.StatusOK, `{"code":200,"results":[]}`)
		})
		if _, err := client.SearchData(context.Background(), []byte("data"), ""); err != nil {
			t.Fatalf("SearchData failed: %v", err)
		}
		if filename != DefaultUploadFilename {
			t.Errorf("expected %s, got %q", DefaultUploadFilename, filename)
		}
		if offset != "0" || order != "desc" {
			t.Errorf("expected default form fields, got offset=%q order=%q", offset, order)
		}
	})

	t.Run("empty data is rejected", func(t *testing.T) {
		t.Parallel()
		client, err := New(DefaultAPIURL, "key")
		if err != nil {
			t.Fatal(err)
		}
		_, err = client.SearchData(context.Background(), nil, "a.jpg")
		if !errors.Is(err, ErrEmptyImage) {
			t.Errorf("expected ErrEmptyImage, got %v", err)
		}
	})
}

func TestClientRemainingSearches(t *testing.T) {
	t.Parallel()

	var path string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		writeJSON(w, http.StatusOK, `{"code":200,"results":{"remaining_searches":500}}`)
	})

	resp, err := client.RemainingSearches(context.Background())
	if err != nil {
		t.Fatalf("RemainingSearches failed: %v", err)
	}
	if path != "/rest/remaining_searches/" {
		t.Errorf("unexpected path %s", path)
	}
	if resp.RemainingSearches != 500 {
		t.Errorf("expected 500 remaining searches, got %d", resp.RemainingSearches)
	}
}

func TestClientImageCount(t *testing.T) {
	t.Parallel()

	var path string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		writeJSON(w, http.StatusOK, `{"code":200,"results":"73412345678"}`)
	})

	resp, err := client.ImageCount(context.Background())
	if err != nil {
		t.Fatalf("ImageCount failed: %v", err)
	}
	if path != "/rest/image_count/" {
		t.Errorf("unexpected path %s", path)
	}
	if resp.Count != 73412345678 {
		t.Errorf("unexpected count %d", resp.Count)
	}
}

func TestClientErrors(t *testing.T) {
	t.Parallel()

	t.Run("HTTP errors carry the status code", func(t *testing.T) {
		t.Parallel()
		for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
			client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, status, `{"messages":["something broke"]}`)
			})
			_, err := client.SearchURL(context.Background(), "https://example.com/a.jpg")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("status %d: expected APIError, got %v", status, err)
			}
			if apiErr.Kind != KindHTTP || apiErr.StatusCode != status {
				t.Errorf("status %d: unexpected error %+v", status, apiErr)
			}
			if apiErr.Message() != "something broke" {
				t.Errorf("status %d: unexpected message %q", status, apiErr.Message())
			}
		}
	})

	t.Run("non-JSON error body is kept as message", func(t *testing.T) {
		t.Parallel()
		client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream unavailable")
		})
		_, err := client.RemainingSearches(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Message() != "upstream unavailable" {
			t.Errorf("unexpected message %q", apiErr.Message())
		}
	})

	t.Run("HTTP status wins over in-body success", func(t *testing.T) {
		t.Parallel()
		client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, `{"code":200,"results":[]}`)
		})
		_, err := client.SearchURL(context.Background(), "https://example.com/a.jpg")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != KindHTTP {
			t.Fatalf("expected HTTP APIError, got %v", err)
		}
	})

	t.Run("in-body failure code is an application error", func(t *testing.T) {
		t.Parallel()
		client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"code":400,"messages":["Invalid image URL"],"results":[]}`)
		})
		_, err := client.SearchURL(context.Background(), "https://example.com/a.jpg")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Kind != KindApplication || apiErr.Code != 400 || apiErr.StatusCode != http.StatusOK {
			t.Errorf("unexpected error %+v", apiErr)
		}
		if apiErr.Message() != "Invalid image URL" {
			t.Errorf("unexpected message %q", apiErr.Message())
		}
	})

	t.Run("malformed JSON is a protocol error", func(t *testing.T) {
		t.Parallel()
		client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"code":200,`)
		})
		_, err := client.SearchURL(context.Background(), "https://example.com/a.jpg")
		var protoErr *ProtocolError
		if !errors.As(err, &protoErr) {
			t.Fatalf("expected ProtocolError, got %v", err)
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			t.Error("protocol error must not also be an APIError")
		}
	})

	t.Run("missing status is a protocol error", func(t *testing.T) {
		t.Parallel()
		client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"results":[]}`)
		})
		_, err := client.SearchURL(context.Background(), "https://example.com/a.jpg")
		if !errors.Is(err, ErrMissingStatus) {
			t.Fatalf("expected ErrMissingStatus, got %v", err)
		}
	})

	t.Run("oversized body is a protocol error", func(t *testing.T) {
		t.Parallel()
		client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"code":200,"results":[`+strings.Repeat(`{},`, 100)+`{}]}`)
		}, WithMaxBodySize(64))
		_, err := client.SearchURL(context.Background(), "https://example.com/a.jpg")
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Fatalf("expected ErrBodyTooLarge, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			writeJSON(w, http.StatusOK, `{"code":200}`)
		}, WithTimeout(50*time.Millisecond))
		defer close(release)

		_, err := client.RemainingSearches(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if !apiErr.Timeout() {
			t.Errorf("expected timeout kind, got %s", apiErr.Kind)
		}
	})

	t.Run("cancellation", func(t *testing.T) {
		t.Parallel()
		started := make(chan struct{})
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			close(started)
			<-r.Context().Done()
		})

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-started
			cancel()
		}()

		_, err := client.ImageCount(ctx)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Kind != KindCanceled {
			t.Errorf("expected canceled kind, got %s", apiErr.Kind)
		}
	})

	t.Run("connection refused is a transport error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		client, err := New(addr, "key")
		if err != nil {
			t.Fatal(err)
		}
		_, err = client.RemainingSearches(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Kind != KindTransport || apiErr.StatusCode != 0 {
			t.Errorf("unexpected error %+v", apiErr)
		}
	})
}

func TestClientNeverLogsCredential(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"code":200,"results":{"remaining_searches":1}}`)
	}, WithLogger(logger))

	if _, err := client.RemainingSearches(context.Background()); err != nil {
		t.Fatalf("RemainingSearches failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a debug record")
	}
	if strings.Contains(buf.String(), testAPIKey) {
		t.Errorf("credential leaked into log: %s", buf.String())
	}
}

func TestClientConcurrentUse(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, `{"code":200,"results":[{"image_url":"`+r.URL.Query().Get("image_url")+`"}]}`)
	})

	const n = 16
	errs := make(chan error, n)
	for i := range n {
		go func() {
			imageURL := "https://example.com/" + string(rune('a'+i)) + ".jpg"
			resp, err := client.SearchURL(context.Background(), imageURL)
			if err == nil && resp.Matches[0].ImageURL != imageURL {
				err = errors.New("response mixed up between calls")
			}
			errs <- err
		}()
	}
	for range n {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
	if hits.Load() != n {
		t.Errorf("expected %d requests, got %d", n, hits.Load())
	}
}
