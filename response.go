package tineye

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Stats holds the "stats" object of a response. Values keep their textual
// form; numeric values are read back with Int or Float.
type Stats map[string]string

// String returns the raw value stored at key.
func (s Stats) String(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Int returns the value at key as an integer.
func (s Stats) Int(key string) (int64, bool) {
	f, ok := s.Float(key)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Float returns the value at key as a float.
func (s Stats) Float(key string) (float64, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Status is the envelope shared by every response.
type Status struct {
	// Code is the in-body status code (200 on success). Zero when the server sent only "status".
	Code int `json:"code"`
	// Status is the in-body status string, if any.
	Status string `json:"status,omitempty"`
	// Messages are informational or error messages sent by the server.
	Messages []string `json:"messages,omitempty"`
	// Stats are server supplied statistics about the call.
	Stats Stats `json:"stats,omitempty"`
}

// OK reports whether the in-body status signals success.
func (s Status) OK() bool {
	if s.Code != 0 {
		return s.Code >= 200 && s.Code < 300
	}
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case "ok", "success", "succeeded":
		return true
	default:
		return false
	}
}

// SearchResponse is the result of a search call.
type SearchResponse struct {
	Status

	// Matches are in the order ranked by the server.
	Matches []Match `json:"matches"`

	// TotalResults is the total number of matches available server side,
	// which may exceed len(Matches) when offset/limit apply.
	TotalResults int64 `json:"total_results"`
}

// Match is one image the service considers similar to the query.
type Match struct {
	ImageURL    string     `json:"image_url"`
	Domain      string     `json:"domain,omitempty"`
	QueryHash   string     `json:"query_hash,omitempty"`
	Score       float64    `json:"score"`
	Width       int64      `json:"width"`
	Height      int64      `json:"height"`
	Size        int64      `json:"size"`
	FileSize    int64      `json:"filesize"`
	Format      string     `json:"format,omitempty"`
	Overlay     string     `json:"overlay,omitempty"`
	Contributor bool       `json:"contributor"`
	Tags        []string   `json:"tags,omitempty"`
	Backlinks   []Backlink `json:"backlinks"`
}

// Backlink is one web location where a match's image was found.
type Backlink struct {
	// URL is the image URL.
	URL string `json:"url"`
	// Backlink is the page that embeds the image.
	Backlink string `json:"backlink,omitempty"`
	// CrawlDate is when the image was discovered; zero when unknown.
	CrawlDate time.Time `json:"crawl_date"`
	// ImageFormat is an optional content-type/format tag.
	ImageFormat string `json:"image_format,omitempty"`
}

// UsageResponse is the result of RemainingSearches.
type UsageResponse struct {
	Status

	// RemainingSearches is the total number of searches left across bundles.
	RemainingSearches int64 `json:"remaining_searches"`
	// StartDate and ExpireDate describe the current bundle; zero when absent.
	StartDate  time.Time `json:"start_date"`
	ExpireDate time.Time `json:"expire_date"`
	// Bundles lists the individual search bundles when the server reports them.
	Bundles []Bundle `json:"bundles,omitempty"`
}

// Bundle is one purchased block of searches.
type Bundle struct {
	RemainingSearches int64     `json:"remaining_searches"`
	StartDate         time.Time `json:"start_date"`
	ExpireDate        time.Time `json:"expire_date"`
}

// ImageCountResponse is the result of ImageCount.
type ImageCountResponse struct {
	Status

	// Count is the number of images in the index.
	Count int64 `json:"count"`
}

// envelope is the generic top-level shape of every reply.
type envelope struct {
	status  Status
	results json.RawMessage
}

// parseEnvelope decodes the members common to all replies.
// A body without both "code" and "status" is rejected.
func parseEnvelope(body []byte) (*envelope, error) {
	o, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	if !o.has("code") && !o.has("status") {
		return nil, ErrMissingStatus
	}

	var st Status
	code, err := o.integer("code")
	if err != nil {
		return nil, err
	}
	st.Code = int(code)
	if st.Status, err = o.str("status"); err != nil {
		return nil, err
	}
	if st.Code == 0 {
		// Some replies put the numeric code in "status".
		if n, convErr := strconv.Atoi(strings.TrimSpace(st.Status)); convErr == nil {
			st.Code = n
		}
	}
	if st.Messages, err = parseMessages(o); err != nil {
		return nil, err
	}
	if st.Stats, err = parseStats(o); err != nil {
		return nil, err
	}
	return &envelope{status: st, results: o["results"]}, nil
}

// parseMessages accepts "messages" (array or string), "message" or "error".
func parseMessages(o object) ([]string, error) {
	if raw, ok := o["messages"]; ok && !isNull(raw) {
		if s, err := rawString(raw); err == nil {
			return []string{s}, nil
		}
		items, err := o.array("messages")
		if err != nil {
			return nil, err
		}
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			s, err := rawString(item)
			if err != nil {
				// Structured message: keep its JSON text.
				s = string(item)
			}
			if s = strings.TrimSpace(s); s != "" {
				msgs = append(msgs, s)
			}
		}
		return msgs, nil
	}
	for _, key := range []string{"message", "error"} {
		s, err := o.str(key)
		if err != nil {
			return nil, err
		}
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}, nil
		}
	}
	return nil, nil
}

func parseStats(o object) (Stats, error) {
	stats := Stats{}
	if !o.has("stats") {
		return stats, nil
	}
	so, err := decodeObject(o["stats"])
	if err != nil {
		return nil, fieldErr("stats", err)
	}
	for k, raw := range so {
		if isNull(raw) {
			continue
		}
		s, err := rawString(raw)
		if err != nil {
			s = string(raw)
		}
		stats[k] = s
	}
	return stats, nil
}

// parseSearchResults decodes the "results" member of a search reply.
// It accepts either an array of matches or an object with "matches" and "total_results".
func parseSearchResults(env *envelope) (*SearchResponse, error) {
	resp := &SearchResponse{Status: env.status, Matches: []Match{}}

	var items []json.RawMessage
	raw := env.results
	switch {
	case isNull(raw):
		items = []json.RawMessage{}
	case firstByte(raw) == '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fieldErr("results", errNotArray)
		}
	default:
		ro, err := decodeObject(raw)
		if err != nil {
			return nil, fieldErr("results", err)
		}
		if items, err = ro.array("matches"); err != nil {
			return nil, fieldErr("results", err)
		}
		if resp.TotalResults, err = ro.integer("total_results"); err != nil {
			return nil, fieldErr("results", err)
		}
	}

	if resp.TotalResults == 0 {
		if n, ok := resp.Stats.Int("total_results"); ok {
			resp.TotalResults = n
		}
	}

	resp.Matches = make([]Match, 0, len(items))
	for i, item := range items {
		m, err := parseMatch(item)
		if err != nil {
			return nil, fmt.Errorf("results[%d]: %w", i, err)
		}
		resp.Matches = append(resp.Matches, m)
	}
	return resp, nil
}

func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b
		}
	}
	return 0
}

func parseMatch(raw json.RawMessage) (Match, error) {
	o, err := decodeObject(raw)
	if err != nil {
		return Match{}, err
	}

	var m Match
	if m.ImageURL, err = o.str("image_url"); err != nil {
		return Match{}, err
	}
	if m.Domain, err = o.str("domain"); err != nil {
		return Match{}, err
	}
	if m.QueryHash, err = o.str("query_hash"); err != nil {
		return Match{}, err
	}
	if m.Score, err = o.float("score"); err != nil {
		return Match{}, err
	}
	if m.Width, err = o.integer("width"); err != nil {
		return Match{}, err
	}
	if m.Height, err = o.integer("height"); err != nil {
		return Match{}, err
	}
	if m.Size, err = o.integer("size"); err != nil {
		return Match{}, err
	}
	if m.FileSize, err = o.integer("filesize"); err != nil {
		return Match{}, err
	}
	if m.Format, err = o.str("format"); err != nil {
		return Match{}, err
	}
	if m.Overlay, err = o.str("overlay"); err != nil {
		return Match{}, err
	}
	if m.Contributor, err = o.boolean("contributor"); err != nil {
		return Match{}, err
	}
	if m.Tags, err = o.stringList("tags"); err != nil {
		return Match{}, err
	}

	links, err := o.array("backlinks")
	if err != nil {
		return Match{}, err
	}
	m.Backlinks = make([]Backlink, 0, len(links))
	for i, link := range links {
		b, err := parseBacklink(link)
		if err != nil {
			return Match{}, fmt.Errorf("backlinks[%d]: %w", i, err)
		}
		m.Backlinks = append(m.Backlinks, b)
	}
	return m, nil
}

func parseBacklink(raw json.RawMessage) (Backlink, error) {
	o, err := decodeObject(raw)
	if err != nil {
		return Backlink{}, err
	}

	var b Backlink
	if b.URL, err = o.str("url"); err != nil {
		return Backlink{}, err
	}
	if b.Backlink, err = o.str("backlink"); err != nil {
		return Backlink{}, err
	}
	if b.CrawlDate, err = o.date("crawl_date"); err != nil {
		return Backlink{}, err
	}
	if b.ImageFormat, err = o.str("image_format"); err != nil {
		return Backlink{}, err
	}
	return b, nil
}

// parseUsageResults decodes the "results" member of a remaining_searches reply.
func parseUsageResults(env *envelope) (*UsageResponse, error) {
	resp := &UsageResponse{Status: env.status}

	o, err := decodeObject(env.results)
	if err != nil {
		return nil, fieldErr("results", err)
	}

	remainingKey := "remaining_searches"
	if !o.has(remainingKey) {
		remainingKey = "total_remaining_searches"
	}
	if resp.RemainingSearches, err = o.integer(remainingKey); err != nil {
		return nil, fieldErr("results", err)
	}
	if resp.StartDate, err = o.date("start_date"); err != nil {
		return nil, fieldErr("results", err)
	}
	if resp.ExpireDate, err = o.date("expire_date"); err != nil {
		return nil, fieldErr("results", err)
	}

	items, err := o.array("bundles")
	if err != nil {
		return nil, fieldErr("results", err)
	}
	var sum int64
	for i, item := range items {
		bo, err := decodeObject(item)
		if err != nil {
			return nil, fmt.Errorf("bundles[%d]: %w", i, err)
		}
		var b Bundle
		if b.RemainingSearches, err = bo.integer("remaining_searches"); err != nil {
			return nil, fmt.Errorf("bundles[%d]: %w", i, err)
		}
		if b.StartDate, err = bo.date("start_date"); err != nil {
			return nil, fmt.Errorf("bundles[%d]: %w", i, err)
		}
		if b.ExpireDate, err = bo.date("expire_date"); err != nil {
			return nil, fmt.Errorf("bundles[%d]: %w", i, err)
		}
		sum += b.RemainingSearches
		resp.Bundles = append(resp.Bundles, b)
	}

	if !o.has("remaining_searches") && !o.has("total_remaining_searches") {
		resp.RemainingSearches = sum
	}
	if len(resp.Bundles) > 0 && resp.StartDate.IsZero() && resp.ExpireDate.IsZero() {
		resp.StartDate = resp.Bundles[0].StartDate
		resp.ExpireDate = resp.Bundles[0].ExpireDate
	}
	return resp, nil
}

// parseImageCountResults decodes the "results" member of an image_count reply,
// which is either a bare number or an object with "count"/"image_count".
func parseImageCountResults(env *envelope) (*ImageCountResponse, error) {
	resp := &ImageCountResponse{Status: env.status}
	raw := env.results
	if isNull(raw) {
		return resp, nil
	}
	if firstByte(raw) == '{' {
		o, err := decodeObject(raw)
		if err != nil {
			return nil, fieldErr("results", err)
		}
		key := "count"
		if !o.has(key) {
			key = "image_count"
		}
		if resp.Count, err = o.integer(key); err != nil {
			return nil, fieldErr("results", err)
		}
		return resp, nil
	}
	n, err := rawInt(raw)
	if err != nil {
		return nil, fieldErr("results", err)
	}
	resp.Count = n
	return resp, nil
}
