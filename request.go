package tineye

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// uploadFieldName is the form field carrying the image bytes.
const uploadFieldName = "image_upload"

// Form fields always sent with an upload; explicit search options override them.
var uploadDefaults = url.Values{
	"offset": {"0"},
	"limit":  {"100"},
	"sort":   {"score"},
	"order":  {"desc"},
}

// maxBoundaryAttempts bounds how often a colliding boundary is re-drawn.
const maxBoundaryAttempts = 8

// multipartBody is a multipart/form-data body whose file part is served
// straight from the caller's buffer. Only the small framing around the
// image is materialized.
type multipartBody struct {
	boundary string
	prefix   []byte
	data     []byte
	suffix   []byte
}

// ContentType returns the Content-Type header value including the boundary.
func (b *multipartBody) ContentType() string {
	return "multipart/form-data; boundary=" + b.boundary
}

// Len returns the exact encoded length.
func (b *multipartBody) Len() int64 {
	return int64(len(b.prefix) + len(b.data) + len(b.suffix))
}

// Reader returns a fresh reader over the encoded body.
func (b *multipartBody) Reader() io.Reader {
	return io.MultiReader(bytes.NewReader(b.prefix), bytes.NewReader(b.data), bytes.NewReader(b.suffix))
}

// newBoundary returns a random boundary token in the same shape mime/multipart uses.
func newBoundary() (string, error) {
	var buf [30]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

// chooseBoundary draws boundaries until one appears in none of the payloads.
func chooseBoundary(payloads ...[]byte) (string, error) {
	for range maxBoundaryAttempts {
		b, err := newBoundary()
		if err != nil {
			return "", fmt.Errorf("failed to generate multipart boundary: %w", err)
		}
		collides := false
		for _, p := range payloads {
			if bytes.Contains(p, []byte(b)) {
				collides = true
				break
			}
		}
		if !collides {
			return b, nil
		}
	}
	return "", fmt.Errorf("failed to find a multipart boundary absent from the payload")
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// normalizeFilename strips directories and normalizes to NFC so the name
// sent to the server does not depend on the client's file system.
func normalizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultUploadFilename
	}
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		return DefaultUploadFilename
	}
	return norm.NFC.String(name)
}

// withUploadDefaults returns a copy of fields with uploadDefaults filled in.
func withUploadDefaults(fields url.Values) url.Values {
	merged := make(url.Values, len(fields)+len(uploadDefaults))
	for k, vs := range uploadDefaults {
		merged[k] = append([]string(nil), vs...)
	}
	for k, vs := range fields {
		merged[k] = append([]string(nil), vs...)
	}
	return merged
}

// encodeMultipart builds the multipart body for an image upload: one part per
// form field (sorted by name) followed by the file part. Missing paging and
// ordering fields are filled from uploadDefaults.
func encodeMultipart(fields url.Values, filename string, data []byte) (*multipartBody, error) {
	filename = normalizeFilename(filename)
	fields = withUploadDefaults(fields)

	keys := make([]string, 0, len(fields))
	payloads := [][]byte{data, []byte(filename)}
	for k, vs := range fields {
		keys = append(keys, k)
		for _, v := range vs {
			payloads = append(payloads, []byte(v))
		}
	}
	sort.Strings(keys)

	boundary, err := chooseBoundary(payloads...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(boundary); err != nil {
		return nil, fmt.Errorf("failed to set multipart boundary: %w", err)
	}
	for _, k := range keys {
		for _, v := range fields[k] {
			if err := mw.WriteField(k, v); err != nil {
				return nil, fmt.Errorf("failed to write form field %s: %w", k, err)
			}
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		uploadFieldName, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", http.DetectContentType(data))
	if _, err := mw.CreatePart(h); err != nil {
		return nil, fmt.Errorf("failed to write file part header: %w", err)
	}
	prefixLen := buf.Len()

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}
	all := buf.Bytes()

	return &multipartBody{
		boundary: boundary,
		prefix:   all[:prefixLen],
		data:     data,
		suffix:   all[prefixLen:],
	}, nil
}
