// Package snapshot converts live HTTP responses into self-contained byte
// snapshots suitable for cache storage, and rebuilds servable responses from
// stored snapshots. Compressed bodies are decoded before storage so a cached
// replay never depends on the client negotiating the original encoding.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gabriel-vasile/mimetype"
)

// Snapshot is the stored form of a response: status, identity-encoded headers,
// and the fully read body.
type Snapshot struct {
	StatusCode  int         // Response status code
	Header      http.Header // Headers with encoding/length normalized
	Body        []byte      // Decoded body bytes
	ContentType string      // Parsed media type of the body
}

// Capture reads the response body, decodes it according to Content-Encoding,
// and resets res.Body so the response can still be consumed by the caller.
func Capture(res *http.Response) (*Snapshot, error) {
	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body : %w", err)
	}
	res.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	decoded, err := decodeBody(bodyBytes, res.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("decoding response body : %w", err)
	}

	header := res.Header.Clone()
	header.Del("Content-Encoding")
	header.Set("Content-Length", strconv.Itoa(len(decoded)))

	return &Snapshot{
		StatusCode:  res.StatusCode,
		Header:      header,
		Body:        decoded,
		ContentType: contentType(header.Get("Content-Type"), decoded),
	}, nil
}

// NewResponse rebuilds a servable *http.Response from snapshot fields.
// The request may be nil for synthesized responses.
func NewResponse(req *http.Request, statusCode int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		StatusCode:    statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Request:       req,
		Header:        header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// decodeBody returns the identity-encoded form of the body. Unknown encodings
// are passed through untouched rather than rejected, matching how browsers
// treat encodings they cannot decode from cache.
func decodeBody(body []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader : %w", err)
		}
		defer reader.Close()
		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("reading gzip body : %w", err)
		}
		return decoded, nil
	case "br":
		decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("reading brotli body : %w", err)
		}
		return decoded, nil
	default:
		return body, nil
	}
}

// contentType parses the Content-Type header, falling back to content sniffing
// when the header is absent or malformed.
func contentType(header string, body []byte) string {
	if header != "" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil {
			return strings.ToLower(mediaType)
		}
	}
	if len(body) == 0 {
		return "application/octet-stream"
	}
	mediaType, _, err := mime.ParseMediaType(mimetype.Detect(body).String())
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}
