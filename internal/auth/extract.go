// Package auth detects legacy auth tokens carried in the query string or a
// JSON body and rewrites them into standard bearer Authorization headers.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Source identifies where a legacy token was found.
type Source string

// Token sources, in precedence order after an existing Authorization header.
const (
	SourceNone  Source = ""
	SourceQuery Source = "query"
	SourceBody  Source = "body"
)

// ErrBodyRead is returned when the inbound body cannot be fully read while
// inspecting a JSON payload. It is terminal for the request.
var ErrBodyRead = errors.New("failed to receive request body")

// ReplayBody replays buffered request bytes after inspection. The bytes are
// exactly those consumed from the original body. Size is exposed so an
// outbound request can keep Content-Length framing instead of switching to
// chunked transfer.
type ReplayBody struct {
	r    *bytes.Reader
	size int64
}

// NewReplayBody wraps buffered bytes in a ReplayBody.
func NewReplayBody(data []byte) *ReplayBody {
	return &ReplayBody{r: bytes.NewReader(data), size: int64(len(data))}
}

func (b *ReplayBody) Read(p []byte) (int, error) { return b.r.Read(p) }

// Close is a no-op; the bytes live in memory.
func (b *ReplayBody) Close() error { return nil }

// Size returns the total buffered length.
func (b *ReplayBody) Size() int64 { return b.size }

// jsonContentType is matched as a substring of the Content-Type value, so
// parameters like "; charset=utf-8" do not defeat detection.
const jsonContentType = "application/json"

// Extract inspects a request for a legacy auth token.
//
// Precedence: an existing Authorization header wins and suppresses all
// inspection (the body is never touched). Otherwise the first auth query
// parameter wins. Otherwise, and only when the content type declares JSON,
// the body is buffered and a top-level string "auth" property is looked up.
//
// The returned body is either the original reader untouched or an exact
// byte-for-byte replay of what was consumed. A failed body read returns
// ErrBodyRead; anything merely unparseable (bad UTF-8, bad JSON, wrong shape)
// means "no token" and the original bytes still flow downstream.
func Extract(rawQuery string, header http.Header, body io.ReadCloser) (io.ReadCloser, string, Source, error) {
	// Presence is checked by key, not value: an already-authenticated request
	// is a pure passthrough.
	if _, ok := header["Authorization"]; ok {
		return body, "", SourceNone, nil
	}

	if token, ok := fromQuery(rawQuery); ok {
		return body, token, SourceQuery, nil
	}

	return fromBody(header, body)
}

// fromQuery returns the first auth query parameter, if any. A malformed query
// string is not an error: whatever pairs decode are used, the rest ignored.
func fromQuery(rawQuery string) (string, bool) {
	if rawQuery == "" {
		return "", false
	}
	values, _ := url.ParseQuery(rawQuery)
	if vs, ok := values["auth"]; ok && len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}

// fromBody buffers a JSON body and looks up a top-level string "auth"
// property. Non-JSON content types are never read, keeping large uploads
// streamable.
func fromBody(header http.Header, body io.ReadCloser) (io.ReadCloser, string, Source, error) {
	if !strings.Contains(header.Get("Content-Type"), jsonContentType) {
		return body, "", SourceNone, nil
	}

	data, err := io.ReadAll(body)
	_ = body.Close()
	if err != nil {
		return nil, "", SourceNone, fmt.Errorf("%w: %v", ErrBodyRead, err)
	}

	replay := NewReplayBody(data)

	if !utf8.Valid(data) {
		return replay, "", SourceNone, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return replay, "", SourceNone, nil
	}
	token, ok := payload["auth"].(string)
	if !ok {
		return replay, "", SourceNone, nil
	}

	return replay, token, SourceBody, nil
}
