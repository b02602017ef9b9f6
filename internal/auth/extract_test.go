package auth

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

// failingBody simulates a network error while reading the request body.
type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }
func (failingBody) Close() error             { return nil }

// countingBody records how many Read calls were made.
type countingBody struct {
	io.Reader
	reads int
}

func (b *countingBody) Read(p []byte) (int, error) {
	b.reads++
	return b.Reader.Read(p)
}

func (b *countingBody) Close() error { return nil }

func body(s string) io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }

func mustReadAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return data
}

func TestExtract_AuthorizationHeaderWins(t *testing.T) {
	header := http.Header{
		"Authorization": {"Bearer existing"},
		"Content-Type":  {"application/json"},
	}
	in := &countingBody{Reader: strings.NewReader(`{"auth":"ignored"}`)}

	out, token, src, err := Extract("auth=also-ignored", header, in)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if src != SourceNone || token != "" {
		t.Errorf("token = %q src = %q, want none", token, src)
	}
	if out != io.ReadCloser(in) {
		t.Error("body was replaced; want the original reader passed through")
	}
	if in.reads != 0 {
		t.Errorf("body Read called %d times; want 0 for authenticated passthrough", in.reads)
	}
}

func TestExtract_QueryToken(t *testing.T) {
	in := body("payload")

	out, token, src, err := Extract("auth=TOKEN", http.Header{}, in)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if src != SourceQuery {
		t.Errorf("src = %q, want %q", src, SourceQuery)
	}
	if token != "TOKEN" {
		t.Errorf("token = %q, want %q", token, "TOKEN")
	}
	if out != in {
		t.Error("body was replaced; want the original reader passed through")
	}
}

func TestExtract_QueryTokenDuplicates(t *testing.T) {
	_, token, src, err := Extract("auth=first&auth=second", http.Header{}, body(""))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if src != SourceQuery || token != "first" {
		t.Errorf("token = %q src = %q, want first occurrence from query", token, src)
	}
}

func TestExtract_QueryTokenSuppressesBody(t *testing.T) {
	header := http.Header{"Content-Type": {"application/json"}}
	in := &countingBody{Reader: strings.NewReader(`{"auth":"from-body"}`)}

	_, token, src, err := Extract("auth=from-query", header, in)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if token != "from-query" || src != SourceQuery {
		t.Errorf("token = %q src = %q, want query token", token, src)
	}
	if in.reads != 0 {
		t.Errorf("body Read called %d times; want 0 when the query carries the token", in.reads)
	}
}

func TestExtract_MalformedQueryPairsIgnored(t *testing.T) {
	tests := []struct {
		name      string
		rawQuery  string
		wantToken string
		wantSrc   Source
	}{
		{"broken pair beside auth", "a=%zz&auth=tok", "tok", SourceQuery},
		{"broken auth value", "auth=%zz", "", SourceNone},
		{"empty auth value", "auth=", "", SourceQuery},
		{"no query", "", "", SourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, token, src, err := Extract(tt.rawQuery, http.Header{}, body(""))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if token != tt.wantToken || src != tt.wantSrc {
				t.Errorf("token = %q src = %q, want %q/%q", token, src, tt.wantToken, tt.wantSrc)
			}
		})
	}
}

func TestExtract_BodyToken(t *testing.T) {
	original := `{"auth":"abc123"}`
	header := http.Header{"Content-Type": {"application/json"}}

	out, token, src, err := Extract("", header, body(original))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if src != SourceBody {
		t.Errorf("src = %q, want %q", src, SourceBody)
	}
	if token != "abc123" {
		t.Errorf("token = %q, want %q", token, "abc123")
	}
	if got := mustReadAll(t, out); string(got) != original {
		t.Errorf("replayed body = %q, want %q", got, original)
	}
}

func TestExtract_BodyTokenContentTypeWithParams(t *testing.T) {
	header := http.Header{"Content-Type": {"application/json; charset=utf-8"}}

	_, token, src, err := Extract("", header, body(`{"auth":"t"}`))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if src != SourceBody || token != "t" {
		t.Errorf("token = %q src = %q, want body token", token, src)
	}
}

func TestExtract_BodyNoToken(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "not valid json"},
		{"no auth field", `{"other":"value"}`},
		{"non-string auth", `{"auth":42}`},
		{"auth is null", `{"auth":null}`},
		{"top-level array", `["auth","x"]`},
		{"empty body", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{"Content-Type": {"application/json"}}

			out, token, src, err := Extract("", header, body(tt.body))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if token != "" || src != SourceNone {
				t.Errorf("token = %q src = %q, want none", token, src)
			}
			if got := mustReadAll(t, out); string(got) != tt.body {
				t.Errorf("replayed body = %q, want %q", got, tt.body)
			}
		})
	}
}

func TestExtract_BodyInvalidUTF8(t *testing.T) {
	original := []byte{0xff, 0xfe, '{', '}'}
	header := http.Header{"Content-Type": {"application/json"}}

	out, token, src, err := Extract("", header, io.NopCloser(bytes.NewReader(original)))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if token != "" || src != SourceNone {
		t.Errorf("token = %q src = %q, want none for invalid UTF-8", token, src)
	}
	if got := mustReadAll(t, out); !bytes.Equal(got, original) {
		t.Errorf("replayed body = %v, want original bytes %v", got, original)
	}
}

func TestExtract_NonJSONBodyNeverRead(t *testing.T) {
	header := http.Header{"Content-Type": {"application/octet-stream"}}
	in := &countingBody{Reader: strings.NewReader("binary upload")}

	out, token, src, err := Extract("", header, in)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if token != "" || src != SourceNone {
		t.Errorf("token = %q src = %q, want none", token, src)
	}
	if out != io.ReadCloser(in) {
		t.Error("body was replaced; want the original reader passed through")
	}
	if in.reads != 0 {
		t.Errorf("body Read called %d times; want 0 for non-JSON content", in.reads)
	}
}

func TestExtract_BodyReadFailure(t *testing.T) {
	header := http.Header{"Content-Type": {"application/json"}}

	_, _, _, err := Extract("", header, failingBody{})
	if !errors.Is(err, ErrBodyRead) {
		t.Fatalf("Extract() error = %v, want ErrBodyRead", err)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	original := `{"auth":"abc123","extra":[1,2,3]}`
	header := http.Header{"Content-Type": {"application/json"}}

	out1, token1, _, err := Extract("", header, body(original))
	if err != nil {
		t.Fatalf("first Extract() error = %v", err)
	}
	bytes1 := mustReadAll(t, out1)

	out2, token2, _, err := Extract("", header, io.NopCloser(bytes.NewReader(bytes1)))
	if err != nil {
		t.Fatalf("second Extract() error = %v", err)
	}
	bytes2 := mustReadAll(t, out2)

	if token1 != token2 {
		t.Errorf("tokens differ across runs: %q vs %q", token1, token2)
	}
	if !bytes.Equal(bytes1, bytes2) || string(bytes2) != original {
		t.Errorf("reconstruction not byte-exact: %q then %q, want %q", bytes1, bytes2, original)
	}
}

func TestReplayBody_Size(t *testing.T) {
	rb := NewReplayBody([]byte("hello"))
	if rb.Size() != 5 {
		t.Errorf("Size() = %d, want 5", rb.Size())
	}
	if got := mustReadAll(t, rb); string(got) != "hello" {
		t.Errorf("body = %q, want %q", got, "hello")
	}
	// Size stays the total length even after the bytes are consumed.
	if rb.Size() != 5 {
		t.Errorf("Size() after read = %d, want 5", rb.Size())
	}
}
