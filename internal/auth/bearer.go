package auth

import (
	"errors"
	"net/http"
)

// ErrInvalidToken is returned when an extracted token cannot be carried in an
// HTTP header value. It is terminal for the request.
var ErrInvalidToken = errors.New("auth token contains characters not allowed in a header value")

// Bearer formats a raw token as a bearer Authorization header value. The
// token is used as-is, with no further encoding.
func Bearer(token string) string {
	return "Bearer " + token
}

// Rewrite clones the header set and, when a token was found, appends an
// Authorization header. Append, not set: existing entries (and duplicates of
// any name) are left exactly as they arrived. The caller's header map is
// never mutated.
func Rewrite(header http.Header, token string, src Source) (http.Header, error) {
	out := header.Clone()
	if out == nil {
		out = make(http.Header)
	}
	if src == SourceNone {
		return out, nil
	}
	if !validFieldValue(token) {
		return nil, ErrInvalidToken
	}
	out.Add("Authorization", Bearer(token))
	return out, nil
}

// validFieldValue reports whether s is a legal HTTP field value: visible
// ASCII, obs-text, space and horizontal tab (RFC 7230 section 3.2).
func validFieldValue(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0x7f || (c < 0x20 && c != '\t') {
			return false
		}
	}
	return true
}
