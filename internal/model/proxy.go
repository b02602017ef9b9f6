// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest represents a client request to be forwarded upstream.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	Path   string // decoded path, for logging and metrics only
	// RequestURI is the original path?query exactly as the client sent it.
	// It is forwarded verbatim: a legacy auth query parameter is not stripped.
	RequestURI string
	RawQuery   string
	// Host is the authority the client addressed; it is forwarded verbatim
	// rather than replaced with the upstream target.
	Host   string
	Header http.Header
	Body   io.ReadCloser
	// ContentLength mirrors the inbound request's declared length;
	// -1 means unknown (chunked).
	ContentLength int64
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
