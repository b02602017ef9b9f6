// Package service implements the auth-rewrite and forwarding pipeline.
package service

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"lemmy-auth-proxy/internal/auth"
	"lemmy-auth-proxy/internal/client"
	"lemmy-auth-proxy/internal/config"
	"lemmy-auth-proxy/internal/metrics"
	"lemmy-auth-proxy/internal/model"
)

// ProxyService runs the per-request pipeline: extract a legacy auth token,
// rewrite the header set, forward to the upstream, and hand the response back
// untouched.
type ProxyService struct {
	client  *client.UpstreamClient
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyService creates a ProxyService.
// The metrics parameter is optional; pass nil to disable rewrite counters.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		client:  c,
		cfg:     cfg,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
	}
}

// Forward sends a ProxyRequest to the upstream backend and returns its
// response verbatim. The caller is responsible for closing the response body.
//
// An Authorization header on the inbound request short-circuits all token
// extraction; otherwise a token found in the query string or a JSON body is
// appended as a bearer Authorization header. The request URI is forwarded
// exactly as received: a legacy auth query parameter is not stripped.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	body, token, src, err := s.extract(pr)
	if err != nil {
		return nil, err
	}

	header, err := auth.Rewrite(pr.Header, token, src)
	if err != nil {
		return nil, fmt.Errorf("rewrite headers: %w", err)
	}

	upstreamURL := "http://" + s.cfg.Upstream.Target + pr.RequestURI

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
		"token_source", string(src),
	)

	req, err := http.NewRequestWithContext(pr.Ctx, pr.Method, upstreamURL, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header
	// The connection targets the upstream, but the Host header stays the one
	// the client addressed.
	if pr.Host != "" {
		req.Host = pr.Host
	}
	// Suppress the transport's default User-Agent when the client sent none;
	// the forwarded header set must contain no additions beyond Authorization.
	if _, ok := header["User-Agent"]; !ok {
		req.Header.Set("User-Agent", "")
	}
	// Preserve the inbound framing. A buffered body has a known size again
	// even when the client streamed it chunked.
	req.ContentLength = pr.ContentLength
	if rb, ok := body.(*auth.ReplayBody); ok {
		req.ContentLength = rb.Size()
	}

	return s.client.Do(req)
}

// extract runs token extraction and records where a token came from.
func (s *ProxyService) extract(pr *model.ProxyRequest) (io.ReadCloser, string, auth.Source, error) {
	body, token, src, err := auth.Extract(pr.RawQuery, pr.Header, pr.Body)
	if err != nil {
		return nil, "", auth.SourceNone, fmt.Errorf("extract auth token: %w", err)
	}
	if src != auth.SourceNone && s.metrics != nil {
		s.metrics.TokenRewrites.WithLabelValues(string(src)).Inc()
	}
	return body, token, src, nil
}
