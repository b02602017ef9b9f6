package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"lemmy-auth-proxy/internal/auth"
	"lemmy-auth-proxy/internal/model"
	"lemmy-auth-proxy/internal/service"
)

// authParamPattern matches auth query parameter values in URLs embedded in
// error messages. Tokens must never reach logs or error bodies.
var authParamPattern = regexp.MustCompile(`(?i)(auth=)[^&\s"]+`)

// ProxyHandler forwards every request to the upstream backend, rewriting
// legacy auth tokens into bearer headers on the way.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle runs the pipeline for one request and streams the upstream response
// back verbatim. Every failure becomes exactly one synthesized response; no
// error escapes the handler.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:        req.Context(),
		Method:     req.Method,
		Path:       req.URL.Path,
		RequestURI: req.URL.RequestURI(),
		RawQuery:   req.URL.RawQuery,
		Host:       req.Host,
		Header:     req.Header,
		Body:       req.Body,

		ContentLength: req.ContentLength,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Relay the upstream header set as-is, duplicates included.
	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}
	if _, ok := resp.Header["Content-Type"]; !ok {
		// A nil entry tells net/http not to sniff a Content-Type from the
		// body; an upstream that sent none must reach the client with none.
		c.Response().Header()["Content-Type"] = nil
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Stream the upstream body directly to the client. If io.Copy fails
	// mid-stream (e.g. client disconnect, network error), the HTTP status
	// code has already been sent, so the client receives a truncated
	// response with the original status. This is an inherent trade-off of
	// streaming proxies — we log the error for observability.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

// mapError converts a pipeline failure into a plain-text error response:
// 400 when the inbound request itself is at fault (unreadable body, token
// that cannot be a header value), 502 for any upstream transport failure.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("proxy error",
		"err", sanitizeError(err),
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, auth.ErrBodyRead) {
		return c.String(http.StatusBadRequest, "Failed to receive request body")
	}

	if errors.Is(err, auth.ErrInvalidToken) {
		return c.String(http.StatusBadRequest, "Auth token cannot be carried in an Authorization header")
	}

	return c.String(http.StatusBadGateway, fmt.Sprintf("Upstream failed to respond: %s", sanitizeError(err)))
}

// sanitizeError redacts auth tokens from error messages that may contain the
// request URL (transport errors embed the full URL, query string included).
func sanitizeError(err error) string {
	return authParamPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
