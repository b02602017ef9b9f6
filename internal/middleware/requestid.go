package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/random"
)

// RequestIDKey is the echo context key under which the correlation id is stored.
const RequestIDKey = "request_id"

// RequestID assigns each request a correlation id for logging. The id lives
// in the echo context only: a proxied request must reach the upstream with
// exactly the headers the client sent, and the response must reach the client
// with exactly the headers the upstream sent. A client-supplied X-Request-Id
// is reused as the correlation id (it is already part of the inbound header
// set and forwards as-is).
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = random.String(32)
			}
			c.Set(RequestIDKey, rid)
			return next(c)
		}
	}
}

// requestID returns the correlation id stored by RequestID, or empty.
func requestID(c echo.Context) string {
	rid, _ := c.Get(RequestIDKey).(string)
	return rid
}
