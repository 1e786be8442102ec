package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Logger attaches a request-scoped zerolog logger to the context and logs
// one line per completed request.
func Logger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			l := log.With().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Logger()

			c.SetRequest(req.WithContext(l.WithContext(req.Context())))

			start := time.Now()
			err := next(c)

			l.Debug().
				Int("status", c.Response().Status).
				Dur("duration", time.Since(start)).
				Err(err).
				Msg("Request handled")

			return err
		}
	}
}
