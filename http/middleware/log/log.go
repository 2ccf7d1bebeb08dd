// Package log implements a middleware that logs every HTTP request.
package log

import (
	"net/http"
	"time"

	"github.com/datarhei/srtrelay/log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Config struct {
	// Skipper defines a function to skip middleware.
	Skipper middleware.Skipper
	Logger  log.Logger
}

// NewWithConfig returns the request log middleware. Server errors are logged
// as errors, client errors as warnings and everything else at debug level.
func NewWithConfig(config Config) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = middleware.DefaultSkipper
	}

	if config.Logger == nil {
		config.Logger = log.New("HTTP")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()

			path := req.URL.Path
			if len(req.URL.RawQuery) != 0 {
				path += "?" + req.URL.RawQuery
			}

			logger := config.Logger.WithFields(log.Fields{
				"client":      c.RealIP(),
				"method":      req.Method,
				"path":        path,
				"status":      res.Status,
				"status_text": http.StatusText(res.Status),
				"size_bytes":  res.Size,
				"latency_ms":  time.Since(start).Milliseconds(),
				"user_agent":  req.UserAgent(),
			})

			switch {
			case res.Status >= 500:
				logger.Error().Log("")
			case res.Status >= 400:
				logger.Warn().Log("")
			default:
				logger.Debug().Log("")
			}

			return nil
		}
	}
}
