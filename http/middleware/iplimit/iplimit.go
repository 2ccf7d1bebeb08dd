// Package iplimit rejects requests from clients the limiter doesn't allow.
package iplimit

import (
	"net/http"

	"github.com/datarhei/srtrelay/log"
	"github.com/datarhei/srtrelay/net"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Config struct {
	// Skipper defines a function to skip middleware.
	Skipper middleware.Skipper

	// Limiter decides on the client IP. Without a limiter all clients are
	// allowed.
	Limiter net.IPLimiter
	Logger  log.Logger
}

// NewWithConfig returns a middleware that answers requests from rejected
// clients with 403.
func NewWithConfig(config Config) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = middleware.DefaultSkipper
	}

	if config.Limiter == nil {
		config.Limiter = net.NewNullIPLimiter()
	}

	if config.Logger == nil {
		config.Logger = log.New("")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			if ip := c.RealIP(); !config.Limiter.IsAllowed(ip) {
				config.Logger.Debug().WithFields(log.Fields{
					"client": ip,
					"path":   c.Request().URL.Path,
				}).Log("Request not allowed")

				return echo.NewHTTPError(http.StatusForbidden)
			}

			return next(c)
		}
	}
}
