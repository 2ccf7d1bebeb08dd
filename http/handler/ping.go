// Package handler contains the handlers of the routes outside of /api.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PingHandler answers liveness checks.
type PingHandler struct{}

func NewPing() *PingHandler {
	return &PingHandler{}
}

// Ping always returns "pong" as text/plain.
func (p *PingHandler) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}
