package api

import (
	"net/http"

	"github.com/datarhei/srtrelay/http/api"
	"github.com/datarhei/srtrelay/srt"

	"github.com/labstack/echo/v4"
)

// Status is the view of the running relay the handlers report on. Broadcast
// and Relay return false if the relay runs in the other mode.
type Status interface {
	Mode() string
	Clients() []srt.Client
	Broadcast() (srt.BroadcastStats, bool)
	Relay() (srt.RelayStats, bool)
	LastStatistics() (srt.Statistics, bool)
}

// The RelayHandler type provides handler functions for the state of the relay
type RelayHandler struct {
	status Status
}

// NewRelay returns a new Relay type
func NewRelay(status Status) *RelayHandler {
	return &RelayHandler{
		status: status,
	}
}

// Clients lists the connected SRT clients of a broadcast. In the other modes
// the list is empty.
// @Summary List connected clients
// @Description List the SRT clients connected to the broadcast listener. The list is empty if the relay isn't broadcasting.
// @Tags v1
// @ID clients-list
// @Produce json
// @Success 200 {array} api.Client
// @Router /api/v1/clients [get]
func (r *RelayHandler) Clients(c echo.Context) error {
	clients := r.status.Clients()

	list := make([]api.Client, len(clients))

	for i, client := range clients {
		list[i].Unmarshal(client)
	}

	return c.JSON(http.StatusOK, list)
}

// Stats returns the counters of the running broadcast or relay and the latest
// connection statistics.
// @Summary Relay statistics
// @Description The counters of the running broadcast or relay and the latest SRT connection statistics.
// @Tags v1
// @ID stats
// @Produce json
// @Success 200 {object} api.Status
// @Router /api/v1/stats [get]
func (r *RelayHandler) Stats(c echo.Context) error {
	status := api.Status{
		Mode: r.status.Mode(),
	}

	if stats, ok := r.status.Broadcast(); ok {
		status.Broadcast = &stats
	}

	if stats, ok := r.status.Relay(); ok {
		status.Relay = &stats
	}

	if stats, ok := r.status.LastStatistics(); ok {
		status.Connection = &stats
	}

	return c.JSON(http.StatusOK, status)
}
