package api

import (
	"net/http"
	"strings"

	"github.com/datarhei/srtrelay/http/api"
	"github.com/datarhei/srtrelay/http/handler/util"
	"github.com/datarhei/srtrelay/log"

	"github.com/labstack/echo/v4"
)

// The LogHandler type provides handler functions for reading the application log
type LogHandler struct {
	buffer log.BufferWriter
}

// NewLog return a new Log type. You have to provide log buffer.
func NewLog(buffer log.BufferWriter) *LogHandler {
	l := &LogHandler{
		buffer: buffer,
	}

	if l.buffer == nil {
		l.buffer = log.NewBufferWriter(log.Lsilent, 1)
	}

	return l
}

// Log returns the last log lines, either formatted for the console (default)
// or as raw events. With lines only the most recent events are returned.
// @Summary Application log
// @Description Get the last log lines of the relay
// @Tags v1
// @ID log
// @Param format query string false "Format of the list of log events (*console, raw)"
// @Param lines query integer false "Number of most recent log events, 0 for all"
// @Produce json
// @Success 200 {array} api.LogEvent "application log"
// @Success 200 {array} string "application log"
// @Failure 400 {object} api.Error
// @Router /api/v1/log [get]
func (p *LogHandler) Log(c echo.Context) error {
	query := api.LogQuery{}

	if err := util.BindQuery(c, &query); err != nil {
		return api.Err(http.StatusBadRequest, "", "invalid query: %s", err.Error())
	}

	events := p.buffer.Events()

	if query.Lines > 0 && query.Lines < len(events) {
		events = events[len(events)-query.Lines:]
	}

	if query.Format == "raw" {
		log := make([]api.LogEvent, len(events))

		for i, e := range events {
			e.Data["ts"] = e.Time
			e.Data["level"] = e.Level.String()
			e.Data["component"] = e.Component

			if len(e.Caller) != 0 {
				e.Data["caller"] = e.Caller
			}

			if len(e.Message) != 0 {
				e.Data["message"] = e.Message
			}

			log[i] = api.LogEvent(e.Data)
		}

		return c.JSON(http.StatusOK, log)
	}

	formatter := log.NewConsoleFormatter(false)

	log := make([]string, len(events))

	for i, e := range events {
		log[i] = strings.TrimSpace(formatter.String(e))
	}

	return c.JSON(http.StatusOK, log)
}
