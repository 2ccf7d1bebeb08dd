package api

import (
	"net/http"

	"github.com/datarhei/srtrelay/config/vars"
	"github.com/datarhei/srtrelay/http/api"

	"github.com/labstack/echo/v4"
)

// ConfigReader gives access to the configuration values
type ConfigReader interface {
	Variables() []vars.Variable
}

// The ConfigHandler type provides a handler function for reading the configuration
type ConfigHandler struct {
	config ConfigReader
}

// NewConfig return a new Config type. You have to provide the active configuration.
func NewConfig(config ConfigReader) *ConfigHandler {
	return &ConfigHandler{
		config: config,
	}
}

// Get returns all configuration values the relay is running with
// @Summary Retrieve the active configuration
// @Description Retrieve all configuration values the relay is running with. Secrets are masked.
// @Tags v1
// @ID config-get
// @Produce json
// @Success 200 {array} api.ConfigVariable
// @Router /api/v1/config [get]
func (p *ConfigHandler) Get(c echo.Context) error {
	variables := p.config.Variables()

	list := make([]api.ConfigVariable, len(variables))

	for i, v := range variables {
		list[i].Unmarshal(v)
	}

	return c.JSON(http.StatusOK, list)
}
