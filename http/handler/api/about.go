package api

import (
	"net/http"
	"time"

	"github.com/datarhei/srtrelay/app"
	"github.com/datarhei/srtrelay/http/api"

	"github.com/labstack/echo/v4"
)

// Instance identifies the running relay.
type Instance struct {
	Name      string
	ID        string
	Mode      string
	CreatedAt time.Time
}

// The AboutHandler type provides handler functions for retrieving details
// about the relay instance and build infos.
type AboutHandler struct {
	instance Instance
	now      func() time.Time
}

// NewAbout returns a new About type
func NewAbout(instance Instance) *AboutHandler {
	return &AboutHandler{
		instance: instance,
		now:      time.Now,
	}
}

// About returns the instance details and build infos
// @Summary Instance details and build infos
// @Description The name, id, mode and uptime of the running relay together with its build infos.
// @Tags v1
// @ID about
// @Produce json
// @Success 200 {object} api.About
// @Router /api [get]
func (p *AboutHandler) About(c echo.Context) error {
	createdAt := p.instance.CreatedAt

	about := api.About{
		App:       app.Name,
		Name:      p.instance.Name,
		ID:        p.instance.ID,
		Mode:      p.instance.Mode,
		CreatedAt: createdAt.Format(time.RFC3339),
		Uptime:    uint64(p.now().Sub(createdAt).Seconds()),
		Version: api.AboutVersion{
			Number:   app.Version.String(),
			Commit:   app.Commit,
			Branch:   app.Branch,
			Build:    app.Build,
			Arch:     app.Arch,
			Compiler: app.Compiler,
		},
	}

	return c.JSON(http.StatusOK, about)
}
