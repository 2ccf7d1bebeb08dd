package errorhandler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/datarhei/srtrelay/http/api"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler writes handler errors as api.Error JSON
func HTTPErrorHandler(err error, c echo.Context) {
	var code int
	var details []string
	message := ""

	var aerr api.Error
	var herr *echo.HTTPError

	if errors.As(err, &aerr) {
		code = aerr.Code
		message = aerr.Message
		details = aerr.Details
	} else if errors.As(err, &herr) {
		if herr.Internal != nil {
			if inner, ok := herr.Internal.(*echo.HTTPError); ok {
				herr = inner
			}
		}

		code = herr.Code
		message = http.StatusText(herr.Code)
		details = strings.Split(fmt.Sprintf("%v", herr.Message), "\n")
	} else {
		code = http.StatusInternalServerError
		message = http.StatusText(http.StatusInternalServerError)
		details = strings.Split(err.Error(), "\n")
	}

	if c.Response().Committed {
		return
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(code)
		return
	}

	c.JSON(code, api.Error{
		Code:    code,
		Message: message,
		Details: details,
	})
}
