package util

import (
	"github.com/labstack/echo/v4"
)

// DefaultQuery returns the query parameter or defValue if it's not set.
func DefaultQuery(c echo.Context, name, defValue string) string {
	param := c.QueryParam(name)

	if len(param) == 0 {
		return defValue
	}

	return param
}

// BindQuery binds the query parameters to obj and validates it.
func BindQuery(c echo.Context, obj interface{}) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, obj); err != nil {
		return err
	}

	return c.Validate(obj)
}
