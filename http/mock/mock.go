// Package mock provides helpers for testing HTTP handlers.
package mock

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/datarhei/srtrelay/encoding/json"
	"github.com/datarhei/srtrelay/http/api"
	"github.com/datarhei/srtrelay/http/errorhandler"
	"github.com/datarhei/srtrelay/http/validator"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// DummyEcho returns a router configured like the one of the status API,
// but without any routes and logging.
func DummyEcho() *echo.Echo {
	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = errorhandler.HTTPErrorHandler
	router.Logger.SetOutput(io.Discard)
	router.Validator = validator.New()

	return router
}

type Response struct {
	Code        int
	ContentType string
	Raw         []byte

	// Error is filled for responses other than 200 with an api.Error body.
	Error api.Error
}

// Request sends a request to the router and requires the given status code.
func Request(t require.TestingT, httpstatus int, router *echo.Echo, method, path string, body io.Reader) *Response {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	response := &Response{
		Code:        rec.Code,
		ContentType: rec.Header().Get(echo.HeaderContentType),
		Raw:         rec.Body.Bytes(),
	}

	require.Equal(t, httpstatus, response.Code, string(response.Raw))

	if response.Code != http.StatusOK {
		json.Unmarshal(response.Raw, &response.Error)
	}

	return response
}

// Decode unmarshals the raw response body into v.
func Decode(t require.TestingT, response *Response, v interface{}) {
	err := json.Unmarshal(response.Raw, v)
	require.NoError(t, err)
}
