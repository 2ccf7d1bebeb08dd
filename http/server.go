// Package http implements the status API of the relay.
package http

import (
	"net/http"
	"strings"

	"github.com/datarhei/srtrelay/http/errorhandler"
	"github.com/datarhei/srtrelay/http/handler"
	api "github.com/datarhei/srtrelay/http/handler/api"
	httplog "github.com/datarhei/srtrelay/http/log"
	"github.com/datarhei/srtrelay/http/validator"
	"github.com/datarhei/srtrelay/log"
	"github.com/datarhei/srtrelay/net"
	"github.com/datarhei/srtrelay/prometheus"

	mwiplimit "github.com/datarhei/srtrelay/http/middleware/iplimit"
	mwlog "github.com/datarhei/srtrelay/http/middleware/log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Config struct {
	Logger     log.Logger
	LogBuffer  log.BufferWriter
	Instance   api.Instance
	Status     api.Status
	Config     api.ConfigReader
	Prometheus prometheus.Reader
	IPLimiter  net.IPLimiter
}

type Server interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

type server struct {
	logger log.Logger

	handler struct {
		about      *api.AboutHandler
		prometheus *handler.PrometheusHandler
		ping       *handler.PingHandler
	}

	v1handler struct {
		log    *api.LogHandler
		relay  *api.RelayHandler
		config *api.ConfigHandler
	}

	middleware struct {
		iplimit echo.MiddlewareFunc
		log     echo.MiddlewareFunc
	}

	router *echo.Echo
}

// NewServer returns the router for the status API. Without a Status the
// relay routes are not available, without a Prometheus reader there's no
// /metrics endpoint.
func NewServer(config Config) (Server, error) {
	s := &server{
		logger: config.Logger,
	}

	if s.logger == nil {
		s.logger = log.New("HTTP")
	}

	s.handler.about = api.NewAbout(config.Instance)
	s.handler.ping = handler.NewPing()

	if config.Prometheus != nil {
		s.handler.prometheus = handler.NewPrometheus(config.Prometheus.HTTPHandler())
	}

	s.v1handler.log = api.NewLog(config.LogBuffer)

	if config.Status != nil {
		s.v1handler.relay = api.NewRelay(config.Status)
	}

	if config.Config != nil {
		s.v1handler.config = api.NewConfig(config.Config)
	}

	s.middleware.iplimit = mwiplimit.NewWithConfig(mwiplimit.Config{
		Limiter: config.IPLimiter,
		Logger:  s.logger,
	})

	s.middleware.log = mwlog.NewWithConfig(mwlog.Config{
		Logger: s.logger,
	})

	s.router = echo.New()
	s.router.HTTPErrorHandler = errorhandler.HTTPErrorHandler
	s.router.Validator = validator.New()
	s.router.Use(s.middleware.log)
	s.router.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			rows := strings.Split(string(stack), "\n")
			s.logger.Error().WithField("stack", rows).Log("recovered from a panic")
			return nil
		},
	}))

	s.router.HideBanner = true
	s.router.HidePort = true

	s.router.Logger.SetOutput(httplog.NewWrapper(s.logger))

	s.setRoutes()

	return s, nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *server) setRoutes() {
	s.router.GET("/ping", s.handler.ping.Ping)

	if s.handler.prometheus != nil {
		metrics := s.router.Group("/metrics")
		metrics.Use(s.middleware.iplimit)
		metrics.GET("", s.handler.prometheus.Metrics)
	}

	api := s.router.Group("/api")
	api.Use(s.middleware.iplimit)
	api.GET("", s.handler.about.About)

	v1 := api.Group("/v1")
	v1.GET("/log", s.v1handler.log.Log)

	if s.v1handler.relay != nil {
		v1.GET("/clients", s.v1handler.relay.Clients)
		v1.GET("/stats", s.v1handler.relay.Stats)
	}

	if s.v1handler.config != nil {
		v1.GET("/config", s.v1handler.config.Get)
	}
}
