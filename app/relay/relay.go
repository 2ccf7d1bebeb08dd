// Package relay runs one of the relay modes with its configuration, logging,
// metrics and status API.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	gohttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/datarhei/srtrelay/app"
	"github.com/datarhei/srtrelay/config"
	configvars "github.com/datarhei/srtrelay/config/vars"
	"github.com/datarhei/srtrelay/http"
	api "github.com/datarhei/srtrelay/http/handler/api"
	"github.com/datarhei/srtrelay/log"
	"github.com/datarhei/srtrelay/prometheus"
	"github.com/datarhei/srtrelay/srt"

	"github.com/google/gops/agent"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"
)

// Mode selects what is relayed in which direction.
type Mode string

const (
	// ModeBroadcast relays UDP datagrams to all connected SRT clients.
	ModeBroadcast Mode = "broadcast"

	// ModeRecv relays from a remote SRT listener to UDP.
	ModeRecv Mode = "recv"

	// ModeSend relays UDP datagrams to one SRT client.
	ModeSend Mode = "send"
)

func (m Mode) valid() bool {
	switch m {
	case ModeBroadcast, ModeRecv, ModeSend:
		return true
	}

	return false
}

// The Relay interface is the lifecycle of the application.
type Relay interface {
	// Start runs the relay until ctx is cancelled, Stop is called or an
	// error occurs. A cancelled ctx is not an error.
	Start(ctx context.Context) error

	// Stop stops the running relay and waits until all sockets are closed.
	Stop()

	// Destroy stops the relay and closes the logger.
	Destroy()
}

// Options for New
type Options struct {
	Mode Mode

	// ConfigFile is an optional JSON file with the configuration.
	ConfigFile string

	// ConfigFileRequired fails New if ConfigFile doesn't exist, e.g. because
	// it has been given explicitly on the command line.
	ConfigFileRequired bool

	// Set overrides configuration values by their name, e.g. "srt.address".
	// These take precedence over the config file and the environment.
	Set map[string]string

	// LogWriter receives the log output. Defaults to io.Discard.
	LogWriter io.Writer
}

type relay struct {
	mode       Mode
	configfile string
	required   bool
	set        map[string]string

	config *config.Config

	log struct {
		writer io.Writer
		buffer log.BufferWriter
		logger struct {
			main log.Logger
			srt  log.Logger
			udp  log.Logger
			http log.Logger
		}
	}

	transport *srt.GoSRT
	metrics   prometheus.Metrics
	status    *status
	closers   []func()

	lock         sync.Mutex
	state        string
	cancel       context.CancelFunc
	done         chan struct{}
	undoMaxprocs func()
}

// New returns a Relay for the mode with the configuration from the config
// file, the environment and the options merged and validated.
func New(options Options) (Relay, error) {
	a := &relay{
		mode:       options.Mode,
		configfile: options.ConfigFile,
		required:   options.ConfigFileRequired,
		set:        options.Set,
		state:      "idle",
	}

	a.log.writer = options.LogWriter

	if a.log.writer == nil {
		a.log.writer = io.Discard
	}

	if !a.mode.valid() {
		return nil, fmt.Errorf("unknown mode '%s'", a.mode)
	}

	if err := a.reload(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *relay) reload() error {
	logger := log.New("App").WithOutput(log.NewConsoleWriter(a.log.writer, log.Lwarn, true))

	load := config.Load
	if a.required {
		load = config.LoadFile
	}

	cfg, err := load(a.configfile)
	if err != nil {
		logger.Error().WithError(err).Log("")
		return err
	}

	cfg.Merge()

	for name, value := range a.set {
		if err := cfg.Set(name, value); err != nil {
			logger.Error().WithField("variable", name).WithError(err).Log("Invalid value")
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	cfg.Validate(false)

	loglevel, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		loglevel = log.Linfo
	}

	buffer := log.NewBufferWriter(loglevel, cfg.Log.MaxLines)

	var output log.Writer

	if cfg.Log.Format == "json" {
		output = log.NewJSONWriter(a.log.writer, loglevel)
	} else {
		output = log.NewConsoleWriter(a.log.writer, loglevel, true)
	}

	logger = logger.WithOutput(log.NewSyncWriter(log.NewMultiWriter(output, buffer)))

	logfields := log.Fields{
		"application": app.Name,
		"version":     app.Version.String(),
		"mode":        string(a.mode),
		"arch":        app.Arch,
		"compiler":    app.Compiler,
	}

	if len(app.Commit) != 0 && len(app.Branch) != 0 {
		logfields["commit"] = app.Commit
		logfields["branch"] = app.Branch
	}

	if len(app.Build) != 0 {
		logfields["build"] = app.Build
	}

	logger.Info().WithFields(logfields).Log("")

	if len(a.configfile) != 0 {
		logger.Info().WithField("path", a.configfile).Log("Read config file")
	}

	if overrides := cfg.Overrides(); len(overrides) != 0 {
		logger.Info().WithField("variables", overrides).Log("Values taken from the environment")
	}

	configlogger := logger.WithComponent("Config")
	cfg.Messages(func(level string, v configvars.Variable, message string) {
		configlogger = configlogger.WithFields(log.Fields{
			"variable":    v.Name,
			"value":       v.Value,
			"env":         v.EnvName,
			"description": v.Description,
			"override":    v.Merged,
		})
		configlogger.Debug().Log(message)

		switch level {
		case "warn":
			configlogger.Warn().Log(message)
		case "error":
			configlogger.Error().WithField("error", message).Log("")
		default:
			break
		}
	})

	if cfg.HasErrors() {
		logger.Error().WithField("error", "Not all variables are set or are valid. Check the error messages above. Bailing out.").Log("")
		return fmt.Errorf("not all variables are set or valid")
	}

	a.config = cfg
	a.log.buffer = buffer
	a.log.logger.main = logger
	a.log.logger.srt = logger.WithComponent("SRT")
	a.log.logger.udp = logger.WithComponent("UDP")
	a.log.logger.http = logger.WithComponent("HTTP")

	return nil
}

func (a *relay) start(ctx context.Context) (*errgroup.Group, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.state != "idle" {
		return nil, fmt.Errorf("already running")
	}

	a.state = "starting"
	a.done = make(chan struct{})

	cfg := a.config
	logger := a.log.logger.main

	undoMaxprocs, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		format = strings.TrimPrefix(format, "maxprocs: ")
		logger.Debug().Log(format, args...)
	}))
	if err != nil {
		logger.Warn().Log("%s", err.Error())
	}

	a.undoMaxprocs = undoMaxprocs

	if cfg.Debug.Agent {
		if err := agent.Listen(agent.Options{
			Addr:                   cfg.Debug.AgentAddress,
			ReuseSocketAddrAndPort: true,
		}); err != nil {
			logger.Error().WithError(err).Log("Unable to start the debug agent")
		} else {
			logger.Info().Log("Debug agent started")
		}
	}

	topics := []string{}
	if cfg.SRT.Log.Enable {
		topics = cfg.SRT.Log.Topics
	}

	a.transport = srt.NewTransport(srt.TransportConfig{
		Passphrase: cfg.SRT.Passphrase,
		Token:      cfg.SRT.Token,
		StreamID:   cfg.SRT.StreamID,
		Latency:    time.Duration(cfg.SRT.Latency) * time.Millisecond,
		Blocking:   cfg.SRT.Blocking,
		LogTopics:  topics,
		Logger:     a.log.logger.srt,
	})

	a.status = newStatus(a.mode)

	var run func(ctx context.Context) error

	switch a.mode {
	case ModeBroadcast:
		run, err = a.broadcast()
	case ModeRecv:
		run, err = a.recv()
	case ModeSend:
		run, err = a.send()
	}

	if err != nil {
		return nil, err
	}

	if cfg.Metrics.EnablePrometheus {
		if err := a.registerMetrics(); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	var server *gohttp.Server

	if cfg.API.Enable {
		router, err := http.NewServer(http.Config{
			Logger:    a.log.logger.http,
			LogBuffer: a.log.buffer,
			Instance: api.Instance{
				Name:      cfg.Name,
				ID:        cfg.ID,
				Mode:      string(a.mode),
				CreatedAt: time.Now(),
			},
			Status:     a.status,
			Config:     cfg,
			Prometheus: a.metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to create server: %w", err)
		}

		server = &gohttp.Server{
			Addr:              cfg.API.Address,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The servers stop with the relay
		defer cancel()

		logger.Info().Log("Relay started")

		err := run(gctx)
		if err != nil {
			logger.Error().WithError(err).Log("Relay failed")
		} else {
			logger.Info().Log("Relay exited")
		}

		return err
	})

	if server != nil {
		logger := a.log.logger.http.WithField("address", cfg.API.Address)

		g.Go(func() error {
			logger.Info().Log("Server started")

			err := server.ListenAndServe()
			if err != nil && !errors.Is(err, gohttp.ErrServerClosed) {
				return fmt.Errorf("HTTP server: %w", err)
			}

			logger.Info().Log("Server exited")

			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			logger.Info().Log("Stopping ...")

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				logger.Error().WithError(err).Log("")
			}

			return nil
		})
	}

	a.state = "running"

	return g, nil
}

func (a *relay) registerMetrics() error {
	a.metrics = prometheus.New()

	if err := a.metrics.Register(prometheus.NewUptimeCollector(a.config.ID, time.Now())); err != nil {
		return err
	}

	if a.mode == ModeBroadcast {
		return a.metrics.Register(prometheus.NewBroadcastCollector(a.config.ID, a.status.broadcaster))
	}

	direction := "ingest"
	if a.mode == ModeSend {
		direction = "egress"
	}

	return a.metrics.Register(prometheus.NewRelayCollector(a.config.ID, direction, a.status.relay))
}

func (a *relay) Start(ctx context.Context) error {
	g, err := a.start(ctx)
	if err != nil {
		a.log.logger.main.Error().WithError(err).Log("Failed to start")
		a.stop()
		return err
	}

	err = g.Wait()

	a.stop()

	return err
}

// stop releases everything start acquired. It's safe to call it after a
// failed start.
func (a *relay) stop() {
	a.lock.Lock()
	defer a.lock.Unlock()

	logger := a.log.logger.main.WithField("action", "shutdown")

	if a.state == "idle" {
		return
	}

	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	a.closers = nil

	if a.metrics != nil {
		a.metrics.UnregisterAll()
		a.metrics = nil
	}

	if a.transport != nil {
		a.transport.Close()
		a.transport = nil
	}

	// Stop gops agent
	agent.Close()

	if a.undoMaxprocs != nil {
		a.undoMaxprocs()
		a.undoMaxprocs = nil
	}

	a.state = "idle"

	if a.done != nil {
		close(a.done)
		a.done = nil
	}

	logger.Info().Log("Complete")
}

func (a *relay) Stop() {
	a.lock.Lock()

	if a.state == "idle" {
		a.lock.Unlock()
		return
	}

	a.log.logger.main.Info().Log("Shutdown requested ...")

	cancel := a.cancel
	done := a.done

	a.lock.Unlock()

	if cancel != nil {
		cancel()
	}

	if done != nil {
		<-done
	}
}

func (a *relay) Destroy() {
	a.Stop()
	a.log.logger.main.Close()
}
