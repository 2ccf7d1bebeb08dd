// Package config implements the configuration for the relay.
package config

import (
	"time"

	"github.com/datarhei/srtrelay/config/value"
	"github.com/datarhei/srtrelay/config/vars"

	haikunator "github.com/atrox/haikunatorgo/v2"
	"github.com/google/uuid"
)

const version int64 = 1

// Data is the actual configuration data
type Data struct {
	CreatedAt time.Time `json:"created_at"`
	LoadedAt  time.Time `json:"-"`
	Version   int64     `json:"version"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Log       struct {
		Level    string `json:"level" enums:"debug,info,warn,error,silent"`
		Format   string `json:"format" enums:"console,json"`
		MaxLines int    `json:"max_lines"`
	} `json:"log"`
	SRT struct {
		Address    string `json:"address"`
		Passphrase string `json:"passphrase"`
		Token      string `json:"token"`
		StreamID   string `json:"streamid"`
		Latency    int    `json:"latency_ms"`
		Blocking   bool   `json:"blocking"`
		Log        struct {
			Enable bool     `json:"enable"`
			Topics []string `json:"topics"`
		} `json:"log"`
	} `json:"srt"`
	UDP struct {
		Address    string `json:"address"`
		Adapter    string `json:"adapter"`
		TTL        int    `json:"ttl"`
		ReadBuffer int    `json:"read_buffer_bytes"`
		Loopback   bool   `json:"loopback"`
	} `json:"udp"`
	Broadcast struct {
		ClientsPerThread int `json:"clients_per_thread"`
		PollInterval     int `json:"poll_interval_ms"`
		Access           struct {
			Allow []string `json:"allow"`
			Block []string `json:"block"`
		} `json:"access"`
	} `json:"broadcast"`
	Relay struct {
		ChunkSize     int  `json:"chunk_size"`
		RetryInterval int  `json:"retry_interval_ms"`
		StatsInterval int  `json:"stats_interval_sec"`
		Reconnect     bool `json:"reconnect"`
		ReconnectMax  int  `json:"reconnect_max_sec"`
	} `json:"relay"`
	API struct {
		Enable  bool   `json:"enable"`
		Address string `json:"address"`
	} `json:"api"`
	Metrics struct {
		EnablePrometheus bool `json:"enable_prometheus"`
	} `json:"metrics"`
	Debug struct {
		Agent        bool   `json:"agent"`
		AgentAddress string `json:"agent_address"`
	} `json:"debug"`
}

// Config is a wrapper for Data
type Config struct {
	vars vars.Variables

	Data
}

// New returns a Config which is initialized with its default values
func New() *Config {
	cfg := &Config{}

	cfg.init()

	return cfg
}

func (d *Config) init() {
	d.vars.EnvPrefix = "SRTRELAY"

	d.vars.Register(value.NewInt64(&d.Version, version), "version", "Configuration file layout version", vars.NoEnv(), vars.Required())
	d.vars.Register(value.NewTime(&d.CreatedAt, time.Now()), "created_at", "Configuration file creation time", vars.NoEnv())
	d.vars.Register(value.NewString(&d.ID, uuid.New().String()), "id", "ID for this instance", vars.Required())
	d.vars.Register(value.NewString(&d.Name, haikunator.New().Haikunate()), "name", "A human readable name for this instance")

	// Log
	d.vars.Register(value.NewEnum(&d.Log.Level, "info", []string{"silent", "error", "warn", "info", "debug"}), "log.level", "Loglevel: silent, error, warn, info, debug")
	d.vars.Register(value.NewEnum(&d.Log.Format, "console", []string{"console", "json"}), "log.format", "Log format: console, json")
	d.vars.Register(value.NewInt(&d.Log.MaxLines, 1000), "log.max_lines", "Number of latest log lines to keep in memory")

	// SRT
	d.vars.Register(value.NewAddress(&d.SRT.Address, ":9000"), "srt.address", "SRT address to listen on or to connect to", vars.Required())
	d.vars.Register(value.NewString(&d.SRT.Passphrase, ""), "srt.passphrase", "SRT encryption passphrase", vars.Disguise())
	d.vars.Register(value.NewString(&d.SRT.Token, ""), "srt.token", "Token required in the streamid of connecting clients", vars.Disguise())
	d.vars.Register(value.NewString(&d.SRT.StreamID, ""), "srt.streamid", "Streamid to send when connecting to a remote listener")
	d.vars.Register(value.NewIntRange(&d.SRT.Latency, 120, 0, 10000), "srt.latency_ms", "SRT latency in milliseconds")
	d.vars.Register(value.NewBool(&d.SRT.Blocking, false), "srt.blocking", "Use blocking accept and receive instead of polling")
	d.vars.Register(value.NewBool(&d.SRT.Log.Enable, false), "srt.log.enable", "Enable SRT protocol logging")
	d.vars.Register(value.NewStringList(&d.SRT.Log.Topics, []string{"connection", "handshake"}, ","), "srt.log.topics", "List of SRT topics to log")

	// UDP
	d.vars.Register(value.NewMulticastAddress(&d.UDP.Address, "239.0.0.1:1234"), "udp.address", "Multicast group and port", vars.Required())
	d.vars.Register(value.NewAdapter(&d.UDP.Adapter, ""), "udp.adapter", "Network adapter (name or IPv4) for multicast, empty for the default")
	d.vars.Register(value.NewIntRange(&d.UDP.TTL, 1, 1, 255), "udp.ttl", "Multicast TTL for sending")
	d.vars.Register(value.NewIntRange(&d.UDP.ReadBuffer, 1500*3000, 0, 1<<30), "udp.read_buffer_bytes", "Socket receive buffer size")
	d.vars.Register(value.NewBool(&d.UDP.Loopback, false), "udp.loopback", "Deliver sent multicast packets to the local host")

	// Broadcast
	d.vars.Register(value.NewIntRange(&d.Broadcast.ClientsPerThread, 10, 1, 10000), "broadcast.clients_per_thread", "Max. number of clients served by one sender before fanning out")
	d.vars.Register(value.NewIntRange(&d.Broadcast.PollInterval, 500, 1, 60000), "broadcast.poll_interval_ms", "Pause between polls for new clients")
	d.vars.Register(value.NewCIDRList(&d.Broadcast.Access.Allow, []string{}, ","), "broadcast.access.allow", "List of allowed client IPs in CIDR notation")
	d.vars.Register(value.NewCIDRList(&d.Broadcast.Access.Block, []string{}, ","), "broadcast.access.block", "List of blocked client IPs in CIDR notation")

	// Relay
	d.vars.Register(value.NewIntRange(&d.Relay.ChunkSize, 1328, 188, 65536), "relay.chunk_size", "Max. number of bytes per received packet")
	d.vars.Register(value.NewIntRange(&d.Relay.RetryInterval, 10, 1, 10000), "relay.retry_interval_ms", "Pause before retrying a receive without data")
	d.vars.Register(value.NewIntRange(&d.Relay.StatsInterval, 5, 1, 3600), "relay.stats_interval_sec", "Interval for sampling connection statistics")
	d.vars.Register(value.NewBool(&d.Relay.Reconnect, false), "relay.reconnect", "Start the relay again after it stopped with an error")
	d.vars.Register(value.NewIntRange(&d.Relay.ReconnectMax, 30, 1, 3600), "relay.reconnect_max_sec", "Max. pause between two reconnects")

	// API
	d.vars.Register(value.NewBool(&d.API.Enable, false), "api.enable", "Enable the HTTP status API")
	d.vars.Register(value.NewAddress(&d.API.Address, ":8080"), "api.address", "HTTP listening address")

	// Metrics
	d.vars.Register(value.NewBool(&d.Metrics.EnablePrometheus, false), "metrics.enable_prometheus", "Enable prometheus endpoint /metrics")

	// Debug
	d.vars.Register(value.NewBool(&d.Debug.Agent, false), "debug.agent", "Start a gops diagnostics agent")
	d.vars.Register(value.NewAddress(&d.Debug.AgentAddress, ""), "debug.agent_address", "Listening address of the gops agent, empty for any free port")
}

// Merge merges the values of the known environment variables into the configuration
func (d *Config) Merge() {
	d.vars.Merge()
}

// Set sets a value by its name, e.g. "srt.address".
func (d *Config) Set(name, val string) error {
	return d.vars.Set(name, val)
}

// Validate validates the current state of the Config for completeness and sanity. Errors are
// written to the log. Use resetLogs to indicate to reset the logs prior validation.
func (d *Config) Validate(resetLogs bool) {
	if resetLogs {
		d.vars.ResetLogs()
	}

	if d.Version != version {
		d.vars.Log("error", "version", "unknown configuration layout version (found version %d, expecting version %d)", d.Version, version)

		return
	}

	d.vars.Validate()

	// Individual sanity checks

	if d.API.Enable && len(d.API.Address) == 0 {
		d.vars.Log("error", "api.address", "the API is enabled, but no address is given")
	}

	if d.Metrics.EnablePrometheus && !d.API.Enable {
		d.vars.Log("error", "metrics.enable_prometheus", "the prometheus endpoint requires the API to be enabled")
	}

	if n := len(d.SRT.Passphrase); n != 0 && (n < 10 || n > 79) {
		d.vars.Log("error", "srt.passphrase", "the passphrase must be between 10 and 79 characters long")
	}
}

// Messages calls for each log entry the provided callback. The level has the values 'error', 'warn', or 'info'.
// The name is the name of the configuration value, e.g. 'srt.address'
func (d *Config) Messages(logger func(level string, v vars.Variable, message string)) {
	d.vars.Messages(logger)
}

// HasErrors returns whether there are some error messages in the log.
func (d *Config) HasErrors() bool {
	return d.vars.HasErrors()
}

// Overrides returns a list of configuration value names that have been overriden by an environment variable.
func (d *Config) Overrides() []string {
	return d.vars.Overrides()
}

// Variables returns all configuration values with their description.
func (d *Config) Variables() []vars.Variable {
	return d.vars.List()
}

// PollInterval returns broadcast.poll_interval_ms as a duration.
func (d *Config) PollInterval() time.Duration {
	return time.Duration(d.Broadcast.PollInterval) * time.Millisecond
}

// RetryInterval returns relay.retry_interval_ms as a duration.
func (d *Config) RetryInterval() time.Duration {
	return time.Duration(d.Relay.RetryInterval) * time.Millisecond
}

// StatsInterval returns relay.stats_interval_sec as a duration.
func (d *Config) StatsInterval() time.Duration {
	return time.Duration(d.Relay.StatsInterval) * time.Second
}
