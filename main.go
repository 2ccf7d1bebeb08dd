package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/datarhei/srtrelay/app"
	"github.com/datarhei/srtrelay/app/relay"
	"github.com/datarhei/srtrelay/log"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

// options are the command line flags. Only the flags that have been given
// override the configuration.
type options struct {
	multicastAddress string
	port             int
	adapter          string
	srtAddress       string
	srtPort          int
	nonBlocking      bool
	clientsPerThread int
	passphrase       string
	latency          int
	reconnect        bool
	api              string
	metrics          bool
	quiet            bool
}

// settings returns the configuration values for the flags that have been
// set. changed reports whether a flag has been given.
func (o *options) settings(mode relay.Mode, changed func(name string) bool) map[string]string {
	set := map[string]string{}

	if changed("multicastaddress") || changed("port") {
		set["udp.address"] = net.JoinHostPort(o.multicastAddress, strconv.Itoa(o.port))
	}

	if changed("inputadapter") || changed("outputadapter") {
		set["udp.adapter"] = o.adapter
	}

	if mode == relay.ModeRecv {
		if changed("srtaddress") || changed("srtport") {
			set["srt.address"] = net.JoinHostPort(o.srtAddress, strconv.Itoa(o.srtPort))
		}
	} else if changed("srtport") {
		set["srt.address"] = ":" + strconv.Itoa(o.srtPort)
	}

	if changed("nonblockingmode") {
		set["srt.blocking"] = strconv.FormatBool(!o.nonBlocking)
	}

	if changed("clients-per-thread") {
		set["broadcast.clients_per_thread"] = strconv.Itoa(o.clientsPerThread)
	}

	if changed("passphrase") {
		set["srt.passphrase"] = o.passphrase
	}

	if changed("latency") {
		set["srt.latency_ms"] = strconv.Itoa(o.latency)
	}

	if changed("reconnect") {
		set["relay.reconnect"] = strconv.FormatBool(o.reconnect)
	}

	if changed("api") {
		set["api.enable"] = strconv.FormatBool(len(o.api) != 0)
		set["api.address"] = o.api
	}

	if changed("metrics") {
		set["metrics.enable_prometheus"] = strconv.FormatBool(o.metrics)
	}

	if o.quiet {
		set["log.level"] = "silent"
	}

	return set
}

var configfile string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           app.Name,
		Short:         "Relay MPEG-TS between SRT and UDP multicast",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configfile, "config", os.Getenv("SRTRELAY_CONFIGFILE"), "path to a JSON config file")

	root.AddCommand(
		newRelayCommand(relay.ModeBroadcast, "Broadcast UDP multicast to all connecting SRT clients", &options{}),
		newRelayCommand(relay.ModeRecv, "Receive from a SRT listener and send to UDP multicast", &options{}),
		newRelayCommand(relay.ModeSend, "Send UDP multicast to a connecting SRT client", &options{}),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), app.Info())
			},
		},
	)

	return root
}

func newRelayCommand(mode relay.Mode, short string, o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(mode),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(mode, o.settings(mode, cmd.Flags().Changed), cmd.Flags().Changed("config"))
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&o.multicastAddress, "multicastaddress", "m", "239.0.0.1", "multicast group address")
	flags.IntVarP(&o.port, "port", "p", 1234, "multicast port")

	if mode == relay.ModeRecv {
		flags.StringVarP(&o.adapter, "outputadapter", "o", "", "network adapter (name or IPv4) to send the multicast from")
		flags.StringVarP(&o.srtAddress, "srtaddress", "a", "127.0.0.1", "address of the SRT listener to connect to")
		flags.IntVarP(&o.srtPort, "srtport", "s", 9000, "port of the SRT listener to connect to")
	} else {
		flags.StringVarP(&o.adapter, "inputadapter", "i", "", "network adapter (name or IPv4) to join the multicast group on")
		flags.IntVarP(&o.srtPort, "srtport", "s", 9000, "port to listen on for SRT clients")
		flags.BoolVar(&o.nonBlocking, "nonblockingmode", true, "poll for clients and data instead of blocking")
	}

	if mode == relay.ModeBroadcast {
		flags.IntVar(&o.clientsPerThread, "clients-per-thread", 10, "number of clients served by one sender before fanning out")
	} else {
		flags.BoolVar(&o.reconnect, "reconnect", false, "start the relay again after it stopped with an error")
	}

	flags.StringVar(&o.passphrase, "passphrase", "", "SRT encryption passphrase")
	flags.IntVar(&o.latency, "latency", 120, "SRT latency in milliseconds")
	flags.StringVar(&o.api, "api", "", "listening address of the HTTP status API, e.g. :8080")
	flags.BoolVar(&o.metrics, "metrics", false, "expose prometheus metrics on the HTTP status API")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "suppress all log output")

	return cmd
}

// run starts the relay. A config file given with --config has to exist,
// one from the environment may be missing.
func run(mode relay.Mode, set map[string]string, explicitConfig bool) error {
	r, err := relay.New(relay.Options{
		Mode:               mode,
		ConfigFile:         configfile,
		ConfigFileRequired: explicitConfig,
		Set:                set,
		LogWriter:          os.Stderr,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wait for interrupt signal to gracefully shutdown the relay
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		select {
		case <-quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	err = r.Start(ctx)

	r.Destroy()

	return err
}

func main() {
	logger := log.New("App").WithOutput(log.NewConsoleWriter(os.Stderr, log.Lwarn, true))

	if err := newRootCommand().Execute(); err != nil {
		logger.Error().WithError(err).Log("")
		os.Exit(1)
	}
}
