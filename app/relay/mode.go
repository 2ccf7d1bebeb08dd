package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datarhei/srtrelay/log"
	"github.com/datarhei/srtrelay/net"
	"github.com/datarhei/srtrelay/srt"
	"github.com/datarhei/srtrelay/udp"

	"github.com/cenkalti/backoff/v4"
)

// udpReadTimeout bounds a read from the UDP socket such that a stopped relay
// is noticed even if no datagrams arrive.
const udpReadTimeout = 500 * time.Millisecond

// reconnectInterval is the first pause before a reconnect.
var reconnectInterval = 100 * time.Millisecond

func (a *relay) broadcast() (func(ctx context.Context) error, error) {
	cfg := a.config

	limiter, err := net.NewIPLimiter(cfg.Broadcast.Access.Block, cfg.Broadcast.Access.Allow)
	if err != nil {
		return nil, fmt.Errorf("client access: %w", err)
	}

	source, err := udp.Listen(udp.ListenConfig{
		Address:     cfg.UDP.Address,
		Adapter:     cfg.UDP.Adapter,
		ReadBuffer:  cfg.UDP.ReadBuffer,
		ReadTimeout: udpReadTimeout,
		Logger:      a.log.logger.udp,
	})
	if err != nil {
		return nil, fmt.Errorf("UDP: %w", err)
	}

	a.closers = append(a.closers, func() { source.Close() })

	ln, err := a.transport.Listen(cfg.SRT.Address)
	if err != nil {
		return nil, fmt.Errorf("SRT: %w", err)
	}

	logger := a.log.logger.main.WithComponent("Broadcast")

	b := srt.NewBroadcaster(ln, srt.BroadcasterConfig{
		ClientsPerThread: cfg.Broadcast.ClientsPerThread,
		PollInterval:     cfg.PollInterval(),
		Limiter:          limiter,
		Logger:           logger,
	})

	a.closers = append(a.closers, func() { b.Close() })
	a.status.broadcaster = b

	logger.Info().WithFields(log.Fields{
		"address":            b.Addr().String(),
		"clients_per_thread": cfg.Broadcast.ClientsPerThread,
	}).Log("Accepting clients")

	return func(ctx context.Context) error {
		return b.Serve(ctx, source, cfg.Relay.ChunkSize)
	}, nil
}

func (a *relay) recv() (func(ctx context.Context) error, error) {
	cfg := a.config

	sink, err := udp.Dial(udp.DialConfig{
		Address:  cfg.UDP.Address,
		Adapter:  cfg.UDP.Adapter,
		TTL:      cfg.UDP.TTL,
		Loopback: cfg.UDP.Loopback,
		Logger:   a.log.logger.udp,
	})
	if err != nil {
		return nil, fmt.Errorf("UDP: %w", err)
	}

	a.closers = append(a.closers, func() { sink.Close() })

	logger := a.log.logger.main.WithComponent("Ingest").WithField("address", cfg.SRT.Address)
	connect := srt.DialConnector(a.transport, cfg.SRT.Address)

	return func(ctx context.Context) error {
		return supervise(ctx, cfg.Relay.Reconnect, time.Duration(cfg.Relay.ReconnectMax)*time.Second, logger, func(ctx context.Context) (bool, error) {
			ingest := srt.NewIngest(srt.IngestConfig{
				Connect:       connect,
				Sink:          sink,
				ChunkSize:     cfg.Relay.ChunkSize,
				RetryInterval: cfg.RetryInterval(),
				StatsInterval: cfg.StatsInterval(),
				OnStats:       logStatistics(logger),
				Logger:        logger,
			})
			defer ingest.Close()

			a.status.relay.set(ingest)

			logger.Info().Log("Connecting")

			err := ingest.Run(ctx)

			return ingest.Stats().Packets > 0, err
		})
	}, nil
}

func (a *relay) send() (func(ctx context.Context) error, error) {
	cfg := a.config

	source, err := udp.Listen(udp.ListenConfig{
		Address:     cfg.UDP.Address,
		Adapter:     cfg.UDP.Adapter,
		ReadBuffer:  cfg.UDP.ReadBuffer,
		ReadTimeout: udpReadTimeout,
		Logger:      a.log.logger.udp,
	})
	if err != nil {
		return nil, fmt.Errorf("UDP: %w", err)
	}

	a.closers = append(a.closers, func() { source.Close() })

	logger := a.log.logger.main.WithComponent("Egress").WithField("address", cfg.SRT.Address)
	connect := srt.ListenConnector(a.transport, cfg.SRT.Address, nil, cfg.PollInterval())

	return func(ctx context.Context) error {
		return supervise(ctx, cfg.Relay.Reconnect, time.Duration(cfg.Relay.ReconnectMax)*time.Second, logger, func(ctx context.Context) (bool, error) {
			egress := srt.NewEgress(srt.EgressConfig{
				Connect:       connect,
				Source:        source,
				ChunkSize:     cfg.Relay.ChunkSize,
				RetryInterval: cfg.RetryInterval(),
				StatsInterval: cfg.StatsInterval(),
				OnStats:       logStatistics(logger),
				Logger:        logger,
			})
			defer egress.Close()

			a.status.relay.set(egress)

			logger.Info().Log("Waiting for a client")

			err := egress.Run(ctx)

			return egress.Stats().Packets > 0, err
		})
	}, nil
}

// supervise calls run once. With reconnect, run is called again after it
// failed, with an exponentially growing pause of at most maxInterval in
// between. The pause starts over after a run that relayed any data. A
// cancelled ctx is not an error.
func supervise(ctx context.Context, reconnect bool, maxInterval time.Duration, logger log.Logger, run func(ctx context.Context) (bool, error)) error {
	if !reconnect {
		_, err := run(ctx)
		return err
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     reconnectInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         maxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	err := backoff.RetryNotify(
		func() error {
			relayed, err := run(ctx)
			if err != nil && relayed {
				b.Reset()
			}

			return err
		},
		backoff.WithContext(b, ctx),
		func(err error, d time.Duration) {
			logger.Warn().WithError(err).WithField("retry_in", d.String()).Log("Relay stopped, reconnecting")
		},
	)

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}

	return err
}

func logStatistics(logger log.Logger) func(srt.Statistics) {
	return func(s srt.Statistics) {
		logger.Info().WithFields(log.Fields{
			"bandwidth_mbps":  s.MbpsBandwidth,
			"recv_rate_mbps":  s.MbpsRecvRate,
			"send_rate_mbps":  s.MbpsSendRate,
			"rtt_ms":          s.MsRTT,
			"pkt_recv_unique": s.PktRecvUnique,
			"pkt_recv_loss":   s.PktRecvLoss,
			"pkt_retrans":     s.PktRetrans,
		}).Log("Statistics")
	}
}
