package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/metrics"
)

// Handler consumes one exporter connection to completion.
type Handler func(ctx context.Context, conn io.Reader) error

// Collector is an IPFIX-over-TCP collecting process. Connections are handled
// one at a time: the next one is accepted only after the handler returns.
type Collector struct {
	listener net.Listener
	log      logrus.FieldLogger
}

// Listen binds a collector to addr. Only the "tcp" network is supported.
func Listen(network, addr string, log logrus.FieldLogger) (*Collector, error) {
	if network != "tcp" {
		return nil, fmt.Errorf("unsupported collector network %q", network)
	}
	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Collector{listener: l, log: log}, nil
}

// Addr returns the bound address.
func (c *Collector) Addr() net.Addr {
	return c.listener.Addr()
}

// Close stops accepting connections.
func (c *Collector) Close() error {
	return c.listener.Close()
}

// Serve accepts connections until ctx is cancelled or the listener is closed.
// A handler error is logged and does not stop the collector.
func (c *Collector) Serve(ctx context.Context, handle Handler) error {
	stop := context.AfterFunc(ctx, func() { c.listener.Close() })
	defer stop()

	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		metrics.ConnectionsAccepted.Inc()

		log := c.log.WithField("remote", conn.RemoteAddr().String())
		log.Info("Connection accepted")
		c.handle(ctx, conn, handle, log)
	}
}

func (c *Collector) handle(ctx context.Context, conn net.Conn, handle Handler, log logrus.FieldLogger) {
	defer conn.Close()
	// unblock a pending read on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := handle(ctx, conn); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		log.WithError(err).Error("Failed to process connection")
		return
	}
	log.Info("Connection closed")
}
