package app

import (
	"context"
	"io"

	"FlowSpectra/internal/metrics"
	"FlowSpectra/internal/source"
)

// StreamHandler consumes the records of one transport session.
type StreamHandler func(ctx context.Context, rd *source.Reader) error

// Collect runs a collecting process on the transport of the options and hands
// each connection to handle, one connection at a time, until ctx is cancelled.
// When metrics.listen_addr is configured a prometheus endpoint runs alongside.
func (e *Env) Collect(ctx context.Context, handle StreamHandler) error {
	addr, err := e.Opts.CollectorAddr()
	if err != nil {
		return err
	}
	c, err := source.Listen(e.Opts.Collect, addr, e.Log)
	if err != nil {
		return err
	}
	defer c.Close()

	if maddr := e.Config.Metrics.ListenAddr; maddr != "" {
		reg := metrics.NewRegistry()
		go func() {
			if err := metrics.Serve(ctx, maddr, reg, e.Log); err != nil {
				e.Log.WithError(err).Error("Metrics endpoint stopped")
			}
		}()
	}

	e.Log.WithField("addr", c.Addr().String()).Info("Starting TCP collector; Ctrl-C to stop")
	return c.Serve(ctx, func(ctx context.Context, conn io.Reader) error {
		rd, err := e.Reader(ctx, conn)
		if err != nil {
			return err
		}
		return handle(ctx, rd)
	})
}
