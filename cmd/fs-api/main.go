// Command fs-api serves flow tables stored in ClickHouse over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"FlowSpectra/internal/app"
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/logging"
	"FlowSpectra/internal/metrics"
	"FlowSpectra/internal/query"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		app.Exit(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("fs-api", flag.ContinueOnError)
	var opts config.Options
	fs.StringVar(&opts.ConfigPath, "config", "configs/config.yaml", "YAML configuration file")
	listen := fs.String("listen", "", "listen address (default api.listen_addr)")
	grpcListen := fs.String("grpc-listen", "", "gRPC health listen address (default api.grpc_listen_addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// 1. Load configuration
	cfg, err := opts.Resolve()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.API.ListenAddr = *listen
	}
	if *grpcListen != "" {
		cfg.API.GRPCListenAddr = *grpcListen
	}

	// 2. Initialize querier with the API config, or the first enabled ClickHouse writer
	chCfg := cfg.API.ClickHouse
	for _, def := range cfg.Exporter.Writers {
		if def.Enabled && def.Type == "clickhouse" {
			chCfg = def.ClickHouse
			break
		}
	}
	querier, err := query.NewClickHouseQuerier(chCfg)
	if err != nil {
		return err
	}
	defer querier.Close()

	// 3. Initialize router
	r := newRouter(&APIHandler{querier: querier, log: log}, metrics.NewRegistry())

	ctx, stop := app.SignalContext()
	defer stop()
	errc := make(chan error, 2)

	// 4. Start gRPC health server
	if cfg.API.GRPCListenAddr != "" {
		th := newTableHealth(querier, log)
		if err := th.refresh(ctx); err != nil {
			log.WithError(err).Warn("Failed to list stored tables")
		}
		go th.run(ctx, healthRefresh)

		lis, err := net.Listen("tcp", cfg.API.GRPCListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.API.GRPCListenAddr, err)
		}
		grpcServer := newGRPCServer(th)
		defer grpcServer.GracefulStop()
		go func() {
			log.WithField("addr", lis.Addr().String()).Info("gRPC health server starting")
			if err := grpcServer.Serve(lis); err != nil {
				errc <- fmt.Errorf("failed to serve gRPC: %w", err)
			}
		}()
	}

	// 5. Start HTTP server
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: r,
	}
	go func() {
		log.WithField("addr", server.Addr).Info("API server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// 6. Graceful shutdown
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("API server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("API server exited")
	return nil
}
