package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/haukened/rr-fwd/internal/dns/common/clock"
	"github.com/haukened/rr-fwd/internal/dns/common/log"
	"github.com/haukened/rr-fwd/internal/dns/config"
	"github.com/haukened/rr-fwd/internal/dns/gateways/transport"
	"github.com/haukened/rr-fwd/internal/dns/gateways/upstream"
	"github.com/haukened/rr-fwd/internal/dns/gateways/wire"
	"github.com/haukened/rr-fwd/internal/dns/repos/correlation"
	"github.com/haukened/rr-fwd/internal/dns/services/forwarder"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-fwdd"

	defaultShutdownTimeout = 10 * time.Second
)

const usage = `Usage: rr-fwdd [flags]

Flags:
  --resolver host:port   upstream resolver (required, or DNS_RESOLVER)
  --port n               UDP port to listen on (default 2053)
  --log-level level      debug, info, warn or error (default info)
  --config path          YAML, JSON or TOML config file
`

// Application holds all the components of the forwarder
type Application struct {
	config    *config.AppConfig
	listener  transport.Transport
	resolver  transport.Transport
	forwarder *forwarder.Forwarder
	table     *correlation.Table[forwarder.Slot]
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(os.Stdout, usage)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n\n%s", err, usage)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info(map[string]any{
		"app":              appName,
		"version":          version,
		"env":              cfg.Env,
		"log_level":        cfg.LogLevel,
		"port":             cfg.Port,
		"resolver":         cfg.Resolver,
		"upstream_timeout": cfg.UpstreamTimeout.String(),
	}, "Starting RR-FWD server")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Failed to build application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Server failed")
	}

	log.Info(nil, "RR-FWD server stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()

	codec := wire.NewUDPCodec(logger)

	listener, err := transport.NewTransport(transport.TransportUDP, transport.ModeListen, cfg.ListenAddress(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create client transport: %w", err)
	}
	resolverConn, err := transport.NewTransport(transport.TransportUDP, transport.ModeDial, cfg.Resolver, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver transport: %w", err)
	}

	upstreamClient, err := upstream.NewClient(upstream.Options{
		Sender:           resolverConn,
		Codec:            codec,
		RecursionDesired: cfg.ForwardRecursionDesired,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	table, err := correlation.New[forwarder.Slot](cfg.RetiredCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create correlation table: %w", err)
	}

	fwd, err := forwarder.New(forwarder.Options{
		Codec:         codec,
		Upstream:      upstreamClient,
		Client:        listener,
		Table:         table,
		Timeout:       cfg.UpstreamTimeout,
		SweepInterval: cfg.SweepInterval,
		QueueSize:     cfg.QueueSize,
		Clock:         clock.RealClock{},
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create forwarder: %w", err)
	}

	log.Info(map[string]any{
		"resolver":          cfg.Resolver,
		"timeout":           cfg.UpstreamTimeout.String(),
		"recursion_desired": cfg.ForwardRecursionDesired,
		"retired_ids":       cfg.RetiredCacheSize,
	}, "Upstream resolver configured")

	return &Application{
		config:    cfg,
		listener:  listener,
		resolver:  resolverConn,
		forwarder: fwd,
		table:     table,
	}, nil
}

// Run starts both endpoints and the forwarder and blocks until ctx is
// cancelled. The resolver side starts first so no query is accepted before
// its replies can be received.
func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	replies := transport.SinkFunc(func(d transport.Datagram) {
		app.forwarder.EnqueueReply(d.Data)
	})
	if err := app.resolver.Start(ctx, replies); err != nil {
		return fmt.Errorf("failed to start resolver transport: %w", err)
	}

	queries := transport.SinkFunc(func(d transport.Datagram) {
		app.forwarder.EnqueueQuery(d.Data, d.Addr)
	})
	if err := app.listener.Start(ctx, queries); err != nil {
		return multierr.Append(
			fmt.Errorf("failed to start client transport: %w", err),
			app.resolver.Stop(),
		)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.forwarder.Run(ctx)
	}()

	log.Info(map[string]any{
		"address":   app.listener.Address(),
		"resolver":  app.resolver.Address(),
		"transport": string(transport.TransportUDP),
	}, "DNS forwarder started")

	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	err := multierr.Combine(app.listener.Stop(), app.resolver.Stop())
	if err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "Error during transport shutdown")
	}

	select {
	case <-done:
	case <-time.After(defaultShutdownTimeout):
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout.String()}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}

	retired, evictions := app.table.Stats()
	fields := app.forwarder.Stats().Fields()
	fields["pending"] = app.forwarder.Pending()
	fields["retired_ids"] = retired
	fields["retired_evictions"] = evictions
	log.Info(fields, "Graceful shutdown completed")
	return nil
}
