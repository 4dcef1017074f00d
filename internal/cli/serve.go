package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ssured/drawbot/internal/config"
	"github.com/ssured/drawbot/internal/graph"
	"github.com/ssured/drawbot/internal/persist"
	"github.com/ssured/drawbot/internal/transport"
)

// peerRetryDelay is the pause before redialling a peer hub.
const peerRetryDelay = 2 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen  string
	Backend string
	DataDir string

	// ready receives the bound address once the hub accepts connections.
	// Used by tests.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a hub",
		Long: `Run a hub: accept websocket clients, persist every node they write and
replicate with the configured peer hubs.

Example:
  drawbot serve --listen :8765 --backend sqlite --data-dir ./data
  drawbot serve --config drawbot.yaml --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = opts.Listen
			}
			if cmd.Flags().Changed("backend") {
				cfg.Backend = opts.Backend
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = opts.DataDir
			}
			if err := config.Validate(cfg); err != nil {
				return WrapExitError(ExitCommandError, "invalid flags", err)
			}
			return runServe(cmd.Context(), opts, cfg, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "address to listen on (overrides config)")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "persistence backend: memory|files|sqlite|badger (overrides config)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "directory for backend data (overrides config)")

	return cmd
}

func settingsFrom(cfg config.Config) transport.Settings {
	return transport.Settings{
		PingInterval: cfg.PingInterval,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func runServe(parentCtx context.Context, opts *ServeOptions, cfg config.Config, cmd *cobra.Command) (err error) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("opening backend", "backend", cfg.Backend, "dir", cfg.DataDir)
	backend, err := openBackend(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backend", err)
	}

	clock := graph.NewWallClock("")
	g := graph.New(graph.WithClock(clock), graph.WithEpsilon(cfg.Epsilon))
	filter := graph.ExcludeRoots(cfg.FilterPrefixes...)
	adapter := persist.NewAdapter(g, backend, persist.WithFilter(filter), persist.WithEpsilon(cfg.Epsilon))
	defer func() {
		err = multierr.Combine(err, adapter.Close(), g.Close())
	}()

	id, isNew, err := adapter.UUID(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read store id", err)
	}
	clock.SetID(id)
	slog.Info("store ready", "id", id, "new", isNew)

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	peerOpts := []transport.Option{
		transport.WithFilter(filter),
		transport.WithLookback(uint64(cfg.Lookback)),
	}
	handler := transport.NewHandler(ctx, g, settingsFrom(cfg), peerOpts...)
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})
	for _, url := range cfg.Peers {
		url := url
		group.Go(func() error {
			dialPeer(gctx, g, url, settingsFrom(cfg), peerOpts...)
			return nil
		})
	}

	addr := listener.Addr().String()
	slog.Info("hub listening", "addr", addr, "peers", len(cfg.Peers))
	fmt.Fprintf(cmd.OutOrStdout(), "Hub listening on %s. Press Ctrl-C to stop.\n", addr)
	if opts.ready != nil {
		opts.ready <- addr
	}

	if err := group.Wait(); err != nil {
		return WrapExitError(ExitFailure, "hub error", err)
	}
	handler.Wait()
	slog.Info("hub stopped gracefully")
	return nil
}

// dialPeer keeps a client connection to another hub until ctx is done.
func dialPeer(ctx context.Context, g *graph.Graph, url string, settings transport.Settings, opts ...transport.Option) {
	log := slog.With("peer_url", url)
	for ctx.Err() == nil {
		conn, err := transport.Dial(ctx, url, settings)
		if err != nil {
			log.Warn("dial failed", "error", err)
		} else {
			peer := transport.NewPeer(g, conn, transport.Client, opts...)
			if err := peer.Run(ctx); err != nil {
				log.Warn("peer ended", "error", err)
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(peerRetryDelay):
		}
	}
}
