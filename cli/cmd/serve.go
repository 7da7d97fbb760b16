package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fluxbase-eu/unbarrel/internal/devserver"
	"github.com/fluxbase-eu/unbarrel/internal/engine"
	"github.com/fluxbase-eu/unbarrel/internal/observability"
	"github.com/fluxbase-eu/unbarrel/internal/pubsub"
)

var (
	serveAddress   string
	serveTranspile bool
	serveNoWatch   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the project with barrel imports rewritten",
	Long: `Start a development server that serves project files with consumer imports
rewritten and entries cleaned. Entries are re-analyzed when their files change.

Endpoints:
  /__unbarrel/entries      tracked entries and their export maps
  /__unbarrel/diagnostics  collected diagnostics
  /__unbarrel/events       websocket stream of optimizer events
  /metrics                 Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "listen address (overrides server.address)")
	serveCmd.Flags().BoolVar(&serveTranspile, "transpile", false, "compile TypeScript and JSX before serving")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "do not watch the project for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddress != "" {
		cfg.Server.Address = serveAddress
	}
	if serveTranspile {
		cfg.Server.Transpile = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := observability.NewTracer(ctx, cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize OpenTelemetry tracer, tracing will be disabled")
	}
	defer func() {
		if tracer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to shutdown OpenTelemetry tracer")
		}
	}()

	events, err := pubsub.NewPubSub(ctx, cfg.Events)
	if err != nil {
		return err
	}
	defer events.Close()

	metrics := observability.NewMetrics()
	fsys := afero.NewOsFs()

	eng, err := engine.New(cfg, fsys,
		engine.WithEvents(events, cfg.Events.Channel),
		engine.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}

	srv, err := devserver.New(cfg, eng, fsys,
		devserver.WithMetrics(metrics),
		devserver.WithEvents(events, cfg.Events.Channel),
	)
	if err != nil {
		return err
	}

	var watcher *devserver.Watcher
	if !serveNoWatch {
		watcher, err = devserver.NewWatcher(eng.Root(), eng, func(string) { srv.Purge() })
		if err != nil {
			return fmt.Errorf("watch %s: %w", eng.Root(), err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	log.Info().
		Str("address", cfg.Server.Address).
		Str("root", eng.Root()).
		Str("version", Version).
		Bool("transpile", cfg.Server.Transpile).
		Str("events", cfg.Events.Backend).
		Msg("Dev server started")

	return g.Wait()
}
