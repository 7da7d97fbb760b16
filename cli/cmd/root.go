// Package cmd provides the Cobra commands for the unbarrel CLI.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/unbarrel/cli/output"
	"github.com/fluxbase-eu/unbarrel/cli/util"
	"github.com/fluxbase-eu/unbarrel/internal/config"
	"github.com/fluxbase-eu/unbarrel/internal/engine"
	"github.com/fluxbase-eu/unbarrel/internal/observability"
	"github.com/fluxbase-eu/unbarrel/internal/targets"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	cfgFile     string
	rootDir     string
	targetFlags []string
	outputFmt   string
	noHeaders   bool
	quiet       bool
	debug       bool

	// Shared across commands
	cfg       *config.Config
	formatter *output.Formatter
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "unbarrel",
	Short: "Point imports of barrel files at the modules that define each symbol",
	Long: `unbarrel analyzes barrel (entry) files, the index modules that only
re-export other modules, and rewrites the imports of their consumers so each
symbol is imported straight from the module that defines it.

Get started:
  unbarrel analyze --target 'src/**/index.ts'    Inspect what each entry exports
  unbarrel rewrite src/app.tsx                   Print a rewritten module
  unbarrel serve                                 Serve the project with rewrites applied

Settings are read from unbarrel.yaml in the working directory (or --config) and
from UNBARREL_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silence errors only when --quiet is used
		cmd.SilenceErrors = quiet
		return initialize(cmd)
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./unbarrel.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "",
		"project root (overrides the config file)")
	rootCmd.PersistentFlags().StringSliceVarP(&targetFlags, "target", "t", nil,
		"entry file or glob, relative to the root (repeatable, added to configured targets)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false,
		"hide table headers")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"minimal output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(serveCmd)
}

// initialize loads the configuration, applies flag overrides and sets up
// logging and the formatter.
func initialize(cmd *cobra.Command) error {
	observability.ServiceVersion = Version

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if rootDir != "" {
		loaded.Root = rootDir
	}
	for _, t := range targetFlags {
		loaded.Targets = append(loaded.Targets, targetDefinition(t))
	}
	if debug {
		loaded.Debug = true
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(loaded, cmd.ErrOrStderr())

	format, err := output.ParseFormat(outputFmt)
	if err != nil {
		return err
	}
	formatter = output.NewFormatter(format, noHeaders, quiet)
	formatter.Writer = cmd.OutOrStdout()
	formatter.ErrWriter = cmd.ErrOrStderr()

	cfg = loaded
	return nil
}

// targetDefinition treats anything with glob syntax as a glob.
func targetDefinition(t string) targets.Definition {
	if strings.ContainsAny(t, "*?[{") {
		return targets.Definition{Glob: t}
	}
	return targets.Definition{Path: t}
}

// setupLogging writes human-readable logs to terminals and JSON otherwise.
func setupLogging(c *config.Config, w io.Writer) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if c.Debug {
		level = zerolog.DebugLevel
	}
	if quiet && level < zerolog.WarnLevel {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if f, ok := w.(*os.File); ok && util.IsTerminal(f) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// startEngine builds an engine over the real file system and analyzes every
// target.
func startEngine(ctx context.Context, opts ...engine.Option) (*engine.Engine, error) {
	eng, err := engine.New(cfg, afero.NewOsFs(), opts...)
	if err != nil {
		return nil, err
	}
	if err := eng.Start(ctx); err != nil {
		return nil, err
	}
	return eng, nil
}
