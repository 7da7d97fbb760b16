package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rewriteRaw bool

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <file>",
	Short: "Print a module with its barrel imports rewritten",
	Long: `Analyze the configured entries, then print <file> the way the dev server
would serve it: consumers with their imports pointed at the defining modules,
entries with their forwarded re-exports stripped. A file that needs no
rewriting is printed unchanged.`,
	Example: `  unbarrel rewrite src/App.tsx --target src/components/index.ts
  unbarrel rewrite src/components/index.ts --raw`,
	Args: cobra.ExactArgs(1),
	RunE: runRewrite,
}

func init() {
	rewriteCmd.Flags().BoolVar(&rewriteRaw, "raw", false, "print entries as written instead of cleaned")
}

func runRewrite(cmd *cobra.Command, args []string) error {
	p, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	eng, err := startEngine(cmd.Context())
	if err != nil {
		return err
	}

	source, isEntry := eng.Load(p, rewriteRaw)
	if !isEntry {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		source = string(data)
	}

	out := source
	if !rewriteRaw {
		rewritten, changed, err := eng.Transform(cmd.Context(), p, source)
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Failed to rewrite module, printing it unchanged")
		}
		log.Debug().Str("path", p).Bool("entry", isEntry).Bool("changed", changed).Msg("Module rewritten")
		out = rewritten
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}
