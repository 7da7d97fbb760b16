package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/unbarrel/cli/output"
	"github.com/fluxbase-eu/unbarrel/cli/util"
	"github.com/fluxbase-eu/unbarrel/internal/barrel"
	"github.com/fluxbase-eu/unbarrel/internal/engine"
)

var (
	analyzeExports bool
	analyzeStrict  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the configured entries and show what they export",
	Long: `Analyze every configured entry and print its export map: for each name,
the module that really defines it. Diagnostics explain why some names cannot
be rewritten.`,
	Example: `  # Summary of every entry
  unbarrel analyze --target 'src/**/index.ts'

  # Every export and where it comes from
  unbarrel analyze --exports

  # Machine-readable output, failing when diagnostics were reported
  unbarrel analyze -o json --strict`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeExports, "exports", false, "list every export instead of one row per entry")
	analyzeCmd.Flags().BoolVar(&analyzeStrict, "strict", false, "exit with an error when diagnostics were reported")
}

// analysisReport is the structured form of the analyze output.
type analysisReport struct {
	Root        string               `json:"root" yaml:"root"`
	Entries     []engine.EntryReport `json:"entries" yaml:"entries"`
	Diagnostics []barrel.Diagnostic  `json:"diagnostics" yaml:"diagnostics"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	eng, err := startEngine(cmd.Context())
	if err != nil {
		return err
	}

	report := analysisReport{
		Root:        eng.Root(),
		Entries:     eng.Reports(),
		Diagnostics: eng.Diagnostics(),
	}

	if formatter.Structured() {
		if err := formatter.Print(report); err != nil {
			return err
		}
	} else {
		if err := printAnalysisTable(report); err != nil {
			return err
		}
	}

	if analyzeStrict && len(report.Diagnostics) > 0 {
		return fmt.Errorf("%d diagnostic(s) reported", len(report.Diagnostics))
	}
	return nil
}

func printAnalysisTable(report analysisReport) error {
	if len(report.Entries) == 0 {
		formatter.PrintInfo("No entries configured. Add targets to unbarrel.yaml or pass --target.")
		return nil
	}

	var data output.TableData
	if analyzeExports {
		data = exportsTable(report)
	} else {
		data = entriesTable(report)
	}
	if err := formatter.PrintTable(data); err != nil {
		return err
	}

	for _, d := range report.Diagnostics {
		formatter.PrintWarning(fmt.Sprintf("%s: %s", util.RelPath(report.Root, d.Entry), d.Message))
	}
	return nil
}

func entriesTable(report analysisReport) output.TableData {
	data := output.TableData{
		Headers: []string{"ENTRY", "EXPORTS", "WILDCARDS", "DEPTH", "IMPLICIT", "CLEANED", "DIAGNOSTICS"},
	}
	for _, e := range report.Entries {
		kinds := make([]string, 0, len(e.Diagnostics))
		for _, k := range e.Diagnostics {
			kinds = append(kinds, k.String())
		}
		data.Rows = append(data.Rows, []string{
			util.RelPath(report.Root, e.Path),
			strconv.Itoa(len(e.Exports)),
			strconv.Itoa(len(e.Wildcard.Direct) + len(e.Wildcard.Named)),
			strconv.Itoa(e.Depth),
			strconv.FormatBool(e.Implicit),
			strconv.FormatBool(e.Cleaned),
			util.JoinOrDash(kinds, ","),
		})
	}
	return data
}

func exportsTable(report analysisReport) output.TableData {
	data := output.TableData{
		Headers: []string{"ENTRY", "NAME", "ORIGIN", "IMPORTS", "KIND"},
	}
	for _, e := range report.Entries {
		entry := util.RelPath(report.Root, e.Path)
		for _, ex := range e.Exports {
			d := ex.Descriptor
			origin := "-"
			if d.OriginPath != "" {
				origin = util.RelPath(report.Root, d.OriginPath)
			}
			imported := d.ImportedName()
			if d.Namespace || imported == "" {
				imported = "*"
			}
			data.Rows = append(data.Rows, []string{entry, ex.Name, origin, imported, exportKind(d)})
		}
	}
	return data
}

func exportKind(d barrel.ExportDescriptor) string {
	switch {
	case d.SelfDefined:
		return "local"
	case d.TypeOnly:
		return "type"
	case d.Namespace:
		return "namespace"
	case d.OriginPath == "":
		return "unresolved"
	case d.ImportDefault:
		return "default"
	default:
		return "named"
	}
}
