package engine

import (
	"github.com/fluxbase-eu/unbarrel/internal/barrel"
)

// EntryReport is the read-only view of a tracked entry shared by the CLI and
// the dev server.
type EntryReport struct {
	Path         string                  `json:"path" yaml:"path"`
	Depth        int                     `json:"depth" yaml:"depth"`
	Implicit     bool                    `json:"implicit" yaml:"implicit"`
	HasLocalCode bool                    `json:"has_local_code" yaml:"has_local_code"`
	Cleaned      bool                    `json:"cleaned" yaml:"cleaned"`
	Exports      []barrel.NamedExport    `json:"exports" yaml:"exports"`
	Wildcard     barrel.WildcardExports  `json:"wildcard" yaml:"wildcard"`
	Diagnostics  []barrel.DiagnosticKind `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Report builds the view of entry.
func Report(entry *barrel.EntryData) EntryReport {
	return EntryReport{
		Path:         entry.Path,
		Depth:        entry.Depth,
		Implicit:     entry.IsImplicit,
		HasLocalCode: entry.HasLocalCode,
		Cleaned:      entry.UpdatedSource != entry.Source,
		Exports:      entry.Exports.Entries(),
		Wildcard:     entry.Wildcard,
		Diagnostics:  entry.Diagnostics(),
	}
}

// Reports returns the view of every tracked entry, sorted by path.
func (e *Engine) Reports() []EntryReport {
	entries := e.registry.Entries()
	out := make([]EntryReport, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Report(entry))
	}
	return out
}
