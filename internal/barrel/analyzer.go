package barrel

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/fluxbase-eu/unbarrel/internal/clause"
	"github.com/fluxbase-eu/unbarrel/internal/lexer"
)

// Analyzer builds the export map of an entry file.
type Analyzer struct {
	fs          afero.Fs
	lexer       Lexer
	resolver    Resolver
	diagnostics *DiagnosticsCollector
}

// NewAnalyzer creates an analyzer. A nil collector discards diagnostics.
func NewAnalyzer(fs afero.Fs, lx Lexer, resolver Resolver, diagnostics *DiagnosticsCollector) *Analyzer {
	if diagnostics == nil {
		diagnostics = NewDiagnosticsCollector(DiagnosticsOptions{})
	}
	return &Analyzer{fs: fs, lexer: lx, resolver: resolver, diagnostics: diagnostics}
}

// Analyze reads and analyzes the entry at path.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*EntryData, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AnalysisError{Entry: path, Err: err}
	}
	raw, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, &AnalysisError{Entry: path, Err: err}
	}
	return a.AnalyzeSource(path, string(raw))
}

// binding is what an import statement binds a local name to.
type binding struct {
	origin        string
	specifier     string
	originalName  string
	importDefault bool
	namespace     bool
	typeOnly      bool
	attributes    string
}

func (b binding) descriptor(local string) ExportDescriptor {
	return ExportDescriptor{
		OriginPath:    b.origin,
		Specifier:     b.specifier,
		OriginalName:  b.originalName,
		ImportDefault: b.importDefault,
		Alias:         local,
		Namespace:     b.namespace,
		TypeOnly:      b.typeOnly,
		Attributes:    b.attributes,
	}
}

// AnalyzeSource analyzes source as the contents of path.
func (a *Analyzer) AnalyzeSource(path, source string) (*EntryData, error) {
	mod, err := a.lexer.Lex(source)
	if err != nil {
		return nil, &AnalysisError{Entry: path, Err: fmt.Errorf("lex: %w", err)}
	}

	bindings := a.importBindings(path, mod)
	entry := &EntryData{
		Path:         path,
		Source:       source,
		Exports:      NewExportMap(),
		HasLocalCode: mod.HasLocalCode,
	}

	for _, st := range mod.Exports {
		switch st.Kind {
		case lexer.ExportClause:
			if st.HasFrom {
				a.aggregatedExport(entry, st)
				continue
			}
			for _, item := range st.Items {
				d := ExportDescriptor{SelfDefined: true, Alias: item.Local}
				if b, ok := bindings[item.Local]; ok {
					d = b.descriptor(item.Local)
				}
				d.TypeOnly = d.TypeOnly || item.TypeOnly
				entry.Exports.Set(item.Name, a.settle(path, d))
			}

		case lexer.ExportDefault:
			item := st.Items[0]
			d := ExportDescriptor{SelfDefined: true}
			if b, ok := bindings[item.Local]; ok && item.Local != "" {
				d = b.descriptor(item.Local)
			}
			entry.Exports.Set("default", a.settle(path, d))

		case lexer.ExportDeclaration:
			for _, item := range st.Items {
				entry.Exports.Set(item.Name, ExportDescriptor{SelfDefined: true, Alias: item.Local, TypeOnly: item.TypeOnly})
			}

		case lexer.ExportAll:
			origin, ok := a.resolver.Resolve(path, st.Specifier)
			if !ok {
				log.Debug().Str("entry", path).Str("specifier", st.Specifier).Msg("Unresolved wildcard export")
				continue
			}
			if origin != path {
				entry.Wildcard.AddDirect(origin)
			}

		case lexer.ExportNamespace:
			name := st.Items[0].Name
			d := ExportDescriptor{Namespace: true, Specifier: st.Specifier, Alias: name, TypeOnly: st.TypeOnly, Attributes: st.Attributes}
			if origin, ok := a.resolver.Resolve(path, st.Specifier); ok {
				d.OriginPath = origin
				entry.Wildcard.AddNamed(name, origin)
			}
			entry.Exports.Set(name, a.settle(path, d))
		}
	}

	a.checkDefinedWithinEntry(entry)

	updated, err := Clean(source, mod, entry.Exports)
	if err != nil {
		return nil, &AnalysisError{Entry: path, Err: fmt.Errorf("clean: %w", err)}
	}
	entry.UpdatedSource = updated

	log.Debug().
		Str("entry", path).
		Int("exports", entry.Exports.Len()).
		Int("wildcards", len(entry.Wildcard.Direct)).
		Msg("Analyzed entry")
	return entry, nil
}

// importBindings maps each local name bound by a static import to its origin.
func (a *Analyzer) importBindings(path string, mod *lexer.Module) map[string]binding {
	bindings := make(map[string]binding)
	for _, imp := range mod.StaticImports() {
		if imp.SideEffect {
			continue
		}
		origin, ok := a.resolver.Resolve(path, imp.Specifier)
		if !ok {
			log.Debug().Str("entry", path).Str("specifier", imp.Specifier).Msg("Unresolved import")
		}
		c := clause.Parse(imp.Clause)
		for _, req := range c.Requests() {
			bindings[req.Local()] = binding{
				origin:        origin,
				specifier:     imp.Specifier,
				originalName:  req.Name,
				importDefault: req.IsDefault(),
				typeOnly:      imp.TypeOnly || req.TypeOnly,
				attributes:    imp.Attributes,
			}
		}
		if c.Namespace != "" {
			bindings[c.Namespace] = binding{
				origin:     origin,
				specifier:  imp.Specifier,
				namespace:  true,
				typeOnly:   imp.TypeOnly,
				attributes: imp.Attributes,
			}
		}
	}
	return bindings
}

// aggregatedExport handles `export { a as b } from 'm'` as an import of a from
// m followed by an export of it under b.
func (a *Analyzer) aggregatedExport(entry *EntryData, st lexer.ExportStatement) {
	origin, ok := a.resolver.Resolve(entry.Path, st.Specifier)
	if !ok {
		log.Debug().Str("entry", entry.Path).Str("specifier", st.Specifier).Msg("Unresolved re-export")
	}
	for _, item := range st.Items {
		d := ExportDescriptor{
			OriginPath:    origin,
			Specifier:     st.Specifier,
			OriginalName:  item.Local,
			ImportDefault: item.Local == "default",
			Alias:         item.Name,
			TypeOnly:      item.TypeOnly,
			Attributes:    st.Attributes,
		}
		entry.Exports.Set(item.Name, a.settle(entry.Path, d))
	}
}

// settle marks descriptors pointing back at the entry as self-defined.
func (a *Analyzer) settle(path string, d ExportDescriptor) ExportDescriptor {
	if d.OriginPath == path && !d.SelfDefined {
		d.SelfDefined = true
	}
	return d
}

func (a *Analyzer) checkDefinedWithinEntry(entry *EntryData) {
	resolvable, selfDefined := false, entry.HasLocalCode
	for _, e := range entry.Exports.Entries() {
		switch {
		case e.Descriptor.Resolvable():
			resolvable = true
		case e.Descriptor.SelfDefined && !e.Descriptor.TypeOnly:
			selfDefined = true
		}
	}
	if !resolvable || !selfDefined {
		return
	}
	if !a.diagnostics.Enabled(DefinedWithinEntry) {
		return
	}
	entry.AddDiagnostic(DefinedWithinEntry)
	a.diagnostics.Report(Diagnostic{
		Kind:    DefinedWithinEntry,
		Entry:   entry.Path,
		Message: "entry defines code of its own next to re-exports; that code keeps loading the entry",
	})
}
