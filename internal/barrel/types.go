// Package barrel analyzes barrel (entry) files and rewrites the imports of
// their consumers to point straight at the modules that define each symbol.
package barrel

import (
	"sort"
	"sync"

	"github.com/fluxbase-eu/unbarrel/internal/lexer"
)

// Lexer finds the import and export statements of a module.
type Lexer interface {
	Lex(source string) (*lexer.Module, error)
}

// Resolver turns a specifier imported from fromFile into a canonical path.
type Resolver interface {
	Resolve(fromFile, specifier string) (string, bool)
}

// ExportDescriptor says where an exported name really comes from.
type ExportDescriptor struct {
	// OriginPath is the module that defines the symbol. Empty when the
	// specifier could not be resolved.
	OriginPath string `json:"origin_path,omitempty" yaml:"origin_path,omitempty"`
	// Specifier is the specifier the entry used to reach OriginPath.
	Specifier string `json:"specifier,omitempty" yaml:"specifier,omitempty"`
	// OriginalName is the name exported by OriginPath.
	OriginalName string `json:"original_name,omitempty" yaml:"original_name,omitempty"`
	// ImportDefault marks a symbol bound to the origin's default export.
	ImportDefault bool `json:"import_default,omitempty" yaml:"import_default,omitempty"`
	// Alias is the binding name inside the entry.
	Alias string `json:"alias,omitempty" yaml:"alias,omitempty"`
	// SelfDefined marks code written in the entry itself.
	SelfDefined bool `json:"self_defined,omitempty" yaml:"self_defined,omitempty"`
	// Namespace marks a whole-module binding (`* as N`).
	Namespace bool `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	TypeOnly  bool `json:"type_only,omitempty" yaml:"type_only,omitempty"`
	// Attributes is the import attributes clause the origin must be
	// imported with, such as `with { type: 'json' }`.
	Attributes string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Resolvable reports whether importers may be pointed at OriginPath directly.
func (d ExportDescriptor) Resolvable() bool {
	return !d.SelfDefined && !d.TypeOnly && d.OriginPath != ""
}

// ImportedName is the name to request from OriginPath.
func (d ExportDescriptor) ImportedName() string {
	if d.ImportDefault {
		return "default"
	}
	return d.OriginalName
}

// NamedExport pairs an export name with its descriptor.
type NamedExport struct {
	Name       string           `json:"name" yaml:"name"`
	Descriptor ExportDescriptor `json:"descriptor" yaml:"descriptor"`
}

// ExportMap is an insertion-ordered map of export names.
type ExportMap struct {
	keys []string
	m    map[string]ExportDescriptor
}

// NewExportMap creates an empty map.
func NewExportMap() *ExportMap {
	return &ExportMap{m: make(map[string]ExportDescriptor)}
}

// Set stores d under name. A name set twice keeps its first position.
func (m *ExportMap) Set(name string, d ExportDescriptor) {
	if _, ok := m.m[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.m[name] = d
}

// Get returns the descriptor for name.
func (m *ExportMap) Get(name string) (ExportDescriptor, bool) {
	d, ok := m.m[name]
	return d, ok
}

// Keys returns the names in insertion order.
func (m *ExportMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of names.
func (m *ExportMap) Len() int {
	return len(m.keys)
}

// Entries returns the map as an ordered slice.
func (m *ExportMap) Entries() []NamedExport {
	out := make([]NamedExport, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, NamedExport{Name: k, Descriptor: m.m[k]})
	}
	return out
}

// WildcardExports records `export * as N from M` (Named) and `export * from M`
// (Direct) for lazy expansion.
type WildcardExports struct {
	Named  map[string]string `json:"named,omitempty" yaml:"named,omitempty"`
	Direct []string          `json:"direct,omitempty" yaml:"direct,omitempty"`
}

// AddDirect appends path unless it is already present.
func (w *WildcardExports) AddDirect(path string) {
	for _, p := range w.Direct {
		if p == path {
			return
		}
	}
	w.Direct = append(w.Direct, path)
}

// AddNamed records `export * as name from path`.
func (w *WildcardExports) AddNamed(name, path string) {
	if w.Named == nil {
		w.Named = make(map[string]string)
	}
	w.Named[name] = path
}

// EntryData is the analysis result for one entry.
type EntryData struct {
	Path          string
	Source        string
	UpdatedSource string
	Exports       *ExportMap
	Wildcard      WildcardExports
	// Depth is the wildcard level the entry was first registered at.
	Depth      int
	IsImplicit bool
	// HasLocalCode reports code besides imports and re-exports.
	HasLocalCode bool

	mu          sync.Mutex
	diagnostics map[DiagnosticKind]struct{}
}

// AddDiagnostic marks kind as reported for this entry. It returns false if it
// already was.
func (e *EntryData) AddDiagnostic(kind DiagnosticKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.diagnostics == nil {
		e.diagnostics = make(map[DiagnosticKind]struct{})
	}
	if _, ok := e.diagnostics[kind]; ok {
		return false
	}
	e.diagnostics[kind] = struct{}{}
	return true
}

// Diagnostics returns the kinds reported for this entry.
func (e *EntryData) Diagnostics() []DiagnosticKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]DiagnosticKind, 0, len(e.diagnostics))
	for k := range e.diagnostics {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Served returns the source to hand to the host. Implicit entries and raw
// requests get the original text.
func (e *EntryData) Served(raw bool) string {
	if raw || e.IsImplicit {
		return e.Source
	}
	return e.UpdatedSource
}
