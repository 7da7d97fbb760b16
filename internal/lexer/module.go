// Package lexer finds the top-level import and export statements of an ES
// module together with their byte spans.
//
// It is not a parser: it skips comments, strings, template literals and regular
// expressions well enough to know which `import`/`export` keywords start a
// statement at the top level, and reads those statements precisely. Everything
// else is treated as opaque code.
package lexer

import "fmt"

// ExportKind classifies an export statement.
type ExportKind int

const (
	// ExportClause is `export { ... }`, with or without `from`.
	ExportClause ExportKind = iota
	// ExportDeclaration is `export const|let|var|function|class|...`.
	ExportDeclaration
	// ExportDefault is `export default ...`.
	ExportDefault
	// ExportAll is `export * from '...'`.
	ExportAll
	// ExportNamespace is `export * as N from '...'`.
	ExportNamespace
)

func (k ExportKind) String() string {
	switch k {
	case ExportClause:
		return "clause"
	case ExportDeclaration:
		return "declaration"
	case ExportDefault:
		return "default"
	case ExportAll:
		return "all"
	case ExportNamespace:
		return "namespace"
	}
	return fmt.Sprintf("ExportKind(%d)", int(k))
}

// ImportStatement is a static import or a dynamic import() call.
type ImportStatement struct {
	// Specifier is the module specifier without quotes. Empty for dynamic
	// imports whose argument is not a string literal.
	Specifier string
	// Clause is the binding list between `import` and `from`.
	Clause      string
	ClauseStart int
	// Start is the offset of the `import` keyword; End is just past the
	// statement terminator when there is one.
	Start int
	End   int
	// SpecStart and SpecEnd delimit the specifier text inside its quotes.
	SpecStart int
	SpecEnd   int
	// Attributes is the import attributes clause as written, for example
	// `with { type: 'json' }`.
	Attributes string

	TypeOnly   bool
	SideEffect bool
	Dynamic    bool
}

// ExportItem is one exported name with the span of its clause item.
type ExportItem struct {
	// Name is the name visible to importers.
	Name string
	// Local is the binding the name refers to: the local name for plain
	// clauses, the source module's name for `from` clauses, "*" for
	// namespace re-exports, and the identifier of `export default Ident`.
	Local    string
	Start    int
	End      int
	TypeOnly bool
}

// ExportStatement is a top-level export.
//
// For declarations and default exports of anything but a bare identifier, End
// covers the statement header only; the rest is ordinary code.
type ExportStatement struct {
	Kind        ExportKind
	Clause      string
	ClauseStart int
	Specifier   string
	SpecStart   int
	SpecEnd     int
	HasFrom     bool
	TypeOnly    bool
	// Attributes is the `with { ... }` clause of a re-export.
	Attributes string
	// Malformed marks a clause with items the lexer could not read.
	Malformed bool
	Start     int
	End       int
	// BraceStart is the offset of `{` and BraceEnd is just past `}` for
	// clause exports.
	BraceStart int
	BraceEnd   int
	Items      []ExportItem
}

// Names returns the exported names in source order.
func (s ExportStatement) Names() []string {
	out := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, it.Name)
	}
	return out
}

// Module is the lexed view of one source file.
type Module struct {
	Imports []ImportStatement
	Exports []ExportStatement
	// HasLocalCode reports whether the module contains anything besides
	// import statements and re-export statements.
	HasLocalCode bool
}

// StaticImports returns the imports that are statements rather than calls.
func (m *Module) StaticImports() []ImportStatement {
	out := make([]ImportStatement, 0, len(m.Imports))
	for _, imp := range m.Imports {
		if !imp.Dynamic {
			out = append(out, imp)
		}
	}
	return out
}

// SyntaxError reports source the lexer could not make sense of.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Msg)
}
