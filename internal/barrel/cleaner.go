package barrel

import (
	"strings"

	"github.com/fluxbase-eu/unbarrel/internal/clause"
	"github.com/fluxbase-eu/unbarrel/internal/lexer"
	"github.com/fluxbase-eu/unbarrel/internal/textedit"
)

// Clean strips the re-exports that exports resolves elsewhere from source.
// Everything else is left byte-identical. Imports whose bindings were only
// re-exported, and that the remaining code never mentions, are dropped too.
func Clean(source string, mod *lexer.Module, exports *ExportMap) (string, error) {
	buf := textedit.New(source)
	stripped := make(map[string]bool)

	strip := func(name string) bool {
		d, ok := exports.Get(name)
		return ok && d.Resolvable()
	}

	for _, st := range mod.Exports {
		switch st.Kind {
		case lexer.ExportClause:
			if len(st.Items) == 0 || st.Malformed {
				continue
			}
			var kept []string
			for _, item := range st.Items {
				if strip(item.Name) {
					if !st.HasFrom {
						stripped[item.Local] = true
					}
					continue
				}
				kept = append(kept, source[item.Start:item.End])
			}
			switch {
			case len(kept) == 0:
				if err := deleteStatement(buf, source, st.Start, st.End); err != nil {
					return "", err
				}
			case len(kept) < len(st.Items):
				if err := buf.Replace(st.BraceStart, st.BraceEnd, "{ "+strings.Join(kept, ", ")+" }"); err != nil {
					return "", err
				}
			}

		case lexer.ExportDefault:
			item := st.Items[0]
			if item.Local == "" || !strip("default") {
				continue
			}
			stripped[item.Local] = true
			if err := deleteStatement(buf, source, st.Start, st.End); err != nil {
				return "", err
			}

		case lexer.ExportNamespace:
			if strip(st.Items[0].Name) {
				if err := deleteStatement(buf, source, st.Start, st.End); err != nil {
					return "", err
				}
			}
		}
	}

	if len(stripped) > 0 {
		code := outsideStatements(source, mod)
		for _, imp := range mod.StaticImports() {
			if imp.SideEffect || !unconsumed(imp, stripped, code) {
				continue
			}
			if err := deleteStatement(buf, source, imp.Start, imp.End); err != nil {
				return "", err
			}
		}
	}
	return buf.String(), nil
}

// unconsumed reports whether every binding of imp was stripped and none is
// mentioned by the remaining code.
func unconsumed(imp lexer.ImportStatement, stripped map[string]bool, code string) bool {
	c := clause.Parse(imp.Clause)
	if c.Malformed {
		return false
	}
	locals := make([]string, 0, len(c.Defaults)+len(c.Named)+1)
	for _, r := range c.Requests() {
		locals = append(locals, r.Local())
	}
	if c.Namespace != "" {
		locals = append(locals, c.Namespace)
	}
	if len(locals) == 0 {
		return false
	}
	for _, local := range locals {
		if !stripped[local] || mentions(code, local) {
			return false
		}
	}
	return true
}

// mentions reports whether name occurs in code as a whole identifier.
func mentions(code, name string) bool {
	if name == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(code[from:], name)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(name)
		if (start == 0 || !identByte(code[start-1])) && (end == len(code) || !identByte(code[end])) {
			return true
		}
		from = start + 1
	}
}

func identByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// outsideStatements blanks every import and export statement span of source.
// Declaration and default export spans cover only their header, so the body
// they introduce stays visible.
func outsideStatements(source string, mod *lexer.Module) string {
	b := []byte(source)
	blank := func(start, end int) {
		for i := start; i < end; i++ {
			if b[i] != '\n' {
				b[i] = ' '
			}
		}
	}
	for _, imp := range mod.StaticImports() {
		blank(imp.Start, imp.End)
	}
	for _, st := range mod.Exports {
		blank(st.Start, st.End)
	}
	return string(b)
}

// deleteStatement removes source[start:end]. A statement alone on its line
// takes the line with it.
func deleteStatement(buf *textedit.Buffer, source string, start, end int) error {
	lineStart := start
	for lineStart > 0 && (source[lineStart-1] == ' ' || source[lineStart-1] == '\t') {
		lineStart--
	}
	if lineStart == 0 || source[lineStart-1] == '\n' {
		after := end
		for after < len(source) && (source[after] == ' ' || source[after] == '\t') {
			after++
		}
		if after < len(source) && source[after] == '\r' {
			after++
		}
		if after == len(source) || source[after] == '\n' {
			if after < len(source) {
				after++
			}
			return buf.Delete(lineStart, after)
		}
	}
	return buf.Delete(start, end)
}
