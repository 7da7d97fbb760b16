package barrel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fluxbase-eu/unbarrel/internal/clause"
	"github.com/fluxbase-eu/unbarrel/internal/lexer"
	"github.com/fluxbase-eu/unbarrel/internal/textedit"
)

// Rewriter points consumer imports of tracked entries at the modules that
// define the imported names.
type Rewriter struct {
	lexer    Lexer
	resolver Resolver
	registry *Registry
}

// NewRewriter creates a rewriter over registry.
func NewRewriter(lx Lexer, resolver Resolver, registry *Registry) *Rewriter {
	return &Rewriter{lexer: lx, resolver: resolver, registry: registry}
}

// importGroup collects the items of one replacement statement.
type importGroup struct {
	specifier  string
	attributes string
	namespace  string
	items      []string
}

func (g *importGroup) statement() string {
	from := "'" + g.specifier + "'"
	if g.attributes != "" {
		from += " " + g.attributes
	}
	if g.namespace != "" {
		return fmt.Sprintf("import * as %s from %s;", g.namespace, from)
	}
	return fmt.Sprintf("import { %s } from %s;", strings.Join(g.items, ", "), from)
}

// plan is the replacement for one consumer import statement.
type plan struct {
	start, end int
	groups     []*importGroup
}

// Rewrite rewrites source, the contents of consumer. changed is false when
// nothing needed rewriting, in which case source is returned as is.
func (r *Rewriter) Rewrite(ctx context.Context, consumer, source string) (string, bool, error) {
	mod, err := r.lexer.Lex(source)
	if err != nil {
		return source, false, fmt.Errorf("lex %s: %w", consumer, err)
	}

	var plans []plan
	for _, imp := range mod.StaticImports() {
		if imp.SideEffect || imp.TypeOnly || imp.Attributes != "" {
			continue
		}
		target, ok := r.resolver.Resolve(consumer, imp.Specifier)
		if !ok {
			continue
		}
		entry, ok := r.registry.Get(target)
		if !ok || entry.IsImplicit {
			continue
		}
		p, ok, err := r.plan(ctx, consumer, source, imp, entry)
		if err != nil {
			return source, false, err
		}
		if ok {
			plans = append(plans, p)
		}
	}
	if len(plans) == 0 {
		return source, false, nil
	}

	buf := textedit.New(source)
	for _, p := range plans {
		stmts := make([]string, 0, len(p.groups))
		for _, g := range p.groups {
			stmts = append(stmts, g.statement())
		}
		if err := buf.Replace(p.start, p.end, strings.Join(stmts, "\n")); err != nil {
			return source, false, err
		}
	}
	return buf.String(), true, nil
}

// plan resolves every name requested by imp. ok is false when the statement
// should stay as written, which includes clauses with items Parse could not
// read.
func (r *Rewriter) plan(ctx context.Context, consumer, source string, imp lexer.ImportStatement, entry *EntryData) (plan, bool, error) {
	c := clause.Parse(imp.Clause)
	if c.Malformed || c.Namespace != "" || len(c.Defaults)+len(c.Named) == 0 {
		return plan{}, false, nil
	}

	var groups []*importGroup
	byKey := make(map[string]*importGroup)
	group := func(key, specifier, attributes string) *importGroup {
		key += "\x00" + attributes
		if g, ok := byKey[key]; ok {
			return g
		}
		g := &importGroup{specifier: specifier, attributes: attributes}
		byKey[key] = g
		groups = append(groups, g)
		return g
	}

	elsewhere := false
	for _, req := range c.Requests() {
		local := req.Local()
		if !req.TypeOnly {
			res, err := r.registry.Resolve(ctx, entry.Path, req.Name)
			if err != nil {
				return plan{}, false, err
			}
			if d := res.Descriptor; res.Found && d.Resolvable() && d.OriginPath != entry.Path {
				elsewhere = true
				spec := specifierFor(consumer, d)
				if d.Namespace {
					g := group("*"+local+"\x00"+d.OriginPath, spec, d.Attributes)
					g.namespace = local
					continue
				}
				g := group(d.OriginPath, spec, d.Attributes)
				g.items = append(g.items, d.ImportedName()+" as "+local)
				continue
			}
		}

		g := group(entry.Path, imp.Specifier, "")
		if req.IsDefault() {
			g.items = append(g.items, "default as "+local)
		} else {
			base := imp.ClauseStart
			g.items = append(g.items, source[base+req.Start:base+req.End])
		}
	}
	if !elsewhere {
		return plan{}, false, nil
	}
	return plan{start: imp.Start, end: imp.End, groups: groups}, true, nil
}

// specifierFor returns how consumer should import the origin of d. Package
// and alias specifiers are location independent and reused; anything else
// becomes a path relative to the consumer.
func specifierFor(consumer string, d ExportDescriptor) string {
	if d.Specifier != "" && !strings.HasPrefix(d.Specifier, ".") && !strings.HasPrefix(d.Specifier, "/") {
		return d.Specifier
	}
	rel, err := filepath.Rel(filepath.Dir(consumer), d.OriginPath)
	if err != nil {
		return d.OriginPath
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}
