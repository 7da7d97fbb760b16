// Package targets expands entry target definitions into file paths and decides
// which files are candidates for import rewriting.
package targets

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/fluxbase-eu/unbarrel/internal/resolver"
)

// ErrInvalidTargetDefinition is returned for a target with neither a path nor
// a glob.
var ErrInvalidTargetDefinition = errors.New("invalid target definition: need a path or a glob")

// Definition names entry files, either directly or by pattern.
type Definition struct {
	Path   string   `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
	Glob   string   `mapstructure:"glob" yaml:"glob,omitempty" json:"glob,omitempty"`
	Ignore []string `mapstructure:"ignore" yaml:"ignore,omitempty" json:"ignore,omitempty"`
}

// Validate checks the definition.
func (d Definition) Validate() error {
	if d.Path == "" && d.Glob == "" {
		return ErrInvalidTargetDefinition
	}
	if d.Glob != "" && !doublestar.ValidatePattern(d.Glob) {
		return fmt.Errorf("invalid target glob %q", d.Glob)
	}
	for _, p := range d.Ignore {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid target ignore pattern %q", p)
		}
	}
	return nil
}

// Expand turns definitions into canonical absolute paths, in definition order
// and without duplicates. Direct paths are not checked for existence; a
// missing target surfaces when it is analyzed.
func Expand(fs afero.Fs, root string, defs []Definition) ([]string, error) {
	root = resolver.Normalize(root)
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for i, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		if def.Path != "" {
			p := absolute(root, def.Path)
			if !ignored(def.Ignore, root, p) {
				add(p)
			}
		}
		if def.Glob == "" {
			continue
		}
		matches, err := glob(fs, root, def)
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func glob(fs afero.Fs, root string, def Definition) ([]string, error) {
	pattern := strings.TrimPrefix(def.Glob, "./")
	walkVendored := strings.Contains(pattern, "node_modules")

	var matches []string
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		p = resolver.Normalize(p)
		if info.IsDir() {
			name := info.Name()
			if p != root && (name == ".git" || (name == "node_modules" && !walkVendored)) {
				return filepath.SkipDir
			}
			return nil
		}
		rel := relative(root, p)
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return err
		}
		if ok && !ignored(def.Ignore, root, p) {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", def.Glob, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Filter decides which files are rewrite candidates.
type Filter struct {
	root       string
	extensions map[string]bool
	ignore     []string
}

// NewFilter creates a filter. An empty extension list allows every file.
func NewFilter(root string, extensions, ignore []string) (*Filter, error) {
	for _, p := range ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[strings.ToLower(e)] = true
	}
	return &Filter{root: resolver.Normalize(root), extensions: exts, ignore: ignore}, nil
}

// Candidate reports whether the file at p may be rewritten.
func (f *Filter) Candidate(p string) bool {
	p = resolver.Normalize(p)
	if len(f.extensions) > 0 && !f.extensions[strings.ToLower(path.Ext(p))] {
		return false
	}
	return !ignored(f.ignore, f.root, p)
}

// ignored matches patterns against p relative to root, and against p itself.
func ignored(patterns []string, root, p string) bool {
	rel := relative(root, p)
	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(pattern, "./")
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

func absolute(root, p string) string {
	if strings.HasPrefix(p, "/") {
		return resolver.Normalize(p)
	}
	return resolver.Normalize(path.Join(root, p))
}

func relative(root, p string) string {
	if root == "/" {
		return strings.TrimPrefix(p, "/")
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
}
