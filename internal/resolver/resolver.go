// Package resolver turns module specifiers into canonical paths.
//
// PathResolver applies the alias table and relative-path resolution; whether a
// candidate actually exists is decided by a Host, normally FSResolver.
package resolver

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Host checks a candidate path against the project's module graph and returns
// its canonical form.
type Host interface {
	Resolve(fromFile, candidate string) (string, bool)
}

// HostFunc adapts a function to Host.
type HostFunc func(fromFile, candidate string) (string, bool)

// Resolve calls f.
func (f HostFunc) Resolve(fromFile, candidate string) (string, bool) {
	return f(fromFile, candidate)
}

// Alias is one entry of the alias table. Exactly one of Find or Pattern is set.
type Alias struct {
	// Find matches the specifier itself or any specifier starting with Find+"/".
	Find string
	// Pattern is matched against the whole specifier; Replacement may use
	// $1-style group references.
	Pattern     *regexp.Regexp
	Replacement string
}

// NewAlias builds an alias from its configuration form.
func NewAlias(find, pattern, replacement string) (Alias, error) {
	switch {
	case find != "" && pattern != "":
		return Alias{}, fmt.Errorf("alias %q: find and pattern are mutually exclusive", find)
	case pattern != "":
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Alias{}, fmt.Errorf("alias pattern %q: %w", pattern, err)
		}
		return Alias{Pattern: re, Replacement: replacement}, nil
	case find != "":
		return Alias{Find: find, Replacement: replacement}, nil
	}
	return Alias{}, fmt.Errorf("alias needs find or pattern")
}

// apply substitutes the alias into specifier.
func (a Alias) apply(specifier string) (string, bool) {
	if a.Pattern != nil {
		if !a.Pattern.MatchString(specifier) {
			return "", false
		}
		return a.Pattern.ReplaceAllString(specifier, a.Replacement), true
	}
	if specifier == a.Find {
		return a.Replacement, true
	}
	if strings.HasPrefix(specifier, a.Find+"/") {
		return strings.TrimSuffix(a.Replacement, "/") + specifier[len(a.Find):], true
	}
	return "", false
}

// PathResolver resolves specifiers through the alias table and the host.
type PathResolver struct {
	aliases []Alias
	host    Host
}

// New creates a resolver. A nil host accepts every path-like candidate as is.
func New(host Host, aliases []Alias) *PathResolver {
	return &PathResolver{aliases: aliases, host: host}
}

// Resolve returns the canonical path of specifier imported from fromFile, or
// false when it cannot be resolved.
func (r *PathResolver) Resolve(fromFile, specifier string) (string, bool) {
	if specifier == "" {
		return "", false
	}
	candidate := specifier
	for _, a := range r.aliases {
		if replaced, ok := a.apply(specifier); ok {
			candidate = replaced
			break
		}
	}

	if isRelative(candidate) {
		candidate = path.Join(path.Dir(Normalize(fromFile)), candidate)
	}
	if r.host == nil {
		if !isAbsolute(candidate) {
			return "", false
		}
		return Normalize(candidate), true
	}
	resolved, ok := r.host.Resolve(fromFile, candidate)
	if !ok {
		return "", false
	}
	return Normalize(resolved), true
}

// Normalize returns p with forward slashes and no redundant segments.
func Normalize(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

func isAbsolute(p string) bool {
	return strings.HasPrefix(p, "/") || filepath.IsAbs(p)
}
