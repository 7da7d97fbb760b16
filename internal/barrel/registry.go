package barrel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Registry memoizes entry analysis by path. Concurrent requests for the same
// path share one analysis.
type Registry struct {
	analyzer         *Analyzer
	diagnostics      *DiagnosticsCollector
	maxWildcardDepth int

	mu      sync.RWMutex
	entries map[string]*EntryData
	flight  singleflight.Group
}

// NewRegistry creates a registry. maxWildcardDepth bounds how many `export *`
// hops a lookup may follow; zero disables wildcard expansion.
func NewRegistry(analyzer *Analyzer, diagnostics *DiagnosticsCollector, maxWildcardDepth int) *Registry {
	if diagnostics == nil {
		diagnostics = analyzer.diagnostics
	}
	if maxWildcardDepth < 0 {
		maxWildcardDepth = 0
	}
	return &Registry{
		analyzer:         analyzer,
		diagnostics:      diagnostics,
		maxWildcardDepth: maxWildcardDepth,
		entries:          make(map[string]*EntryData),
	}
}

// AnalyzeAll analyzes every target concurrently and returns the first error.
func (r *Registry) AnalyzeAll(ctx context.Context, targets []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			_, err := r.Ensure(ctx, target, 0, false)
			return err
		})
	}
	return g.Wait()
}

// Ensure returns the entry for path, analyzing it on first use. depth and
// implicit only apply when the entry is new.
func (r *Registry) Ensure(ctx context.Context, path string, depth int, implicit bool) (*EntryData, error) {
	if entry, ok := r.Get(path); ok {
		return entry, nil
	}
	v, err, _ := r.flight.Do(path, func() (any, error) {
		if entry, ok := r.Get(path); ok {
			return entry, nil
		}
		entry, err := r.analyzer.Analyze(ctx, path)
		if err != nil {
			return nil, err
		}
		entry.Depth = depth
		entry.IsImplicit = implicit

		r.mu.Lock()
		r.entries[path] = entry
		r.mu.Unlock()

		log.Debug().Str("entry", path).Int("depth", depth).Bool("implicit", implicit).Msg("Registered entry")
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*EntryData), nil
}

// Get returns the analyzed entry for path.
func (r *Registry) Get(path string) (*EntryData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[path]
	return entry, ok
}

// Entries returns every entry sorted by path.
func (r *Registry) Entries() []*EntryData {
	r.mu.RLock()
	out := make([]*EntryData, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Invalidate re-analyzes a tracked entry and replaces its data. Depth and
// implicitness carry over.
func (r *Registry) Invalidate(ctx context.Context, path string) (*EntryData, error) {
	prev, ok := r.Get(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotTracked)
	}
	v, err, _ := r.flight.Do("refresh:"+path, func() (any, error) {
		r.diagnostics.Forget(path)
		entry, err := r.analyzer.Analyze(ctx, path)
		if err != nil {
			return nil, err
		}
		entry.Depth = prev.Depth
		entry.IsImplicit = prev.IsImplicit

		r.mu.Lock()
		r.entries[path] = entry
		r.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*EntryData), nil
}

// Remove forgets an entry, for instance after its file was deleted.
func (r *Registry) Remove(path string) bool {
	r.mu.Lock()
	_, ok := r.entries[path]
	delete(r.entries, path)
	r.mu.Unlock()
	if ok {
		r.diagnostics.Forget(path)
	}
	return ok
}

// Resolution is the outcome of looking a name up through an entry.
type Resolution struct {
	Descriptor ExportDescriptor
	// Entry is the entry whose export map produced Descriptor.
	Entry string
	Found bool
}

// Resolve finds where name, imported from entry, is really defined. Names
// that are not found, or found but not resolvable, must keep importing from
// the entry.
func (r *Registry) Resolve(ctx context.Context, entry, name string) (Resolution, error) {
	return r.resolve(ctx, entry, name, 0, make(map[string]bool))
}

func (r *Registry) resolve(ctx context.Context, path, name string, hops int, visited map[string]bool) (Resolution, error) {
	key := path + "\x00" + name
	if visited[key] {
		return Resolution{}, nil
	}
	visited[key] = true

	entry, ok := r.Get(path)
	if !ok {
		return Resolution{}, nil
	}

	if d, ok := entry.Exports.Get(name); ok {
		found := Resolution{Descriptor: d, Entry: path, Found: true}
		if !d.Resolvable() || d.Namespace {
			return found, nil
		}
		if _, tracked := r.Get(d.OriginPath); !tracked {
			return found, nil
		}
		deeper, err := r.resolve(ctx, d.OriginPath, d.ImportedName(), hops, visited)
		if err != nil {
			return Resolution{}, err
		}
		if deeper.Found && deeper.Descriptor.Resolvable() {
			return deeper, nil
		}
		return found, nil
	}

	if name == "default" {
		return Resolution{}, nil
	}
	for _, target := range entry.Wildcard.Direct {
		if hops+1 > r.maxWildcardDepth {
			r.depthExceeded(entry, name)
			return Resolution{}, nil
		}
		if _, err := r.Ensure(ctx, target, entry.Depth+1, true); err != nil {
			return Resolution{}, err
		}
		res, err := r.resolve(ctx, target, name, hops+1, visited)
		if err != nil {
			return Resolution{}, err
		}
		if !res.Found {
			continue
		}
		if res.Descriptor.SelfDefined && !res.Descriptor.TypeOnly {
			// Defined by the wildcard target itself.
			res.Descriptor = ExportDescriptor{OriginPath: res.Entry, OriginalName: name, Alias: name}
		}
		return res, nil
	}
	return Resolution{}, nil
}

func (r *Registry) depthExceeded(entry *EntryData, name string) {
	if !r.diagnostics.Enabled(MaxDepthReached) {
		return
	}
	entry.AddDiagnostic(MaxDepthReached)
	r.diagnostics.Report(Diagnostic{
		Kind:    MaxDepthReached,
		Entry:   entry.Path,
		Name:    name,
		Message: fmt.Sprintf("wildcard exports deeper than %d hops were not followed", r.maxWildcardDepth),
	})
}
